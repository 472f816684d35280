package provider

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-yappy/app/entity"
)

// SimulationClient is the behavior-compatible stand-in used when no merchant
// credentials are configured. Responses are structurally identical to the
// real client's, with synthetic data; status queries resolve randomly toward
// a completed payment so the success path is exercised without real money
// movement.
type SimulationClient struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func NewSimulationClient() *SimulationClient {
	return &SimulationClient{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSimulationClientWithSeed pins the random source for deterministic tests.
func NewSimulationClientWithSeed(seed int64) *SimulationClient {
	return &SimulationClient{
		rand: rand.New(rand.NewSource(seed)),
	}
}

func (c *SimulationClient) Simulated() bool {
	return true
}

func (c *SimulationClient) ValidateMerchant(_ context.Context) (string, error) {
	return "sim-token-" + uuid.NewString(), nil
}

func (c *SimulationClient) CreateOrder(_ context.Context, _ string, _ *entity.PaymentOrder) (*OrderResult, error) {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
	return &OrderResult{
		TransactionID: entity.SimulatedPaymentIDPrefix + suffix,
		Token:         "sim-order-token-" + uuid.NewString(),
		DocumentName:  "SIM-DOC-" + suffix,
	}, nil
}

func (c *SimulationClient) QueryOrderStatus(_ context.Context, _ string) (Outcome, error) {
	c.mu.Lock()
	roll := c.rand.Float64()
	c.mu.Unlock()

	switch {
	case roll < 0.40:
		return OutcomeCompleted, nil
	case roll < 0.45:
		return OutcomeFailed, nil
	default:
		return OutcomePending, nil
	}
}
