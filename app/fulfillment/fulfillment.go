// Package fulfillment holds the collaborators invoked on terminal payment
// outcomes: granting course access in the platform backend and notifying the
// UI layer. Both sit behind service-level interfaces so local development
// works without the rest of the platform.
package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-yappy/app/entity"
	"github.com/vibast-solutions/ms-go-yappy/app/factory"
)

type HTTPGranterConfig struct {
	EndpointURL string
	APIKey      string
	HTTPTimeout time.Duration
}

// HTTPGranter posts the grant to the platform's enrollment endpoint. The
// endpoint is idempotent per paymentID, so redelivery after a failed
// acknowledgement is safe.
type HTTPGranter struct {
	cfg    HTTPGranterConfig
	client *http.Client
	logger logrus.FieldLogger
}

func NewHTTPGranter(cfg HTTPGranterConfig) *HTTPGranter {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPGranter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: factory.NewModuleLogger("fulfillment"),
	}
}

func (g *HTTPGranter) GrantCourseAccess(ctx context.Context, userID, courseID, paymentID string) error {
	payload := map[string]string{
		"userId":    userID,
		"courseId":  courseID,
		"paymentId": paymentID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(g.cfg.APIKey) != "" {
		req.Header.Set("X-API-Key", g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("enrollment endpoint returned status=%d", resp.StatusCode)
	}

	return nil
}

// LogGranter records grants to the log only. Used when no enrollment
// endpoint is configured (local development with the simulator).
type LogGranter struct {
	logger logrus.FieldLogger
}

func NewLogGranter() *LogGranter {
	return &LogGranter{logger: factory.NewModuleLogger("fulfillment")}
}

func (g *LogGranter) GrantCourseAccess(_ context.Context, userID, courseID, paymentID string) error {
	g.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"course_id":  courseID,
		"payment_id": paymentID,
	}).Info("course_access_granted")
	return nil
}

// LogNotifier is the fire-and-forget outcome notifier; the real toast layer
// consumes these log lines out of band.
type LogNotifier struct {
	logger logrus.FieldLogger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: factory.NewModuleLogger("fulfillment")}
}

func (n *LogNotifier) NotifyPaymentOutcome(paymentID string, status entity.SessionStatus) {
	n.logger.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"status":     status.String(),
	}).Info("payment_outcome")
}
