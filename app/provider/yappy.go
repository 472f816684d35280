package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-yappy/app/entity"
)

const successEnvelopeCode = "YP-0000"

type YappyConfig struct {
	BaseURL     string
	MerchantID  string
	Domain      string
	AliasYappy  string
	IPNURL      string
	HTTPTimeout time.Duration
}

// YappyClient talks to the Yappy push-payment API. Pure request/response:
// it keeps no session state and performs no retries.
type YappyClient struct {
	cfg    YappyConfig
	client *http.Client
}

func NewYappyClient(cfg YappyConfig) *YappyClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &YappyClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *YappyClient) Simulated() bool {
	return false
}

type statusEnvelope struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (c *YappyClient) ValidateMerchant(ctx context.Context) (string, error) {
	payload := map[string]string{
		"merchantId": c.cfg.MerchantID,
		"urlDomain":  c.cfg.Domain,
	}

	body, err := c.postJSON(ctx, "/payments/validate/merchant", "", payload)
	if err != nil {
		return "", err
	}

	var response struct {
		Status statusEnvelope `json:"status"`
		Body   struct {
			EpochTime int64  `json:"epochTime"`
			Token     string `json:"token"`
		} `json:"body"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if response.Status.Code != successEnvelopeCode {
		return "", fmt.Errorf("%w: code=%s description=%s", ErrProviderRejected, response.Status.Code, response.Status.Description)
	}
	token := strings.TrimSpace(response.Body.Token)
	if token == "" {
		return "", fmt.Errorf("%w: token field missing", ErrMalformedResponse)
	}

	return token, nil
}

func (c *YappyClient) CreateOrder(ctx context.Context, token string, order *entity.PaymentOrder) (*OrderResult, error) {
	// paymentDate is captured here, not at order assembly, so it cannot drift
	// behind a token validated moments earlier.
	payload := map[string]any{
		"merchantId":  c.cfg.MerchantID,
		"orderId":     order.OrderID,
		"domain":      c.cfg.Domain,
		"paymentDate": time.Now().Unix(),
		"aliasYappy":  c.cfg.AliasYappy,
		"ipnUrl":      c.cfg.IPNURL,
		"discount":    order.Discount.StringFixed(2),
		"taxes":       order.Taxes.StringFixed(2),
		"subtotal":    order.Subtotal.StringFixed(2),
		"total":       order.Total.StringFixed(2),
	}

	body, err := c.postJSON(ctx, "/payments/payment-wc", token, payload)
	if err != nil {
		return nil, err
	}

	var response struct {
		Status statusEnvelope `json:"status"`
		Body   struct {
			TransactionID string `json:"transactionId"`
			Token         string `json:"token"`
			DocumentName  string `json:"documentName"`
		} `json:"body"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if response.Status.Code != successEnvelopeCode {
		return nil, fmt.Errorf("%w: code=%s description=%s", ErrOrderRejected, response.Status.Code, response.Status.Description)
	}

	result := &OrderResult{
		TransactionID: strings.TrimSpace(response.Body.TransactionID),
		Token:         strings.TrimSpace(response.Body.Token),
		DocumentName:  strings.TrimSpace(response.Body.DocumentName),
	}
	if result.TransactionID == "" || result.Token == "" {
		return nil, fmt.Errorf("%w: transactionId or token field missing", ErrMalformedResponse)
	}

	return result, nil
}

func (c *YappyClient) QueryOrderStatus(ctx context.Context, transactionID string) (Outcome, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return OutcomeUnknown, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/payments/state/"+url.PathEscape(transactionID), nil)
	if err != nil {
		return OutcomeUnknown, err
	}

	body, err := c.do(req)
	if err != nil {
		return OutcomeUnknown, err
	}

	var response struct {
		Status statusEnvelope `json:"status"`
		Body   struct {
			State string `json:"state"`
		} `json:"body"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return OutcomeUnknown, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if response.Status.Code != successEnvelopeCode {
		return OutcomeUnknown, fmt.Errorf("%w: code=%s description=%s", ErrProviderRejected, response.Status.Code, response.Status.Description)
	}

	return OutcomeFromIPNStatus(response.Body.State), nil
}

// OutcomeFromIPNStatus maps the provider's single-letter state codes:
// E executed, R rejected, C cancelled, X expired.
func OutcomeFromIPNStatus(state string) Outcome {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "E":
		return OutcomeCompleted
	case "R", "C":
		return OutcomeFailed
	case "X":
		return OutcomeExpired
	case "P":
		return OutcomePending
	default:
		return OutcomeUnknown
	}
}

func (c *YappyClient) postJSON(ctx context.Context, path, token string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(req)
}

func (c *YappyClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: path=%s status=%d body=%s", ErrProviderRejected, req.URL.Path, resp.StatusCode, truncateBody(body))
	}

	return body, nil
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max])
}

// IsTransportError reports whether err should be treated as provider
// unreachability for session purposes. Malformed responses count: contract
// drift is logged loudly by the caller but must not surface as a transport
// exception.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrProviderUnreachable) || errors.Is(err, ErrMalformedResponse)
}
