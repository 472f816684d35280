package types

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-yappy/app/entity"
)

// amountTolerance absorbs rounding drift in the subtotal/discount/taxes
// decomposition.
var amountTolerance = decimal.NewFromFloat(0.01)

type CreatePaymentRequest struct {
	OrderID     string `json:"orderId"`
	Description string `json:"description"`
	Currency    string `json:"currency"`
	Subtotal    string `json:"subtotal"`
	Discount    string `json:"discount"`
	Taxes       string `json:"taxes"`
	Total       string `json:"total"`
	UserID      string `json:"userId"`
	CourseID    string `json:"courseId"`

	merchantID string
	domain     string
}

func NewCreatePaymentRequestFromContext(ctx echo.Context, merchantID, domain string) (*CreatePaymentRequest, error) {
	var body CreatePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.OrderID = strings.TrimSpace(body.OrderID)
	body.Description = strings.TrimSpace(body.Description)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.Subtotal = strings.TrimSpace(body.Subtotal)
	body.Discount = strings.TrimSpace(body.Discount)
	body.Taxes = strings.TrimSpace(body.Taxes)
	body.Total = strings.TrimSpace(body.Total)
	body.UserID = strings.TrimSpace(body.UserID)
	body.CourseID = strings.TrimSpace(body.CourseID)
	body.merchantID = merchantID
	body.domain = domain

	return &body, nil
}

func (r *CreatePaymentRequest) Validate() error {
	if r.OrderID == "" {
		return errors.New("orderId is required")
	}
	if r.UserID == "" {
		return errors.New("userId is required")
	}
	if r.CourseID == "" {
		return errors.New("courseId is required")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}

	order, err := r.Order()
	if err != nil {
		return err
	}
	if !order.Total.IsPositive() {
		return errors.New("total must be > 0")
	}
	if order.Subtotal.IsNegative() || order.Discount.IsNegative() || order.Taxes.IsNegative() {
		return errors.New("amount fields must be >= 0")
	}

	sum := order.Subtotal.Sub(order.Discount).Add(order.Taxes)
	if sum.Sub(order.Total).Abs().GreaterThan(amountTolerance) {
		return errors.New("subtotal - discount + taxes must equal total")
	}

	return nil
}

// Order builds the immutable purchase snapshot. When only total is supplied
// the decomposition collapses to subtotal == total.
func (r *CreatePaymentRequest) Order() (entity.PaymentOrder, error) {
	total, err := decimal.NewFromString(r.Total)
	if err != nil {
		return entity.PaymentOrder{}, errors.New("total is not a valid amount")
	}

	subtotal := total
	if r.Subtotal != "" {
		if subtotal, err = decimal.NewFromString(r.Subtotal); err != nil {
			return entity.PaymentOrder{}, errors.New("subtotal is not a valid amount")
		}
	}

	discount := decimal.Zero
	if r.Discount != "" {
		if discount, err = decimal.NewFromString(r.Discount); err != nil {
			return entity.PaymentOrder{}, errors.New("discount is not a valid amount")
		}
	}

	taxes := decimal.Zero
	if r.Taxes != "" {
		if taxes, err = decimal.NewFromString(r.Taxes); err != nil {
			return entity.PaymentOrder{}, errors.New("taxes is not a valid amount")
		}
	}

	return entity.PaymentOrder{
		OrderID:     r.OrderID,
		Description: r.Description,
		Currency:    r.Currency,
		Subtotal:    subtotal,
		Discount:    discount,
		Taxes:       taxes,
		Total:       total,
		MerchantID:  r.merchantID,
		Domain:      r.domain,
	}, nil
}

type GetPaymentRequest struct {
	PaymentID string
}

func NewGetPaymentRequestFromContext(ctx echo.Context) *GetPaymentRequest {
	return &GetPaymentRequest{PaymentID: strings.TrimSpace(ctx.Param("id"))}
}

func (r *GetPaymentRequest) Validate() error {
	if r.PaymentID == "" {
		return errors.New("payment id is required")
	}
	return nil
}

// WebhookRequest is one IPN delivery. RawPayload is the unparsed body the
// signature was computed over; it must be verified before any field here is
// trusted.
type WebhookRequest struct {
	PaymentID     string `json:"paymentId"`
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Domain        string `json:"domain"`

	Signature  string `json:"-"`
	RawPayload []byte `json:"-"`
}

func NewWebhookRequestFromContext(ctx echo.Context) (*WebhookRequest, error) {
	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	var req WebhookRequest
	if len(rawBody) > 0 {
		if err := json.Unmarshal(rawBody, &req); err != nil {
			return nil, err
		}
	}

	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.Status = strings.TrimSpace(req.Status)
	req.Amount = strings.TrimSpace(req.Amount)
	req.RawPayload = rawBody

	req.Signature = strings.TrimSpace(ctx.Request().Header.Get("X-Yappy-Signature"))
	if req.Signature == "" {
		req.Signature = strings.TrimSpace(ctx.Request().Header.Get("X-Provider-Signature"))
	}

	return &req, nil
}

func (r *WebhookRequest) Validate() error {
	if r.Status == "" {
		return errors.New("status is required")
	}
	if r.PaymentID == "" && r.OrderID == "" {
		return errors.New("paymentId or orderId is required")
	}
	return nil
}

type CreatePaymentResponse struct {
	PaymentID   string `json:"paymentId"`
	Status      string `json:"status"`
	QRPayload   string `json:"qrPayload,omitempty"`
	PaymentLink string `json:"paymentLink,omitempty"`
	ExpiresAt   string `json:"expiresAt"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

type PaymentStatusResponse struct {
	PaymentID     string `json:"paymentId"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	TransactionID string `json:"transactionId,omitempty"`
	CompletedAt   string `json:"completedAt,omitempty"`
	ExpiresAt     string `json:"expiresAt"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
