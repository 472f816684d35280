// Package encoder builds the payer-facing artifacts for a created order: the
// QR payload scanned in-app and the deep-link/universal-link pair. Everything
// here is a pure function of the order snapshot; rendering the QR image is a
// UI concern.
package encoder

import (
	"encoding/json"
	"net/url"
	"time"
)

// LinkDelimiter joins the native deep link and the HTTPS fallback; the caller
// splits on it and picks whichever form the device can open.
const LinkDelimiter = "|"

const (
	deepLinkBase  = "yappy://payments/order"
	universalBase = "https://pagosbg.bgeneral.com/payments/order"
)

type Input struct {
	TransactionID string
	ProviderToken string
	DocumentName  string

	MerchantID  string
	OrderID     string
	Description string
	Currency    string
	Amount      string

	GeneratedAt time.Time
}

type qrPayload struct {
	MerchantID    string `json:"merchantId"`
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	DocumentName  string `json:"documentName"`
	GeneratedAt   int64  `json:"generatedAt"`
}

// QRPayload serializes the self-describing structure encoded into the
// scannable image. Identical inputs yield byte-identical output.
func QRPayload(input Input) (string, error) {
	payload := qrPayload{
		MerchantID:    input.MerchantID,
		OrderID:       input.OrderID,
		TransactionID: input.TransactionID,
		Amount:        input.Amount,
		Currency:      input.Currency,
		Description:   input.Description,
		DocumentName:  input.DocumentName,
		GeneratedAt:   input.GeneratedAt.Unix(),
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// PaymentLink builds the deep link that opens the native wallet and the
// HTTPS fallback carrying equivalent parameters, joined by LinkDelimiter.
// Free-text fields are percent-encoded.
func PaymentLink(input Input) string {
	params := url.Values{}
	params.Set("merchantId", input.MerchantID)
	params.Set("orderId", input.OrderID)
	params.Set("transactionId", input.TransactionID)
	params.Set("documentName", input.DocumentName)
	params.Set("total", input.Amount)
	params.Set("token", input.ProviderToken)
	params.Set("description", input.Description)
	query := params.Encode()

	return deepLinkBase + "?" + query + LinkDelimiter + universalBase + "?" + query
}
