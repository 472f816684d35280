package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/sirupsen/logrus"
)

// WebhookVerifier decides whether an IPN delivery is authentic before any
// session state is touched. The provider's real signing scheme is not
// published; implementations live behind this boundary so verification can
// be hardened without touching the reconciliation logic.
type WebhookVerifier interface {
	Verify(payload []byte, signature string) bool
}

// HMACVerifier checks a hex-encoded HMAC-SHA256 digest of the raw payload.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(payload []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || len(v.secret) == 0 {
		return false
	}

	candidate, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write(payload)
	return hmac.Equal(candidate, mac.Sum(nil))
}

// PermissiveVerifier accepts every delivery. Used until a webhook secret is
// configured; it logs once at construction so the gap is visible.
type PermissiveVerifier struct{}

func NewPermissiveVerifier(logger logrus.FieldLogger) *PermissiveVerifier {
	if logger != nil {
		logger.Warn("webhook signature verification is permissive; configure YAPPY_WEBHOOK_SECRET")
	}
	return &PermissiveVerifier{}
}

func (v *PermissiveVerifier) Verify(_ []byte, _ string) bool {
	return true
}
