package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHMACVerifier(t *testing.T) {
	payload := []byte(`{"orderId":"ord-1","status":"E"}`)
	verifier := NewHMACVerifier("topsecret")

	if !verifier.Verify(payload, signPayload("topsecret", payload)) {
		t.Error("valid signature rejected")
	}
	if verifier.Verify(payload, signPayload("wrongsecret", payload)) {
		t.Error("signature from the wrong secret accepted")
	}
	if verifier.Verify([]byte(`{"orderId":"ord-1","status":"R"}`), signPayload("topsecret", payload)) {
		t.Error("signature over a different payload accepted")
	}
	if verifier.Verify(payload, "") {
		t.Error("empty signature accepted")
	}
	if verifier.Verify(payload, "not-hex") {
		t.Error("non-hex signature accepted")
	}
}

func TestHMACVerifierEmptySecret(t *testing.T) {
	verifier := NewHMACVerifier("")
	payload := []byte(`{}`)

	if verifier.Verify(payload, signPayload("", payload)) {
		t.Error("verifier with an empty secret must reject everything")
	}
}

func TestPermissiveVerifier(t *testing.T) {
	verifier := NewPermissiveVerifier(nil)

	if !verifier.Verify([]byte(`{}`), "") {
		t.Error("permissive verifier must accept any delivery")
	}
	if !verifier.Verify(nil, "garbage") {
		t.Error("permissive verifier must accept any delivery")
	}
}
