package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// webhookSignaturePrefix is the scheme tag providers put in front of the hex digest.
const webhookSignaturePrefix = "v1="

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign computes HMAC-SHA256 of payload using secretKey.
// Returns lowercase hex-encoded signature.
func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks if signature matches HMAC-SHA256(secretKey, payload).
// Uses constant-time comparison to prevent timing attacks.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	expected := s.Sign(secretKey, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookSigningString is the message a provider signs: "<timestamp>.<rawBody>".
func WebhookSigningString(timestamp string, rawBody []byte) string {
	return timestamp + "." + string(rawBody)
}

// VerifyWebhook checks a provider signature header against the raw request body.
// The header may carry a "v1=" prefix. Hex case is ignored.
func (s *HMACSignatureService) VerifyWebhook(rawBody []byte, timestamp, signatureHeader, secret string) bool {
	if secret == "" || timestamp == "" || signatureHeader == "" {
		return false
	}
	sig := strings.TrimSpace(signatureHeader)
	sig = strings.TrimPrefix(sig, webhookSignaturePrefix)
	return s.Verify(secret, WebhookSigningString(timestamp, rawBody), strings.ToLower(sig))
}
