package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign returns the lowercase hex HMAC-SHA256 of message under secret.
func Sign(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether provided is the HMAC-SHA256 of message under secret.
// The comparison runs in constant time. An empty secret or signature never verifies.
func VerifySignature(message []byte, secret, provided string) bool {
	if secret == "" || provided == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(provided))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hmac.Equal(mac.Sum(nil), got)
}

// ConfirmationMessage is the payload a checkout confirmation signature covers.
func ConfirmationMessage(gatewayOrderID, gatewayPaymentID string) []byte {
	return []byte(gatewayOrderID + "|" + gatewayPaymentID)
}
