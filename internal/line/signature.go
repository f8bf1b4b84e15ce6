package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SignatureHeader is the header LINE uses to deliver the webhook signature.
const SignatureHeader = "X-Line-Signature"

// ValidSignature reports whether signature matches the base64-encoded
// HMAC-SHA256 of body keyed with the channel secret. Comparison is
// constant-time. Runs before any payload parsing.
func ValidSignature(body []byte, secret, signature string) bool {
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}

// Sign computes the signature LINE would send for body. Used by tests and
// local tooling to produce valid deliveries.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
