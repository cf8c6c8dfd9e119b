package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifyLineSignature checks a webhook body against the X-Line-Signature
// header value. The signature is the base64 HMAC-SHA256 of the raw body
// keyed by the channel secret. Comparison is constant time; an empty secret
// always fails so callers can keep the endpoint fail-closed.
func VerifyLineSignature(body []byte, signatureB64 string, channelSecret string) bool {
	if channelSecret == "" || signatureB64 == "" {
		return false
	}
	provided, errDecode := base64.StdEncoding.DecodeString(signatureB64)
	if errDecode != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	expected := mac.Sum(nil)

	return hmac.Equal(expected, provided)
}
