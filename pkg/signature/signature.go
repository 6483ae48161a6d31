package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Verify checks an HMAC-SHA256 webhook signature against the exact raw body
// bytes. The expected header format is "sha256=<hex digest>". Comparison is
// constant-time. Any malformed input (empty body, missing header, empty
// secret) returns false - deciding what to do about an absent signature is
// the caller's policy, not an error here.
func Verify(rawBody []byte, signatureHeader string, secret string) bool {
	if len(rawBody) == 0 || signatureHeader == "" || secret == "" {
		return false
	}

	expected := fmt.Sprintf("sha256=%s", computeHex(rawBody, secret))

	return hmac.Equal([]byte(signatureHeader), []byte(expected))
}

// VerifyStripe validates a Stripe-style signature header of the form
// "t=<unix>,v1=<hex>,...". The signed payload is "<t>.<body>" and the
// embedded timestamp must be within tolerance of now, which defends
// against replay of a captured payload.
func VerifyStripe(rawBody []byte, signatureHeader string, secret string, tolerance time.Duration) bool {
	if len(rawBody) == 0 || signatureHeader == "" || secret == "" {
		return false
	}

	var ts string
	var sigs []string
	for _, element := range strings.Split(signatureHeader, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(element), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			sigs = append(sigs, value)
		}
	}

	if ts == "" || len(sigs) == 0 {
		return false
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if !ValidateTimestamp(unix, int(tolerance.Seconds())) {
		return false
	}

	signed := fmt.Sprintf("%s.%s", ts, rawBody)
	expected := computeHex([]byte(signed), secret)

	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

// ValidateTimestamp rejects timestamps further than toleranceSeconds from
// server time, in either direction.
func ValidateTimestamp(ts int64, toleranceSeconds int) bool {
	if toleranceSeconds <= 0 {
		return false
	}

	diff := time.Now().Unix() - ts
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(toleranceSeconds)
}

func computeHex(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
