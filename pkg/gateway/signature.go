package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SignatureHeader is the request header carrying the webhook signature.
const SignatureHeader = "Gateway-Signature"

// The signature binds the event id and timestamp to the body, so a valid
// signature also proves the envelope fields were not swapped between events.
// Header format: t=<unix>,id=<event id>,v1=<hex hmac-sha256>.

// Sign computes the signature header value for a payload. Used by tests and
// by provider simulators.
func Sign(secret, eventID string, timestamp int64, body []byte) string {
	return fmt.Sprintf("t=%d,id=%s,v1=%s", timestamp, eventID, hexDigest(secret, eventID, timestamp, body))
}

// VerifySignature checks the signature header against the raw body using a
// constant-time comparison. An empty secret never verifies.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" || header == "" {
		return false
	}
	timestamp, eventID, provided, ok := parseHeader(header)
	if !ok {
		return false
	}
	expected := hexDigest(secret, eventID, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(provided))
}

func hexDigest(secret, eventID string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%d.", eventID, timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseHeader(header string) (timestamp int64, eventID, signature string, ok bool) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return 0, "", "", false
		}
		switch key {
		case "t":
			if _, err := fmt.Sscanf(value, "%d", &timestamp); err != nil {
				return 0, "", "", false
			}
		case "id":
			eventID = value
		case "v1":
			signature = value
		}
	}
	if timestamp == 0 || eventID == "" || signature == "" {
		return 0, "", "", false
	}
	return timestamp, eventID, signature, true
}
