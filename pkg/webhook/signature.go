package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Tolerance bounds the accepted clock skew between the webhook-timestamp
// header and the receiving host.
const Tolerance = 5 * time.Minute

const secretPrefix = "whsec_"

// VerifySignature checks a Standard-Webhooks style signature as sent by Dodo
// Payments: HMAC-SHA256 over "{id}.{timestamp}.{payload}" keyed with the
// shared secret, carried base64-encoded in the webhook-signature header as
// one or more space-separated "v1,<sig>" entries.
func VerifySignature(payload []byte, msgID, timestamp, signatureHeader, secret string) bool {
	return verifyAt(payload, msgID, timestamp, signatureHeader, secret, time.Now())
}

func verifyAt(payload []byte, msgID, timestamp, signatureHeader, secret string, now time.Time) bool {
	msgID = strings.TrimSpace(msgID)
	timestamp = strings.TrimSpace(timestamp)
	if msgID == "" || timestamp == "" || strings.TrimSpace(signatureHeader) == "" || secret == "" {
		return false
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	skew := now.Sub(time.Unix(unix, 0))
	if skew > Tolerance || skew < -Tolerance {
		return false
	}

	key := secretBytes(secret)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID + "." + timestamp + "."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, entry := range strings.Fields(signatureHeader) {
		version, sig, found := strings.Cut(entry, ",")
		if !found || version != "v1" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return true
		}
	}
	return false
}

// secretBytes unwraps the provider's "whsec_" base64 secret encoding; plain
// secrets are used as-is.
func secretBytes(secret string) []byte {
	if strings.HasPrefix(secret, secretPrefix) {
		if decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix)); err == nil {
			return decoded
		}
	}
	return []byte(secret)
}
