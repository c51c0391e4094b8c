package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is the maximum accepted age of a signed webhook payload.
// Stripe recommends rejecting anything older to limit replay windows.
const DefaultTolerance = 5 * time.Minute

// SignatureHeader is the parsed form of a Stripe-Signature header:
// "t=<unix>,v1=<hex>[,v1=<hex>...]".
type SignatureHeader struct {
	Timestamp  time.Time
	Signatures []string
}

// ParseSignatureHeader splits a Stripe-Signature header into its timestamp
// and v1 signatures. Unknown schemes are ignored; at least one v1 entry and
// a timestamp are required.
func ParseSignatureHeader(header string) (*SignatureHeader, error) {
	if strings.TrimSpace(header) == "" {
		return nil, fmt.Errorf("empty signature header")
	}

	parsed := &SignatureHeader{}
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp in signature header: %w", err)
			}
			parsed.Timestamp = time.Unix(ts, 0)
		case "v1":
			parsed.Signatures = append(parsed.Signatures, kv[1])
		}
	}

	if parsed.Timestamp.IsZero() {
		return nil, fmt.Errorf("signature header missing timestamp")
	}
	if len(parsed.Signatures) == 0 {
		return nil, fmt.Errorf("signature header missing v1 signature")
	}

	return parsed, nil
}

// ComputeSignature returns the hex HMAC-SHA256 of "<unix ts>.<payload>"
func ComputeSignature(timestamp time.Time, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature validates a raw webhook payload against its
// Stripe-Signature header. The comparison is constant-time and the
// timestamp must fall within tolerance of now.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	return verifySignatureAt(payload, header, secret, tolerance, time.Now())
}

func verifySignatureAt(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("webhook secret is not configured")
	}

	parsed, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}

	if tolerance > 0 {
		age := now.Sub(parsed.Timestamp)
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("signature timestamp outside tolerance")
		}
	}

	expected := ComputeSignature(parsed.Timestamp, payload, secret)
	for _, sig := range parsed.Signatures {
		if equalHex(expected, sig) {
			return nil
		}
	}

	return fmt.Errorf("no matching v1 signature")
}

func equalHex(expected, received string) bool {
	e := strings.ToLower(strings.TrimSpace(expected))
	r := strings.ToLower(strings.TrimSpace(received))
	return subtle.ConstantTimeCompare([]byte(e), []byte(r)) == 1
}
