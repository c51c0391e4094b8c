package stripe

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

const testSecret = "whsec_test_secret"

func signedHeader(payload []byte, at time.Time) string {
	sig := ComputeSignature(at, payload, testSecret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), sig)
}

func TestParseSignatureHeader(t *testing.T) {
	header := "t=1700000000,v1=abc123,v1=def456"

	parsed, err := ParseSignatureHeader(header)
	if err != nil {
		t.Fatalf("ParseSignatureHeader failed: %v", err)
	}
	if parsed.Timestamp.Unix() != 1700000000 {
		t.Errorf("expected timestamp 1700000000, got %d", parsed.Timestamp.Unix())
	}
	if len(parsed.Signatures) != 2 {
		t.Errorf("expected 2 signatures, got %d", len(parsed.Signatures))
	}
}

func TestParseSignatureHeaderIgnoresUnknownSchemes(t *testing.T) {
	header := "t=1700000000,v0=legacy,v1=abc123"

	parsed, err := ParseSignatureHeader(header)
	if err != nil {
		t.Fatalf("ParseSignatureHeader failed: %v", err)
	}
	if len(parsed.Signatures) != 1 || parsed.Signatures[0] != "abc123" {
		t.Errorf("expected only the v1 signature, got %v", parsed.Signatures)
	}
}

func TestParseSignatureHeaderRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"v1=abc123",
		"t=1700000000",
		"t=notanumber,v1=abc123",
	}
	for _, header := range cases {
		if _, err := ParseSignatureHeader(header); err == nil {
			t.Errorf("expected error for header %q", header)
		}
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Now()

	err := verifySignatureAt(payload, signedHeader(payload, now), testSecret, DefaultTolerance, now)
	if err != nil {
		t.Errorf("expected valid signature to verify: %v", err)
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","amount_total":999}`)
	now := time.Now()
	header := signedHeader(payload, now)

	tampered := []byte(`{"id":"evt_1","amount_total":999999}`)
	if err := verifySignatureAt(tampered, header, testSecret, DefaultTolerance, now); err == nil {
		t.Error("expected tampered payload to fail verification")
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := signedHeader(payload, now)

	if err := verifySignatureAt(payload, header, "whsec_other", DefaultTolerance, now); err == nil {
		t.Error("expected wrong secret to fail verification")
	}
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	signedAt := time.Now().Add(-time.Hour)
	header := signedHeader(payload, signedAt)

	err := verifySignatureAt(payload, header, testSecret, DefaultTolerance, time.Now())
	if err == nil {
		t.Error("expected stale signature to fail verification")
	}
	if err != nil && !strings.Contains(err.Error(), "tolerance") {
		t.Errorf("expected tolerance error, got: %v", err)
	}
}

func TestVerifySignatureAcceptsAnyMatchingV1(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	good := ComputeSignature(now, payload, testSecret)
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", now.Unix(), "deadbeef", good)

	if err := verifySignatureAt(payload, header, testSecret, DefaultTolerance, now); err != nil {
		t.Errorf("expected one matching v1 signature to suffice: %v", err)
	}
}

func TestConstructEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1700000000,
		"data": {
			"object": {
				"id": "cs_test_123",
				"payment_status": "paid",
				"amount_total": 999,
				"currency": "usd",
				"metadata": {"userId": "u-1", "credits": "100", "packageId": "starter"}
			}
		}
	}`)
	now := time.Now()

	event, err := ConstructEvent(payload, signedHeader(payload, now), testSecret)
	if err != nil {
		t.Fatalf("ConstructEvent failed: %v", err)
	}
	if event.Type != EventCheckoutSessionCompleted {
		t.Errorf("expected type %s, got %s", EventCheckoutSessionCompleted, event.Type)
	}

	session, err := event.CheckoutSession()
	if err != nil {
		t.Fatalf("CheckoutSession failed: %v", err)
	}
	if session.ID != "cs_test_123" {
		t.Errorf("expected session cs_test_123, got %s", session.ID)
	}
	if session.PaymentStatus != "paid" {
		t.Errorf("expected payment_status paid, got %s", session.PaymentStatus)
	}
	if session.Metadata["credits"] != "100" {
		t.Errorf("expected credits metadata 100, got %s", session.Metadata["credits"])
	}
}

func TestConstructEventRejectsBadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	header := fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix())

	if _, err := ConstructEvent(payload, header, testSecret); err == nil {
		t.Error("expected invalid signature to be rejected")
	}
}

func TestCheckoutSessionRejectsOtherEventTypes(t *testing.T) {
	event := &Event{ID: "evt_1", Type: "payment_intent.succeeded"}
	if _, err := event.CheckoutSession(); err == nil {
		t.Error("expected non-checkout event to be rejected")
	}
}
