package stripe

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventCheckoutSessionCompleted is the only event type the billing flow
// consumes; everything else is acknowledged and dropped.
const EventCheckoutSessionCompleted = "checkout.session.completed"

// Event is a verified webhook event envelope
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

// EventData wraps the event's object payload
type EventData struct {
	Object json.RawMessage `json:"object"`
}

// CheckoutSession is the subset of a checkout.session object the billing
// flow reads. Metadata is set by us when the session is created.
type CheckoutSession struct {
	ID            string            `json:"id"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// ConstructEvent verifies the webhook signature and unmarshals the event.
// An unverifiable payload returns an error before any parsing of the body
// is trusted.
func ConstructEvent(payload []byte, sigHeader, secret string) (*Event, error) {
	if err := VerifySignature(payload, sigHeader, secret, DefaultTolerance); err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook event: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("webhook event missing type")
	}

	return &event, nil
}

// CheckoutSession extracts the checkout session object from a
// checkout.session.completed event.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	if e.Type != EventCheckoutSessionCompleted {
		return nil, fmt.Errorf("event %s is not a checkout session completion", e.Type)
	}

	var session CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("checkout session missing id")
	}

	return &session, nil
}

// CreatedAt returns the event creation time
func (e *Event) CreatedAt() time.Time {
	return time.Unix(e.Created, 0)
}
