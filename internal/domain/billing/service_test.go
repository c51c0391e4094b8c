package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pixelmint/pixelmint-api/internal/domain/credit"
	"github.com/pixelmint/pixelmint-api/internal/pkg/stripe"
)

const testWebhookSecret = "whsec_test"

// memPurchaseRepo mimics the transactional RecordPurchase: a failure
// leaves neither the event nor the credit behind.
type memPurchaseRepo struct {
	sessions map[string]bool
	credited map[uuid.UUID]int64
	calls    int
	failNext error
}

func newMemPurchaseRepo() *memPurchaseRepo {
	return &memPurchaseRepo{sessions: map[string]bool{}, credited: map[uuid.UUID]int64{}}
}

func (m *memPurchaseRepo) RecordPurchase(ctx context.Context, sessionID string, userID uuid.UUID, packageID string, credits int64, description string, meta credit.Meta) (int64, error) {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return 0, err
	}
	if m.sessions[sessionID] {
		return 0, ErrEventProcessed
	}
	m.sessions[sessionID] = true
	m.calls++
	m.credited[userID] += credits
	return m.credited[userID], nil
}

type fakeCheckout struct {
	lastParams stripe.CheckoutSessionParams
	err        error
}

func (f *fakeCheckout) CreateCheckoutSession(ctx context.Context, params stripe.CheckoutSessionParams) (*stripe.CheckoutSessionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastParams = params
	return &stripe.CheckoutSessionResponse{
		ID:  "cs_test_123",
		URL: "https://checkout.stripe.com/pay/cs_test_123",
	}, nil
}

func newTestService(repo Repository, checkout CheckoutClient) *Service {
	return NewService(repo, checkout, nil, testWebhookSecret,
		"https://app.example.com/billing/success", "https://app.example.com/billing/cancel")
}

func signHeader(payload []byte) string {
	now := time.Now()
	sig := stripe.ComputeSignature(now, payload, testWebhookSecret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), sig)
}

func signedPayload(t *testing.T, sessionID string, userID uuid.UUID, credits int64, paymentStatus string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": %d,
		"data": {
			"object": {
				"id": %q,
				"payment_status": %q,
				"amount_total": 999,
				"currency": "usd",
				"metadata": {"userId": %q, "credits": "%d", "packageId": "starter"}
			}
		}
	}`, time.Now().Unix(), sessionID, paymentStatus, userID, credits))

	return payload, signHeader(payload)
}

func TestCreateCheckout(t *testing.T) {
	checkout := &fakeCheckout{}
	svc := newTestService(newMemPurchaseRepo(), checkout)

	userID := uuid.New()
	result, err := svc.CreateCheckout(context.Background(), userID, "starter")
	if err != nil {
		t.Fatalf("CreateCheckout failed: %v", err)
	}
	if result.CheckoutURL == "" || result.SessionID != "cs_test_123" {
		t.Errorf("unexpected result %+v", result)
	}

	params := checkout.lastParams
	if params.AmountCents != 999 {
		t.Errorf("expected 999 cents, got %d", params.AmountCents)
	}
	if params.Metadata["userId"] != userID.String() {
		t.Errorf("metadata must carry the user id")
	}
	if params.Metadata["credits"] != "100" {
		t.Errorf("metadata must carry the credit amount, got %q", params.Metadata["credits"])
	}
	if params.Metadata["packageId"] != "starter" {
		t.Errorf("metadata must carry the package id")
	}
}

func TestCreateCheckoutUnknownPackage(t *testing.T) {
	svc := newTestService(newMemPurchaseRepo(), &fakeCheckout{})

	if _, err := svc.CreateCheckout(context.Background(), uuid.New(), "mega"); !errors.Is(err, ErrPackageNotFound) {
		t.Fatalf("expected ErrPackageNotFound, got %v", err)
	}
}

func TestWebhookCredits(t *testing.T) {
	repo := newMemPurchaseRepo()
	svc := newTestService(repo, &fakeCheckout{})

	userID := uuid.New()
	payload, header := signedPayload(t, "cs_1", userID, 100, "paid")

	if err := svc.HandleWebhook(context.Background(), payload, header); err != nil {
		t.Fatalf("HandleWebhook failed: %v", err)
	}
	if repo.credited[userID] != 100 {
		t.Errorf("expected 100 credits, got %d", repo.credited[userID])
	}
}

func TestWebhookReplayDoesNotDoubleCredit(t *testing.T) {
	repo := newMemPurchaseRepo()
	svc := newTestService(repo, &fakeCheckout{})

	userID := uuid.New()
	payload, header := signedPayload(t, "cs_replay", userID, 500, "paid")

	for i := 0; i < 3; i++ {
		if err := svc.HandleWebhook(context.Background(), payload, header); err != nil {
			t.Fatalf("delivery %d failed: %v", i, err)
		}
	}

	if repo.calls != 1 {
		t.Errorf("expected exactly one purchase, got %d", repo.calls)
	}
	if repo.credited[userID] != 500 {
		t.Errorf("expected 500 credits, got %d", repo.credited[userID])
	}
}

func TestWebhookRetryAfterTransientFailureCredits(t *testing.T) {
	repo := newMemPurchaseRepo()
	repo.failNext = errors.New("connection reset by peer")
	svc := newTestService(repo, &fakeCheckout{})

	userID := uuid.New()
	payload, header := signedPayload(t, "cs_retry", userID, 100, "paid")

	// first delivery fails after verification; the error must surface so
	// the sender retries, and nothing may be left half-committed
	if err := svc.HandleWebhook(context.Background(), payload, header); err == nil {
		t.Fatal("expected first delivery to fail")
	}
	if repo.credited[userID] != 0 {
		t.Fatalf("failed delivery must not credit, got %d", repo.credited[userID])
	}
	if repo.sessions["cs_retry"] {
		t.Fatal("failed delivery must not leave an event row")
	}

	// the retry is not a replay: it must credit
	if err := svc.HandleWebhook(context.Background(), payload, header); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if repo.credited[userID] != 100 {
		t.Errorf("expected 100 credits after retry, got %d", repo.credited[userID])
	}
	if repo.calls != 1 {
		t.Errorf("expected exactly one purchase, got %d", repo.calls)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	repo := newMemPurchaseRepo()
	svc := newTestService(repo, &fakeCheckout{})

	payload, _ := signedPayload(t, "cs_bad", uuid.New(), 100, "paid")
	header := fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix())

	err := svc.HandleWebhook(context.Background(), payload, header)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	// rejection happens before any side effect
	if repo.calls != 0 {
		t.Errorf("unverified webhook must not credit")
	}
	if len(repo.sessions) != 0 {
		t.Errorf("unverified webhook must not record events")
	}
}

func TestWebhookIgnoresUnpaidSession(t *testing.T) {
	repo := newMemPurchaseRepo()
	svc := newTestService(repo, &fakeCheckout{})

	payload, header := signedPayload(t, "cs_unpaid", uuid.New(), 100, "unpaid")
	if err := svc.HandleWebhook(context.Background(), payload, header); err != nil {
		t.Fatalf("HandleWebhook failed: %v", err)
	}
	if repo.calls != 0 {
		t.Errorf("unpaid session must not credit")
	}
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	repo := newMemPurchaseRepo()
	svc := newTestService(repo, &fakeCheckout{})

	payload := []byte(`{"id":"evt_2","type":"payment_intent.succeeded","created":1700000000,"data":{"object":{}}}`)

	if err := svc.HandleWebhook(context.Background(), payload, signHeader(payload)); err != nil {
		t.Fatalf("HandleWebhook failed: %v", err)
	}
	if repo.calls != 0 {
		t.Errorf("unrelated event must not credit")
	}
}

func TestWebhookRejectsBadMetadata(t *testing.T) {
	svc := newTestService(newMemPurchaseRepo(), &fakeCheckout{})

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_3",
		"type": "checkout.session.completed",
		"created": %d,
		"data": {"object": {"id": "cs_meta", "payment_status": "paid", "metadata": {"userId": "not-a-uuid", "credits": "100"}}}
	}`, time.Now().Unix()))

	if err := svc.HandleWebhook(context.Background(), payload, signHeader(payload)); !errors.Is(err, ErrBadMetadata) {
		t.Fatalf("expected ErrBadMetadata, got %v", err)
	}
}
