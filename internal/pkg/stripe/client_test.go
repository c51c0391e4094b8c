package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateCheckoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("mode"); got != "payment" {
			t.Errorf("expected mode payment, got %q", got)
		}
		if got := r.PostForm.Get("line_items[0][price_data][unit_amount]"); got != "999" {
			t.Errorf("expected unit_amount 999, got %q", got)
		}
		if got := r.PostForm.Get("metadata[userId]"); got != "u-1" {
			t.Errorf("expected userId metadata, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_123","url":"https://checkout.stripe.com/pay/cs_test_123","status":"open"}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("sk_test_key", server.URL)
	session, err := client.CreateCheckoutSession(context.Background(), CheckoutSessionParams{
		ProductName: "Starter Pack",
		AmountCents: 999,
		SuccessURL:  "https://app.example.com/billing/success",
		CancelURL:   "https://app.example.com/billing/cancel",
		Metadata:    map[string]string{"userId": "u-1", "credits": "100", "packageId": "starter"},
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession failed: %v", err)
	}
	if session.ID != "cs_test_123" {
		t.Errorf("expected session cs_test_123, got %s", session.ID)
	}
	if session.URL == "" {
		t.Error("expected redirect url")
	}
}

func TestCreateCheckoutSessionAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"parameter_missing","message":"Missing required param: cancel_url."}}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("sk_test_key", server.URL)
	_, err := client.CreateCheckoutSession(context.Background(), CheckoutSessionParams{
		ProductName: "Starter Pack",
		AmountCents: 999,
	})
	if err == nil {
		t.Fatal("expected api error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Code != "parameter_missing" {
		t.Errorf("expected code parameter_missing, got %s", apiErr.Code)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", apiErr.StatusCode)
	}
}
