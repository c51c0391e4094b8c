package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.stripe.com"
	defaultTimeout = 30 * time.Second
)

// Client is a minimal Stripe REST client covering hosted Checkout Sessions.
// Constructed explicitly at bootstrap; no package-level configuration.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

// NewClient creates a Stripe client
func NewClient(secretKey string) *Client {
	return &Client{
		baseURL:   defaultBaseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: defaultTimeout},
	}
}

// NewClientWithBaseURL creates a client against a custom API base (tests)
func NewClientWithBaseURL(secretKey, baseURL string) *Client {
	c := NewClient(secretKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// CheckoutSessionParams describes a hosted checkout session for one
// credit package. Metadata round-trips through the webhook and is the
// source of truth for crediting.
type CheckoutSessionParams struct {
	ProductName string
	Description string
	AmountCents int64
	Currency    string
	Quantity    int64
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutSessionResponse is the subset of the created session we use
type CheckoutSessionResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// APIError is a structured Stripe API error
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

// CreateCheckoutSession creates a hosted Checkout Session and returns its
// id and redirect URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSessionResponse, error) {
	if strings.TrimSpace(c.secretKey) == "" {
		return nil, fmt.Errorf("stripe secret key is not configured")
	}

	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}
	quantity := params.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("line_items[0][quantity]", strconv.FormatInt(quantity, 10))
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", params.ProductName)
	if params.Description != "" {
		form.Set("line_items[0][price_data][product_data][description]", params.Description)
	}
	for key, value := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	endpoint := c.baseURL + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("stripe checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	var session CheckoutSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("stripe checkout decode: %w", err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("stripe checkout response missing session id")
	}

	return &session, nil
}

func parseAPIError(status int, body []byte) error {
	var wrapper struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil || wrapper.Error.Message == "" {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{
		StatusCode: status,
		Code:       wrapper.Error.Code,
		Message:    wrapper.Error.Message,
	}
}
