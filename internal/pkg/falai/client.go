package falai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNoImage is returned when a completed response carries no image
	ErrNoImage = errors.New("no image generated: unexpected response structure")

	// ErrGenerationFailed is returned when the queue reports FAILED
	ErrGenerationFailed = errors.New("generation failed")
)

const (
	defaultBaseURL      = "https://queue.fal.run"
	defaultPollInterval = 2 * time.Second
	defaultTimeout      = 5 * time.Minute
)

// Client talks to the fal.run queue API: submit a request, poll its
// status, fetch the result. One client is shared across all models.
type Client struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
	timeout      time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the queue API base URL (tests)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithPollInterval overrides the status poll interval
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithTimeout overrides the overall per-request deadline
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClient creates a fal queue client
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:      defaultBaseURL,
		apiKey:       apiKey,
		http:         &http.Client{Timeout: 60 * time.Second},
		pollInterval: defaultPollInterval,
		timeout:      defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit enqueues an inference request for model and returns its queue entry
func (c *Client) Submit(ctx context.Context, model string, input map[string]any) (*SubmitResponse, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode model input: %w", err)
	}

	var submitted SubmitResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.baseURL, model), bytes.NewReader(body), &submitted); err != nil {
		return nil, err
	}
	if submitted.RequestID == "" {
		return nil, fmt.Errorf("submit response missing request id")
	}

	return &submitted, nil
}

// Status fetches the current queue status of a request
func (c *Client) Status(ctx context.Context, model, requestID string) (*StatusResponse, error) {
	var status StatusResponse
	url := fmt.Sprintf("%s/%s/requests/%s/status", c.baseURL, model, requestID)
	if err := c.do(ctx, http.MethodGet, url, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Result fetches the completed output of a request
func (c *Client) Result(ctx context.Context, model, requestID string) (*Output, error) {
	var output Output
	url := fmt.Sprintf("%s/%s/requests/%s", c.baseURL, model, requestID)
	if err := c.do(ctx, http.MethodGet, url, nil, &output); err != nil {
		return nil, err
	}
	return &output, nil
}

// Subscribe runs the full queue round trip: submit the input, poll until
// the request leaves the queue, then fetch the output. It blocks until
// completion, failure, timeout, or context cancellation.
func (c *Client) Subscribe(ctx context.Context, model string, input map[string]any) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	submitted, err := c.Submit(ctx, model, input)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for model %s: %w", model, ctx.Err())
		case <-ticker.C:
		}

		status, err := c.Status(ctx, model, submitted.RequestID)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case StatusInQueue, StatusInProgress:
			continue
		case StatusCompleted:
			return c.Result(ctx, model, submitted.RequestID)
		case StatusFailed:
			return nil, fmt.Errorf("model %s request %s: %w", model, submitted.RequestID, ErrGenerationFailed)
		default:
			return nil, fmt.Errorf("model %s request %s: unknown queue status %q", model, submitted.RequestID, status.Status)
		}
	}
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fal api call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fal api response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode fal api response: %w", err)
		}
	}

	return nil
}

func parseAPIError(status int, body []byte) error {
	var wrapper struct {
		Detail any `json:"detail"`
		Error  struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil {
		if wrapper.Error.Message != "" {
			return &APIError{StatusCode: status, Code: wrapper.Error.Code, Message: wrapper.Error.Message}
		}
		if wrapper.Detail != nil {
			return &APIError{StatusCode: status, Message: fmt.Sprintf("%v", wrapper.Detail)}
		}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}
