package falai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const testModel = "fal-ai/flux/dev"

func queueServer(t *testing.T, finalStatus string, output string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /"+testModel, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Key test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var input map[string]any
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			t.Errorf("decode input: %v", err)
		}
		json.NewEncoder(w).Encode(SubmitResponse{RequestID: "req-1"})
	})
	mux.HandleFunc("GET /"+testModel+"/requests/req-1/status", func(w http.ResponseWriter, r *http.Request) {
		status := StatusInProgress
		if polls.Add(1) >= 2 {
			status = finalStatus
		}
		json.NewEncoder(w).Encode(StatusResponse{Status: status})
	})
	mux.HandleFunc("GET /"+testModel+"/requests/req-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, output)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &polls
}

func testClient(serverURL string) *Client {
	return NewClient("test-key",
		WithBaseURL(serverURL),
		WithPollInterval(5*time.Millisecond),
		WithTimeout(2*time.Second),
	)
}

func TestSubscribeCompleted(t *testing.T) {
	server, polls := queueServer(t, StatusCompleted,
		`{"images":[{"url":"https://cdn.example.com/out.png","content_type":"image/png","width":1024,"height":1024}],"seed":42}`)

	output, err := testClient(server.URL).Subscribe(context.Background(), testModel, map[string]any{
		"prompt":    "a lighthouse at dusk",
		"image_url": "https://cdn.example.com/in.png",
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	url, err := output.FirstImageURL()
	if err != nil {
		t.Fatalf("FirstImageURL failed: %v", err)
	}
	if url != "https://cdn.example.com/out.png" {
		t.Errorf("unexpected image url %s", url)
	}
	if polls.Load() < 2 {
		t.Errorf("expected at least 2 status polls, got %d", polls.Load())
	}
}

func TestSubscribeFailed(t *testing.T) {
	server, _ := queueServer(t, StatusFailed, `{}`)

	_, err := testClient(server.URL).Subscribe(context.Background(), testModel, map[string]any{"prompt": "x"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestSubscribeContextCancelled(t *testing.T) {
	server, _ := queueServer(t, StatusInProgress, `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(server.URL).Subscribe(ctx, testModel, map[string]any{"prompt": "x"})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestFirstImageURLMissing(t *testing.T) {
	output := &Output{Description: "done"}
	if _, err := output.FirstImageURL(); !errors.Is(err, ErrNoImage) {
		t.Errorf("expected ErrNoImage, got %v", err)
	}
}

func TestSubmitAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":"unauthorized","message":"invalid api key"}}`)
	}))
	t.Cleanup(server.Close)

	_, err := testClient(server.URL).Submit(context.Background(), testModel, map[string]any{"prompt": "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "invalid api key" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}
