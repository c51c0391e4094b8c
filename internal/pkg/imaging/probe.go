package imaging

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	// Register stdlib decoders for DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

const (
	// probeBodyLimit caps how much of the image is fetched. Dimension
	// headers sit in the first few KB for every supported format, but
	// progressive JPEGs can push them further out.
	probeBodyLimit = 1 << 20 // 1 MiB
	probeTimeout   = 15 * time.Second
)

// Prober reports the pixel dimensions of an image reachable by URL.
// The generation orchestrator prices jobs from these dimensions.
type Prober interface {
	Probe(ctx context.Context, imageURL string) (width, height int, err error)
}

// HTTPProber fetches image headers over HTTP and decodes their dimensions
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober with its own bounded HTTP client
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Probe downloads just enough of the image at imageURL to decode its
// dimensions. The body is capped; images whose headers fall outside the
// cap fail with a decode error rather than an unbounded download.
func (p *HTTPProber) Probe(ctx context.Context, imageURL string) (int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("probe request for %s: %w", imageURL, err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("probe fetch for %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("probe fetch for %s: unexpected status %d", imageURL, resp.StatusCode)
	}

	cfg, _, err := image.DecodeConfig(io.LimitReader(resp.Body, probeBodyLimit))
	if err != nil {
		return 0, 0, fmt.Errorf("probe decode for %s: %w", imageURL, err)
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("probe decode for %s: empty dimensions", imageURL)
	}

	return cfg.Width, cfg.Height, nil
}
