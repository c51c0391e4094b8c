package falai

import "fmt"

// Queue statuses returned by the fal.run queue API.
const (
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// SubmitResponse is returned when a request enters the queue
type SubmitResponse struct {
	RequestID   string `json:"request_id"`
	ResponseURL string `json:"response_url"`
	StatusURL   string `json:"status_url"`
	CancelURL   string `json:"cancel_url"`
}

// StatusResponse reports where a queued request currently stands
type StatusResponse struct {
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
	ResponseURL   string `json:"response_url"`
}

// Image is one generated image in a model response
type Image struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// Output is the completed model response. Models differ in their extra
// fields; every image model we call returns an images array.
type Output struct {
	Images      []Image `json:"images"`
	Seed        int64   `json:"seed"`
	Prompt      string  `json:"prompt"`
	HasNSFW     []bool  `json:"has_nsfw_concepts"`
	Description string  `json:"description"`
}

// FirstImageURL returns the first generated image URL, or an error if the
// model returned an unexpected structure.
func (o *Output) FirstImageURL() (string, error) {
	if len(o.Images) == 0 || o.Images[0].URL == "" {
		return "", ErrNoImage
	}
	return o.Images[0].URL, nil
}

// APIError is a structured error from the inference API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fal api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}
