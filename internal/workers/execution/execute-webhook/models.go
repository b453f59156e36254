// internal/workers/execution/execute-webhook/models.go
package executewebhook

import (
	"context"
	"encoding/json"

	"promptflow/internal/models"
)

// Input is a single webhook trigger event.
type Input struct {
	TemplateID int64                  `json:"template_id"`
	Payload    map[string]interface{} `json:"payload"`
}

// Result is the structured outcome of one webhook execution. Expected
// failures are reported here, never as a returned error.
type Result struct {
	Success  bool      `json:"success"`
	Response *Response `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Response carries the artifacts of a successful execution.
type Response struct {
	AIResponse      string          `json:"ai_response"`
	WebhookResponse json.RawMessage `json:"webhook_response"`
	RenderedPrompt  string          `json:"rendered_prompt"`
}

// envelope is the document POSTed to the destination URL.
type envelope struct {
	TemplateID      int64                  `json:"template_id"`
	OriginalPayload map[string]interface{} `json:"original_payload"`
	RenderedPrompt  string                 `json:"rendered_prompt"`
	AIResponse      string                 `json:"ai_response"`
	Timestamp       string                 `json:"timestamp"`
}

// TemplateStore is the repository surface this worker needs. GetByID returns
// (nil, nil) when the template does not exist.
type TemplateStore interface {
	GetByID(ctx context.Context, id int64) (*models.PromptTemplate, error)
}

// CompletionClient performs one chat-completion round trip.
type CompletionClient interface {
	Complete(ctx context.Context, model, prompt string, temperature *float64) (string, error)
}

// Dispatcher delivers the generated content to a destination URL.
type Dispatcher interface {
	Dispatch(ctx context.Context, url string, envelope interface{}) (json.RawMessage, error)
}
