// internal/workers/execution/execute-scheduled/models.go
package executescheduled

import (
	"context"
	"encoding/json"

	"promptflow/internal/models"
)

// Input selects which schedule bucket to run.
type Input struct {
	Frequency models.Frequency `json:"frequency"`
}

// Result aggregates one batch run. Per-template failures are collected in
// Errors; they never abort the batch.
type Result struct {
	Executed int      `json:"executed"`
	Errors   []string `json:"errors"`
}

// envelope is the document POSTed to each template's destination URL.
type envelope struct {
	TemplateID       int64  `json:"template_id"`
	TemplateName     string `json:"template_name"`
	GeneratedContent string `json:"generated_content"`
	ExecutedAt       string `json:"executed_at"`
}

// TemplateStore is the repository surface this worker needs.
type TemplateStore interface {
	ListByTriggerType(ctx context.Context, triggerType models.TriggerType) ([]*models.PromptTemplate, error)
}

// CompletionClient performs one chat-completion round trip.
type CompletionClient interface {
	Complete(ctx context.Context, model, prompt string, temperature *float64) (string, error)
}

// Dispatcher delivers the generated content to a destination URL.
type Dispatcher interface {
	Dispatch(ctx context.Context, url string, envelope interface{}) (json.RawMessage, error)
}
