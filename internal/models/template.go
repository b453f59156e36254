// internal/models/template.go
package models

import "time"

// TriggerType determines how a template is executed.
type TriggerType string

const (
	TriggerScheduled TriggerType = "scheduled"
	TriggerWebhook   TriggerType = "webhook"
)

// IsValid reports whether t is a known trigger type.
func (t TriggerType) IsValid() bool {
	return t == TriggerScheduled || t == TriggerWebhook
}

// Frequency is the cadence tag a scheduler tick selects templates by.
type Frequency string

const (
	FrequencyHourly Frequency = "hourly"
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// IsValid reports whether f is a known frequency.
func (f Frequency) IsValid() bool {
	return f == FrequencyHourly || f == FrequencyDaily || f == FrequencyWeekly
}

// OpenAIModels is the closed set of completion models a template may target.
var OpenAIModels = map[string]bool{
	"gpt-4":             true,
	"gpt-4-turbo":       true,
	"gpt-3.5-turbo":     true,
	"gpt-3.5-turbo-16k": true,
}

const DefaultOpenAIModel = "gpt-3.5-turbo"

// Schedule configures when a scheduled template fires.
type Schedule struct {
	Frequency Frequency `json:"frequency"`
}

// PromptTemplate is a reusable prompt bound to a trigger and a destination.
// Schedule is non-nil only for scheduled templates; the execution flows treat
// a scheduled template with a nil schedule as matching no frequency.
type PromptTemplate struct {
	ID              int64       `json:"id"`
	Name            string      `json:"name"`
	TemplateContent string      `json:"template_content"`
	OpenAIModel     string      `json:"openai_model"`
	TriggerType     TriggerType `json:"trigger_type"`
	Schedule        *Schedule   `json:"schedule"`
	WebhookURL      *string     `json:"webhook_url"`
	DestinationURL  string      `json:"destination_webhook_url"`
	UserID          int64       `json:"user_id"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
