// internal/workers/execution/execute-scheduled/handler.go
package executescheduled

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"promptflow/internal/clients/dispatch"
	"promptflow/internal/clients/openai"
	apperrors "promptflow/internal/common/errors"
	"promptflow/internal/common/logger"
	"promptflow/internal/common/metrics"
	"promptflow/internal/models"
	"promptflow/internal/prompt"
)

const TaskType = "execute-scheduled"

type Handler struct {
	config      *Config
	store       TemplateStore
	completions CompletionClient
	dispatcher  Dispatcher
	logger      logger.Logger
}

func NewHandler(config *Config, store TemplateStore, completions CompletionClient, dispatcher Dispatcher, log logger.Logger) *Handler {
	return &Handler{
		config:      config,
		store:       store,
		completions: completions,
		dispatcher:  dispatcher,
		logger:      log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute runs every scheduled template whose frequency matches the input.
// Per-template failures are collected and do not abort the batch; only the
// initial template listing can fail the whole run, and even that is reported
// inside the result rather than as an error.
func (h *Handler) Execute(ctx context.Context, input *Input) *Result {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	log := h.logger.WithFields(map[string]interface{}{
		"batchId":   uuid.NewString(),
		"frequency": string(input.Frequency),
	})
	log.Info("running scheduled batch", nil)

	templates, err := h.store.ListByTriggerType(ctx, models.TriggerScheduled)
	if err != nil {
		metrics.ExecutionsFailed.WithLabelValues(string(models.TriggerScheduled), string(apperrors.ErrCodeTemplateListFailed)).Inc()
		log.WithError(err).Error("scheduled template listing failed", nil)
		return &Result{
			Executed: 0,
			Errors:   []string{fmt.Sprintf("Failed to fetch scheduled templates: %s", err.Error())},
		}
	}

	matching := filterByFrequency(templates, input.Frequency)
	metrics.ScheduledBatchSize.WithLabelValues(string(input.Frequency)).Observe(float64(len(matching)))

	result := &Result{Errors: []string{}}
	for _, template := range matching {
		if err := h.runTemplate(ctx, template); err != nil {
			metrics.ExecutionsFailed.WithLabelValues(string(models.TriggerScheduled), string(errorCode(err))).Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("Template %d (%s): %s", template.ID, template.Name, errorMessage(err)))
			continue
		}
		metrics.ExecutionsCompleted.WithLabelValues(string(models.TriggerScheduled)).Inc()
		result.Executed++
	}

	metrics.ExecutionDuration.WithLabelValues(string(models.TriggerScheduled)).Observe(time.Since(start).Seconds())
	log.Info("scheduled batch finished", map[string]interface{}{
		"matched":  len(matching),
		"executed": result.Executed,
		"failed":   len(result.Errors),
	})
	return result
}

// filterByFrequency keeps scheduled templates whose frequency matches.
// Templates with a missing schedule match nothing.
func filterByFrequency(templates []*models.PromptTemplate, frequency models.Frequency) []*models.PromptTemplate {
	matching := make([]*models.PromptTemplate, 0, len(templates))
	for _, template := range templates {
		if template.Schedule == nil {
			continue
		}
		if template.Schedule.Frequency == frequency {
			matching = append(matching, template)
		}
	}
	return matching
}

// runTemplate executes one template end to end. Scheduled runs carry no
// dynamic payload, so the content is completed as stored.
func (h *Handler) runTemplate(ctx context.Context, template *models.PromptTemplate) error {
	renderedPrompt := prompt.Render(template.TemplateContent, nil)

	generated, err := h.completions.Complete(ctx, template.OpenAIModel, renderedPrompt, nil)
	if err != nil {
		return err
	}

	_, err = h.dispatcher.Dispatch(ctx, template.DestinationURL, envelope{
		TemplateID:       template.ID,
		TemplateName:     template.Name,
		GeneratedContent: generated,
		ExecutedAt:       time.Now().UTC().Format(time.RFC3339),
	})
	return err
}

func errorMessage(err error) string {
	if errors.Is(err, openai.ErrEmptyCompletion) {
		return "No response generated from OpenAI"
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return "OpenAI API error: " + apiErr.Status
	}
	var deliveryErr *dispatch.DeliveryError
	if errors.As(err, &deliveryErr) {
		return "Webhook delivery error: " + deliveryErr.Status
	}
	return err.Error()
}

func errorCode(err error) apperrors.ErrorCode {
	if errors.Is(err, openai.ErrEmptyCompletion) {
		return apperrors.ErrCodeCompletionEmpty
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.ErrCodeCompletionFailed
	}
	var deliveryErr *dispatch.DeliveryError
	if errors.As(err, &deliveryErr) {
		return apperrors.ErrCodeDispatchFailed
	}
	return apperrors.ErrCodeUnknown
}
