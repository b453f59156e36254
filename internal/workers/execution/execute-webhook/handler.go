// internal/workers/execution/execute-webhook/handler.go
package executewebhook

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

const TaskType = "execute-webhook"

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

// Execute runs one webhook-triggered template: lookup, trigger-type check,
// render, complete, dispatch. Every expected failure is terminal and lands in
// the result object; Execute itself never fails.
func (h *Handler) Execute(ctx context.Context, input *Input) *Result {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	log := h.logger.WithFields(map[string]interface{}{
		"executionId": uuid.NewString(),
		"templateId":  input.TemplateID,
	})
	log.Info("executing webhook template", nil)

	result, code := h.execute(ctx, input, log)
	if result.Success {
		metrics.ExecutionsCompleted.WithLabelValues(string(models.TriggerWebhook)).Inc()
	} else {
		metrics.ExecutionsFailed.WithLabelValues(string(models.TriggerWebhook), string(code)).Inc()
		log.Error("webhook execution failed", map[string]interface{}{
			"errorCode": string(code),
			"error":     result.Error,
		})
	}
	metrics.ExecutionDuration.WithLabelValues(string(models.TriggerWebhook)).Observe(time.Since(start).Seconds())
	return result
}

func (h *Handler) execute(ctx context.Context, input *Input, log logger.Logger) (*Result, apperrors.ErrorCode) {
	template, err := h.store.GetByID(ctx, input.TemplateID)
	if err != nil {
		return failure(err.Error()), apperrors.ErrCodeUnknown
	}
	if template == nil {
		return failure("Prompt template not found"), apperrors.ErrCodeTemplateNotFound
	}

	if template.TriggerType != models.TriggerWebhook {
		return failure("Template is not configured for webhook triggers"), apperrors.ErrCodeTriggerTypeMismatch
	}

	renderedPrompt := prompt.Render(template.TemplateContent, input.Payload)

	temperature := h.config.Temperature
	aiResponse, err := h.completions.Complete(ctx, template.OpenAIModel, renderedPrompt, &temperature)
	if err != nil {
		if errors.Is(err, openai.ErrEmptyCompletion) {
			return failure("No response generated from OpenAI"), apperrors.ErrCodeCompletionEmpty
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			message := apiErr.Message
			if message == "" {
				message = "Unknown error"
			}
			return failure("OpenAI API error: " + message), apperrors.ErrCodeCompletionFailed
		}
		return failure(err.Error()), apperrors.ErrCodeCompletionFailed
	}

	webhookResponse, err := h.dispatcher.Dispatch(ctx, template.DestinationURL, envelope{
		TemplateID:      input.TemplateID,
		OriginalPayload: input.Payload,
		RenderedPrompt:  renderedPrompt,
		AIResponse:      aiResponse,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		var deliveryErr *dispatch.DeliveryError
		if errors.As(err, &deliveryErr) {
			return failure(fmt.Sprintf("Webhook delivery failed: %s", deliveryErr.Status)), apperrors.ErrCodeDispatchFailed
		}
		return failure(err.Error()), apperrors.ErrCodeDispatchFailed
	}

	log.Info("webhook execution completed", map[string]interface{}{
		"destination": template.DestinationURL,
	})

	return &Result{
		Success: true,
		Response: &Response{
			AIResponse:      aiResponse,
			WebhookResponse: webhookResponse,
			RenderedPrompt:  renderedPrompt,
		},
	}, ""
}

func failure(message string) *Result {
	return &Result{Success: false, Error: message}
}
