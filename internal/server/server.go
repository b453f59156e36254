// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "promptflow/internal/common/errors"
	"promptflow/internal/common/logger"
	"promptflow/internal/common/observability"
	"promptflow/internal/common/validation"
	"promptflow/internal/models"
	"promptflow/internal/repository"
	executescheduled "promptflow/internal/workers/execution/execute-scheduled"
	executewebhook "promptflow/internal/workers/execution/execute-webhook"
)

// TemplateStore is the repository surface the API needs.
type TemplateStore interface {
	GetByID(ctx context.Context, id int64) (*models.PromptTemplate, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.PromptTemplate, error)
	Create(ctx context.Context, t *models.PromptTemplate) error
	Update(ctx context.Context, id int64, params repository.UpdateParams) (*models.PromptTemplate, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// UserStore checks template ownership at creation time.
type UserStore interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// WebhookExecutor runs a single webhook-triggered template.
type WebhookExecutor interface {
	Execute(ctx context.Context, input *executewebhook.Input) *executewebhook.Result
}

// ScheduledExecutor runs a batch of scheduled templates.
type ScheduledExecutor interface {
	Execute(ctx context.Context, input *executescheduled.Input) *executescheduled.Result
}

type Server struct {
	router    chi.Router
	templates TemplateStore
	users     UserStore
	webhook   WebhookExecutor
	scheduled ScheduledExecutor
	obs       *observability.Observability
	logger    logger.Logger

	executeValidator *validation.Validator
	createValidator  *validation.Validator
}

func New(templates TemplateStore, users UserStore, webhook WebhookExecutor, scheduled ScheduledExecutor, obs *observability.Observability, log logger.Logger, requestTimeout time.Duration) *Server {
	s := &Server{
		templates:        templates,
		users:            users,
		webhook:          webhook,
		scheduled:        scheduled,
		obs:              obs,
		logger:           log.WithFields(map[string]interface{}{"component": "http-server"}),
		executeValidator: validation.MustValidator(validation.ExecuteWebhookSchema),
		createValidator:  validation.MustValidator(validation.CreateTemplateSchema),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/webhooks/execute", s.handleExecuteWebhook)
		r.Post("/scheduled/run/{frequency}", s.handleRunScheduled)

		r.Route("/templates", func(r chi.Router) {
			r.Post("/", s.handleCreateTemplate)
			r.Get("/{id}", s.handleGetTemplate)
			r.Put("/{id}", s.handleUpdateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
		})

		r.Get("/users/{userID}/templates", s.handleListUserTemplates)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger tags every request with an id and logs the round trip.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("request handled", map[string]interface{}{
			"requestId":  requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"durationMs": time.Since(start).Milliseconds(),
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==========================
// Execution endpoints
// ==========================

func (s *Server) handleExecuteWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewValidationFailedError("unreadable request body"))
		return
	}
	if !s.validate(w, s.executeValidator, body) {
		return
	}

	var input executewebhook.Input
	if err := json.Unmarshal(body, &input); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewValidationFailedError(err.Error()))
		return
	}

	start := time.Now()
	result := s.webhook.Execute(r.Context(), &input)
	s.recordExecution(r.Context(), string(models.TriggerWebhook), result.Success, time.Since(start))

	writeJSON(w, webhookStatus(result), result)
}

// webhookStatus maps an execution result onto an HTTP status. Expected
// failures keep their result body; only the status line differs.
func webhookStatus(result *executewebhook.Result) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.Error {
	case "Prompt template not found":
		return http.StatusNotFound
	case "Template is not configured for webhook triggers":
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleRunScheduled(w http.ResponseWriter, r *http.Request) {
	frequency := models.Frequency(chi.URLParam(r, "frequency"))
	if !frequency.IsValid() {
		writeError(w, http.StatusBadRequest, apperrors.NewValidationFailedError("frequency must be one of hourly, daily, weekly"))
		return
	}

	start := time.Now()
	result := s.scheduled.Execute(r.Context(), &executescheduled.Input{Frequency: frequency})
	s.recordExecution(r.Context(), string(models.TriggerScheduled), len(result.Errors) == 0, time.Since(start))

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) recordExecution(ctx context.Context, triggerType string, success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	s.obs.RecordExecution(ctx, triggerType, status)
	s.obs.RecordExecutionDuration(ctx, elapsed, triggerType)
}

// ==========================
// Template CRUD
// ==========================

type createTemplateRequest struct {
	Name            string             `json:"name"`
	TemplateContent string             `json:"template_content"`
	OpenAIModel     string             `json:"openai_model"`
	TriggerType     models.TriggerType `json:"trigger_type"`
	Schedule        *models.Schedule   `json:"schedule"`
	WebhookURL      *string            `json:"webhook_url"`
	DestinationURL  string             `json:"destination_webhook_url"`
	UserID          int64              `json:"user_id"`
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewValidationFailedError("unreadable request body"))
		return
	}
	if !s.validate(w, s.createValidator, body) {
		return
	}

	var req createTemplateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewValidationFailedError(err.Error()))
		return
	}

	exists, err := s.users.Exists(r.Context(), req.UserID)
	if err != nil {
		s.logger.WithError(err).Error("owner lookup failed", nil)
		writeError(w, http.StatusInternalServerError, internalError(err))
		return
	}
	if !exists {
		writeError(w, http.StatusBadRequest, apperrors.NewValidationFailedError("user_id does not reference a known account"))
		return
	}

	template := &models.PromptTemplate{
		Name:            req.Name,
		TemplateContent: req.TemplateContent,
		OpenAIModel:     req.OpenAIModel,
		TriggerType:     req.TriggerType,
		Schedule:        req.Schedule,
		WebhookURL:      req.WebhookURL,
		DestinationURL:  req.DestinationURL,
		UserID:          req.UserID,
	}
	if err := s.templates.Create(r.Context(), template); err != nil {
		s.logger.WithError(err).Error("template create failed", nil)
		writeError(w, http.StatusInternalServerError, internalError(err))
		return
	}

	writeJSON(w, http.StatusCreated, template)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	template, err := s.templates.GetByID(r.Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("template lookup failed", nil)
		writeError(w, http.StatusInternalServerError, internalError(err))
		return
	}
	if template == nil {
		writeError(w, http.StatusNotFound, apperrors.NewTemplateNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, template)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	params, err := decodeUpdateParams(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewValidationFailedError(err.Error()))
		return
	}

	template, err := s.templates.Update(r.Context(), id, params)
	if err != nil {
		s.logger.WithError(err).Error("template update failed", nil)
		writeError(w, http.StatusInternalServerError, internalError(err))
		return
	}
	if template == nil {
		writeError(w, http.StatusNotFound, apperrors.NewTemplateNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, template)
}

// decodeUpdateParams turns a partial JSON document into UpdateParams. Key
// presence matters for schedule and webhook_url, where an explicit null means
// "clear the value", so the body is inspected as a raw field map.
func decodeUpdateParams(body io.Reader) (repository.UpdateParams, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&fields); err != nil {
		return repository.UpdateParams{}, err
	}

	var params repository.UpdateParams
	decode := func(key string, dst interface{}) error {
		raw, ok := fields[key]
		if !ok {
			return nil
		}
		return json.Unmarshal(raw, dst)
	}

	if err := decode("name", &params.Name); err != nil {
		return params, err
	}
	if err := decode("template_content", &params.TemplateContent); err != nil {
		return params, err
	}
	if err := decode("openai_model", &params.OpenAIModel); err != nil {
		return params, err
	}
	if err := decode("trigger_type", &params.TriggerType); err != nil {
		return params, err
	}
	if err := decode("destination_webhook_url", &params.DestinationURL); err != nil {
		return params, err
	}
	if raw, ok := fields["schedule"]; ok {
		params.SetSchedule = true
		if err := json.Unmarshal(raw, &params.Schedule); err != nil {
			return params, err
		}
	}
	if raw, ok := fields["webhook_url"]; ok {
		params.SetWebhookURL = true
		if err := json.Unmarshal(raw, &params.WebhookURL); err != nil {
			return params, err
		}
	}

	if params.TriggerType != nil && !params.TriggerType.IsValid() {
		return params, errInvalidTriggerType
	}
	return params, nil
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	deleted, err := s.templates.Delete(r.Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("template delete failed", nil)
		writeError(w, http.StatusInternalServerError, internalError(err))
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, apperrors.NewTemplateNotFoundError(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUserTemplates(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	templates, err := s.templates.ListByUser(r.Context(), userID)
	if err != nil {
		s.logger.WithError(err).Error("template list failed", nil)
		writeError(w, http.StatusInternalServerError, internalError(err))
		return
	}
	if templates == nil {
		templates = []*models.PromptTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

// ==========================
// Helpers
// ==========================

var errInvalidTriggerType = &invalidFieldError{"trigger_type must be one of scheduled, webhook"}

type invalidFieldError struct{ msg string }

func (e *invalidFieldError) Error() string { return e.msg }

func (s *Server) validate(w http.ResponseWriter, v *validation.Validator, body []byte) bool {
	violations, err := v.ValidateBytes(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewValidationFailedError(err.Error()))
		return false
	}
	if len(violations) > 0 {
		details, _ := json.Marshal(violations)
		writeError(w, http.StatusBadRequest, apperrors.NewValidationFailedError(string(details)))
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, apperrors.NewValidationFailedError(param+" must be a positive integer"))
		return 0, false
	}
	return id, true
}

func internalError(err error) *apperrors.StandardError {
	return &apperrors.StandardError{
		Code:      apperrors.ErrCodeUnknown,
		Message:   "Internal error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, stdErr *apperrors.StandardError) {
	writeJSON(w, status, map[string]interface{}{"error": stdErr})
}
