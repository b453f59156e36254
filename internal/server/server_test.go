// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptflow/internal/common/logger"
	"promptflow/internal/common/observability"
	"promptflow/internal/models"
	"promptflow/internal/repository"
	executescheduled "promptflow/internal/workers/execution/execute-scheduled"
	executewebhook "promptflow/internal/workers/execution/execute-webhook"
)

// ==========================
// Test Fakes
// ==========================

type fakeTemplates struct {
	byID      map[int64]*models.PromptTemplate
	byUser    map[int64][]*models.PromptTemplate
	createErr error
	created   *models.PromptTemplate
	updated   *models.PromptTemplate
	gotUpdate repository.UpdateParams
	deleted   map[int64]bool
}

func (f *fakeTemplates) GetByID(_ context.Context, id int64) (*models.PromptTemplate, error) {
	return f.byID[id], nil
}

func (f *fakeTemplates) ListByUser(_ context.Context, userID int64) ([]*models.PromptTemplate, error) {
	return f.byUser[userID], nil
}

func (f *fakeTemplates) Create(_ context.Context, t *models.PromptTemplate) error {
	if f.createErr != nil {
		return f.createErr
	}
	t.ID = 101
	f.created = t
	return nil
}

func (f *fakeTemplates) Update(_ context.Context, id int64, params repository.UpdateParams) (*models.PromptTemplate, error) {
	f.gotUpdate = params
	if f.updated != nil && f.updated.ID == id {
		return f.updated, nil
	}
	return nil, nil
}

func (f *fakeTemplates) Delete(_ context.Context, id int64) (bool, error) {
	return f.deleted[id], nil
}

type fakeUsers struct {
	known map[int64]bool
}

func (f *fakeUsers) Exists(_ context.Context, id int64) (bool, error) {
	return f.known[id], nil
}

type fakeWebhookExecutor struct {
	result   *executewebhook.Result
	gotInput *executewebhook.Input
}

func (f *fakeWebhookExecutor) Execute(_ context.Context, input *executewebhook.Input) *executewebhook.Result {
	f.gotInput = input
	return f.result
}

type fakeScheduledExecutor struct {
	result   *executescheduled.Result
	gotInput *executescheduled.Input
}

func (f *fakeScheduledExecutor) Execute(_ context.Context, input *executescheduled.Input) *executescheduled.Result {
	f.gotInput = input
	return f.result
}

type serverFixture struct {
	templates *fakeTemplates
	users     *fakeUsers
	webhook   *fakeWebhookExecutor
	scheduled *fakeScheduledExecutor
	server    *Server
}

func newFixture(t *testing.T) *serverFixture {
	f := &serverFixture{
		templates: &fakeTemplates{
			byID:    map[int64]*models.PromptTemplate{},
			byUser:  map[int64][]*models.PromptTemplate{},
			deleted: map[int64]bool{},
		},
		users:     &fakeUsers{known: map[int64]bool{1: true}},
		webhook:   &fakeWebhookExecutor{result: &executewebhook.Result{Success: true}},
		scheduled: &fakeScheduledExecutor{result: &executescheduled.Result{Errors: []string{}}},
	}
	f.server = New(f.templates, f.users, f.webhook, f.scheduled, observability.New("test"), logger.NewTestLogger(t), 30*time.Second)
	return f
}

func (f *serverFixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

// ==========================
// Execution endpoints
// ==========================

func TestServer_ExecuteWebhook_Success(t *testing.T) {
	f := newFixture(t)
	f.webhook.result = &executewebhook.Result{
		Success: true,
		Response: &executewebhook.Response{
			AIResponse:     "AI reply",
			RenderedPrompt: "Hello X",
		},
	}

	rec := f.do(http.MethodPost, "/api/webhooks/execute", map[string]interface{}{
		"template_id": 7,
		"payload":     map[string]interface{}{"name": "X"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.webhook.gotInput)
	assert.Equal(t, int64(7), f.webhook.gotInput.TemplateID)
	assert.Equal(t, "X", f.webhook.gotInput.Payload["name"])

	var result executewebhook.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "AI reply", result.Response.AIResponse)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestServer_ExecuteWebhook_ValidationFailure(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{name: "missing template_id", body: map[string]interface{}{"payload": map[string]interface{}{}}},
		{name: "non-integer template_id", body: map[string]interface{}{"template_id": "seven"}},
		{name: "unknown field", body: map[string]interface{}{"template_id": 7, "extra": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			rec := f.do(http.MethodPost, "/api/webhooks/execute", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, f.webhook.gotInput)
			assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
		})
	}
}

func TestServer_ExecuteWebhook_FailureStatusMapping(t *testing.T) {
	tests := []struct {
		name           string
		resultError    string
		expectedStatus int
	}{
		{name: "not found", resultError: "Prompt template not found", expectedStatus: http.StatusNotFound},
		{name: "wrong trigger type", resultError: "Template is not configured for webhook triggers", expectedStatus: http.StatusBadRequest},
		{name: "upstream failure", resultError: "OpenAI API error: Incorrect API key provided", expectedStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.webhook.result = &executewebhook.Result{Success: false, Error: tt.resultError}

			rec := f.do(http.MethodPost, "/api/webhooks/execute", map[string]interface{}{"template_id": 7})

			assert.Equal(t, tt.expectedStatus, rec.Code)
			var result executewebhook.Result
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			assert.Equal(t, tt.resultError, result.Error)
		})
	}
}

func TestServer_RunScheduled(t *testing.T) {
	f := newFixture(t)
	f.scheduled.result = &executescheduled.Result{Executed: 3, Errors: []string{"Template 9 (x): boom"}}

	rec := f.do(http.MethodPost, "/api/scheduled/run/daily", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.scheduled.gotInput)
	assert.Equal(t, models.FrequencyDaily, f.scheduled.gotInput.Frequency)

	var result executescheduled.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Executed)
	assert.Len(t, result.Errors, 1)
}

func TestServer_RunScheduled_InvalidFrequency(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/scheduled/run/fortnightly", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, f.scheduled.gotInput)
}

// ==========================
// Template CRUD
// ==========================

func TestServer_CreateTemplate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/templates", map[string]interface{}{
		"name":                    "digest",
		"template_content":        "Summarize {{topic}}",
		"openai_model":            "gpt-4",
		"trigger_type":            "scheduled",
		"schedule":                map[string]interface{}{"frequency": "daily"},
		"destination_webhook_url": "https://dest.example.com/hook",
		"user_id":                 1,
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, f.templates.created)
	assert.Equal(t, "digest", f.templates.created.Name)
	require.NotNil(t, f.templates.created.Schedule)
	assert.Equal(t, models.FrequencyDaily, f.templates.created.Schedule.Frequency)

	var created models.PromptTemplate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(101), created.ID)
}

func TestServer_CreateTemplate_SchemaViolations(t *testing.T) {
	base := func() map[string]interface{} {
		return map[string]interface{}{
			"name":                    "digest",
			"template_content":        "Summarize {{topic}}",
			"trigger_type":            "webhook",
			"destination_webhook_url": "https://dest.example.com/hook",
			"user_id":                 1,
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{name: "scheduled without schedule", mutate: func(m map[string]interface{}) {
			m["trigger_type"] = "scheduled"
		}},
		{name: "webhook with schedule", mutate: func(m map[string]interface{}) {
			m["schedule"] = map[string]interface{}{"frequency": "daily"}
		}},
		{name: "unknown model", mutate: func(m map[string]interface{}) {
			m["openai_model"] = "gpt-99"
		}},
		{name: "unknown frequency", mutate: func(m map[string]interface{}) {
			m["trigger_type"] = "scheduled"
			m["schedule"] = map[string]interface{}{"frequency": "fortnightly"}
		}},
		{name: "missing destination", mutate: func(m map[string]interface{}) {
			delete(m, "destination_webhook_url")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			body := base()
			tt.mutate(body)

			rec := f.do(http.MethodPost, "/api/templates", body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, f.templates.created)
		})
	}
}

func TestServer_CreateTemplate_UnknownOwner(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/templates", map[string]interface{}{
		"name":                    "digest",
		"template_content":        "x",
		"trigger_type":            "webhook",
		"destination_webhook_url": "https://dest.example.com/hook",
		"user_id":                 42,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, f.templates.created)
	assert.Contains(t, rec.Body.String(), "known account")
}

func TestServer_GetTemplate(t *testing.T) {
	f := newFixture(t)
	f.templates.byID[7] = &models.PromptTemplate{ID: 7, Name: "greeting", TriggerType: models.TriggerWebhook}

	rec := f.do(http.MethodGet, "/api/templates/7", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got models.PromptTemplate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "greeting", got.Name)
}

func TestServer_GetTemplate_NotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/templates/9999999", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "TEMPLATE_NOT_FOUND")
}

func TestServer_UpdateTemplate_PartialFields(t *testing.T) {
	f := newFixture(t)
	f.templates.updated = &models.PromptTemplate{ID: 7, Name: "renamed"}

	rec := f.do(http.MethodPut, "/api/templates/7", map[string]interface{}{
		"name":     "renamed",
		"schedule": nil,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.templates.gotUpdate.Name)
	assert.Equal(t, "renamed", *f.templates.gotUpdate.Name)
	// Explicit null clears the schedule; absent fields stay untouched.
	assert.True(t, f.templates.gotUpdate.SetSchedule)
	assert.Nil(t, f.templates.gotUpdate.Schedule)
	assert.False(t, f.templates.gotUpdate.SetWebhookURL)
	assert.Nil(t, f.templates.gotUpdate.TemplateContent)
}

func TestServer_UpdateTemplate_NotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/api/templates/8", map[string]interface{}{"name": "renamed"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_DeleteTemplate(t *testing.T) {
	f := newFixture(t)
	f.templates.deleted[7] = true

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/templates/7", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/templates/8", nil).Code)
}

func TestServer_ListUserTemplates(t *testing.T) {
	f := newFixture(t)
	f.templates.byUser[1] = []*models.PromptTemplate{
		{ID: 1, Name: "a"},
		{ID: 2, Name: "b"},
	}

	rec := f.do(http.MethodGet, "/api/users/1/templates", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got []*models.PromptTemplate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestServer_ListUserTemplates_EmptyIsArray(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/users/1/templates", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
