// internal/repository/templates.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"promptflow/internal/models"
)

const templateColumns = `id, name, template_content, openai_model, trigger_type, schedule, webhook_url, destination_webhook_url, user_id, created_at, updated_at`

// Templates is the Postgres-backed template repository. GetByID returns
// (nil, nil) for a missing template; callers translate that into their own
// not-found handling.
type Templates struct {
	db *sql.DB
}

func NewTemplates(db *sql.DB) *Templates {
	return &Templates{db: db}
}

func scanTemplate(row interface {
	Scan(dest ...interface{}) error
}) (*models.PromptTemplate, error) {
	var (
		t           models.PromptTemplate
		scheduleRaw []byte
		webhookURL  sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.TemplateContent, &t.OpenAIModel, &t.TriggerType,
		&scheduleRaw, &webhookURL, &t.DestinationURL, &t.UserID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(scheduleRaw) > 0 && string(scheduleRaw) != "null" {
		var s models.Schedule
		if err := json.Unmarshal(scheduleRaw, &s); err != nil {
			return nil, fmt.Errorf("decode schedule for template %d: %w", t.ID, err)
		}
		t.Schedule = &s
	}
	if webhookURL.Valid {
		t.WebhookURL = &webhookURL.String
	}
	return &t, nil
}

// GetByID fetches one template, or nil when it does not exist.
func (r *Templates) GetByID(ctx context.Context, id int64) (*models.PromptTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM prompt_templates WHERE id = $1`
	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get template %d: %w", id, err)
	}
	return t, nil
}

// ListByTriggerType returns all templates with the given trigger type in id
// order.
func (r *Templates) ListByTriggerType(ctx context.Context, trigger models.TriggerType) ([]*models.PromptTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM prompt_templates WHERE trigger_type = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, string(trigger))
	if err != nil {
		return nil, fmt.Errorf("list templates by trigger type: %w", err)
	}
	defer rows.Close()

	var templates []*models.PromptTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template row: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template rows: %w", err)
	}
	return templates, nil
}

// ListByUser returns all templates owned by the given account in id order.
func (r *Templates) ListByUser(ctx context.Context, userID int64) ([]*models.PromptTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM prompt_templates WHERE user_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list templates by user: %w", err)
	}
	defer rows.Close()

	var templates []*models.PromptTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template row: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template rows: %w", err)
	}
	return templates, nil
}

// Create inserts a template and fills the generated id and timestamps. The
// schedule/trigger invariant is enforced here, at write time; the execution
// flows never trust it blindly on the read path.
func (r *Templates) Create(ctx context.Context, t *models.PromptTemplate) error {
	if t.TriggerType == models.TriggerScheduled && t.Schedule == nil {
		return fmt.Errorf("scheduled template requires a schedule")
	}
	if t.TriggerType == models.TriggerWebhook && t.Schedule != nil {
		return fmt.Errorf("webhook template must not have a schedule")
	}
	if t.OpenAIModel == "" {
		t.OpenAIModel = models.DefaultOpenAIModel
	}

	var scheduleRaw interface{}
	if t.Schedule != nil {
		raw, err := json.Marshal(t.Schedule)
		if err != nil {
			return fmt.Errorf("encode schedule: %w", err)
		}
		scheduleRaw = raw
	}

	var webhookURL interface{}
	if t.WebhookURL != nil {
		webhookURL = *t.WebhookURL
	}

	query := `INSERT INTO prompt_templates
		(name, template_content, openai_model, trigger_type, schedule, webhook_url, destination_webhook_url, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.TemplateContent, t.OpenAIModel, string(t.TriggerType),
		scheduleRaw, webhookURL, t.DestinationURL, t.UserID,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// UpdateParams lists the fields a partial update may change. Nil means leave
// unchanged; SetSchedule distinguishes "clear the schedule" from "no change".
type UpdateParams struct {
	Name            *string
	TemplateContent *string
	OpenAIModel     *string
	TriggerType     *models.TriggerType
	Schedule        *models.Schedule
	SetSchedule     bool
	WebhookURL      *string
	SetWebhookURL   bool
	DestinationURL  *string
}

// Update applies a partial update and returns the stored template, or nil
// when the id does not exist.
func (r *Templates) Update(ctx context.Context, id int64, params UpdateParams) (*models.PromptTemplate, error) {
	sets := []string{"updated_at = now()"}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Name != nil {
		sets = append(sets, "name = "+arg(*params.Name))
	}
	if params.TemplateContent != nil {
		sets = append(sets, "template_content = "+arg(*params.TemplateContent))
	}
	if params.OpenAIModel != nil {
		sets = append(sets, "openai_model = "+arg(*params.OpenAIModel))
	}
	if params.TriggerType != nil {
		sets = append(sets, "trigger_type = "+arg(string(*params.TriggerType)))
	}
	if params.SetSchedule {
		if params.Schedule != nil {
			raw, err := json.Marshal(params.Schedule)
			if err != nil {
				return nil, fmt.Errorf("encode schedule: %w", err)
			}
			sets = append(sets, "schedule = "+arg(raw))
		} else {
			sets = append(sets, "schedule = NULL")
		}
	}
	if params.SetWebhookURL {
		if params.WebhookURL != nil {
			sets = append(sets, "webhook_url = "+arg(*params.WebhookURL))
		} else {
			sets = append(sets, "webhook_url = NULL")
		}
	}
	if params.DestinationURL != nil {
		sets = append(sets, "destination_webhook_url = "+arg(*params.DestinationURL))
	}

	query := "UPDATE prompt_templates SET " + strings.Join(sets, ", ") +
		" WHERE id = " + arg(id) + " RETURNING " + templateColumns
	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update template %d: %w", id, err)
	}
	return t, nil
}

// Delete removes a template and reports whether it existed.
func (r *Templates) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM prompt_templates WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete template %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete template %d: %w", id, err)
	}
	return affected > 0, nil
}
