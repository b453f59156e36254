// internal/repository/cache_test.go
package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptflow/internal/common/logger"
	"promptflow/internal/models"
)

func newTestCache(t *testing.T) (*CachedTemplates, sqlmock.Sqlmock, *miniredis.Miniredis) {
	db, mock := newMockDB(t)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cache := NewCachedTemplates(NewTemplates(db), rdb, logger.NewTestLogger(t))
	return cache, mock, mr
}

func TestCachedTemplates_GetByID_PopulatesCache(t *testing.T) {
	cache, mock, mr := newTestCache(t)
	now := time.Now()

	rows := sqlmock.NewRows(templateTestColumns).AddRow(
		int64(7), "greeting", "Hello {{name}}", "gpt-3.5-turbo", "webhook",
		nil, nil, "https://out.example.com/hook", int64(1), now, now,
	)
	mock.ExpectQuery(`SELECT .+ FROM prompt_templates WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	// First read goes to the database and fills the cache.
	tpl, err := cache.GetByID(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.True(t, mr.Exists("tpl:7"))

	// Second read is served from Redis; no further query is expected.
	tpl2, err := cache.GetByID(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, tpl2)
	assert.Equal(t, tpl.ID, tpl2.ID)
	assert.Equal(t, tpl.TemplateContent, tpl2.TemplateContent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedTemplates_GetByID_MissingNotCached(t *testing.T) {
	cache, mock, mr := newTestCache(t)

	mock.ExpectQuery(`SELECT .+ FROM prompt_templates WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(templateTestColumns))

	tpl, err := cache.GetByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, tpl)
	assert.False(t, mr.Exists("tpl:42"))
}

func TestCachedTemplates_GetByID_CorruptEntryFallsBack(t *testing.T) {
	cache, mock, mr := newTestCache(t)
	now := time.Now()

	require.NoError(t, mr.Set("tpl:7", "{not json"))

	rows := sqlmock.NewRows(templateTestColumns).AddRow(
		int64(7), "greeting", "Hello", "gpt-3.5-turbo", "webhook",
		nil, nil, "https://out.example.com/hook", int64(1), now, now,
	)
	mock.ExpectQuery(`SELECT .+ FROM prompt_templates WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	tpl, err := cache.GetByID(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, "greeting", tpl.Name)
}

func TestCachedTemplates_Delete_Invalidates(t *testing.T) {
	cache, mock, mr := newTestCache(t)

	seed, err := json.Marshal(&models.PromptTemplate{ID: 5, Name: "stale"})
	require.NoError(t, err)
	require.NoError(t, mr.Set("tpl:5", string(seed)))

	mock.ExpectExec(`DELETE FROM prompt_templates WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := cache.Delete(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists("tpl:5"))
}

func TestCachedTemplates_Update_Invalidates(t *testing.T) {
	cache, mock, mr := newTestCache(t)
	now := time.Now()

	seed, err := json.Marshal(&models.PromptTemplate{ID: 5, Name: "stale"})
	require.NoError(t, err)
	require.NoError(t, mr.Set("tpl:5", string(seed)))

	name := "fresh"
	rows := sqlmock.NewRows(templateTestColumns).AddRow(
		int64(5), "fresh", "Hello", "gpt-3.5-turbo", "webhook",
		nil, nil, "https://out.example.com/hook", int64(1), now, now,
	)
	mock.ExpectQuery(`UPDATE prompt_templates SET`).
		WillReturnRows(rows)

	tpl, err := cache.Update(context.Background(), 5, UpdateParams{Name: &name})
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, "fresh", tpl.Name)
	assert.False(t, mr.Exists("tpl:5"))
}
