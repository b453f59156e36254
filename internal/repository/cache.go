// internal/repository/cache.go
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"promptflow/internal/common/logger"
	"promptflow/internal/models"

	"github.com/redis/go-redis/v9"
)

const templateCacheTTL = 5 * time.Minute

// CachedTemplates is a read-through Redis cache over Templates. Only GetByID
// is cached since it sits on the webhook hot path; list queries go straight
// to Postgres. Cache failures degrade to the database, never to an error.
type CachedTemplates struct {
	store  *Templates
	redis  *redis.Client
	logger logger.Logger
}

func NewCachedTemplates(store *Templates, rdb *redis.Client, log logger.Logger) *CachedTemplates {
	return &CachedTemplates{
		store:  store,
		redis:  rdb,
		logger: log.WithFields(map[string]interface{}{"component": "template-cache"}),
	}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("tpl:%d", id)
}

// GetByID returns the cached template when present, otherwise reads Postgres
// and populates the cache. Missing templates are not negatively cached.
func (c *CachedTemplates) GetByID(ctx context.Context, id int64) (*models.PromptTemplate, error) {
	key := cacheKey(id)
	if val, err := c.redis.Get(ctx, key).Result(); err == nil {
		var t models.PromptTemplate
		if err := json.Unmarshal([]byte(val), &t); err == nil {
			return &t, nil
		}
		// Unreadable entry; drop it and fall through.
		c.redis.Del(ctx, key)
	}

	t, err := c.store.GetByID(ctx, id)
	if err != nil || t == nil {
		return t, err
	}

	if data, err := json.Marshal(t); err == nil {
		if err := c.redis.Set(ctx, key, data, templateCacheTTL).Err(); err != nil {
			c.logger.Debug("cache set failed", map[string]interface{}{
				"templateId": id,
				"error":      err.Error(),
			})
		}
	}
	return t, nil
}

func (c *CachedTemplates) ListByTriggerType(ctx context.Context, trigger models.TriggerType) ([]*models.PromptTemplate, error) {
	return c.store.ListByTriggerType(ctx, trigger)
}

func (c *CachedTemplates) ListByUser(ctx context.Context, userID int64) ([]*models.PromptTemplate, error) {
	return c.store.ListByUser(ctx, userID)
}

func (c *CachedTemplates) Create(ctx context.Context, t *models.PromptTemplate) error {
	return c.store.Create(ctx, t)
}

func (c *CachedTemplates) Update(ctx context.Context, id int64, params UpdateParams) (*models.PromptTemplate, error) {
	t, err := c.store.Update(ctx, id, params)
	if err == nil {
		c.redis.Del(ctx, cacheKey(id))
	}
	return t, err
}

func (c *CachedTemplates) Delete(ctx context.Context, id int64) (bool, error) {
	deleted, err := c.store.Delete(ctx, id)
	if err == nil && deleted {
		c.redis.Del(ctx, cacheKey(id))
	}
	return deleted, err
}
