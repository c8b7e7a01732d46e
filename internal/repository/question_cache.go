package repository

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"workshop_backend/internal/model"

	"github.com/go-redis/redis/v8"
)

const questionCacheKeyPrefix = "question:"

// CachedQuestionStore is a read-through cache over the question repository.
// Only Find is cached; every write path invalidates the cached entry. Cache
// failures fall back to the database silently. The cache can be toggled at
// runtime via SetEnabled, so a config reload can switch it off without a
// restart.
type CachedQuestionStore struct {
	inner   *QuestionRepository
	rdb     *redis.Client
	ttl     time.Duration
	enabled atomic.Bool
}

func NewCachedQuestionStore(inner *QuestionRepository, rdb *redis.Client, ttl time.Duration) *CachedQuestionStore {
	c := &CachedQuestionStore{inner: inner, rdb: rdb, ttl: ttl}
	c.enabled.Store(true)
	return c
}

// SetEnabled turns the read-through path on or off. Writes keep invalidating
// either way so a re-enabled cache never serves stale records.
func (c *CachedQuestionStore) SetEnabled(on bool) {
	c.enabled.Store(on)
}

func (c *CachedQuestionStore) Find(id string) (*model.Question, error) {
	if !c.enabled.Load() {
		return c.inner.Find(id)
	}

	ctx := context.Background()
	key := questionCacheKeyPrefix + id

	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var q model.Question
		if json.Unmarshal(data, &q) == nil {
			return &q, nil
		}
	}

	q, err := c.inner.Find(id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(q); err == nil {
		c.rdb.Set(ctx, key, data, c.ttl)
	}
	return q, nil
}

func (c *CachedQuestionStore) Insert(q *model.Question) error {
	return c.inner.Insert(q)
}

func (c *CachedQuestionStore) Replace(q *model.Question) error {
	if err := c.inner.Replace(q); err != nil {
		return err
	}
	c.invalidate(q.ID)
	return nil
}

func (c *CachedQuestionStore) Delete(id string) error {
	if err := c.inner.Delete(id); err != nil {
		return err
	}
	c.invalidate(id)
	return nil
}

func (c *CachedQuestionStore) ListFiltered(filter model.QuestionFilter, page, pageSize int) ([]model.Question, int64, error) {
	return c.inner.ListFiltered(filter, page, pageSize)
}

func (c *CachedQuestionStore) All() ([]model.Question, error) {
	return c.inner.All()
}

func (c *CachedQuestionStore) Search(term, language string) ([]model.Question, error) {
	return c.inner.Search(term, language)
}

func (c *CachedQuestionStore) ByType(t model.QuestionType) ([]model.Question, error) {
	return c.inner.ByType(t)
}

func (c *CachedQuestionStore) RandomByType(t model.QuestionType, count int) ([]model.Question, error) {
	return c.inner.RandomByType(t, count)
}

func (c *CachedQuestionStore) CountGroupedByType() (map[model.QuestionType]int64, error) {
	return c.inner.CountGroupedByType()
}

func (c *CachedQuestionStore) AverageField(field string) (float64, error) {
	return c.inner.AverageField(field)
}

func (c *CachedQuestionStore) invalidate(id string) {
	c.rdb.Del(context.Background(), questionCacheKeyPrefix+id)
}
