package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/matchcare/platform/pkg/common/logger"
	"github.com/matchcare/platform/pkg/common/models"
)

// Cache holds patient-facing match listings in Redis. Invalidation is called
// explicitly at every point a recalculation rewrites the underlying scores.
// A nil Cache is valid and turns every operation into a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func patientMatchesKey(patientID uuid.UUID, page, size int) string {
	return fmt.Sprintf("matches:patient:%s:%d:%d", patientID, page, size)
}

func (c *Cache) GetPatientMatches(ctx context.Context, patientID uuid.UUID, page, size int) ([]models.MatchScoreResponse, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, patientMatchesKey(patientID, page, size)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.WithError(err).Warn("match cache read failed")
		}
		return nil, false
	}

	var matches []models.MatchScoreResponse
	if err := json.Unmarshal(raw, &matches); err != nil {
		logger.Log.WithError(err).Warn("match cache entry corrupt, ignoring")
		return nil, false
	}
	return matches, true
}

func (c *Cache) SetPatientMatches(ctx context.Context, patientID uuid.UUID, page, size int, matches []models.MatchScoreResponse) {
	if c == nil || c.client == nil {
		return
	}

	raw, err := json.Marshal(matches)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to marshal match cache entry")
		return
	}
	if err := c.client.Set(ctx, patientMatchesKey(patientID, page, size), raw, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).Warn("match cache write failed")
	}
}

// InvalidatePatient drops every cached page for one patient.
func (c *Cache) InvalidatePatient(ctx context.Context, patientID uuid.UUID) {
	c.deleteByPattern(ctx, fmt.Sprintf("matches:patient:%s:*", patientID))
}

// InvalidateAll drops every cached match listing. Used when a provider
// changes, since that touches an unknown set of patient listings.
func (c *Cache) InvalidateAll(ctx context.Context) {
	c.deleteByPattern(ctx, "matches:patient:*")
}

func (c *Cache) deleteByPattern(ctx context.Context, pattern string) {
	if c == nil || c.client == nil {
		return
	}

	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Log.WithError(err).WithField("key", iter.Val()).Warn("match cache invalidation failed")
		}
	}
	if err := iter.Err(); err != nil {
		logger.Log.WithError(err).Warn("match cache scan failed")
	}
}
