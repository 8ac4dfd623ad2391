package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"caretrust/pkg/platform/sentinel"
)

var currentLookupDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "caretrust_family_current_lookup_duration_ms",
	Help:    "Latency of refresh-family current-jti lookups in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const (
	familyCurrentKeyPrefix = "rtf:cur:"
	familyRevokedKeyPrefix = "rtf:revoked:"
)

// RedisStore is the production implementation for distributed deployments
// where multiple instances must agree on a family's current jti. Entries
// expire with the refresh token lifetime so state never outlives the tokens
// it guards.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Bind(ctx context.Context, familyID, jti string, ttl time.Duration) error {
	return s.client.Set(ctx, familyCurrentKeyPrefix+familyID, jti, ttl).Err()
}

func (s *RedisStore) Current(ctx context.Context, familyID string) (string, error) {
	start := time.Now()
	defer func() {
		currentLookupDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	jti, err := s.client.Get(ctx, familyCurrentKeyPrefix+familyID).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("family %q: %w", familyID, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return jti, nil
}

func (s *RedisStore) Advance(ctx context.Context, familyID, newJTI string, ttl time.Duration) error {
	return s.client.Set(ctx, familyCurrentKeyPrefix+familyID, newJTI, ttl).Err()
}

func (s *RedisStore) RevokeFamily(ctx context.Context, familyID string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, familyCurrentKeyPrefix+familyID)
	// Marker value is irrelevant; key existence is what matters.
	pipe.Set(ctx, familyRevokedKeyPrefix+familyID, "1", ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) IsFamilyRevoked(ctx context.Context, familyID string) (bool, error) {
	_, err := s.client.Get(ctx, familyRevokedKeyPrefix+familyID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
