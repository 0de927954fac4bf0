package nli

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

// ScoreCache memoizes scorer output in Redis, keyed by a digest of the
// anonymized text. Only label probabilities are stored, never report text,
// so the cache holds no PHI. Cache errors fall through to the inner scorer.
type ScoreCache struct {
	inner  Scorer
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewScoreCache wraps a scorer with a Redis-backed result cache.
func NewScoreCache(inner Scorer, client *redis.Client, ttl time.Duration, logger *logging.Logger) *ScoreCache {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ScoreCache{inner: inner, client: client, ttl: ttl, logger: logger}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "mediscan:nli:" + hex.EncodeToString(sum[:])
}

func (c *ScoreCache) Score(ctx context.Context, text string) (Distribution, error) {
	key := cacheKey(text)

	if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var dist Distribution
		if jsonErr := json.Unmarshal(payload, &dist); jsonErr == nil && dist.Validate() == nil {
			return dist, nil
		}
		c.logger.Warn("dropping corrupt cached score", "key", key)
		c.client.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.Warn("score cache read failed", "error", err)
	}

	dist, err := c.inner.Score(ctx, text)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(dist); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("score cache write failed", "error", setErr)
		}
	}
	return dist, nil
}
