package nli

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingScorer struct {
	dist  Distribution
	err   error
	calls int
}

func (s *countingScorer) Score(_ context.Context, _ string) (Distribution, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.dist, nil
}

func newCacheUnderTest(t *testing.T, inner Scorer) *ScoreCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewScoreCache(inner, client, time.Minute, nil)
}

func TestScoreCacheMemoizes(t *testing.T) {
	inner := &countingScorer{dist: Distribution{LabelLow: 0.1, LabelModerate: 0.2, LabelHigh: 0.7}}
	cache := newCacheUnderTest(t, inner)

	ctx := context.Background()
	first, err := cache.Score(ctx, "anonymized report text")
	require.NoError(t, err)

	second, err := cache.Score(ctx, "anonymized report text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "second call must be served from cache")
}

func TestScoreCacheDistinctTexts(t *testing.T) {
	inner := &countingScorer{dist: Distribution{LabelLow: 0.5, LabelModerate: 0.3, LabelHigh: 0.2}}
	cache := newCacheUnderTest(t, inner)

	ctx := context.Background()
	_, err := cache.Score(ctx, "report one")
	require.NoError(t, err)
	_, err = cache.Score(ctx, "report two")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestScoreCacheDoesNotCacheErrors(t *testing.T) {
	inner := &countingScorer{err: ErrUnavailable}
	cache := newCacheUnderTest(t, inner)

	ctx := context.Background()
	_, err := cache.Score(ctx, "report")
	require.Error(t, err)
	_, err = cache.Score(ctx, "report")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestScoreCacheSkipsCorruptEntries(t *testing.T) {
	inner := &countingScorer{dist: Distribution{LabelLow: 0.1, LabelModerate: 0.2, LabelHigh: 0.7}}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewScoreCache(inner, client, time.Minute, nil)

	require.NoError(t, mr.Set(cacheKey("report"), "not-json"))

	dist, err := cache.Score(context.Background(), "report")
	require.NoError(t, err)
	assert.Equal(t, inner.dist, dist)
	assert.Equal(t, 1, inner.calls)
}
