package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

type cacheRepoStub struct {
	values   map[string]interface{}
	patterns []string
	getErr   error
}

func (c *cacheRepoStub) Get(_ context.Context, key string, dest interface{}) error {
	if c.getErr != nil {
		return c.getErr
	}
	v, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*string)) = v.(string)
	return nil
}

func (c *cacheRepoStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.values[key] = value
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(_ context.Context, pattern string) error {
	c.patterns = append(c.patterns, pattern)
	return nil
}

func TestCacheServiceReadThrough(t *testing.T) {
	repo := &cacheRepoStub{values: map[string]interface{}{}}
	svc := NewCacheService(repo, NewMetricsService(), 0, zap.NewNop(), true)
	ctx := context.Background()

	var out string
	hit, err := svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "k", "v", 0))
	hit, err = svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v", out)

	repo.getErr = errors.New("redis down")
	hit, err = svc.Get(ctx, "k", &out)
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestCacheServiceInvalidateResources(t *testing.T) {
	repo := &cacheRepoStub{values: map[string]interface{}{}}
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	require.NoError(t, svc.InvalidateResources(context.Background(), "T1", "R1"))
	assert.Equal(t, []string{"schedule:T1:*", "schedule:R1:*"}, repo.patterns)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := &cacheRepoStub{values: map[string]interface{}{}}
	svc := NewCacheService(repo, nil, time.Minute, nil, false)

	require.NoError(t, svc.Set(context.Background(), "k", "v", 0))
	assert.Empty(t, repo.values)
	require.NoError(t, svc.InvalidateResources(context.Background(), "T1"))
	assert.Empty(t, repo.patterns)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestScheduleKey(t *testing.T) {
	assert.Equal(t, "schedule:T1:range:2024-07-01:2024-07-02", ScheduleKey("T1", "range", schoolDay, schoolDay.AddDays(1)))
}
