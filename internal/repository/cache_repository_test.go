package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

func TestCacheRepositoryKeyNamespace(t *testing.T) {
	repo := NewCacheRepository(nil, "allotment", nil)
	assert.Equal(t, "allotment:schedule:R1:range", repo.key("schedule:R1:range"))

	bare := NewCacheRepository(nil, "", nil)
	assert.Equal(t, "schedule:R1:range", bare.key("schedule:R1:range"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "allotment", nil)
	ctx := context.Background()

	var dest []string
	err := repo.Get(ctx, "schedule:R1:range", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(ctx, "schedule:R1:range", []string{"x"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "schedule:R1:*"))
	assert.NoError(t, repo.Close())
}
