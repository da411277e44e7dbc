package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "vigilia", nil)
	ctx := context.Background()

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "minute:1", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "minute:1", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "minute:*"))
	assert.NoError(t, repo.Delete(ctx, "minute:1"))
	assert.NoError(t, repo.PingContext(ctx))
}

func TestCacheRepositoryKeyPrefix(t *testing.T) {
	assert.Equal(t, "vigilia:minute:1", NewCacheRepository(nil, "vigilia:", nil).key("minute:1"))
	assert.Equal(t, "minute:1", NewCacheRepository(nil, "", nil).key("minute:1"))
}
