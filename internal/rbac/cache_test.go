package rbac

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowboard/flowboard/internal/db/models"
)

func TestPermissionCacheRoundTrip(t *testing.T) {
	cache := NewPermissionCache(8, time.Minute)

	_, ok := cache.Get(1)
	assert.False(t, ok, "empty cache must miss")

	permissions := []models.Permission{{ID: 1, Name: PermTaskView}}
	cache.Set(1, permissions)

	cached, ok := cache.Get(1)
	require.True(t, ok)
	assert.Equal(t, permissions, cached)
	assert.Equal(t, 1, cache.Len())
}

func TestPermissionCacheInvalidate(t *testing.T) {
	cache := NewPermissionCache(8, time.Minute)

	cache.Set(1, []models.Permission{{Name: PermTaskView}})
	cache.Set(2, []models.Permission{{Name: PermTaskCreate}})

	cache.Invalidate(1)

	_, ok := cache.Get(1)
	assert.False(t, ok, "invalidated entry must miss")

	_, ok = cache.Get(2)
	assert.True(t, ok, "other entries must survive a single invalidation")

	cache.InvalidateAll()
	assert.Equal(t, 0, cache.Len())
}

func TestPermissionCacheExpiry(t *testing.T) {
	cache := NewPermissionCache(8, 10*time.Millisecond)

	cache.Set(1, []models.Permission{{Name: PermTaskView}})

	_, ok := cache.Get(1)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok = cache.Get(1)
	assert.False(t, ok, "entry must expire after the TTL")
}

func TestPermissionCacheDefaults(t *testing.T) {
	// Non-positive tunables fall back to the package defaults instead of
	// producing an unusable cache.
	cache := NewPermissionCache(0, 0)

	cache.Set(1, nil)

	_, ok := cache.Get(1)
	assert.True(t, ok)
}

func TestPermissionCacheCachesEmptySet(t *testing.T) {
	cache := NewPermissionCache(8, time.Minute)

	cache.Set(1, []models.Permission{})

	cached, ok := cache.Get(1)
	require.True(t, ok, "an empty permission set is still a valid cache entry")
	assert.Empty(t, cached)
}
