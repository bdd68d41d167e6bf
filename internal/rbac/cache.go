package rbac

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/flowboard/flowboard/internal/db/models"
)

// Cache defaults, used when the config leaves the tunables at zero.
const (
	// DefaultCacheTTL bounds how long a resolved permission set may be
	// served without a store read. The TTL is a backstop only: every
	// mutation that can change effective permissions invalidates the
	// affected entries synchronously.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheSize is the default maximum number of users cached.
	DefaultCacheSize = 1024
)

// PermissionCache caches a user's resolved permission set for a bounded
// duration. It is safe for concurrent use.
type PermissionCache struct {
	lru *expirable.LRU[uint64, []models.Permission]
}

// NewPermissionCache creates a permission cache holding up to size users,
// each entry expiring after ttl. Non-positive arguments fall back to the
// package defaults.
func NewPermissionCache(size int, ttl time.Duration) *PermissionCache {
	if size <= 0 {
		size = DefaultCacheSize
	}

	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &PermissionCache{
		lru: expirable.NewLRU[uint64, []models.Permission](size, nil, ttl),
	}
}

// Get returns the cached permission set for the user, if present and fresh.
func (c *PermissionCache) Get(userID uint64) ([]models.Permission, bool) {
	return c.lru.Get(userID)
}

// Set stores the permission set for the user.
func (c *PermissionCache) Set(userID uint64, permissions []models.Permission) {
	c.lru.Add(userID, permissions)
}

// Invalidate drops the cached entry for a single user.
func (c *PermissionCache) Invalidate(userID uint64) {
	c.lru.Remove(userID)
}

// InvalidateAll drops every cached entry. Used when a mutation affects a
// user set that is not cheaply known, e.g. a role's permission set changed.
func (c *PermissionCache) InvalidateAll() {
	c.lru.Purge()
}

// Len returns the number of cached users.
func (c *PermissionCache) Len() int {
	return c.lru.Len()
}
