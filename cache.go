package permcore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Cache defaults, overridable through Config.
const (
	DefaultUserTTL       = 5 * time.Minute
	DefaultHierarchyTTL  = 10 * time.Minute
	DefaultSweepInterval = time.Minute
)

type userEntry struct {
	permissions []string
	expiresAt   time.Time
}

type hierarchyEntry struct {
	nodes     map[string]*HierarchyNode
	expiresAt time.Time
}

// PermissionCache is the process-wide, time-expiring cache of per-user
// permission sets and of the global permission hierarchy. It is the only
// shared mutable state in the engine; a single mutex is enough given the low
// contention and cheap rebuild cost. Concurrent misses for the same user may
// each fetch and overwrite the entry; last write wins, this is a cache, not a
// source of truth.
type PermissionCache struct {
	store        PermissionStore
	userTTL      time.Duration
	hierarchyTTL time.Duration
	now          func() time.Time

	mu        sync.RWMutex
	users     map[uint]userEntry
	hierarchy *hierarchyEntry
}

// NewPermissionCache builds a cache around a PermissionStore. Zero TTLs fall
// back to the defaults; a nil clock uses time.Now. The clock is injectable so
// tests can advance time instead of sleeping.
func NewPermissionCache(store PermissionStore, userTTL, hierarchyTTL time.Duration, clock func() time.Time) *PermissionCache {
	if userTTL <= 0 {
		userTTL = DefaultUserTTL
	}
	if hierarchyTTL <= 0 {
		hierarchyTTL = DefaultHierarchyTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &PermissionCache{
		store:        store,
		userTTL:      userTTL,
		hierarchyTTL: hierarchyTTL,
		now:          clock,
		users:        make(map[uint]userEntry),
	}
}

// UserPermissions returns the deduplicated permission names reachable through
// the user's roles, served from cache while the entry is fresh. Pass
// useCache=false to force a store round trip.
func (c *PermissionCache) UserPermissions(ctx context.Context, userID uint, useCache bool) ([]string, error) {
	if useCache {
		c.mu.RLock()
		entry, ok := c.users[userID]
		c.mu.RUnlock()
		if ok && c.now().Before(entry.expiresAt) {
			return entry.permissions, nil
		}
	}

	names, err := c.store.FetchUserPermissionNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch permissions for user %d: %v", ErrStoreUnavailable, userID, err)
	}
	perms := dedupe(names)

	c.mu.Lock()
	c.users[userID] = userEntry{permissions: perms, expiresAt: c.now().Add(c.userTTL)}
	c.mu.Unlock()
	return perms, nil
}

// Hierarchy returns the global permission hierarchy as a name-keyed node map,
// rebuilding it from the store when the cached copy has expired.
func (c *PermissionCache) Hierarchy(ctx context.Context) (map[string]*HierarchyNode, error) {
	c.mu.RLock()
	entry := c.hierarchy
	c.mu.RUnlock()
	if entry != nil && c.now().Before(entry.expiresAt) {
		return entry.nodes, nil
	}

	records, err := c.store.FetchHierarchy(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch permission hierarchy: %v", ErrStoreUnavailable, err)
	}
	nodes := buildHierarchy(records)

	c.mu.Lock()
	c.hierarchy = &hierarchyEntry{nodes: nodes, expiresAt: c.now().Add(c.hierarchyTTL)}
	c.mu.Unlock()
	return nodes, nil
}

// buildHierarchy turns raw store records into the node map. Children are
// derived in a second pass so record order does not matter.
func buildHierarchy(records []PermissionRecord) map[string]*HierarchyNode {
	nodes := make(map[string]*HierarchyNode, len(records))
	for _, rec := range records {
		if rec.Name == "" {
			continue
		}
		nodes[rec.Name] = &HierarchyNode{Name: rec.Name, Category: rec.Category, Parent: rec.ParentName}
	}
	for _, node := range nodes {
		if node.Parent == "" {
			continue
		}
		if parent, ok := nodes[node.Parent]; ok {
			parent.Children = append(parent.Children, node.Name)
		}
	}
	return nodes
}

// InvalidateUser drops a user's cached permission set. The surrounding CRUD
// code must call this after any role or permission reassignment.
func (c *PermissionCache) InvalidateUser(userID uint) {
	c.mu.Lock()
	delete(c.users, userID)
	c.mu.Unlock()
}

// InvalidateAll drops every cached entry, hierarchy included.
func (c *PermissionCache) InvalidateAll() {
	c.mu.Lock()
	c.users = make(map[uint]userEntry)
	c.hierarchy = nil
	c.mu.Unlock()
}

// Sweep removes expired entries to bound memory. It runs on a background
// schedule and never blocks request-path reads beyond the map lock.
func (c *PermissionCache) Sweep() {
	now := c.now()
	c.mu.Lock()
	for userID, entry := range c.users {
		if !now.Before(entry.expiresAt) {
			delete(c.users, userID)
		}
	}
	if c.hierarchy != nil && !now.Before(c.hierarchy.expiresAt) {
		c.hierarchy = nil
	}
	c.mu.Unlock()
}

// Stats returns cache statistics for health and ops endpoints.
func (c *PermissionCache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]interface{}{
		"user_entries":          len(c.users),
		"hierarchy_cached":      c.hierarchy != nil,
		"user_ttl_seconds":      c.userTTL.Seconds(),
		"hierarchy_ttl_seconds": c.hierarchyTTL.Seconds(),
	}
}

// dedupe preserves first-seen order while dropping duplicate names.
func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
