package permcore

import (
	"context"

	"go.uber.org/zap"
)

// Evaluator orchestrates the cache, pattern matcher and hierarchy resolver
// into single- and multi-permission checks. It holds no state of its own.
type Evaluator struct {
	cache *PermissionCache
	log   *zap.SugaredLogger
}

// NewEvaluator wires an evaluator to a cache. A nil logger is replaced with a
// no-op logger.
func NewEvaluator(cache *PermissionCache, log *zap.SugaredLogger) *Evaluator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Evaluator{cache: cache, log: log}
}

// Check evaluates a single permission for a user. Resolution order is fixed:
// exact match, universal admin override, wildcard, hierarchy. The first hit
// wins; the order is the canonical tie-break when several grant paths exist
// and determines the reported match type.
func (e *Evaluator) Check(ctx context.Context, userID uint, permission string) (CheckResult, error) {
	if userID == 0 || permission == "" {
		return CheckResult{}, ErrInvalidInput
	}

	perms, err := e.cache.UserPermissions(ctx, userID, true)
	if err != nil {
		return CheckResult{}, err
	}

	if containsString(perms, permission) {
		return CheckResult{Granted: true, MatchedPermission: permission, MatchType: MatchExact}, nil
	}

	if HasUniversalGrant(perms) {
		matched := AdminPermission
		if !containsString(perms, AdminPermission) {
			matched = WildcardAll
		}
		return CheckResult{Granted: true, MatchedPermission: matched, MatchType: MatchAdmin}, nil
	}

	if pattern, ok := WildcardMatch(perms, permission); ok {
		return CheckResult{Granted: true, MatchedPermission: pattern, MatchType: MatchWildcard}, nil
	}

	hierarchy, err := e.cache.Hierarchy(ctx)
	if err != nil {
		return CheckResult{}, err
	}
	ancestor, ok, cyclic := resolveViaHierarchy(perms, permission, hierarchy)
	if cyclic {
		e.log.Warnw("permission hierarchy walk exceeded its bound, treating as no-match",
			"permission", permission, "user_id", userID)
	}
	if ok {
		return CheckResult{Granted: true, MatchedPermission: ancestor, MatchType: MatchHierarchy}, nil
	}

	return CheckResult{MissingPermissions: []string{permission}}, nil
}

// HasAny reports whether the user holds at least one of the permissions,
// short-circuiting on the first grant. An empty list evaluates to true:
// permission-less endpoints are open.
func (e *Evaluator) HasAny(ctx context.Context, userID uint, permissions []string) (bool, error) {
	if len(permissions) == 0 {
		return true, nil
	}
	for _, perm := range permissions {
		res, err := e.Check(ctx, userID, perm)
		if err != nil {
			return false, err
		}
		if res.Granted {
			return true, nil
		}
	}
	return false, nil
}

// HasAll requires every permission. It evaluates all names so the complete
// missing set can be reported; it deliberately does not short-circuit. An
// empty list is fully granted.
func (e *Evaluator) HasAll(ctx context.Context, userID uint, permissions []string) (MultiCheckResult, error) {
	result := MultiCheckResult{Granted: true, MissingPermissions: []string{}}
	for _, perm := range permissions {
		res, err := e.Check(ctx, userID, perm)
		if err != nil {
			return MultiCheckResult{}, err
		}
		if !res.Granted {
			result.Granted = false
			result.MissingPermissions = append(result.MissingPermissions, perm)
		}
	}
	return result, nil
}

// BulkCheck evaluates one permission for many users through the cache.
func (e *Evaluator) BulkCheck(ctx context.Context, userIDs []uint, permission string) (map[uint]CheckResult, error) {
	results := make(map[uint]CheckResult, len(userIDs))
	for _, userID := range userIDs {
		res, err := e.Check(ctx, userID, permission)
		if err != nil {
			return nil, err
		}
		results[userID] = res
	}
	return results, nil
}
