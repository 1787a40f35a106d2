// Package permcore implements the permission resolution and data-scoping
// engine behind the admin application: wildcard matching over dot-delimited
// permission names, hierarchy cascading, OR/AND combination checks with
// time-bounded caching, and role-based row-level scope predicates.
package permcore

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Config holds the configuration for the permission service.
type Config struct {
	Store     PermissionStore
	Directory RoleDirectory
	Logger    *zap.SugaredLogger

	UserTTL       time.Duration // per-user permission set TTL, default 5m
	HierarchyTTL  time.Duration // global hierarchy TTL, default 10m
	SweepInterval time.Duration // cache eviction sweep, default 60s
	Clock         func() time.Time

	Audit *AuditTrail // optional decision audit trail
}

// Service is the engine facade consumed by HTTP guards and by the data
// access layer. The cache is its only mutable state.
type Service struct {
	cache     *PermissionCache
	evaluator *Evaluator
	scopes    ScopeBuilder
	directory RoleDirectory
	audit     *AuditTrail
	log       *zap.SugaredLogger
	sweeper   *cron.Cron
}

// New validates the configuration, builds the cache and evaluator, and starts
// the background eviction sweep. Call Close to stop the sweep.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.Directory == nil {
		return nil, fmt.Errorf("%w: permission store and role directory are required", ErrInvalidInput)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	sweepEvery := cfg.SweepInterval
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepInterval
	}

	cache := NewPermissionCache(cfg.Store, cfg.UserTTL, cfg.HierarchyTTL, cfg.Clock)
	s := &Service{
		cache:     cache,
		evaluator: NewEvaluator(cache, log),
		directory: cfg.Directory,
		audit:     cfg.Audit,
		log:       log,
		sweeper:   cron.New(),
	}
	s.sweeper.Schedule(cron.Every(sweepEvery), cron.FuncJob(cache.Sweep))
	s.sweeper.Start()
	return s, nil
}

// Close stops the background eviction sweep and waits for a running sweep to
// finish.
func (s *Service) Close() {
	ctx := s.sweeper.Stop()
	<-ctx.Done()
}

// Check evaluates a single permission for a user and records the decision
// when an audit trail is configured.
func (s *Service) Check(ctx context.Context, userID uint, permission string) (CheckResult, error) {
	res, err := s.evaluator.Check(ctx, userID, permission)
	if err != nil {
		return CheckResult{}, err
	}
	s.recordDecision(ctx, userID, permission, res.Granted, res.MatchType)
	return res, nil
}

// HasAny is the OR-combined check: at least one permission must hold.
func (s *Service) HasAny(ctx context.Context, userID uint, permissions []string) (bool, error) {
	granted, err := s.evaluator.HasAny(ctx, userID, permissions)
	if err != nil {
		return false, err
	}
	s.recordDecision(ctx, userID, fmt.Sprintf("any:%v", permissions), granted, "")
	return granted, nil
}

// HasAll is the AND-combined check: every permission must hold, and the
// result reports the complete missing subset.
func (s *Service) HasAll(ctx context.Context, userID uint, permissions []string) (MultiCheckResult, error) {
	res, err := s.evaluator.HasAll(ctx, userID, permissions)
	if err != nil {
		return MultiCheckResult{}, err
	}
	s.recordDecision(ctx, userID, fmt.Sprintf("all:%v", permissions), res.Granted, "")
	return res, nil
}

// BulkCheck evaluates one permission for many users.
func (s *Service) BulkCheck(ctx context.Context, userIDs []uint, permission string) (map[uint]CheckResult, error) {
	return s.evaluator.BulkCheck(ctx, userIDs, permission)
}

// RequirePermission is a guard-style helper that converts a denial into
// ErrPermissionDenied. Store failures propagate unchanged.
func (s *Service) RequirePermission(ctx context.Context, userID uint, permission string) error {
	res, err := s.Check(ctx, userID, permission)
	if err != nil {
		return err
	}
	if !res.Granted {
		return fmt.Errorf("%w: missing %s", ErrPermissionDenied, permission)
	}
	return nil
}

// ScopeForUser resolves the caller's role level and, for managers, team
// memberships, then builds the row-level scope for a table. The role context
// is rebuilt on every call rather than cached.
func (s *Service) ScopeForUser(ctx context.Context, userID uint, table, userIDColumn string) (DataScope, error) {
	if userID == 0 || table == "" {
		return DataScope{}, ErrInvalidInput
	}

	role, err := s.directory.FetchUserRoleLevel(ctx, userID)
	if err != nil {
		return DataScope{}, fmt.Errorf("%w: fetch role level for user %d: %v", ErrStoreUnavailable, userID, err)
	}
	dlc := DataLevelContext{UserID: userID, Role: role}
	if role == RoleManager {
		teamIDs, err := s.directory.FetchManagerTeamIDs(ctx, userID)
		if err != nil {
			return DataScope{}, fmt.Errorf("%w: fetch team ids for user %d: %v", ErrStoreUnavailable, userID, err)
		}
		dlc.TeamIDs = teamIDs
	}
	return s.scopes.BuildScope(dlc, table, userIDColumn), nil
}

// InvalidateUser drops a user's cached permission set. Must be called by the
// surrounding CRUD code after role or permission reassignments.
func (s *Service) InvalidateUser(userID uint) { s.cache.InvalidateUser(userID) }

// InvalidateAll drops all cached permission data.
func (s *Service) InvalidateAll() { s.cache.InvalidateAll() }

// CacheStats exposes cache statistics for health endpoints.
func (s *Service) CacheStats() map[string]interface{} { return s.cache.Stats() }

func (s *Service) recordDecision(ctx context.Context, userID uint, permission string, granted bool, matchType MatchType) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, Decision{
		UserID:     userID,
		Permission: permission,
		Granted:    granted,
		MatchType:  matchType,
	})
	if err != nil {
		s.log.Warnw("failed to record authorization decision", "user_id", userID, "error", err)
	}
}
