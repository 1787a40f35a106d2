package permcore

import "context"

// PermissionStore supplies the role-derived permission names of a user and
// the global permission hierarchy. Production deployments back this with the
// relational layer; tests use in-memory fakes.
type PermissionStore interface {
	FetchUserPermissionNames(ctx context.Context, userID uint) ([]string, error)
	FetchHierarchy(ctx context.Context) ([]PermissionRecord, error)
}

// RoleDirectory supplies the role level and team memberships used to build
// data-level scopes.
type RoleDirectory interface {
	FetchUserRoleLevel(ctx context.Context, userID uint) (RoleLevel, error)
	FetchManagerTeamIDs(ctx context.Context, userID uint) ([]uint, error)
}
