package permcore

// MatchType identifies which resolution path granted a permission check.
type MatchType string

const (
	MatchExact     MatchType = "exact"
	MatchWildcard  MatchType = "wildcard"
	MatchHierarchy MatchType = "hierarchy"
	MatchAdmin     MatchType = "admin"
)

// Universal grants. A user holding either is granted every permission; they
// are tested before any pattern matching runs.
const (
	AdminPermission = "system.admin"
	WildcardAll     = "*"
)

// PermissionRecord is a raw hierarchy row as returned by a PermissionStore.
type PermissionRecord struct {
	Name       string
	Category   string
	ParentName string
}

// HierarchyNode is the in-memory view of a permission inside the global
// hierarchy. Children are derived from parent links when the hierarchy is
// loaded into the cache.
type HierarchyNode struct {
	Name     string
	Category string
	Parent   string
	Children []string
}

// CheckResult is the outcome of a single permission check.
type CheckResult struct {
	Granted            bool      `json:"granted"`
	MatchedPermission  string    `json:"matched_permission,omitempty"`
	MatchType          MatchType `json:"match_type,omitempty"`
	MissingPermissions []string  `json:"missing_permissions,omitempty"`
}

// MultiCheckResult is the outcome of an AND-combined permission check. The
// missing set is exhaustive, never truncated by short-circuiting.
type MultiCheckResult struct {
	Granted            bool     `json:"granted"`
	MissingPermissions []string `json:"missing_permissions"`
}

// RoleLevel classifies a user for data-level scoping.
type RoleLevel string

const (
	RoleAdmin   RoleLevel = "admin"
	RoleManager RoleLevel = "manager"
	RoleUser    RoleLevel = "user"
)

// rolePrecedence orders levels highest privilege first; the highest level a
// user holds wins when they carry several roles.
var rolePrecedence = []RoleLevel{RoleAdmin, RoleManager, RoleUser}

// HighestRoleLevel picks the most privileged level among those held,
// defaulting to RoleUser when none is recognized.
func HighestRoleLevel(levels []string) RoleLevel {
	held := make(map[RoleLevel]bool, len(levels))
	for _, l := range levels {
		held[RoleLevel(l)] = true
	}
	for _, level := range rolePrecedence {
		if held[level] {
			return level
		}
	}
	return RoleUser
}

// DataLevelContext carries everything the scope builder needs to know about a
// caller. It is rebuilt from the RoleDirectory on every scoping request:
// stale role data here is more dangerous than a duplicate lookup.
type DataLevelContext struct {
	UserID       uint
	Role         RoleLevel
	TeamIDs      []uint
	DepartmentID *uint
}
