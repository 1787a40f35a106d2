package permcore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Storage entities. These mirror the relational schema the engine reads from;
// the surrounding CRUD application owns all writes and must call the
// invalidation hooks when it mutates them.

// StoredPermission is a permission row: a dotted name, its top-level category
// and an optional parent forming the hierarchy.
type StoredPermission struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"unique;not null"`
	Category  string `gorm:"index"`
	ParentID  *uint  `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table shared with the admin CRUD layer.
func (StoredPermission) TableName() string { return "permissions" }

// StoredRole is a role row carrying its data-scoping level.
type StoredRole struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"unique;not null"`
	Level     string `gorm:"not null;default:user"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (StoredRole) TableName() string { return "roles" }

// RolePermission maps roles to permissions.
type RolePermission struct {
	RoleID       uint `gorm:"primaryKey;autoIncrement:false"`
	PermissionID uint `gorm:"primaryKey;autoIncrement:false"`
}

// UserRole maps users to roles.
type UserRole struct {
	UserID uint `gorm:"primaryKey;autoIncrement:false"`
	RoleID uint `gorm:"primaryKey;autoIncrement:false"`
}

// TeamMember maps users to teams; managers see rows of their teams' members.
type TeamMember struct {
	TeamID uint `gorm:"primaryKey;autoIncrement:false"`
	UserID uint `gorm:"primaryKey;autoIncrement:false"`
}

// GormStore implements PermissionStore and RoleDirectory on PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a GORM handle, optionally auto-migrating the schema.
func NewGormStore(db *gorm.DB, autoMigrate bool) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database handle is required", ErrInvalidInput)
	}
	if autoMigrate {
		if err := db.AutoMigrate(&StoredPermission{}, &StoredRole{}, &RolePermission{}, &UserRole{}, &TeamMember{}); err != nil {
			return nil, fmt.Errorf("failed to auto-migrate: %w", err)
		}
	}
	return &GormStore{db: db}, nil
}

// FetchUserPermissionNames returns the distinct permission names reachable
// through the user's roles.
func (s *GormStore) FetchUserPermissionNames(ctx context.Context, userID uint) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Table("permissions").
		Distinct("permissions.name").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ?", userID).
		Pluck("permissions.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user permissions: %w", err)
	}
	return names, nil
}

// FetchHierarchy returns every permission with its parent linkage.
func (s *GormStore) FetchHierarchy(ctx context.Context) ([]PermissionRecord, error) {
	var records []PermissionRecord
	err := s.db.WithContext(ctx).
		Table("permissions").
		Select("permissions.name AS name, permissions.category AS category, COALESCE(parents.name, '') AS parent_name").
		Joins("LEFT JOIN permissions parents ON parents.id = permissions.parent_id").
		Scan(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permission hierarchy: %w", err)
	}
	return records, nil
}

// FetchUserRoleLevel picks the most privileged level among the user's roles.
// Precedence is resolved in application code, not in the query.
func (s *GormStore) FetchUserRoleLevel(ctx context.Context, userID uint) (RoleLevel, error) {
	var levels []string
	err := s.db.WithContext(ctx).
		Table("roles").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Pluck("roles.level", &levels).Error
	if err != nil {
		return "", fmt.Errorf("failed to fetch role levels: %w", err)
	}
	return HighestRoleLevel(levels), nil
}

// FetchManagerTeamIDs returns the teams the user belongs to, empty when team
// membership is not used.
func (s *GormStore) FetchManagerTeamIDs(ctx context.Context, userID uint) ([]uint, error) {
	var teamIDs []uint
	err := s.db.WithContext(ctx).
		Model(&TeamMember{}).
		Where("user_id = ?", userID).
		Pluck("team_id", &teamIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch team memberships: %w", err)
	}
	return teamIDs, nil
}

// ApplyScope renders a DataScope predicate into GORM query clauses. This is
// the storage side of the scope contract: the engine hands over a structured
// predicate and never emits SQL itself.
func ApplyScope(tx *gorm.DB, scope DataScope) *gorm.DB {
	return applyPredicate(tx, scope.Predicate)
}

func applyPredicate(tx *gorm.DB, p Predicate) *gorm.DB {
	switch p.Op {
	case PredAll:
		return tx
	case PredEquals:
		return tx.Where(fmt.Sprintf("%s = ?", p.Field), p.Value)
	case PredMemberOfTeams:
		return tx.Where(
			fmt.Sprintf("%s IN (SELECT user_id FROM team_members WHERE team_id IN ?)", p.Field),
			p.TeamIDs,
		)
	case PredAnyOf:
		if len(p.Operands) == 0 {
			return tx
		}
		grouped := applyPredicate(tx.Session(&gorm.Session{NewDB: true}), p.Operands[0])
		for _, operand := range p.Operands[1:] {
			grouped = grouped.Or(applyPredicate(tx.Session(&gorm.Session{NewDB: true}), operand))
		}
		return tx.Where(grouped)
	default:
		// Unknown operators fail closed: match nothing.
		return tx.Where("1 = 0")
	}
}
