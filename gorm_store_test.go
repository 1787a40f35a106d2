package permcore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return gdb, mock
}

func TestFetchUserPermissionNames(t *testing.T) {
	gdb, mock := newMockGorm(t)
	store, err := NewGormStore(gdb, false)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT DISTINCT .+ FROM "permissions" JOIN role_permissions .+ JOIN user_roles .+ WHERE user_roles\.user_id = \$1`).
		WithArgs(uint(7)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow("users.read").
			AddRow("users.*"))

	names, err := store.FetchUserPermissionNames(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"users.read", "users.*"}, names)
}

func TestFetchUserPermissionNamesQueryError(t *testing.T) {
	gdb, mock := newMockGorm(t)
	store, err := NewGormStore(gdb, false)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT DISTINCT .+ FROM "permissions"`).
		WithArgs(uint(7)).
		WillReturnError(assert.AnError)

	_, err = store.FetchUserPermissionNames(context.Background(), 7)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestFetchHierarchy(t *testing.T) {
	gdb, mock := newMockGorm(t)
	store, err := NewGormStore(gdb, false)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+COALESCE\(parents\.name, ''\) AS parent_name FROM "permissions" LEFT JOIN permissions parents`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "category", "parent_name"}).
			AddRow("reports.*", "reports", "").
			AddRow("reports.export", "reports", "reports.*"))

	records, err := store.FetchHierarchy(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, PermissionRecord{Name: "reports.export", Category: "reports", ParentName: "reports.*"}, records[1])
}

func TestFetchUserRoleLevel(t *testing.T) {
	gdb, mock := newMockGorm(t)
	store, err := NewGormStore(gdb, false)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM "roles" JOIN user_roles .+ WHERE user_roles\.user_id = \$1`).
		WithArgs(uint(3)).
		WillReturnRows(sqlmock.NewRows([]string{"level"}).
			AddRow("user").
			AddRow("manager"))

	level, err := store.FetchUserRoleLevel(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, RoleManager, level)
}

func TestFetchUserRoleLevelNoRolesDefaultsToUser(t *testing.T) {
	gdb, mock := newMockGorm(t)
	store, err := NewGormStore(gdb, false)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM "roles"`).
		WithArgs(uint(3)).
		WillReturnRows(sqlmock.NewRows([]string{"level"}))

	level, err := store.FetchUserRoleLevel(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, level)
}

func TestFetchManagerTeamIDs(t *testing.T) {
	gdb, mock := newMockGorm(t)
	store, err := NewGormStore(gdb, false)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM "team_members" WHERE user_id = \$1`).
		WithArgs(uint(3)).
		WillReturnRows(sqlmock.NewRows([]string{"team_id"}).
			AddRow(5).
			AddRow(7))

	teamIDs, err := store.FetchManagerTeamIDs(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []uint{5, 7}, teamIDs)
}

type scopedUser struct {
	ID uint
}

func buildScopedSQL(t *testing.T, gdb *gorm.DB, scope DataScope) *gorm.Statement {
	t.Helper()
	var rows []scopedUser
	tx := gdb.Session(&gorm.Session{DryRun: true}).Table(scope.Table)
	tx = ApplyScope(tx, scope).Find(&rows)
	require.NoError(t, tx.Error)
	return tx.Statement
}

func TestApplyScope(t *testing.T) {
	gdb, _ := newMockGorm(t)
	var builder ScopeBuilder

	t.Run("admin adds no restriction", func(t *testing.T) {
		scope := builder.BuildScope(DataLevelContext{UserID: 1, Role: RoleAdmin}, "users", "")
		stmt := buildScopedSQL(t, gdb, scope)
		assert.NotContains(t, stmt.SQL.String(), "WHERE")
	})

	t.Run("user is restricted to own rows", func(t *testing.T) {
		scope := builder.BuildScope(DataLevelContext{UserID: 9, Role: RoleUser}, "users", "")
		stmt := buildScopedSQL(t, gdb, scope)
		assert.Contains(t, stmt.SQL.String(), "user_id = $1")
		assert.Equal(t, []interface{}{uint(9)}, stmt.Vars)
	})

	t.Run("manager sees team rows or own rows", func(t *testing.T) {
		scope := builder.BuildScope(DataLevelContext{UserID: 3, Role: RoleManager, TeamIDs: []uint{5, 7}}, "users", "")
		stmt := buildScopedSQL(t, gdb, scope)
		sql := stmt.SQL.String()
		assert.Contains(t, sql, "IN (SELECT user_id FROM team_members WHERE team_id IN")
		assert.Contains(t, sql, "OR")
		assert.Contains(t, sql, "user_id = ")
	})

	t.Run("unknown operator matches nothing", func(t *testing.T) {
		scope := DataScope{Table: "users", Predicate: Predicate{Op: PredicateOp("negated")}}
		stmt := buildScopedSQL(t, gdb, scope)
		assert.Contains(t, stmt.SQL.String(), "1 = 0")
	})
}
