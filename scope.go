package permcore

import "fmt"

// PredicateOp enumerates the operators a storage backend must know how to
// render. The engine never emits query-language text itself.
type PredicateOp string

const (
	// PredAll matches every row.
	PredAll PredicateOp = "all"
	// PredEquals matches rows whose Field equals Value.
	PredEquals PredicateOp = "equals"
	// PredMemberOfTeams matches rows whose Field refers to a user belonging
	// to any of TeamIDs.
	PredMemberOfTeams PredicateOp = "member_of_teams"
	// PredAnyOf matches rows satisfying at least one operand.
	PredAnyOf PredicateOp = "any_of"
)

// Predicate is a declarative row filter. Storage backends render it into
// their own query language (see ApplyScope for the GORM rendering).
type Predicate struct {
	Op       PredicateOp
	Field    string
	Value    interface{}
	TeamIDs  []uint
	Operands []Predicate
}

// DataScope restricts which rows of a table a caller may read. One is
// produced per scoping request and never persisted.
type DataScope struct {
	Table       string
	Predicate   Predicate
	Description string
}

// DefaultUserIDColumn is the ownership column assumed when none is given.
const DefaultUserIDColumn = "user_id"

// ScopeBuilder produces role-based data scopes. Stateless; safe for
// concurrent use.
type ScopeBuilder struct{}

// BuildScope derives the row-level predicate for a caller:
//
//   - admin sees every row, no parameters;
//   - a manager with teams sees members of any of their teams union their own
//     rows (a manager always sees their own data);
//   - a manager without team rows degrades to own-rows-only, same shape as
//     the user policy;
//   - everyone else sees rows they own.
func (ScopeBuilder) BuildScope(dlc DataLevelContext, table, userIDColumn string) DataScope {
	if userIDColumn == "" {
		userIDColumn = DefaultUserIDColumn
	}

	switch {
	case dlc.Role == RoleAdmin:
		return DataScope{
			Table:       table,
			Predicate:   Predicate{Op: PredAll},
			Description: "admin: unrestricted",
		}
	case dlc.Role == RoleManager && len(dlc.TeamIDs) > 0:
		return DataScope{
			Table: table,
			Predicate: Predicate{Op: PredAnyOf, Operands: []Predicate{
				{Op: PredMemberOfTeams, Field: userIDColumn, TeamIDs: dlc.TeamIDs},
				{Op: PredEquals, Field: userIDColumn, Value: dlc.UserID},
			}},
			Description: fmt.Sprintf("manager: members of teams %v plus own rows", dlc.TeamIDs),
		}
	default:
		return DataScope{
			Table:       table,
			Predicate:   Predicate{Op: PredEquals, Field: userIDColumn, Value: dlc.UserID},
			Description: "user: own rows only",
		}
	}
}
