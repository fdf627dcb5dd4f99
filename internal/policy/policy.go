// AngelaMos | 2026
// policy.go

// Package policy decides which rows an actor may see. Repositories take the
// resulting Filter and apply it while building SQL, so visibility rules live
// in exactly one place.
package policy

import (
	"fmt"
)

const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// Actor is the identity a request runs as. The zero value is anonymous.
type Actor struct {
	UserID int64
	Role   string
}

func Anonymous() Actor {
	return Actor{}
}

func (a Actor) IsAnonymous() bool {
	return a.UserID == 0
}

func (a Actor) IsAdmin() bool {
	return a.UserID != 0 && a.Role == RoleAdmin
}

type Resource string

const (
	Users    Resource = "users"
	Profiles Resource = "profiles"
	Carts    Resource = "carts"
	Orders   Resource = "orders"
	Reviews  Resource = "reviews"
)

// Filter restricts a query to the rows an actor owns.
type Filter struct {
	unrestricted bool
	deny         bool
	column       string
	ownerID      int64
}

// Scope returns the visibility filter for actor over resource. Admins see
// everything, clients see their own rows, anonymous callers see nothing.
func Scope(actor Actor, resource Resource) Filter {
	if actor.IsAdmin() {
		return Filter{unrestricted: true}
	}
	if actor.IsAnonymous() {
		return Filter{deny: true}
	}

	column := "user_id"
	if resource == Users {
		column = "id"
	}
	return Filter{column: column, ownerID: actor.UserID}
}

// All is the filter for trusted internal callers.
func All() Filter {
	return Filter{unrestricted: true}
}

func (f Filter) Unrestricted() bool {
	return f.unrestricted
}

// Clause renders the filter as a SQL predicate over the given table alias
// using placeholder $argIdx. An unrestricted filter yields an empty clause
// and no args.
func (f Filter) Clause(alias string, argIdx int) (string, []any) {
	switch {
	case f.unrestricted:
		return "", nil
	case f.deny:
		return "FALSE", nil
	}

	col := f.column
	if alias != "" {
		col = alias + "." + col
	}
	return fmt.Sprintf("%s = $%d", col, argIdx), []any{f.ownerID}
}

// Allows reports whether a row owned by ownerID passes the filter.
func (f Filter) Allows(ownerID int64) bool {
	switch {
	case f.unrestricted:
		return true
	case f.deny:
		return false
	}
	return f.ownerID == ownerID
}

// CanModify is the owner-or-admin rule used for review writes.
func CanModify(actor Actor, ownerID int64) bool {
	return actor.IsAdmin() || (!actor.IsAnonymous() && actor.UserID == ownerID)
}

// Owned limits a query to userID's rows whatever their role. Carts and the
// web order page use it; admins do not browse other users' carts.
func Owned(userID int64) Filter {
	if userID == 0 {
		return Filter{deny: true}
	}
	return Filter{column: "user_id", ownerID: userID}
}
