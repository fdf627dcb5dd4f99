// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

type TokenState string

const (
	TokenActive  TokenState = "active"
	TokenRotated TokenState = "rotated"
	TokenRevoked TokenState = "revoked"
	TokenExpired TokenState = "expired"
)

// OutstandingToken is the server-side record of an issued refresh JWT,
// keyed by the token's jti. Tokens issued by successive refreshes share a
// FamilyID.
type OutstandingToken struct {
	ID           string     `db:"id"`
	UserID       int64      `db:"user_id"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

// State reports rotation first: presenting a rotated token is reuse even
// when its family has since been revoked.
func (t *OutstandingToken) State(now time.Time) TokenState {
	switch {
	case t.IsUsed:
		return TokenRotated
	case t.RevokedAt != nil:
		return TokenRevoked
	case !now.Before(t.ExpiresAt):
		return TokenExpired
	default:
		return TokenActive
	}
}
