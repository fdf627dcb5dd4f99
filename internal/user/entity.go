// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/homeser/internal/policy"
)

type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	IsActive     bool      `db:"is_active"`
	IsStaff      bool      `db:"is_staff"`
	IsSuperuser  bool      `db:"is_superuser"`
	TokenVersion int       `db:"token_version"`
	DateJoined   time.Time `db:"date_joined"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) Actor() policy.Actor {
	return policy.Actor{UserID: u.ID, Role: u.Role}
}

const (
	RoleAdmin  = policy.RoleAdmin
	RoleClient = policy.RoleClient
)
