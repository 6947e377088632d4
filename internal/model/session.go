package model

import "time"

type Session struct {
	ID        int64     `json:"id" db:"id"`
	Token     string    `json:"-" db:"token"`
	UserID    int64     `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Renewed reports that the lookup pushed ExpiresAt out.
	Renewed bool `json:"-" db:"-"`
}

// Auth token purposes.
const (
	TokenVerify   = "verify"
	TokenRecovery = "recovery"
	TokenInvite   = "invite"
)

// AuthToken is a one-time emailed token for verification, recovery or invitation.
type AuthToken struct {
	ID        int64      `json:"id"`
	Token     string     `json:"-"`
	Email     string     `json:"email"`
	Purpose   string     `json:"purpose"`
	Role      string     `json:"role"`
	FullName  string     `json:"full_name"`
	InvitedBy *int64     `json:"invited_by"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}
