package model

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID               int64      `json:"id" db:"id"`
	Email            string     `json:"email" db:"email"`
	FullName         string     `json:"full_name" db:"full_name"`
	Role             string     `json:"role" db:"role"`
	PasswordHash     string     `json:"-" db:"password_hash"`
	EmailVerifiedAt  *time.Time `json:"email_verified_at" db:"email_verified_at"`
	AvatarURL        *string    `json:"avatar_url" db:"avatar_url"`
	Bio              string     `json:"bio" db:"bio"`
	Phone            string     `json:"phone" db:"phone"`
	Company          string     `json:"company" db:"company"`
	Website          string     `json:"website" db:"website"`
	Location         string     `json:"location" db:"location"`
	TwoFactorEnabled bool       `json:"two_factor_enabled" db:"two_factor_enabled"`
	TOTPSecret       string     `json:"-" db:"totp_secret"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// DisplayName prefers the full name, then the email address.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Profile holds the user-editable profile fields.
type Profile struct {
	FullName string `json:"full_name"`
	Bio      string `json:"bio"`
	Phone    string `json:"phone"`
	Company  string `json:"company"`
	Website  string `json:"website"`
	Location string `json:"location"`
}
