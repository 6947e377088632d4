package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/999joaquin/CoreTrack/internal/model"
)

// Token lifetimes per purpose.
var tokenTTL = map[string]time.Duration{
	model.TokenVerify:   24 * time.Hour,
	model.TokenRecovery: time.Hour,
	model.TokenInvite:   7 * 24 * time.Hour,
}

type TokenStore struct {
	db *sqlx.DB
}

func NewTokenStore(db *sqlx.DB) *TokenStore {
	return &TokenStore{db: db}
}

func scanToken(scanner interface{ Scan(...any) error }) (*model.AuthToken, error) {
	var t model.AuthToken
	var invitedBy sql.NullInt64
	var usedAt sql.NullTime

	err := scanner.Scan(
		&t.ID, &t.Token, &t.Email, &t.Purpose, &t.Role, &t.FullName,
		&invitedBy, &t.ExpiresAt, &usedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.InvitedBy = int64Ptr(invitedBy)
	if usedAt.Valid {
		t.UsedAt = &usedAt.Time
	}
	return &t, nil
}

const tokenCols = `id, token, email, purpose, role, full_name, invited_by, expires_at, used_at, created_at`

// TokenOptions carries the invitation fields; verify and recovery tokens leave it zero.
type TokenOptions struct {
	Role      string
	FullName  string
	InvitedBy *int64
}

// Create issues a token for the email and purpose. Any earlier pending token
// for the same email and purpose is invalidated first.
func (s *TokenStore) Create(email, purpose string, opts TokenOptions) (*model.AuthToken, error) {
	ttl, ok := tokenTTL[purpose]
	if !ok {
		return nil, fmt.Errorf("unknown token purpose %q", purpose)
	}

	_, err := s.db.Exec(
		`UPDATE auth_tokens SET used_at = datetime('now') WHERE email = ? AND purpose = ? AND used_at IS NULL`,
		email, purpose,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous tokens: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return nil, err
	}
	role := opts.Role
	if role == "" {
		role = model.RoleUser
	}

	result, err := s.db.Exec(
		`INSERT INTO auth_tokens (token, email, purpose, role, full_name, invited_by, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token, email, purpose, role, opts.FullName, nullInt64(opts.InvitedBy), sqliteTime(time.Now().Add(ttl)),
	)
	if err != nil {
		return nil, fmt.Errorf("insert auth token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+tokenCols+` FROM auth_tokens WHERE id = ?`, id)
	return scanToken(row)
}

// GetValid returns the unexpired, unused token, or nil.
func (s *TokenStore) GetValid(token, purpose string) (*model.AuthToken, error) {
	row := s.db.QueryRow(
		`SELECT `+tokenCols+` FROM auth_tokens
		 WHERE token = ? AND purpose = ? AND used_at IS NULL AND expires_at > datetime('now')`,
		token, purpose,
	)
	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auth token: %w", err)
	}
	return t, nil
}

// Consume marks a valid token used and returns it, or nil if it was not
// valid. Two concurrent consumers cannot both succeed.
func (s *TokenStore) Consume(token, purpose string) (*model.AuthToken, error) {
	t, err := s.GetValid(token, purpose)
	if err != nil || t == nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`UPDATE auth_tokens SET used_at = datetime('now') WHERE id = ? AND used_at IS NULL`,
		t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark token used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return t, nil
}

// ListPendingInvites returns unexpired, unused invitations, newest first.
func (s *TokenStore) ListPendingInvites() ([]model.AuthToken, error) {
	rows, err := s.db.Query(
		`SELECT `+tokenCols+` FROM auth_tokens
		 WHERE purpose = ? AND used_at IS NULL AND expires_at > datetime('now')
		 ORDER BY created_at DESC, id DESC`,
		model.TokenInvite,
	)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	var tokens []model.AuthToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

// DeleteExpired removes expired or used tokens and returns the number deleted.
func (s *TokenStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM auth_tokens WHERE expires_at <= datetime('now') OR used_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
