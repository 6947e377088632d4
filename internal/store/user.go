package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/999joaquin/CoreTrack/internal/model"
)

type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var verifiedAt sql.NullTime
	var avatarURL sql.NullString
	var twoFactor int

	err := scanner.Scan(
		&u.ID, &u.Email, &u.FullName, &u.Role, &u.PasswordHash, &verifiedAt,
		&avatarURL, &u.Bio, &u.Phone, &u.Company, &u.Website, &u.Location,
		&twoFactor, &u.TOTPSecret, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if verifiedAt.Valid {
		u.EmailVerifiedAt = &verifiedAt.Time
	}
	u.AvatarURL = stringPtr(avatarURL)
	u.TwoFactorEnabled = twoFactor != 0
	return &u, nil
}

const userCols = `id, email, full_name, role, password_hash, email_verified_at, avatar_url, bio, phone, company, website, location, two_factor_enabled, totp_secret, created_at, updated_at`

func (s *UserStore) Create(email, fullName, role, passwordHash string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, full_name, role, password_hash) VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(email), fullName, role, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail matches case-insensitively.
func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, strings.TrimSpace(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// List returns users ordered by creation time, newest first. Search matches
// name or email; role narrows to one role when set.
func (s *UserStore) List(search, role string) ([]model.User, error) {
	query := `SELECT ` + userCols + ` FROM users WHERE 1 = 1`
	var args []any
	if strings.TrimSpace(search) != "" {
		query += ` AND (lower(full_name) LIKE ? ESCAPE '\' OR lower(email) LIKE ? ESCAPE '\')`
		p := likePattern(search)
		args = append(args, p, p)
	}
	if role != "" {
		query += ` AND role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *UserStore) UpdateProfile(id int64, p model.Profile) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET full_name = ?, bio = ?, phone = ?, company = ?, website = ?, location = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		p.FullName, p.Bio, p.Phone, p.Company, p.Website, p.Location, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) UpdateRole(id int64, role string) (*model.User, error) {
	_, err := s.db.Exec(`UPDATE users SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, role, id)
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) UpdatePassword(id int64, passwordHash string) error {
	_, err := s.db.Exec(`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *UserStore) MarkEmailVerified(id int64) error {
	_, err := s.db.Exec(
		`UPDATE users SET email_verified_at = COALESCE(email_verified_at, CURRENT_TIMESTAMP), updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}

// SetAvatarURL sets or, with nil, clears the avatar.
func (s *UserStore) SetAvatarURL(id int64, url *string) (*model.User, error) {
	_, err := s.db.Exec(`UPDATE users SET avatar_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, nullString(url), id)
	if err != nil {
		return nil, fmt.Errorf("set avatar url: %w", err)
	}
	return s.GetByID(id)
}

// SetTOTPSecret stores a sealed TOTP secret without enabling two-factor auth.
func (s *UserStore) SetTOTPSecret(id int64, sealed string) error {
	_, err := s.db.Exec(`UPDATE users SET totp_secret = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, sealed, id)
	if err != nil {
		return fmt.Errorf("set totp secret: %w", err)
	}
	return nil
}

// SetTwoFactor toggles two-factor auth. Disabling also clears the secret.
func (s *UserStore) SetTwoFactor(id int64, enabled bool) error {
	query := `UPDATE users SET two_factor_enabled = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if !enabled {
		query = `UPDATE users SET two_factor_enabled = 0, totp_secret = '', updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	}
	if _, err := s.db.Exec(query, id); err != nil {
		return fmt.Errorf("set two factor: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
