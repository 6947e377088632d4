package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/999joaquin/CoreTrack/internal/model"
)

const (
	sessionTTL = 90 * 24 * time.Hour
	// Sessions with less than this left are pushed back out to sessionTTL.
	sessionRenewWindow = 30 * 24 * time.Hour
)

type SessionStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

// Create opens a session for the user under a fresh random token.
func (s *SessionStore) Create(userID int64) (*model.Session, error) {
	token, err := randomToken()
	if err != nil {
		return nil, err
	}

	var sess model.Session
	err = s.db.Get(&sess,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)
		 RETURNING id, token, user_id, expires_at, created_at`,
		token, userID, sqliteTime(s.now().Add(sessionTTL)),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &sess, nil
}

// GetByToken returns the live session for token, or nil. A session close to
// expiry is renewed as a side effect.
func (s *SessionStore) GetByToken(token string) (*model.Session, error) {
	var sess model.Session
	err := s.db.Get(&sess,
		`SELECT id, token, user_id, expires_at, created_at
		 FROM sessions WHERE token = ? AND expires_at > ?`,
		token, sqliteTime(s.now()),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}

	if sess.ExpiresAt.Sub(s.now()) < sessionRenewWindow {
		expiresAt := s.now().Add(sessionTTL)
		if _, err := s.db.Exec(`UPDATE sessions SET expires_at = ? WHERE id = ?`, sqliteTime(expiresAt), sess.ID); err != nil {
			return nil, fmt.Errorf("renew session: %w", err)
		}
		sess.ExpiresAt = expiresAt.UTC().Truncate(time.Second)
		sess.Renewed = true
	}
	return &sess, nil
}

func (s *SessionStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteByUserID removes every session of the user except keepID (0 keeps none)
// and returns how many went.
func (s *SessionStore) DeleteByUserID(userID, keepID int64) (int64, error) {
	return s.deleteWhere("delete sessions by user", `user_id = ? AND id != ?`, userID, keepID)
}

func (s *SessionStore) DeleteExpired() (int64, error) {
	return s.deleteWhere("delete expired sessions", `expires_at <= ?`, sqliteTime(s.now()))
}

func (s *SessionStore) deleteWhere(op, cond string, args ...any) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE `+cond, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
