package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/999joaquin/CoreTrack/internal/model"
)

type PushStore struct {
	db *sqlx.DB
}

func NewPushStore(db *sqlx.DB) *PushStore {
	return &PushStore{db: db}
}

const pushCols = `id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := scanner.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription registers a browser endpoint for userID. Re-subscribing
// an endpoint moves it to the caller and refreshes its keys.
func (s *PushStore) CreateSubscription(userID int64, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	_, err := s.db.Exec(
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET user_id = excluded.user_id, p256dh_key = excluded.p256dh_key,
		   auth_key = excluded.auth_key, device_name = excluded.device_name`,
		userID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	// LastInsertId is unreliable on the conflict path
	return s.getByEndpoint(endpoint)
}

func (s *PushStore) GetByID(id, userID int64) (*model.PushSubscription, error) {
	row := s.db.QueryRow(`SELECT `+pushCols+` FROM push_subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) getByEndpoint(endpoint string) (*model.PushSubscription, error) {
	row := s.db.QueryRow(`SELECT `+pushCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by endpoint: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListByUser(userID int64) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+pushCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *PushStore) DeleteSubscription(id, userID int64) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

// RecordSent marks a scheduled notification as delivered. It reports false
// when the (user, kind, reference) triple was already recorded.
func (s *PushStore) RecordSent(userID int64, kind, refID string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO notification_log (user_id, kind, reference_id) VALUES (?, ?, ?)`,
		userID, kind, refID,
	)
	if err != nil {
		return false, fmt.Errorf("record sent notification: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PushStore) WasSent(userID int64, kind, refID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notification_log WHERE user_id = ? AND kind = ? AND reference_id = ?`,
		userID, kind, refID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return count > 0, nil
}

// CleanupSent deletes log rows older than before.
func (s *PushStore) CleanupSent(before time.Time) error {
	_, err := s.db.Exec(`DELETE FROM notification_log WHERE sent_at < ?`, sqliteTime(before))
	if err != nil {
		return fmt.Errorf("cleanup sent notifications: %w", err)
	}
	return nil
}
