package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/999joaquin/CoreTrack/internal/model"
)

const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 200
)

type NotificationStore struct {
	db *sqlx.DB
}

func NewNotificationStore(db *sqlx.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

type notificationRow struct {
	ID         int64          `db:"id"`
	UserID     int64          `db:"user_id"`
	Title      string         `db:"title"`
	Message    string         `db:"message"`
	Type       string         `db:"type"`
	Category   string         `db:"category"`
	Read       bool           `db:"read"`
	ActionURL  sql.NullString `db:"action_url"`
	ActionText sql.NullString `db:"action_text"`
	Metadata   string         `db:"metadata"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r notificationRow) notification() model.Notification {
	meta := map[string]any{}
	if r.Metadata != "" {
		_ = json.Unmarshal([]byte(r.Metadata), &meta)
	}
	return model.Notification{
		ID:         r.ID,
		UserID:     r.UserID,
		Title:      r.Title,
		Message:    r.Message,
		Type:       r.Type,
		Category:   r.Category,
		Read:       r.Read,
		ActionURL:  stringPtr(r.ActionURL),
		ActionText: stringPtr(r.ActionText),
		Metadata:   meta,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toNotifications(rows []notificationRow) []model.Notification {
	out := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.notification())
	}
	return out
}

const notificationCols = `id, user_id, title, message, type, category, read, action_url, action_text, metadata, created_at, updated_at`

func (s *NotificationStore) Create(ctx context.Context, n model.Notification) (*model.Notification, error) {
	if n.Type == "" {
		n.Type = model.NotifInfo
	}
	if n.Metadata == nil {
		n.Metadata = map[string]any{}
	}
	meta, err := json.Marshal(n.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, title, message, type, category, action_url, action_text, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Title, n.Message, n.Type, n.Category,
		nullString(n.ActionURL), nullString(n.ActionText), string(meta),
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.get(ctx, s.db, n.UserID, id)
}

// GetByID returns the notification only when it belongs to userID.
func (s *NotificationStore) GetByID(ctx context.Context, userID, id int64) (*model.Notification, error) {
	return s.get(ctx, s.db, userID, id)
}

func (s *NotificationStore) get(ctx context.Context, q sqlx.QueryerContext, userID, id int64) (*model.Notification, error) {
	var row notificationRow
	err := sqlx.GetContext(ctx, q, &row,
		`SELECT `+notificationCols+` FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	n := row.notification()
	return &n, nil
}

// List returns a user's notifications newest first. A limit outside
// (0, MaxNotificationLimit] falls back to the default or the cap.
func (s *NotificationStore) List(ctx context.Context, userID int64, limit int, unreadOnly bool) ([]model.Notification, error) {
	switch {
	case limit <= 0:
		limit = DefaultNotificationLimit
	case limit > MaxNotificationLimit:
		limit = MaxNotificationLimit
	}

	query := `SELECT ` + notificationCols + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return toNotifications(rows), nil
}

// ListUnreadSince returns unread notifications created at or after since, oldest first.
func (s *NotificationStore) ListUnreadSince(ctx context.Context, userID int64, since time.Time) ([]model.Notification, error) {
	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+notificationCols+` FROM notifications
		 WHERE user_id = ? AND read = 0 AND created_at >= ?
		 ORDER BY created_at, id`,
		userID, sqliteTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	return toNotifications(rows), nil
}

func (s *NotificationStore) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flips an unread notification to read. Marking an already-read
// row is a no-op that still returns it. Returns nil when the notification
// does not exist or belongs to someone else.
func (s *NotificationStore) MarkRead(ctx context.Context, userID, id int64) (*model.Notification, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ? AND read = 0`,
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return s.get(ctx, s.db, userID, id)
}

// MarkAllRead marks every unread notification of userID as read and returns
// the rows that changed. A second call returns an empty slice.
func (s *NotificationStore) MarkAllRead(ctx context.Context, userID int64) ([]model.Notification, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var ids []int64
	if err := tx.SelectContext(ctx, &ids, `SELECT id FROM notifications WHERE user_id = ? AND read = 0`, userID); err != nil {
		return nil, fmt.Errorf("select unread notifications: %w", err)
	}
	if len(ids) == 0 {
		return []model.Notification{}, tx.Commit()
	}

	query, args, err := sqlx.In(
		`UPDATE notifications SET read = 1, updated_at = CURRENT_TIMESTAMP WHERE user_id = ? AND id IN (?)`, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("mark all read: %w", err)
	}

	query, args, err = sqlx.In(
		`SELECT `+notificationCols+` FROM notifications WHERE id IN (?) ORDER BY created_at DESC, id DESC`, ids)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var rows []notificationRow
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("reload notifications: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return toNotifications(rows), nil
}

// Delete removes a notification owned by userID and reports whether a row was removed.
func (s *NotificationStore) Delete(ctx context.Context, userID, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
