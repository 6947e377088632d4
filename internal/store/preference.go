package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/999joaquin/CoreTrack/internal/model"
)

type PreferenceStore struct {
	db *sqlx.DB
}

func NewPreferenceStore(db *sqlx.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

const preferenceCols = `user_id,
	email_project_updates, email_task_assignments, email_goal_reminders,
	email_expense_alerts, email_weekly_reports, email_system_updates,
	push_project_updates, push_task_assignments, push_goal_reminders,
	push_expense_alerts, push_system_updates,
	digest_frequency, quiet_hours_start, quiet_hours_end, timezone,
	created_at, updated_at`

// Get returns the user's preference row, or nil when none has been written.
func (s *PreferenceStore) Get(ctx context.Context, userID int64) (*model.NotificationPreferences, error) {
	var p model.NotificationPreferences
	err := s.db.GetContext(ctx, &p, `SELECT `+preferenceCols+` FROM notification_preferences WHERE user_id = ?`, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return &p, nil
}

// CreateDefault writes the default row for a new account. An existing row is left alone.
func (s *PreferenceStore) CreateDefault(ctx context.Context, userID int64) error {
	p := model.DefaultPreferences(userID)
	_, err := s.db.NamedExecContext(ctx, insertPreferences+` ON CONFLICT(user_id) DO NOTHING`, p)
	if err != nil {
		return fmt.Errorf("create default preferences: %w", err)
	}
	return nil
}

const insertPreferences = `INSERT INTO notification_preferences (
	user_id,
	email_project_updates, email_task_assignments, email_goal_reminders,
	email_expense_alerts, email_weekly_reports, email_system_updates,
	push_project_updates, push_task_assignments, push_goal_reminders,
	push_expense_alerts, push_system_updates,
	digest_frequency, quiet_hours_start, quiet_hours_end, timezone
) VALUES (
	:user_id,
	:email_project_updates, :email_task_assignments, :email_goal_reminders,
	:email_expense_alerts, :email_weekly_reports, :email_system_updates,
	:push_project_updates, :push_task_assignments, :push_goal_reminders,
	:push_expense_alerts, :push_system_updates,
	:digest_frequency, :quiet_hours_start, :quiet_hours_end, :timezone
)`

// Upsert replaces the user's preferences with p.
func (s *PreferenceStore) Upsert(ctx context.Context, p model.NotificationPreferences) (*model.NotificationPreferences, error) {
	_, err := s.db.NamedExecContext(ctx, insertPreferences+` ON CONFLICT(user_id) DO UPDATE SET
		email_project_updates = excluded.email_project_updates,
		email_task_assignments = excluded.email_task_assignments,
		email_goal_reminders = excluded.email_goal_reminders,
		email_expense_alerts = excluded.email_expense_alerts,
		email_weekly_reports = excluded.email_weekly_reports,
		email_system_updates = excluded.email_system_updates,
		push_project_updates = excluded.push_project_updates,
		push_task_assignments = excluded.push_task_assignments,
		push_goal_reminders = excluded.push_goal_reminders,
		push_expense_alerts = excluded.push_expense_alerts,
		push_system_updates = excluded.push_system_updates,
		digest_frequency = excluded.digest_frequency,
		quiet_hours_start = excluded.quiet_hours_start,
		quiet_hours_end = excluded.quiet_hours_end,
		timezone = excluded.timezone,
		updated_at = CURRENT_TIMESTAMP`, p)
	if err != nil {
		return nil, fmt.Errorf("upsert preferences: %w", err)
	}
	return s.Get(ctx, p.UserID)
}

// ListByDigest returns the preference rows with the given digest frequency.
func (s *PreferenceStore) ListByDigest(ctx context.Context, frequency string) ([]model.NotificationPreferences, error) {
	var prefs []model.NotificationPreferences
	err := s.db.SelectContext(ctx, &prefs,
		`SELECT `+preferenceCols+` FROM notification_preferences WHERE digest_frequency = ? AND email_weekly_reports = 1 ORDER BY user_id`,
		frequency,
	)
	if err != nil {
		return nil, fmt.Errorf("list preferences by digest: %w", err)
	}
	return prefs, nil
}
