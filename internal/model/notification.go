package model

import "time"

// Notification types.
const (
	NotifInfo    = "info"
	NotifSuccess = "success"
	NotifWarning = "warning"
	NotifError   = "error"
)

// Notification categories.
const (
	CategoryProject = "project"
	CategoryTask    = "task"
	CategoryGoal    = "goal"
	CategoryExpense = "expense"
	CategorySystem  = "system"
)

// Delivery channels checked by the preference gate.
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
)

type Notification struct {
	ID         int64          `json:"id"`
	UserID     int64          `json:"user_id"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Type       string         `json:"type"`
	Category   string         `json:"category"`
	Read       bool           `json:"read"`
	ActionURL  *string        `json:"action_url"`
	ActionText *string        `json:"action_text"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NotificationPreferences is the per-user opt-in row consulted by the gate.
type NotificationPreferences struct {
	UserID               int64     `json:"user_id" db:"user_id"`
	EmailProjectUpdates  bool      `json:"email_project_updates" db:"email_project_updates"`
	EmailTaskAssignments bool      `json:"email_task_assignments" db:"email_task_assignments"`
	EmailGoalReminders   bool      `json:"email_goal_reminders" db:"email_goal_reminders"`
	EmailExpenseAlerts   bool      `json:"email_expense_alerts" db:"email_expense_alerts"`
	EmailWeeklyReports   bool      `json:"email_weekly_reports" db:"email_weekly_reports"`
	EmailSystemUpdates   bool      `json:"email_system_updates" db:"email_system_updates"`
	PushProjectUpdates   bool      `json:"push_project_updates" db:"push_project_updates"`
	PushTaskAssignments  bool      `json:"push_task_assignments" db:"push_task_assignments"`
	PushGoalReminders    bool      `json:"push_goal_reminders" db:"push_goal_reminders"`
	PushExpenseAlerts    bool      `json:"push_expense_alerts" db:"push_expense_alerts"`
	PushSystemUpdates    bool      `json:"push_system_updates" db:"push_system_updates"`
	DigestFrequency      string    `json:"digest_frequency" db:"digest_frequency"`
	QuietHoursStart      string    `json:"quiet_hours_start" db:"quiet_hours_start"`
	QuietHoursEnd        string    `json:"quiet_hours_end" db:"quiet_hours_end"`
	Timezone             string    `json:"timezone" db:"timezone"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultPreferences returns the row written for new accounts.
func DefaultPreferences(userID int64) NotificationPreferences {
	return NotificationPreferences{
		UserID:               userID,
		EmailProjectUpdates:  true,
		EmailTaskAssignments: true,
		EmailGoalReminders:   true,
		EmailExpenseAlerts:   true,
		EmailWeeklyReports:   true,
		EmailSystemUpdates:   true,
		PushProjectUpdates:   true,
		PushTaskAssignments:  true,
		PushGoalReminders:    true,
		PushExpenseAlerts:    true,
		PushSystemUpdates:    true,
		DigestFrequency:      "weekly",
		QuietHoursStart:      "22:00",
		QuietHoursEnd:        "08:00",
		Timezone:             "UTC",
	}
}

// Flag looks up a "{channel}_{key}" opt-in flag. The second result is false
// when the key is not one of the enumerated flags.
func (p *NotificationPreferences) Flag(key string) (bool, bool) {
	switch key {
	case "email_project_updates":
		return p.EmailProjectUpdates, true
	case "email_task_assignments":
		return p.EmailTaskAssignments, true
	case "email_goal_reminders":
		return p.EmailGoalReminders, true
	case "email_expense_alerts":
		return p.EmailExpenseAlerts, true
	case "email_weekly_reports":
		return p.EmailWeeklyReports, true
	case "email_system_updates":
		return p.EmailSystemUpdates, true
	case "push_project_updates":
		return p.PushProjectUpdates, true
	case "push_task_assignments":
		return p.PushTaskAssignments, true
	case "push_goal_reminders":
		return p.PushGoalReminders, true
	case "push_expense_alerts":
		return p.PushExpenseAlerts, true
	case "push_system_updates":
		return p.PushSystemUpdates, true
	}
	return false, false
}

type PushSubscription struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
