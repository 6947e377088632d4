package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/999joaquin/CoreTrack/internal/model"
)

// categoryKeys maps a notification category to its preference flag suffix.
var categoryKeys = map[string]string{
	model.CategoryProject: "project_updates",
	model.CategoryTask:    "task_assignments",
	model.CategoryGoal:    "goal_reminders",
	model.CategoryExpense: "expense_alerts",
	model.CategorySystem:  "system_updates",
}

// PreferenceKey returns the "{channel}_{key}" flag name for a category.
func PreferenceKey(category, channel string) string {
	key, ok := categoryKeys[category]
	if !ok {
		return ""
	}
	return channel + "_" + key
}

// ShouldSend reports whether userID has opted in to category on channel.
// Users without a preference row, unknown categories and lookup failures
// all answer false.
func (s *Service) ShouldSend(ctx context.Context, userID int64, category, channel string) bool {
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		s.logger.Error("preference lookup failed", "error", err, "user_id", userID)
		return false
	}
	return allowed(prefs, category, channel)
}

func allowed(prefs *model.NotificationPreferences, category, channel string) bool {
	if prefs == nil {
		return false
	}
	on, ok := prefs.Flag(PreferenceKey(category, channel))
	return ok && on
}

// InQuietHours reports whether now falls inside the user's quiet window,
// evaluated in their timezone. The window may wrap midnight; equal start and
// end means no quiet hours.
func InQuietHours(prefs *model.NotificationPreferences, now time.Time) bool {
	if prefs == nil {
		return false
	}
	start, err := parseClock(prefs.QuietHoursStart)
	if err != nil {
		return false
	}
	end, err := parseClock(prefs.QuietHoursEnd)
	if err != nil || start == end {
		return false
	}

	loc, err := time.LoadLocation(prefs.Timezone)
	if err != nil || prefs.Timezone == "" {
		loc = time.UTC
	}
	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()

	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

// parseClock turns "HH:MM" into minutes after midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ValidClock reports whether s is a valid "HH:MM" time.
func ValidClock(s string) bool {
	_, err := parseClock(s)
	return err == nil
}
