package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/999joaquin/CoreTrack/internal/activity"
	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/notify"
	"github.com/999joaquin/CoreTrack/internal/store"
)

var digestFrequencies = map[string]bool{"daily": true, "weekly": true, "never": true}

// preferenceFields are the keys a client may change.
var preferenceFields = map[string]bool{
	"email_project_updates":  true,
	"email_task_assignments": true,
	"email_goal_reminders":   true,
	"email_expense_alerts":   true,
	"email_weekly_reports":   true,
	"email_system_updates":   true,
	"push_project_updates":   true,
	"push_task_assignments":  true,
	"push_goal_reminders":    true,
	"push_expense_alerts":    true,
	"push_system_updates":    true,
	"digest_frequency":       true,
	"quiet_hours_start":      true,
	"quiet_hours_end":        true,
	"timezone":               true,
}

type PreferenceHandler struct {
	prefStore *store.PreferenceStore
	recorder  Recorder
	logger    *slog.Logger
}

func NewPreferenceHandler(ps *store.PreferenceStore, rec Recorder, logger *slog.Logger) *PreferenceHandler {
	return &PreferenceHandler{prefStore: ps, recorder: rec, logger: logger}
}

// Get handles GET /api/notification-preferences. A user without a row sees
// the defaults; nothing is written until they save.
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	prefs, err := h.prefStore.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("get preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	if prefs == nil {
		d := model.DefaultPreferences(userID)
		prefs = &d
	}
	writeJSON(w, http.StatusOK, prefs)
}

// Update handles PUT /api/notification-preferences. Only the keys present in
// the body change.
func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	changes := make(map[string]json.RawMessage, len(body))
	var fields []string
	for k, v := range body {
		if preferenceFields[k] {
			changes[k] = v
			fields = append(fields, k)
		}
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no preference fields given")
		return
	}
	slices.Sort(fields)

	userID := auth.UserID(r.Context())
	current, err := h.prefStore.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("get preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	next := model.DefaultPreferences(userID)
	if current != nil {
		next = *current
	}

	raw, _ := json.Marshal(changes)
	if err := json.Unmarshal(raw, &next); err != nil {
		writeError(w, http.StatusBadRequest, "invalid preference value")
		return
	}
	next.UserID = userID

	if msg := validatePreferences(&next); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	saved, err := h.prefStore.Upsert(r.Context(), next)
	if err != nil {
		h.logger.Error("save preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionPrefsUpdated,
		Entity:   activity.EntitySettings,
		EntityID: idString(userID),
		Details:  activity.SettingsDetails{UpdatedFields: fields},
	})

	writeJSON(w, http.StatusOK, saved)
}

func validatePreferences(p *model.NotificationPreferences) string {
	if !digestFrequencies[p.DigestFrequency] {
		return "digest_frequency must be daily, weekly or never"
	}
	if !notify.ValidClock(p.QuietHoursStart) || !notify.ValidClock(p.QuietHoursEnd) {
		return "quiet hours must be HH:MM"
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return "unknown timezone"
	}
	return ""
}
