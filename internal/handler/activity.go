package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/999joaquin/CoreTrack/internal/activity"
	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/store"
)

type ActivityHandler struct {
	activityStore *store.ActivityStore
	logger        *slog.Logger
	now           func() time.Time
}

func NewActivityHandler(as *store.ActivityStore, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activityStore: as, logger: logger, now: time.Now}
}

// activityItem is a record with its rendered sentence.
type activityItem struct {
	activity.Record
	Description string `json:"description"`
}

// List handles GET /api/activities?search=&action=&entity_type=&actor_id=&limit=
// Legacy action spellings are accepted; an unknown action or entity is a 400.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := activity.Filter{
		ActorID: queryInt64(r, "actor_id"),
		Search:  q.Get("search"),
		Limit:   int(queryInt64(r, "limit")),
	}
	if queryBool(r, "mine") {
		f.ActorID = auth.UserID(r.Context())
	}
	if raw := q.Get("action"); raw != "" {
		a, ok := activity.NormalizeAction(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown action")
			return
		}
		f.Action = a
	}
	if raw := q.Get("entity_type"); raw != "" {
		e, ok := activity.ParseEntity(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown entity type")
			return
		}
		f.Entity = e
	}

	records, err := h.activityStore.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list activities", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list activities")
		return
	}
	writeJSON(w, http.StatusOK, toActivityItems(records))
}

func toActivityItems(records []activity.Record) []activityItem {
	items := make([]activityItem, 0, len(records))
	for _, rec := range records {
		items = append(items, activityItem{Record: rec, Description: activity.Format(rec)})
	}
	return items
}

// Stats handles GET /api/activities/stats?mine=true
func (h *ActivityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var actorID int64
	if queryBool(r, "mine") {
		actorID = auth.UserID(r.Context())
	}
	stats, err := h.activityStore.Stats(r.Context(), actorID, h.now())
	if err != nil {
		h.logger.Error("activity stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load activity stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
