package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/notify"
)

const defaultNotificationLimit = 50

type NotificationHandler struct {
	svc    *notify.Service
	logger *slog.Logger
}

func NewNotificationHandler(svc *notify.Service, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// List handles GET /api/notifications?limit=&unread=true
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := int(queryInt64(r, "limit"))
	if limit <= 0 || limit > 200 {
		limit = defaultNotificationLimit
	}
	items, err := h.svc.List(r.Context(), auth.UserID(r.Context()), limit, queryBool(r, "unread"))
	if err != nil {
		h.logger.Error("list notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if items == nil {
		items = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadCount(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("unread count", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// MarkRead handles POST /api/notifications/{id}/read. Marking an already
// read notification succeeds without change.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	n, err := h.svc.MarkRead(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		h.logger.Error("mark notification read", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update notification")
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// MarkAllRead handles POST /api/notifications/read-all and returns the
// notifications that changed.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	changed, err := h.svc.MarkAllRead(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("mark all read", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}
	if changed == nil {
		changed = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, changed)
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ok, err := h.svc.Delete(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		h.logger.Error("delete notification", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete notification")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createNotificationRequest struct {
	UserID     int64          `json:"user_id"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Type       string         `json:"type"`
	Category   string         `json:"category"`
	ActionURL  string         `json:"action_url"`
	ActionText string         `json:"action_text"`
	Metadata   map[string]any `json:"metadata"`
	Gated      bool           `json:"respect_preferences"`
}

// Create handles POST /api/admin/notifications. By default the notification
// is stored directly; with respect_preferences it goes through the gate and
// may come back skipped.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	n := model.Notification{
		UserID:     req.UserID,
		Title:      req.Title,
		Message:    req.Message,
		Type:       req.Type,
		Category:   req.Category,
		ActionURL:  optionalString(req.ActionURL),
		ActionText: optionalString(req.ActionText),
		Metadata:   req.Metadata,
	}

	var (
		result notify.Result
		err    error
	)
	if req.Gated {
		result, err = h.svc.Send(r.Context(), n)
	} else {
		result.Notification, err = h.svc.Create(r.Context(), n)
	}
	switch {
	case errors.Is(err, notify.ErrInvalidCategory), errors.Is(err, notify.ErrInvalidType), errors.Is(err, notify.ErrMissingContent):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("create notification", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create notification")
		return
	}

	status := http.StatusCreated
	if result.Skipped {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}
