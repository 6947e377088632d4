package handler

import (
	"log/slog"
	"net/http"

	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/notify"
	"github.com/999joaquin/CoreTrack/internal/push"
	"github.com/999joaquin/CoreTrack/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	service   *push.Service
	notify    *notify.Service
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, svc *push.Service, n *notify.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, service: svc, notify: n, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}

	sub, err := h.pushStore.CreateSubscription(auth.UserID(r.Context()), req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.pushStore.DeleteSubscription(id, auth.UserID(r.Context())); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"enabled": h.service.Enabled(), "public_key": ""}
	if h.service.Enabled() {
		resp["public_key"] = h.service.VAPIDPublicKey()
	}
	writeJSON(w, http.StatusOK, resp)
}

// TestNotification handles POST /api/push/test. It goes through the same
// preference gate as any system notification.
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	result, err := h.notify.Send(r.Context(), model.Notification{
		UserID:   auth.UserID(r.Context()),
		Title:    "Test notification",
		Message:  "Push notifications are working.",
		Category: model.CategorySystem,
	})
	if err != nil {
		h.logger.Error("send test notification", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send test notification")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
