package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/999joaquin/CoreTrack/internal/activity"
	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/store"
)

// UserHandler serves the team directory and the admin user operations.
type UserHandler struct {
	userStore  *store.UserStore
	tokenStore *store.TokenStore
	mailer     AuthMailer
	recorder   Recorder
	notifier   Notifier
	logger     *slog.Logger
}

func NewUserHandler(us *store.UserStore, ts *store.TokenStore, mailer AuthMailer, rec Recorder, n Notifier, logger *slog.Logger) *UserHandler {
	return &UserHandler{userStore: us, tokenStore: ts, mailer: mailer, recorder: rec, notifier: n, logger: logger}
}

func validRole(role string) bool {
	return role == model.RoleAdmin || role == model.RoleUser
}

// List handles GET /api/users?search=&role=
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStore.List(r.URL.Query().Get("search"), r.URL.Query().Get("role"))
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// ListInvitations handles GET /api/admin/invitations.
func (h *UserHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	invites, err := h.tokenStore.ListPendingInvites()
	if err != nil {
		h.logger.Error("list invitations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list invitations")
		return
	}
	if invites == nil {
		invites = []model.AuthToken{}
	}
	writeJSON(w, http.StatusOK, invites)
}

type inviteRequest struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
}

// Invite handles POST /api/admin/invitations. The invited address has no
// account yet, so the activity is keyed by email.
func (h *UserHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = normalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	if !validEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if !validRole(req.Role) {
		writeError(w, http.StatusBadRequest, "role must be admin or user")
		return
	}

	existing, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("invite lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create invitation")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "a user with this email already exists")
		return
	}

	actorID := auth.UserID(r.Context())
	tok, err := h.tokenStore.Create(req.Email, model.TokenInvite, store.TokenOptions{
		Role:      req.Role,
		FullName:  req.FullName,
		InvitedBy: &actorID,
	})
	if err != nil {
		h.logger.Error("create invitation", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create invitation")
		return
	}

	inviter, _ := h.userStore.GetByID(actorID)
	sent := true
	if err := h.mailer.SendInvite(r.Context(), req.Email, tok.Token, inviter.DisplayName(), req.Role); err != nil {
		h.logger.Error("send invitation email", "error", err, "email", req.Email)
		sent = false
	}

	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionInvited,
		Entity:   activity.EntityUser,
		EntityID: req.Email,
		Details: activity.InviteDetails{
			Email:    req.Email,
			FullName: req.FullName,
			Role:     req.Role,
			Method:   "email",
		},
	})

	writeJSON(w, http.StatusCreated, map[string]any{"invitation": tok, "email_sent": sent})
}

type roleRequest struct {
	Role string `json:"role"`
}

// UpdateRole handles PUT /api/admin/users/{id}/role.
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if id == auth.UserID(r.Context()) {
		writeError(w, http.StatusBadRequest, "you cannot change your own role")
		return
	}

	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !validRole(req.Role) {
		writeError(w, http.StatusBadRequest, "role must be admin or user")
		return
	}

	target, err := h.userStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if target.Role == req.Role {
		writeJSON(w, http.StatusOK, target)
		return
	}

	updated, err := h.userStore.UpdateRole(id, req.Role)
	if err != nil {
		h.logger.Error("update role", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update role")
		return
	}

	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionRoleChanged,
		Entity:   activity.EntityUser,
		EntityID: idString(id),
		Details:  activity.RoleChangeDetails{Email: target.Email, OldRole: target.Role, NewRole: req.Role},
	})
	h.notifier.Notify(r.Context(), model.Notification{
		UserID:   id,
		Title:    "Your role has changed",
		Message:  fmt.Sprintf("An administrator changed your role from %s to %s.", target.Role, req.Role),
		Category: model.CategorySystem,
		Metadata: map[string]any{"old_role": target.Role, "new_role": req.Role},
	})

	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/admin/users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if id == auth.UserID(r.Context()) {
		writeError(w, http.StatusBadRequest, "you cannot delete your own account here")
		return
	}

	target, err := h.userStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := h.userStore.Delete(id); err != nil {
		h.logger.Error("delete user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionDeleted,
		Entity:   activity.EntityUser,
		EntityID: idString(id),
		Details:  activity.UserDetails{Email: target.Email, FullName: target.FullName},
	})
	w.WriteHeader(http.StatusNoContent)
}
