package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/999joaquin/CoreTrack/internal/activity"
	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/storage"
	"github.com/999joaquin/CoreTrack/internal/store"
)

const maxAvatarBytes = 5 << 20

var avatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type AccountHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	tokenStore   *store.TokenStore
	files        storage.Store
	secrets      *auth.SecretBox
	recorder     Recorder
	now          func() time.Time
	logger       *slog.Logger
}

func NewAccountHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	ts *store.TokenStore,
	files storage.Store,
	secrets *auth.SecretBox,
	rec Recorder,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		userStore:    us,
		sessionStore: ss,
		tokenStore:   ts,
		files:        files,
		secrets:      secrets,
		recorder:     rec,
		now:          time.Now,
		logger:       logger,
	}
}

func (h *AccountHandler) currentUser(w http.ResponseWriter, r *http.Request) *model.User {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get current user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return nil
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return nil
	}
	return user
}

func (h *AccountHandler) recordSecurity(r *http.Request, userID int64, action activity.Action, d activity.SecurityDetails) {
	h.recorder.Record(r.Context(), activity.Event{
		Action:   action,
		Entity:   activity.EntitySecurity,
		EntityID: idString(userID),
		Details:  d,
	})
}

// GetProfile handles GET /api/account/profile.
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if user := h.currentUser(w, r); user != nil {
		writeJSON(w, http.StatusOK, user)
	}
}

var errShortPhone = errors.New("phone number must contain at least 10 digits")

// normalizeProfile trims every field, prefixes a scheme-less website with
// https:// and requires at least 10 digits in a phone number.
func normalizeProfile(p *model.Profile) error {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Bio = strings.TrimSpace(p.Bio)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Company = strings.TrimSpace(p.Company)
	p.Website = strings.TrimSpace(p.Website)
	p.Location = strings.TrimSpace(p.Location)

	if p.Website != "" && !strings.HasPrefix(p.Website, "http://") && !strings.HasPrefix(p.Website, "https://") {
		p.Website = "https://" + p.Website
	}
	if p.Phone != "" {
		digits := 0
		for _, c := range p.Phone {
			if c >= '0' && c <= '9' {
				digits++
			}
		}
		if digits < 10 {
			return errShortPhone
		}
	}
	return nil
}

func changedProfileFields(u *model.User, p model.Profile) []string {
	var fields []string
	add := func(name, old, new string) {
		if old != new {
			fields = append(fields, name)
		}
	}
	add("full_name", u.FullName, p.FullName)
	add("bio", u.Bio, p.Bio)
	add("phone", u.Phone, p.Phone)
	add("company", u.Company, p.Company)
	add("website", u.Website, p.Website)
	add("location", u.Location, p.Location)
	return fields
}

// UpdateProfile handles PUT /api/account/profile.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req model.Profile
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := normalizeProfile(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	changed := changedProfileFields(user, req)
	updated, err := h.userStore.UpdateProfile(user.ID, req)
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	if len(changed) > 0 {
		h.recorder.Record(r.Context(), activity.Event{
			Action:   activity.ActionProfileUpdated,
			Entity:   activity.EntitySettings,
			EntityID: idString(user.ID),
			Details:  activity.SettingsDetails{UpdatedFields: changed},
		})
	}
	writeJSON(w, http.StatusOK, updated)
}

// UploadAvatar handles POST /api/account/avatar (multipart field "avatar").
func (h *AccountHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		writeError(w, http.StatusServiceUnavailable, "file storage is not configured")
		return
	}
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes+maxBodyBytes)
	file, _, err := r.FormFile("avatar")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "avatar must be 5 MB or smaller")
			return
		}
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read avatar")
		return
	}
	if len(data) > maxAvatarBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "avatar must be 5 MB or smaller")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "avatar file is empty")
		return
	}

	mtype := mimetype.Detect(data)
	if !avatarTypes[mtype.String()] {
		writeError(w, http.StatusUnsupportedMediaType, "avatar must be a JPEG, PNG, GIF or WebP image")
		return
	}

	key := fmt.Sprintf("avatars/%d-%d%s", user.ID, h.now().UnixMilli(), mtype.Extension())
	if err := h.files.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), mtype.String()); err != nil {
		h.logger.Error("upload avatar", "error", err, "user_id", user.ID)
		writeError(w, http.StatusBadGateway, "failed to upload avatar")
		return
	}

	url := h.files.URL(key)
	updated, err := h.userStore.SetAvatarURL(user.ID, &url)
	if err != nil {
		h.logger.Error("set avatar url", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save avatar")
		return
	}
	if user.AvatarURL != nil {
		h.removeObject(r, *user.AvatarURL)
	}

	h.recordSecurity(r, user.ID, activity.ActionAvatarUpdated, activity.SecurityDetails{AvatarURL: url})
	writeJSON(w, http.StatusOK, updated)
}

// DeleteAvatar handles DELETE /api/account/avatar.
func (h *AccountHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	if user.AvatarURL == nil {
		writeError(w, http.StatusNotFound, "no avatar to remove")
		return
	}

	h.removeObject(r, *user.AvatarURL)
	updated, err := h.userStore.SetAvatarURL(user.ID, nil)
	if err != nil {
		h.logger.Error("clear avatar url", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove avatar")
		return
	}

	h.recordSecurity(r, user.ID, activity.ActionAvatarRemoved, activity.SecurityDetails{})
	writeJSON(w, http.StatusOK, updated)
}

// removeObject deletes a stored avatar; URLs outside the store are left alone.
func (h *AccountHandler) removeObject(r *http.Request, url string) {
	key, ok := storage.KeyFromURL(h.files, url)
	if !ok {
		return
	}
	if err := h.files.Delete(r.Context(), key); err != nil {
		h.logger.Error("delete avatar object", "error", err, "key", key)
	}
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	RecoveryToken   string `json:"recovery_token"`
}

// ChangePassword handles PUT /api/account/password. Either the current
// password or a recovery token for the same account is required. Other
// sessions are signed out.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if s := auth.CheckStrength(req.NewPassword); !s.Valid {
		writeWeakPassword(w, s)
		return
	}

	action := activity.ActionPasswordChanged
	method := "password"
	if req.RecoveryToken != "" {
		tok, err := h.tokenStore.GetValid(req.RecoveryToken, model.TokenRecovery)
		if err != nil || tok == nil || !strings.EqualFold(tok.Email, user.Email) {
			writeError(w, http.StatusBadRequest, "invalid or expired reset link")
			return
		}
		if tok, err = h.tokenStore.Consume(req.RecoveryToken, model.TokenRecovery); err != nil || tok == nil {
			writeError(w, http.StatusBadRequest, "invalid or expired reset link")
			return
		}
		action, method = activity.ActionPasswordReset, "email"
	} else if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		writeError(w, http.StatusBadRequest, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}
	if err := h.userStore.UpdatePassword(user.ID, hash); err != nil {
		h.logger.Error("update password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}

	revoked, err := h.sessionStore.DeleteByUserID(user.ID, auth.SessionID(r.Context()))
	if err != nil {
		h.logger.Error("revoke sessions after password change", "error", err)
	}

	h.recordSecurity(r, user.ID, action, activity.SecurityDetails{Method: method, SessionsRevoked: int(revoked)})
	writeJSON(w, http.StatusOK, map[string]any{"updated": true, "sessions_revoked": revoked})
}

// SignOutOthers handles POST /api/account/sessions/revoke, ending every
// session except the current one.
func (h *AccountHandler) SignOutOthers(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	revoked, err := h.sessionStore.DeleteByUserID(userID, auth.SessionID(r.Context()))
	if err != nil {
		h.logger.Error("revoke sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign out other sessions")
		return
	}

	h.recordSecurity(r, userID, activity.ActionSessionsRevoked, activity.SecurityDetails{SessionsRevoked: int(revoked)})
	writeJSON(w, http.StatusOK, map[string]int64{"revoked": revoked})
}

// TwoFactorStatus handles GET /api/account/2fa.
func (h *AccountHandler) TwoFactorStatus(w http.ResponseWriter, r *http.Request) {
	if user := h.currentUser(w, r); user != nil {
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": user.TwoFactorEnabled})
	}
}

// SetupTwoFactor handles POST /api/account/2fa/setup. The secret is stored
// sealed but two-factor auth stays off until a code is confirmed.
func (h *AccountHandler) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	if user.TwoFactorEnabled {
		writeError(w, http.StatusConflict, "two-factor authentication is already enabled")
		return
	}

	enrollment, err := auth.GenerateTOTP(user.Email)
	if err != nil {
		h.logger.Error("generate totp", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start setup")
		return
	}
	sealed, err := h.secrets.Seal(enrollment.Secret)
	if err != nil {
		h.logger.Error("seal totp secret", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start setup")
		return
	}
	if err := h.userStore.SetTOTPSecret(user.ID, sealed); err != nil {
		h.logger.Error("store totp secret", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start setup")
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

type codeRequest struct {
	Code string `json:"code"`
}

func (h *AccountHandler) checkCode(w http.ResponseWriter, r *http.Request, user *model.User) bool {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	if user.TOTPSecret == "" {
		writeError(w, http.StatusBadRequest, "two-factor setup has not been started")
		return false
	}
	secret, err := h.secrets.Open(user.TOTPSecret)
	if err != nil {
		h.logger.Error("open totp secret", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "failed to verify code")
		return false
	}
	if !auth.ValidateTOTP(strings.TrimSpace(req.Code), secret) {
		writeError(w, http.StatusBadRequest, "invalid verification code")
		return false
	}
	return true
}

// EnableTwoFactor handles POST /api/account/2fa/enable.
func (h *AccountHandler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	if user.TwoFactorEnabled {
		writeError(w, http.StatusConflict, "two-factor authentication is already enabled")
		return
	}
	if !h.checkCode(w, r, user) {
		return
	}
	if err := h.userStore.SetTwoFactor(user.ID, true); err != nil {
		h.logger.Error("enable two factor", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enable two-factor authentication")
		return
	}

	h.recordSecurity(r, user.ID, activity.Action2FAEnabled, activity.SecurityDetails{Method: "totp"})
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

// DisableTwoFactor handles POST /api/account/2fa/disable.
func (h *AccountHandler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	if !user.TwoFactorEnabled {
		writeError(w, http.StatusConflict, "two-factor authentication is not enabled")
		return
	}
	if !h.checkCode(w, r, user) {
		return
	}
	if err := h.userStore.SetTwoFactor(user.ID, false); err != nil {
		h.logger.Error("disable two factor", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to disable two-factor authentication")
		return
	}

	h.recordSecurity(r, user.ID, activity.Action2FADisabled, activity.SecurityDetails{Method: "totp"})
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}
