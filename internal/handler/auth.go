package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/999joaquin/CoreTrack/internal/activity"
	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/store"
)

type AuthHandler struct {
	userStore     *store.UserStore
	sessionStore  *store.SessionStore
	tokenStore    *store.TokenStore
	prefStore     *store.PreferenceStore
	mailer        AuthMailer
	challenger    *auth.Challenger
	secrets       *auth.SecretBox
	recorder      Recorder
	secureCookies bool
	logger        *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	ts *store.TokenStore,
	ps *store.PreferenceStore,
	mailer AuthMailer,
	challenger *auth.Challenger,
	secrets *auth.SecretBox,
	rec Recorder,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:     us,
		sessionStore:  ss,
		tokenStore:    ts,
		prefStore:     ps,
		mailer:        mailer,
		challenger:    challenger,
		secrets:       secrets,
		recorder:      rec,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func validEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\r\n")
}

func writeWeakPassword(w http.ResponseWriter, s auth.Strength) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":    auth.ErrWeakPassword.Error(),
		"strength": s,
	})
}

// Signup handles POST /api/auth/signup. The first account becomes an admin.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = normalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if !validEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if s := auth.CheckStrength(req.Password); !s.Valid {
		writeWeakPassword(w, s)
		return
	}

	existing, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("signup lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "an account with this email already exists")
		return
	}

	count, err := h.userStore.Count()
	if err != nil {
		h.logger.Error("count users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	role := model.RoleUser
	if count == 0 {
		role = model.RoleAdmin
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	user, err := h.userStore.Create(req.Email, req.FullName, role, hash)
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	h.setupAccount(r, user)
	h.sendVerification(r, user.Email)

	if !h.startSession(w, r, user) {
		return
	}
	h.recorder.Record(r.Context(), activity.Event{
		ActorID:  user.ID,
		Action:   activity.ActionSignedUp,
		Entity:   activity.EntityAuth,
		EntityID: idString(user.ID),
		Details:  activity.AuthDetails{Email: user.Email, Method: "password"},
	})

	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

// setupAccount writes the default notification preferences for a new account.
func (h *AuthHandler) setupAccount(r *http.Request, user *model.User) {
	if err := h.prefStore.CreateDefault(r.Context(), user.ID); err != nil {
		h.logger.Error("create default preferences", "error", err, "user_id", user.ID)
	}
}

func (h *AuthHandler) sendVerification(r *http.Request, email string) bool {
	tok, err := h.tokenStore.Create(email, model.TokenVerify, store.TokenOptions{})
	if err != nil {
		h.logger.Error("create verification token", "error", err)
		return false
	}
	if err := h.mailer.SendVerification(r.Context(), email, tok.Token); err != nil {
		h.logger.Error("send verification email", "error", err, "email", email)
		return false
	}
	return true
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User) bool {
	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return false
	}
	setSessionCookie(w, r, sess.Token, h.secureCookies)
	return true
}

// Signin handles POST /api/auth/signin. Accounts with two-factor auth get a
// challenge token to exchange at /api/auth/mfa instead of a session.
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := h.userStore.GetByEmail(normalizeEmail(req.Email))
	if err != nil {
		h.logger.Error("signin lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if user.TwoFactorEnabled {
		challenge, err := h.challenger.Issue(user.ID)
		if err != nil {
			h.logger.Error("issue mfa challenge", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to sign in")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mfa_required": true, "challenge": challenge})
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	h.recordSignIn(r, user, "password")
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *AuthHandler) recordSignIn(r *http.Request, user *model.User, method string) {
	h.recorder.Record(r.Context(), activity.Event{
		ActorID:  user.ID,
		Action:   activity.ActionSignedIn,
		Entity:   activity.EntityAuth,
		EntityID: idString(user.ID),
		Details:  activity.AuthDetails{Email: user.Email, Method: method},
	})
}

type mfaRequest struct {
	Challenge string `json:"challenge"`
	Code      string `json:"code"`
}

// VerifyMFA handles POST /api/auth/mfa.
func (h *AuthHandler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	var req mfaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	claims, err := h.challenger.Peek(req.Challenge)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	user, err := h.userStore.GetByID(claims.UserID)
	if err != nil || user == nil || !user.TwoFactorEnabled {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidChallenge.Error())
		return
	}

	secret, err := h.secrets.Open(user.TOTPSecret)
	if err != nil {
		h.logger.Error("open totp secret", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "failed to verify code")
		return
	}
	if !auth.ValidateTOTP(strings.TrimSpace(req.Code), secret) {
		writeError(w, http.StatusUnauthorized, "invalid verification code")
		return
	}
	if !h.challenger.Consume(claims) {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidChallenge.Error())
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	h.recordSignIn(r, user, "totp")
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// Signout handles POST /api/auth/signout.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	if sid := auth.SessionID(r.Context()); sid != 0 {
		if err := h.sessionStore.Delete(sid); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	clearSessionCookie(w)

	ac, _ := auth.FromContext(r.Context())
	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionSignedOut,
		Entity:   activity.EntityAuth,
		EntityID: idString(ac.UserID),
		Details:  activity.AuthDetails{Email: ac.Email},
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// VerifyEmail handles GET /api/auth/verify?token=...
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	tok, err := h.tokenStore.Consume(r.URL.Query().Get("token"), model.TokenVerify)
	if err != nil {
		h.logger.Error("consume verification token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to verify email")
		return
	}
	if tok == nil {
		writeError(w, http.StatusBadRequest, "invalid or expired verification link")
		return
	}

	user, err := h.userStore.GetByEmail(tok.Email)
	if err != nil || user == nil {
		writeError(w, http.StatusBadRequest, "invalid or expired verification link")
		return
	}
	if err := h.userStore.MarkEmailVerified(user.ID); err != nil {
		h.logger.Error("mark email verified", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to verify email")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// ResendVerification handles POST /api/auth/resend-verification.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user.EmailVerifiedAt != nil {
		writeError(w, http.StatusConflict, "email is already verified")
		return
	}
	if !h.sendVerification(r, user.Email) {
		writeError(w, http.StatusBadGateway, "failed to send verification email")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"sent": true})
}

// RequestRecovery handles POST /api/auth/recover. The response does not
// reveal whether the account exists.
func (h *AuthHandler) RequestRecovery(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	resp := map[string]string{"message": "If an account exists for that email, a reset link has been sent."}
	user, err := h.userStore.GetByEmail(normalizeEmail(req.Email))
	if err != nil {
		h.logger.Error("recovery lookup", "error", err)
	}
	if user == nil {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	tok, err := h.tokenStore.Create(user.Email, model.TokenRecovery, store.TokenOptions{})
	if err != nil {
		h.logger.Error("create recovery token", "error", err)
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	if err := h.mailer.SendPasswordReset(r.Context(), user.Email, tok.Token); err != nil {
		h.logger.Error("send recovery email", "error", err, "user_id", user.ID)
	}
	writeJSON(w, http.StatusAccepted, resp)
}

type tokenRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// ConfirmRecovery handles POST /api/auth/recover/confirm. A valid recovery
// token signs the user in; the token stays usable for the password change
// at PUT /api/account/password.
func (h *AuthHandler) ConfirmRecovery(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	tok, err := h.tokenStore.GetValid(req.Token, model.TokenRecovery)
	if err != nil {
		h.logger.Error("get recovery token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to verify link")
		return
	}
	if tok == nil {
		writeError(w, http.StatusBadRequest, "invalid or expired reset link")
		return
	}
	user, err := h.userStore.GetByEmail(tok.Email)
	if err != nil || user == nil {
		writeError(w, http.StatusBadRequest, "invalid or expired reset link")
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// AcceptInvite handles POST /api/auth/accept-invite.
func (h *AuthHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if s := auth.CheckStrength(req.Password); !s.Valid {
		writeWeakPassword(w, s)
		return
	}

	tok, err := h.tokenStore.GetValid(req.Token, model.TokenInvite)
	if err != nil {
		h.logger.Error("get invite token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to accept invitation")
		return
	}
	if tok == nil {
		writeError(w, http.StatusBadRequest, "invalid or expired invitation")
		return
	}
	if existing, _ := h.userStore.GetByEmail(tok.Email); existing != nil {
		writeError(w, http.StatusConflict, "an account with this email already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to accept invitation")
		return
	}
	if tok, err = h.tokenStore.Consume(req.Token, model.TokenInvite); err != nil || tok == nil {
		writeError(w, http.StatusBadRequest, "invalid or expired invitation")
		return
	}

	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		fullName = tok.FullName
	}
	role := tok.Role
	if role != model.RoleAdmin {
		role = model.RoleUser
	}
	user, err := h.userStore.Create(tok.Email, fullName, role, hash)
	if err != nil {
		h.logger.Error("create invited user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to accept invitation")
		return
	}
	if err := h.userStore.MarkEmailVerified(user.ID); err != nil {
		h.logger.Error("mark invited email verified", "error", err)
	}
	h.setupAccount(r, user)

	if !h.startSession(w, r, user) {
		return
	}
	h.recorder.Record(r.Context(), activity.Event{
		ActorID:  user.ID,
		Action:   activity.ActionSignedUp,
		Entity:   activity.EntityAuth,
		EntityID: idString(user.ID),
		Details:  activity.AuthDetails{Email: user.Email, Method: "invitation"},
	})
	user, _ = h.userStore.GetByID(user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

// PasswordStrength handles POST /api/auth/password-strength.
func (h *AuthHandler) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	writeJSON(w, http.StatusOK, auth.CheckStrength(req.Password))
}
