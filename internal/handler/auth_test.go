package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/999joaquin/CoreTrack/internal/activity"
	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/middleware"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/store"
)

const strongPassword = "Correct!Horse1"

func newAuthHandler(t *testing.T, e *testEnv) *AuthHandler {
	t.Helper()
	secrets, err := auth.NewSecretBox("test-secret")
	if err != nil {
		t.Fatalf("secret box: %v", err)
	}
	return NewAuthHandler(e.users, e.sessions, e.tokens, e.prefs, e.mailer, auth.NewChallenger("test-secret"), secrets, e.recorder, false, e.logger)
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestSignupFirstUserIsAdmin(t *testing.T) {
	e := newTestEnv(t)
	h := newAuthHandler(t, e)

	rec := serve(h.Signup, request(t, "POST", "/api/auth/signup", map[string]any{
		"email": "First@Example.com", "password": strongPassword, "full_name": "First",
	}, nil))
	wantStatus(t, rec, http.StatusCreated)

	body := decode[map[string]model.User](t, rec)
	first := body["user"]
	if first.Role != model.RoleAdmin || first.Email != "first@example.com" {
		t.Errorf("user = %+v", first)
	}
	if c := sessionCookie(t, rec.Result()); !c.HttpOnly || c.Value == "" {
		t.Errorf("cookie = %+v", c)
	}

	prefs, err := e.prefs.Get(t.Context(), first.ID)
	if err != nil || prefs == nil {
		t.Fatalf("default preferences missing: %v", err)
	}
	if len(e.mailer.verifications) != 1 {
		t.Errorf("verification emails = %d, want 1", len(e.mailer.verifications))
	}
	ev := e.recorder.last(t)
	if ev.Action != activity.ActionSignedUp || ev.ActorID != first.ID {
		t.Errorf("event = %+v", ev)
	}

	rec = serve(h.Signup, request(t, "POST", "/", map[string]any{
		"email": "second@example.com", "password": strongPassword,
	}, nil))
	wantStatus(t, rec, http.StatusCreated)
	if second := decode[map[string]model.User](t, rec)["user"]; second.Role != model.RoleUser {
		t.Errorf("second role = %q, want user", second.Role)
	}
}

func TestSignupRejectsWeakPasswordAndDuplicates(t *testing.T) {
	e := newTestEnv(t)
	h := newAuthHandler(t, e)

	rec := serve(h.Signup, request(t, "POST", "/", map[string]any{
		"email": "a@example.com", "password": "password",
	}, nil))
	wantStatus(t, rec, http.StatusBadRequest)
	if body := decode[map[string]any](t, rec); body["strength"] == nil {
		t.Errorf("weak password response lacks strength: %v", body)
	}

	e.user(t, "taken@example.com", model.RoleUser)
	rec = serve(h.Signup, request(t, "POST", "/", map[string]any{
		"email": "TAKEN@example.com", "password": strongPassword,
	}, nil))
	wantStatus(t, rec, http.StatusConflict)
}

func TestSignin(t *testing.T) {
	e := newTestEnv(t)
	h := newAuthHandler(t, e)
	hash, err := auth.HashPassword(strongPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, _ := e.users.Create("dev@example.com", "Dev", model.RoleUser, hash)

	rec := serve(h.Signin, request(t, "POST", "/", map[string]any{"email": "dev@example.com", "password": "wrong"}, nil))
	wantStatus(t, rec, http.StatusUnauthorized)

	rec = serve(h.Signin, request(t, "POST", "/", map[string]any{"email": "nobody@example.com", "password": strongPassword}, nil))
	wantStatus(t, rec, http.StatusUnauthorized)

	rec = serve(h.Signin, request(t, "POST", "/", map[string]any{"email": "DEV@example.com", "password": strongPassword}, nil))
	wantStatus(t, rec, http.StatusOK)

	c := sessionCookie(t, rec.Result())
	sess, err := e.sessions.GetByToken(c.Value)
	if err != nil || sess == nil || sess.UserID != u.ID {
		t.Errorf("session = %+v, err = %v", sess, err)
	}
	if ev := e.recorder.last(t); ev.Action != activity.ActionSignedIn {
		t.Errorf("action = %q", ev.Action)
	}
}

func TestSigninWithTwoFactorReturnsChallenge(t *testing.T) {
	e := newTestEnv(t)
	h := newAuthHandler(t, e)
	hash, _ := auth.HashPassword(strongPassword)
	u, _ := e.users.Create("dev@example.com", "Dev", model.RoleUser, hash)
	enrollment, err := auth.GenerateTOTP(u.Email)
	if err != nil {
		t.Fatalf("generate totp: %v", err)
	}
	secrets, _ := auth.NewSecretBox("test-secret")
	sealed, _ := secrets.Seal(enrollment.Secret)
	if err := e.users.SetTOTPSecret(u.ID, sealed); err != nil {
		t.Fatalf("store secret: %v", err)
	}
	if err := e.users.SetTwoFactor(u.ID, true); err != nil {
		t.Fatalf("enable 2fa: %v", err)
	}

	rec := serve(h.Signin, request(t, "POST", "/", map[string]any{"email": "dev@example.com", "password": strongPassword}, nil))
	wantStatus(t, rec, http.StatusOK)

	body := decode[map[string]any](t, rec)
	if body["mfa_required"] != true || body["challenge"] == "" {
		t.Errorf("body = %v", body)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("session issued before second factor")
	}

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	rec = serve(h.VerifyMFA, request(t, "POST", "/", map[string]any{"challenge": body["challenge"], "code": code}, nil))
	wantStatus(t, rec, http.StatusOK)
	sessionCookie(t, rec.Result())

	rec = serve(h.VerifyMFA, request(t, "POST", "/", map[string]any{"challenge": body["challenge"], "code": code}, nil))
	wantStatus(t, rec, http.StatusUnauthorized)
}

func TestRequestRecoveryDoesNotRevealAccounts(t *testing.T) {
	e := newTestEnv(t)
	h := newAuthHandler(t, e)
	e.user(t, "dev@example.com", model.RoleUser)

	known := serve(h.RequestRecovery, request(t, "POST", "/", map[string]any{"email": "dev@example.com"}, nil))
	unknown := serve(h.RequestRecovery, request(t, "POST", "/", map[string]any{"email": "ghost@example.com"}, nil))

	wantStatus(t, known, http.StatusAccepted)
	wantStatus(t, unknown, http.StatusAccepted)
	if known.Body.String() != unknown.Body.String() {
		t.Errorf("responses differ: %q vs %q", known.Body.String(), unknown.Body.String())
	}
	if len(e.mailer.resets) != 1 {
		t.Errorf("reset emails = %d, want 1", len(e.mailer.resets))
	}

	rec := serve(h.ConfirmRecovery, request(t, "POST", "/", map[string]any{"token": e.mailer.lastToken}, nil))
	wantStatus(t, rec, http.StatusOK)
	sessionCookie(t, rec.Result())

	tok, _ := e.tokens.GetValid(e.mailer.lastToken, model.TokenRecovery)
	if tok == nil {
		t.Error("recovery token consumed before the password change")
	}
}

func TestAcceptInvite(t *testing.T) {
	e := newTestEnv(t)
	h := newAuthHandler(t, e)
	admin := e.user(t, "admin@example.com", model.RoleAdmin)
	tok, err := e.tokens.Create("new@example.com", model.TokenInvite, store.TokenOptions{Role: model.RoleAdmin, FullName: "New Person", InvitedBy: &admin.ID})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	rec := serve(h.AcceptInvite, request(t, "POST", "/", map[string]any{"token": tok.Token, "password": strongPassword}, nil))
	wantStatus(t, rec, http.StatusCreated)

	u := decode[map[string]model.User](t, rec)["user"]
	if u.Role != model.RoleAdmin || u.FullName != "New Person" || u.EmailVerifiedAt == nil {
		t.Errorf("user = %+v", u)
	}
	d := e.recorder.last(t).Details.(activity.AuthDetails)
	if d.Method != "invitation" {
		t.Errorf("method = %q, want invitation", d.Method)
	}

	rec = serve(h.AcceptInvite, request(t, "POST", "/", map[string]any{"token": tok.Token, "password": strongPassword}, nil))
	wantStatus(t, rec, http.StatusBadRequest)
}

func TestSignoutDeletesSession(t *testing.T) {
	e := newTestEnv(t)
	h := newAuthHandler(t, e)
	u := e.user(t, "dev@example.com", model.RoleUser)
	sess, _ := e.sessions.Create(u.ID)

	req := request(t, "POST", "/", nil, nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: u.ID, Email: u.Email, SessionID: sess.ID}))
	wantStatus(t, serve(h.Signout, req), http.StatusNoContent)

	if got, _ := e.sessions.GetByToken(sess.Token); got != nil {
		t.Error("session still valid after sign out")
	}
}

func TestPasswordStrength(t *testing.T) {
	e := newTestEnv(t)
	h := newAuthHandler(t, e)

	rec := serve(h.PasswordStrength, request(t, "POST", "/", map[string]any{"password": "abc"}, nil))
	wantStatus(t, rec, http.StatusOK)

	s := decode[auth.Strength](t, rec)
	if s.Valid || len(s.Missing) == 0 {
		t.Errorf("strength = %+v", s)
	}
}
