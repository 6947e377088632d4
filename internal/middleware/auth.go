package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/store"
)

// SessionCookieName is the cookie holding the session token.
const SessionCookieName = "coretrack_session"

// SessionToken returns the session token from the cookie or, for API
// clients, a bearer Authorization header.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// SetSessionCookie writes the session cookie. It is marked Secure when
// secure is set or the request arrived over TLS.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure || r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})
}

// RequireAuth validates the session and populates AuthContext. When the
// lookup renewed a cookie session the cookie lifetime follows.
func RequireAuth(sessionStore *store.SessionStore, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			sess, err := sessionStore.GetByToken(token)
			if err != nil || sess == nil {
				unauthorized(w)
				return
			}

			user, err := userStore.GetByID(sess.UserID)
			if err != nil || user == nil {
				unauthorized(w)
				return
			}

			if sess.Renewed {
				if c, err := r.Cookie(SessionCookieName); err == nil && c.Value == token {
					SetSessionCookie(w, r, token, int(time.Until(sess.ExpiresAt).Seconds()), false)
				}
			}

			ac := auth.AuthContext{
				UserID:    user.ID,
				Email:     user.Email,
				Role:      user.Role,
				SessionID: sess.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "authentication required")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
