// Package handler implements the CoreTrack JSON API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/999joaquin/CoreTrack/internal/activity"
	"github.com/999joaquin/CoreTrack/internal/middleware"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/websocket"
)

const (
	maxBodyBytes     = 1 << 20
	sessionMaxAgeSec = 90 * 24 * 60 * 60
)

// Recorder accepts activity events; failures are its own concern.
type Recorder interface {
	Record(ctx context.Context, e activity.Event)
}

// Notifier sends a notification through the recipient's preferences.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

// AuthMailer sends the account emails.
type AuthMailer interface {
	SendVerification(ctx context.Context, toEmail, token string) error
	SendPasswordReset(ctx context.Context, toEmail, token string) error
	SendInvite(ctx context.Context, toEmail, token, inviter, role string) error
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var errInvalidJSON = errors.New("invalid JSON")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidJSON
	}
	return nil
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

// queryInt64 returns 0 when the parameter is absent or malformed.
func queryInt64(r *http.Request, key string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

func broadcast(hub *websocket.Hub, msg websocket.Message) {
	if hub != nil {
		hub.Broadcast(msg)
	}
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string, secure bool) {
	middleware.SetSessionCookie(w, r, token, sessionMaxAgeSec, secure)
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
