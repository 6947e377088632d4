package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/999joaquin/CoreTrack/internal/auth"
)

// HandleWebSocket returns an HTTP handler that upgrades authenticated
// connections and runs them as Hub clients. originPatterns lists the hosts
// allowed to connect cross-origin; empty means same-origin only.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == 0 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept failed", "error", err, "user_id", userID)
			return
		}

		client := NewClient(hub, conn, userID)
		client.Run(r.Context())
	}
}
