package websocket

import (
	"context"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
	"github.com/dukerupert/roomies/internal/auth"
)

// HouseholdResolver returns the household a person currently belongs to, or
// nil when they have none.
type HouseholdResolver func(ctx context.Context, personID int64) (*int64, error)

// HandleWebSocket upgrades an authenticated request and subscribes the
// connection to the caller's household.
func HandleWebSocket(hub *Hub, resolve HouseholdResolver, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personID, ok := auth.PersonID(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		householdID, err := resolve(r.Context(), personID)
		if err != nil {
			logger.Error("resolve household", "person_id", personID, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if householdID == nil {
			http.Error(w, "Join a household first", http.StatusConflict)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // clients authenticate with a bearer token
		})
		if err != nil {
			logger.Warn("accept websocket", "error", err)
			return
		}

		NewClient(hub, conn, personID, *householdID).Run(r.Context())
	}
}
