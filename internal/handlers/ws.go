package handlers

import (
	"net/http"

	"powershare/internal/websocket"
)

// WSUnits streams unit updates for the caller's grids and purchases.
func (h *Handler) WSUnits(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	websocket.ServeWS(w, r, h.hub, userID)
}
