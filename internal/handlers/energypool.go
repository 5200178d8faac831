package handlers

import (
	"net/http"
	"strings"

	"powershare/internal/services"
)

func (h *Handler) ListPool(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	listings, err := h.pool.ListSellable(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listings)
}

type buyRequest struct {
	GridID string    `json:"grid_id"`
	Units  unitCount `json:"units"`
}

type buyResponse struct {
	Message string `json:"message"`
	services.Purchase
}

func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req buyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := requireUnits(req.Units)
	if err != nil {
		writeError(w, r, err)
		return
	}
	purchase, err := h.pool.Buy(r.Context(), services.BuyRequest{
		BuyerID: userID,
		GridID:  strings.TrimSpace(req.GridID),
		Units:   n,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, buyResponse{Message: "Purchase successful", Purchase: purchase})
}

func (h *Handler) TransactionHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	history, err := h.reports.History(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func (h *Handler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	summary, err := h.reports.MonthlySummary(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
