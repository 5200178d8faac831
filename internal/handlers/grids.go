package handlers

import (
	"net/http"

	"powershare/internal/apperror"
	"powershare/internal/middleware"
	"powershare/internal/models"
	"powershare/internal/services"
)

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, apperror.Unauthorized("unauthorized"))
		return "", false
	}
	return userID, true
}

func (h *Handler) ListGrids(w http.ResponseWriter, r *http.Request) {
	grids, err := h.grids.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, grids)
}

type insertGridRequest struct {
	GridName  string           `json:"grid_name"`
	Location  *models.Location `json:"location"`
	Units     unitCount        `json:"units"`
	Available *bool            `json:"available"`
}

func (h *Handler) InsertGrid(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req insertGridRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Location == nil {
		writeError(w, r, apperror.InvalidArgument("location", "location is required"))
		return
	}
	units, err := requireUnits(req.Units)
	if err != nil {
		writeError(w, r, err)
		return
	}
	gridID, err := h.grids.Create(r.Context(), services.CreateGridRequest{
		OwnerID:   userID,
		Name:      req.GridName,
		Latitude:  req.Location.Latitude,
		Longitude: req.Location.Longitude,
		Units:     units,
		Available: req.Available,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "grid created",
		"grid_id": gridID,
	})
}

func (h *Handler) GetUserGrid(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	grid, err := h.grids.Fetch(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, grid)
}

func (h *Handler) GetUnitStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	status, err := h.grids.UnitStatus(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

type unitsRequest struct {
	Units unitCount `json:"units"`
}

type unitStatusResponse struct {
	Message string `json:"message"`
	models.UnitStatus
}

// UpdateUnits takes units from the query string or, failing that, the body.
func (h *Handler) UpdateUnits(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var units int64
	if raw := r.URL.Query().Get("units"); raw != "" {
		parsed, err := parseUnitsField("units", raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		units = parsed
	} else {
		var req unitsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		parsed, err := requireUnits(req.Units)
		if err != nil {
			writeError(w, r, err)
			return
		}
		units = parsed
	}
	status, err := h.grids.SetUnits(r.Context(), userID, units)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, unitStatusResponse{Message: "units updated", UnitStatus: status})
}

func (h *Handler) SellUnits(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req unitsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := requireUnits(req.Units)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status, err := h.grids.SellUnits(r.Context(), userID, n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, unitStatusResponse{Message: "units listed for sale", UnitStatus: status})
}

type updateGridRequest struct {
	Ports []string `json:"ports"`
}

func (h *Handler) UpdateGrid(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req updateGridRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Ports == nil {
		writeError(w, r, apperror.InvalidArgument("ports", "ports is required"))
		return
	}
	grid, err := h.grids.AttachStation(r.Context(), userID, req.Ports)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, grid)
}
