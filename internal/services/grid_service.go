package services

import (
	"context"
	"log/slog"
	"strings"

	"powershare/internal/apperror"
	"powershare/internal/db"
	"powershare/internal/metrics"
	"powershare/internal/models"
	"powershare/internal/store"
	"powershare/internal/validator"
	"powershare/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// GridService owns each user's grid record. Every mutation resolves the
// grid from the caller's identity; a grid id is never taken from the caller.
type GridService struct {
	txRunner   db.TxRunner
	gridStore  GridStore
	userStore  UserStore
	auditStore AuditStore
	hub        UnitHub
}

func NewGridService(txRunner db.TxRunner, gridStore GridStore, userStore UserStore, auditStore AuditStore, hub UnitHub) *GridService {
	return &GridService{
		txRunner:   txRunner,
		gridStore:  gridStore,
		userStore:  userStore,
		auditStore: auditStore,
		hub:        hubOrNoop(hub),
	}
}

type CreateGridRequest struct {
	OwnerID   string
	Name      string
	Latitude  float64
	Longitude float64
	Units     int64
	Available *bool
}

func (s *GridService) Create(ctx context.Context, req CreateGridRequest) (string, error) {
	name := strings.TrimSpace(req.Name)
	if err := validator.ValidateName(name); err != nil {
		return "", apperror.InvalidArgument("grid_name", "grid name is required")
	}
	if req.Units < 0 {
		return "", apperror.InvalidArgument("units", "units must not be negative")
	}
	lat, lng, err := validator.NormalizeLocation(req.Latitude, req.Longitude)
	if err != nil {
		return "", apperror.InvalidArgument("location", err.Error())
	}
	if _, err := s.userStore.GetByID(ctx, req.OwnerID); err != nil {
		if isNoRows(err) {
			return "", apperror.NotFound("user")
		}
		return "", err
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}

	gridID := uuid.NewString()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.gridStore.Create(ctx, tx, store.GridInput{
			ID:        gridID,
			OwnerID:   req.OwnerID,
			Name:      name,
			Latitude:  lat,
			Longitude: lng,
			Units:     req.Units,
			Available: available,
		}); err != nil {
			if db.IsUniqueViolation(err) {
				return apperror.Conflict("user already has a grid")
			}
			return err
		}
		return s.auditStore.Log(ctx, tx, req.OwnerID, "create_grid", "grid", gridID, map[string]any{
			"units": req.Units,
		})
	})
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "grid created", "grid_id", gridID, "owner_id", req.OwnerID)
	return gridID, nil
}

func (s *GridService) Fetch(ctx context.Context, ownerID string) (models.Grid, error) {
	grid, err := s.gridStore.GetByOwner(ctx, ownerID)
	if err != nil {
		if isNoRows(err) {
			return models.Grid{}, apperror.NotFound("grid")
		}
		return models.Grid{}, err
	}
	return grid, nil
}

func (s *GridService) UnitStatus(ctx context.Context, ownerID string) (models.UnitStatus, error) {
	grid, err := s.Fetch(ctx, ownerID)
	if err != nil {
		return models.UnitStatus{}, err
	}
	return models.UnitStatus{Units: grid.Units, UnitsForSell: grid.UnitsForSell}, nil
}

// SetUnits overwrites the inventory without touching the sell pool.
func (s *GridService) SetUnits(ctx context.Context, ownerID string, units int64) (models.UnitStatus, error) {
	if units < 0 {
		return models.UnitStatus{}, apperror.InvalidArgument("units", "units must not be negative")
	}
	var status models.UnitStatus
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		grid, err := s.lockOwnGrid(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		status, err = s.gridStore.SetUnits(ctx, tx, grid.ID, units)
		if err != nil {
			return err
		}
		return s.auditStore.Log(ctx, tx, ownerID, "update_units", "grid", grid.ID, map[string]any{
			"previous_units": grid.Units,
			"units":          units,
		})
	})
	if err != nil {
		return models.UnitStatus{}, err
	}
	return status, nil
}

// SellUnits moves n units from inventory into the sell pool.
func (s *GridService) SellUnits(ctx context.Context, ownerID string, n int64) (models.UnitStatus, error) {
	if n <= 0 {
		return models.UnitStatus{}, apperror.InvalidArgument("units", "units must be positive")
	}
	var gridID string
	var status models.UnitStatus
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		grid, err := s.lockOwnGrid(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		gridID = grid.ID
		if grid.Units < n {
			return apperror.InsufficientInventory(n, grid.Units)
		}
		status, err = s.gridStore.MoveToPool(ctx, tx, grid.ID, n)
		if err != nil {
			if isNoRows(err) {
				return apperror.InsufficientInventory(n, grid.Units)
			}
			return err
		}
		return s.auditStore.Log(ctx, tx, ownerID, "sell_units", "grid", grid.ID, map[string]any{
			"units":          n,
			"units_after":    status.Units,
			"units_for_sell": status.UnitsForSell,
		})
	})
	if err != nil {
		return models.UnitStatus{}, err
	}
	metrics.UnitsListed.Add(float64(n))
	slog.InfoContext(ctx, "units moved to pool", "grid_id", gridID, "units", n, "units_for_sell", status.UnitsForSell)
	s.hub.BroadcastUnits(ownerID, websocket.UnitUpdate{
		Event:        websocket.EventUnitsListed,
		GridID:       gridID,
		Units:        status.Units,
		UnitsForSell: status.UnitsForSell,
	})
	return status, nil
}

// AttachStation marks the grid as a charging station and replaces its ports.
func (s *GridService) AttachStation(ctx context.Context, ownerID string, ports []string) (models.Grid, error) {
	normalized, err := validator.NormalizePorts(ports)
	if err != nil {
		return models.Grid{}, apperror.InvalidArgument("ports", err.Error())
	}
	var grid models.Grid
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		grid, err = s.lockOwnGrid(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if err := s.gridStore.SetStation(ctx, tx, grid.ID, normalized); err != nil {
			return err
		}
		return s.auditStore.Log(ctx, tx, ownerID, "update_grid", "grid", grid.ID, map[string]any{
			"ports": normalized,
		})
	})
	if err != nil {
		return models.Grid{}, err
	}
	grid.Station = true
	grid.Ports = normalized
	return grid, nil
}

func (s *GridService) ListAll(ctx context.Context) ([]models.Grid, error) {
	return s.gridStore.ListAll(ctx)
}

func (s *GridService) lockOwnGrid(ctx context.Context, tx *sqlx.Tx, ownerID string) (models.Grid, error) {
	grid, err := s.gridStore.GetByOwnerForUpdate(ctx, tx, ownerID)
	if err != nil {
		if isNoRows(err) {
			return models.Grid{}, apperror.NotFound("grid")
		}
		return models.Grid{}, err
	}
	return grid, nil
}
