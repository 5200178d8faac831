package services

import (
	"context"
	"database/sql"
	"errors"

	"powershare/internal/models"
	"powershare/internal/store"
	"powershare/internal/websocket"
)

type GridStore interface {
	Create(ctx context.Context, tx store.Execer, input store.GridInput) error
	GetByOwner(ctx context.Context, ownerID string) (models.Grid, error)
	GetByOwnerForUpdate(ctx context.Context, tx store.Getter, ownerID string) (models.Grid, error)
	SetUnits(ctx context.Context, tx store.Getter, gridID string, units int64) (models.UnitStatus, error)
	MoveToPool(ctx context.Context, tx store.Getter, gridID string, n int64) (models.UnitStatus, error)
	SetStation(ctx context.Context, tx store.Execer, gridID string, ports []string) error
	ListAll(ctx context.Context) ([]models.Grid, error)
}

type PoolStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, gridID string) (models.Grid, error)
	TakeFromPool(ctx context.Context, tx store.Getter, gridID string, n int64) (models.UnitStatus, error)
	ListSellable(ctx context.Context, excludeOwnerID string) ([]models.SellableGrid, error)
}

type OwnershipStore interface {
	ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error)
}

type LedgerWriter interface {
	Append(ctx context.Context, tx store.Execer, input store.TransactionInput) (string, error)
}

type LedgerReader interface {
	ListByBuyer(ctx context.Context, buyerID string) ([]store.LedgerRow, error)
	ListByGrids(ctx context.Context, gridIDs []string) ([]store.LedgerRow, error)
}

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, input store.UserInput) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data map[string]any) error
}

type UnitHub interface {
	BroadcastUnits(userID string, update websocket.UnitUpdate)
}

type noopHub struct{}

func (noopHub) BroadcastUnits(string, websocket.UnitUpdate) {}

func hubOrNoop(hub UnitHub) UnitHub {
	if hub == nil {
		return noopHub{}
	}
	return hub
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
