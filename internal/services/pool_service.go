package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"powershare/internal/apperror"
	"powershare/internal/db"
	"powershare/internal/metrics"
	"powershare/internal/models"
	"powershare/internal/store"
	"powershare/internal/websocket"

	"github.com/jmoiron/sqlx"
)

// PoolService is the energy pool marketplace: it lists grids with units for
// sale and executes purchases against them.
type PoolService struct {
	txRunner   db.TxRunner
	poolStore  PoolStore
	ledger     LedgerWriter
	auditStore AuditStore
	hub        UnitHub
	now        func() time.Time
}

func NewPoolService(txRunner db.TxRunner, poolStore PoolStore, ledger LedgerWriter, auditStore AuditStore, hub UnitHub) *PoolService {
	return &PoolService{
		txRunner:   txRunner,
		poolStore:  poolStore,
		ledger:     ledger,
		auditStore: auditStore,
		hub:        hubOrNoop(hub),
		now:        time.Now,
	}
}

// WithClock replaces the clock used to stamp purchases.
func (s *PoolService) WithClock(now func() time.Time) *PoolService {
	s.now = now
	return s
}

// ListSellable never includes a grid the requester owns.
func (s *PoolService) ListSellable(ctx context.Context, userID string) ([]models.SellableGrid, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("user not found")
	}
	return s.poolStore.ListSellable(ctx, userID)
}

type BuyRequest struct {
	BuyerID string
	GridID  string
	Units   int64
}

type Purchase struct {
	TransactionID string    `json:"transaction_id"`
	GridID        string    `json:"grid_id"`
	Units         int64     `json:"units"`
	UnitsForSell  int64     `json:"units_for_sell"`
	CreatedAt     time.Time `json:"created_at"`
}

// Buy takes units from a grid's sell pool and records the purchase. The
// decrement and the ledger append commit together or not at all.
func (s *PoolService) Buy(ctx context.Context, req BuyRequest) (Purchase, error) {
	start := time.Now()
	purchase, seller, err := s.buy(ctx, req)
	metrics.PurchasesTotal.WithLabelValues(purchaseOutcome(err)).Inc()
	if err != nil {
		return Purchase{}, err
	}
	metrics.PurchaseLatency.Observe(time.Since(start).Seconds())
	metrics.UnitsTraded.Add(float64(purchase.Units))
	slog.InfoContext(ctx, "purchase completed",
		"transaction_id", purchase.TransactionID,
		"grid_id", purchase.GridID,
		"buyer_id", req.BuyerID,
		"units", purchase.Units,
	)
	update := websocket.UnitUpdate{
		GridID:       purchase.GridID,
		Units:        seller.status.Units,
		UnitsForSell: seller.status.UnitsForSell,
	}
	update.Event = websocket.EventUnitsSold
	s.hub.BroadcastUnits(seller.ownerID, update)
	update.Event = websocket.EventUnitsBought
	s.hub.BroadcastUnits(req.BuyerID, update)
	return purchase, nil
}

// sellerGrid is the seller's grid state after a committed purchase.
type sellerGrid struct {
	ownerID string
	status  models.UnitStatus
}

func (s *PoolService) buy(ctx context.Context, req BuyRequest) (Purchase, sellerGrid, error) {
	if req.BuyerID == "" {
		return Purchase{}, sellerGrid{}, apperror.Unauthorized("user not found")
	}
	if req.GridID == "" {
		return Purchase{}, sellerGrid{}, apperror.InvalidArgument("grid_id", "grid_id is required")
	}
	if req.Units <= 0 {
		return Purchase{}, sellerGrid{}, apperror.InvalidArgument("units", "units must be positive")
	}
	var purchase Purchase
	var seller sellerGrid
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		grid, err := s.poolStore.GetForUpdate(ctx, tx, req.GridID)
		if err != nil {
			if isNoRows(err) {
				return apperror.NotFound("grid")
			}
			return err
		}
		if grid.OwnerID == req.BuyerID {
			return apperror.Forbidden("cannot buy units from your own grid")
		}
		if grid.UnitsForSell < req.Units {
			return apperror.InsufficientInventory(req.Units, grid.UnitsForSell)
		}
		status, err := s.poolStore.TakeFromPool(ctx, tx, grid.ID, req.Units)
		if err != nil {
			if isNoRows(err) {
				return apperror.InsufficientInventory(req.Units, grid.UnitsForSell)
			}
			return err
		}
		createdAt := s.now().UTC()
		transactionID, err := s.ledger.Append(ctx, tx, store.TransactionInput{
			BuyerID:   req.BuyerID,
			GridID:    grid.ID,
			Units:     req.Units,
			Status:    models.TransactionStatusCompleted,
			CreatedAt: createdAt,
		})
		if err != nil {
			return err
		}
		if err := s.auditStore.Log(ctx, tx, req.BuyerID, "buy_units", "transaction", transactionID, map[string]any{
			"grid_id":              grid.ID,
			"units":                req.Units,
			"units_for_sell_after": status.UnitsForSell,
		}); err != nil {
			return err
		}
		seller = sellerGrid{ownerID: grid.OwnerID, status: status}
		purchase = Purchase{
			TransactionID: transactionID,
			GridID:        grid.ID,
			Units:         req.Units,
			UnitsForSell:  status.UnitsForSell,
			CreatedAt:     createdAt,
		}
		return nil
	})
	if err != nil {
		return Purchase{}, sellerGrid{}, err
	}
	return purchase, seller, nil
}

func purchaseOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeCompleted
	case errors.Is(err, apperror.ErrInsufficientInventory):
		return metrics.OutcomeInsufficient
	case apperror.Kind(err) != nil:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
