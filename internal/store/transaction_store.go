package store

import (
	"context"
	"time"

	"powershare/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TransactionStore is the append-only purchase ledger. It has no update or
// delete path.
type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

type TransactionInput struct {
	BuyerID   string
	GridID    string
	Units     int64
	Status    string
	CreatedAt time.Time
}

type transactionRow struct {
	ID        string    `db:"id"`
	BuyerID   string    `db:"buyer_id"`
	BuyerName *string   `db:"buyer_name"`
	GridID    string    `db:"grid_id"`
	GridName  *string   `db:"grid_name"`
	Units     int64     `db:"units"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

// LedgerRow is a transaction joined with the display names needed by the
// reporting views.
type LedgerRow struct {
	models.Transaction
	BuyerName string
	GridName  string
}

func (r transactionRow) toLedgerRow() LedgerRow {
	return LedgerRow{
		Transaction: models.Transaction{
			ID:        r.ID,
			BuyerID:   r.BuyerID,
			GridID:    r.GridID,
			Units:     r.Units,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
		},
		BuyerName: derefStringPtr(r.BuyerName),
		GridName:  derefStringPtr(r.GridName),
	}
}

// Append inserts one ledger row and returns its identifier. Timestamps are
// stored as UTC instants.
func (s *TransactionStore) Append(ctx context.Context, tx Execer, input TransactionInput) (string, error) {
	status := input.Status
	if status == "" {
		status = models.TransactionStatusCompleted
	}
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	id := uuid.NewString()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO energy_transactions (id, buyer_id, grid_id, units, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, input.BuyerID, input.GridID, input.Units, status, createdAt.UTC())
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *TransactionStore) ListByBuyer(ctx context.Context, buyerID string) ([]LedgerRow, error) {
	var rows []transactionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.id, t.buyer_id, u.name AS buyer_name, t.grid_id, g.name AS grid_name,
		       t.units, t.status, t.created_at
		FROM energy_transactions t
		LEFT JOIN users u ON u.id = t.buyer_id
		LEFT JOIN user_grids g ON g.id = t.grid_id
		WHERE t.buyer_id = $1
		ORDER BY t.created_at, t.id
	`, buyerID)
	if err != nil {
		return nil, err
	}
	return toLedgerRows(rows), nil
}

func (s *TransactionStore) ListByGrids(ctx context.Context, gridIDs []string) ([]LedgerRow, error) {
	if len(gridIDs) == 0 {
		return []LedgerRow{}, nil
	}
	var rows []transactionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.id, t.buyer_id, u.name AS buyer_name, t.grid_id, g.name AS grid_name,
		       t.units, t.status, t.created_at
		FROM energy_transactions t
		LEFT JOIN users u ON u.id = t.buyer_id
		LEFT JOIN user_grids g ON g.id = t.grid_id
		WHERE t.grid_id = ANY($1)
		ORDER BY t.created_at, t.id
	`, pq.Array(gridIDs))
	if err != nil {
		return nil, err
	}
	return toLedgerRows(rows), nil
}

func toLedgerRows(rows []transactionRow) []LedgerRow {
	ledger := make([]LedgerRow, 0, len(rows))
	for _, row := range rows {
		ledger = append(ledger, row.toLedgerRow())
	}
	return ledger
}
