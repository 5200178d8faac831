package services

import (
	"context"
	"sort"
	"time"

	"powershare/internal/apperror"
	"powershare/internal/store"
)

const (
	RoleBought = "bought"
	RoleSold   = "sold"
)

// ReportService derives history and monthly aggregates from the ledger on
// every call. Timestamps are rendered in loc.
type ReportService struct {
	grids  OwnershipStore
	ledger LedgerReader
	loc    *time.Location
}

func NewReportService(grids OwnershipStore, ledger LedgerReader, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{grids: grids, ledger: ledger, loc: loc}
}

type HistoryEntry struct {
	TransactionID string `json:"transaction_id"`
	Role          string `json:"role"`
	GridID        string `json:"grid_id"`
	GridName      string `json:"grid_name,omitempty"`
	BuyerName     string `json:"buyer_name,omitempty"`
	Units         int64  `json:"units"`
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`

	at time.Time
}

type History struct {
	Transactions      []HistoryEntry `json:"transactions"`
	TotalTransactions int            `json:"total_transactions"`
	TotalUnitsBought  int64          `json:"total_units_bought"`
	TotalUnitsSold    int64          `json:"total_units_sold"`
}

type MonthlyEntry struct {
	Month  string `json:"month"`
	Bought int64  `json:"bought"`
	Sold   int64  `json:"sold"`
}

// History lists purchases made by userID as bought rows and purchases from
// userID's grids by other users as sold rows, newest first. A self-trade
// shows up once, as bought.
func (s *ReportService) History(ctx context.Context, userID string) (History, error) {
	rows, err := s.collect(ctx, userID)
	if err != nil {
		return History{}, err
	}
	history := History{Transactions: make([]HistoryEntry, 0, len(rows))}
	for _, row := range rows {
		entry := HistoryEntry{
			TransactionID: row.ID,
			Role:          row.role,
			GridID:        row.GridID,
			Units:         row.Units,
			Status:        row.Status,
			Timestamp:     row.CreatedAt.In(s.loc).Format(time.RFC3339),
			at:            row.CreatedAt,
		}
		switch row.role {
		case RoleBought:
			entry.GridName = row.GridName
			history.TotalUnitsBought += row.Units
		case RoleSold:
			entry.BuyerName = row.BuyerName
			history.TotalUnitsSold += row.Units
		}
		history.Transactions = append(history.Transactions, entry)
	}
	sort.SliceStable(history.Transactions, func(i, j int) bool {
		return history.Transactions[i].at.After(history.Transactions[j].at)
	})
	history.TotalTransactions = len(history.Transactions)
	return history, nil
}

// MonthlySummary always returns twelve entries, January first. Rows are
// bucketed by their month in the display zone, across all years.
func (s *ReportService) MonthlySummary(ctx context.Context, userID string) ([]MonthlyEntry, error) {
	rows, err := s.collect(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := make([]MonthlyEntry, 12)
	for i := range summary {
		summary[i].Month = time.Month(i + 1).String()[:3]
	}
	for _, row := range rows {
		bucket := &summary[row.CreatedAt.In(s.loc).Month()-1]
		switch row.role {
		case RoleBought:
			bucket.Bought += row.Units
		case RoleSold:
			bucket.Sold += row.Units
		}
	}
	return summary, nil
}

type taggedRow struct {
	store.LedgerRow
	role string
}

func (s *ReportService) collect(ctx context.Context, userID string) ([]taggedRow, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("user not found")
	}
	bought, err := s.ledger.ListByBuyer(ctx, userID)
	if err != nil {
		return nil, err
	}
	gridIDs, err := s.grids.ListIDsByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	sold, err := s.ledger.ListByGrids(ctx, gridIDs)
	if err != nil {
		return nil, err
	}
	rows := make([]taggedRow, 0, len(bought)+len(sold))
	for _, row := range bought {
		rows = append(rows, taggedRow{LedgerRow: row, role: RoleBought})
	}
	for _, row := range sold {
		if row.BuyerID == userID {
			continue
		}
		rows = append(rows, taggedRow{LedgerRow: row, role: RoleSold})
	}
	return rows, nil
}
