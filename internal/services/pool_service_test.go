package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"powershare/internal/apperror"
	"powershare/internal/models"
	"powershare/internal/store"
	"powershare/internal/websocket"
)

func TestBuyValidation(t *testing.T) {
	service := NewPoolService(fakeTxRunner{}, stubPoolStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Grid, error) {
			t.Fatalf("unexpected store call")
			return models.Grid{}, nil
		},
	}, stubLedgerWriter{}, stubAuditStore{}, nil)
	cases := []struct {
		name string
		req  BuyRequest
		kind error
	}{
		{"no buyer", BuyRequest{GridID: "grid-1", Units: 1}, apperror.ErrUnauthorized},
		{"no grid", BuyRequest{BuyerID: "buyer", Units: 1}, apperror.ErrInvalidArgument},
		{"zero units", BuyRequest{BuyerID: "buyer", GridID: "grid-1"}, apperror.ErrInvalidArgument},
		{"negative units", BuyRequest{BuyerID: "buyer", GridID: "grid-1", Units: -4}, apperror.ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.Buy(context.Background(), tc.req); !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestBuyUnknownGrid(t *testing.T) {
	service := NewPoolService(fakeTxRunner{}, stubPoolStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Grid, error) {
			return models.Grid{}, sql.ErrNoRows
		},
	}, stubLedgerWriter{}, stubAuditStore{}, nil)
	_, err := service.Buy(context.Background(), BuyRequest{BuyerID: "buyer", GridID: "missing", Units: 1})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBuyOwnGridForbidden(t *testing.T) {
	service := NewPoolService(fakeTxRunner{}, stubPoolStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Grid, error) {
			return models.Grid{ID: "grid-1", OwnerID: "buyer", UnitsForSell: 50}, nil
		},
		takeFn: func(context.Context, store.Getter, string, int64) (models.UnitStatus, error) {
			t.Fatalf("unexpected decrement")
			return models.UnitStatus{}, nil
		},
	}, stubLedgerWriter{}, stubAuditStore{}, nil)
	_, err := service.Buy(context.Background(), BuyRequest{BuyerID: "buyer", GridID: "grid-1", Units: 1})
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestBuyInsufficientInventory(t *testing.T) {
	service := NewPoolService(fakeTxRunner{}, stubPoolStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Grid, error) {
			return models.Grid{ID: "grid-1", OwnerID: "seller", UnitsForSell: 20}, nil
		},
	}, stubLedgerWriter{
		appendFn: func(context.Context, store.Execer, store.TransactionInput) (string, error) {
			t.Fatalf("unexpected ledger append")
			return "", nil
		},
	}, stubAuditStore{}, nil)
	_, err := service.Buy(context.Background(), BuyRequest{BuyerID: "buyer", GridID: "grid-1", Units: 25})
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Err != apperror.ErrInsufficientInventory {
		t.Fatalf("expected insufficient inventory, got %v", err)
	}
	if appErr.Message != "requested 25 units but only 20 available" {
		t.Fatalf("unexpected message: %q", appErr.Message)
	}
}

func TestBuySuccess(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	var appended store.TransactionInput
	var auditAction string
	hub := &stubHub{}
	service := NewPoolService(fakeTxRunner{}, stubPoolStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Grid, error) {
			return models.Grid{ID: "grid-1", OwnerID: "seller", Units: 70, UnitsForSell: 30}, nil
		},
		takeFn: func(_ context.Context, _ store.Getter, gridID string, n int64) (models.UnitStatus, error) {
			if gridID != "grid-1" || n != 10 {
				t.Fatalf("unexpected decrement: %s %d", gridID, n)
			}
			return models.UnitStatus{Units: 70, UnitsForSell: 20}, nil
		},
	}, stubLedgerWriter{
		appendFn: func(_ context.Context, _ store.Execer, input store.TransactionInput) (string, error) {
			appended = input
			return "tx-42", nil
		},
	}, stubAuditStore{
		logFn: func(_ context.Context, _ store.Execer, _, action, _, _ string, _ map[string]any) error {
			auditAction = action
			return nil
		},
	}, hub).WithClock(fixedClock(at))

	purchase, err := service.Buy(context.Background(), BuyRequest{BuyerID: "buyer", GridID: "grid-1", Units: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purchase.TransactionID != "tx-42" || purchase.UnitsForSell != 20 || purchase.Units != 10 || !purchase.CreatedAt.Equal(at) {
		t.Fatalf("unexpected purchase: %#v", purchase)
	}
	if appended.BuyerID != "buyer" || appended.Status != models.TransactionStatusCompleted || !appended.CreatedAt.Equal(at) {
		t.Fatalf("unexpected ledger input: %#v", appended)
	}
	if auditAction != "buy_units" {
		t.Fatalf("expected buy_units audit, got %q", auditAction)
	}
	if len(hub.calls) != 2 {
		t.Fatalf("expected two broadcasts, got %d", len(hub.calls))
	}
	if hub.calls[0].userID != "seller" || hub.calls[0].update.Event != websocket.EventUnitsSold {
		t.Fatalf("unexpected seller broadcast: %#v", hub.calls[0])
	}
	if hub.calls[1].userID != "buyer" || hub.calls[1].update.Event != websocket.EventUnitsBought {
		t.Fatalf("unexpected buyer broadcast: %#v", hub.calls[1])
	}
}

func TestBuyLedgerFailureRollsBackDecrement(t *testing.T) {
	mem := newMemoryStore()
	mem.addGrid("grid-a", "seller", 70, 30)
	mem.failAppend = true
	hub := &stubHub{}
	service := NewPoolService(mem, mem, mem, mem, hub)

	if _, err := service.Buy(context.Background(), BuyRequest{BuyerID: "buyer", GridID: "grid-a", Units: 10}); err == nil {
		t.Fatal("expected ledger failure")
	}
	if grid := mem.grid("grid-a"); grid.UnitsForSell != 30 {
		t.Fatalf("expected decrement rolled back, got %d", grid.UnitsForSell)
	}
	if mem.ledgerSize() != 0 || len(hub.calls) != 0 {
		t.Fatal("expected no ledger rows and no broadcasts")
	}
}

func TestBuyWorkedExample(t *testing.T) {
	mem := newMemoryStore()
	mem.addGrid("grid-a", "seller", 100, 0)
	grids := NewGridService(mem, mem, stubUserStore{}, mem, nil)
	pool := NewPoolService(mem, mem, mem, mem, nil)
	ctx := context.Background()

	status, err := grids.SellUnits(ctx, "seller", 30)
	if err != nil || status.Units != 70 || status.UnitsForSell != 30 {
		t.Fatalf("unexpected sell result: %#v %v", status, err)
	}
	if _, err := pool.Buy(ctx, BuyRequest{BuyerID: "buyer-b", GridID: "grid-a", Units: 10}); err != nil {
		t.Fatalf("unexpected buy error: %v", err)
	}
	if grid := mem.grid("grid-a"); grid.UnitsForSell != 20 {
		t.Fatalf("expected 20 left, got %d", grid.UnitsForSell)
	}
	rows, _ := mem.ListByBuyer(ctx, "buyer-b")
	if len(rows) != 1 || rows[0].Units != 10 || rows[0].GridID != "grid-a" || rows[0].Status != models.TransactionStatusCompleted {
		t.Fatalf("unexpected ledger: %#v", rows)
	}

	_, err = pool.Buy(ctx, BuyRequest{BuyerID: "buyer-b", GridID: "grid-a", Units: 25})
	if !errors.Is(err, apperror.ErrInsufficientInventory) {
		t.Fatalf("expected insufficient inventory, got %v", err)
	}
	if grid := mem.grid("grid-a"); grid.UnitsForSell != 20 || grid.Units != 70 {
		t.Fatalf("expected grid unchanged, got %#v", grid)
	}
	if mem.ledgerSize() != 1 {
		t.Fatalf("expected one ledger row, got %d", mem.ledgerSize())
	}
}

func TestConcurrentBuysNeverOversell(t *testing.T) {
	mem := newMemoryStore()
	mem.addGrid("grid-a", "seller", 0, 10)
	pool := NewPoolService(mem, mem, mem, mem, nil)

	const buyers = 8
	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.Buy(context.Background(), BuyRequest{BuyerID: "buyer", GridID: "grid-a", Units: 6})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperror.ErrInsufficientInventory):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one purchase, got %d", succeeded)
	}
	if grid := mem.grid("grid-a"); grid.UnitsForSell != 4 {
		t.Fatalf("expected 4 units left, got %d", grid.UnitsForSell)
	}
	if mem.ledgerSize() != 1 {
		t.Fatalf("expected one ledger row, got %d", mem.ledgerSize())
	}
}

func TestConcurrentBuysConserveUnits(t *testing.T) {
	mem := newMemoryStore()
	mem.addGrid("grid-a", "seller", 0, 50)
	pool := NewPoolService(mem, mem, mem, mem, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(units int64) {
			defer wg.Done()
			_, _ = pool.Buy(context.Background(), BuyRequest{BuyerID: "buyer", GridID: "grid-a", Units: units})
		}(int64(i%4 + 1))
	}
	wg.Wait()

	rows, _ := mem.ListByGrids(context.Background(), []string{"grid-a"})
	var sold int64
	for _, row := range rows {
		sold += row.Units
	}
	grid := mem.grid("grid-a")
	if grid.UnitsForSell < 0 || grid.UnitsForSell+sold != 50 {
		t.Fatalf("units not conserved: left %d, sold %d", grid.UnitsForSell, sold)
	}
}

func TestListSellableExcludesRequester(t *testing.T) {
	mem := newMemoryStore()
	mem.addUser("alice", "Alice")
	mem.addUser("bob", "Bob")
	mem.addGrid("grid-a", "alice", 0, 5)
	mem.addGrid("grid-b", "bob", 0, 7)
	mem.addGrid("grid-c", "carol", 0, 3)
	mem.addGrid("grid-d", "dave", 10, 0)
	pool := NewPoolService(mem, mem, mem, mem, nil)

	for _, requester := range []string{"alice", "bob", "carol", "dave"} {
		listings, err := pool.ListSellable(context.Background(), requester)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, listing := range listings {
			if listing.OwnerID == requester {
				t.Fatalf("listing for %s includes own grid %s", requester, listing.GridID)
			}
			if listing.UnitsForSell <= 0 {
				t.Fatalf("listing includes empty pool %s", listing.GridID)
			}
		}
	}

	listings, _ := pool.ListSellable(context.Background(), "dave")
	if len(listings) != 3 || listings[0].GridID != "grid-a" || listings[2].GridID != "grid-c" {
		t.Fatalf("expected insertion order, got %#v", listings)
	}
	if listings[2].OwnerName != nil {
		t.Fatalf("expected nil name for unresolved owner, got %q", *listings[2].OwnerName)
	}
}

func TestListSellableRequiresIdentity(t *testing.T) {
	pool := NewPoolService(fakeTxRunner{}, stubPoolStore{}, stubLedgerWriter{}, stubAuditStore{}, nil)
	if _, err := pool.ListSellable(context.Background(), ""); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
