package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"powershare/internal/models"
	"powershare/internal/store"
	"powershare/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubGridStore struct {
	createFn              func(ctx context.Context, tx store.Execer, input store.GridInput) error
	getByOwnerFn          func(ctx context.Context, ownerID string) (models.Grid, error)
	getByOwnerForUpdateFn func(ctx context.Context, tx store.Getter, ownerID string) (models.Grid, error)
	setUnitsFn            func(ctx context.Context, tx store.Getter, gridID string, units int64) (models.UnitStatus, error)
	moveToPoolFn          func(ctx context.Context, tx store.Getter, gridID string, n int64) (models.UnitStatus, error)
	setStationFn          func(ctx context.Context, tx store.Execer, gridID string, ports []string) error
	listAllFn             func(ctx context.Context) ([]models.Grid, error)
}

func (s stubGridStore) Create(ctx context.Context, tx store.Execer, input store.GridInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubGridStore) GetByOwner(ctx context.Context, ownerID string) (models.Grid, error) {
	return s.getByOwnerFn(ctx, ownerID)
}

func (s stubGridStore) GetByOwnerForUpdate(ctx context.Context, tx store.Getter, ownerID string) (models.Grid, error) {
	return s.getByOwnerForUpdateFn(ctx, tx, ownerID)
}

func (s stubGridStore) SetUnits(ctx context.Context, tx store.Getter, gridID string, units int64) (models.UnitStatus, error) {
	return s.setUnitsFn(ctx, tx, gridID, units)
}

func (s stubGridStore) MoveToPool(ctx context.Context, tx store.Getter, gridID string, n int64) (models.UnitStatus, error) {
	return s.moveToPoolFn(ctx, tx, gridID, n)
}

func (s stubGridStore) SetStation(ctx context.Context, tx store.Execer, gridID string, ports []string) error {
	if s.setStationFn == nil {
		return nil
	}
	return s.setStationFn(ctx, tx, gridID, ports)
}

func (s stubGridStore) ListAll(ctx context.Context) ([]models.Grid, error) {
	if s.listAllFn == nil {
		return []models.Grid{}, nil
	}
	return s.listAllFn(ctx)
}

type stubPoolStore struct {
	getForUpdateFn func(ctx context.Context, tx store.Getter, gridID string) (models.Grid, error)
	takeFn         func(ctx context.Context, tx store.Getter, gridID string, n int64) (models.UnitStatus, error)
	listFn         func(ctx context.Context, excludeOwnerID string) ([]models.SellableGrid, error)
}

func (s stubPoolStore) GetForUpdate(ctx context.Context, tx store.Getter, gridID string) (models.Grid, error) {
	return s.getForUpdateFn(ctx, tx, gridID)
}

func (s stubPoolStore) TakeFromPool(ctx context.Context, tx store.Getter, gridID string, n int64) (models.UnitStatus, error) {
	return s.takeFn(ctx, tx, gridID, n)
}

func (s stubPoolStore) ListSellable(ctx context.Context, excludeOwnerID string) ([]models.SellableGrid, error) {
	return s.listFn(ctx, excludeOwnerID)
}

type stubLedgerWriter struct {
	appendFn func(ctx context.Context, tx store.Execer, input store.TransactionInput) (string, error)
}

func (s stubLedgerWriter) Append(ctx context.Context, tx store.Execer, input store.TransactionInput) (string, error) {
	if s.appendFn == nil {
		return "tx-1", nil
	}
	return s.appendFn(ctx, tx, input)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, input store.UserInput) error
	getByEmailFn func(ctx context.Context, email string) (models.User, error)
	getByIDFn    func(ctx context.Context, userID string) (models.User, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, input store.UserInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{ID: userID}, nil
	}
	return s.getByIDFn(ctx, userID)
}

type stubAuditStore struct {
	logFn func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data map[string]any) error
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data map[string]any) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

type hubCall struct {
	userID string
	update websocket.UnitUpdate
}

type stubHub struct {
	mu    sync.Mutex
	calls []hubCall
}

func (s *stubHub) BroadcastUnits(userID string, update websocket.UnitUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, hubCall{userID: userID, update: update})
}

// memoryStore is an in-memory grid ledger and transaction ledger. Its tx
// runner holds mu for the whole function and restores a snapshot when the
// function fails, so writes made inside WithTx are atomic and serialized.
type memoryStore struct {
	mu           sync.Mutex
	users        map[string]models.User
	grids        map[string]models.Grid
	gridOrder    []string
	transactions []store.LedgerRow
	audits       int
	failAppend   bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users: make(map[string]models.User),
		grids: make(map[string]models.Grid),
	}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	grids := make(map[string]models.Grid, len(m.grids))
	for id, grid := range m.grids {
		grids[id] = grid
	}
	order := append([]string(nil), m.gridOrder...)
	transactions := append([]store.LedgerRow(nil), m.transactions...)
	audits := m.audits
	if err := fn(nil); err != nil {
		m.grids = grids
		m.gridOrder = order
		m.transactions = transactions
		m.audits = audits
		return err
	}
	return nil
}

func (m *memoryStore) addUser(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = models.User{ID: id, Name: name, Email: id + "@example.com"}
}

func (m *memoryStore) addGrid(id, ownerID string, units, unitsForSell int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grids[id] = models.Grid{ID: id, OwnerID: ownerID, Name: "grid " + id, Units: units, UnitsForSell: unitsForSell, Available: true, Ports: []string{}}
	m.gridOrder = append(m.gridOrder, id)
}

func (m *memoryStore) grid(id string) models.Grid {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grids[id]
}

func (m *memoryStore) ledgerSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

// Methods taking a tx run under the runner's lock.

func (m *memoryStore) Create(_ context.Context, _ store.Execer, input store.GridInput) error {
	for _, grid := range m.grids {
		if grid.OwnerID == input.OwnerID {
			return &pq.Error{Code: "23505"}
		}
	}
	m.grids[input.ID] = models.Grid{
		ID:        input.ID,
		OwnerID:   input.OwnerID,
		Name:      input.Name,
		Location:  models.Location{Latitude: input.Latitude, Longitude: input.Longitude},
		Units:     input.Units,
		Available: input.Available,
		Ports:     []string{},
	}
	m.gridOrder = append(m.gridOrder, input.ID)
	return nil
}

func (m *memoryStore) GetByOwnerForUpdate(_ context.Context, _ store.Getter, ownerID string) (models.Grid, error) {
	for _, id := range m.gridOrder {
		if m.grids[id].OwnerID == ownerID {
			return m.grids[id], nil
		}
	}
	return models.Grid{}, sql.ErrNoRows
}

func (m *memoryStore) GetForUpdate(_ context.Context, _ store.Getter, gridID string) (models.Grid, error) {
	grid, ok := m.grids[gridID]
	if !ok {
		return models.Grid{}, sql.ErrNoRows
	}
	return grid, nil
}

func (m *memoryStore) SetUnits(_ context.Context, _ store.Getter, gridID string, units int64) (models.UnitStatus, error) {
	grid, ok := m.grids[gridID]
	if !ok {
		return models.UnitStatus{}, sql.ErrNoRows
	}
	grid.Units = units
	m.grids[gridID] = grid
	return models.UnitStatus{Units: grid.Units, UnitsForSell: grid.UnitsForSell}, nil
}

func (m *memoryStore) MoveToPool(_ context.Context, _ store.Getter, gridID string, n int64) (models.UnitStatus, error) {
	grid, ok := m.grids[gridID]
	if !ok || grid.Units < n {
		return models.UnitStatus{}, sql.ErrNoRows
	}
	grid.Units -= n
	grid.UnitsForSell += n
	m.grids[gridID] = grid
	return models.UnitStatus{Units: grid.Units, UnitsForSell: grid.UnitsForSell}, nil
}

func (m *memoryStore) TakeFromPool(_ context.Context, _ store.Getter, gridID string, n int64) (models.UnitStatus, error) {
	grid, ok := m.grids[gridID]
	if !ok || grid.UnitsForSell < n {
		return models.UnitStatus{}, sql.ErrNoRows
	}
	grid.UnitsForSell -= n
	m.grids[gridID] = grid
	return models.UnitStatus{Units: grid.Units, UnitsForSell: grid.UnitsForSell}, nil
}

func (m *memoryStore) SetStation(_ context.Context, _ store.Execer, gridID string, ports []string) error {
	grid := m.grids[gridID]
	grid.Station = true
	grid.Ports = ports
	m.grids[gridID] = grid
	return nil
}

func (m *memoryStore) Append(_ context.Context, _ store.Execer, input store.TransactionInput) (string, error) {
	if m.failAppend {
		return "", sql.ErrConnDone
	}
	id := uuid.NewString()
	m.transactions = append(m.transactions, store.LedgerRow{
		Transaction: models.Transaction{
			ID:        id,
			BuyerID:   input.BuyerID,
			GridID:    input.GridID,
			Units:     input.Units,
			Status:    input.Status,
			CreatedAt: input.CreatedAt,
		},
		BuyerName: m.users[input.BuyerID].Name,
		GridName:  m.grids[input.GridID].Name,
	})
	return id, nil
}

func (m *memoryStore) Log(context.Context, store.Execer, string, string, string, string, map[string]any) error {
	m.audits++
	return nil
}

// Reads outside a transaction take the lock themselves.

func (m *memoryStore) GetByOwner(ctx context.Context, ownerID string) (models.Grid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GetByOwnerForUpdate(ctx, nil, ownerID)
}

func (m *memoryStore) ListAll(context.Context) ([]models.Grid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	grids := make([]models.Grid, 0, len(m.gridOrder))
	for _, id := range m.gridOrder {
		grids = append(grids, m.grids[id])
	}
	return grids, nil
}

func (m *memoryStore) ListSellable(_ context.Context, excludeOwnerID string) ([]models.SellableGrid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	listings := []models.SellableGrid{}
	for _, id := range m.gridOrder {
		grid := m.grids[id]
		if grid.UnitsForSell <= 0 || grid.OwnerID == excludeOwnerID {
			continue
		}
		var ownerName *string
		if user, ok := m.users[grid.OwnerID]; ok {
			name := user.Name
			ownerName = &name
		}
		listings = append(listings, models.SellableGrid{
			GridID:       grid.ID,
			GridName:     grid.Name,
			UnitsForSell: grid.UnitsForSell,
			OwnerID:      grid.OwnerID,
			OwnerName:    ownerName,
		})
	}
	return listings, nil
}

func (m *memoryStore) ListIDsByOwner(_ context.Context, ownerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, id := range m.gridOrder {
		if m.grids[id].OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryStore) ListByBuyer(_ context.Context, buyerID string) ([]store.LedgerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := []store.LedgerRow{}
	for _, row := range m.transactions {
		if row.BuyerID == buyerID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (m *memoryStore) ListByGrids(_ context.Context, gridIDs []string) ([]store.LedgerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(gridIDs))
	for _, id := range gridIDs {
		wanted[id] = true
	}
	rows := []store.LedgerRow{}
	for _, row := range m.transactions {
		if wanted[row.GridID] {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
