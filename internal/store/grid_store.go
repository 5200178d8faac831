package store

import (
	"context"
	"time"

	"powershare/internal/models"

	"github.com/lib/pq"
)

type GridStore struct {
	db DB
}

func NewGridStore(db DB) *GridStore {
	return &GridStore{db: db}
}

type gridRow struct {
	ID           string         `db:"id"`
	OwnerID      string         `db:"owner_id"`
	Name         string         `db:"name"`
	Latitude     float64        `db:"latitude"`
	Longitude    float64        `db:"longitude"`
	Units        int64          `db:"units"`
	UnitsForSell int64          `db:"units_for_sell"`
	Available    bool           `db:"available"`
	Station      bool           `db:"station"`
	Ports        pq.StringArray `db:"ports"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r gridRow) toModel() models.Grid {
	ports := []string(r.Ports)
	if ports == nil {
		ports = []string{}
	}
	return models.Grid{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Name:         r.Name,
		Location:     models.Location{Latitude: r.Latitude, Longitude: r.Longitude},
		Units:        r.Units,
		UnitsForSell: r.UnitsForSell,
		Available:    r.Available,
		Station:      r.Station,
		Ports:        ports,
		CreatedAt:    r.CreatedAt,
	}
}

type sellableRow struct {
	ID           string  `db:"id"`
	OwnerID      string  `db:"owner_id"`
	OwnerName    *string `db:"owner_name"`
	Name         string  `db:"name"`
	Latitude     float64 `db:"latitude"`
	Longitude    float64 `db:"longitude"`
	UnitsForSell int64   `db:"units_for_sell"`
}

type unitStatusRow struct {
	Units        int64 `db:"units"`
	UnitsForSell int64 `db:"units_for_sell"`
}

type GridInput struct {
	ID        string
	OwnerID   string
	Name      string
	Latitude  float64
	Longitude float64
	Units     int64
	Available bool
}

const gridColumns = `id, owner_id, name, latitude, longitude, units, units_for_sell, available, station, ports, created_at`

func (s *GridStore) Create(ctx context.Context, tx Execer, input GridInput) error {
	query := `
		INSERT INTO user_grids (id, owner_id, name, latitude, longitude, units, units_for_sell, available)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
	`
	_, err := tx.ExecContext(ctx, query, input.ID, input.OwnerID, input.Name, input.Latitude, input.Longitude, input.Units, input.Available)
	return err
}

func (s *GridStore) GetByOwner(ctx context.Context, ownerID string) (models.Grid, error) {
	var row gridRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+gridColumns+` FROM user_grids WHERE owner_id = $1`, ownerID); err != nil {
		return models.Grid{}, err
	}
	return row.toModel(), nil
}

func (s *GridStore) GetForUpdate(ctx context.Context, tx Getter, gridID string) (models.Grid, error) {
	var row gridRow
	err := tx.GetContext(ctx, &row, `
		SELECT `+gridColumns+`
		FROM user_grids
		WHERE id = $1
		FOR UPDATE
	`, gridID)
	if err != nil {
		return models.Grid{}, err
	}
	return row.toModel(), nil
}

func (s *GridStore) GetByOwnerForUpdate(ctx context.Context, tx Getter, ownerID string) (models.Grid, error) {
	var row gridRow
	err := tx.GetContext(ctx, &row, `
		SELECT `+gridColumns+`
		FROM user_grids
		WHERE owner_id = $1
		FOR UPDATE
	`, ownerID)
	if err != nil {
		return models.Grid{}, err
	}
	return row.toModel(), nil
}

func (s *GridStore) SetUnits(ctx context.Context, tx Getter, gridID string, units int64) (models.UnitStatus, error) {
	var row unitStatusRow
	err := tx.GetContext(ctx, &row, `
		UPDATE user_grids
		SET units = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING units, units_for_sell
	`, units, gridID)
	if err != nil {
		return models.UnitStatus{}, err
	}
	return models.UnitStatus(row), nil
}

// MoveToPool shifts n units into the sell pool in a single statement. The
// guard makes it return sql.ErrNoRows instead of driving units negative.
func (s *GridStore) MoveToPool(ctx context.Context, tx Getter, gridID string, n int64) (models.UnitStatus, error) {
	var row unitStatusRow
	err := tx.GetContext(ctx, &row, `
		UPDATE user_grids
		SET units = units - $1, units_for_sell = units_for_sell + $1, updated_at = NOW()
		WHERE id = $2 AND units >= $1
		RETURNING units, units_for_sell
	`, n, gridID)
	if err != nil {
		return models.UnitStatus{}, err
	}
	return models.UnitStatus(row), nil
}

// TakeFromPool removes n units from the sell pool, returning sql.ErrNoRows
// when fewer than n are listed.
func (s *GridStore) TakeFromPool(ctx context.Context, tx Getter, gridID string, n int64) (models.UnitStatus, error) {
	var row unitStatusRow
	err := tx.GetContext(ctx, &row, `
		UPDATE user_grids
		SET units_for_sell = units_for_sell - $1, updated_at = NOW()
		WHERE id = $2 AND units_for_sell >= $1
		RETURNING units, units_for_sell
	`, n, gridID)
	if err != nil {
		return models.UnitStatus{}, err
	}
	return models.UnitStatus(row), nil
}

func (s *GridStore) SetStation(ctx context.Context, tx Execer, gridID string, ports []string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE user_grids
		SET station = TRUE, ports = $1, updated_at = NOW()
		WHERE id = $2
	`, pq.StringArray(ports), gridID)
	return err
}

func (s *GridStore) ListAll(ctx context.Context) ([]models.Grid, error) {
	var rows []gridRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+gridColumns+` FROM user_grids ORDER BY seq`); err != nil {
		return nil, err
	}
	grids := make([]models.Grid, 0, len(rows))
	for _, row := range rows {
		grids = append(grids, row.toModel())
	}
	return grids, nil
}

// ListSellable returns grids with listed units that excludeOwnerID does not
// own, in insertion order. Owners that cannot be joined leave OwnerName nil.
func (s *GridStore) ListSellable(ctx context.Context, excludeOwnerID string) ([]models.SellableGrid, error) {
	var rows []sellableRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT g.id, g.owner_id, u.name AS owner_name, g.name, g.latitude, g.longitude, g.units_for_sell
		FROM user_grids g
		LEFT JOIN users u ON u.id = g.owner_id
		WHERE g.units_for_sell > 0 AND g.owner_id <> $1
		ORDER BY g.seq
	`, excludeOwnerID)
	if err != nil {
		return nil, err
	}
	listings := make([]models.SellableGrid, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, models.SellableGrid{
			GridID:       row.ID,
			GridName:     row.Name,
			Location:     models.Location{Latitude: row.Latitude, Longitude: row.Longitude},
			UnitsForSell: row.UnitsForSell,
			OwnerID:      row.OwnerID,
			OwnerName:    row.OwnerName,
		})
	}
	return listings, nil
}

func (s *GridStore) ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM user_grids WHERE owner_id = $1 ORDER BY seq`, ownerID); err != nil {
		return nil, err
	}
	return ids, nil
}
