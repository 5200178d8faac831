package models

import "time"

const TransactionStatusCompleted = "completed"

type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Mobile       string    `db:"mobile" json:"mobile"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Grid struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"user"`
	Name         string    `json:"grid_name"`
	Location     Location  `json:"location"`
	Units        int64     `json:"units"`
	UnitsForSell int64     `json:"units_for_sell"`
	Available    bool      `json:"available"`
	Station      bool      `json:"station"`
	Ports        []string  `json:"ports"`
	CreatedAt    time.Time `json:"created_at"`
}

// SellableGrid is a pool listing entry. OwnerName is nil when the owner
// could not be resolved.
type SellableGrid struct {
	GridID       string   `json:"grid_id"`
	GridName     string   `json:"grid_name"`
	Location     Location `json:"location"`
	UnitsForSell int64    `json:"units_for_sell"`
	OwnerID      string   `json:"user"`
	OwnerName    *string  `json:"user_name"`
}

type Transaction struct {
	ID        string    `json:"id"`
	BuyerID   string    `json:"buyer_id"`
	GridID    string    `json:"grid_id"`
	Units     int64     `json:"units"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type UnitStatus struct {
	Units        int64 `json:"units"`
	UnitsForSell int64 `json:"units_for_sell"`
}
