package store

import (
	"context"
	"time"

	"powershare/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Mobile       string    `db:"mobile"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) toModel() models.User {
	return models.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Mobile:       r.Mobile,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
	}
}

type UserInput struct {
	ID           string
	Name         string
	Email        string
	Mobile       string
	PasswordHash string
}

func (s *UserStore) Create(ctx context.Context, tx Execer, input UserInput) error {
	query := `
		INSERT INTO users (id, name, email, mobile, password_hash)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.ExecContext(ctx, query, input.ID, input.Name, input.Email, input.Mobile, input.PasswordHash)
	return err
}

// GetByEmail expects the normalized (lowercase) email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, email, mobile, password_hash, created_at
		FROM users
		WHERE email = $1
	`, email)
	if err != nil {
		return models.User{}, err
	}
	return row.toModel(), nil
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, email, mobile, created_at
		FROM users
		WHERE id = $1
	`, userID)
	if err != nil {
		return models.User{}, err
	}
	return row.toModel(), nil
}
