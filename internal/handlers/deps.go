package handlers

import (
	"context"

	"powershare/internal/models"
	"powershare/internal/services"
)

type AccountService interface {
	Register(ctx context.Context, req services.RegisterRequest) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	Me(ctx context.Context, userID string) (models.User, error)
	ResolveEmail(ctx context.Context, email string) (string, error)
}

type GridService interface {
	Create(ctx context.Context, req services.CreateGridRequest) (string, error)
	Fetch(ctx context.Context, ownerID string) (models.Grid, error)
	UnitStatus(ctx context.Context, ownerID string) (models.UnitStatus, error)
	SetUnits(ctx context.Context, ownerID string, units int64) (models.UnitStatus, error)
	SellUnits(ctx context.Context, ownerID string, n int64) (models.UnitStatus, error)
	AttachStation(ctx context.Context, ownerID string, ports []string) (models.Grid, error)
	ListAll(ctx context.Context) ([]models.Grid, error)
}

type PoolService interface {
	ListSellable(ctx context.Context, userID string) ([]models.SellableGrid, error)
	Buy(ctx context.Context, req services.BuyRequest) (services.Purchase, error)
}

type ReportService interface {
	History(ctx context.Context, userID string) (services.History, error)
	MonthlySummary(ctx context.Context, userID string) ([]services.MonthlyEntry, error)
}
