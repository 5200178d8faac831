package handlers

import (
	"log/slog"
	"net/http"

	"powershare/internal/config"
	"powershare/internal/metrics"
	"powershare/internal/middleware"
	"powershare/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg      config.Config
	logger   *slog.Logger
	tokens   middleware.SubjectParser
	accounts AccountService
	grids    GridService
	pool     PoolService
	reports  ReportService
	hub      *websocket.Hub
}

func New(cfg config.Config, logger *slog.Logger, tokens middleware.SubjectParser, accounts AccountService, grids GridService, pool PoolService, reports ReportService, hub *websocket.Hub) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:      cfg,
		logger:   logger,
		tokens:   tokens,
		accounts: accounts,
		grids:    grids,
		pool:     pool,
		reports:  reports,
		hub:      hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(h.logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(metrics.Middleware)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	identified := chi.Chain(middleware.Auth(h.tokens), middleware.ResolveUser(h.accounts))
	identifiedSocket := chi.Chain(middleware.WebSocketAuth(h.tokens), middleware.ResolveUser(h.accounts))

	router.Route("/user", func(r chi.Router) {
		r.Post("/add", h.Register)
		r.Post("/login", h.Login)
		r.With(identified...).Get("/me", h.Me)
	})
	router.Route("/grid", func(r chi.Router) {
		r.Get("/", h.ListGrids)
		r.Group(func(r chi.Router) {
			r.Use(identified...)
			r.Post("/insert_new", h.InsertGrid)
			r.Get("/get_user_grid", h.GetUserGrid)
			r.Post("/update_units", h.UpdateUnits)
			r.Post("/sell_units", h.SellUnits)
			r.Get("/get_unit_status", h.GetUnitStatus)
			r.Post("/update_grid", h.UpdateGrid)
		})
	})
	router.Route("/energypool", func(r chi.Router) {
		r.Use(identified...)
		r.Get("/", h.ListPool)
		r.Post("/buy", h.Buy)
		r.Get("/transaction_history", h.TransactionHistory)
		r.Get("/monthly_energy_summary", h.MonthlySummary)
	})
	router.With(identifiedSocket...).Get("/ws/units", h.WSUnits)

	router.Handle("/metrics", metrics.Handler())
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusOK, "Hello from the backend")
	})
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
