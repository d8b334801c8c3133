package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/internal/metrics"
)

const requestTimeout = 60 * time.Second

// Routes bundles the handlers mounted by NewRouter.
type Routes struct {
	Auth       *AuthHandler
	Households *HouseholdHandler
	Areas      *AreaHandler
	Programs   *ProgramHandler
	Referrals  *ReferralHandler
	Users      *UserHandler
	Reports    *ReportHandler

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	DB             Pinger
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

// NewRouter mounts every route. Everything except /healthz, /metrics and
// /auth/login requires a bearer token.
func NewRouter(routes Routes) *chi.Mux {
	logger := routes.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		AccessLog(logger, routes.Metrics),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
	)
	router.Get("/healthz", Healthz(routes.DB))
	if routes.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", routes.MetricsHandler)
	}
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, routes.Auth)
	})

	router.Group(func(r chi.Router) {
		r.Use(routes.Auth.RequireAuth)
		r.Route("/households", func(r chi.Router) {
			HouseholdRouter(r, routes.Households)
		})
		r.Route("/areas", func(r chi.Router) {
			AreaRouter(r, routes.Areas)
		})
		r.Route("/programs", func(r chi.Router) {
			ProgramRouter(r, routes.Programs)
		})
		r.Route("/referrals", func(r chi.Router) {
			ReferralRouter(r, routes.Referrals)
		})
		r.Route("/users", func(r chi.Router) {
			UserRouter(r, routes.Users)
		})
		r.Route("/reports", func(r chi.Router) {
			ReportRouter(r, routes.Reports)
		})
	})
	return router
}
