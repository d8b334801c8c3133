package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bayanihan-data/povassess/config"
	"github.com/bayanihan-data/povassess/internal/db"
	"github.com/bayanihan-data/povassess/internal/gazetteer"
	"github.com/bayanihan-data/povassess/internal/handlers"
	"github.com/bayanihan-data/povassess/internal/metrics"
	"github.com/bayanihan-data/povassess/internal/mq"
	"github.com/bayanihan-data/povassess/internal/referralflow"
	"github.com/bayanihan-data/povassess/internal/services"
	"github.com/bayanihan-data/povassess/internal/session"
	"github.com/bayanihan-data/povassess/internal/storage"
	"github.com/bayanihan-data/povassess/internal/store"
)

const shutdownTimeout = 15 * time.Second

// Server wraps the HTTP server, router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.MQ
	redis      *redis.Client
	logger     *zap.Logger
}

// New connects every backend named by cfg and mounts the API.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Server{db: dbConn, logger: logger}

	objects, err := storage.FromConfig(ctx, cfg.Storage)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	var archive services.Archiver
	if objects != nil {
		archive = objects
		logger.Info("archiving uploads and reports", zap.String("backend", cfg.Storage.Backend), zap.String("bucket", objects.Bucket()))
	}

	s.events, err = mq.FromConfig(ctx, cfg.MQ)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("init mq: %w", err)
	}

	revoked, err := s.revocationList(ctx, cfg.Redis)
	if err != nil {
		s.close()
		return nil, err
	}

	gaz, err := gazetteer.Default()
	if err != nil {
		s.close()
		return nil, fmt.Errorf("load gazetteer: %w", err)
	}
	logger.Info("gazetteer loaded", zap.String("municipality", gaz.Municipality()), zap.Int("barangays", gaz.Len()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	areaRepo := store.NewAreaRepository(dbConn)
	householdRepo := store.NewHouseholdRepository(dbConn)
	userRepo := store.NewUserRepository(dbConn)
	programRepo := store.NewProgramRepository(dbConn)
	referralRepo := store.NewReferralRepository(dbConn)

	machine := referralflow.Machine{Strict: cfg.StrictReferralTransitions}
	userService := services.NewUserService(userRepo, areaRepo, logger)
	householdService := services.NewHouseholdService(householdRepo, areaRepo, m, s.events, logger)
	importService := services.NewImportService(householdRepo, areaRepo, gaz, archive, s.events, m, logger)
	areaService := services.NewAreaService(areaRepo)
	programService := services.NewProgramService(programRepo)
	referralService := services.NewReferralService(referralRepo, householdRepo, programRepo, machine, m, s.events, logger)
	reportService := services.NewReportService(householdRepo, archive, gaz.Municipality(), logger)

	s.router = handlers.NewRouter(handlers.Routes{
		Auth:           handlers.NewAuthHandler(userService, revoked, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger),
		Households:     handlers.NewHouseholdHandler(householdService, importService, cfg.MaxImportBytes, logger),
		Areas:          handlers.NewAreaHandler(areaService, logger),
		Programs:       handlers.NewProgramHandler(programService, logger),
		Referrals:      handlers.NewReferralHandler(referralService, logger),
		Users:          handlers.NewUserHandler(userService, logger),
		Reports:        handlers.NewReportHandler(reportService, logger),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		DB:             dbConn,
		Logger:         logger,
		Metrics:        m,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) revocationList(ctx context.Context, cfg config.RedisConfig) (session.RevocationList, error) {
	if cfg.Addr == "" {
		s.logger.Warn("REDIS_ADDR not set, revoked tokens are kept in process memory")
		return session.NewMemoryList(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	s.redis = client
	return session.NewRedisList(client), nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is closed.
func (s *Server) Start() error {
	s.logger.Info("listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(s.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		err := s.httpServer.Shutdown(shutdownCtx)
		s.close()
		return err
	})
	return g.Wait()
}

// Shutdown stops the server immediately and releases its connections.
func (s *Server) Shutdown() error {
	err := s.httpServer.Close()
	s.close()
	return err
}

func (s *Server) close() {
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			s.logger.Warn("close mq failed", zap.Error(err))
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
