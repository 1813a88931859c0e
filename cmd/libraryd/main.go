package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/example/library-circulation/internal/application"
	"github.com/example/library-circulation/internal/config"
	httptransport "github.com/example/library-circulation/internal/http"
	"github.com/example/library-circulation/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	policy := application.CirculationPolicy{
		LoanDurationDays:         cfg.LoanDurationDays,
		DailyPenaltyFee:          cfg.DailyPenaltyFee,
		PenaltyBlockingThreshold: cfg.PenaltyBlockingThreshold,
		PickupWindowDays:         cfg.PickupWindowDays,
	}

	circulationService := application.NewCirculationServiceWithLogger(storage, storage, policy, idGenerator, now, logger)
	reservationService := application.NewReservationServiceWithLogger(storage, storage, idGenerator, now, logger)
	penaltyService := application.NewPenaltyServiceWithLogger(storage, storage, now, logger)
	memberService := application.NewMemberServiceWithLogger(storage, cfg.DefaultMaxActiveLoans, idGenerator, now, logger)
	catalogService := application.NewCatalogServiceWithLogger(storage, idGenerator, now, logger)
	visitService := application.NewVisitServiceWithLogger(storage, storage, idGenerator, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Circulation:  httptransport.NewCirculationHandler(circulationService, logger),
		Reservations: httptransport.NewReservationHandler(reservationService, logger),
		Penalties:    httptransport.NewPenaltyHandler(penaltyService, logger),
		Members:      httptransport.NewMemberHandler(memberService, logger),
		Catalog:      httptransport.NewCatalogHandler(catalogService, logger),
		Visits:       httptransport.NewVisitHandler(visitService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RateLimit(rate.Limit(50), 100, logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("library circulation API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
