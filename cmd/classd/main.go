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
	"github.com/joho/godotenv"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/config"
	httptransport "github.com/example/class-scheduler/internal/http"
	"github.com/example/class-scheduler/internal/logging"
	"github.com/example/class-scheduler/internal/persistence/sqlite"
	"github.com/example/class-scheduler/internal/recurrence"
)

func main() {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	logger := logging.NewLogger(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("failed to resolve timezone", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close store", "error", cerr)
		}
	}()

	if err := store.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	roomTokenGen := func() string { return "room-" + uuid.NewString() }
	now := time.Now

	engine := recurrence.NewEngine(loc)
	notifier := &slogNotifier{logger: logger}
	issuer := application.NewTokenIssuer([]byte(cfg.TokenSecret), cfg.TokenDefaultMinutes, now)

	scheduleService := application.NewScheduleService(store, store, engine, notifier, idGenerator, roomTokenGen, now, loc, logger)
	activationService := application.NewActivationService(store, idGenerator, now, logger)
	accessService := application.NewAccessService(newDirectoryAdapter(store), activationService, store, issuer, loc, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Rules:       httptransport.NewRuleHandler(scheduleService, logger),
		Sessions:    httptransport.NewSessionHandler(scheduleService, logger),
		Activations: httptransport.NewActivationHandler(activationService, logger),
		Access:      httptransport.NewAccessHandler(accessService, now, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	})

	go generationLoop(ctx, scheduleService, cfg.GenerationWeeks, cfg.GenerationInterval, logger)
	go sweepLoop(ctx, activationService, cfg.SweepInterval, logger)

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

	logger.Info("class scheduler API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// generationLoop extends every active rule's session horizon on a fixed
// cadence. An immediate first run fills the horizon right after startup.
func generationLoop(ctx context.Context, service *application.ScheduleService, weeks int, interval time.Duration, logger *slog.Logger) {
	run := func() {
		total, err := service.GenerateAll(ctx, weeks)
		if err != nil {
			logger.Error("session generation failed", "error", err)
			return
		}
		if total > 0 {
			logger.Info("session horizon extended", "created", total)
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// sweepLoop flips activations whose end date passed to expired.
func sweepLoop(ctx context.Context, service *application.ActivationService, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := service.SweepExpired(ctx)
			if err != nil {
				logger.Error("activation sweep failed", "error", err)
				continue
			}
			if count > 0 {
				logger.Info("activations expired", "count", count)
			}
		}
	}
}
