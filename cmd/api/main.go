package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/wesrides/rides-api/internal/adapters/email"
	"github.com/wesrides/rides-api/internal/adapters/httpapi"
	memridestore "github.com/wesrides/rides-api/internal/adapters/memory/ridestore"
	memuserrepo "github.com/wesrides/rides-api/internal/adapters/memory/userrepo"
	postgres "github.com/wesrides/rides-api/internal/adapters/postgres"
	pgridestore "github.com/wesrides/rides-api/internal/adapters/postgres/ridestore"
	pguserrepo "github.com/wesrides/rides-api/internal/adapters/postgres/userrepo"
	"github.com/wesrides/rides-api/internal/app/auth"
	"github.com/wesrides/rides-api/internal/app/interests"
	"github.com/wesrides/rides-api/internal/app/rides"
	"github.com/wesrides/rides-api/internal/app/users"
	"github.com/wesrides/rides-api/internal/platform/auth/token"
	platformclock "github.com/wesrides/rides-api/internal/platform/clock"
	"github.com/wesrides/rides-api/internal/platform/config"
	"github.com/wesrides/rides-api/internal/platform/logging"
	notifierport "github.com/wesrides/rides-api/internal/ports/out/notifier"
	ridestoreport "github.com/wesrides/rides-api/internal/ports/out/ridestore"
	userrepoport "github.com/wesrides/rides-api/internal/ports/out/userrepo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("error").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	clk := platformclock.NewSystemClock()

	var (
		store    ridestoreport.Store
		userRepo userrepoport.Repository
		cleanup  func()
	)
	switch cfg.StorageBackend {
	case "postgres":
		pool, err := postgres.NewPool(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		if err := postgres.Migrate(context.Background(), pool); err != nil {
			logger.Error("postgres migration failed", "error", err)
			os.Exit(1)
		}
		cleanup = pool.Close
		store = pgridestore.NewStore(pool)
		userRepo = pguserrepo.NewRepo(pool)
	default:
		store = memridestore.NewStore()
		userRepo = memuserrepo.NewRepo()
	}
	if cleanup != nil {
		defer cleanup()
	}

	var notify notifierport.Notifier
	switch cfg.Notifier {
	case "smtp":
		notify = email.NewNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.FromName, cfg.FromEmail)
	default:
		notify = email.NewLogNotifier(logger)
	}

	tokens := token.NewIssuer(cfg.JWTSecret, cfg.TokenTTL, clk)

	api := httpapi.NewServer(
		auth.NewService(userRepo, tokens, clk),
		users.NewService(userRepo, clk),
		rides.NewService(store, userRepo, clk),
		interests.NewService(store, userRepo, notify, clk, logger),
	)
	handler := httpapi.NewRouter(api, httpapi.RouterConfig{
		Tokens:            tokens,
		Logger:            logger,
		AuthRatePerMinute: cfg.AuthRatePerMinute,
		AuthRateBurst:     cfg.AuthRateBurst,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageBackend, "notifier", cfg.Notifier)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
}
