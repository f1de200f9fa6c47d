package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/isdelr/spacemate-auth/internal/api"
	"github.com/isdelr/spacemate-auth/internal/auth"
	"github.com/isdelr/spacemate-auth/internal/config"
	"github.com/isdelr/spacemate-auth/internal/database"
	"github.com/isdelr/spacemate-auth/internal/logger"
	"github.com/isdelr/spacemate-auth/internal/monitoring"
	"github.com/isdelr/spacemate-auth/internal/services"
	"github.com/rs/zerolog/log"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Set up database
	ctx := context.Background()
	dialect := database.Dialect(cfg.DatabaseDriver)
	db, err := database.New(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, dialect); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up auth primitives
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		Issuer:        cfg.TokenIssuer,
		Audience:      cfg.TokenAudience,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token service")
	}
	if cfg.AccessTokenTTL == 0 || cfg.RefreshTokenTTL == 0 {
		log.Warn().Msg("Token expiry disabled: issued tokens stay valid until the signing secret changes")
	}

	// Set up services
	userService := services.NewUserService(db, dialect, hasher)
	authService, err := services.NewAuthService(userService, tokens, hasher)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize auth service")
	}

	// Set up and run the background store monitor
	monitor, err := monitoring.NewStoreMonitor(userService, cfg.HealthProbeSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store monitor")
	}
	monitor.Start()

	// Set up router
	router := api.NewRouter(api.Dependencies{
		APIPrefix:   cfg.APIPrefix,
		Environment: cfg.Environment,
		Version:     version,
		Auth:        authService,
		Users:       userService,
		Gate:        auth.NewGate(tokens, userService),
		Probes:      monitor,
	})

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("environment", cfg.Environment).
			Str("api_prefix", cfg.APIPrefix).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	monitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
