package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet-warden/internal/auth"
	"github.com/vovakirdan/wiremeet-warden/internal/config"
	"github.com/vovakirdan/wiremeet-warden/internal/core"
	"github.com/vovakirdan/wiremeet-warden/internal/entitlement"
	"github.com/vovakirdan/wiremeet-warden/internal/notify"
	"github.com/vovakirdan/wiremeet-warden/internal/notify/chatws"
	"github.com/vovakirdan/wiremeet-warden/internal/roomserver/rest"
	"github.com/vovakirdan/wiremeet-warden/internal/store"
	"github.com/vovakirdan/wiremeet-warden/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wiremeet-warden/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	ctrl            *core.Controller
	notifier        *notify.Notifier
	chat            *chatws.Client
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// The audit store is optional; an empty path disables it.
	var st store.Store
	if cfg.DatabasePath != "" {
		sqlStore, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		st = sqlStore
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
	} else {
		logger.Info().Msg("auditing disabled, no database path configured")
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.Admin.JWTSecret),
		Issuer:   cfg.Admin.JWTIssuer,
		Audience: cfg.Admin.JWTAudience,
		TTL:      cfg.Admin.JWTTTL,
	}
	authService := auth.NewService(jwtConfig)
	if !authService.Enabled() {
		logger.Warn().Msg("admin api disabled, no jwt secret configured")
	}

	rooms := rest.New(cfg.RoomServer.BaseURL, cfg.RoomServer.APIKey, cfg.RoomServer.APISecret, cfg.RoomServer.RequestTimeout, logger)

	var oracle core.EligibilityChecker
	if cfg.Entitlement.BaseURL != "" {
		oracle = entitlement.New(cfg.Entitlement.BaseURL, cfg.Entitlement.Timeout, logger)
	} else {
		logger.Warn().Msg("entitlement checks disabled, no oracle configured")
	}

	var chat *chatws.Client
	var notifier *notify.Notifier
	var announcer core.Notifier
	if cfg.RoomServer.ChatWSURL != "" {
		chat = chatws.New(cfg.RoomServer.ChatWSURL, cfg.RoomServer.APIKey, cfg.RoomServer.APISecret, logger)
		notifier = notify.New(chat, cfg.Notify.QueueSize, logger)
		announcer = notifier
	} else {
		logger.Warn().Msg("announcements disabled, no chat feed configured")
	}

	ctrl := core.NewController(core.ControllerConfig{
		DestroyDelay:    cfg.Election.DestroyDelay,
		GraceDelay:      cfg.Election.GraceDelay,
		RecheckInterval: cfg.Election.RecheckInterval,
		OracleTimeout:   cfg.Entitlement.Timeout,
		DisplayName:     cfg.Notify.DisplayName,
		Exempt: core.Exemptions{
			ServiceDomain:      cfg.ServiceDomain,
			HealthRoomPrefixes: cfg.HealthRoomPrefixes,
		},
	}, rooms, oracle, announcer, st, logger)

	server := transporthttp.NewServer(ctrl, authService, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		ctrl:            ctrl,
		notifier:        notifier,
		chat:            chat,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the controller, notifier, and HTTP server and blocks until
// context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.ctrl.Run(ctx)
	if a.notifier != nil {
		go a.notifier.Run(ctx)
	}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	a.log.Info().Str("addr", a.server.Addr).Msg("warden listening")

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the chat feed and database.
func (a *App) cleanup() {
	if a.chat != nil {
		if err := a.chat.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close chat feed")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
