package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/metrics"
	"github.com/vovakirdan/wirechat-client/internal/store"
	"github.com/vovakirdan/wirechat-client/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-client/internal/transport/http"
	"github.com/vovakirdan/wirechat-client/internal/transport/ws"
	"github.com/vovakirdan/wirechat-client/internal/ui/term"
)

const shutdownTimeout = 5 * time.Second

var (
	_ term.Client                = (*core.Controller)(nil)
	_ transporthttp.StatusSource = (*core.Controller)(nil)
)

// App wires the controller to its transport, storage, status endpoint and terminal UI.
type App struct {
	username   string
	controller *core.Controller
	ui         *term.UI
	server     *stdhttp.Server
	store      store.Store
	log        *zerolog.Logger
}

// New constructs the application with provided configuration. The terminal UI reads
// from in and writes to out.
func New(cfg *config.Config, logger *zerolog.Logger, in io.Reader, out io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	username := cfg.Username
	if cfg.Token != "" {
		claims, err := auth.Inspect(cfg.Token, time.Now())
		if err != nil {
			return nil, fmt.Errorf("check token: %w", err)
		}
		if username == "" {
			username = claims.Name()
		}
		logger.Debug().Str("user", claims.Name()).Msg("using token")
	}

	st, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DBPath).Msg("database initialized")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	dialer := ws.NewDialer(cfg.ServerURL, logger, ws.WithToken(cfg.Token))
	controller := core.New(ControllerConfig(cfg), dialer, logger,
		core.WithStorage(st),
		core.WithMetrics(m),
	)

	a := &App{
		username:   username,
		controller: controller,
		ui:         term.New(controller, in, out, logger),
		store:      st,
		log:        logger,
	}

	if cfg.StatusAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		router := transporthttp.NewRouter(controller, reg, logger,
			transporthttp.WithMiddleware(m.GinMiddleware()),
		)
		a.server = transporthttp.NewServer(cfg.StatusAddr, router)
	}
	return a, nil
}

// ControllerConfig maps file configuration onto controller settings.
func ControllerConfig(cfg *config.Config) core.Config {
	return core.Config{
		DefaultRoom:           cfg.DefaultRoom,
		Token:                 cfg.Token,
		ConnectTimeout:        cfg.ConnectTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		MaxReconnectAttempts:  cfg.Reconnect.MaxAttempts,
		ReconnectInitialDelay: cfg.Reconnect.InitialDelay,
		ReconnectMaxDelay:     cfg.Reconnect.MaxDelay,
		TypingQuietPeriod:     cfg.Typing.QuietPeriod,
		TypingStaleTimeout:    cfg.Typing.StaleTimeout,
		SendWindow:            cfg.RateLimit.Window,
		LegacyEventNames:      cfg.Protocol.LegacyNames,
	}
}

// Run starts the controller and the status endpoint, then hands the terminal to the UI.
// It returns when the user quits, input ends or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- a.controller.Run(loopCtx)
	}()

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() {
			a.log.Info().Str("addr", a.server.Addr).Msg("status endpoint listening")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- err
				return
			}
			serverErr <- nil
		}()
	}

	uiErr := a.ui.Run(ctx, a.username)

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.log.Info().Msg("shutting down status endpoint")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.log.Warn().Err(err).Msg("status endpoint shutdown")
		}
		if err := <-serverErr; err != nil {
			a.log.Error().Err(err).Msg("status endpoint failed")
		}
	}

	stopLoop()
	if err := <-loopDone; err != nil {
		return err
	}
	if errors.Is(uiErr, context.Canceled) {
		return nil
	}
	return uiErr
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
