package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "TradeDeck/internal/domain/repository"
	"TradeDeck/internal/store"
	"TradeDeck/internal/usecase"
	pkgch "TradeDeck/pkg/clickhouse"
	"TradeDeck/pkg/config"
	xhttp "TradeDeck/pkg/http"
	"TradeDeck/pkg/http/middleware"
	applogger "TradeDeck/pkg/logger"

	"github.com/labstack/echo/v4"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	consumer   *usecase.EventConsumer
	refresher  *usecase.Refresher
	poller     *usecase.JobPoller
	st         *store.Store
	journal    drepo.Journal
	chClient   *pkgch.Client
	httpServer *xhttp.Server
	handler    xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	consumer *usecase.EventConsumer,
	refresher *usecase.Refresher,
	poller *usecase.JobPoller,
	st *store.Store,
	journal drepo.Journal,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:       cfg,
		consumer:  consumer,
		refresher: refresher,
		poller:    poller,
		st:        st,
		journal:   journal,
		chClient:  chClient,
		handler:   handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, _ := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	a.httpServer.Echo().Use(echo.WrapMiddleware(middleware.Metrics(l, time.Second)))

	// Connect the stream before serving state, then load the initial
	// snapshots. Events arriving during the fetch are resolved by the
	// store's staleness rules.
	if err := a.consumer.Start(ctx); err != nil {
		l.Error("event consumer start failed", applogger.Error(err))
		return err
	}
	l.Info("event consumer started", applogger.String("stream", a.cfg.Stream.URL))

	if err := a.refresher.RefreshAll(ctx); err != nil {
		l.Warn("initial snapshot fetch failed", applogger.Error(err))
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log.Printf("failed to create logger: %v", err)
		return err
	}
	l.Info("shutting down...")

	a.poller.Close()

	if err := a.consumer.Shutdown(ctx); err != nil {
		l.Warn("event consumer stop error", applogger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			l.Warn("journal close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.st.Close()

	l.Info("shutdown complete")
	return nil
}
