// Package server wires the account service together: configuration, AWS
// clients, the credential store, the event notifier, the account flows and
// the HTTP server. It also owns process lifecycle and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/auth"
	"github.com/dmitrijs2005/gophaccounts/internal/server/cloud"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/dmitrijs2005/gophaccounts/internal/server/events"
	"github.com/dmitrijs2005/gophaccounts/internal/server/httpapi"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophaccounts/internal/server/services"
)

var loadCloudClients = cloud.Load

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
	httpServer  *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, logging.NewJSONLogger(c.LogLevel))
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	var clients *cloud.Clients
	if needsAWS(c) {
		var err error
		clients, err = loadCloudClients(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
	}

	rm, err := repomanager.New(ctx, c, clients)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}
	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	var notifier events.Notifier
	if c.EventBusName != "" {
		notifier = events.NewEventBridgeNotifier(clients.EventBridge(), c.EventBusName)
	} else {
		logger.Warn(ctx, "no event bus configured, events are only logged")
		notifier = events.NewLogNotifier(logger)
	}

	issuer := auth.NewIssuer(c)

	accounts, err := services.NewAccountService(rm.Users(), issuer, notifier, logger, c)
	if err != nil {
		_ = rm.Close()
		return nil, err
	}

	var images httpapi.ImageService
	if c.S3Bucket != "" {
		images = services.NewReviewImageService(clients.S3(), c.S3Bucket, c.PresignValidity)
	}

	return &App{
		config:      c,
		logger:      logger,
		repomanager: rm,
		httpServer:  httpapi.NewServer(c, logger, accounts, images, issuer),
	}, nil
}

func needsAWS(c *config.Config) bool {
	return c.StoreBackend == config.StoreBackendDynamoDB || c.EventBusName != "" || c.S3Bucket != ""
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until ctx is cancelled, a termination signal arrives or the
// HTTP server fails, then releases the store.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.StoreBackend)

	app.initSignalHandler(cancelFunc)

	var (
		wg     sync.WaitGroup
		runErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			runErr = err
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.repomanager.Close(); err != nil {
		app.logger.Error(context.Background(), "close store", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
	return runErr
}
