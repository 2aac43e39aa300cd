// Package app wires the sync daemon together: configuration, local
// database, remote client, and the event pull loop, with graceful
// shutdown on SIGINT/SIGTERM.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/passvault/internal/codec"
	"github.com/dmitrijs2005/passvault/internal/config"
	"github.com/dmitrijs2005/passvault/internal/events"
	"github.com/dmitrijs2005/passvault/internal/keys"
	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/models"
	"github.com/dmitrijs2005/passvault/internal/reconcile"
	"github.com/dmitrijs2005/passvault/internal/remote"
	"github.com/dmitrijs2005/passvault/internal/repositories/cursors"
	"github.com/dmitrijs2005/passvault/internal/repositories/items"
	"github.com/dmitrijs2005/passvault/internal/store"
	"github.com/dmitrijs2005/passvault/internal/syncer"
)

// Credentials carries the session tokens obtained at login.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	engine   *syncer.Engine
	puller   *events.Puller
	vaults   []models.Vault
	notifier *items.Notifier
}

// NewApp builds the daemon from its collaborators. Key providers and
// the vault list come from the account layer, which is established
// before the sync loop starts.
func NewApp(cfg *config.Config, vaultKeys keys.VaultKeyProvider,
	addressKeys keys.AddressKeyProvider, vaults []models.Vault, creds Credentials) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := store.InitDatabase(context.Background(), cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	client := remote.NewClient(cfg.RemoteEndpoint, nil, creds.AccessToken, creds.RefreshToken)
	resolver := keys.NewResolver(vaultKeys)
	notifier := items.NewNotifier()

	engine := syncer.NewEngine(db, client, resolver, addressKeys, logger)
	engine.SetNotifier(notifier)

	rec := reconcile.New(codec.New())
	applier := events.NewApplier(db, resolver, addressKeys, rec, logger)
	applier.SetNotifier(notifier)
	puller := events.NewPuller(client, client, applier, cursors.NewSQLiteRepository(db), logger)

	return &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		engine:   engine,
		puller:   puller,
		vaults:   vaults,
		notifier: notifier,
	}, nil
}

// Notifier exposes the vault change broadcast for callers that want to
// observe local cache changes.
func (app *App) Notifier() *items.Notifier {
	return app.notifier
}

// Engine exposes the mutation API for callers embedding the daemon.
func (app *App) Engine() *syncer.Engine {
	return app.engine
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the event pull loop and blocks until the context is
// cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	app.puller.Run(ctx, app.vaults, app.config.EventPollInterval)

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
}
