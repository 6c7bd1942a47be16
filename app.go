// Package microgig wires the micro-task marketplace core: tasks persisted
// locally as a single blob, a lifecycle that settles rewards through an
// external wallet extension and a horizon-style ledger API, and an event
// bus the presentation layer subscribes to. The package is the composition
// root; the domain lives in the task, wallet, ledger and storage packages.
package microgig

import (
	"context"
	"log/slog"
	"os"

	"github.com/sourcegraph/conc"
	"github.com/stellar/go/clients/horizonclient"

	"github.com/microgig/microgig/config"
	"github.com/microgig/microgig/eventbus"
	"github.com/microgig/microgig/ledger"
	"github.com/microgig/microgig/pkg/clog"
	"github.com/microgig/microgig/pkg/storage"
	"github.com/microgig/microgig/task"
	"github.com/microgig/microgig/task/repositoryimpl"
	"github.com/microgig/microgig/wallet"
)

// App is constructed once per process and owns the component lifecycle.
type App struct {
	Env    *config.Env
	Bus    *eventbus.Bus
	Tasks  *task.Service
	Wallet *wallet.Session
	Ledger *ledger.Client

	repo        *repositoryimpl.YAMLRepository
	watchCancel context.CancelFunc
	watchWG     *conc.WaitGroup
}

// New loads the environment and wires logger, storage, repository, ledger
// client, lifecycle service and wallet session around the given extension.
func New(ctx context.Context, ext wallet.Extension) (*App, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	return NewWithEnv(ctx, env, ext)
}

func NewWithEnv(ctx context.Context, env *config.Env, ext wallet.Extension) (*App, error) {
	slog.SetDefault(clog.New(os.Stderr, env.Env, env.SlogLevel()))

	store, err := storage.NewLocalStorage(env.BaseDir)
	if err != nil {
		return nil, err
	}
	repo := repositoryimpl.NewYAMLRepository(ctx, store, env.TasksKey)
	bus := eventbus.New()

	horizon := &horizonclient.Client{HorizonURL: env.HorizonURL}
	ledgerClient, err := ledger.New(horizon, ext, ledger.Config{
		NetworkPassphrase: env.NetworkPassphrase,
		BaseFee:           env.BaseFee,
		TxTimeoutSeconds:  env.TxTimeoutSeconds,
		ReserveMargin:     env.ReserveMargin,
		FriendbotURL:      env.FriendbotURL,
	})
	if err != nil {
		return nil, err
	}

	app := &App{
		Env:    env,
		Bus:    bus,
		Tasks:  task.NewService(repo, ledgerClient, bus),
		Wallet: wallet.NewSession(ext, ledgerClient, bus, env.BalanceRefreshInterval),
		Ledger: ledgerClient,
		repo:   repo,
	}

	if env.WatchExternalWrites {
		if err := app.watchBlob(ctx, store, env.TasksKey); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// watchBlob reloads the collection when another process overwrites the
// task blob, so this process stops serving a stale cache. The race itself
// stays last-write-wins.
func (a *App) watchBlob(ctx context.Context, store *storage.LocalStorage, key string) error {
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	changes, err := store.Watch(watchCtx, key)
	if err != nil {
		cancel()
		return err
	}
	a.watchCancel = cancel
	a.watchWG = conc.NewWaitGroup()
	a.watchWG.Go(func() {
		for range changes {
			if err := a.repo.Reload(watchCtx); err != nil {
				slog.Warn("failed to reload tasks after external write", "error", err)
				continue
			}
			a.Bus.PublishNew(eventbus.TypeTasksReloaded, key, nil)
		}
	})
	return nil
}

// Close disconnects the wallet session and stops the blob watcher.
func (a *App) Close() {
	a.Wallet.Disconnect()
	if a.watchCancel != nil {
		a.watchCancel()
		a.watchWG.Wait()
	}
}
