package cmd

import (
	"database/sql"
	"fmt"

	"github.com/deployops/taskrun/internal/config"
	"github.com/deployops/taskrun/internal/guard"
	"github.com/deployops/taskrun/internal/lock"
	"github.com/deployops/taskrun/internal/migrate"
	"github.com/deployops/taskrun/internal/notify"
	"github.com/deployops/taskrun/internal/orchestrator"
	"github.com/deployops/taskrun/internal/queue"
	"github.com/deployops/taskrun/internal/record"
	"github.com/deployops/taskrun/internal/source"
	"github.com/deployops/taskrun/internal/task"
)

// environment wires the collaborators of one CLI invocation.
type environment struct {
	cfg        *config.Config
	store      record.Store
	dispatcher *queue.WorkerDispatcher
	orch       *orchestrator.Orchestrator
}

func (e *environment) close() {
	if e.dispatcher != nil {
		e.dispatcher.Shutdown()
	}
	if e.store != nil {
		_ = e.store.Close()
	}
}

// setup loads configuration and builds every collaborator the orchestrator
// needs. The caller must close() the returned environment.
func setup() (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	emitter := notify.NewEmitter()
	emitter.Subscribe(notify.LogListener)

	dispatcher := queue.NewWorkerDispatcher(store, emitter, cfg.Queue.Workers, cfg.Queue.Buffer)

	locker, err := buildLocker(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	deps := orchestrator.Deps{
		Store: store,
		Sources: []source.Source{
			source.NewSchemaChangeSource(cfg.SchemaChangeDirs, store),
			source.NewOperationSource(task.Default, store),
		},
		Runner:     buildRunner(store),
		Dispatcher: dispatcher,
		Locker:     locker,
		Guards: guard.Set{
			&guard.EnvironmentGuard{Current: cfg.Environment, AllowedEnv: cfg.AllowedEnvironments},
			&guard.KillSwitchGuard{Variable: cfg.KillSwitchVar},
			&guard.MaintenanceGuard{MarkerPath: cfg.MaintenanceMarker},
		},
		Emitter: emitter,
	}

	return &environment{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		orch:       orchestrator.New(cfg, deps),
	}, nil
}

func openStore(cfg *config.Config) (record.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreSQLite:
		return record.NewSQLiteStore(cfg.Store.SQLitePath)
	case config.StoreMySQL:
		return record.NewMySQLStore(record.MySQLConfig{
			DSN:      cfg.Store.MySQL.DSN,
			Host:     cfg.Store.MySQL.Host,
			Port:     cfg.Store.MySQL.Port,
			User:     cfg.Store.MySQL.User,
			Password: cfg.Store.MySQL.Password,
			Database: cfg.Store.MySQL.Database,
		})
	case config.StoreMemory:
		return record.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildRunner applies schema changes through the store's database handle
// when the backend exposes one.
func buildRunner(store record.Store) migrate.Runner {
	if provider, ok := store.(interface{ DB() (*sql.DB, error) }); ok {
		if db, err := provider.DB(); err == nil {
			return migrate.NewSQLRunner(db)
		}
	}
	return migrate.NullRunner{}
}

func buildLocker(cfg *config.Config) (lock.Locker, error) {
	if cfg.Lock.ConsulAddr != "" {
		return lock.NewConsulLocker(cfg.Lock.ConsulAddr)
	}
	return lock.NewLocalLocker(), nil
}
