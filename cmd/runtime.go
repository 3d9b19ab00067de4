package cmd

import (
	"fmt"

	"packsync/core/config"
	"packsync/core/database"
	"packsync/core/logger"
	"packsync/core/notify"
	"packsync/feature/packs/generator"
	"packsync/feature/packs/lock"
	"packsync/feature/packs/repository"
	"packsync/feature/possync"
	"packsync/feature/reconcile"

	"go.uber.org/zap"
)

// runtime bundles the wired application components every command needs.
type runtime struct {
	cfg    *config.Config
	log    *zap.Logger
	repo   *repository.Repository
	locks  *lock.Manager
	gen    *generator.Generator
	engine *possync.Engine
	events notify.Publisher
}

// newRuntime loads config and connects the database, then wires the pack
// repository, lock manager, generator and POS engine on top.
func newRuntime() (*runtime, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := repository.New(db)
	if err := repo.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	locks := lock.NewManager(repo, cfg.Sync.LockConfig(), l)
	gen := generator.New(cfg.Sync.GeneratorConfig())
	client := possync.NewHTTPClient(cfg.POS)
	engine := possync.NewEngine(repo, locks, client, cfg.POS, cfg.Sync.EngineOptions(), l)

	var events notify.Publisher = notify.NopPublisher{}
	if cfg.Notify.URL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.Notify, l)
		if err != nil {
			// Events are best-effort; a missing broker never blocks a run.
			l.Warn("event publisher unavailable", zap.Error(err))
		} else {
			events = pub
		}
	}

	return &runtime{
		cfg:    cfg,
		log:    l,
		repo:   repo,
		locks:  locks,
		gen:    gen,
		engine: engine,
		events: events,
	}, nil
}

// service builds the reconciliation orchestrator, optionally with the
// snapshot archive attached.
func (r *runtime) service(archive reconcile.Archiver) *reconcile.Service {
	return reconcile.NewService(r.repo, r.gen, r.engine, archive, r.events, r.log)
}

func (r *runtime) close() {
	_ = r.events.Close()
	_ = r.log.Sync()
}
