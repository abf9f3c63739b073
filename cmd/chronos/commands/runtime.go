package commands

import (
	"fmt"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/internal/orchestrator"
	"github.com/wonny/chronos/internal/provider"
	"github.com/wonny/chronos/internal/replay"
	"github.com/wonny/chronos/internal/signal"
	"github.com/wonny/chronos/internal/store"
	"github.com/wonny/chronos/pkg/config"
	"github.com/wonny/chronos/pkg/database"
	"github.com/wonny/chronos/pkg/logger"
	"github.com/wonny/chronos/pkg/redis"
)

// runtime holds the wired application components shared by commands.
type runtime struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client

	taskRepo   *store.TaskRepository
	resultRepo *store.ResultRepository
	factorRepo *store.FactorRepository
	priceRepo  *store.PriceRepository

	orch *orchestrator.Orchestrator
}

// newRuntime loads config and wires the full pipeline: stores, the
// composite provider, the replayer with its cache, the generator, and
// the orchestrator.
func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	taskRepo := store.NewTaskRepository(db.Pool)
	resultRepo := store.NewResultRepository(db.Pool)
	factorRepo := store.NewFactorRepository(db.Pool)
	priceRepo := store.NewPriceRepository(db.Pool)

	var remote provider.RemoteSource
	if cfg.Provider.RemoteEnabled {
		remote = provider.NewEastmoneyClient(cfg.Provider, log)
	}
	composite := provider.NewComposite(priceRepo, remote, priceRepo, log)

	var cache contracts.SnapshotCache
	if redisClient.Enabled() {
		cache = replay.NewRedisCache(redis.NewCache(redisClient, "snapshot"))
		log.Info("Using Redis snapshot cache")
	}

	replayer := replay.New(composite, factorRepo, cache, cfg.Provider.Exchange, log)
	generator := signal.NewGenerator(signal.ThresholdsFromConfig(cfg.Signal), log)

	orch := orchestrator.New(taskRepo, factorRepo, replayer, generator, cfg.Simulator, cfg.Orchestrator, log)

	return &runtime{
		cfg:        cfg,
		log:        log,
		db:         db,
		redis:      redisClient,
		taskRepo:   taskRepo,
		resultRepo: resultRepo,
		factorRepo: factorRepo,
		priceRepo:  priceRepo,
		orch:       orch,
	}, nil
}

// close releases the runtime's connections.
func (rt *runtime) close() {
	if rt.redis != nil {
		rt.redis.Close()
	}
	if rt.db != nil {
		rt.db.Close()
	}
}
