package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fantasy-auction/internal/config"
	"github.com/riskibarqy/fantasy-auction/internal/domain/market"
	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	"github.com/riskibarqy/fantasy-auction/internal/domain/roster"
	"github.com/riskibarqy/fantasy-auction/internal/infrastructure/account/introspect"
	"github.com/riskibarqy/fantasy-auction/internal/infrastructure/jobqueue"
	"github.com/riskibarqy/fantasy-auction/internal/infrastructure/notify"
	"github.com/riskibarqy/fantasy-auction/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/fantasy-auction/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fantasy-auction/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/fantasy-auction/internal/interfaces/httpapi"
	basecache "github.com/riskibarqy/fantasy-auction/internal/platform/cache"
	idgen "github.com/riskibarqy/fantasy-auction/internal/platform/id"
	"github.com/riskibarqy/fantasy-auction/internal/platform/keylock"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
	"github.com/riskibarqy/fantasy-auction/internal/platform/resilience"
	"github.com/riskibarqy/fantasy-auction/internal/usecase"
	"github.com/sourcegraph/conc"
)

// App owns the HTTP server together with the background work that shares
// its auction engine.
type App struct {
	Server *http.Server

	cfg       config.Config
	logger    *logging.Logger
	db        *sqlx.DB
	registry  *usecase.AuctionRegistry
	scheduler *expiryScheduler

	cancel context.CancelFunc
	wg     conc.WaitGroup
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	store, db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	requirements := roster.DefaultRequirements()
	locker := keylock.New()
	registry := usecase.NewAuctionRegistry(store, logger.Named("registry"))

	engine := usecase.NewAuctionService(
		store,
		registry,
		locker,
		idgen.NewUUIDGenerator(),
		usecase.AuctionServiceConfig{
			Duration:    cfg.AuctionDuration,
			LockTimeout: cfg.AuctionLockTimeout,
			Retry: resilience.RetryPolicy{
				Attempts:        cfg.AuctionConflictRetries,
				InitialInterval: cfg.AuctionRetryInitialInterval,
				MaxInterval:     20 * cfg.AuctionRetryInitialInterval,
			},
			Requirements: requirements,
		},
		logger.Named("auction"),
	)
	sweeper := usecase.NewExpirySweeper(store, engine, cfg.ExpirySweepWorkers, logger.Named("sweeper"))

	var (
		players     player.Repository
		invalidator usecase.CatalogueInvalidator
	)
	if cfg.CacheEnabled {
		cached := cache.NewPlayerRepository(store.Repositories().Players, basecache.NewStore(cfg.CacheTTL))
		players, invalidator = cached, cached
	}
	catalogue := usecase.NewCatalogueService(store, players, invalidator, locker, requirements, logger.Named("catalogue"))
	teams := usecase.NewTeamService(store, locker, requirements, logger.Named("teams"))

	if cfg.BootstrapAdminID != "" {
		if err := teams.EnsureAdmin(ctx, cfg.BootstrapAdminID, cfg.BootstrapAdminEmail); err != nil {
			closeDB(db, logger)
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	verifier := introspect.NewClient(
		&http.Client{Timeout: cfg.AccountTimeout},
		introspect.Config{
			BaseURL:        cfg.AccountBaseURL,
			IntrospectPath: cfg.AccountIntrospectPath,
			AdminKey:       cfg.AccountAdminKey,
			CacheTTL:       cfg.AccountTokenCacheTTL,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.AccountCircuitEnabled,
				FailureThreshold: cfg.AccountCircuitFailureCount,
				OpenTimeout:      cfg.AccountCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.AccountCircuitHalfOpenMaxReq,
			},
		},
		logger.Named("account"),
	)

	handler := httpapi.NewHandler(engine, registry, sweeper, catalogue, teams, logger)
	router := httpapi.NewRouter(handler, verifier, logger, httpapi.RouterConfig{
		SwaggerEnabled:     cfg.SwaggerEnabled,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		InternalJobToken:   cfg.InternalJobToken,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		closeDB(db, logger)
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	a := &App{
		Server:   server,
		cfg:      cfg,
		logger:   logger,
		db:       db,
		registry: registry,
	}
	if cfg.ExpirySweepEnabled {
		a.scheduler = newExpiryScheduler(sweeper, cfg.ExpirySweepInterval, logger.Named("scheduler"))
	}

	return a, nil
}

// Start launches the background workers. They stop when ctx is cancelled
// or Close is called.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	if a.scheduler != nil {
		a.wg.Go(func() { a.scheduler.Run(ctx) })
	}

	if a.cfg.RedisEnabled {
		client := notify.NewRedisClient(notify.RedisConfig{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
			Channel:  a.cfg.RedisChannel,
		})
		relay := notify.NewRedisPublisher(client, a.cfg.RedisChannel, resilience.DefaultCircuitBreakerConfig(), a.logger.Named("redis"))
		sub := a.registry.Subscribe()
		a.wg.Go(func() {
			defer func() {
				sub.Close()
				if err := client.Close(); err != nil {
					a.logger.Warn("close redis client failed", "error", err)
				}
			}()
			a.logger.Info("redis event relay started", "addr", a.cfg.RedisAddr, "channel", a.cfg.RedisChannel)
			relay.Run(ctx, sub.C())
		})
	}

	if a.cfg.QStashEnabled {
		queue := jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
			BaseURL:          a.cfg.QStashBaseURL,
			Token:            a.cfg.QStashToken,
			TargetBaseURL:    a.cfg.QStashTargetBaseURL,
			Retries:          a.cfg.QStashRetries,
			InternalJobToken: a.cfg.InternalJobToken,
			Timeout:          a.cfg.QStashTimeout,
			CircuitBreaker:   resilience.DefaultCircuitBreakerConfig(),
		}, a.logger.Named("qstash"))
		dispatcher := jobqueue.NewSettlementDispatcher(queue, a.logger.Named("settlement"))
		sub := a.registry.Subscribe()
		a.wg.Go(func() {
			defer sub.Close()
			a.logger.Info("settlement dispatcher started", "target", a.cfg.QStashTargetBaseURL)
			dispatcher.Run(ctx, sub.C())
		})
	}
}

// Close stops the background workers and releases the database pool. Call
// it after the HTTP server has shut down.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *logging.Logger) (market.Store, *sqlx.DB, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		db, err := postgres.Open(ctx, postgres.OpenConfig{
			DSN:                   cfg.DBURL,
			DisablePreparedBinary: cfg.DBDisablePreparedBinary,
			MaxOpenConns:          cfg.DBMaxOpenConns,
		})
		if err != nil {
			return nil, nil, err
		}
		if cfg.AppEnv == config.EnvDev {
			if err := postgres.BootstrapSeed(ctx, db); err != nil {
				closeDB(db, logger)
				return nil, nil, err
			}
		}
		logger.Info("storage ready", "driver", cfg.StorageDriver, "db_name", postgres.DatabaseName(cfg.DBURL))
		return postgres.NewStore(db), db, nil
	case config.StorageMemory, "":
		store, err := memory.NewStore(memory.SeedDataset())
		if err != nil {
			return nil, nil, fmt.Errorf("build memory store: %w", err)
		}
		logger.Info("storage ready", "driver", config.StorageMemory)
		return store, nil, nil
	default:
		return nil, nil, errors.New("unsupported storage driver " + cfg.StorageDriver)
	}
}

func closeDB(db *sqlx.DB, logger *logging.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Warn("close database failed", "error", err)
	}
}
