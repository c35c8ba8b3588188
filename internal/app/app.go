// Package app wires configuration into the storage, cache, event and
// service components shared by the server and scheduler binaries.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/loan-ledger/internal/cache"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/events"
	"github.com/segyhp/loan-ledger/internal/metrics"
	"github.com/segyhp/loan-ledger/internal/repository"
	"github.com/segyhp/loan-ledger/internal/service"
)

// App holds the long-lived components of a running process.
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	DB        *sqlx.DB
	Store     *repository.SQLStore
	Redis     redis.UniversalClient
	Publisher events.Publisher
	Metrics   *metrics.Recorder
	Ledger    *service.LedgerService
}

// New connects every configured backend. On error, anything already opened
// is closed.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	db, err := initDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	a.DB = db

	if cfg.Database.AutoMigrate {
		if err := repository.RunMigrations(cfg.Database.MigrationURL(), cfg.Database.MigrationSource()); err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.WithField("source", cfg.Database.MigrationSource()).Info("Migrations applied")
	}
	a.Store = repository.NewSQLStore(db)

	var ledgerCache cache.Cache = cache.Noop{}
	if cfg.Redis.Enabled {
		a.Redis = initRedis(cfg.Redis)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			// Reads fall through to the database while Redis is down.
			logger.WithError(err).Warn("Redis not reachable at startup")
		}
		ledgerCache = cache.NewRedisCache(a.Redis)
	}

	if cfg.Kafka.Enabled {
		a.Publisher = events.NewKafkaPublisher(events.Config{
			Brokers:      cfg.Kafka.BrokerList(),
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		})
	} else {
		a.Publisher = events.NewLogPublisher(logger)
	}

	a.Ledger = service.NewLedgerService(service.Dependencies{
		Store:     a.Store,
		Cache:     ledgerCache,
		Publisher: a.Publisher,
		Metrics:   a.Metrics,
		Logger:    logger,
		Config:    cfg.Business,
	})

	logger.WithFields(logrus.Fields{
		"driver": cfg.Database.Driver,
		"redis":  cfg.Redis.Enabled,
		"kafka":  cfg.Kafka.Enabled,
	}).Info("Application components initialized")

	return a, nil
}

// Close releases every opened backend.
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.WithError(err).Warn("Closing event publisher")
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.WithError(err).Warn("Closing redis client")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.WithError(err).Warn("Closing database")
		}
	}
}

func initDB(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
