package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/catering-orders/internal/domain/stats"
	"github.com/xenking/catering-orders/internal/storage/firestore"
	"github.com/xenking/catering-orders/internal/storage/mongo"
	"github.com/xenking/catering-orders/internal/storage/postgres"
)

type config struct {
	DatabaseURL string `usage:"PostgreSQL connection URL (or DATABASE_URL env)" flag:"database-url"`
	Backend     string `default:"mongo" usage:"Mirror backend: mongo or firestore" flag:"backend"`
	Concurrency int    `default:"16" usage:"Concurrent upserts" flag:"concurrency"`
	Mongo       mongo.Config
	Firestore   firestore.Config
}

type mirror interface {
	stats.Mirror
	Close(ctx context.Context) error
}

func main() {
	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	var cfg config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CATERING",
		SkipFiles: true,
	})
	if err := loader.Load(); err != nil {
		lg.Fatal("Load config", zap.Error(err))
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start := time.Now()
	n, err := run(ctx, lg, cfg)
	if err != nil {
		lg.Fatal("Mirror sync failed", zap.Error(err))
	}
	lg.Info("Mirror sync completed",
		zap.Int("orders", n),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func run(ctx context.Context, lg *zap.Logger, cfg config) (int, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return 0, errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	m, err := openMirror(ctx, cfg)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s mirror", cfg.Backend)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Close(closeCtx); err != nil {
			lg.Warn("Close mirror", zap.Error(err))
		}
	}()

	lg.Info("Syncing orders",
		zap.String("backend", cfg.Backend),
		zap.Int("concurrency", cfg.Concurrency),
	)
	return stats.Resync(ctx, postgres.NewStatsSource(pool), m, cfg.Concurrency)
}

func openMirror(ctx context.Context, cfg config) (mirror, error) {
	switch cfg.Backend {
	case "mongo":
		return mongo.Connect(ctx, cfg.Mongo)
	case "firestore":
		return firestore.New(ctx, cfg.Firestore)
	default:
		return nil, errors.Errorf("unknown backend %q", cfg.Backend)
	}
}
