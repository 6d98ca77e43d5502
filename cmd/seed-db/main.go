package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/catering-orders/db"
	"github.com/xenking/catering-orders/internal/domain/auth"
	"github.com/xenking/catering-orders/internal/handler"
	"github.com/xenking/catering-orders/internal/storage/postgres"
)

type config struct {
	DatabaseURL string        `usage:"PostgreSQL connection URL (or DATABASE_URL env)" flag:"database-url"`
	CatalogFile string        `default:"" usage:"Catalog JSON file, optionally gzip-compressed; embedded catalog when empty" flag:"catalog-file"`
	JWTSecret   string        `usage:"Secret used to sign development tokens; none printed when empty" flag:"jwt-secret"`
	TokenTTL    time.Duration `default:"720h" usage:"Lifetime of development tokens" flag:"token-ttl"`
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

	if err := run(ctx, lg, cfg); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, cfg config) error {
	data, err := readCatalog(lg, cfg.CatalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}
	catalog, err := postgres.ParseCatalog(data)
	if err != nil {
		return errors.Wrap(err, "parse catalog")
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	if err := postgres.SeedCatalog(ctx, pool, catalog); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	for _, m := range catalog.Menus {
		lg.Info("Upserted menu",
			zap.Int64("id", m.ID),
			zap.String("title", m.Title),
			zap.String("price_per_person", m.PricePerPerson.StringFixed(2)),
			zap.Int("stock", m.RemainingStock),
		)
	}

	now := time.Now()
	for _, c := range catalog.Customers {
		lg.Info("Upserted customer",
			zap.Int64("id", c.ID),
			zap.String("email", c.Email),
			zap.String("role", string(c.Role)),
		)
		if cfg.JWTSecret == "" {
			continue
		}
		token, err := handler.Sign([]byte(cfg.JWTSecret), auth.Principal{UserID: c.ID, Role: c.Role}, cfg.TokenTTL, now)
		if err != nil {
			return errors.Wrapf(err, "sign token for %s", c.Email)
		}
		fmt.Printf("%s\t%s\t%s\n", c.Email, c.Role, token)
	}
	return nil
}

// readCatalog reads path, transparently decompressing .gz files. An empty
// path selects the embedded default catalog.
func readCatalog(lg *zap.Logger, path string) ([]byte, error) {
	if path == "" {
		lg.Info("Using embedded catalog")
		return db.DefaultCatalog, nil
	}
	lg.Info("Reading catalog file", zap.String("path", path))

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return raw, nil
	}
	zr, err := pgzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "open gzip")
	}
	defer func() { _ = zr.Close() }()
	return io.ReadAll(zr)
}
