// Command dbtool applies the SQL migrations to DATABASE_URL and optionally
// loads a YAML seed of users, sites, reports and route configuration.
//
//	dbtool                   migrate only
//	dbtool -seed db/seed.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"siteplan/internal/config"
	"siteplan/internal/logging"
	"siteplan/internal/store"
)

func main() {
	seedPath := flag.String("seed", "", "YAML seed file to load after migrating")
	flag.Parse()

	if err := run(*seedPath); err != nil {
		fmt.Fprintf(os.Stderr, "dbtool: %v\n", err)
		os.Exit(1)
	}
}

func run(seedPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}
	log, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = pg.Close() }()

	log.Info("applying migrations", zap.String("dir", cfg.MigrationsDir))
	if err := pg.MigrateDir(ctx, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if seedPath == "" {
		log.Info("schema ready")
		return nil
	}
	seed, err := store.LoadSeed(ctx, pg, seedPath)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	log.Info("seeding complete",
		zap.String("file", seedPath),
		zap.Int("users", len(seed.Users)),
		zap.Int("sites", len(seed.Sites)),
		zap.Int("reports", len(seed.Reports)),
		zap.Bool("routeConfig", seed.RouteConfig != nil),
	)
	return nil
}
