package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"investment-core/config"
	pgStorage "investment-core/internal/adapter/storage/postgres"
	"investment-core/pkg/logger"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo|reset")
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty, "migrate")
	log.Info().Str("cmd", *cmd).Str("database", cfg.Database.DBName).Msg("migrate ready")

	if err := pgStorage.Migrate(context.Background(), cfg.Database.DSN(), *cmd, flag.Args()...); err != nil {
		fmt.Fprintf(os.Stderr, "goose %s failed: %v\n", *cmd, err)
		os.Exit(1)
	}
}
