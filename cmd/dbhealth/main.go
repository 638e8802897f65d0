package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"docflow/internal/common"
	"docflow/internal/repository"
)

// dbhealth opens the configured store, applies the schema if needed, and
// pings it. Exit code 0 means the store is reachable and at the expected
// schema version.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg := common.LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		store *repository.Store
		err   error
	)
	if cfg.Database.DSN != "" {
		store, err = repository.OpenPostgres(ctx, cfg.Database, logger)
	} else {
		store, err = repository.OpenSQLite(ctx, cfg.Database.Path, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.HealthCheck(ctx, 3*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "ping store: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("store OK")
}
