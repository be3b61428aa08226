package main

import (
	"context"
	"fmt"
	"os"

	"github.com/perabook/perabook/internal/config"
	"github.com/perabook/perabook/internal/extract"
	"github.com/perabook/perabook/internal/parser"
	"github.com/perabook/perabook/internal/storage"
	"github.com/spf13/viper"
)

// initStorage opens the configured database and brings the schema up
// to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	} else {
		dbPath = config.ExpandPath(dbPath)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initEngine wires storage and the parser registry into an extraction
// engine using the configured document directory.
func initEngine(store *storage.SQLiteStorage) *extract.Engine {
	dataDir := viper.GetString("storage.data_dir")
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	} else {
		dataDir = config.ExpandPath(dataDir)
	}

	return extract.New(store, parser.NewRegistry(), extract.Config{
		DataDir:     dataDir,
		MaxFileSize: viper.GetInt64("upload.max_bytes"),
	})
}

// currentUser resolves the acting identity: --user flag or user.id from
// config, falling back to the OS login name.
func currentUser() (string, error) {
	if id := viper.GetString("user.id"); id != "" {
		return id, nil
	}
	if id := os.Getenv("USER"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no user identity; set --user or user.id in config")
}
