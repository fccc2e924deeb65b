package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/NicolasHaas/chatd/pkg/logging"
	"github.com/NicolasHaas/chatd/pkg/server"
	"github.com/NicolasHaas/chatd/pkg/store"
)

// loadConfig resolves the server config from .env.local, the config file,
// CHATD_* variables and finally the flags the user set explicitly, then
// installs the logger.
func loadConfig(cmd *cobra.Command) (server.Config, error) {
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return server.Config{}, fmt.Errorf("load .env.local: %w", err)
	}

	cfg, _, err := server.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = dbPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}

	if err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	}); err != nil {
		return cfg, fmt.Errorf("invalid logging config: %w", err)
	}
	return cfg, nil
}

// openStore loads the config and opens the user database it names.
func openStore(cmd *cobra.Command) (server.Config, *store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, err
	}
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, st, nil
}
