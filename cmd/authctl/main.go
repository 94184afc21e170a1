package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Housri/steam-auth-public/internal/config"
	"github.com/Housri/steam-auth-public/internal/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "authctl",
		Short: "Operator tooling for the steam auth service",
		Long: `authctl manages the local user store behind the login service.

It reads the same environment as the server (DATABASE_DRIVER,
DATABASE_DSN, REDIS_ADDR, SESSION_SECRET, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		migrateCmd(),
		usersCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and checks only the storage settings.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	logger.Init(cfg.LogLevel, "console")
	if err := cfg.ValidateStore(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
