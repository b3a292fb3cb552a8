package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	var cfg *config.Config
	root := &cobra.Command{
		Use:           "identity-api",
		Short:         "Identity and verification token service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			cfg = config.Load()
			setupLogger(cfg.LogLevel)
		},
		RunE: func(cmd *cobra.Command, _ []string) error { return serve(cmd.Context(), cfg) },
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the periodic cleanup",
			RunE:  func(cmd *cobra.Command, _ []string) error { return serve(cmd.Context(), cfg) },
		},
		&cobra.Command{
			Use:   "bootstrap",
			Short: "Create the DynamoDB tables if they don't exist",
			RunE:  func(cmd *cobra.Command, _ []string) error { return bootstrap(cmd.Context(), cfg) },
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Run one cleanup pass and exit",
			RunE:  func(cmd *cobra.Command, _ []string) error { return cleanupOnce(cmd.Context(), cfg) },
		},
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
