package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-media/internal/logging"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "mediactl",
		Short: "Simple Media CLI - ingest and catalog management",
		Long: `Simple Media Command Line Interface

Runs the media service in-process against the catalog and media root
configured by the environment (DATABASE_URL, MEDIA_ROOT, STORAGE_URL,
FFMPEG_PATH, ...). With the default in-memory catalog nothing outlives
the command, so point DATABASE_URL at Postgres for real use.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logging.Init(logging.Config{Level: level, Format: "text", Writer: os.Stderr})
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewIngestCommand())
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewGetCommand())
	rootCmd.AddCommand(NewCategoriesCommand())
	rootCmd.AddCommand(NewDeleteCommand())
	rootCmd.AddCommand(NewStatsCommand())

	return rootCmd
}

// withRuntime builds the service from the environment, runs fn and waits
// for any ingest still resolving.
func withRuntime(ctx context.Context, fn func(rt *config.Runtime) error) error {
	cfg, err := config.Load(config.WithEnv(""), config.WithMetrics(false))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Preflight(ctx); err != nil {
		return err
	}
	rt, err := cfg.Build(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}

	runErr := fn(rt)

	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := rt.Close(closeCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close service: %w", err)
	}
	return runErr
}
