package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/timmy/memebot/internal/app"
	"github.com/timmy/memebot/internal/config"
	"github.com/timmy/memebot/internal/logger"
)

var (
	configPath string
	cfg        *config.Config
	log        *logger.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "memectl",
		Short:         "Operate the meme engine from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "config file path (default: ./configs/config.yaml)")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(pruneCmd())
	rootCmd.AddCommand(lockCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(migrateCmd())

	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	log = logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(log)

	var err error
	cfg, err = config.Load(configPath)
	return err
}

// withApp wires the engine for the duration of fn.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
