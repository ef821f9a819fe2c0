package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"CashBreakout/internal/di"
	"CashBreakout/pkg/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "cashbreakout",
		Short:         "Intraday breakout trading engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")

	root.AddCommand(
		newDataFeedCmd(),
		newEngineCmd(),
		newFetchLevelsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckCredentials(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newDataFeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datafeed",
		Short: "Stream broker quotes and build the 1-minute candle stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := di.InitializeDataFeedApp(cfg)
			if err != nil {
				return fmt.Errorf("datafeed init: %w", err)
			}
			return app.Run()
		},
	}
}

func newEngineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engine",
		Short: "Run the breakout detection and trade management loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := di.InitializeEngineApp(cfg)
			if err != nil {
				return fmt.Errorf("engine init: %w", err)
			}
			return app.Run()
		},
	}
}

func newFetchLevelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetchlevels",
		Short: "Refresh previous-day high/low levels for the universe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			job, err := di.InitializeLevelsJob(cfg)
			if err != nil {
				return fmt.Errorf("fetchlevels init: %w", err)
			}
			return job.Run()
		},
	}
}
