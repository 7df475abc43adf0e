package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lawmate/billpipe/pkg/config"
	appLogger "github.com/lawmate/billpipe/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "billpipe",
	Short: "Ingest and enrich National Assembly bills",
	Long: `billpipe fetches bills from the National Assembly open API, enriches new
bills with a summary, impact analysis, glossary and embedding, and stores
them alongside the legislator directory and per-bill status links.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./config.yaml)")
}

// loadConfig reads configuration and starts the logger. Every command calls
// it first.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

func main() {
	defer appLogger.Sync()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
