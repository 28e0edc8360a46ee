package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingston-caremap/caremap/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "caremap",
	Short: "Kingston community resource directory",
	Long:  "Ingests civic open-data feeds, partner spreadsheets, and commercial listings into a searchable directory of food, shelter, and support services, and serves proximity queries over it.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
