// collector - сборщик торгового состояния MT5-счетов
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"collector/internal/config"
	"collector/pkg/utils"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "collector",
		Short: "Periodic trading state collector for MT5 accounts",
		Long: `collector periodically logs into every registered trading account
through a pool of terminals, reads balance, equity, open positions and
realized P/L, and stores the live state and a snapshot history in PostgreSQL.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("collector version %s\n", version)
		},
	}
}

// loadConfig загружает конфигурацию и поднимает глобальный логгер
func loadConfig() (*config.Config, *utils.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	return cfg, log, nil
}
