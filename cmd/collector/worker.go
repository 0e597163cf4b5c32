package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"collector/internal/config"
	"collector/internal/worker"
	"collector/pkg/crypto"
	"collector/pkg/utils"
)

func workerCmd() *cobra.Command {
	var slot int

	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Serve collection jobs for one slot over stdin/stdout (started by run)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveWorker(slot)
		},
	}

	cmd.Flags().IntVar(&slot, "slot", 0, "Worker slot (index into TERMINAL_ENDPOINTS)")
	return cmd
}

// serveWorker обслуживает задания родителя до закрытия stdin
//
// Сигналы остановки игнорируются: их получает и вся группа процессов,
// а воркер должен дописать текущее задание. Родитель завершает воркер,
// закрывая stdin.
func serveWorker(slot int) error {
	signal.Ignore(syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stdout занят протоколом
	output := cfg.Logging.Output
	if output == "" || output == "stdout" {
		output = "stderr"
	}
	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: output,
	}).WithComponent("worker").With(utils.Int("pid", os.Getpid()))
	defer func() { _ = log.Sync() }()

	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return err
	}
	vault, err := crypto.NewVault(key)
	if err != nil {
		return err
	}

	c, closeSessions, err := newSlotCollector(cfg, slot, vault, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSessions(); err != nil {
			log.Warn("failed to close terminal session", utils.Err(err))
		}
	}()

	return worker.Serve(context.Background(), os.Stdin, os.Stdout, c, slot, log)
}
