// Command miner is a stub long-running process representing the external
// miner role: it logs the configured subnet at startup, periodically reports
// liveness, and exits cleanly on SIGINT/SIGTERM. It makes no chain calls and
// performs no on-chain registration. The reward pipeline lives entirely in
// cmd/validator; this process has none of its own.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/YouWishh/oceans-subnet/internal/config"
	"github.com/YouWishh/oceans-subnet/internal/obslog"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "miner",
		Short: "run a liveness-only miner stub against the configured subnet",
		RunE:  runMiner,
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMiner(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lg := obslog.New(cfg.LogLevel, cfg.JSONLogs)
	log := obslog.Component(lg, "miner")
	log.WithField("subnet", cfg.DefaultNetUID).Info("miner registered, entering liveness loop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("miner received stop signal, exiting")
			return nil
		case <-ticker.C:
			log.WithField("subnet", cfg.DefaultNetUID).Info("miner alive")
		}
	}
}
