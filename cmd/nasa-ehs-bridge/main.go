// Command nasa-ehs-bridge bridges a Samsung EHS heat pump's NASA bus to
// MQTT, polling configured point groups and publishing decoded values
// (with optional Home Assistant discovery). Grounded on
// cmd/modbus-poller/main.go's shape, rebuilt around github.com/spf13/cobra
// for the ambient CLI layer rather than the teacher's stdlib flag package.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hpbridge/nasa-ehs-bridge/internal/config"
	"github.com/hpbridge/nasa-ehs-bridge/internal/logx"
	"github.com/hpbridge/nasa-ehs-bridge/internal/repository"
	"github.com/hpbridge/nasa-ehs-bridge/internal/supervisor"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile        string
		dumpFile          string
		dryRun            bool
		cleanKnownDevices bool
		verbose           bool
	)

	cmd := &cobra.Command{
		Use:   "nasa-ehs-bridge",
		Short: "Bridge a Samsung EHS heat pump's NASA bus to MQTT",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configFile, dumpFile, dryRun, cleanKnownDevices, verbose)
		},
	}

	cmd.Flags().StringVar(&configFile, "configfile", "", "path to the bridge's YAML configuration file (required)")
	cmd.Flags().StringVar(&dumpFile, "dumpfile", "", "capture reassembled frames to this file, or (with --dryrun) replay frames from it")
	cmd.Flags().BoolVar(&dryRun, "dryrun", false, "replay --dumpfile through decoding instead of opening a real transport")
	cmd.Flags().BoolVar(&cleanKnownDevices, "clean-known-devices", false, "clear Home Assistant known-devices state on startup, forcing rediscovery")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
	_ = cmd.MarkFlagRequired("configfile")

	return cmd
}

func run(ctx context.Context, configFile, dumpFile string, dryRun, cleanKnownDevices, verbose bool) error {
	logger, err := logx.New(verbose)
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}
	defer logger.Sync()

	if dryRun && dumpFile == "" {
		return fmt.Errorf("--dryrun requires --dumpfile")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	repo, err := repository.Load(cfg.General.NasaRepositoryFile)
	if err != nil {
		return err
	}
	if err := cfg.ValidateAgainstRepository(repo); err != nil {
		return err
	}

	sup := supervisor.New(logger, cfg, repo, supervisor.Options{
		DryRun:            dryRun,
		DumpFile:          dumpFile,
		CleanKnownDevices: cleanKnownDevices,
	})

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	if err := sup.Run(runCtx); err != nil {
		logger.Error("bridge exited with error", zap.Error(err))
		return err
	}
	logger.Info("bridge shut down cleanly")
	return nil
}
