package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"rollupd/internal/buildinfo"
	"rollupd/internal/config"
	"rollupd/internal/node"
)

func newRunCmd() *cobra.Command {
	var configPath string
	defaults := config.DefaultConfig()
	v := viper.New()

	c := &cobra.Command{
		Use:   "run",
		Short: "start the operator",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, v)
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger()
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			// os.Interrupt for all systems, syscall.SIGTERM for containers.
			ctx, cancel := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger.Info("starting rollupd",
				zap.String("version", buildinfo.Version),
				zap.String("commit", buildinfo.Commit),
				zap.String("data_dir", cfg.DataDir),
			)
			n, err := node.New(ctx, cfg, node.WithLogger(logger))
			if err != nil {
				return err
			}
			defer n.Close()
			if err := n.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			logger.Info("rollupd stopped", zap.Stringer("sync_point", n.SyncPoint()))
			return nil
		},
	}

	flags := c.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "load configuration from file (toml, yaml or json)")
	flags.String("data-dir", defaults.DataDir, "directory for the ledger and keys")
	flags.String("listen", defaults.Listen, "address of the HTTP API")
	flags.String("log-level", defaults.LogLevel, "log level")
	flags.String("log-encoder", defaults.LogEncoder, "log encoder: json or console")
	flags.Duration("idle-delay", defaults.Packer.IdleDelay, "wait between polls of an empty pool")
	flags.String("settlement-endpoint", defaults.Settlement.Endpoint, "ethereum JSON-RPC endpoint, empty settles locally")
	for key, flag := range map[string]string{
		"data-dir":            "data-dir",
		"listen":              "listen",
		"log-level":           "log-level",
		"log-encoder":         "log-encoder",
		"packer.idle-delay":   "idle-delay",
		"settlement.endpoint": "settlement-endpoint",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	return c
}
