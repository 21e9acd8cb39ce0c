package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/app"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/config"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/obs"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ecommerce-stream-simulator",
		Short:         "Synthetic e-commerce order stream with live dashboard statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Seed the store, start the generator and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Seed an empty store with the product catalog and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context())
		},
	})
	return root
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	obs.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func runSeed(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := app.OpenBackend(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() { _ = b.Close(context.Background()) }()
	n, err := app.SeedBackend(ctx, cfg, b)
	if err != nil {
		return err
	}
	obs.Logger.Info("seed_complete", "inserted", n, "driver", cfg.StoreDriver)
	return nil
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	obs.Logger.Info("service_starting", "driver", cfg.StoreDriver, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := app.OpenBackend(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	if _, err := app.SeedBackend(ctx, cfg, b); err != nil {
		_ = b.Close(context.Background())
		return err
	}

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = b.Close(context.Background())
		return errors.Wrapf(err, "listen %s", cfg.HTTPAddr)
	}
	return app.New(cfg, b).Run(ctx, ln)
}
