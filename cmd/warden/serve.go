package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wiremeet-warden/internal/app"
	"github.com/vovakirdan/wiremeet-warden/internal/config"
	"github.com/vovakirdan/wiremeet-warden/internal/log"
)

var (
	flagAddr string
	flagDB   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the warden until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		bootLog := log.New("info")
		cfg, path, err := config.Load(bootLog, flagConfig)
		if err != nil {
			return err
		}
		cfg.UpdateFrom(config.Config{
			Addr:         flagAddr,
			DatabasePath: flagDB,
			LogLevel:     flagLogLevel,
		})

		logger := log.New(cfg.LogLevel)
		logger.Info().Str("config", path).Msg("configuration loaded")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(&cfg, logger)
		if err != nil {
			return err
		}

		if err := application.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("warden exited with error")
			return err
		}
		logger.Info().Msg("warden stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address override")
	serveCmd.Flags().StringVar(&flagDB, "db", "", "sqlite database path override")
	rootCmd.AddCommand(serveCmd)
}
