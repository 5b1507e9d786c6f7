package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"canvasConverter/worker/config"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.Env)
	defer logger.Sync()

	if err := newRootCmd(cfg, logger).Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newRootCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "worker",
		Short:        "Fit images onto a fixed-size canvas and bundle them into a zip",
		SilenceUsage: true,
	}

	root.AddCommand(newConvertCmd(cfg, logger), newEventsCmd(cfg, logger))
	return root
}
