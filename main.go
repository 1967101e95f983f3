package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"portwarden/api"
	"portwarden/cli"
	"portwarden/config"
	"portwarden/logging"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		os.Exit(serve())
	}
	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
}

func serve() int {
	cfg, err := config.Load()
	if err != nil {
		logging.Logger().Error("failed to load configuration", "error", err)
		return 1
	}
	logger := logging.Configure(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.Run(ctx, cfg, logger); err != nil {
		logger.Error("api server stopped", "error", err)
		return 1
	}
	return 0
}
