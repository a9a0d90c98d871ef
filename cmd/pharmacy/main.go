package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skotchmaster/pharmacy/internal/app"
	"github.com/Skotchmaster/pharmacy/internal/config"
	"github.com/Skotchmaster/pharmacy/pkg/logging"
)

func main() {
	envErr := config.LoadDotEnv(os.Getenv("ENV_FILE"))
	cfg := config.Load()

	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	if envErr != nil {
		log.Warn("dotenv_skipped", "error", envErr)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 40*time.Second)
	a, err := app.Build(logging.IntoContext(initCtx, log), cfg, log)
	cancel()
	if err != nil {
		log.Error("startup_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Serve(ctx, log); err != nil {
		log.Error("server_stopped", "error", err)
	}
	if err := a.Close(); err != nil {
		log.Error("close_failed", "error", err)
	}
	log.Info("shutdown_complete")
}
