package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/config"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
)

func main() {
	log := logger.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	configured, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("configure logger")
	}
	log = configured

	log.Info().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Str("worker_mode", cfg.WorkerMode).
		Msg("starting thought engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := CreateApplication(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create application")
	}

	if err := application.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}
	log.Info().Msg("shutdown complete")
}
