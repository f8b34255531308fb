package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/speraxos/sweepguard/config"
	"github.com/speraxos/sweepguard/internal"
	"github.com/speraxos/sweepguard/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to the yaml config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg, err := config.Get(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %s", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := internal.NewApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("shutdown cleanup failed", zap.Error(err))
		}
	}()

	server := web.NewServer(&web.Handlers{
		Engine:  app.Engine,
		Prices:  app.Consensus,
		Lists:   app.Lists,
		Audit:   app.Audit,
		Logger:  logger.Named("web"),
		DevMode: cfg.DevMode,
	}, web.ServerConfig{
		Addr:    cfg.HTTPAddr,
		DevMode: cfg.DevMode,
		APIKey:  cfg.APIKey,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server stopped", zap.Error(err))
	}

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
