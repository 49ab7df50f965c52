package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/toolsmith-backend/config"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/analytics"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/bootstrap"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/bundle"
	deployservice "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/service"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/logging"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/sweeper"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: worker run|sweep")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.App.LogLevel, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logging.SetBase(logger)

	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	defer store.Close()

	var host bundle.Host
	if cfg.Deploy.BundleHost == "s3" {
		client, err := bundle.NewS3Client(ctx, &cfg.Deploy)
		if err != nil {
			logger.Fatal("s3 setup failed", zap.Error(err))
		}
		host = bundle.NewS3Host(client, cfg.Deploy.S3Bucket, cfg.Deploy.S3Prefix)
	} else {
		h, err := bundle.NewFSHost(cfg.Deploy.BundleDir)
		if err != nil {
			logger.Fatal("bundle dir setup failed", zap.Error(err))
		}
		host = h
	}

	deploy := deployservice.New(store, host, cfg.Deploy, analytics.NewLogWriter(logger))
	s := sweeper.NewScheduler(store, deploy, logger)

	switch os.Args[1] {
	case "sweep":
		s.RunOnce(ctx)
	case "run":
		if err := s.Start(cfg.Worker.SweepSchedule); err != nil {
			logger.Fatal("scheduler failed", zap.Error(err))
		}
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Stop(stopCtx)
	default:
		logger.Fatal("unknown command", zap.String("command", os.Args[1]))
	}
}
