package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-clothing-orders/internal/config"
	"github.com/ariefcatur/go-clothing-orders/internal/events"
	kafkax "github.com/ariefcatur/go-clothing-orders/internal/kafka"
	"github.com/ariefcatur/go-clothing-orders/internal/logx"
	"github.com/ariefcatur/go-clothing-orders/internal/projector"
	"github.com/ariefcatur/go-clothing-orders/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogFormat).With("component", "projector")
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("projector exit", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		return err
	}

	svc := &projector.Service{Redis: rdb, Name: cfg.ProjectorGroup, Log: log}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, events.Topics, cfg.ProjectorWorkers, log)

	log.Info("consumer started", "group", cfg.ProjectorGroup, "topics", events.Topics, "workers", cfg.ProjectorWorkers)
	err := cons.Start(ctx, svc.HandleMessage)
	log.Info("consumer stopped")
	return err
}
