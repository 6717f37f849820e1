package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rental-agent/internal/config"
	kafkax "rental-agent/internal/kafka"
	"rental-agent/internal/logging"
	"rental-agent/internal/notifier"
	"rental-agent/internal/orders"
	"rental-agent/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.NewSugaredLogger(cfg.ServiceName + "-notifier")
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notifier.Service{
		Redis:       rdb,
		Logger:      log,
		ServiceName: cfg.ServiceName + "-notifier",
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicOrderEvents, cfg.NotifierWorkers, log)

	go func() {
		log.Infow("notifier_started", "group", cfg.NotifierGroup,
			"topic", orders.TopicOrderEvents, "workers", cfg.NotifierWorkers)
		if err := cons.Start(ctx, svc.HandleEvent); err != nil {
			log.Errorw("consumer_exit", "err", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Infow("shutting_down")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
