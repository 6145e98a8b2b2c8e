package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/eightstore/commerce/internal/catalog"
	"github.com/eightstore/commerce/internal/config"
	"github.com/eightstore/commerce/internal/fulfillment"
	kafkax "github.com/eightstore/commerce/internal/kafka"
	"github.com/eightstore/commerce/internal/order"
	"github.com/eightstore/commerce/internal/postgres"
	"github.com/eightstore/commerce/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	name := cfg.ServiceName + "-fulfillment"
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", name).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, order.TopicStatusChanged, 1024, log)
	pStatus.Start()

	orderService := &order.Service{
		Catalog: &catalog.PGStore{DB: db},
		Store:   &order.PGStore{DB: db},
		Events:  &order.Emitter{Service: name, StatusChanged: pStatus},
	}
	svc := &fulfillment.Service{
		Orders: orderService,
		Redis:  rdb,
		Name:   name,
		Log:    log,
	}

	group := getenv("FULFILLMENT_GROUP", "fulfillment-svc")
	workers := mustAtoi(os.Getenv("FULFILLMENT_WORKERS"), 8)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, order.TopicOrderCreated, workers, log)

	go func() {
		log.Info().Str("group", group).Int("workers", workers).Msg("fulfillment consumer started")
		if err := cons.Start(ctx, svc.HandleOrderCreated); err != nil {
			log.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	pStatus.Close()
	pStatus.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
