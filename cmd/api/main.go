package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/eightstore/commerce/internal/cart"
	"github.com/eightstore/commerce/internal/catalog"
	"github.com/eightstore/commerce/internal/config"
	"github.com/eightstore/commerce/internal/httpx"
	kafkax "github.com/eightstore/commerce/internal/kafka"
	"github.com/eightstore/commerce/internal/order"
	"github.com/eightstore/commerce/internal/postgres"
	"github.com/eightstore/commerce/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()
	httpx.Development = cfg.Development()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per lifecycle topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, order.TopicOrderCreated, 1024, log)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, order.TopicOrderCancelled, 1024, log)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, order.TopicStatusChanged, 1024, log)
	pCreated.Start()
	pCancelled.Start()
	pStatus.Start()

	// Stores & engines
	catalogStore := &catalog.PGStore{DB: db}
	cartStore := &cart.PGStore{DB: db, TTL: cfg.CartTTL}
	cartEngine := &cart.Engine{Catalog: catalogStore, Store: cartStore}
	orderService := &order.Service{
		Catalog: catalogStore,
		Store:   &order.PGStore{DB: db},
		Events: &order.Emitter{
			Service:       cfg.ServiceName,
			Created:       pCreated,
			Cancelled:     pCancelled,
			StatusChanged: pStatus,
		},
	}

	// Background cart expiry sweep
	sweeper := &cart.Sweeper{Store: cartStore, Interval: cfg.SweepInterval, Log: log}
	go sweeper.Run(ctx)

	// HTTP
	router := httpx.NewRouter()
	(&httpx.ProductsHandler{Catalog: catalogStore}).Register(router)
	(&httpx.CartHandler{Engine: cartEngine}).Register(router)
	(&httpx.OrdersHandler{Service: orderService, Redis: rdb}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()

	for _, p := range []*kafkax.Producer{pCreated, pCancelled, pStatus} {
		p.Close()
	}
	for _, p := range []*kafkax.Producer{pCreated, pCancelled, pStatus} {
		p.WaitClosed()
	}
}
