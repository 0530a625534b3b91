package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mejiacortes/bakery-orders/internal/config"
	"github.com/mejiacortes/bakery-orders/internal/contracts"
	"github.com/mejiacortes/bakery-orders/internal/order/application"
	orderhttp "github.com/mejiacortes/bakery-orders/internal/order/infrastructure/http"
	orderkafka "github.com/mejiacortes/bakery-orders/internal/order/infrastructure/kafka"
	orderpg "github.com/mejiacortes/bakery-orders/internal/order/infrastructure/postgres"
	"github.com/mejiacortes/bakery-orders/pkg/idempotency"
	"github.com/mejiacortes/bakery-orders/pkg/logging"
	"github.com/mejiacortes/bakery-orders/pkg/outbox"
	"github.com/mejiacortes/bakery-orders/pkg/shutdown"
	"github.com/mejiacortes/bakery-orders/pkg/tracing"
)

func main() {
	log := logging.New()
	cfg := config.LoadOrderService()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	stopTracing, err := tracing.Init(ctx, cfg.ServiceName)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = stopTracing(context.Background()) }()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := orderpg.EnsureSchema(ctx, pool); err != nil {
		log.Error("pg schema failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, 24*time.Hour)

	writer := orderkafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	topics := map[string]string{
		contracts.EventOrderCreated:            cfg.Topics.OrderCreated,
		contracts.EventStockUpdateConfirmation: cfg.Topics.StockUpdate,
	}
	repo := orderpg.NewRepository(log, pool, topics)
	products := orderpg.NewProductRepository(pool)

	store := outbox.NewPGStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer)
	relay := outbox.NewRelay(log, store, dispatch, cfg.ServiceName+"-relay")

	svc := application.NewService(log, repo, products)
	coord := application.NewCoordinator(log, repo)
	handler := orderhttp.NewHandler(log, svc)

	consumer := orderkafka.NewResponseConsumer(log, cfg.KafkaBrokers, cfg.Topics.StockResponse, cfg.GroupID, coord, idem)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("consumer stopped with error", "err", err)
			cancel()
		}
	}()

	// Periodic report of orders stuck waiting on stock validation.
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := coord.SweepStale(ctx, 10*time.Minute); err != nil {
					log.Error("stale order sweep failed", "err", err)
				}
			}
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("order-service shutdown complete")
}
