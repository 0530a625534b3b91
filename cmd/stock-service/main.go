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
	"github.com/mejiacortes/bakery-orders/internal/stock/application"
	stockhttp "github.com/mejiacortes/bakery-orders/internal/stock/infrastructure/http"
	stockkafka "github.com/mejiacortes/bakery-orders/internal/stock/infrastructure/kafka"
	stockpg "github.com/mejiacortes/bakery-orders/internal/stock/infrastructure/postgres"
	"github.com/mejiacortes/bakery-orders/pkg/idempotency"
	"github.com/mejiacortes/bakery-orders/pkg/logging"
	"github.com/mejiacortes/bakery-orders/pkg/outbox"
	"github.com/mejiacortes/bakery-orders/pkg/shutdown"
	"github.com/mejiacortes/bakery-orders/pkg/tracing"
)

func main() {
	log := logging.New()
	cfg := config.LoadStockService()

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

	if err := stockpg.EnsureSchema(ctx, pool); err != nil {
		log.Error("pg schema failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, 24*time.Hour)

	writer := stockkafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	topics := map[string]string{
		contracts.EventStockValidationResponse: cfg.Topics.StockResponse,
	}
	ingredients := stockpg.NewIngredientRepository(pool)
	recipes := stockpg.NewRecipeRepository(log, pool)
	reservations := stockpg.NewReservationStore(log, pool, topics)

	store := outbox.NewPGStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer)
	relay := outbox.NewRelay(log, store, dispatch, cfg.ServiceName+"-relay")

	svc := application.NewService(log, ingredients, recipes, reservations)
	handler := stockhttp.NewHandler(log, svc)

	orders := stockkafka.NewOrderConsumer(log, cfg.KafkaBrokers, cfg.Topics.OrderCreated, cfg.GroupID, svc, idem)
	confirmations := stockkafka.NewConfirmationConsumer(log, cfg.KafkaBrokers, cfg.Topics.StockUpdate, cfg.GroupID, svc, idem)

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
		if err := orders.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("order consumer stopped with error", "err", err)
			cancel()
		}
	}()

	go func() {
		if err := confirmations.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("confirmation consumer stopped with error", "err", err)
			cancel()
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
	log.Info("stock-service shutdown complete")
}
