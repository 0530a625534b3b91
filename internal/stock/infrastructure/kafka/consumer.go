package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mejiacortes/bakery-orders/internal/contracts"
	"github.com/mejiacortes/bakery-orders/internal/stock/application"
	"github.com/mejiacortes/bakery-orders/pkg/idempotency"
	"github.com/mejiacortes/bakery-orders/pkg/tracing"
)

type reserver interface {
	Reserve(ctx context.Context, msg contracts.OrderMessage, headers map[string]string, traceparent string) (contracts.StockValidationResponse, error)
}

type confirmer interface {
	Confirm(ctx context.Context, conf contracts.StockUpdateConfirmation) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type dedup interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// OrderConsumer reads order announcements and runs the reservation for each.
// Business rejections are normal outcomes and commit the offset. An
// infrastructure failure retries the same message in place: committing any
// later offset on the partition would implicitly acknowledge the failed one,
// since Kafka commits are high-water marks.
type OrderConsumer struct {
	log        *slog.Logger
	reader     messageReader
	svc        reserver
	idem       dedup
	tracer     trace.Tracer
	retryDelay time.Duration
}

func NewOrderConsumer(log *slog.Logger, brokers []string, topic, group string, svc *application.Service, idem *idempotency.Store) *OrderConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &OrderConsumer{
		log:        log,
		reader:     r,
		svc:        svc,
		idem:       idem,
		tracer:     otel.Tracer("stock-order-consumer"),
		retryDelay: time.Second,
	}
}

func (c *OrderConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if err := retryInPlace(ctx, c.log, c.retryDelay, msg, c.handle); err != nil {
			return err
		}
	}
}

func (c *OrderConsumer) handle(ctx context.Context, msg kafka.Message) error {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		return err
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return c.reader.CommitMessages(ctx, msg)
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderCreated")
	defer span.End()

	var order contracts.OrderMessage
	if err := json.Unmarshal(msg.Value, &order); err != nil {
		c.log.Error("dropping malformed order message", "err", err)
		return c.reader.CommitMessages(ctx, msg)
	}

	headers := map[string]string{"source": "stock-service"}
	traceparent := headerValue(msg.Headers, tracing.TraceparentHeader)

	if _, err := c.svc.Reserve(msgCtx, order, headers, traceparent); err != nil {
		_ = c.idem.Forget(ctx, key)
		return err
	}
	return c.reader.CommitMessages(ctx, msg)
}

// ConfirmationConsumer reads stock update confirmations and promotes the
// matching reservations. Same offset discipline as OrderConsumer.
type ConfirmationConsumer struct {
	log        *slog.Logger
	reader     messageReader
	svc        confirmer
	idem       dedup
	tracer     trace.Tracer
	retryDelay time.Duration
}

func NewConfirmationConsumer(log *slog.Logger, brokers []string, topic, group string, svc *application.Service, idem *idempotency.Store) *ConfirmationConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &ConfirmationConsumer{
		log:        log,
		reader:     r,
		svc:        svc,
		idem:       idem,
		tracer:     otel.Tracer("stock-confirmation-consumer"),
		retryDelay: time.Second,
	}
}

func (c *ConfirmationConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if err := retryInPlace(ctx, c.log, c.retryDelay, msg, c.handle); err != nil {
			return err
		}
	}
}

func (c *ConfirmationConsumer) handle(ctx context.Context, msg kafka.Message) error {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		return err
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return c.reader.CommitMessages(ctx, msg)
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeStockUpdateConfirmation")
	defer span.End()

	var conf contracts.StockUpdateConfirmation
	if err := json.Unmarshal(msg.Value, &conf); err != nil {
		c.log.Error("dropping malformed stock update confirmation", "err", err)
		return c.reader.CommitMessages(ctx, msg)
	}

	if err := c.svc.Confirm(msgCtx, conf); err != nil {
		_ = c.idem.Forget(ctx, key)
		return err
	}
	return c.reader.CommitMessages(ctx, msg)
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}

// retryInPlace keeps handling one message until it succeeds; only ctx
// cancellation gives up. The offset is never moved past a failing message.
func retryInPlace(ctx context.Context, log *slog.Logger, delay time.Duration, msg kafka.Message, handle func(context.Context, kafka.Message) error) error {
	backoff := delay
	for {
		err := handle(ctx, msg)
		if err == nil {
			return nil
		}
		log.Error("message handling failed, retrying in place",
			"topic", msg.Topic, "offset", msg.Offset, "backoff", backoff, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
