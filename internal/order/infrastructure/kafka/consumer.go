package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mejiacortes/bakery-orders/internal/contracts"
	"github.com/mejiacortes/bakery-orders/internal/order/application"
	"github.com/mejiacortes/bakery-orders/internal/order/domain"
	"github.com/mejiacortes/bakery-orders/pkg/idempotency"
	"github.com/mejiacortes/bakery-orders/pkg/tracing"
)

type responseHandler interface {
	HandleValidationResponse(ctx context.Context, ev contracts.StockValidationResponse, headers map[string]string, traceparent string) error
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

// ResponseConsumer reads stock validation responses and feeds them to the
// saga coordinator. Offsets are committed manually, and a message is never
// fetched past until its predecessor committed: Kafka commits are high-water
// marks, so committing a later offset would implicitly acknowledge an earlier
// failure. Infrastructure errors therefore retry the same message in place
// with backoff; only business outcomes and poison messages move the offset.
type ResponseConsumer struct {
	log        *slog.Logger
	reader     messageReader
	coord      responseHandler
	idem       dedup
	tracer     trace.Tracer
	retryDelay time.Duration
}

func NewResponseConsumer(log *slog.Logger, brokers []string, topic, group string, coord *application.Coordinator, idem *idempotency.Store) *ResponseConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &ResponseConsumer{
		log:        log,
		reader:     r,
		coord:      coord,
		idem:       idem,
		tracer:     otel.Tracer("order-response-consumer"),
		retryDelay: time.Second,
	}
}

func (c *ResponseConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if err := c.process(ctx, msg); err != nil {
			return err
		}
	}
}

// process retries msg until it is handled and committed; it only gives up
// when ctx is cancelled.
func (c *ResponseConsumer) process(ctx context.Context, msg kafka.Message) error {
	backoff := c.retryDelay
	for {
		err := c.handle(ctx, msg)
		if err == nil {
			return nil
		}
		c.log.Error("handling stock validation response failed, retrying in place",
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

func (c *ResponseConsumer) handle(ctx context.Context, msg kafka.Message) error {
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
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeStockValidationResponse")
	defer span.End()

	var resp contracts.StockValidationResponse
	if err := json.Unmarshal(msg.Value, &resp); err != nil {
		c.log.Error("dropping malformed stock validation response", "err", err)
		return c.reader.CommitMessages(ctx, msg)
	}

	headers := map[string]string{"source": "order-service"}
	traceparent := headerValue(msg.Headers, tracing.TraceparentHeader)

	err = c.coord.HandleValidationResponse(msgCtx, resp, headers, traceparent)
	switch {
	case err == nil:
		return c.reader.CommitMessages(ctx, msg)
	case errors.Is(err, domain.ErrOrderNotFound):
		// Poison message: no retry can ever make this order exist.
		c.log.Error("stock validation response for unknown order, discarding",
			"order_id", resp.OrderID, "err", err)
		return c.reader.CommitMessages(ctx, msg)
	default:
		// Release the dedup key so the retry (or a redelivery after a
		// restart) is not skipped as a duplicate.
		_ = c.idem.Forget(ctx, key)
		return err
	}
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
