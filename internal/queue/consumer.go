package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/tablewise/backend/internal/cache"
)

// Consumer drains reservation events and invalidates the result cache on
// each one. It runs a reconnect loop with exponential backoff and keeps
// going until the context is cancelled; a broken broker never takes the
// serving path down, it only delays invalidation.
type Consumer struct {
	URL    string
	Cache  cache.Cache
	Logger zerolog.Logger
}

func (c Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Logger.Warn().Err(err).Dur("retry_in", backoff).Msg("invalidation consumer: broker dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := c.consumeLoop(ctx, conn); err != nil {
			c.Logger.Warn().Err(err).Msg("invalidation consumer: loop ended, reconnecting")
		}
		_ = conn.Close()
	}
}

func (c Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, d.Body)
			_ = d.Ack(false)
		}
	}
}

func (c Consumer) handle(ctx context.Context, body []byte) {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.Logger.Warn().Err(err).Msg("invalidation consumer: bad event payload")
		return
	}
	c.Cache.Invalidate(ctx)
	c.Logger.Info().
		Str("type", ev.Type).
		Str("reservation_id", ev.ReservationID).
		Str("location_id", ev.LocationID).
		Msg("result cache invalidated")
}
