package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher sends reservation events to the broker. Publishing is best
// effort: errors are logged and returned so callers can ignore them without
// interrupting the request that caused the mutation (the caller has already
// invalidated its own cache directly).
type Publisher struct {
	URL    string
	Logger zerolog.Logger
}

func (p Publisher) Publish(ctx context.Context, event ReservationEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Logger.Warn().Err(err).Msg("event publish: broker dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Logger.Warn().Err(err).Msg("event publish: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		p.Logger.Warn().Err(err).Msg("event publish: queue declare failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", QueueName, false, false, pub); err != nil {
		p.Logger.Warn().Err(err).Msg("event publish failed")
		return err
	}
	return nil
}
