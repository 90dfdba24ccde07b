package source

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"main/internal/domain/entity/tape"
)

// AMQP consumes normalized trades from a RabbitMQ fanout exchange via
// an exclusive auto-delete queue.
type AMQP struct {
	url      string
	exchange string
	handler  Handler
	log      *logrus.Entry
}

// NewAMQP builds a consumer for the given fanout exchange.
func NewAMQP(url, exchange string, handler Handler, logger *logrus.Logger) *AMQP {
	return &AMQP{
		url:      url,
		exchange: exchange,
		handler:  handler,
		log:      logger.WithField("component", "amqp_source"),
	}
}

// Run connects, binds, and consumes until the context is cancelled.
func (a *AMQP) Run(ctx context.Context) error {
	conn, err := amqp.Dial(a.url)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(a.exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", a.exchange, err)
	}
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, "", a.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue.Name, a.exchange, err)
	}
	deliveries, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consume: %w", err)
	}

	a.log.WithField("exchange", a.exchange).Info("amqp source started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			t, err := tape.Unmarshal(delivery.Body)
			if err != nil {
				a.log.WithError(err).Warn("skip undecodable trade delivery")
				_ = delivery.Nack(false, false)
				continue
			}
			a.handler(t)
			if err := delivery.Ack(false); err != nil {
				a.log.WithError(err).Warn("failed to ack delivery")
			}
		}
	}
}
