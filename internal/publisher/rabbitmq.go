package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"feedsync/internal/config"
	"feedsync/internal/domain"
)

// RabbitMQ publishes user-facing notices to a durable direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

func NewRabbitMQ(cfg config.RabbitMQConfig, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	logger = logger.With("component", "publisher")
	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// NoticeMessage is the JSON body of a published notice.
type NoticeMessage struct {
	MutationID       string    `json:"mutation_id"`
	ActorID          string    `json:"actor_id,omitempty"`
	EntityType       string    `json:"entity_type"`
	EntityID         string    `json:"entity_id"`
	Reason           string    `json:"reason"`
	Message          string    `json:"message"`
	BalanceAffecting bool      `json:"balance_affecting"`
	Amount           float64   `json:"amount,omitempty"`
	Cause            string    `json:"cause,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
	Timestamp        time.Time `json:"timestamp"`
}

func newNoticeMessage(n domain.Notice, now time.Time) NoticeMessage {
	occurred := n.At
	if occurred.IsZero() {
		occurred = now
	}
	return NoticeMessage{
		MutationID:       n.MutationID.String(),
		ActorID:          n.ActorID,
		EntityType:       string(n.Entity.Type),
		EntityID:         n.Entity.ID,
		Reason:           string(n.Reason),
		Message:          n.Message,
		BalanceAffecting: n.BalanceAffecting,
		Amount:           n.Amount,
		Cause:            n.Cause,
		OccurredAt:       occurred.UTC(),
		Timestamp:        now.UTC(),
	}
}

// Notify implements engine.Notifier.
func (r *RabbitMQ) Notify(ctx context.Context, notice domain.Notice) error {
	now := time.Now()
	body, err := json.Marshal(newNoticeMessage(notice, now))
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	priority := uint8(0)
	if notice.BalanceAffecting {
		priority = 5
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    notice.MutationID.String(),
			Priority:     priority,
			Body:         body,
			Timestamp:    now,
		},
	)
	if err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}

	r.logger.Debug("published notice",
		"mutation_id", notice.MutationID,
		"reason", notice.Reason,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
