//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"feedsync/internal/config"
	"feedsync/internal/domain"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) config(name string) config.RabbitMQConfig {
	return config.RabbitMQConfig{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-" + name,
		RoutingKey: "test-routing-key-" + name,
		QueueName:  "test-queue-" + name,
	}
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	pub, err := NewRabbitMQ(s.config("conn"), s.logger)
	s.NoError(err)
	s.NotNil(pub)

	s.NoError(pub.Close())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_NotifyRejected() {
	cfg := s.config("rejected")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	id := uuid.New()
	err = pub.Notify(s.ctx, domain.Notice{
		MutationID: id,
		ActorID:    "u1",
		Entity:     domain.EntityRef{Type: domain.EntityPost, ID: "p1"},
		Reason:     domain.ReasonRejected,
		Message:    "Your like could not be saved. Please retry.",
		Cause:      "validation",
	})
	s.Require().NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)
	s.Equal("application/json", msg.ContentType)
	s.Equal(id.String(), msg.MessageId)

	var received NoticeMessage
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.Equal(id.String(), received.MutationID)
	s.Equal("post", received.EntityType)
	s.Equal("p1", received.EntityID)
	s.Equal("rejected", received.Reason)
	s.Equal("validation", received.Cause)
	s.False(received.BalanceAffecting)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_BalanceNoticePersistent() {
	cfg := s.config("balance")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	err = pub.Notify(s.ctx, domain.Notice{
		MutationID:       uuid.New(),
		ActorID:          "u1",
		Entity:           domain.EntityRef{Type: domain.EntityWallet, ID: "w1"},
		Reason:           domain.ReasonInsufficientFunds,
		Message:          "Not enough balance.",
		BalanceAffecting: true,
		Amount:           -20,
	})
	s.Require().NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)

	var received NoticeMessage
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.True(received.BalanceAffecting)
	s.Equal(-20.0, received.Amount)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg config.RabbitMQConfig) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
