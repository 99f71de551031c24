package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"pigeon/internal/config"
	"pigeon/internal/domain"
)

// RabbitMQ wraps the AMQP connection used to publish notification events for
// external consumers (mailers, push gateways).
type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	cfg     *config.RabbitMQConfig
}

func Connect(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	logrus.WithField("url", cfg.Url).Info("Connecting to RabbitMQ...")

	conn, err := amqp.Dial(cfg.Url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		cfg.Exchange,
		cfg.ExchangeType,
		cfg.Durable,
		cfg.AutoDelete,
		cfg.Internal,
		cfg.NoWait,
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logrus.Infof("Connected to RabbitMQ at %s", cfg.Url)
	return &RabbitMQ{Conn: conn, Channel: channel, cfg: cfg}, nil
}

func (r *RabbitMQ) Close() error {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close RabbitMQ channel")
			return err
		}
	}
	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close RabbitMQ connection")
			return err
		}
	}
	logrus.Info("RabbitMQ connection closed")
	return nil
}

// PublishNotification publishes a created notification to the exchange.
func (r *RabbitMQ) PublishNotification(n *domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	err = r.Channel.Publish(
		r.cfg.Exchange,
		r.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"type":            n.Type,
		"routing_key":     r.cfg.RoutingKey,
	}).Debug("Notification published")
	return nil
}
