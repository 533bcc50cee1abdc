package clients

import (
	"encoding/json"
	"fmt"
	"time"

	"geoattend-svc/src/internal/config"
	"geoattend-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// AuditPublisher publishes check-in outcome events to the attendance exchange.
// Consumers use the rejected outcomes as the proxy-fraud audit feed.
type AuditPublisher struct {
	channel *amqp.Channel
	cfg     *config.RabbitMQConfig
}

// NewAuditPublisher creates a publisher bound to an open channel.
func NewAuditPublisher(cfg *config.Configuration, channel *amqp.Channel) *AuditPublisher {
	return &AuditPublisher{
		channel: channel,
		cfg:     &cfg.Queue.RabbitMQ,
	}
}

// PublishCheckinEvent publishes one check-in outcome message.
func (p *AuditPublisher) PublishCheckinEvent(event models.CheckinEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal checkin event: %w", err)
	}

	err = p.channel.Publish(
		p.cfg.Exchange,
		p.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)

	if err != nil {
		logrus.WithError(err).Error("Failed to publish checkin event")
		return fmt.Errorf("failed to publish checkin event: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"session_id":  event.SessionID,
		"student_id":  event.StudentID,
		"status":      event.Status,
		"exchange":    p.cfg.Exchange,
		"routing_key": p.cfg.RoutingKey,
	}).Debug("Checkin event published")

	return nil
}
