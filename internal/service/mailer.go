package service

import (
	"context"
	"time"

	"quote-service/internal/broker"
	"quote-service/internal/models"
	"quote-service/internal/util"

	"github.com/google/uuid"
)

// Mailer hands rendered emails to the outbound notification pipeline.
// Delivery itself happens outside this service.
type Mailer interface {
	Send(ctx context.Context, quoteID int64, recipient, subject, htmlBody string) error
}

// KafkaMailer publishes email jobs to the notification topic
type KafkaMailer struct {
	publisher *broker.EventPublisher
}

// NewKafkaMailer creates a kafka-backed mailer
func NewKafkaMailer(publisher *broker.EventPublisher) *KafkaMailer {
	return &KafkaMailer{publisher: publisher}
}

// Send publishes one email job
func (m *KafkaMailer) Send(ctx context.Context, quoteID int64, recipient, subject, htmlBody string) error {
	event := &models.EmailRequestedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeEmailRequested,
			Timestamp: time.Now(),
		},
		QuoteID:   quoteID,
		Recipient: recipient,
		Subject:   subject,
		HTMLBody:  htmlBody,
	}

	if err := m.publisher.PublishEmailRequested(ctx, event); err != nil {
		util.EmailsFailedTotal.Inc()
		return err
	}
	util.EmailsSentTotal.Inc()
	return nil
}
