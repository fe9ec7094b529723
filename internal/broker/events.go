package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"quote-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishQuoteStatus publishes a lifecycle transition event
func (ep *EventPublisher) PublishQuoteStatus(ctx context.Context, event *models.QuoteStatusEvent) error {
	return ep.producer.PublishEvent(ctx, quoteKey(event.QuoteID), event)
}

// PublishQuoteSubmitted publishes a QuoteSubmitted event
func (ep *EventPublisher) PublishQuoteSubmitted(ctx context.Context, event *models.QuoteSubmittedEvent) error {
	return ep.producer.PublishEvent(ctx, quoteKey(event.QuoteID), event)
}

// PublishPaymentRecorded publishes a PaymentRecorded event
func (ep *EventPublisher) PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, quoteKey(event.QuoteID), event)
}

// PublishTrackingAttached publishes a TrackingAttached event
func (ep *EventPublisher) PublishTrackingAttached(ctx context.Context, event *models.TrackingAttachedEvent) error {
	return ep.producer.PublishEvent(ctx, quoteKey(event.QuoteID), event)
}

// PublishEmailRequested publishes an outbound email job
func (ep *EventPublisher) PublishEmailRequested(ctx context.Context, event *models.EmailRequestedEvent) error {
	return ep.producer.PublishEvent(ctx, quoteKey(event.QuoteID), event)
}

func quoteKey(quoteID int64) string {
	return fmt.Sprintf("quote-%d", quoteID)
}

// EventHandler handles incoming events
type EventHandler struct {
	onRefreshRequested func(context.Context, *models.TrackingRefreshRequestedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnRefreshRequested registers a handler for TrackingRefreshRequested events
func (eh *EventHandler) OnRefreshRequested(handler func(context.Context, *models.TrackingRefreshRequestedEvent) error) {
	eh.onRefreshRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeRefreshRequested:
		if eh.onRefreshRequested != nil {
			var event models.TrackingRefreshRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TrackingRefreshRequested event: %w", err)
			}
			return eh.onRefreshRequested(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
