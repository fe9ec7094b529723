package worker

import (
	"context"
	"log"

	"quote-service/internal/broker"
	"quote-service/internal/models"
	"quote-service/internal/tracking"
)

// IdempotencyStore dedupes consumed events across restarts
type IdempotencyStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// TrackingWorker consumes TrackingRefreshRequested events from the external
// periodic process and runs the batched stale sweep through the gate
type TrackingWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	gate         *tracking.Gate
	idempotency  IdempotencyStore
}

// NewTrackingWorker creates a new tracking worker
func NewTrackingWorker(
	consumer *broker.Consumer,
	gate *tracking.Gate,
	idempotency IdempotencyStore,
) *TrackingWorker {
	w := &TrackingWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		gate:         gate,
		idempotency:  idempotency,
	}
	w.eventHandler.OnRefreshRequested(w.handleRefreshRequested)
	return w
}

// Start starts the worker
func (w *TrackingWorker) Start(ctx context.Context) error {
	log.Println("Starting tracking worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *TrackingWorker) Stop() error {
	log.Println("Stopping tracking worker...")
	return w.consumer.Close()
}

func (w *TrackingWorker) handleRefreshRequested(ctx context.Context, event *models.TrackingRefreshRequestedEvent) error {
	processed, err := w.idempotency.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		log.Printf("Skipping already processed event: %s", event.EventID)
		return nil
	}

	polled, err := w.gate.RefreshStale(ctx, event.RequestedBy)
	if err != nil {
		return err
	}
	log.Printf("Stale tracking refresh done: polled=%d", polled)

	return w.idempotency.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
