// Package tracking gates polls against the external carrier: a per-user
// manual-refresh cooldown, a once-per-session batched stale sweep, and the
// application of poll outcomes back through the quote lifecycle.
package tracking

import (
	"context"
	"fmt"
	"time"

	"quote-service/internal/lifecycle"
	"quote-service/internal/models"
	"quote-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Carrier poll statuses, normalized
const (
	CarrierStatusPickedUp  = "picked_up"
	CarrierStatusInTransit = "in_transit"
	CarrierStatusDelivered = "delivered"
	CarrierStatusUnknown   = "unknown"
)

// PollResult is the carrier's answer for one tracking number
type PollResult struct {
	Success   bool   `json:"success"`
	NewStatus string `json:"new_status,omitempty"`
	OldStatus string `json:"old_status,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Carrier is the external tracking provider's polling contract
type Carrier interface {
	PollTracking(ctx context.Context, trackingNumber string) (*PollResult, error)
	PollBatch(ctx context.Context, trackingNumbers []string) (map[string]*PollResult, error)
}

// Store is the persistence surface the gate needs
type Store interface {
	GetQuoteByID(ctx context.Context, id int64) (*models.Quote, error)
	GetStaleTrackedQuotes(ctx context.Context, cutoff time.Time) ([]models.Quote, error)
	ApplyTrackingOutcomeTx(ctx context.Context, ev *models.TrackingEvent, newStatus *string, fromStatuses []string) (bool, error)
}

// CooldownStore is the atomic rate-limit state shared across sessions
type CooldownStore interface {
	AcquireCooldown(ctx context.Context, userID int64, window time.Duration) (time.Duration, error)
	MarkStaleCheck(ctx context.Context, userID int64, sessionTTL time.Duration) (bool, error)
}

// EventSink receives status events for carrier-driven transitions.
// *broker.EventPublisher satisfies it.
type EventSink interface {
	PublishQuoteStatus(ctx context.Context, event *models.QuoteStatusEvent) error
}

// Config holds the gate's tunables
type Config struct {
	CooldownWindow time.Duration
	StaleAfter     time.Duration
	SessionTTL     time.Duration
}

// Gate decides when carrier polls are permitted and feeds results back as
// lifecycle transitions
type Gate struct {
	store     Store
	cooldowns CooldownStore
	carrier   Carrier
	events    EventSink
	cfg       Config
	logger    *zap.Logger
}

// NewGate creates a tracking gate
func NewGate(store Store, cooldowns CooldownStore, carrier Carrier, events EventSink, cfg Config) *Gate {
	return &Gate{
		store:     store,
		cooldowns: cooldowns,
		carrier:   carrier,
		events:    events,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// ManualRefresh polls the carrier for one quote on behalf of a user. The
// cooldown is consumed on attempt, not on success, so a failing carrier is
// not hammered; admin actors bypass the cooldown entirely.
func (g *Gate) ManualRefresh(ctx context.Context, actor lifecycle.Actor, userID, quoteID int64) (*models.TrackingEvent, error) {
	ctx, span := util.StartSpan(ctx, "Gate.ManualRefresh")
	defer span.End()

	quote, err := g.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.TrackingNumber == nil {
		return nil, models.NewValidationError("tracking_number", "quote has no tracking number")
	}

	if actor != lifecycle.ActorAdmin {
		remaining, err := g.cooldowns.AcquireCooldown(ctx, userID, g.cfg.CooldownWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to check refresh cooldown: %w", err)
		}
		if remaining > 0 {
			util.TrackingCooldownRejected.Inc()
			return nil, &models.CooldownError{Remaining: remaining}
		}
	}

	result, err := g.carrier.PollTracking(ctx, *quote.TrackingNumber)
	return g.applyOutcome(ctx, quote, models.TrackingSourceManual, result, err)
}

// RefreshStale runs the automatic stale sweep: one batched poll covering all
// stale quotes, at most once per session. Further automatic refreshes within
// the session are left to the external periodic process.
func (g *Gate) RefreshStale(ctx context.Context, sessionUserID int64) (int, error) {
	ctx, span := util.StartSpan(ctx, "Gate.RefreshStale")
	defer span.End()

	first, err := g.cooldowns.MarkStaleCheck(ctx, sessionUserID, g.cfg.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale check: %w", err)
	}
	if !first {
		return 0, nil
	}

	cutoff := time.Now().Add(-g.cfg.StaleAfter)
	quotes, err := g.store.GetStaleTrackedQuotes(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale quotes: %w", err)
	}
	if len(quotes) == 0 {
		return 0, nil
	}

	numbers := make([]string, 0, len(quotes))
	for i := range quotes {
		numbers = append(numbers, *quotes[i].TrackingNumber)
	}

	results, err := g.carrier.PollBatch(ctx, numbers)
	if err != nil {
		// record the failed attempt against every stale quote
		for i := range quotes {
			if _, applyErr := g.applyOutcome(ctx, &quotes[i], models.TrackingSourceCarrierSync, nil, err); applyErr != nil {
				g.logger.Error("Failed to record poll failure",
					zap.Int64("quote_id", quotes[i].ID),
					zap.Error(applyErr))
			}
		}
		return 0, fmt.Errorf("batched carrier poll failed: %w", err)
	}

	polled := 0
	for i := range quotes {
		result := results[*quotes[i].TrackingNumber]
		if _, err := g.applyOutcome(ctx, &quotes[i], models.TrackingSourceCarrierSync, result, nil); err != nil {
			g.logger.Error("Failed to apply poll outcome",
				zap.Int64("quote_id", quotes[i].ID),
				zap.Error(err))
			continue
		}
		polled++
	}

	g.logger.Info("Stale tracking sweep completed",
		zap.Int("stale", len(quotes)),
		zap.Int("polled", polled))
	return polled, nil
}

// applyOutcome appends the TrackingEvent for one poll outcome and, on a
// status-bearing success, moves the quote through the allowed edge. Poll
// failures never mutate quote status.
func (g *Gate) applyOutcome(ctx context.Context, quote *models.Quote, source string, result *PollResult, pollErr error) (*models.TrackingEvent, error) {
	ev := &models.TrackingEvent{
		QuoteID: quote.ID,
		Source:  source,
	}

	switch {
	case pollErr != nil:
		msg := pollErr.Error()
		ev.Message = &msg
	case result == nil:
		msg := "carrier returned no result"
		ev.Message = &msg
	default:
		ev.Success = result.Success
		if result.Message != "" {
			msg := result.Message
			ev.Message = &msg
		}
	}

	var target *string
	var from []string
	if ev.Success {
		switch result.NewStatus {
		case CarrierStatusPickedUp, CarrierStatusInTransit:
			st := models.QuoteStatusInTransit
			target = &st
			from = []string{models.QuoteStatusPaidAwaitingShip, models.QuoteStatusInTransit}
		case CarrierStatusDelivered:
			st := models.QuoteStatusDelivered
			target = &st
			from = []string{models.QuoteStatusInTransit}
		}
	}

	applied, err := g.store.ApplyTrackingOutcomeTx(ctx, ev, target, from)
	if err != nil {
		return nil, err
	}

	if applied && target != nil && *target == models.QuoteStatusDelivered {
		statusEvent := &models.QuoteStatusEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeQuoteDelivered,
				Timestamp: time.Now(),
			},
			QuoteID:   quote.ID,
			ActorRole: string(lifecycle.ActorSystem),
			OldStatus: quote.Status,
			NewStatus: *target,
		}
		if pubErr := g.events.PublishQuoteStatus(ctx, statusEvent); pubErr != nil {
			g.logger.Error("Failed to publish delivered event",
				zap.Int64("quote_id", quote.ID),
				zap.Error(pubErr))
		}
	}

	outcome := "no_change"
	switch {
	case !ev.Success:
		outcome = "failed"
	case applied:
		outcome = "status_changed"
	}
	util.TrackingPollsTotal.WithLabelValues(source, outcome).Inc()

	if pollErr != nil {
		g.logger.Warn("Carrier poll failed",
			zap.Int64("quote_id", quote.ID),
			zap.String("source", source),
			zap.Error(pollErr))
		return ev, fmt.Errorf("carrier poll failed: %w", pollErr)
	}
	return ev, nil
}
