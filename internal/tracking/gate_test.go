package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"quote-service/internal/lifecycle"
	"quote-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	quotes   map[int64]*models.Quote
	stale    []models.Quote
	events   []*models.TrackingEvent
	targets  []*string
	fromSets [][]string
}

func (f *fakeStore) GetQuoteByID(ctx context.Context, id int64) (*models.Quote, error) {
	q, ok := f.quotes[id]
	if !ok {
		return nil, errors.New("quote not found")
	}
	return q, nil
}

func (f *fakeStore) GetStaleTrackedQuotes(ctx context.Context, cutoff time.Time) ([]models.Quote, error) {
	return f.stale, nil
}

func (f *fakeStore) ApplyTrackingOutcomeTx(ctx context.Context, ev *models.TrackingEvent, newStatus *string, fromStatuses []string) (bool, error) {
	f.events = append(f.events, ev)
	f.targets = append(f.targets, newStatus)
	f.fromSets = append(f.fromSets, fromStatuses)
	if !ev.Success || newStatus == nil {
		return false, nil
	}
	q := f.quotes[ev.QuoteID]
	if q == nil {
		return false, nil
	}
	for _, from := range fromStatuses {
		if q.Status == from {
			q.Status = *newStatus
			return q.Status != from, nil
		}
	}
	return false, nil
}

type fakeCooldowns struct {
	attempts  int
	remaining time.Duration
	first     bool
	marks     int
}

func (f *fakeCooldowns) AcquireCooldown(ctx context.Context, userID int64, window time.Duration) (time.Duration, error) {
	f.attempts++
	return f.remaining, nil
}

func (f *fakeCooldowns) MarkStaleCheck(ctx context.Context, userID int64, sessionTTL time.Duration) (bool, error) {
	f.marks++
	return f.first, nil
}

type fakeCarrier struct {
	polls      int
	batchCalls int
	result     *PollResult
	batch      map[string]*PollResult
	err        error
}

func (f *fakeCarrier) PollTracking(ctx context.Context, trackingNumber string) (*PollResult, error) {
	f.polls++
	return f.result, f.err
}

func (f *fakeCarrier) PollBatch(ctx context.Context, trackingNumbers []string) (map[string]*PollResult, error) {
	f.batchCalls++
	return f.batch, f.err
}

type fakeEvents struct {
	published []*models.QuoteStatusEvent
}

func (f *fakeEvents) PublishQuoteStatus(ctx context.Context, ev *models.QuoteStatusEvent) error {
	f.published = append(f.published, ev)
	return nil
}

func trackedQuote(id int64, status, number string) *models.Quote {
	return &models.Quote{ID: id, Status: status, TrackingNumber: &number}
}

func newTestGate(store *fakeStore, cooldowns *fakeCooldowns, carrier *fakeCarrier) (*Gate, *fakeEvents) {
	events := &fakeEvents{}
	return NewGate(store, cooldowns, carrier, events, Config{
		CooldownWindow: time.Hour,
		StaleAfter:     4 * time.Hour,
		SessionTTL:     30 * time.Minute,
	}), events
}

func TestManualRefresh(t *testing.T) {
	store := &fakeStore{quotes: map[int64]*models.Quote{
		1: trackedQuote(1, models.QuoteStatusInTransit, "TN-1"),
	}}
	cooldowns := &fakeCooldowns{}
	carrier := &fakeCarrier{result: &PollResult{Success: true, NewStatus: CarrierStatusDelivered}}
	gate, events := newTestGate(store, cooldowns, carrier)

	ev, err := gate.ManualRefresh(context.Background(), lifecycle.ActorRequester, 7, 1)
	require.NoError(t, err)
	assert.True(t, ev.Success)
	assert.Equal(t, models.TrackingSourceManual, ev.Source)
	assert.Equal(t, 1, cooldowns.attempts)
	assert.Equal(t, 1, carrier.polls)
	assert.Equal(t, models.QuoteStatusDelivered, store.quotes[1].Status)

	// the carrier-driven delivery is announced like any other transition
	require.Len(t, events.published, 1)
	assert.Equal(t, models.EventTypeQuoteDelivered, events.published[0].EventType)
	assert.Equal(t, models.QuoteStatusDelivered, events.published[0].NewStatus)
	assert.Equal(t, string(lifecycle.ActorSystem), events.published[0].ActorRole)
}

func TestManualRefreshCooldownRejected(t *testing.T) {
	store := &fakeStore{quotes: map[int64]*models.Quote{
		1: trackedQuote(1, models.QuoteStatusInTransit, "TN-1"),
	}}
	cooldowns := &fakeCooldowns{remaining: 42 * time.Minute}
	carrier := &fakeCarrier{}
	gate, _ := newTestGate(store, cooldowns, carrier)

	_, err := gate.ManualRefresh(context.Background(), lifecycle.ActorRequester, 7, 1)
	remaining, ok := models.IsCooldown(err)
	require.True(t, ok)
	assert.Equal(t, 42*time.Minute, remaining)
	assert.Equal(t, 0, carrier.polls, "rejected refresh must not reach the carrier")
	assert.Empty(t, store.events)
}

func TestManualRefreshAdminBypassesCooldown(t *testing.T) {
	store := &fakeStore{quotes: map[int64]*models.Quote{
		1: trackedQuote(1, models.QuoteStatusInTransit, "TN-1"),
	}}
	cooldowns := &fakeCooldowns{remaining: time.Hour}
	carrier := &fakeCarrier{result: &PollResult{Success: true, NewStatus: CarrierStatusInTransit}}
	gate, _ := newTestGate(store, cooldowns, carrier)

	_, err := gate.ManualRefresh(context.Background(), lifecycle.ActorAdmin, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, cooldowns.attempts, "admin must not consume the cooldown")
	assert.Equal(t, 1, carrier.polls)
}

func TestManualRefreshNoTrackingNumber(t *testing.T) {
	store := &fakeStore{quotes: map[int64]*models.Quote{
		1: {ID: 1, Status: models.QuoteStatusDraft},
	}}
	gate, _ := newTestGate(store, &fakeCooldowns{}, &fakeCarrier{})

	_, err := gate.ManualRefresh(context.Background(), lifecycle.ActorRequester, 7, 1)
	assert.True(t, models.IsValidation(err))
}

func TestManualRefreshFailedPollKeepsStatus(t *testing.T) {
	store := &fakeStore{quotes: map[int64]*models.Quote{
		1: trackedQuote(1, models.QuoteStatusInTransit, "TN-1"),
	}}
	cooldowns := &fakeCooldowns{}
	carrier := &fakeCarrier{err: errors.New("carrier down")}
	gate, events := newTestGate(store, cooldowns, carrier)

	_, err := gate.ManualRefresh(context.Background(), lifecycle.ActorRequester, 7, 1)
	assert.Error(t, err)
	// cooldown is spent on the attempt even though the poll failed
	assert.Equal(t, 1, cooldowns.attempts)
	// the failure is recorded, the status is not touched
	require.Len(t, store.events, 1)
	assert.False(t, store.events[0].Success)
	assert.Equal(t, models.QuoteStatusInTransit, store.quotes[1].Status)
	assert.Empty(t, events.published)
}

func TestRefreshStaleOncePerSession(t *testing.T) {
	q1 := trackedQuote(1, models.QuoteStatusInTransit, "TN-1")
	q2 := trackedQuote(2, models.QuoteStatusPaidAwaitingShip, "TN-2")
	store := &fakeStore{
		quotes: map[int64]*models.Quote{1: q1, 2: q2},
		stale:  []models.Quote{*q1, *q2},
	}
	cooldowns := &fakeCooldowns{first: true}
	carrier := &fakeCarrier{batch: map[string]*PollResult{
		"TN-1": {Success: true, NewStatus: CarrierStatusDelivered},
		"TN-2": {Success: true, NewStatus: CarrierStatusPickedUp},
	}}
	gate, events := newTestGate(store, cooldowns, carrier)

	polled, err := gate.RefreshStale(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, polled)
	assert.Equal(t, 1, carrier.batchCalls, "the sweep is one batched request")
	assert.Equal(t, models.QuoteStatusDelivered, store.quotes[1].Status)
	assert.Equal(t, models.QuoteStatusInTransit, store.quotes[2].Status)

	// only the delivery gets announced, not the in-transit move
	require.Len(t, events.published, 1)
	assert.Equal(t, models.EventTypeQuoteDelivered, events.published[0].EventType)
	assert.Equal(t, int64(1), events.published[0].QuoteID)

	// second sweep in the same session is a no-op
	cooldowns.first = false
	polled, err = gate.RefreshStale(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 0, polled)
	assert.Equal(t, 1, carrier.batchCalls)
}

func TestRefreshStaleNothingStale(t *testing.T) {
	store := &fakeStore{quotes: map[int64]*models.Quote{}}
	cooldowns := &fakeCooldowns{first: true}
	carrier := &fakeCarrier{}
	gate, _ := newTestGate(store, cooldowns, carrier)

	polled, err := gate.RefreshStale(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 0, polled)
	assert.Equal(t, 0, carrier.batchCalls)
}

func TestRefreshStaleBatchFailureRecordsEvents(t *testing.T) {
	q1 := trackedQuote(1, models.QuoteStatusInTransit, "TN-1")
	q2 := trackedQuote(2, models.QuoteStatusInTransit, "TN-2")
	store := &fakeStore{
		quotes: map[int64]*models.Quote{1: q1, 2: q2},
		stale:  []models.Quote{*q1, *q2},
	}
	cooldowns := &fakeCooldowns{first: true}
	carrier := &fakeCarrier{err: errors.New("timeout")}
	gate, events := newTestGate(store, cooldowns, carrier)

	_, err := gate.RefreshStale(context.Background(), 7)
	assert.Error(t, err)
	require.Len(t, store.events, 2)
	for _, ev := range store.events {
		assert.False(t, ev.Success)
		assert.Equal(t, models.TrackingSourceCarrierSync, ev.Source)
	}
	assert.Equal(t, models.QuoteStatusInTransit, store.quotes[1].Status)
	assert.Empty(t, events.published)
}

func TestDeliveredOnlyFromInTransit(t *testing.T) {
	// a delivered report against a quote still awaiting shipping must not
	// jump straight to delivered
	store := &fakeStore{quotes: map[int64]*models.Quote{
		1: trackedQuote(1, models.QuoteStatusPaidAwaitingShip, "TN-1"),
	}}
	carrier := &fakeCarrier{result: &PollResult{Success: true, NewStatus: CarrierStatusDelivered}}
	gate, events := newTestGate(store, &fakeCooldowns{}, carrier)

	_, err := gate.ManualRefresh(context.Background(), lifecycle.ActorRequester, 7, 1)
	require.NoError(t, err)
	require.Len(t, store.fromSets, 1)
	assert.Equal(t, []string{models.QuoteStatusInTransit}, store.fromSets[0])
	assert.Equal(t, models.QuoteStatusPaidAwaitingShip, store.quotes[1].Status)
	assert.Empty(t, events.published)
}
