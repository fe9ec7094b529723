package lifecycle

import (
	"testing"

	"quote-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []string{
	models.QuoteStatusDraft,
	models.QuoteStatusSentToVendor,
	models.QuoteStatusAwaitingApproval,
	models.QuoteStatusApprovedPayment,
	models.QuoteStatusRejected,
	models.QuoteStatusPaidAwaitingShip,
	models.QuoteStatusInTransit,
	models.QuoteStatusDelivered,
	models.QuoteStatusTestingInProgress,
	models.QuoteStatusCompleted,
}

var allEvents = []Event{
	EventSubmit, EventLabApprove, EventLabApproveWithPricing, EventLabReject,
	EventAcceptPricing, EventDeclinePricing, EventBeginTesting,
	EventPaymentRecorded, EventTrackingAttached, EventCarrierPickedUp,
	EventCarrierDelivered, EventAllItemsCompleted,
}

var allActors = []Actor{ActorRequester, ActorLab, ActorAdmin, ActorSystem}

func TestHappyPath(t *testing.T) {
	steps := []struct {
		event Event
		actor Actor
		want  string
	}{
		{EventSubmit, ActorRequester, models.QuoteStatusSentToVendor},
		{EventLabApprove, ActorLab, models.QuoteStatusApprovedPayment},
		{EventPaymentRecorded, ActorSystem, models.QuoteStatusPaidAwaitingShip},
		{EventTrackingAttached, ActorSystem, models.QuoteStatusInTransit},
		{EventCarrierDelivered, ActorSystem, models.QuoteStatusDelivered},
		{EventBeginTesting, ActorLab, models.QuoteStatusTestingInProgress},
		{EventAllItemsCompleted, ActorSystem, models.QuoteStatusCompleted},
	}

	status := models.QuoteStatusDraft
	for _, step := range steps {
		next, err := Next(status, step.event, step.actor)
		require.NoError(t, err, "event %s from %s", step.event, status)
		assert.Equal(t, step.want, next)
		status = next
	}
	assert.True(t, Terminal(status))
}

func TestReapprovalPath(t *testing.T) {
	next, err := Next(models.QuoteStatusSentToVendor, EventLabApproveWithPricing, ActorLab)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusAwaitingApproval, next)

	next, err = Next(models.QuoteStatusAwaitingApproval, EventAcceptPricing, ActorRequester)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusApprovedPayment, next)

	next, err = Next(models.QuoteStatusAwaitingApproval, EventDeclinePricing, ActorRequester)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusRejected, next)
}

func TestActorPermissions(t *testing.T) {
	// a lab cannot submit someone's draft
	_, err := Next(models.QuoteStatusDraft, EventSubmit, ActorLab)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)

	// a requester cannot approve their own quote
	_, err = Next(models.QuoteStatusSentToVendor, EventLabApprove, ActorRequester)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)

	// admin inherits both requester and lab permissions
	_, err = Next(models.QuoteStatusDraft, EventSubmit, ActorAdmin)
	assert.NoError(t, err)
	_, err = Next(models.QuoteStatusSentToVendor, EventLabReject, ActorAdmin)
	assert.NoError(t, err)

	// but not system-only events
	_, err = Next(models.QuoteStatusApprovedPayment, EventPaymentRecorded, ActorAdmin)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestTerminalStatesAdmitNothing(t *testing.T) {
	for _, status := range []string{models.QuoteStatusRejected, models.QuoteStatusCompleted} {
		for _, ev := range allEvents {
			for _, actor := range allActors {
				_, err := Next(status, ev, actor)
				assert.Error(t, err, "terminal %s accepted %s by %s", status, ev, actor)
			}
		}
	}
}

func TestOnlyListedEdgesAllowed(t *testing.T) {
	// every (status, event, actor) triple either matches a known edge or
	// errors; count the legal ones and pin the number down
	legal := 0
	for _, status := range allStatuses {
		for _, ev := range allEvents {
			for _, actor := range allActors {
				if _, err := Next(status, ev, actor); err == nil {
					legal++
				}
			}
		}
	}
	// 13 role-scoped edges plus admin inheritance on the 7 non-system ones
	assert.Equal(t, 20, legal)
}

func TestUnknownStatus(t *testing.T) {
	_, err := Next("archived", EventSubmit, ActorRequester)
	assert.Error(t, err)
	assert.False(t, ValidStatus("archived"))
	assert.True(t, ValidStatus(models.QuoteStatusDraft))
}

func TestCanEdit(t *testing.T) {
	// open states are editable by anyone involved
	assert.True(t, CanEdit(models.QuoteStatusDraft, ActorRequester))
	assert.True(t, CanEdit(models.QuoteStatusApprovedPayment, ActorRequester))

	// decision-pending states are closed to everyone, admin included
	assert.False(t, CanEdit(models.QuoteStatusSentToVendor, ActorRequester))
	assert.False(t, CanEdit(models.QuoteStatusSentToVendor, ActorAdmin))
	assert.False(t, CanEdit(models.QuoteStatusAwaitingApproval, ActorAdmin))

	// locked states are admin-only
	for _, status := range []string{
		models.QuoteStatusPaidAwaitingShip,
		models.QuoteStatusInTransit,
		models.QuoteStatusDelivered,
		models.QuoteStatusTestingInProgress,
		models.QuoteStatusCompleted,
	} {
		assert.False(t, CanEdit(status, ActorRequester), status)
		assert.False(t, CanEdit(status, ActorLab), status)
		assert.True(t, CanEdit(status, ActorAdmin), status)
	}
}

func TestTrackingActive(t *testing.T) {
	assert.True(t, TrackingActive(models.QuoteStatusPaidAwaitingShip))
	assert.True(t, TrackingActive(models.QuoteStatusInTransit))
	assert.False(t, TrackingActive(models.QuoteStatusDelivered))
	assert.False(t, TrackingActive(models.QuoteStatusDraft))
}
