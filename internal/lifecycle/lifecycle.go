// Package lifecycle is the authoritative quote state machine: states,
// transitions, actor permissions, auto-progression and edit locking.
package lifecycle

import (
	"fmt"

	"quote-service/internal/models"
)

// Actor identifies which party is acting
type Actor string

const (
	ActorRequester Actor = "requester"
	ActorLab       Actor = "lab"
	ActorAdmin     Actor = "admin"
	// ActorSystem raises auto-transitions and carrier-driven events. It is
	// never resolved from a request.
	ActorSystem Actor = "system"
)

// Event is a transition trigger
type Event string

const (
	// actor-selectable events
	EventSubmit                Event = "submit"
	EventLabApprove            Event = "lab_approve"
	EventLabApproveWithPricing Event = "lab_approve_with_pricing"
	EventLabReject             Event = "lab_reject"
	EventAcceptPricing         Event = "accept_pricing"
	EventDeclinePricing        Event = "decline_pricing"
	EventBeginTesting          Event = "begin_testing"

	// side-effect events, raised internally only
	EventPaymentRecorded   Event = "payment_recorded"
	EventTrackingAttached  Event = "tracking_attached"
	EventCarrierPickedUp   Event = "carrier_picked_up"
	EventCarrierDelivered  Event = "carrier_delivered"
	EventAllItemsCompleted Event = "all_items_completed"
)

type rule struct {
	event  Event
	actors []Actor
	next   string
}

// transitions holds every legal edge. Anything not listed is rejected.
var transitions = map[string][]rule{
	models.QuoteStatusDraft: {
		{EventSubmit, []Actor{ActorRequester}, models.QuoteStatusSentToVendor},
	},
	models.QuoteStatusSentToVendor: {
		{EventLabApprove, []Actor{ActorLab}, models.QuoteStatusApprovedPayment},
		{EventLabApproveWithPricing, []Actor{ActorLab}, models.QuoteStatusAwaitingApproval},
		{EventLabReject, []Actor{ActorLab}, models.QuoteStatusRejected},
	},
	models.QuoteStatusAwaitingApproval: {
		{EventAcceptPricing, []Actor{ActorRequester}, models.QuoteStatusApprovedPayment},
		{EventDeclinePricing, []Actor{ActorRequester}, models.QuoteStatusRejected},
	},
	models.QuoteStatusApprovedPayment: {
		{EventPaymentRecorded, []Actor{ActorSystem}, models.QuoteStatusPaidAwaitingShip},
	},
	models.QuoteStatusPaidAwaitingShip: {
		{EventTrackingAttached, []Actor{ActorSystem}, models.QuoteStatusInTransit},
		{EventCarrierPickedUp, []Actor{ActorSystem}, models.QuoteStatusInTransit},
	},
	models.QuoteStatusInTransit: {
		{EventCarrierPickedUp, []Actor{ActorSystem}, models.QuoteStatusInTransit},
		{EventCarrierDelivered, []Actor{ActorSystem}, models.QuoteStatusDelivered},
	},
	models.QuoteStatusDelivered: {
		{EventBeginTesting, []Actor{ActorLab}, models.QuoteStatusTestingInProgress},
	},
	models.QuoteStatusTestingInProgress: {
		{EventAllItemsCompleted, []Actor{ActorSystem}, models.QuoteStatusCompleted},
	},
	// rejected and completed are terminal
	models.QuoteStatusRejected:  {},
	models.QuoteStatusCompleted: {},
}

// lockedStatuses blocks general edits once payment has been recorded
var lockedStatuses = map[string]bool{
	models.QuoteStatusPaidAwaitingShip:  true,
	models.QuoteStatusInTransit:         true,
	models.QuoteStatusDelivered:         true,
	models.QuoteStatusTestingInProgress: true,
	models.QuoteStatusCompleted:         true,
}

// decisionPending excludes these states even from admin's edit override so
// an outstanding lab/customer decision is never interfered with
var decisionPending = map[string]bool{
	models.QuoteStatusSentToVendor:     true,
	models.QuoteStatusAwaitingApproval: true,
}

// ValidStatus reports whether s is an enumerated quote status
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// Next returns the resulting status for (current, event, actor), or an error
// when the transition is illegal. Admin inherits every requester and lab
// permission; system events are only accepted from ActorSystem.
func Next(current string, ev Event, actor Actor) (string, error) {
	rules, ok := transitions[current]
	if !ok {
		return "", fmt.Errorf("unknown quote status %q", current)
	}
	for _, r := range rules {
		if r.event != ev {
			continue
		}
		if !actorAllowed(r.actors, actor) {
			return "", fmt.Errorf("%w: %s may not %s a quote in %s", models.ErrPermissionDenied, actor, ev, current)
		}
		return r.next, nil
	}
	return "", fmt.Errorf("%w: event %s is not valid in status %s", models.ErrPermissionDenied, ev, current)
}

func actorAllowed(allowed []Actor, actor Actor) bool {
	for _, a := range allowed {
		if a == actor {
			return true
		}
		// admin may perform anything a requester or lab may
		if actor == ActorAdmin && a != ActorSystem {
			return true
		}
	}
	return false
}

// Locked reports whether general edits are blocked for non-admins
func Locked(status string) bool {
	return lockedStatuses[status]
}

// Terminal reports whether the status admits no further transitions
func Terminal(status string) bool {
	return status == models.QuoteStatusRejected || status == models.QuoteStatusCompleted
}

// CanEdit reports whether the actor may apply a general field edit in the
// given status. States with an outstanding decision are closed to everyone;
// locked states are admin-only.
func CanEdit(status string, actor Actor) bool {
	if decisionPending[status] {
		return false
	}
	if Locked(status) {
		return actor == ActorAdmin
	}
	return true
}

// TrackingActive reports whether a quote in this status still has a live
// shipment worth polling
func TrackingActive(status string) bool {
	return status == models.QuoteStatusPaidAwaitingShip || status == models.QuoteStatusInTransit
}
