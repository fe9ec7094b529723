package models

import "time"

// Event types
const (
	EventTypeQuoteCreated        = "QUOTE_CREATED"
	EventTypeQuoteSubmitted      = "QUOTE_SUBMITTED"
	EventTypeQuoteApproved       = "QUOTE_APPROVED"
	EventTypeQuoteRejected       = "QUOTE_REJECTED"
	EventTypePricingAccepted     = "PRICING_ACCEPTED"
	EventTypePricingDeclined     = "PRICING_DECLINED"
	EventTypePaymentRecorded     = "PAYMENT_RECORDED"
	EventTypeTrackingAttached    = "TRACKING_ATTACHED"
	EventTypeQuoteDelivered      = "QUOTE_DELIVERED"
	EventTypeTestingStarted      = "TESTING_STARTED"
	EventTypeQuoteCompleted      = "QUOTE_COMPLETED"
	EventTypeRefreshRequested    = "TRACKING_REFRESH_REQUESTED"
	EventTypeEmailRequested      = "EMAIL_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// QuoteStatusEvent published for every lifecycle transition
type QuoteStatusEvent struct {
	BaseEvent
	QuoteID   int64  `json:"quote_id"`
	ActorID   int64  `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// QuoteSubmittedEvent published when a draft is sent to the vendor
type QuoteSubmittedEvent struct {
	BaseEvent
	QuoteID         int64 `json:"quote_id"`
	LabID           int64 `json:"lab_id"`
	ItemCount       int   `json:"item_count"`
	GrandTotalCents int64 `json:"grand_total_cents"`
}

// PaymentRecordedEvent published when payment info is attached
type PaymentRecordedEvent struct {
	BaseEvent
	QuoteID        int64  `json:"quote_id"`
	AmountUSDCents int64  `json:"amount_usd_cents"`
	TransactionID  string `json:"transaction_id,omitempty"`
	AutoTransition bool   `json:"auto_transition"`
}

// TrackingAttachedEvent published when a tracking number is first attached
type TrackingAttachedEvent struct {
	BaseEvent
	QuoteID        int64  `json:"quote_id"`
	TrackingNumber string `json:"tracking_number"`
	AutoTransition bool   `json:"auto_transition"`
}

// TrackingRefreshRequestedEvent is published by the external periodic
// process to ask for a batched stale-tracking poll
type TrackingRefreshRequestedEvent struct {
	BaseEvent
	RequestedBy int64 `json:"requested_by,omitempty"`
}

// EmailRequestedEvent carries an outbound email job for the notification
// pipeline; actual delivery happens outside this service
type EmailRequestedEvent struct {
	BaseEvent
	QuoteID   int64  `json:"quote_id"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	HTMLBody  string `json:"html_body"`
}
