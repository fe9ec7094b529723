package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote represents one testing request sent to one lab
type Quote struct {
	ID          int64  `db:"id" json:"id"`
	RequesterID int64  `db:"requester_id" json:"requester_id"`
	LabID       int64  `db:"lab_id" json:"lab_id"`
	Status      string `db:"status" json:"status"`

	QuoteNumber    *string `db:"quote_number" json:"quote_number,omitempty"`
	LabQuoteNumber *string `db:"lab_quote_number" json:"lab_quote_number,omitempty"`
	RequesterEmail *string `db:"requester_email" json:"requester_email,omitempty"`
	Notes          string  `db:"notes" json:"notes,omitempty"`

	// DiscountPercent stays null until a lab explicitly modifies pricing.
	DiscountPercent decimal.NullDecimal `db:"discount_percent" json:"discount_percent,omitempty"`
	DiscountType    *string             `db:"discount_type" json:"discount_type,omitempty"`

	PaymentStatus         *string    `db:"payment_status" json:"payment_status,omitempty"`
	PaymentAmountUSDCents *int64     `db:"payment_amount_usd_cents" json:"payment_amount_usd_cents,omitempty"`
	PaymentAmountCrypto   *string    `db:"payment_amount_crypto" json:"payment_amount_crypto,omitempty"`
	PaymentDate           *time.Time `db:"payment_date" json:"payment_date,omitempty"`
	TransactionID         *string    `db:"transaction_id" json:"transaction_id,omitempty"`

	TrackingNumber    *string    `db:"tracking_number" json:"tracking_number,omitempty"`
	ShippedDate       *time.Time `db:"shipped_date" json:"shipped_date,omitempty"`
	TrackingUpdatedAt *time.Time `db:"tracking_updated_at" json:"tracking_updated_at,omitempty"`
	EstimatedDelivery *time.Time `db:"estimated_delivery" json:"estimated_delivery,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasPayment reports whether any payment field has been recorded
func (q *Quote) HasPayment() bool {
	return q.PaymentStatus != nil || q.PaymentAmountUSDCents != nil || q.PaymentDate != nil
}

// QuoteItem is one compound/test line belonging to a quote
type QuoteItem struct {
	ID          int64  `db:"id" json:"id"`
	QuoteID     int64  `db:"quote_id" json:"quote_id"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`

	ClientName   string `db:"client_name" json:"client_name"`
	SampleName   string `db:"sample_name" json:"sample_name"`
	Manufacturer string `db:"manufacturer" json:"manufacturer"`
	BatchNumber  string `db:"batch_number" json:"batch_number"`

	PriceCents              *int64               `db:"price_cents" json:"price_cents,omitempty"`
	AdditionalSamples       int                  `db:"additional_samples" json:"additional_samples"`
	AdditionalReportHeaders int                  `db:"additional_report_headers" json:"additional_report_headers"`
	AdditionalHeadersData   AdditionalHeaderList `db:"additional_headers_data" json:"additional_headers_data"`

	Status       string     `db:"status" json:"status"`
	TestResults  *string    `db:"test_results" json:"test_results,omitempty"`
	ReportURL    *string    `db:"report_url" json:"report_url,omitempty"`
	ReportFile   *string    `db:"report_file" json:"report_file,omitempty"`
	TestingNotes *string    `db:"testing_notes" json:"testing_notes,omitempty"`
	SubmittedAt  *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ValidateHeaders checks the additional-header invariant. A mismatch means
// the stored row is corrupt; the read must fail rather than auto-repair,
// since repair could discard lab-entered data.
func (qi *QuoteItem) ValidateHeaders() error {
	if len(qi.AdditionalHeadersData) != qi.AdditionalReportHeaders {
		return ErrCorruptHeaderData
	}
	return nil
}

// AdditionalHeaderRecord is one extra report grouping under a quote item.
// It has no identity of its own outside the owning item.
type AdditionalHeaderRecord struct {
	ClientName   string `json:"client_name"`
	SampleName   string `json:"sample_name"`
	Manufacturer string `json:"manufacturer"`
	BatchNumber  string `json:"batch_number"`
}

// TrackingEvent is an append-only record of a tracking/status change.
// Never mutated after creation.
type TrackingEvent struct {
	ID        int64     `db:"id" json:"id"`
	QuoteID   int64     `db:"quote_id" json:"quote_id"`
	Source    string    `db:"source" json:"source"`
	Success   bool      `db:"success" json:"success"`
	OldStatus *string   `db:"old_status" json:"old_status,omitempty"`
	NewStatus *string   `db:"new_status" json:"new_status,omitempty"`
	Message   *string   `db:"message" json:"message,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ActivityLogEntry is a write-once audit record for a quote. Every
// state-changing action writes exactly one entry.
type ActivityLogEntry struct {
	ID           int64     `db:"id" json:"id"`
	QuoteID      int64     `db:"quote_id" json:"quote_id"`
	ActorID      int64     `db:"actor_id" json:"actor_id"`
	ActorRole    string    `db:"actor_role" json:"actor_role"`
	ActivityType string    `db:"activity_type" json:"activity_type"`
	Description  string    `db:"description" json:"description"`
	Metadata     Metadata  `db:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PaymentMethod is a requester-owned saved payment profile. At most one
// method per owner is the default at any time.
type PaymentMethod struct {
	ID         int64      `db:"id" json:"id"`
	OwnerID    int64      `db:"owner_id" json:"owner_id"`
	MethodType string     `db:"method_type" json:"method_type"`
	Label      string     `db:"label" json:"label"`
	Details    RawDetails `db:"details" json:"details"`
	IsDefault  bool       `db:"is_default" json:"is_default"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// EmailTemplate is a reusable subject/body pair with token placeholders.
// At most one template per scope has IsDefault set.
type EmailTemplate struct {
	ID        int64     `db:"id" json:"id"`
	Scope     string    `db:"scope" json:"scope"`
	Name      string    `db:"name" json:"name"`
	Subject   string    `db:"subject" json:"subject"`
	Body      string    `db:"body" json:"body"`
	IsDefault bool      `db:"is_default" json:"is_default"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Lab is the destination of a quote; submission requires a contact address
type Lab struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	ContactEmail *string   `db:"contact_email" json:"contact_email,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Quote statuses
const (
	QuoteStatusDraft             = "draft"
	QuoteStatusSentToVendor      = "sent_to_vendor"
	QuoteStatusAwaitingApproval  = "awaiting_customer_approval"
	QuoteStatusApprovedPayment   = "approved_payment_pending"
	QuoteStatusRejected          = "rejected"
	QuoteStatusPaidAwaitingShip  = "paid_awaiting_shipping"
	QuoteStatusInTransit         = "in_transit"
	QuoteStatusDelivered         = "delivered"
	QuoteStatusTestingInProgress = "testing_in_progress"
	QuoteStatusCompleted         = "completed"
)

// Quote item statuses
const (
	ItemStatusPending           = "pending"
	ItemStatusTestingInProgress = "testing_in_progress"
	ItemStatusCompleted         = "completed"
	ItemStatusFailed            = "failed"
)

// Tracking event sources
const (
	TrackingSourceManual      = "manual"
	TrackingSourceCarrierSync = "carrier-sync"
)

// Discount types
const (
	DiscountTypePercent = "percent"
)

// Email template scopes
const (
	TemplateScopeVendorEmail  = "vendor_email"
	TemplateScopeConfirmation = "confirmation"
)

// Activity types
const (
	ActivityCreated          = "created"
	ActivitySubmitted        = "submitted"
	ActivityUpdated          = "updated"
	ActivityEmailSent        = "email_sent"
	ActivityEmailFailed      = "email_failed"
	ActivityPaymentRecorded  = "payment_recorded"
	ActivityShippingAdded    = "shipping_added"
	ActivityLabApproved      = "lab_approved"
	ActivityLabRejected      = "lab_rejected"
	ActivityPricingAccepted  = "pricing_accepted"
	ActivityPricingDeclined  = "pricing_declined"
	ActivityTestingStarted   = "testing_started"
	ActivityResultsSubmitted = "results_submitted"
	ActivityDuplicated       = "duplicated"
	ActivityEditDenied       = "edit_denied"
	ActivityTrackingRefresh  = "tracking_refreshed"
)

// Payment method types
const (
	MethodTypeCryptoWallet = "crypto_wallet"
	MethodTypeBankTransfer = "bank_transfer"
	MethodTypeWireTransfer = "wire_transfer"
	MethodTypeCreditCard   = "credit_card"
	MethodTypeOther        = "other"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
