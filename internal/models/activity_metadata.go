package models

import (
	"encoding/json"
	"time"
)

// Typed metadata payloads per activity type. Entries are written through
// these constructors so the audit trail keeps one schema per activity_type
// instead of a free-form map.

// StatusChangeMetadata for created/updated/approval/rejection entries
type StatusChangeMetadata struct {
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status"`
}

// PaymentMetadata for payment_recorded entries
type PaymentMetadata struct {
	PaymentStatus  string     `json:"payment_status"`
	AmountUSDCents int64      `json:"amount_usd_cents"`
	AmountCrypto   string     `json:"amount_crypto,omitempty"`
	TransactionID  string     `json:"transaction_id,omitempty"`
	PaymentDate    *time.Time `json:"payment_date,omitempty"`
	AutoTransition bool       `json:"auto_transition"`
}

// ShippingMetadata for shipping_added entries
type ShippingMetadata struct {
	TrackingNumber string `json:"tracking_number"`
	AutoTransition bool   `json:"auto_transition"`
}

// EmailMetadata for email_sent/email_failed entries
type EmailMetadata struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Error     string `json:"error,omitempty"`
}

// PricingMetadata for lab_approved entries carrying a pricing modification
type PricingMetadata struct {
	DiscountPercent  string `json:"discount_percent,omitempty"`
	ItemPricesEdited bool   `json:"item_prices_edited"`
	NeedsReapproval  bool   `json:"needs_reapproval"`
}

// ResultsMetadata for results_submitted entries
type ResultsMetadata struct {
	ItemID         int64  `json:"item_id"`
	ItemStatus     string `json:"item_status"`
	QuoteCompleted bool   `json:"quote_completed"`
}

// DeniedEditMetadata for edit_denied entries on locked quotes
type DeniedEditMetadata struct {
	Status string   `json:"status"`
	Fields []string `json:"fields,omitempty"`
}

// DuplicationMetadata for duplicated entries on the new draft
type DuplicationMetadata struct {
	SourceQuoteID int64 `json:"source_quote_id"`
	ItemCount     int   `json:"item_count"`
}

// TrackingRefreshMetadata for tracking_refreshed entries
type TrackingRefreshMetadata struct {
	Source  string `json:"source"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// NewMetadata marshals a typed metadata payload for storage
func NewMetadata(payload interface{}) Metadata {
	b, err := json.Marshal(payload)
	if err != nil {
		return Metadata(`{}`)
	}
	return Metadata(b)
}
