package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quote-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CreateQuoteTx creates a quote with its items and the creation activity
// entry in one transaction
func (s *Store) CreateQuoteTx(ctx context.Context, quote *models.Quote, items []models.QuoteItem, entry *models.ActivityLogEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO quotes (requester_id, lab_id, status, quote_number, requester_email, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	if err := tx.GetContext(ctx, quote, query,
		quote.RequesterID, quote.LabID, quote.Status, quote.QuoteNumber,
		quote.RequesterEmail, quote.Notes); err != nil {
		return fmt.Errorf("failed to create quote: %w", err)
	}

	for i := range items {
		items[i].QuoteID = quote.ID
		if err := insertItemTx(ctx, tx, &items[i]); err != nil {
			return err
		}
	}

	entry.QuoteID = quote.ID
	if err := insertActivityTx(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}

// GetQuoteByID retrieves a quote by ID
func (s *Store) GetQuoteByID(ctx context.Context, id int64) (*models.Quote, error) {
	var quote models.Quote
	err := s.db.GetContext(ctx, &quote, "SELECT * FROM quotes WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("quote not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// GetQuotesByRequester retrieves quotes owned by a requester
func (s *Store) GetQuotesByRequester(ctx context.Context, requesterID int64) ([]models.Quote, error) {
	var quotes []models.Quote
	err := s.db.SelectContext(ctx, &quotes,
		"SELECT * FROM quotes WHERE requester_id = $1 ORDER BY created_at DESC", requesterID)
	return quotes, err
}

// GetQuotesByLab retrieves quotes addressed to a lab
func (s *Store) GetQuotesByLab(ctx context.Context, labID int64) ([]models.Quote, error) {
	var quotes []models.Quote
	err := s.db.SelectContext(ctx, &quotes,
		"SELECT * FROM quotes WHERE lab_id = $1 ORDER BY created_at DESC", labID)
	return quotes, err
}

// GetQuoteItems retrieves all items for a quote. A header-count mismatch on
// any item fails the whole read; corrupt rows are never auto-repaired.
func (s *Store) GetQuoteItems(ctx context.Context, quoteID int64) ([]models.QuoteItem, error) {
	var items []models.QuoteItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM quote_items WHERE quote_id = $1 ORDER BY id", quoteID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if err := items[i].ValidateHeaders(); err != nil {
			return nil, fmt.Errorf("quote item %d: %w", items[i].ID, err)
		}
	}
	return items, nil
}

// AddItemTx adds an item to a quote together with its activity entry
func (s *Store) AddItemTx(ctx context.Context, item *models.QuoteItem, entry *models.ActivityLogEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertItemTx(ctx, tx, item); err != nil {
		return err
	}
	if err := insertActivityTx(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateQuoteEditableTx updates the freely editable quote fields along with
// the audit entry for the edit
func (s *Store) UpdateQuoteEditableTx(ctx context.Context, q *models.Quote, entry *models.ActivityLogEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE quotes
		SET quote_number = $1, lab_quote_number = $2, notes = $3,
		    estimated_delivery = $4, updated_at = NOW()
		WHERE id = $5`,
		q.QuoteNumber, q.LabQuoteNumber, q.Notes, q.EstimatedDelivery, q.ID)
	if err != nil {
		return fmt.Errorf("failed to update quote: %w", err)
	}

	if err := insertActivityTx(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}

// TransitionStatusTx applies a guarded status change plus its activity entry.
// The WHERE clause on the previous status makes a concurrent transition lose
// cleanly instead of double-firing.
func (s *Store) TransitionStatusTx(ctx context.Context, quoteID int64, from, to string, entry *models.ActivityLogEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE quotes SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, quoteID, from)
	if err != nil {
		return fmt.Errorf("failed to transition quote: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("quote %d is no longer in status %s", quoteID, from)
	}

	if err := insertActivityTx(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}

// ApproveWithPricingTx applies a lab approval that modifies pricing: the
// guarded status change, the discount override, any per-item price edits and
// the activity entry, all in one transaction
func (s *Store) ApproveWithPricingTx(ctx context.Context, quoteID int64, from, to string,
	discountPercent decimal.NullDecimal, itemPrices map[int64]int64, entry *models.ActivityLogEntry) error {

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var discountType *string
	if discountPercent.Valid {
		dt := models.DiscountTypePercent
		discountType = &dt
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE quotes
		SET status = $1, discount_percent = $2, discount_type = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5`,
		to, discountPercent, discountType, quoteID, from)
	if err != nil {
		return fmt.Errorf("failed to approve quote: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("quote %d is no longer in status %s", quoteID, from)
	}

	for itemID, priceCents := range itemPrices {
		res, err := tx.ExecContext(ctx,
			"UPDATE quote_items SET price_cents = $1 WHERE id = $2 AND quote_id = $3",
			priceCents, itemID, quoteID)
		if err != nil {
			return fmt.Errorf("failed to update item price: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("quote item %d not found on quote %d", itemID, quoteID)
		}
	}

	if err := insertActivityTx(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}

// PaymentUpdate carries the payment fields being recorded
type PaymentUpdate struct {
	Status         string
	AmountUSDCents *int64
	AmountCrypto   *string
	Date           *time.Time
	TransactionID  *string
}

// RecordPaymentTx attaches payment info to a quote. The previous payment
// presence and status are read under FOR UPDATE in the same transaction that
// writes the new status, so the approved_payment_pending →
// paid_awaiting_shipping auto-transition fires exactly once.
func (s *Store) RecordPaymentTx(ctx context.Context, quoteID int64, upd PaymentUpdate,
	entryFn func(auto bool, oldStatus string) *models.ActivityLogEntry) (bool, string, error) {

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, "", err
	}
	defer tx.Rollback()

	var prev models.Quote
	if err := tx.GetContext(ctx, &prev, "SELECT * FROM quotes WHERE id = $1 FOR UPDATE", quoteID); err != nil {
		if err == sql.ErrNoRows {
			return false, "", fmt.Errorf("quote not found: %d", quoteID)
		}
		return false, "", err
	}

	auto := !prev.HasPayment() && prev.Status == models.QuoteStatusApprovedPayment
	newStatus := prev.Status
	if auto {
		newStatus = models.QuoteStatusPaidAwaitingShip
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE quotes
		SET payment_status = $1, payment_amount_usd_cents = $2, payment_amount_crypto = $3,
		    payment_date = $4, transaction_id = $5, status = $6, updated_at = NOW()
		WHERE id = $7`,
		upd.Status, upd.AmountUSDCents, upd.AmountCrypto, upd.Date, upd.TransactionID,
		newStatus, quoteID)
	if err != nil {
		return false, "", fmt.Errorf("failed to record payment: %w", err)
	}

	if err := insertActivityTx(ctx, tx, entryFn(auto, prev.Status)); err != nil {
		return false, "", err
	}

	if err := tx.Commit(); err != nil {
		return false, "", err
	}
	return auto, newStatus, nil
}

// AttachTrackingTx attaches a tracking number where none existed. The
// paid_awaiting_shipping → in_transit auto-transition is decided on the
// locked previous row, and the tracking event plus activity entry land in
// the same transaction.
func (s *Store) AttachTrackingTx(ctx context.Context, quoteID int64, trackingNumber string,
	estimatedDelivery *time.Time,
	entryFn func(auto bool, oldStatus string) *models.ActivityLogEntry) (bool, string, error) {

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, "", err
	}
	defer tx.Rollback()

	var prev models.Quote
	if err := tx.GetContext(ctx, &prev, "SELECT * FROM quotes WHERE id = $1 FOR UPDATE", quoteID); err != nil {
		if err == sql.ErrNoRows {
			return false, "", fmt.Errorf("quote not found: %d", quoteID)
		}
		return false, "", err
	}

	if prev.TrackingNumber != nil {
		return false, "", models.NewValidationError("tracking_number", "already set")
	}

	auto := prev.Status == models.QuoteStatusPaidAwaitingShip
	newStatus := prev.Status
	if auto {
		newStatus = models.QuoteStatusInTransit
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE quotes
		SET tracking_number = $1, shipped_date = NOW(), tracking_updated_at = NOW(),
		    estimated_delivery = $2, status = $3, updated_at = NOW()
		WHERE id = $4`,
		trackingNumber, estimatedDelivery, newStatus, quoteID)
	if err != nil {
		return false, "", fmt.Errorf("failed to attach tracking: %w", err)
	}

	oldStatus := prev.Status
	ev := &models.TrackingEvent{
		QuoteID:   quoteID,
		Source:    models.TrackingSourceManual,
		Success:   true,
		OldStatus: &oldStatus,
		NewStatus: &newStatus,
	}
	if err := insertTrackingEventTx(ctx, tx, ev); err != nil {
		return false, "", err
	}

	if err := insertActivityTx(ctx, tx, entryFn(auto, prev.Status)); err != nil {
		return false, "", err
	}

	if err := tx.Commit(); err != nil {
		return false, "", err
	}
	return auto, newStatus, nil
}

// ApplyTrackingOutcomeTx records one carrier poll outcome. On success the
// staleness clock is reset and, when newStatus is set and the locked row is
// still in one of fromStatuses, the status moves. Failed polls only append
// the event. Returns whether a status change was applied.
func (s *Store) ApplyTrackingOutcomeTx(ctx context.Context, ev *models.TrackingEvent,
	newStatus *string, fromStatuses []string) (bool, error) {

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var current string
	if err := tx.GetContext(ctx, &current,
		"SELECT status FROM quotes WHERE id = $1 FOR UPDATE", ev.QuoteID); err != nil {
		if err == sql.ErrNoRows {
			return false, fmt.Errorf("quote not found: %d", ev.QuoteID)
		}
		return false, err
	}

	applied := false
	if ev.Success {
		target := current
		if newStatus != nil && *newStatus != current && statusIn(current, fromStatuses) {
			target = *newStatus
			applied = true
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE quotes SET status = $1, tracking_updated_at = NOW(), updated_at = NOW() WHERE id = $2",
			target, ev.QuoteID); err != nil {
			return false, fmt.Errorf("failed to apply tracking outcome: %w", err)
		}
		ev.OldStatus = &current
		if applied {
			ev.NewStatus = newStatus
		}
	}

	if err := insertTrackingEventTx(ctx, tx, ev); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return applied, nil
}

// ItemResults carries a lab's submitted results for one item
type ItemResults struct {
	Status       string
	TestResults  *string
	ReportURL    *string
	ReportFile   *string
	TestingNotes *string
}

// SubmitItemResultsTx records results for one item and, holding the quote
// row lock so concurrent completion checks serialize, completes the quote
// once every item is completed. Returns whether the quote completed.
func (s *Store) SubmitItemResultsTx(ctx context.Context, quoteID, itemID int64, res ItemResults,
	entryFn func(quoteCompleted bool) *models.ActivityLogEntry) (bool, error) {

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var quoteStatus string
	if err := tx.GetContext(ctx, &quoteStatus,
		"SELECT status FROM quotes WHERE id = $1 FOR UPDATE", quoteID); err != nil {
		if err == sql.ErrNoRows {
			return false, fmt.Errorf("quote not found: %d", quoteID)
		}
		return false, err
	}

	var completedAt *time.Time
	if res.Status == models.ItemStatusCompleted {
		now := time.Now()
		completedAt = &now
	}

	updated, err := tx.ExecContext(ctx, `
		UPDATE quote_items
		SET status = $1, test_results = $2, report_url = $3, report_file = $4,
		    testing_notes = $5, submitted_at = NOW(), completed_at = $6
		WHERE id = $7 AND quote_id = $8`,
		res.Status, res.TestResults, res.ReportURL, res.ReportFile,
		res.TestingNotes, completedAt, itemID, quoteID)
	if err != nil {
		return false, fmt.Errorf("failed to update item results: %w", err)
	}
	if n, _ := updated.RowsAffected(); n != 1 {
		return false, fmt.Errorf("quote item %d not found on quote %d", itemID, quoteID)
	}

	var incomplete int
	if err := tx.GetContext(ctx, &incomplete,
		"SELECT COUNT(*) FROM quote_items WHERE quote_id = $1 AND status <> $2",
		quoteID, models.ItemStatusCompleted); err != nil {
		return false, err
	}

	quoteCompleted := incomplete == 0 && quoteStatus == models.QuoteStatusTestingInProgress
	if quoteCompleted {
		if _, err := tx.ExecContext(ctx,
			"UPDATE quotes SET status = $1, updated_at = NOW() WHERE id = $2",
			models.QuoteStatusCompleted, quoteID); err != nil {
			return false, fmt.Errorf("failed to complete quote: %w", err)
		}
	}

	if err := insertActivityTx(ctx, tx, entryFn(quoteCompleted)); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return quoteCompleted, nil
}

// DuplicateQuoteTx creates a new draft from a source quote, copying items
// and additional-header data but stripping payment, shipping and pricing
// modifications. The source quote is only read, never mutated.
func (s *Store) DuplicateQuoteTx(ctx context.Context, sourceID int64, quoteNumber *string,
	entryFn func(newQuoteID int64, itemCount int) *models.ActivityLogEntry) (*models.Quote, error) {

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var src models.Quote
	if err := tx.GetContext(ctx, &src, "SELECT * FROM quotes WHERE id = $1", sourceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("quote not found: %d", sourceID)
		}
		return nil, err
	}

	var items []models.QuoteItem
	if err := tx.SelectContext(ctx, &items,
		"SELECT * FROM quote_items WHERE quote_id = $1 ORDER BY id", sourceID); err != nil {
		return nil, err
	}
	for i := range items {
		if err := items[i].ValidateHeaders(); err != nil {
			return nil, fmt.Errorf("quote item %d: %w", items[i].ID, err)
		}
	}

	dup := &models.Quote{
		RequesterID:    src.RequesterID,
		LabID:          src.LabID,
		Status:         models.QuoteStatusDraft,
		QuoteNumber:    quoteNumber,
		RequesterEmail: src.RequesterEmail,
		Notes:          src.Notes,
	}
	if err := tx.GetContext(ctx, dup, `
		INSERT INTO quotes (requester_id, lab_id, status, quote_number, requester_email, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		dup.RequesterID, dup.LabID, dup.Status, dup.QuoteNumber,
		dup.RequesterEmail, dup.Notes); err != nil {
		return nil, fmt.Errorf("failed to duplicate quote: %w", err)
	}

	for i := range items {
		copyItem := models.QuoteItem{
			QuoteID:                 dup.ID,
			ProductID:               items[i].ProductID,
			ProductName:             items[i].ProductName,
			ClientName:              items[i].ClientName,
			SampleName:              items[i].SampleName,
			Manufacturer:            items[i].Manufacturer,
			BatchNumber:             items[i].BatchNumber,
			PriceCents:              items[i].PriceCents,
			AdditionalSamples:       items[i].AdditionalSamples,
			AdditionalReportHeaders: items[i].AdditionalReportHeaders,
			AdditionalHeadersData:   items[i].AdditionalHeadersData,
			Status:                  models.ItemStatusPending,
		}
		if err := insertItemTx(ctx, tx, &copyItem); err != nil {
			return nil, err
		}
	}

	if err := insertActivityTx(ctx, tx, entryFn(dup.ID, len(items))); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return dup, nil
}

// GetStaleTrackedQuotes returns quotes with an active tracking number whose
// last sync is absent or older than the cutoff
func (s *Store) GetStaleTrackedQuotes(ctx context.Context, cutoff time.Time) ([]models.Quote, error) {
	var quotes []models.Quote
	err := s.db.SelectContext(ctx, &quotes, `
		SELECT * FROM quotes
		WHERE tracking_number IS NOT NULL
		  AND status IN ($1, $2)
		  AND (tracking_updated_at IS NULL OR tracking_updated_at < $3)
		ORDER BY id`,
		models.QuoteStatusPaidAwaitingShip, models.QuoteStatusInTransit, cutoff)
	return quotes, err
}

// LogActivity appends a standalone activity entry (denied edit attempts,
// email outcomes after the primary mutation committed)
func (s *Store) LogActivity(ctx context.Context, entry *models.ActivityLogEntry) error {
	return s.db.GetContext(ctx, &entry.ID, `
		INSERT INTO activity_log (quote_id, actor_id, actor_role, activity_type, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		entry.QuoteID, entry.ActorID, entry.ActorRole, entry.ActivityType,
		entry.Description, entry.Metadata)
}

// ListActivity retrieves the audit trail for a quote, newest first
func (s *Store) ListActivity(ctx context.Context, quoteID int64) ([]models.ActivityLogEntry, error) {
	var entries []models.ActivityLogEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM activity_log WHERE quote_id = $1 ORDER BY created_at DESC", quoteID)
	return entries, err
}

// ListTrackingEvents retrieves the tracking history for a quote
func (s *Store) ListTrackingEvents(ctx context.Context, quoteID int64) ([]models.TrackingEvent, error) {
	var events []models.TrackingEvent
	err := s.db.SelectContext(ctx, &events,
		"SELECT * FROM tracking_events WHERE quote_id = $1 ORDER BY created_at DESC", quoteID)
	return events, err
}

func insertItemTx(ctx context.Context, tx *sqlx.Tx, item *models.QuoteItem) error {
	if item.Status == "" {
		item.Status = models.ItemStatusPending
	}
	query := `
		INSERT INTO quote_items (quote_id, product_id, product_name, client_name, sample_name,
			manufacturer, batch_number, price_cents, additional_samples,
			additional_report_headers, additional_headers_data, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	if err := tx.GetContext(ctx, item, query,
		item.QuoteID, item.ProductID, item.ProductName, item.ClientName, item.SampleName,
		item.Manufacturer, item.BatchNumber, item.PriceCents, item.AdditionalSamples,
		item.AdditionalReportHeaders, item.AdditionalHeadersData, item.Status); err != nil {
		return fmt.Errorf("failed to create quote item: %w", err)
	}
	return nil
}

func insertActivityTx(ctx context.Context, tx *sqlx.Tx, entry *models.ActivityLogEntry) error {
	if err := tx.GetContext(ctx, &entry.ID, `
		INSERT INTO activity_log (quote_id, actor_id, actor_role, activity_type, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		entry.QuoteID, entry.ActorID, entry.ActorRole, entry.ActivityType,
		entry.Description, entry.Metadata); err != nil {
		return fmt.Errorf("failed to write activity entry: %w", err)
	}
	return nil
}

func insertTrackingEventTx(ctx context.Context, tx *sqlx.Tx, ev *models.TrackingEvent) error {
	if err := tx.GetContext(ctx, &ev.ID, `
		INSERT INTO tracking_events (quote_id, source, success, old_status, new_status, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		ev.QuoteID, ev.Source, ev.Success, ev.OldStatus, ev.NewStatus, ev.Message); err != nil {
		return fmt.Errorf("failed to write tracking event: %w", err)
	}
	return nil
}

func statusIn(status string, set []string) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
