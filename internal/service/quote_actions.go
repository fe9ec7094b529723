package service

import (
	"context"
	"fmt"
	"time"

	"quote-service/internal/lifecycle"
	"quote-service/internal/models"
	"quote-service/internal/pricing"
	"quote-service/internal/store"
	"quote-service/internal/templates"
	"quote-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ApproveRequest is a lab's approval decision. Any pricing modification,
// discount override or per-item price edit, routes the quote back through
// customer re-approval instead of straight to payment.
type ApproveRequest struct {
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	ItemPrices      map[int64]int64  `json:"item_prices,omitempty"`
}

// RecordPaymentRequest attaches payment info to a quote
type RecordPaymentRequest struct {
	Status         string     `json:"status" binding:"required"`
	AmountUSDCents *int64     `json:"amount_usd_cents,omitempty"`
	AmountCrypto   *string    `json:"amount_crypto,omitempty"`
	Date           *time.Time `json:"date,omitempty"`
	TransactionID  *string    `json:"transaction_id,omitempty"`
}

// AttachTrackingRequest attaches shipping info to a paid quote
type AttachTrackingRequest struct {
	TrackingNumber    string     `json:"tracking_number" binding:"required"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// ItemResultsRequest carries a lab's results for one item
type ItemResultsRequest struct {
	Status       string  `json:"status" binding:"required"`
	TestResults  *string `json:"test_results,omitempty"`
	ReportURL    *string `json:"report_url,omitempty"`
	ReportFile   *string `json:"report_file,omitempty"`
	TestingNotes *string `json:"testing_notes,omitempty"`
}

// SubmitToVendor sends a draft quote to its lab: quota is consumed, the
// pricing snapshot is taken, the vendor email is rendered and queued, and
// the quote moves to sent_to_vendor.
func (s *QuoteService) SubmitToVendor(ctx context.Context, id Identity, quoteID int64) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.SubmitToVendor")
	defer span.End()

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(id, quote) {
		return nil, models.ErrPermissionDenied
	}

	next, err := lifecycle.Next(quote.Status, lifecycle.EventSubmit, id.Actor)
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetQuoteItems(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, models.NewValidationError("items", "quote has no items")
	}

	lab, err := s.store.GetLabByID(ctx, quote.LabID)
	if err != nil {
		return nil, err
	}
	if lab.ContactEmail == nil || *lab.ContactEmail == "" {
		return nil, models.ErrNoLabContact
	}

	result, err := s.priceQuote(quote, items)
	if err != nil {
		return nil, err
	}

	ok, err := s.quota.CanSendItems(ctx, quote.RequesterID, len(items))
	if err != nil {
		return nil, fmt.Errorf("failed to check send quota: %w", err)
	}
	if !ok {
		util.QuoteActionsDenied.WithLabelValues("quota").Inc()
		return nil, models.ErrQuotaExceeded
	}

	entry := s.newEntry(id, quote.ID, models.ActivitySubmitted,
		fmt.Sprintf("Quote submitted to %s", lab.Name),
		models.NewMetadata(models.StatusChangeMetadata{OldStatus: quote.Status, NewStatus: next}))

	if err := s.store.TransitionStatusTx(ctx, quote.ID, quote.Status, next, entry); err != nil {
		// the quota was claimed for a submit that never happened; give it back
		if relErr := s.quota.ReleaseItems(ctx, quote.RequesterID, len(items)); relErr != nil {
			s.logger.Error("Failed to release quota after failed submit",
				zap.Int64("quote_id", quote.ID),
				zap.Error(relErr))
		}
		return nil, err
	}
	oldStatus := quote.Status
	quote.Status = next

	util.QuotesSubmittedTotal.Inc()
	s.logger.Info("Quote submitted to vendor",
		zap.Int64("quote_id", quote.ID),
		zap.Int64("lab_id", quote.LabID),
		zap.Int("items", len(items)),
		zap.Int64("grand_total_cents", result.GrandTotalCents))

	s.sendQuoteEmail(ctx, id, quote, items, result, lab, models.TemplateScopeVendorEmail, *lab.ContactEmail)

	submitted := &models.QuoteSubmittedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeQuoteSubmitted,
			Timestamp: time.Now(),
		},
		QuoteID:         quote.ID,
		LabID:           quote.LabID,
		ItemCount:       len(items),
		GrandTotalCents: result.GrandTotalCents,
	}
	if err := s.eventPublisher.PublishQuoteSubmitted(ctx, submitted); err != nil {
		s.logger.Error("Failed to publish quote submitted event", zap.Error(err))
	}
	s.publishStatus(ctx, id, quote.ID, oldStatus, next, models.EventTypeQuoteSubmitted)
	return quote, nil
}

// Approve records the lab's approval. Without pricing changes the quote goes
// straight to approved_payment_pending; with any change it parks in
// awaiting_customer_approval until the requester accepts or declines.
func (s *QuoteService) Approve(ctx context.Context, id Identity, quoteID int64, req *ApproveRequest) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.Approve")
	defer span.End()

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(id, quote) {
		return nil, models.ErrPermissionDenied
	}

	modified := req.DiscountPercent != nil || len(req.ItemPrices) > 0

	event := lifecycle.EventLabApprove
	if modified {
		event = lifecycle.EventLabApproveWithPricing
	}
	next, err := lifecycle.Next(quote.Status, event, id.Actor)
	if err != nil {
		return nil, err
	}

	if req.DiscountPercent != nil {
		if req.DiscountPercent.IsNegative() || req.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
			return nil, models.NewValidationError("discount_percent", "must be between 0 and 100")
		}
	}
	for itemID, price := range req.ItemPrices {
		if price < 0 {
			return nil, models.NewValidationError("item_prices",
				fmt.Sprintf("item %d: price must not be negative", itemID))
		}
	}

	oldStatus := quote.Status
	if modified {
		meta := models.PricingMetadata{
			ItemPricesEdited: len(req.ItemPrices) > 0,
			NeedsReapproval:  true,
		}
		override := decimal.NullDecimal{}
		if req.DiscountPercent != nil {
			override = decimal.NullDecimal{Decimal: *req.DiscountPercent, Valid: true}
			meta.DiscountPercent = req.DiscountPercent.String()
		}
		entry := s.newEntry(id, quote.ID, models.ActivityLabApproved,
			"Lab approved with pricing changes", models.NewMetadata(meta))
		if err := s.store.ApproveWithPricingTx(ctx, quote.ID, oldStatus, next, override, req.ItemPrices, entry); err != nil {
			return nil, err
		}
		if req.DiscountPercent != nil {
			quote.DiscountPercent = override
		}
	} else {
		entry := s.newEntry(id, quote.ID, models.ActivityLabApproved,
			"Lab approved quote",
			models.NewMetadata(models.StatusChangeMetadata{OldStatus: oldStatus, NewStatus: next}))
		if err := s.store.TransitionStatusTx(ctx, quote.ID, oldStatus, next, entry); err != nil {
			return nil, err
		}
	}
	quote.Status = next

	s.logger.Info("Quote approved by lab",
		zap.Int64("quote_id", quote.ID),
		zap.Bool("pricing_modified", modified))
	s.notifyRequester(ctx, id, quote)
	s.publishStatus(ctx, id, quote.ID, oldStatus, next, models.EventTypeQuoteApproved)
	return quote, nil
}

// notifyRequester renders the confirmation template against the quote's
// current pricing and queues it for the requester. A quote without a stored
// requester address is logged and skipped; nothing here fails the action.
func (s *QuoteService) notifyRequester(ctx context.Context, id Identity, quote *models.Quote) {
	if quote.RequesterEmail == nil || *quote.RequesterEmail == "" {
		s.logger.Warn("Quote has no requester email, skipping confirmation",
			zap.Int64("quote_id", quote.ID))
		return
	}

	items, err := s.store.GetQuoteItems(ctx, quote.ID)
	if err != nil {
		s.logEmailOutcome(ctx, id, quote.ID, *quote.RequesterEmail, "",
			fmt.Errorf("failed to load items for confirmation: %w", err))
		return
	}
	result, err := s.priceQuote(quote, items)
	if err != nil {
		s.logEmailOutcome(ctx, id, quote.ID, *quote.RequesterEmail, "",
			fmt.Errorf("failed to price confirmation: %w", err))
		return
	}
	lab, err := s.store.GetLabByID(ctx, quote.LabID)
	if err != nil {
		s.logEmailOutcome(ctx, id, quote.ID, *quote.RequesterEmail, "",
			fmt.Errorf("failed to load lab for confirmation: %w", err))
		return
	}

	s.sendQuoteEmail(ctx, id, quote, items, result, lab,
		models.TemplateScopeConfirmation, *quote.RequesterEmail)
}

// Reject records the lab's rejection; rejected is terminal
func (s *QuoteService) Reject(ctx context.Context, id Identity, quoteID int64, reason string) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.Reject")
	defer span.End()

	quote, err := s.transition(ctx, id, quoteID, lifecycle.EventLabReject,
		models.ActivityLabRejected, describeWithReason("Lab rejected quote", reason),
		models.EventTypeQuoteRejected)
	if err != nil {
		return nil, err
	}
	util.QuotesRejectedTotal.WithLabelValues("lab").Inc()
	return quote, nil
}

// AcceptPricing is the requester's acceptance of modified pricing
func (s *QuoteService) AcceptPricing(ctx context.Context, id Identity, quoteID int64) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.AcceptPricing")
	defer span.End()

	return s.transition(ctx, id, quoteID, lifecycle.EventAcceptPricing,
		models.ActivityPricingAccepted, "Modified pricing accepted",
		models.EventTypePricingAccepted)
}

// DeclinePricing is the requester's refusal of modified pricing; the quote
// ends rejected
func (s *QuoteService) DeclinePricing(ctx context.Context, id Identity, quoteID int64) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.DeclinePricing")
	defer span.End()

	quote, err := s.transition(ctx, id, quoteID, lifecycle.EventDeclinePricing,
		models.ActivityPricingDeclined, "Modified pricing declined",
		models.EventTypePricingDeclined)
	if err != nil {
		return nil, err
	}
	util.QuotesRejectedTotal.WithLabelValues("requester").Inc()
	return quote, nil
}

// BeginTesting moves a delivered quote into testing
func (s *QuoteService) BeginTesting(ctx context.Context, id Identity, quoteID int64) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.BeginTesting")
	defer span.End()

	return s.transition(ctx, id, quoteID, lifecycle.EventBeginTesting,
		models.ActivityTestingStarted, "Testing started",
		models.EventTypeTestingStarted)
}

// RecordPayment attaches payment fields to a quote. When the quote is in
// approved_payment_pending and carries no previous payment, it auto-advances
// to paid_awaiting_shipping; outside that state only an admin may touch
// payment fields.
func (s *QuoteService) RecordPayment(ctx context.Context, id Identity, quoteID int64, req *RecordPaymentRequest) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.RecordPayment")
	defer span.End()

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(id, quote) || id.Actor == lifecycle.ActorLab {
		return nil, models.ErrPermissionDenied
	}
	if quote.Status != models.QuoteStatusApprovedPayment && id.Actor != lifecycle.ActorAdmin {
		util.QuoteActionsDenied.WithLabelValues("locked").Inc()
		return nil, fmt.Errorf("%w: payment fields are admin-only in status %s",
			models.ErrQuoteLocked, quote.Status)
	}
	if req.AmountUSDCents != nil && *req.AmountUSDCents < 0 {
		return nil, models.NewValidationError("amount_usd_cents", "must not be negative")
	}

	upd := store.PaymentUpdate{
		Status:         req.Status,
		AmountUSDCents: req.AmountUSDCents,
		AmountCrypto:   req.AmountCrypto,
		Date:           req.Date,
		TransactionID:  req.TransactionID,
	}

	auto, newStatus, err := s.store.RecordPaymentTx(ctx, quoteID, upd,
		func(auto bool, oldStatus string) *models.ActivityLogEntry {
			meta := models.PaymentMetadata{
				PaymentStatus:  req.Status,
				PaymentDate:    req.Date,
				AutoTransition: auto,
			}
			if req.AmountUSDCents != nil {
				meta.AmountUSDCents = *req.AmountUSDCents
			}
			if req.AmountCrypto != nil {
				meta.AmountCrypto = *req.AmountCrypto
			}
			if req.TransactionID != nil {
				meta.TransactionID = *req.TransactionID
			}
			return s.newEntry(id, quoteID, models.ActivityPaymentRecorded,
				"Payment recorded", models.NewMetadata(meta))
		})
	if err != nil {
		return nil, err
	}

	util.PaymentsRecordedTotal.Inc()
	s.logger.Info("Payment recorded",
		zap.Int64("quote_id", quoteID),
		zap.Bool("auto_transition", auto),
		zap.String("new_status", newStatus))

	event := &models.PaymentRecordedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentRecorded,
			Timestamp: time.Now(),
		},
		QuoteID:        quoteID,
		AutoTransition: auto,
	}
	if req.AmountUSDCents != nil {
		event.AmountUSDCents = *req.AmountUSDCents
	}
	if req.TransactionID != nil {
		event.TransactionID = *req.TransactionID
	}
	if err := s.eventPublisher.PublishPaymentRecorded(ctx, event); err != nil {
		s.logger.Error("Failed to publish payment event", zap.Error(err))
	}

	return s.store.GetQuoteByID(ctx, quoteID)
}

// AttachTracking attaches a tracking number to a paid quote. From
// paid_awaiting_shipping it auto-advances to in_transit; an existing
// tracking number is never overwritten.
func (s *QuoteService) AttachTracking(ctx context.Context, id Identity, quoteID int64, req *AttachTrackingRequest) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.AttachTracking")
	defer span.End()

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(id, quote) || id.Actor == lifecycle.ActorLab {
		return nil, models.ErrPermissionDenied
	}
	if quote.Status != models.QuoteStatusPaidAwaitingShip && id.Actor != lifecycle.ActorAdmin {
		util.QuoteActionsDenied.WithLabelValues("locked").Inc()
		return nil, fmt.Errorf("%w: shipping info is admin-only in status %s",
			models.ErrQuoteLocked, quote.Status)
	}

	auto, newStatus, err := s.store.AttachTrackingTx(ctx, quoteID, req.TrackingNumber, req.EstimatedDelivery,
		func(auto bool, oldStatus string) *models.ActivityLogEntry {
			return s.newEntry(id, quoteID, models.ActivityShippingAdded,
				fmt.Sprintf("Tracking number %s added", req.TrackingNumber),
				models.NewMetadata(models.ShippingMetadata{
					TrackingNumber: req.TrackingNumber,
					AutoTransition: auto,
				}))
		})
	if err != nil {
		return nil, err
	}

	util.TrackingAttachedTotal.Inc()
	s.logger.Info("Tracking attached",
		zap.Int64("quote_id", quoteID),
		zap.Bool("auto_transition", auto),
		zap.String("new_status", newStatus))

	event := &models.TrackingAttachedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeTrackingAttached,
			Timestamp: time.Now(),
		},
		QuoteID:        quoteID,
		TrackingNumber: req.TrackingNumber,
		AutoTransition: auto,
	}
	if err := s.eventPublisher.PublishTrackingAttached(ctx, event); err != nil {
		s.logger.Error("Failed to publish tracking event", zap.Error(err))
	}

	return s.store.GetQuoteByID(ctx, quoteID)
}

// SubmitResults records a lab's results for one item. When the last item
// completes, the quote completes with it in the same transaction.
func (s *QuoteService) SubmitResults(ctx context.Context, id Identity, quoteID, itemID int64, req *ItemResultsRequest) (bool, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.SubmitResults")
	defer span.End()

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return false, err
	}
	if !s.canAccess(id, quote) || id.Actor == lifecycle.ActorRequester {
		return false, models.ErrPermissionDenied
	}
	if quote.Status != models.QuoteStatusTestingInProgress {
		return false, models.NewValidationError("status",
			fmt.Sprintf("results may only be submitted while testing is in progress, not %s", quote.Status))
	}
	if !validItemStatus(req.Status) {
		return false, models.NewValidationError("status", fmt.Sprintf("unknown item status %q", req.Status))
	}

	res := store.ItemResults{
		Status:       req.Status,
		TestResults:  req.TestResults,
		ReportURL:    req.ReportURL,
		ReportFile:   req.ReportFile,
		TestingNotes: req.TestingNotes,
	}

	completed, err := s.store.SubmitItemResultsTx(ctx, quoteID, itemID, res,
		func(quoteCompleted bool) *models.ActivityLogEntry {
			return s.newEntry(id, quoteID, models.ActivityResultsSubmitted,
				fmt.Sprintf("Results submitted for item %d", itemID),
				models.NewMetadata(models.ResultsMetadata{
					ItemID:         itemID,
					ItemStatus:     req.Status,
					QuoteCompleted: quoteCompleted,
				}))
		})
	if err != nil {
		return false, err
	}

	if completed {
		util.QuotesCompletedTotal.Inc()
		s.logger.Info("Quote completed", zap.Int64("quote_id", quoteID))
		s.publishStatus(ctx, id, quoteID,
			models.QuoteStatusTestingInProgress, models.QuoteStatusCompleted,
			models.EventTypeQuoteCompleted)
	}
	return completed, nil
}

// GetPricing returns the current pricing snapshot for a quote
func (s *QuoteService) GetPricing(ctx context.Context, id Identity, quoteID int64) (*pricing.Result, error) {
	quote, items, err := s.GetQuote(ctx, id, quoteID)
	if err != nil {
		return nil, err
	}
	return s.priceQuote(quote, items)
}

// ManualTrackingRefresh polls the carrier for one quote on the user's
// behalf, subject to the per-user cooldown
func (s *QuoteService) ManualTrackingRefresh(ctx context.Context, id Identity, quoteID int64) (*models.TrackingEvent, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.ManualTrackingRefresh")
	defer span.End()

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(id, quote) {
		return nil, models.ErrPermissionDenied
	}

	ev, err := s.gate.ManualRefresh(ctx, id.Actor, id.UserID, quoteID)
	if err != nil {
		return nil, err
	}

	meta := models.TrackingRefreshMetadata{
		Source:  ev.Source,
		Success: ev.Success,
	}
	if ev.Message != nil {
		meta.Message = *ev.Message
	}
	entry := s.newEntry(id, quoteID, models.ActivityTrackingRefresh,
		"Tracking refreshed manually", models.NewMetadata(meta))
	if err := s.store.LogActivity(ctx, entry); err != nil {
		s.logger.Error("Failed to log tracking refresh", zap.Error(err))
	}
	return ev, nil
}

// RefreshStaleTracking runs the once-per-session batched stale sweep for the
// calling user's session
func (s *QuoteService) RefreshStaleTracking(ctx context.Context, id Identity) (int, error) {
	return s.gate.RefreshStale(ctx, id.UserID)
}

// transition applies one lifecycle event with its single activity entry and
// publishes the status event
func (s *QuoteService) transition(ctx context.Context, id Identity, quoteID int64,
	ev lifecycle.Event, activityType, description, eventType string) (*models.Quote, error) {

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(id, quote) {
		return nil, models.ErrPermissionDenied
	}

	next, err := lifecycle.Next(quote.Status, ev, id.Actor)
	if err != nil {
		return nil, err
	}

	entry := s.newEntry(id, quote.ID, activityType, description,
		models.NewMetadata(models.StatusChangeMetadata{OldStatus: quote.Status, NewStatus: next}))

	if err := s.store.TransitionStatusTx(ctx, quote.ID, quote.Status, next, entry); err != nil {
		return nil, err
	}

	oldStatus := quote.Status
	quote.Status = next
	s.logger.Info("Quote transitioned",
		zap.Int64("quote_id", quote.ID),
		zap.String("event", string(ev)),
		zap.String("old_status", oldStatus),
		zap.String("new_status", next))
	s.publishStatus(ctx, id, quote.ID, oldStatus, next, eventType)
	return quote, nil
}

// priceQuote prices stored items, honoring a lab discount override when one
// has been set on the quote
func (s *QuoteService) priceQuote(quote *models.Quote, items []models.QuoteItem) (*pricing.Result, error) {
	lines := make([]pricing.Item, len(items))
	for i := range items {
		lines[i] = pricing.ItemFromModel(&items[i])
	}
	var override *decimal.Decimal
	if quote.DiscountPercent.Valid {
		d := quote.DiscountPercent.Decimal
		override = &d
	}
	return pricing.Price(lines, override)
}

// sendQuoteEmail renders the default template for the scope and queues the
// email. Failures are recorded in the audit trail but never fail the action
// that triggered the email.
func (s *QuoteService) sendQuoteEmail(ctx context.Context, id Identity, quote *models.Quote,
	items []models.QuoteItem, result *pricing.Result, lab *models.Lab, scope, recipient string) {

	tpl, err := s.store.GetDefaultTemplate(ctx, scope)
	if err != nil {
		s.logEmailOutcome(ctx, id, quote.ID, recipient, "",
			fmt.Errorf("no default template for scope %s: %w", scope, err))
		return
	}

	quoteNumber := ""
	if quote.QuoteNumber != nil {
		quoteNumber = *quote.QuoteNumber
	}
	rendered := templates.Render(tpl, templates.Variables{
		LabName:     lab.Name,
		QuoteNumber: quoteNumber,
		QuoteItems:  templates.BuildQuoteItemsBlock(items, result),
		Total:       pricing.FormatUSD(result.GrandTotalCents),
	})

	err = s.mailer.Send(ctx, quote.ID, recipient, rendered.Subject, rendered.Body)
	s.logEmailOutcome(ctx, id, quote.ID, recipient, rendered.Subject, err)
}

func (s *QuoteService) logEmailOutcome(ctx context.Context, id Identity, quoteID int64, recipient, subject string, sendErr error) {
	activityType := models.ActivityEmailSent
	description := fmt.Sprintf("Email queued for %s", recipient)
	meta := models.EmailMetadata{Recipient: recipient, Subject: subject}
	if sendErr != nil {
		activityType = models.ActivityEmailFailed
		description = fmt.Sprintf("Email to %s failed", recipient)
		meta.Error = sendErr.Error()
		s.logger.Error("Quote email failed",
			zap.Int64("quote_id", quoteID),
			zap.String("recipient", recipient),
			zap.Error(sendErr))
	}

	entry := s.newEntry(id, quoteID, activityType, description, models.NewMetadata(meta))
	if err := s.store.LogActivity(ctx, entry); err != nil {
		s.logger.Error("Failed to log email outcome", zap.Error(err))
	}
}

func describeWithReason(base, reason string) string {
	if reason == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, reason)
}

func validItemStatus(s string) bool {
	switch s {
	case models.ItemStatusPending, models.ItemStatusTestingInProgress,
		models.ItemStatusCompleted, models.ItemStatusFailed:
		return true
	}
	return false
}
