package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quote-service/internal/lifecycle"
	"quote-service/internal/models"
	"quote-service/internal/store"
	"quote-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Identity is the resolved actor for a request. Role and lab membership come
// from the identity collaborator outside this service.
type Identity struct {
	UserID int64
	Actor  lifecycle.Actor
	LabID  int64
	Email  string
}

// QuoteStore is the persistence surface the orchestrator needs. *store.Store
// satisfies it.
type QuoteStore interface {
	CreateQuoteTx(ctx context.Context, quote *models.Quote, items []models.QuoteItem, entry *models.ActivityLogEntry) error
	GetQuoteByID(ctx context.Context, id int64) (*models.Quote, error)
	GetQuoteItems(ctx context.Context, quoteID int64) ([]models.QuoteItem, error)
	GetQuotesByRequester(ctx context.Context, requesterID int64) ([]models.Quote, error)
	GetQuotesByLab(ctx context.Context, labID int64) ([]models.Quote, error)
	AddItemTx(ctx context.Context, item *models.QuoteItem, entry *models.ActivityLogEntry) error
	UpdateQuoteEditableTx(ctx context.Context, q *models.Quote, entry *models.ActivityLogEntry) error
	TransitionStatusTx(ctx context.Context, quoteID int64, from, to string, entry *models.ActivityLogEntry) error
	ApproveWithPricingTx(ctx context.Context, quoteID int64, from, to string, discountPercent decimal.NullDecimal, itemPrices map[int64]int64, entry *models.ActivityLogEntry) error
	RecordPaymentTx(ctx context.Context, quoteID int64, upd store.PaymentUpdate, entryFn func(auto bool, oldStatus string) *models.ActivityLogEntry) (bool, string, error)
	AttachTrackingTx(ctx context.Context, quoteID int64, trackingNumber string, estimatedDelivery *time.Time, entryFn func(auto bool, oldStatus string) *models.ActivityLogEntry) (bool, string, error)
	SubmitItemResultsTx(ctx context.Context, quoteID, itemID int64, res store.ItemResults, entryFn func(quoteCompleted bool) *models.ActivityLogEntry) (bool, error)
	DuplicateQuoteTx(ctx context.Context, sourceID int64, quoteNumber *string, entryFn func(newQuoteID int64, itemCount int) *models.ActivityLogEntry) (*models.Quote, error)
	GetLabByID(ctx context.Context, id int64) (*models.Lab, error)
	GetDefaultTemplate(ctx context.Context, scope string) (*models.EmailTemplate, error)
	LogActivity(ctx context.Context, entry *models.ActivityLogEntry) error
	ListActivity(ctx context.Context, quoteID int64) ([]models.ActivityLogEntry, error)
	ListTrackingEvents(ctx context.Context, quoteID int64) ([]models.TrackingEvent, error)
}

// Quota is the usage-quota collaborator contract
type Quota interface {
	CanSendItems(ctx context.Context, userID int64, count int) (bool, error)
	ReleaseItems(ctx context.Context, userID int64, count int) error
	GetRemainingItems(ctx context.Context, userID int64) (int, error)
}

// TrackingGate is the synchronization gate contract
type TrackingGate interface {
	ManualRefresh(ctx context.Context, actor lifecycle.Actor, userID, quoteID int64) (*models.TrackingEvent, error)
	RefreshStale(ctx context.Context, sessionUserID int64) (int, error)
}

// EventSink receives domain events after their mutation commits.
// *broker.EventPublisher satisfies it.
type EventSink interface {
	PublishQuoteStatus(ctx context.Context, event *models.QuoteStatusEvent) error
	PublishQuoteSubmitted(ctx context.Context, event *models.QuoteSubmittedEvent) error
	PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error
	PublishTrackingAttached(ctx context.Context, event *models.TrackingAttachedEvent) error
}

// QuoteService orchestrates every user-initiated quote action: permission
// check, mutation, pricing when money is involved, exactly one activity
// entry per state-changing action, and customer-facing notifications.
type QuoteService struct {
	store          QuoteStore
	quota          Quota
	gate           TrackingGate
	mailer         Mailer
	eventPublisher EventSink
	logger         *zap.Logger
}

// NewQuoteService creates the quote orchestrator
func NewQuoteService(
	store QuoteStore,
	quota Quota,
	gate TrackingGate,
	mailer Mailer,
	eventPublisher EventSink,
) *QuoteService {
	return &QuoteService{
		store:          store,
		quota:          quota,
		gate:           gate,
		mailer:         mailer,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// QuoteItemRequest is one line of a create/add-item request
type QuoteItemRequest struct {
	ProductID               int64                           `json:"product_id" binding:"required"`
	ProductName             string                          `json:"product_name" binding:"required"`
	ClientName              string                          `json:"client_name"`
	SampleName              string                          `json:"sample_name"`
	Manufacturer            string                          `json:"manufacturer"`
	BatchNumber             string                          `json:"batch_number"`
	PriceCents              *int64                          `json:"price_cents,omitempty"`
	AdditionalSamples       int                             `json:"additional_samples" binding:"min=0"`
	AdditionalReportHeaders int                             `json:"additional_report_headers" binding:"min=0"`
	AdditionalHeadersData   []models.AdditionalHeaderRecord `json:"additional_headers_data"`
}

// CreateQuoteRequest creates a draft quote
type CreateQuoteRequest struct {
	LabID int64              `json:"lab_id" binding:"required"`
	Notes string             `json:"notes"`
	Items []QuoteItemRequest `json:"items" binding:"required,min=1,dive"`
}

// UpdateQuoteRequest edits the freely editable quote fields
type UpdateQuoteRequest struct {
	QuoteNumber       *string    `json:"quote_number,omitempty"`
	LabQuoteNumber    *string    `json:"lab_quote_number,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// CreateQuote creates a new draft quote with its items
func (s *QuoteService) CreateQuote(ctx context.Context, id Identity, req *CreateQuoteRequest) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.CreateQuote")
	defer span.End()

	if id.Actor != lifecycle.ActorRequester && id.Actor != lifecycle.ActorAdmin {
		return nil, models.ErrPermissionDenied
	}

	items := make([]models.QuoteItem, 0, len(req.Items))
	for i := range req.Items {
		item, err := itemFromRequest(&req.Items[i])
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	number := generateQuoteNumber()
	quote := &models.Quote{
		RequesterID: id.UserID,
		LabID:       req.LabID,
		Status:      models.QuoteStatusDraft,
		QuoteNumber: &number,
		Notes:       req.Notes,
	}
	if id.Email != "" {
		email := id.Email
		quote.RequesterEmail = &email
	}

	entry := s.newEntry(id, 0, models.ActivityCreated, "Quote created",
		models.NewMetadata(models.StatusChangeMetadata{NewStatus: models.QuoteStatusDraft}))

	if err := s.store.CreateQuoteTx(ctx, quote, items, entry); err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}

	util.QuotesCreatedTotal.Inc()
	s.logger.Info("Quote created",
		zap.Int64("quote_id", quote.ID),
		zap.Int64("requester_id", id.UserID))

	s.publishStatus(ctx, id, quote.ID, "", models.QuoteStatusDraft, models.EventTypeQuoteCreated)
	return quote, nil
}

// AddItem appends a line to an editable quote
func (s *QuoteService) AddItem(ctx context.Context, id Identity, quoteID int64, req *QuoteItemRequest) (*models.QuoteItem, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.AddItem")
	defer span.End()

	quote, err := s.authorizeEdit(ctx, id, quoteID, []string{"items"})
	if err != nil {
		return nil, err
	}

	item, err := itemFromRequest(req)
	if err != nil {
		return nil, err
	}
	item.QuoteID = quote.ID

	entry := s.newEntry(id, quote.ID, models.ActivityUpdated,
		fmt.Sprintf("Item %q added", item.ProductName), nil)

	if err := s.store.AddItemTx(ctx, item, entry); err != nil {
		return nil, fmt.Errorf("failed to add item: %w", err)
	}
	return item, nil
}

// UpdateQuote applies a general field edit, honoring the locking rules
func (s *QuoteService) UpdateQuote(ctx context.Context, id Identity, quoteID int64, req *UpdateQuoteRequest) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.UpdateQuote")
	defer span.End()

	fields := editedFields(req)
	quote, err := s.authorizeEdit(ctx, id, quoteID, fields)
	if err != nil {
		return nil, err
	}

	if req.QuoteNumber != nil {
		quote.QuoteNumber = req.QuoteNumber
	}
	if req.LabQuoteNumber != nil {
		quote.LabQuoteNumber = req.LabQuoteNumber
	}
	if req.Notes != nil {
		quote.Notes = *req.Notes
	}
	if req.EstimatedDelivery != nil {
		quote.EstimatedDelivery = req.EstimatedDelivery
	}

	entry := s.newEntry(id, quote.ID, models.ActivityUpdated,
		"Quote details updated", nil)

	if err := s.store.UpdateQuoteEditableTx(ctx, quote, entry); err != nil {
		return nil, fmt.Errorf("failed to update quote: %w", err)
	}
	return quote, nil
}

// GetQuote retrieves a quote with its items for an authorized party
func (s *QuoteService) GetQuote(ctx context.Context, id Identity, quoteID int64) (*models.Quote, []models.QuoteItem, error) {
	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, nil, err
	}
	if !s.canAccess(id, quote) {
		return nil, nil, models.ErrPermissionDenied
	}

	items, err := s.store.GetQuoteItems(ctx, quoteID)
	if err != nil {
		return nil, nil, err
	}
	return quote, items, nil
}

// ListQuotes returns the quotes visible to the identity
func (s *QuoteService) ListQuotes(ctx context.Context, id Identity) ([]models.Quote, error) {
	if id.Actor == lifecycle.ActorLab {
		return s.store.GetQuotesByLab(ctx, id.LabID)
	}
	return s.store.GetQuotesByRequester(ctx, id.UserID)
}

// GetActivity returns the audit trail for a quote
func (s *QuoteService) GetActivity(ctx context.Context, id Identity, quoteID int64) ([]models.ActivityLogEntry, error) {
	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(id, quote) {
		return nil, models.ErrPermissionDenied
	}
	return s.store.ListActivity(ctx, quoteID)
}

// GetTrackingHistory returns the tracking events for a quote
func (s *QuoteService) GetTrackingHistory(ctx context.Context, id Identity, quoteID int64) ([]models.TrackingEvent, error) {
	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(id, quote) {
		return nil, models.ErrPermissionDenied
	}
	return s.store.ListTrackingEvents(ctx, quoteID)
}

// DuplicateQuote creates a fresh draft from an existing quote. Items and
// additional-header data are copied; payment, shipping and lab pricing are
// deliberately stripped, and the source quote is never mutated.
func (s *QuoteService) DuplicateQuote(ctx context.Context, id Identity, quoteID int64) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.DuplicateQuote")
	defer span.End()

	source, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(id, source) || id.Actor == lifecycle.ActorLab {
		return nil, models.ErrPermissionDenied
	}

	number := generateQuoteNumber()
	dup, err := s.store.DuplicateQuoteTx(ctx, quoteID, &number,
		func(newQuoteID int64, itemCount int) *models.ActivityLogEntry {
			return s.newEntry(id, newQuoteID, models.ActivityDuplicated,
				fmt.Sprintf("Duplicated from quote %d", quoteID),
				models.NewMetadata(models.DuplicationMetadata{
					SourceQuoteID: quoteID,
					ItemCount:     itemCount,
				}))
		})
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate quote: %w", err)
	}

	util.QuotesCreatedTotal.Inc()
	s.logger.Info("Quote duplicated",
		zap.Int64("source_quote_id", quoteID),
		zap.Int64("new_quote_id", dup.ID))
	return dup, nil
}

// authorizeEdit loads the quote and enforces the locking rules for a
// general edit. A locked-quote attempt by a non-admin is recorded as a
// denied-attempt audit entry before being rejected.
func (s *QuoteService) authorizeEdit(ctx context.Context, id Identity, quoteID int64, fields []string) (*models.Quote, error) {
	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(id, quote) {
		return nil, models.ErrPermissionDenied
	}

	if !lifecycle.CanEdit(quote.Status, id.Actor) {
		util.QuoteActionsDenied.WithLabelValues("locked").Inc()
		denied := s.newEntry(id, quote.ID, models.ActivityEditDenied,
			"Edit attempt on locked quote denied",
			models.NewMetadata(models.DeniedEditMetadata{Status: quote.Status, Fields: fields}))
		if err := s.store.LogActivity(ctx, denied); err != nil {
			s.logger.Error("Failed to log denied edit", zap.Error(err))
		}
		return nil, fmt.Errorf("%w: status %s", models.ErrQuoteLocked, quote.Status)
	}
	return quote, nil
}

func (s *QuoteService) canAccess(id Identity, quote *models.Quote) bool {
	switch id.Actor {
	case lifecycle.ActorAdmin:
		return true
	case lifecycle.ActorRequester:
		return quote.RequesterID == id.UserID
	case lifecycle.ActorLab:
		return quote.LabID == id.LabID
	default:
		return false
	}
}

func (s *QuoteService) newEntry(id Identity, quoteID int64, activityType, description string, metadata models.Metadata) *models.ActivityLogEntry {
	return &models.ActivityLogEntry{
		QuoteID:      quoteID,
		ActorID:      id.UserID,
		ActorRole:    string(id.Actor),
		ActivityType: activityType,
		Description:  description,
		Metadata:     metadata,
	}
}

func (s *QuoteService) publishStatus(ctx context.Context, id Identity, quoteID int64, oldStatus, newStatus, eventType string) {
	event := &models.QuoteStatusEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		QuoteID:   quoteID,
		ActorID:   id.UserID,
		ActorRole: string(id.Actor),
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
	if err := s.eventPublisher.PublishQuoteStatus(ctx, event); err != nil {
		s.logger.Error("Failed to publish quote status event",
			zap.Int64("quote_id", quoteID),
			zap.Error(err))
	}
}

func itemFromRequest(req *QuoteItemRequest) (*models.QuoteItem, error) {
	if strings.TrimSpace(req.ProductName) == "" {
		return nil, models.NewValidationError("product_name", "required")
	}
	if req.AdditionalSamples < 0 {
		return nil, models.NewValidationError("additional_samples", "must not be negative")
	}
	if req.AdditionalReportHeaders < 0 {
		return nil, models.NewValidationError("additional_report_headers", "must not be negative")
	}
	if len(req.AdditionalHeadersData) != req.AdditionalReportHeaders {
		return nil, models.NewValidationError("additional_headers_data",
			fmt.Sprintf("expected %d header records, got %d",
				req.AdditionalReportHeaders, len(req.AdditionalHeadersData)))
	}

	return &models.QuoteItem{
		ProductID:               req.ProductID,
		ProductName:             req.ProductName,
		ClientName:              req.ClientName,
		SampleName:              req.SampleName,
		Manufacturer:            req.Manufacturer,
		BatchNumber:             req.BatchNumber,
		PriceCents:              req.PriceCents,
		AdditionalSamples:       req.AdditionalSamples,
		AdditionalReportHeaders: req.AdditionalReportHeaders,
		AdditionalHeadersData:   models.AdditionalHeaderList(req.AdditionalHeadersData),
		Status:                  models.ItemStatusPending,
	}, nil
}

func editedFields(req *UpdateQuoteRequest) []string {
	var fields []string
	if req.QuoteNumber != nil {
		fields = append(fields, "quote_number")
	}
	if req.LabQuoteNumber != nil {
		fields = append(fields, "lab_quote_number")
	}
	if req.Notes != nil {
		fields = append(fields, "notes")
	}
	if req.EstimatedDelivery != nil {
		fields = append(fields, "estimated_delivery")
	}
	return fields
}

func generateQuoteNumber() string {
	return "Q-" + strings.ToUpper(uuid.New().String()[:8])
}
