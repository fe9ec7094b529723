package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"quote-service/internal/lifecycle"
	"quote-service/internal/models"
	"quote-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	nextID     int64
	quotes     map[int64]*models.Quote
	items      map[int64][]*models.QuoteItem
	labs       map[int64]*models.Lab
	templates  map[string]*models.EmailTemplate
	activities []*models.ActivityLogEntry
}

func newMemStore() *memStore {
	return &memStore{
		nextID:    100,
		quotes:    map[int64]*models.Quote{},
		items:     map[int64][]*models.QuoteItem{},
		labs:      map[int64]*models.Lab{},
		templates: map[string]*models.EmailTemplate{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) record(entry *models.ActivityLogEntry) {
	entry.ID = m.id()
	m.activities = append(m.activities, entry)
}

func (m *memStore) entriesOfType(activityType string) []*models.ActivityLogEntry {
	var out []*models.ActivityLogEntry
	for _, e := range m.activities {
		if e.ActivityType == activityType {
			out = append(out, e)
		}
	}
	return out
}

func (m *memStore) CreateQuoteTx(ctx context.Context, quote *models.Quote, items []models.QuoteItem, entry *models.ActivityLogEntry) error {
	quote.ID = m.id()
	quote.CreatedAt = time.Now()
	m.quotes[quote.ID] = quote
	for i := range items {
		it := items[i]
		it.ID = m.id()
		it.QuoteID = quote.ID
		m.items[quote.ID] = append(m.items[quote.ID], &it)
	}
	entry.QuoteID = quote.ID
	m.record(entry)
	return nil
}

func (m *memStore) GetQuoteByID(ctx context.Context, id int64) (*models.Quote, error) {
	q, ok := m.quotes[id]
	if !ok {
		return nil, fmt.Errorf("quote not found: %d", id)
	}
	copied := *q
	return &copied, nil
}

func (m *memStore) GetQuoteItems(ctx context.Context, quoteID int64) ([]models.QuoteItem, error) {
	var out []models.QuoteItem
	for _, it := range m.items[quoteID] {
		if err := it.ValidateHeaders(); err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, nil
}

func (m *memStore) GetQuotesByRequester(ctx context.Context, requesterID int64) ([]models.Quote, error) {
	var out []models.Quote
	for _, q := range m.quotes {
		if q.RequesterID == requesterID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (m *memStore) GetQuotesByLab(ctx context.Context, labID int64) ([]models.Quote, error) {
	var out []models.Quote
	for _, q := range m.quotes {
		if q.LabID == labID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (m *memStore) AddItemTx(ctx context.Context, item *models.QuoteItem, entry *models.ActivityLogEntry) error {
	item.ID = m.id()
	m.items[item.QuoteID] = append(m.items[item.QuoteID], item)
	m.record(entry)
	return nil
}

func (m *memStore) UpdateQuoteEditableTx(ctx context.Context, q *models.Quote, entry *models.ActivityLogEntry) error {
	stored, ok := m.quotes[q.ID]
	if !ok {
		return fmt.Errorf("quote not found: %d", q.ID)
	}
	stored.QuoteNumber = q.QuoteNumber
	stored.LabQuoteNumber = q.LabQuoteNumber
	stored.Notes = q.Notes
	stored.EstimatedDelivery = q.EstimatedDelivery
	m.record(entry)
	return nil
}

func (m *memStore) TransitionStatusTx(ctx context.Context, quoteID int64, from, to string, entry *models.ActivityLogEntry) error {
	q, ok := m.quotes[quoteID]
	if !ok || q.Status != from {
		return fmt.Errorf("quote %d is no longer in status %s", quoteID, from)
	}
	q.Status = to
	m.record(entry)
	return nil
}

func (m *memStore) ApproveWithPricingTx(ctx context.Context, quoteID int64, from, to string,
	discountPercent decimal.NullDecimal, itemPrices map[int64]int64, entry *models.ActivityLogEntry) error {
	q, ok := m.quotes[quoteID]
	if !ok || q.Status != from {
		return fmt.Errorf("quote %d is no longer in status %s", quoteID, from)
	}
	q.Status = to
	q.DiscountPercent = discountPercent
	for itemID, price := range itemPrices {
		for _, it := range m.items[quoteID] {
			if it.ID == itemID {
				p := price
				it.PriceCents = &p
			}
		}
	}
	m.record(entry)
	return nil
}

func (m *memStore) RecordPaymentTx(ctx context.Context, quoteID int64, upd store.PaymentUpdate,
	entryFn func(auto bool, oldStatus string) *models.ActivityLogEntry) (bool, string, error) {
	q, ok := m.quotes[quoteID]
	if !ok {
		return false, "", fmt.Errorf("quote not found: %d", quoteID)
	}
	auto := !q.HasPayment() && q.Status == models.QuoteStatusApprovedPayment
	oldStatus := q.Status
	if auto {
		q.Status = models.QuoteStatusPaidAwaitingShip
	}
	q.PaymentStatus = &upd.Status
	q.PaymentAmountUSDCents = upd.AmountUSDCents
	q.PaymentAmountCrypto = upd.AmountCrypto
	q.PaymentDate = upd.Date
	q.TransactionID = upd.TransactionID
	m.record(entryFn(auto, oldStatus))
	return auto, q.Status, nil
}

func (m *memStore) AttachTrackingTx(ctx context.Context, quoteID int64, trackingNumber string,
	estimatedDelivery *time.Time,
	entryFn func(auto bool, oldStatus string) *models.ActivityLogEntry) (bool, string, error) {
	q, ok := m.quotes[quoteID]
	if !ok {
		return false, "", fmt.Errorf("quote not found: %d", quoteID)
	}
	if q.TrackingNumber != nil {
		return false, "", models.NewValidationError("tracking_number", "already set")
	}
	auto := q.Status == models.QuoteStatusPaidAwaitingShip
	oldStatus := q.Status
	if auto {
		q.Status = models.QuoteStatusInTransit
	}
	q.TrackingNumber = &trackingNumber
	q.EstimatedDelivery = estimatedDelivery
	m.record(entryFn(auto, oldStatus))
	return auto, q.Status, nil
}

func (m *memStore) SubmitItemResultsTx(ctx context.Context, quoteID, itemID int64, res store.ItemResults,
	entryFn func(quoteCompleted bool) *models.ActivityLogEntry) (bool, error) {
	q, ok := m.quotes[quoteID]
	if !ok {
		return false, fmt.Errorf("quote not found: %d", quoteID)
	}
	found := false
	for _, it := range m.items[quoteID] {
		if it.ID == itemID {
			it.Status = res.Status
			it.TestResults = res.TestResults
			found = true
		}
	}
	if !found {
		return false, fmt.Errorf("quote item %d not found on quote %d", itemID, quoteID)
	}
	incomplete := 0
	for _, it := range m.items[quoteID] {
		if it.Status != models.ItemStatusCompleted {
			incomplete++
		}
	}
	completed := incomplete == 0 && q.Status == models.QuoteStatusTestingInProgress
	if completed {
		q.Status = models.QuoteStatusCompleted
	}
	m.record(entryFn(completed))
	return completed, nil
}

func (m *memStore) DuplicateQuoteTx(ctx context.Context, sourceID int64, quoteNumber *string,
	entryFn func(newQuoteID int64, itemCount int) *models.ActivityLogEntry) (*models.Quote, error) {
	src, ok := m.quotes[sourceID]
	if !ok {
		return nil, fmt.Errorf("quote not found: %d", sourceID)
	}
	dup := &models.Quote{
		ID:             m.id(),
		RequesterID:    src.RequesterID,
		LabID:          src.LabID,
		Status:         models.QuoteStatusDraft,
		QuoteNumber:    quoteNumber,
		RequesterEmail: src.RequesterEmail,
		Notes:          src.Notes,
	}
	m.quotes[dup.ID] = dup
	for _, it := range m.items[sourceID] {
		copied := *it
		copied.ID = m.id()
		copied.QuoteID = dup.ID
		copied.Status = models.ItemStatusPending
		copied.TestResults = nil
		m.items[dup.ID] = append(m.items[dup.ID], &copied)
	}
	m.record(entryFn(dup.ID, len(m.items[dup.ID])))
	return dup, nil
}

func (m *memStore) GetLabByID(ctx context.Context, id int64) (*models.Lab, error) {
	lab, ok := m.labs[id]
	if !ok {
		return nil, fmt.Errorf("lab not found: %d", id)
	}
	return lab, nil
}

func (m *memStore) GetDefaultTemplate(ctx context.Context, scope string) (*models.EmailTemplate, error) {
	tpl, ok := m.templates[scope]
	if !ok {
		return nil, fmt.Errorf("no default template for scope %s", scope)
	}
	return tpl, nil
}

func (m *memStore) LogActivity(ctx context.Context, entry *models.ActivityLogEntry) error {
	m.record(entry)
	return nil
}

func (m *memStore) ListActivity(ctx context.Context, quoteID int64) ([]models.ActivityLogEntry, error) {
	var out []models.ActivityLogEntry
	for _, e := range m.activities {
		if e.QuoteID == quoteID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) ListTrackingEvents(ctx context.Context, quoteID int64) ([]models.TrackingEvent, error) {
	return nil, nil
}

type fakeQuota struct {
	allow    bool
	consumed int
	released int
}

func (f *fakeQuota) CanSendItems(ctx context.Context, userID int64, count int) (bool, error) {
	if !f.allow {
		return false, nil
	}
	f.consumed += count
	return true, nil
}

func (f *fakeQuota) ReleaseItems(ctx context.Context, userID int64, count int) error {
	f.consumed -= count
	f.released += count
	return nil
}

func (f *fakeQuota) GetRemainingItems(ctx context.Context, userID int64) (int, error) {
	return 50 - f.consumed, nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, quoteID int64, recipient, subject, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, recipient)
	return nil
}

type fakeGate struct {
	refreshes int
	sweeps    int
}

func (f *fakeGate) ManualRefresh(ctx context.Context, actor lifecycle.Actor, userID, quoteID int64) (*models.TrackingEvent, error) {
	f.refreshes++
	return &models.TrackingEvent{QuoteID: quoteID, Source: models.TrackingSourceManual, Success: true}, nil
}

func (f *fakeGate) RefreshStale(ctx context.Context, sessionUserID int64) (int, error) {
	f.sweeps++
	return 0, nil
}

type fakeSink struct {
	published []string
}

func (f *fakeSink) PublishQuoteStatus(ctx context.Context, ev *models.QuoteStatusEvent) error {
	f.published = append(f.published, ev.EventType)
	return nil
}
func (f *fakeSink) PublishQuoteSubmitted(ctx context.Context, ev *models.QuoteSubmittedEvent) error {
	f.published = append(f.published, ev.EventType)
	return nil
}
func (f *fakeSink) PublishPaymentRecorded(ctx context.Context, ev *models.PaymentRecordedEvent) error {
	f.published = append(f.published, ev.EventType)
	return nil
}
func (f *fakeSink) PublishTrackingAttached(ctx context.Context, ev *models.TrackingAttachedEvent) error {
	f.published = append(f.published, ev.EventType)
	return nil
}

type fixture struct {
	svc    *QuoteService
	store  *memStore
	quota  *fakeQuota
	gate   *fakeGate
	mailer *fakeMailer
	sink   *fakeSink
}

func newFixture() *fixture {
	st := newMemStore()
	labEmail := "lab@example.com"
	st.labs[1] = &models.Lab{ID: 1, Name: "Janoshik", ContactEmail: &labEmail}
	st.labs[2] = &models.Lab{ID: 2, Name: "NoContact Labs"}
	st.templates[models.TemplateScopeVendorEmail] = &models.EmailTemplate{
		Scope:   models.TemplateScopeVendorEmail,
		Subject: "Quote {{quote_number}}",
		Body:    "Dear {{lab_name}}, total {{total}}: {{quote_items}}",
	}
	st.templates[models.TemplateScopeConfirmation] = &models.EmailTemplate{
		Scope:   models.TemplateScopeConfirmation,
		Subject: "Your quote {{quote_number}} was approved",
		Body:    "{{lab_name}} approved your quote, total {{total}}",
	}

	quota := &fakeQuota{allow: true}
	gate := &fakeGate{}
	mailer := &fakeMailer{}
	sink := &fakeSink{}
	return &fixture{
		svc:    NewQuoteService(st, quota, gate, mailer, sink),
		store:  st,
		quota:  quota,
		gate:   gate,
		mailer: mailer,
		sink:   sink,
	}
}

var (
	requester = Identity{UserID: 7, Actor: lifecycle.ActorRequester, Email: "buyer@example.com"}
	labActor  = Identity{UserID: 20, Actor: lifecycle.ActorLab, LabID: 1}
	admin     = Identity{UserID: 1, Actor: lifecycle.ActorAdmin}
)

func (f *fixture) seedQuote(t *testing.T, status string, itemCount int) *models.Quote {
	t.Helper()
	req := &CreateQuoteRequest{LabID: 1, Items: make([]QuoteItemRequest, 0, itemCount)}
	for i := 0; i < itemCount; i++ {
		price := int64(25000)
		req.Items = append(req.Items, QuoteItemRequest{
			ProductID:   int64(i + 1),
			ProductName: "Tirzepatide",
			PriceCents:  &price,
		})
	}
	quote, err := f.svc.CreateQuote(context.Background(), requester, req)
	require.NoError(t, err)
	f.store.quotes[quote.ID].Status = status
	return quote
}

func TestCreateQuote(t *testing.T) {
	f := newFixture()

	price := int64(25000)
	quote, err := f.svc.CreateQuote(context.Background(), requester, &CreateQuoteRequest{
		LabID: 1,
		Items: []QuoteItemRequest{{ProductID: 1, ProductName: "Tirzepatide", PriceCents: &price}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.QuoteStatusDraft, quote.Status)
	assert.NotNil(t, quote.QuoteNumber)
	require.Len(t, f.store.entriesOfType(models.ActivityCreated), 1)
	assert.Equal(t, []string{models.EventTypeQuoteCreated}, f.sink.published)
}

func TestCreateQuoteHeaderMismatch(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateQuote(context.Background(), requester, &CreateQuoteRequest{
		LabID: 1,
		Items: []QuoteItemRequest{{
			ProductID:               1,
			ProductName:             "Tirzepatide",
			AdditionalReportHeaders: 2,
			AdditionalHeadersData:   []models.AdditionalHeaderRecord{{ClientName: "only one"}},
		}},
	})
	assert.True(t, models.IsValidation(err))
	assert.Empty(t, f.store.activities, "nothing may be written on validation failure")
}

func TestUpdateQuoteLockedForRequester(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusInTransit, 1)

	notes := "changed"
	_, err := f.svc.UpdateQuote(context.Background(), requester, quote.ID, &UpdateQuoteRequest{Notes: &notes})
	assert.ErrorIs(t, err, models.ErrQuoteLocked)

	// the denied attempt is audited
	denied := f.store.entriesOfType(models.ActivityEditDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, quote.ID, denied[0].QuoteID)

	// and the quote is untouched
	assert.NotEqual(t, "changed", f.store.quotes[quote.ID].Notes)
}

func TestUpdateQuoteLockedAdminOverride(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusInTransit, 1)

	notes := "admin fix"
	_, err := f.svc.UpdateQuote(context.Background(), admin, quote.ID, &UpdateQuoteRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "admin fix", f.store.quotes[quote.ID].Notes)
}

func TestUpdateQuoteDecisionPendingClosedToAdmin(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusSentToVendor, 1)

	notes := "meddling"
	_, err := f.svc.UpdateQuote(context.Background(), admin, quote.ID, &UpdateQuoteRequest{Notes: &notes})
	assert.ErrorIs(t, err, models.ErrQuoteLocked)
}

func TestSubmitToVendor(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusDraft, 2)

	submitted, err := f.svc.SubmitToVendor(context.Background(), requester, quote.ID)
	require.NoError(t, err)

	assert.Equal(t, models.QuoteStatusSentToVendor, submitted.Status)
	assert.Equal(t, 2, f.quota.consumed)
	assert.Equal(t, []string{"lab@example.com"}, f.mailer.sent)
	require.Len(t, f.store.entriesOfType(models.ActivitySubmitted), 1)
	require.Len(t, f.store.entriesOfType(models.ActivityEmailSent), 1)
	assert.Contains(t, f.sink.published, models.EventTypeQuoteSubmitted)
}

func TestSubmitToVendorNoLabContact(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusDraft, 1)
	f.store.quotes[quote.ID].LabID = 2

	_, err := f.svc.SubmitToVendor(context.Background(), requester, quote.ID)
	assert.ErrorIs(t, err, models.ErrNoLabContact)
	assert.Equal(t, models.QuoteStatusDraft, f.store.quotes[quote.ID].Status)
}

func TestSubmitToVendorQuotaExceeded(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusDraft, 1)
	f.quota.allow = false

	_, err := f.svc.SubmitToVendor(context.Background(), requester, quote.ID)
	assert.ErrorIs(t, err, models.ErrQuotaExceeded)
	assert.Equal(t, models.QuoteStatusDraft, f.store.quotes[quote.ID].Status)
}

func TestSubmitToVendorEmptyQuote(t *testing.T) {
	f := newFixture()
	quote := &models.Quote{RequesterID: requester.UserID, LabID: 1, Status: models.QuoteStatusDraft}
	require.NoError(t, f.store.CreateQuoteTx(context.Background(), quote, nil,
		&models.ActivityLogEntry{ActivityType: models.ActivityCreated}))

	_, err := f.svc.SubmitToVendor(context.Background(), requester, quote.ID)
	assert.True(t, models.IsValidation(err))
}

func TestSubmitToVendorEmailFailureNonFatal(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusDraft, 1)
	f.mailer.err = errors.New("smtp down")

	submitted, err := f.svc.SubmitToVendor(context.Background(), requester, quote.ID)
	require.NoError(t, err, "email failure must not fail the submission")
	assert.Equal(t, models.QuoteStatusSentToVendor, submitted.Status)
	require.Len(t, f.store.entriesOfType(models.ActivityEmailFailed), 1)
}

// contendedStore simulates a concurrent submit winning the guarded transition
type contendedStore struct {
	*memStore
}

func (c *contendedStore) TransitionStatusTx(ctx context.Context, quoteID int64, from, to string, entry *models.ActivityLogEntry) error {
	return fmt.Errorf("quote %d is no longer in status %s", quoteID, from)
}

func TestSubmitToVendorLostRaceReleasesQuota(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusDraft, 2)
	svc := NewQuoteService(&contendedStore{memStore: f.store}, f.quota, f.gate, f.mailer, f.sink)

	_, err := svc.SubmitToVendor(context.Background(), requester, quote.ID)
	assert.Error(t, err)

	// the claimed quota is handed back when the transition does not commit
	assert.Equal(t, 2, f.quota.released)
	assert.Equal(t, 0, f.quota.consumed)
	assert.Empty(t, f.mailer.sent)
	assert.Equal(t, models.QuoteStatusDraft, f.store.quotes[quote.ID].Status)
}

func TestApproveWithoutChanges(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusSentToVendor, 1)

	approved, err := f.svc.Approve(context.Background(), labActor, quote.ID, &ApproveRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusApprovedPayment, approved.Status)
	assert.False(t, f.store.quotes[quote.ID].DiscountPercent.Valid)
}

func TestApproveWithDiscountNeedsReapproval(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusSentToVendor, 1)

	discount := decimal.NewFromInt(15)
	approved, err := f.svc.Approve(context.Background(), labActor, quote.ID, &ApproveRequest{
		DiscountPercent: &discount,
	})
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusAwaitingApproval, approved.Status)
	assert.True(t, f.store.quotes[quote.ID].DiscountPercent.Valid)
}

func TestApproveWithItemPricesNeedsReapproval(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusSentToVendor, 1)
	itemID := f.store.items[quote.ID][0].ID

	approved, err := f.svc.Approve(context.Background(), labActor, quote.ID, &ApproveRequest{
		ItemPrices: map[int64]int64{itemID: 30000},
	})
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusAwaitingApproval, approved.Status)
	assert.Equal(t, int64(30000), *f.store.items[quote.ID][0].PriceCents)
}

func TestApproveWrongLab(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusSentToVendor, 1)

	other := Identity{UserID: 21, Actor: lifecycle.ActorLab, LabID: 99}
	_, err := f.svc.Approve(context.Background(), other, quote.ID, &ApproveRequest{})
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestApproveSendsConfirmationToRequester(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusSentToVendor, 1)

	discount := decimal.NewFromInt(10)
	_, err := f.svc.Approve(context.Background(), labActor, quote.ID, &ApproveRequest{
		DiscountPercent: &discount,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"buyer@example.com"}, f.mailer.sent)
	require.Len(t, f.store.entriesOfType(models.ActivityEmailSent), 1)
}

func TestApproveWithoutRequesterEmailSkipsConfirmation(t *testing.T) {
	f := newFixture()
	anonymous := Identity{UserID: 8, Actor: lifecycle.ActorRequester}
	quote, err := f.svc.CreateQuote(context.Background(), anonymous, &CreateQuoteRequest{
		LabID: 1,
		Items: []QuoteItemRequest{{ProductID: 1, ProductName: "Tirzepatide"}},
	})
	require.NoError(t, err)
	f.store.quotes[quote.ID].Status = models.QuoteStatusSentToVendor

	_, err = f.svc.Approve(context.Background(), labActor, quote.ID, &ApproveRequest{})
	require.NoError(t, err)

	assert.Empty(t, f.mailer.sent)
	assert.Empty(t, f.store.entriesOfType(models.ActivityEmailSent))
	assert.Empty(t, f.store.entriesOfType(models.ActivityEmailFailed))
}

func TestAcceptThenDeclinePricing(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusAwaitingApproval, 1)

	accepted, err := f.svc.AcceptPricing(context.Background(), requester, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusApprovedPayment, accepted.Status)

	declineQuote := f.seedQuote(t, models.QuoteStatusAwaitingApproval, 1)
	declined, err := f.svc.DeclinePricing(context.Background(), requester, declineQuote.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusRejected, declined.Status)
}

func TestRecordPaymentAutoTransition(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusApprovedPayment, 1)

	amount := int64(38000)
	updated, err := f.svc.RecordPayment(context.Background(), requester, quote.ID, &RecordPaymentRequest{
		Status:         "paid",
		AmountUSDCents: &amount,
	})
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusPaidAwaitingShip, updated.Status)
	require.Len(t, f.store.entriesOfType(models.ActivityPaymentRecorded), 1)
	assert.Contains(t, f.sink.published, models.EventTypePaymentRecorded)
}

func TestRecordPaymentLockedForNonAdmin(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusInTransit, 1)

	_, err := f.svc.RecordPayment(context.Background(), requester, quote.ID, &RecordPaymentRequest{Status: "paid"})
	assert.ErrorIs(t, err, models.ErrQuoteLocked)
}

func TestAttachTracking(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusPaidAwaitingShip, 1)

	updated, err := f.svc.AttachTracking(context.Background(), requester, quote.ID, &AttachTrackingRequest{
		TrackingNumber: "TN-777",
	})
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusInTransit, updated.Status)
	assert.Contains(t, f.sink.published, models.EventTypeTrackingAttached)

	// a second tracking number is refused
	_, err = f.svc.AttachTracking(context.Background(), admin, quote.ID, &AttachTrackingRequest{
		TrackingNumber: "TN-778",
	})
	assert.True(t, models.IsValidation(err))
}

func TestSubmitResultsCompletesQuote(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusTestingInProgress, 2)
	items := f.store.items[quote.ID]

	completed, err := f.svc.SubmitResults(context.Background(), labActor, quote.ID, items[0].ID, &ItemResultsRequest{
		Status: models.ItemStatusCompleted,
	})
	require.NoError(t, err)
	assert.False(t, completed, "one incomplete item must keep the quote open")
	assert.Equal(t, models.QuoteStatusTestingInProgress, f.store.quotes[quote.ID].Status)

	completed, err = f.svc.SubmitResults(context.Background(), labActor, quote.ID, items[1].ID, &ItemResultsRequest{
		Status: models.ItemStatusCompleted,
	})
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, models.QuoteStatusCompleted, f.store.quotes[quote.ID].Status)
	assert.Contains(t, f.sink.published, models.EventTypeQuoteCompleted)
}

func TestSubmitResultsOutsideTesting(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusInTransit, 1)
	itemID := f.store.items[quote.ID][0].ID

	_, err := f.svc.SubmitResults(context.Background(), labActor, quote.ID, itemID, &ItemResultsRequest{
		Status: models.ItemStatusCompleted,
	})
	assert.True(t, models.IsValidation(err))
}

func TestDuplicateStripsTransientState(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusCompleted, 2)
	src := f.store.quotes[quote.ID]
	paid := "paid"
	tn := "TN-1"
	src.PaymentStatus = &paid
	src.TrackingNumber = &tn
	src.DiscountPercent = decimal.NullDecimal{Decimal: decimal.NewFromInt(15), Valid: true}

	dup, err := f.svc.DuplicateQuote(context.Background(), requester, quote.ID)
	require.NoError(t, err)

	assert.NotEqual(t, quote.ID, dup.ID)
	assert.Equal(t, models.QuoteStatusDraft, dup.Status)
	assert.Nil(t, dup.PaymentStatus)
	assert.Nil(t, dup.TrackingNumber)
	assert.False(t, dup.DiscountPercent.Valid)
	assert.Len(t, f.store.items[dup.ID], 2)

	// the source is untouched
	assert.Equal(t, models.QuoteStatusCompleted, src.Status)
	assert.NotNil(t, src.PaymentStatus)

	require.Len(t, f.store.entriesOfType(models.ActivityDuplicated), 1)
}

func TestDuplicateDeniedForLab(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusCompleted, 1)

	_, err := f.svc.DuplicateQuote(context.Background(), labActor, quote.ID)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestGetQuoteAccessControl(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusDraft, 1)

	stranger := Identity{UserID: 999, Actor: lifecycle.ActorRequester}
	_, _, err := f.svc.GetQuote(context.Background(), stranger, quote.ID)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)

	_, _, err = f.svc.GetQuote(context.Background(), admin, quote.ID)
	assert.NoError(t, err)
}

func TestManualTrackingRefreshAudited(t *testing.T) {
	f := newFixture()
	quote := f.seedQuote(t, models.QuoteStatusInTransit, 1)

	ev, err := f.svc.ManualTrackingRefresh(context.Background(), requester, quote.ID)
	require.NoError(t, err)
	assert.True(t, ev.Success)
	assert.Equal(t, 1, f.gate.refreshes)
	require.Len(t, f.store.entriesOfType(models.ActivityTrackingRefresh), 1)
}
