package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sagikoren/agencyops-api/internal/application/event"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/infrastructure/payment"
	"github.com/sagikoren/agencyops-api/pkg/apperror"

	"github.com/google/uuid"
)

type quoteFixture struct {
	svc       *QuoteService
	quotes    *memQuoteRepo
	payments  *memPaymentRepo
	retainers *memRetainerRepo
	items     *memItemRepo
	products  *memProductRepo
	settings  *memSettingsRepo
	notifier  *memNotifier
	tenantID  uuid.UUID
	clientID  uuid.UUID
}

func newQuoteFixture(t *testing.T) *quoteFixture {
	t.Helper()
	quotes := newMemQuoteRepo()
	payments := &memPaymentRepo{}
	retainers := newMemRetainerRepo()
	items := newMemItemRepo()
	products := newMemProductRepo()
	settings := &memSettingsRepo{}
	clients := newMemClientRepo()
	notifier := &memNotifier{}

	paymentSvc := NewPaymentService(payments, settings, clients,
		payment.NewFactory(time.Second), nil, notifier, zap.NewNop())
	svc := NewQuoteService(quotes, clients, items, products, retainers, settings,
		paymentSvc, notifier, zap.NewNop(), "ILS", 1700)

	return &quoteFixture{
		svc:       svc,
		quotes:    quotes,
		payments:  payments,
		retainers: retainers,
		items:     items,
		products:  products,
		settings:  settings,
		notifier:  notifier,
		tenantID:  uuid.New(),
		clientID:  clients.add("Studio Negev", "office@negev.co.il"),
	}
}

func (f *quoteFixture) catalogItem(t *testing.T, name string, unitPrice int64, priceType enum.PriceType) *entity.Item {
	t.Helper()
	item := &entity.Item{
		TenantID:  f.tenantID,
		Name:      name,
		UnitPrice: unitPrice,
		Currency:  "ILS",
		PriceType: priceType,
		IsActive:  true,
	}
	require.NoError(t, f.items.Create(context.Background(), item))
	return item
}

func priceOf(amount int64) *int64 { return &amount }

func TestCreateQuoteFreezesCatalogPrices(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	item := f.catalogItem(t, "Design hour", 45000, enum.PriceTypeHourly)
	product := &entity.Product{
		TenantID:      f.tenantID,
		Name:          "Landing page package",
		ComputedPrice: 520000,
		Currency:      "ILS",
		IsActive:      true,
	}
	require.NoError(t, f.products.Create(ctx, product))

	quote, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID: f.tenantID,
		Title:    "Site relaunch",
		ClientID: &f.clientID,
		LineItems: []LineItemInput{
			{ItemID: &item.ID, Quantity: 10},
			{ProductID: &product.ID, Quantity: 1},
			{Name: "Kickoff workshop", Quantity: 1, UnitPrice: priceOf(80000)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), quote.QuoteNumber)
	assert.Equal(t, enum.QuoteStatusDraft, quote.Status)
	assert.Equal(t, int64(1700), quote.VATRateBasisPoints)
	require.Len(t, quote.LineItems, 3)

	hourly := quote.LineItems[0]
	assert.Equal(t, "Design hour", hourly.Name)
	assert.Equal(t, enum.PriceTypeHourly, hourly.PriceType)
	assert.Equal(t, int64(45000), hourly.UnitPrice)
	assert.Equal(t, int64(450000), hourly.LineTotal)

	packaged := quote.LineItems[1]
	assert.Equal(t, "Landing page package", packaged.Name)
	assert.Equal(t, int64(520000), packaged.UnitPrice)

	freeform := quote.LineItems[2]
	assert.Equal(t, enum.PriceTypeFixed, freeform.PriceType)
	assert.Equal(t, int64(80000), freeform.LineTotal)

	// 450000 + 520000 + 80000 = 1050000, plus 17% VAT.
	assert.Equal(t, int64(1050000), quote.Subtotal)
	assert.Equal(t, int64(178500), quote.VATAmount)
	assert.Equal(t, int64(1228500), quote.TotalAmount)

	// Repricing the item later never touches the frozen line.
	item.UnitPrice = 60000
	require.NoError(t, f.items.Update(ctx, item))
	reloaded, err := f.svc.GetQuote(ctx, f.tenantID, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(45000), reloaded.LineItems[0].UnitPrice)
}

func TestCreateQuoteFreeFormLineValidation(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID:  f.tenantID,
		Title:     "Quote",
		LineItems: []LineItemInput{{Quantity: 1, UnitPrice: priceOf(1000)}},
	})
	assert.Error(t, err, "free-form line needs a name")

	_, err = f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID:  f.tenantID,
		Title:     "Quote",
		LineItems: []LineItemInput{{Name: "Workshop", Quantity: 1}},
	})
	assert.Error(t, err, "free-form line needs a price")

	_, err = f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID:  f.tenantID,
		Title:     "Quote",
		LineItems: []LineItemInput{{Name: "Workshop", Quantity: 0, UnitPrice: priceOf(1000)}},
	})
	assert.Error(t, err, "quantity below one")
}

func TestQuoteNumbersAdvancePerTenant(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{TenantID: f.tenantID, Title: "First"})
	require.NoError(t, err)
	second, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{TenantID: f.tenantID, Title: "Second"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.QuoteNumber)
	assert.Equal(t, int64(2), second.QuoteNumber)

	other, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{TenantID: uuid.New(), Title: "Elsewhere"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.QuoteNumber, "numbering is per tenant")
}

func (f *quoteFixture) sentQuote(t *testing.T, lines []LineItemInput) *entity.Quote {
	t.Helper()
	ctx := context.Background()
	quote, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID:  f.tenantID,
		Title:     "Retainer deal",
		ClientID:  &f.clientID,
		LineItems: lines,
	})
	require.NoError(t, err)
	quote, err = f.svc.Submit(ctx, f.tenantID, quote.ID)
	require.NoError(t, err)
	return quote
}

func TestApproveFansOutBillingObligations(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	monthly := enum.PriceTypeMonthly
	quote := f.sentQuote(t, []LineItemInput{
		{Name: "Build", Quantity: 1, UnitPrice: priceOf(1000000)},
		{Name: "Maintenance", Quantity: 1, UnitPrice: priceOf(300000), PriceType: &monthly},
	})

	approved, err := f.svc.Approve(ctx, f.tenantID, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.QuoteStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)

	// One-off portion: 1000000 + 17% VAT.
	require.Len(t, f.payments.payments, 1)
	p := f.payments.payments[0]
	assert.Equal(t, int64(1170000), p.Amount)
	assert.Equal(t, enum.PaymentStatusPending, p.Status)
	require.NotNil(t, p.QuoteID)
	assert.Equal(t, quote.ID, *p.QuoteID)
	assert.Contains(t, p.Description, "Quote #1")

	// Monthly portion becomes an auto-renewing retainer at its gross amount.
	active, err := f.retainers.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	r := active[0]
	assert.Equal(t, int64(351000), r.Amount)
	assert.Equal(t, enum.FrequencyMonthly, r.Frequency)
	assert.True(t, r.AutoRenew)
	require.NotNil(t, r.QuoteID)
	assert.Equal(t, quote.ID, *r.QuoteID)

	assert.Len(t, f.notifier.ofType(event.QuoteSent), 1)
	assert.Len(t, f.notifier.ofType(event.QuoteApproved), 1)
}

func TestApprovePurelyMonthlyQuoteCreatesNoPayment(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	monthly := enum.PriceTypeMonthly
	quote := f.sentQuote(t, []LineItemInput{
		{Name: "Ongoing SEO", Quantity: 1, UnitPrice: priceOf(250000), PriceType: &monthly},
	})

	_, err := f.svc.Approve(ctx, f.tenantID, quote.ID)
	require.NoError(t, err)

	assert.Empty(t, f.payments.payments)
	active, err := f.retainers.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestFanOutPortionsSumToQuoteTotal(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	// 100050 + 100050 at 17%: VAT on each portion alone rounds up half an
	// agora, so naive per-portion grossing would overshoot the quote total
	// by one minor unit.
	monthly := enum.PriceTypeMonthly
	quote := f.sentQuote(t, []LineItemInput{
		{Name: "Setup", Quantity: 1, UnitPrice: priceOf(100050)},
		{Name: "Care plan", Quantity: 1, UnitPrice: priceOf(100050), PriceType: &monthly},
	})
	require.Equal(t, int64(234117), quote.TotalAmount)

	_, err := f.svc.Approve(ctx, f.tenantID, quote.ID)
	require.NoError(t, err)

	active, err := f.retainers.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Len(t, f.payments.payments, 1)

	// The recurring gross keeps its own single rounding; the one-off
	// payment absorbs the difference.
	assert.Equal(t, int64(117059), active[0].Amount)
	assert.Equal(t, int64(117058), f.payments.payments[0].Amount)
	assert.Equal(t, quote.TotalAmount, active[0].Amount+f.payments.payments[0].Amount)
}

func TestApprovalSurvivesFanOutFailure(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	quote := f.sentQuote(t, []LineItemInput{
		{Name: "Build", Quantity: 1, UnitPrice: priceOf(1000000)},
	})

	f.payments.failCreates = 1
	f.payments.failErr = assert.AnError

	returned, err := f.svc.Approve(ctx, f.tenantID, quote.ID)
	assert.Error(t, err)
	require.NotNil(t, returned, "the committed approval is still reported")
	assert.Equal(t, enum.QuoteStatusApproved, returned.Status)

	stored, err := f.svc.GetQuote(ctx, f.tenantID, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.QuoteStatusApproved, stored.Status, "approval is not unwound")
}

func TestDecisionsRequireSentState(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	draft, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID:  f.tenantID,
		Title:     "Draft",
		ClientID:  &f.clientID,
		LineItems: []LineItemInput{{Name: "Work", Quantity: 1, UnitPrice: priceOf(1000)}},
	})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.tenantID, draft.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	_, err = f.svc.Reject(ctx, f.tenantID, draft.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	sent := f.sentQuote(t, []LineItemInput{{Name: "Work", Quantity: 1, UnitPrice: priceOf(1000)}})
	rejected, err := f.svc.Reject(ctx, f.tenantID, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.QuoteStatusRejected, rejected.Status)

	// The decision is final; the losing side of a double decision errors.
	_, err = f.svc.Approve(ctx, f.tenantID, sent.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestSubmitValidatesQuoteContents(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	empty, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID: f.tenantID, Title: "Empty", ClientID: &f.clientID,
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.tenantID, empty.ID)
	assert.ErrorIs(t, err, apperror.ErrEmptyQuote)

	clientless, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID: f.tenantID, Title: "No client",
		LineItems: []LineItemInput{{Name: "Work", Quantity: 1, UnitPrice: priceOf(1000)}},
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.tenantID, clientless.ID)
	assert.ErrorIs(t, err, apperror.ErrMissingClient)
}

func TestDraftLockAfterSubmit(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	sent := f.sentQuote(t, []LineItemInput{{Name: "Work", Quantity: 1, UnitPrice: priceOf(1000)}})

	title := "New title"
	_, err := f.svc.UpdateQuote(ctx, f.tenantID, sent.ID, &UpdateQuoteInput{Title: &title})
	assert.ErrorIs(t, err, apperror.ErrQuoteLocked)

	_, err = f.svc.AddLineItem(ctx, f.tenantID, sent.ID, &LineItemInput{
		Name: "Extra", Quantity: 1, UnitPrice: priceOf(500),
	})
	assert.ErrorIs(t, err, apperror.ErrQuoteLocked)

	err = f.svc.DeleteQuote(ctx, f.tenantID, sent.ID)
	assert.ErrorIs(t, err, apperror.ErrQuoteLocked)
}

func TestConcurrentSubmitDoesNotLoseSentQuoteLines(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	draft, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID: f.tenantID, Title: "Draft", ClientID: &f.clientID,
		LineItems: []LineItemInput{{Name: "Base", Quantity: 1, UnitPrice: priceOf(100000)}},
	})
	require.NoError(t, err)

	// Another actor submits the quote after the edit has read it but
	// before the lines are saved. The status guard inside the save must
	// reject the edit instead of stripping a sent quote's lines.
	f.quotes.afterRead = func() {
		f.quotes.afterRead = nil
		f.quotes.quotes[draft.ID].Status = enum.QuoteStatusSent
	}

	_, err = f.svc.ReplaceLineItems(ctx, f.tenantID, draft.ID, []LineItemInput{
		{Name: "Swapped in", Quantity: 1, UnitPrice: priceOf(1)},
	})
	assert.ErrorIs(t, err, apperror.ErrStaleQuoteState)

	stored, err := f.quotes.GetWithLineItems(ctx, f.tenantID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.QuoteStatusSent, stored.Status)
	require.Len(t, stored.LineItems, 1)
	assert.Equal(t, "Base", stored.LineItems[0].Name)
	assert.Equal(t, int64(100000), stored.LineItems[0].UnitPrice)
}

func TestLineItemEditingRecomputesTotals(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	draft, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID: f.tenantID, Title: "Draft", ClientID: &f.clientID,
		LineItems: []LineItemInput{{Name: "Base", Quantity: 1, UnitPrice: priceOf(100000)}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(117000), draft.TotalAmount)

	draft, err = f.svc.AddLineItem(ctx, f.tenantID, draft.ID, &LineItemInput{
		Name: "Addon", Quantity: 2, UnitPrice: priceOf(25000),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150000), draft.Subtotal)
	assert.Equal(t, int64(175500), draft.TotalAmount)

	lineID := draft.LineItems[1].ID
	draft, err = f.svc.RemoveLineItem(ctx, f.tenantID, draft.ID, lineID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), draft.Subtotal)

	_, err = f.svc.RemoveLineItem(ctx, f.tenantID, draft.ID, uuid.New())
	assert.Error(t, err, "unknown line item")

	draft, err = f.svc.ReplaceLineItems(ctx, f.tenantID, draft.ID, []LineItemInput{
		{Name: "Only line", Quantity: 1, UnitPrice: priceOf(40000)},
	})
	require.NoError(t, err)
	require.Len(t, draft.LineItems, 1)
	assert.Equal(t, int64(40000), draft.Subtotal)
	assert.Equal(t, int64(46800), draft.TotalAmount)
}

func TestDuplicateClonesAsDraftWithCurrentVATRate(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	source := f.sentQuote(t, []LineItemInput{{Name: "Work", Quantity: 1, UnitPrice: priceOf(100000)}})
	approved, err := f.svc.Approve(ctx, f.tenantID, source.ID)
	require.NoError(t, err)

	// VAT changes between the original and the copy; the copy is a fresh
	// commercial document and picks up the current rate.
	f.settings.settings = &entity.PaymentSettings{
		TenantID:           f.tenantID,
		Provider:           enum.ProviderManual,
		Currency:           "ILS",
		VATRateBasisPoints: 1800,
	}

	clone, err := f.svc.Duplicate(ctx, f.tenantID, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.QuoteStatusDraft, clone.Status)
	assert.Equal(t, int64(2), clone.QuoteNumber)
	assert.Equal(t, int64(1800), clone.VATRateBasisPoints)
	assert.Nil(t, clone.ApprovedAt)

	require.Len(t, clone.LineItems, 1)
	assert.Equal(t, int64(100000), clone.LineItems[0].UnitPrice, "line prices stay frozen")
	assert.Equal(t, int64(118000), clone.TotalAmount)
}

func TestExpireDueSweepsOnlyOverdueSentQuotes(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	overdue := now.AddDate(0, 0, -1)
	stale, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID: f.tenantID, Title: "Stale", ClientID: &f.clientID,
		ValidUntil: &overdue,
		LineItems:  []LineItemInput{{Name: "Work", Quantity: 1, UnitPrice: priceOf(1000)}},
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.tenantID, stale.ID)
	require.NoError(t, err)

	future := now.AddDate(0, 1, 0)
	fresh, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID: f.tenantID, Title: "Fresh", ClientID: &f.clientID,
		ValidUntil: &future,
		LineItems:  []LineItemInput{{Name: "Work", Quantity: 1, UnitPrice: priceOf(1000)}},
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.tenantID, fresh.ID)
	require.NoError(t, err)

	open, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID: f.tenantID, Title: "Open-ended", ClientID: &f.clientID,
		LineItems: []LineItemInput{{Name: "Work", Quantity: 1, UnitPrice: priceOf(1000)}},
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.tenantID, open.ID)
	require.NoError(t, err)

	expired, err := f.svc.ExpireDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	staleStored, _ := f.svc.GetQuote(ctx, f.tenantID, stale.ID)
	assert.Equal(t, enum.QuoteStatusExpired, staleStored.Status)
	freshStored, _ := f.svc.GetQuote(ctx, f.tenantID, fresh.ID)
	assert.Equal(t, enum.QuoteStatusSent, freshStored.Status)
	openStored, _ := f.svc.GetQuote(ctx, f.tenantID, open.ID)
	assert.Equal(t, enum.QuoteStatusSent, openStored.Status)

	assert.Len(t, f.notifier.ofType(event.QuoteExpired), 1)

	// Idempotent: a second sweep finds nothing left to expire.
	expired, err = f.svc.ExpireDue(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestExpiredQuoteCannotBeDecided(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	overdue := now.AddDate(0, 0, -1)
	quote, err := f.svc.CreateQuote(ctx, &CreateQuoteInput{
		TenantID: f.tenantID, Title: "Old offer", ClientID: &f.clientID,
		ValidUntil: &overdue,
		LineItems:  []LineItemInput{{Name: "Work", Quantity: 1, UnitPrice: priceOf(1000)}},
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.tenantID, quote.ID)
	require.NoError(t, err)

	_, err = f.svc.ExpireDue(ctx, now)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.tenantID, quote.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}
