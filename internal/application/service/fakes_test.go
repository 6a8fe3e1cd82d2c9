package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sagikoren/agencyops-api/internal/application/event"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/internal/infrastructure/payment"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
	"github.com/sagikoren/agencyops-api/pkg/pagination"
)

// In-memory repository doubles for service tests. They mirror the contracts
// the Postgres implementations provide, including the duplicate-period
// constraint and the compare-and-swap quote update.

type memNotifier struct {
	events []event.Event
}

func (n *memNotifier) Publish(_ context.Context, e event.Event) {
	n.events = append(n.events, e)
}

func (n *memNotifier) ofType(t event.Type) []event.Event {
	var out []event.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type memClientRepo struct {
	resolved map[uuid.UUID]*entity.ResolvedClient
}

func newMemClientRepo() *memClientRepo {
	return &memClientRepo{resolved: make(map[uuid.UUID]*entity.ResolvedClient)}
}

func (r *memClientRepo) add(name, billingEmail string) uuid.UUID {
	id := uuid.New()
	r.resolved[id] = &entity.ResolvedClient{ID: id, Name: name, BillingEmail: billingEmail}
	return id
}

func (r *memClientRepo) Create(_ context.Context, client *entity.Client) error {
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	email := ""
	if client.BillingEmail != nil {
		email = *client.BillingEmail
	}
	r.resolved[client.ID] = &entity.ResolvedClient{ID: client.ID, Name: client.Name, BillingEmail: email}
	return nil
}

func (r *memClientRepo) GetByID(_ context.Context, _, _ uuid.UUID) (*entity.Client, error) {
	return nil, nil
}

func (r *memClientRepo) Resolve(_ context.Context, _, id uuid.UUID, _ enum.ClientType) (*entity.ResolvedClient, error) {
	c, ok := r.resolved[id]
	if !ok {
		return nil, apperror.NewNotFoundError("Client")
	}
	return c, nil
}

func (r *memClientRepo) List(_ context.Context, _ uuid.UUID, _ *pagination.PaginationParams) ([]entity.Client, int64, error) {
	return nil, 0, nil
}

type memSettingsRepo struct {
	settings *entity.PaymentSettings
}

func (r *memSettingsRepo) GetByTenant(_ context.Context, _ uuid.UUID) (*entity.PaymentSettings, error) {
	return r.settings, nil
}

func (r *memSettingsRepo) Upsert(_ context.Context, settings *entity.PaymentSettings) error {
	r.settings = settings
	return nil
}

// stubProvider is a scripted payment.Provider for exercising capture and
// link paths without gateway I/O.
type stubProvider struct {
	providerType  enum.ProviderType
	link          *payment.PaymentLink
	linkErr       error
	captureResult *payment.ChargeResult
	captureErr    error
	webhookEvent  *payment.WebhookEvent
	captures      []string // tokens seen
	linkRefs      []string // client references seen at link creation
}

func (p *stubProvider) Type() enum.ProviderType { return p.providerType }

func (p *stubProvider) CreatePaymentLink(_ context.Context, _ money.Money, _, clientRef string) (*payment.PaymentLink, error) {
	p.linkRefs = append(p.linkRefs, clientRef)
	if p.linkErr != nil {
		return nil, p.linkErr
	}
	if p.link == nil {
		return nil, apperror.ErrProviderDisabled
	}
	return p.link, nil
}

func (p *stubProvider) CaptureCharge(_ context.Context, token string, _ money.Money) (*payment.ChargeResult, error) {
	p.captures = append(p.captures, token)
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	return p.captureResult, nil
}

func (p *stubProvider) VerifyWebhook(_ []byte, _ string) (*payment.WebhookEvent, error) {
	if p.webhookEvent == nil {
		return nil, apperror.ErrInvalidSignature
	}
	return p.webhookEvent, nil
}

// stubResolver hands back a fixed provider regardless of settings, standing in
// for payment.Factory.
type stubResolver struct {
	provider payment.Provider
	err      error
}

func (r *stubResolver) ForSettings(_ *entity.PaymentSettings) (payment.Provider, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.provider, nil
}

type memPaymentRepo struct {
	payments []*entity.OneTimePayment

	// failCreates makes the next N Create calls return failErr, simulating a
	// provider-side or storage-side insert failure.
	failCreates int
	failErr     error
}

func (r *memPaymentRepo) Create(_ context.Context, p *entity.OneTimePayment) error {
	if r.failCreates > 0 {
		r.failCreates--
		return r.failErr
	}
	for _, existing := range r.payments {
		if existing.RetainerID == nil || p.RetainerID == nil || *existing.RetainerID != *p.RetainerID {
			continue
		}
		if existing.PeriodStart == nil || p.PeriodStart == nil || !existing.PeriodStart.Equal(*p.PeriodStart) {
			continue
		}
		if existing.Status != enum.PaymentStatusFailed {
			return repository.ErrDuplicatePeriod
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.payments = append(r.payments, p)
	return nil
}

func (r *memPaymentRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*entity.OneTimePayment, error) {
	for _, p := range r.payments {
		if p.TenantID == tenantID && p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (r *memPaymentRepo) GetByProviderRef(_ context.Context, tenantID uuid.UUID, ref string) (*entity.OneTimePayment, error) {
	for _, p := range r.payments {
		if p.TenantID == tenantID && p.ProviderRef != nil && *p.ProviderRef == ref {
			return p, nil
		}
	}
	return nil, nil
}

func (r *memPaymentRepo) Update(_ context.Context, p *entity.OneTimePayment) error {
	for i, existing := range r.payments {
		if existing.ID == p.ID {
			r.payments[i] = p
			return nil
		}
	}
	return apperror.NewNotFoundError("Payment")
}

func (r *memPaymentRepo) List(_ context.Context, tenantID uuid.UUID, params *repository.PaymentFilterParams) ([]entity.OneTimePayment, int64, error) {
	var out []entity.OneTimePayment
	for _, p := range r.payments {
		if p.TenantID != tenantID {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (r *memPaymentRepo) LastPeriodStart(_ context.Context, retainerID uuid.UUID) (*time.Time, error) {
	var last *time.Time
	for _, p := range r.payments {
		if p.RetainerID == nil || *p.RetainerID != retainerID || p.PeriodStart == nil {
			continue
		}
		if p.Status == enum.PaymentStatusFailed {
			continue
		}
		if last == nil || p.PeriodStart.After(*last) {
			ps := *p.PeriodStart
			last = &ps
		}
	}
	return last, nil
}

func (r *memPaymentRepo) forRetainer(retainerID uuid.UUID) []*entity.OneTimePayment {
	var out []*entity.OneTimePayment
	for _, p := range r.payments {
		if p.RetainerID != nil && *p.RetainerID == retainerID {
			out = append(out, p)
		}
	}
	return out
}

type memRetainerRepo struct {
	retainers map[uuid.UUID]*entity.Retainer
}

func newMemRetainerRepo() *memRetainerRepo {
	return &memRetainerRepo{retainers: make(map[uuid.UUID]*entity.Retainer)}
}

func (r *memRetainerRepo) Create(_ context.Context, retainer *entity.Retainer) error {
	if retainer.ID == uuid.Nil {
		retainer.ID = uuid.New()
	}
	cp := *retainer
	r.retainers[retainer.ID] = &cp
	return nil
}

func (r *memRetainerRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*entity.Retainer, error) {
	retainer, ok := r.retainers[id]
	if !ok || retainer.TenantID != tenantID {
		return nil, nil
	}
	cp := *retainer
	return &cp, nil
}

func (r *memRetainerRepo) Update(_ context.Context, retainer *entity.Retainer) error {
	if _, ok := r.retainers[retainer.ID]; !ok {
		return apperror.NewNotFoundError("Retainer")
	}
	cp := *retainer
	r.retainers[retainer.ID] = &cp
	return nil
}

func (r *memRetainerRepo) Delete(_ context.Context, _, id uuid.UUID) error {
	delete(r.retainers, id)
	return nil
}

func (r *memRetainerRepo) List(_ context.Context, tenantID uuid.UUID, _ *repository.RetainerFilterParams) ([]entity.Retainer, int64, error) {
	var out []entity.Retainer
	for _, retainer := range r.retainers {
		if retainer.TenantID == tenantID {
			out = append(out, *retainer)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memRetainerRepo) ListActive(_ context.Context) ([]entity.Retainer, error) {
	var out []entity.Retainer
	for _, retainer := range r.retainers {
		if retainer.Status == enum.RetainerStatusActive {
			out = append(out, *retainer)
		}
	}
	return out, nil
}

type memQuoteRepo struct {
	quotes  map[uuid.UUID]*entity.Quote
	numbers map[uuid.UUID]int64

	// afterRead, when set, runs after a quote has been handed to the
	// caller. Tests use it to mutate the stored row between a service
	// read and the save that follows it.
	afterRead func()
}

func newMemQuoteRepo() *memQuoteRepo {
	return &memQuoteRepo{
		quotes:  make(map[uuid.UUID]*entity.Quote),
		numbers: make(map[uuid.UUID]int64),
	}
}

func (r *memQuoteRepo) Create(_ context.Context, quote *entity.Quote) error {
	if quote.ID == uuid.Nil {
		quote.ID = uuid.New()
	}
	for i := range quote.LineItems {
		if quote.LineItems[i].ID == uuid.Nil {
			quote.LineItems[i].ID = uuid.New()
		}
		quote.LineItems[i].QuoteID = quote.ID
	}
	r.quotes[quote.ID] = copyQuote(quote)
	return nil
}

func (r *memQuoteRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Quote, error) {
	return r.GetWithLineItems(ctx, tenantID, id)
}

func (r *memQuoteRepo) GetWithLineItems(_ context.Context, tenantID, id uuid.UUID) (*entity.Quote, error) {
	quote, ok := r.quotes[id]
	if !ok || quote.TenantID != tenantID {
		return nil, nil
	}
	cp := copyQuote(quote)
	if r.afterRead != nil {
		r.afterRead()
	}
	return cp, nil
}

func (r *memQuoteRepo) Update(_ context.Context, quote *entity.Quote, expectedStatus enum.QuoteStatus) error {
	stored, ok := r.quotes[quote.ID]
	if !ok {
		return apperror.NewNotFoundError("Quote")
	}
	if stored.Status != expectedStatus {
		return apperror.ErrStaleQuoteState
	}
	cp := copyQuote(quote)
	cp.LineItems = stored.LineItems
	r.quotes[quote.ID] = cp
	return nil
}

func (r *memQuoteRepo) Delete(_ context.Context, _, id uuid.UUID) error {
	delete(r.quotes, id)
	return nil
}

func (r *memQuoteRepo) List(_ context.Context, tenantID uuid.UUID, _ *repository.QuoteFilterParams) ([]entity.Quote, int64, error) {
	var out []entity.Quote
	for _, quote := range r.quotes {
		if quote.TenantID == tenantID {
			out = append(out, *copyQuote(quote))
		}
	}
	return out, int64(len(out)), nil
}

func (r *memQuoteRepo) ListExpirable(_ context.Context, now time.Time) ([]entity.Quote, error) {
	var out []entity.Quote
	for _, quote := range r.quotes {
		if quote.Status == enum.QuoteStatusSent && quote.ValidUntil != nil && now.After(*quote.ValidUntil) {
			out = append(out, *copyQuote(quote))
		}
	}
	return out, nil
}

func (r *memQuoteRepo) NextQuoteNumber(_ context.Context, tenantID uuid.UUID) (int64, error) {
	r.numbers[tenantID]++
	return r.numbers[tenantID], nil
}

// SaveDraft mirrors the transactional contract: the draft guard is checked
// before any line is replaced, so a stale save leaves the stored lines alone.
func (r *memQuoteRepo) SaveDraft(_ context.Context, quote *entity.Quote) error {
	stored, ok := r.quotes[quote.ID]
	if !ok {
		return apperror.NewNotFoundError("Quote")
	}
	if stored.Status != enum.QuoteStatusDraft {
		return apperror.ErrStaleQuoteState
	}
	for i := range quote.LineItems {
		if quote.LineItems[i].ID == uuid.Nil {
			quote.LineItems[i].ID = uuid.New()
		}
		quote.LineItems[i].QuoteID = quote.ID
	}
	r.quotes[quote.ID] = copyQuote(quote)
	return nil
}

func copyQuote(q *entity.Quote) *entity.Quote {
	cp := *q
	cp.LineItems = append([]entity.QuoteLineItem(nil), q.LineItems...)
	return &cp
}

type memItemRepo struct {
	items      map[uuid.UUID]*entity.Item
	activeRefs map[uuid.UUID]int64
}

func newMemItemRepo() *memItemRepo {
	return &memItemRepo{
		items:      make(map[uuid.UUID]*entity.Item),
		activeRefs: make(map[uuid.UUID]int64),
	}
}

func (r *memItemRepo) Create(_ context.Context, item *entity.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	r.items[item.ID] = item
	return nil
}

func (r *memItemRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*entity.Item, error) {
	item, ok := r.items[id]
	if !ok || item.TenantID != tenantID {
		return nil, nil
	}
	return item, nil
}

func (r *memItemRepo) GetByIDs(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]entity.Item, error) {
	var out []entity.Item
	for _, id := range ids {
		if item, ok := r.items[id]; ok && item.TenantID == tenantID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (r *memItemRepo) Update(_ context.Context, item *entity.Item) error {
	r.items[item.ID] = item
	return nil
}

func (r *memItemRepo) Delete(_ context.Context, _, id uuid.UUID) error {
	delete(r.items, id)
	return nil
}

func (r *memItemRepo) List(_ context.Context, tenantID uuid.UUID, _ *repository.ItemFilterParams) ([]entity.Item, int64, error) {
	var out []entity.Item
	for _, item := range r.items {
		if item.TenantID == tenantID {
			out = append(out, *item)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memItemRepo) CountActiveProductRefs(_ context.Context, _, itemID uuid.UUID) (int64, error) {
	return r.activeRefs[itemID], nil
}

type memProductRepo struct {
	products map[uuid.UUID]*entity.Product
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{products: make(map[uuid.UUID]*entity.Product)}
}

func (r *memProductRepo) Create(_ context.Context, product *entity.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	r.products[product.ID] = product
	return nil
}

func (r *memProductRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*entity.Product, error) {
	product, ok := r.products[id]
	if !ok || product.TenantID != tenantID {
		return nil, nil
	}
	return product, nil
}

func (r *memProductRepo) GetWithItems(ctx context.Context, tenantID, id uuid.UUID) (*entity.Product, error) {
	return r.GetByID(ctx, tenantID, id)
}

func (r *memProductRepo) Update(_ context.Context, product *entity.Product) error {
	r.products[product.ID] = product
	return nil
}

func (r *memProductRepo) Delete(_ context.Context, _, id uuid.UUID) error {
	delete(r.products, id)
	return nil
}

func (r *memProductRepo) List(_ context.Context, tenantID uuid.UUID, _ *repository.ProductFilterParams) ([]entity.Product, int64, error) {
	var out []entity.Product
	for _, product := range r.products {
		if product.TenantID == tenantID {
			out = append(out, *product)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memProductRepo) ReplaceItems(_ context.Context, productID uuid.UUID, items []entity.ProductItem) error {
	product, ok := r.products[productID]
	if !ok {
		return apperror.NewNotFoundError("Product")
	}
	product.Items = append([]entity.ProductItem(nil), items...)
	return nil
}
