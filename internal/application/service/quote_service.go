package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sagikoren/agencyops-api/internal/application/event"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
	"github.com/sagikoren/agencyops-api/pkg/pagination"
)

// QuoteService drives the quote lifecycle from draft through approval and the
// billing fan-out that follows it.
type QuoteService struct {
	quoteRepo    repository.QuoteRepository
	clientRepo   repository.ClientRepository
	itemRepo     repository.ItemRepository
	productRepo  repository.ProductRepository
	retainerRepo repository.RetainerRepository
	settingsRepo repository.PaymentSettingsRepository
	paymentSvc   *PaymentService
	notifier     event.Notifier
	logger       *zap.Logger

	defaultCurrency       string
	defaultVATBasisPoints int64
}

// NewQuoteService creates a new quote service
func NewQuoteService(
	quoteRepo repository.QuoteRepository,
	clientRepo repository.ClientRepository,
	itemRepo repository.ItemRepository,
	productRepo repository.ProductRepository,
	retainerRepo repository.RetainerRepository,
	settingsRepo repository.PaymentSettingsRepository,
	paymentSvc *PaymentService,
	notifier event.Notifier,
	logger *zap.Logger,
	defaultCurrency string,
	defaultVATBasisPoints int64,
) *QuoteService {
	return &QuoteService{
		quoteRepo:             quoteRepo,
		clientRepo:            clientRepo,
		itemRepo:              itemRepo,
		productRepo:           productRepo,
		retainerRepo:          retainerRepo,
		settingsRepo:          settingsRepo,
		paymentSvc:            paymentSvc,
		notifier:              notifier,
		logger:                logger,
		defaultCurrency:       defaultCurrency,
		defaultVATBasisPoints: defaultVATBasisPoints,
	}
}

// LineItemInput represents one requested quote line. Price resolution order:
// an explicit UnitPrice wins, then the referenced item's current price, then
// the referenced product's computed price snapshot.
type LineItemInput struct {
	ProductID   *uuid.UUID
	ItemID      *uuid.UUID
	Name        string
	Description *string
	Quantity    int
	UnitPrice   *int64 // minor units
	PriceType   *enum.PriceType
	SortOrder   int
}

// CreateQuoteInput represents the input for creating a quote
type CreateQuoteInput struct {
	TenantID   uuid.UUID
	Title      string
	ClientID   *uuid.UUID
	ClientType enum.ClientType
	ValidUntil *time.Time
	Terms      *string
	Notes      *string
	LineItems  []LineItemInput
}

// CreateQuote creates a draft quote. The VAT rate and currency are frozen
// from the tenant's payment settings at creation time so later settings
// changes do not silently reprice open quotes.
func (s *QuoteService) CreateQuote(ctx context.Context, input *CreateQuoteInput) (*entity.Quote, error) {
	if input.Title == "" {
		return nil, apperror.NewBadRequestError("Quote title is required")
	}
	if input.ClientType == "" {
		input.ClientType = enum.ClientTypeClient
	}
	if !input.ClientType.IsValid() {
		return nil, apperror.NewBadRequestError("Invalid client type")
	}
	if input.ClientID != nil {
		if _, err := s.clientRepo.Resolve(ctx, input.TenantID, *input.ClientID, input.ClientType); err != nil {
			return nil, err
		}
	}

	currency, vatRate := s.billingDefaults(ctx, input.TenantID)

	number, err := s.quoteRepo.NextQuoteNumber(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}

	quote := &entity.Quote{
		TenantID:           input.TenantID,
		QuoteNumber:        number,
		Title:              input.Title,
		ClientID:           input.ClientID,
		ClientType:         input.ClientType,
		Currency:           currency,
		VATRateBasisPoints: vatRate,
		Status:             enum.QuoteStatusDraft,
		ValidUntil:         input.ValidUntil,
		Terms:              input.Terms,
		Notes:              input.Notes,
	}

	lines, err := s.buildLineItems(ctx, input.TenantID, currency, input.LineItems)
	if err != nil {
		return nil, err
	}
	quote.LineItems = lines
	quote.Recompute()

	if err := s.quoteRepo.Create(ctx, quote); err != nil {
		return nil, err
	}
	return quote, nil
}

// UpdateQuoteInput represents the input for updating a draft quote's header
type UpdateQuoteInput struct {
	Title      *string
	ClientID   *uuid.UUID
	ClientType *enum.ClientType
	ValidUntil *time.Time
	Terms      *string
	Notes      *string
}

// UpdateQuote updates header fields of a draft. Non-draft quotes are locked.
func (s *QuoteService) UpdateQuote(ctx context.Context, tenantID, id uuid.UUID, input *UpdateQuoteInput) (*entity.Quote, error) {
	quote, err := s.getQuote(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := quote.EnsureDraft(); err != nil {
		return nil, err
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, apperror.NewBadRequestError("Quote title is required")
		}
		quote.Title = *input.Title
	}
	if input.ClientType != nil {
		if !input.ClientType.IsValid() {
			return nil, apperror.NewBadRequestError("Invalid client type")
		}
		quote.ClientType = *input.ClientType
	}
	if input.ClientID != nil {
		if _, err := s.clientRepo.Resolve(ctx, tenantID, *input.ClientID, quote.ClientType); err != nil {
			return nil, err
		}
		quote.ClientID = input.ClientID
	}
	if input.ValidUntil != nil {
		quote.ValidUntil = input.ValidUntil
	}
	if input.Terms != nil {
		quote.Terms = input.Terms
	}
	if input.Notes != nil {
		quote.Notes = input.Notes
	}

	if err := s.quoteRepo.Update(ctx, quote, enum.QuoteStatusDraft); err != nil {
		return nil, err
	}
	return quote, nil
}

// AddLineItem appends a line to a draft quote and recomputes its totals.
func (s *QuoteService) AddLineItem(ctx context.Context, tenantID, quoteID uuid.UUID, input *LineItemInput) (*entity.Quote, error) {
	quote, err := s.getQuote(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}
	if err := quote.EnsureDraft(); err != nil {
		return nil, err
	}

	lines, err := s.buildLineItems(ctx, tenantID, quote.Currency, []LineItemInput{*input})
	if err != nil {
		return nil, err
	}
	lines[0].QuoteID = quote.ID
	quote.LineItems = append(quote.LineItems, lines[0])

	return s.saveDraftLines(ctx, quote)
}

// RemoveLineItem removes a line from a draft quote and recomputes its totals.
func (s *QuoteService) RemoveLineItem(ctx context.Context, tenantID, quoteID, lineID uuid.UUID) (*entity.Quote, error) {
	quote, err := s.getQuote(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}
	if err := quote.EnsureDraft(); err != nil {
		return nil, err
	}

	kept := quote.LineItems[:0]
	found := false
	for _, li := range quote.LineItems {
		if li.ID == lineID {
			found = true
			continue
		}
		kept = append(kept, li)
	}
	if !found {
		return nil, apperror.NewNotFoundError("Line item")
	}
	quote.LineItems = kept

	return s.saveDraftLines(ctx, quote)
}

// ReplaceLineItems swaps the full line set of a draft quote.
func (s *QuoteService) ReplaceLineItems(ctx context.Context, tenantID, quoteID uuid.UUID, inputs []LineItemInput) (*entity.Quote, error) {
	quote, err := s.getQuote(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}
	if err := quote.EnsureDraft(); err != nil {
		return nil, err
	}

	lines, err := s.buildLineItems(ctx, tenantID, quote.Currency, inputs)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		lines[i].QuoteID = quote.ID
	}
	quote.LineItems = lines

	return s.saveDraftLines(ctx, quote)
}

// Submit moves a draft to sent and notifies the client-facing dispatcher.
func (s *QuoteService) Submit(ctx context.Context, tenantID, id uuid.UUID) (*entity.Quote, error) {
	quote, err := s.getQuote(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := quote.Submit(now); err != nil {
		return nil, err
	}
	// The client must still resolve at send time; drafts can outlive a
	// deleted lead.
	if _, err := s.clientRepo.Resolve(ctx, tenantID, *quote.ClientID, quote.ClientType); err != nil {
		return nil, err
	}

	if err := s.quoteRepo.Update(ctx, quote, enum.QuoteStatusDraft); err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, event.Event{
		Type:     event.QuoteSent,
		TenantID: tenantID,
		Payload:  quoteEventPayload(quote),
	})
	return quote, nil
}

// Approve moves a sent quote to approved and fans out its billing
// obligations: one pending payment for the fixed and hourly portion, one
// retainer for the monthly portion. Concurrent decisions lose with a stale
// state error instead of overwriting each other.
func (s *QuoteService) Approve(ctx context.Context, tenantID, id uuid.UUID) (*entity.Quote, error) {
	quote, err := s.getQuote(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := quote.Approve(now); err != nil {
		return nil, err
	}
	if err := s.quoteRepo.Update(ctx, quote, enum.QuoteStatusSent); err != nil {
		return nil, err
	}

	// The transition is committed; fan-out failures are reported but can no
	// longer unwind the approval.
	if err := s.fanOutBilling(ctx, quote, now); err != nil {
		s.logger.Error("billing fan-out after approval failed",
			zap.String("quote_id", quote.ID.String()),
			zap.Error(err),
		)
		return quote, err
	}

	s.notifier.Publish(ctx, event.Event{
		Type:     event.QuoteApproved,
		TenantID: tenantID,
		Payload:  quoteEventPayload(quote),
	})
	return quote, nil
}

// Reject moves a sent quote to rejected.
func (s *QuoteService) Reject(ctx context.Context, tenantID, id uuid.UUID) (*entity.Quote, error) {
	quote, err := s.getQuote(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := quote.Reject(time.Now()); err != nil {
		return nil, err
	}
	if err := s.quoteRepo.Update(ctx, quote, enum.QuoteStatusSent); err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, event.Event{
		Type:     event.QuoteRejected,
		TenantID: tenantID,
		Payload:  quoteEventPayload(quote),
	})
	return quote, nil
}

// Duplicate clones a quote of any status into a fresh draft with a new quote
// number. Prices stay as frozen on the source; the VAT rate is re-read from
// current settings because the copy is a new commercial document.
func (s *QuoteService) Duplicate(ctx context.Context, tenantID, id uuid.UUID) (*entity.Quote, error) {
	source, err := s.getQuote(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	number, err := s.quoteRepo.NextQuoteNumber(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	_, vatRate := s.billingDefaults(ctx, tenantID)

	clone := &entity.Quote{
		TenantID:           tenantID,
		QuoteNumber:        number,
		Title:              source.Title,
		ClientID:           source.ClientID,
		ClientType:         source.ClientType,
		Currency:           source.Currency,
		VATRateBasisPoints: vatRate,
		Status:             enum.QuoteStatusDraft,
		Terms:              source.Terms,
		Notes:              source.Notes,
	}
	for _, li := range source.LineItems {
		clone.LineItems = append(clone.LineItems, entity.QuoteLineItem{
			ProductID:   li.ProductID,
			ItemID:      li.ItemID,
			Name:        li.Name,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			PriceType:   li.PriceType,
			LineTotal:   li.LineTotal,
			SortOrder:   li.SortOrder,
		})
	}
	clone.Recompute()

	if err := s.quoteRepo.Create(ctx, clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// ExpireDue sweeps sent quotes whose validity window has passed. Safe to run
// concurrently: a quote decided between the list and the update loses its
// expiry silently.
func (s *QuoteService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	quotes, err := s.quoteRepo.ListExpirable(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range quotes {
		q := &quotes[i]
		if err := q.Expire(now); err != nil {
			continue
		}
		if q.Status != enum.QuoteStatusExpired {
			continue
		}
		if err := s.quoteRepo.Update(ctx, q, enum.QuoteStatusSent); err != nil {
			if err == apperror.ErrStaleQuoteState {
				// Approved or rejected after we listed it; leave it alone.
				continue
			}
			return expired, err
		}
		expired++
		s.notifier.Publish(ctx, event.Event{
			Type:     event.QuoteExpired,
			TenantID: q.TenantID,
			Payload:  quoteEventPayload(q),
		})
	}
	return expired, nil
}

// GetQuote retrieves a quote with its line items
func (s *QuoteService) GetQuote(ctx context.Context, tenantID, id uuid.UUID) (*entity.Quote, error) {
	return s.getQuote(ctx, tenantID, id)
}

// ListQuotes lists quotes with filtering and pagination
func (s *QuoteService) ListQuotes(ctx context.Context, tenantID uuid.UUID, params *repository.QuoteFilterParams) (*pagination.PaginatedResult[entity.Quote], error) {
	quotes, total, err := s.quoteRepo.List(ctx, tenantID, params)
	if err != nil {
		return nil, err
	}
	pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)
	return pagination.NewPaginatedResult(quotes, pag), nil
}

// DeleteQuote removes a draft. Sent and decided quotes are part of the
// commercial record and cannot be deleted.
func (s *QuoteService) DeleteQuote(ctx context.Context, tenantID, id uuid.UUID) error {
	quote, err := s.getQuote(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := quote.EnsureDraft(); err != nil {
		return err
	}
	return s.quoteRepo.Delete(ctx, tenantID, id)
}

func (s *QuoteService) getQuote(ctx context.Context, tenantID, id uuid.UUID) (*entity.Quote, error) {
	quote, err := s.quoteRepo.GetWithLineItems(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, apperror.NewNotFoundError("Quote")
	}
	return quote, nil
}

func (s *QuoteService) saveDraftLines(ctx context.Context, quote *entity.Quote) (*entity.Quote, error) {
	quote.Recompute()
	if err := s.quoteRepo.SaveDraft(ctx, quote); err != nil {
		return nil, err
	}
	return quote, nil
}

// buildLineItems resolves each requested line against the catalog and freezes
// its unit price and line total.
func (s *QuoteService) buildLineItems(ctx context.Context, tenantID uuid.UUID, currency string, inputs []LineItemInput) ([]entity.QuoteLineItem, error) {
	lines := make([]entity.QuoteLineItem, 0, len(inputs))
	for i, input := range inputs {
		if input.Quantity < 1 {
			return nil, apperror.NewBadRequestError("Line item quantity must be at least 1")
		}

		line := entity.QuoteLineItem{
			ProductID:   input.ProductID,
			ItemID:      input.ItemID,
			Name:        input.Name,
			Description: input.Description,
			Quantity:    input.Quantity,
			PriceType:   enum.PriceTypeFixed,
			SortOrder:   input.SortOrder,
		}
		if line.SortOrder == 0 {
			line.SortOrder = i
		}

		var unitPrice *int64
		if input.UnitPrice != nil {
			if *input.UnitPrice < 0 {
				return nil, apperror.NewBadRequestError("Line item price cannot be negative")
			}
			unitPrice = input.UnitPrice
		}

		switch {
		case input.ItemID != nil:
			item, err := s.itemRepo.GetByID(ctx, tenantID, *input.ItemID)
			if err != nil {
				return nil, err
			}
			if item == nil {
				return nil, apperror.NewNotFoundError("Item")
			}
			if line.Name == "" {
				line.Name = item.Name
			}
			line.PriceType = item.PriceType
			if unitPrice == nil {
				unitPrice = &item.UnitPrice
			}
		case input.ProductID != nil:
			product, err := s.productRepo.GetByID(ctx, tenantID, *input.ProductID)
			if err != nil {
				return nil, err
			}
			if product == nil {
				return nil, apperror.NewNotFoundError("Product")
			}
			if line.Name == "" {
				line.Name = product.Name
			}
			if unitPrice == nil {
				unitPrice = &product.ComputedPrice
			}
		default:
			if line.Name == "" {
				return nil, apperror.NewBadRequestError("Free-form line items require a name")
			}
			if unitPrice == nil {
				return nil, apperror.NewBadRequestError("Free-form line items require a unit price")
			}
		}

		if input.PriceType != nil {
			if !input.PriceType.IsValid() {
				return nil, apperror.NewBadRequestError("Invalid price type")
			}
			line.PriceType = *input.PriceType
		}

		line.UnitPrice = *unitPrice
		line.LineTotal = money.New(line.UnitPrice, currency).MultiplyByQuantity(line.Quantity).Amount
		lines = append(lines, line)
	}
	return lines, nil
}

// fanOutBilling creates the billing obligations of an approved quote. The
// recurring portion carries its own VAT, rounded once, because that amount
// recurs every period. The one-off portion is the quote total minus the
// recurring gross, so the two obligations always sum to what the client
// approved even when per-portion rounding would drift by a minor unit.
func (s *QuoteService) fanOutBilling(ctx context.Context, quote *entity.Quote, now time.Time) error {
	if quote.ClientID == nil {
		return apperror.ErrMissingClient
	}

	monthly := quote.AmountOfType(enum.PriceTypeMonthly)
	monthlyGross, err := monthly.Add(monthly.Percentage(quote.VATRateBasisPoints))
	if err != nil {
		return err
	}

	oneOff, err := quote.AmountOfType(enum.PriceTypeFixed).Add(quote.AmountOfType(enum.PriceTypeHourly))
	if err != nil {
		return err
	}
	if !oneOff.IsZero() {
		gross, err := money.New(quote.TotalAmount, quote.Currency).Subtract(monthlyGross)
		if err != nil {
			return err
		}
		if _, err := s.paymentSvc.CreatePayment(ctx, &CreatePaymentInput{
			TenantID:        quote.TenantID,
			ClientID:        *quote.ClientID,
			ClientType:      quote.ClientType,
			QuoteID:         &quote.ID,
			Description:     fmt.Sprintf("Quote #%d - %s", quote.QuoteNumber, quote.Title),
			Amount:          gross,
			WithPaymentLink: true,
		}); err != nil {
			return err
		}
	}

	if !monthly.IsZero() {
		startDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		retainer := &entity.Retainer{
			TenantID:  quote.TenantID,
			ClientID:  *quote.ClientID,
			QuoteID:   &quote.ID,
			Title:     quote.Title,
			Amount:    monthlyGross.Amount,
			Currency:  monthlyGross.Currency,
			Frequency: enum.FrequencyMonthly,
			StartDate: startDate,
			AutoRenew: true,
			Status:    enum.RetainerStatusActive,
		}
		if err := s.retainerRepo.Create(ctx, retainer); err != nil {
			return err
		}
	}
	return nil
}

func (s *QuoteService) billingDefaults(ctx context.Context, tenantID uuid.UUID) (string, int64) {
	settings, err := s.settingsRepo.GetByTenant(ctx, tenantID)
	if err != nil || settings == nil {
		return s.defaultCurrency, s.defaultVATBasisPoints
	}
	return settings.Currency, settings.VATRateBasisPoints
}

func quoteEventPayload(q *entity.Quote) map[string]interface{} {
	return map[string]interface{}{
		"quote_id":     q.ID.String(),
		"quote_number": q.QuoteNumber,
		"status":       q.Status.String(),
		"total_amount": q.TotalAmount,
		"currency":     q.Currency,
	}
}
