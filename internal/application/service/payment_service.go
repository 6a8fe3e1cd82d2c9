package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sagikoren/agencyops-api/internal/application/event"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/internal/infrastructure/payment"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
	"github.com/sagikoren/agencyops-api/pkg/pagination"
)

// Mailer delivers billing emails. Nil disables email delivery.
type Mailer interface {
	SendPaymentLinkEmail(toEmail, clientName, description, amount, link string) error
}

// PaymentService tracks one-time payments and dispatches them through the
// tenant's configured payment provider.
type PaymentService struct {
	paymentRepo  repository.PaymentRepository
	settingsRepo repository.PaymentSettingsRepository
	clientRepo   repository.ClientRepository
	providers    ProviderResolver
	mailer       Mailer
	notifier     event.Notifier
	logger       *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	settingsRepo repository.PaymentSettingsRepository,
	clientRepo repository.ClientRepository,
	providers ProviderResolver,
	mailer Mailer,
	notifier event.Notifier,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo:  paymentRepo,
		settingsRepo: settingsRepo,
		clientRepo:   clientRepo,
		providers:    providers,
		mailer:       mailer,
		notifier:     notifier,
		logger:       logger,
	}
}

// CreatePaymentInput represents the input for creating a one-time payment
type CreatePaymentInput struct {
	TenantID    uuid.UUID
	ClientID    uuid.UUID
	ClientType  enum.ClientType
	QuoteID     *uuid.UUID
	RetainerID  *uuid.UUID
	PeriodStart *time.Time
	Description string
	Amount      money.Money
	// WithPaymentLink asks the provider for a hosted checkout URL. Skipped
	// for the manual provider or when no provider is enabled.
	WithPaymentLink bool
}

// CreatePayment records a pending charge and optionally requests a payment
// link from the provider. The record is created first: a provider failure
// leaves a pending payment the agency can re-issue, never a lost charge.
func (s *PaymentService) CreatePayment(ctx context.Context, input *CreatePaymentInput) (*entity.OneTimePayment, error) {
	if input.Description == "" {
		return nil, apperror.NewBadRequestError("Payment description is required")
	}
	if input.Amount.Amount <= 0 {
		return nil, apperror.NewBadRequestError("Payment amount must be positive")
	}

	client, err := s.clientRepo.Resolve(ctx, input.TenantID, input.ClientID, input.ClientType)
	if err != nil {
		return nil, err
	}

	p := &entity.OneTimePayment{
		TenantID:    input.TenantID,
		ClientID:    client.ID,
		QuoteID:     input.QuoteID,
		RetainerID:  input.RetainerID,
		PeriodStart: input.PeriodStart,
		Description: input.Description,
		Amount:      input.Amount.Amount,
		Currency:    input.Amount.Currency,
		Status:      enum.PaymentStatusPending,
	}
	if err := s.paymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	if input.WithPaymentLink {
		if link, err := s.createLink(ctx, input.TenantID, p); err != nil {
			// Link creation is best-effort at create time; the payment stays
			// pending and the agency can re-request a link.
			s.logger.Warn("payment link creation failed",
				zap.String("payment_id", p.ID.String()),
				zap.Error(err),
			)
		} else {
			p.PaymentLink = &link.URL
			if link.ProviderRef != "" {
				// The gateway's process reference is what its webhook will
				// report back; without it the callback cannot find this row.
				p.ProviderRef = &link.ProviderRef
			}
			if err := s.paymentRepo.Update(ctx, p); err != nil {
				return nil, err
			}
			s.emailPaymentLink(p, client, link.URL)
		}
	}

	return p, nil
}

// Capture charges the payment against a stored payment method token. Timeout
// or transport failure marks the payment failed; success is only recorded on
// an explicit acknowledgment from the provider.
func (s *PaymentService) Capture(ctx context.Context, tenantID, paymentID uuid.UUID, token string) (*entity.OneTimePayment, error) {
	p, err := s.paymentRepo.GetByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NewNotFoundError("Payment")
	}
	if p.Status == enum.PaymentStatusCompleted {
		return nil, apperror.ErrAlreadyCaptured
	}
	if p.Status != enum.PaymentStatusPending {
		return nil, apperror.ErrPaymentNotPending
	}

	settings, err := s.settingsRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	provider, err := s.providers.ForSettings(settings)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result, err := provider.CaptureCharge(ctx, token, p.Total())
	if err != nil {
		if markErr := p.MarkFailed(err.Error(), now); markErr != nil {
			return nil, markErr
		}
		if updErr := s.paymentRepo.Update(ctx, p); updErr != nil {
			return nil, updErr
		}
		return p, err
	}

	if result.Status == payment.ChargeStatusSucceeded {
		if err := p.MarkCompleted(provider.Type().String(), result.ProviderRef, now); err != nil {
			return nil, err
		}
	} else {
		reason := result.FailureCode
		if reason == "" {
			reason = "charge declined"
		}
		if err := p.MarkFailed(reason, now); err != nil {
			return nil, err
		}
	}

	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	if p.Status == enum.PaymentStatusCompleted {
		s.notifier.Publish(ctx, event.Event{
			Type:     event.PaymentCompleted,
			TenantID: tenantID,
			Payload:  map[string]interface{}{"payment_id": p.ID.String()},
		})
	}
	return p, nil
}

// MarkPaid is the manual-reconciliation path: the tenant self-reports that a
// manual-provider payment was received.
func (s *PaymentService) MarkPaid(ctx context.Context, tenantID, paymentID uuid.UUID, reference string) (*entity.OneTimePayment, error) {
	p, err := s.paymentRepo.GetByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NewNotFoundError("Payment")
	}

	// A tenant on a gateway provider can still reconcile out of band
	// (bank transfer, cheque), but the completion bypasses the gateway's
	// records, so it is flagged for audit.
	if settings, err := s.settingsRepo.GetByTenant(ctx, tenantID); err == nil &&
		settings != nil && settings.Provider != enum.ProviderManual {
		s.logger.Warn("manual completion for a gateway-collected tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.String("payment_id", p.ID.String()),
			zap.String("provider", settings.Provider.String()),
			zap.String("reference", reference))
	}

	if err := p.MarkCompleted(enum.ProviderManual.String(), reference, time.Now()); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, event.Event{
		Type:     event.PaymentCompleted,
		TenantID: tenantID,
		Payload:  map[string]interface{}{"payment_id": p.ID.String(), "manual": true},
	})
	return p, nil
}

// HandleWebhook verifies a provider callback and applies the outcome to the
// referenced payment. Unverified payloads are discarded and logged; they
// never touch payment state.
func (s *PaymentService) HandleWebhook(ctx context.Context, tenantID uuid.UUID, providerName enum.ProviderType, rawPayload []byte, signature string) error {
	settings, err := s.settingsRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if settings == nil || settings.Provider != providerName {
		return apperror.ErrProviderDisabled
	}
	provider, err := s.providers.ForSettings(settings)
	if err != nil {
		return err
	}

	evt, err := provider.VerifyWebhook(rawPayload, signature)
	if err != nil {
		s.logger.Warn("discarding unverified webhook",
			zap.String("tenant_id", tenantID.String()),
			zap.String("provider", providerName.String()),
		)
		return err
	}

	p, err := s.paymentRepo.GetByProviderRef(ctx, tenantID, evt.ProviderRef)
	if err != nil {
		return err
	}
	if p == nil {
		s.logger.Warn("webhook references unknown payment",
			zap.String("provider_ref", evt.ProviderRef),
		)
		return apperror.NewNotFoundError("Payment")
	}

	now := time.Now()
	if evt.Succeeded {
		if err := p.MarkCompleted(provider.Type().String(), evt.ProviderRef, now); err != nil {
			// Replayed success for an already-completed payment is a no-op.
			if err == apperror.ErrAlreadyCaptured {
				return nil
			}
			return err
		}
	} else {
		if err := p.MarkFailed("declined by provider callback", now); err != nil {
			return err
		}
	}
	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return err
	}

	if evt.Succeeded {
		s.notifier.Publish(ctx, event.Event{
			Type:     event.PaymentCompleted,
			TenantID: tenantID,
			Payload:  map[string]interface{}{"payment_id": p.ID.String()},
		})
	}
	return nil
}

// GetPayment retrieves a payment by ID
func (s *PaymentService) GetPayment(ctx context.Context, tenantID, id uuid.UUID) (*entity.OneTimePayment, error) {
	p, err := s.paymentRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NewNotFoundError("Payment")
	}
	return p, nil
}

// ListPayments lists payments with filtering
func (s *PaymentService) ListPayments(ctx context.Context, tenantID uuid.UUID, params *repository.PaymentFilterParams) (*pagination.PaginatedResult[entity.OneTimePayment], error) {
	payments, total, err := s.paymentRepo.List(ctx, tenantID, params)
	if err != nil {
		return nil, err
	}
	pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)
	return pagination.NewPaginatedResult(payments, pag), nil
}

// emailPaymentLink sends the checkout link to the client's billing address.
// Delivery failure is logged and swallowed; the link is also on the payment
// record for the agency to send by hand.
func (s *PaymentService) emailPaymentLink(p *entity.OneTimePayment, client *entity.ResolvedClient, link string) {
	if s.mailer == nil || client.BillingEmail == "" {
		return
	}
	err := s.mailer.SendPaymentLinkEmail(client.BillingEmail, client.Name, p.Description, p.Total().String(), link)
	if err != nil {
		s.logger.Warn("payment link email failed",
			zap.String("payment_id", p.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *PaymentService) createLink(ctx context.Context, tenantID uuid.UUID, p *entity.OneTimePayment) (*payment.PaymentLink, error) {
	settings, err := s.settingsRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	provider, err := s.providers.ForSettings(settings)
	if err != nil {
		return nil, err
	}
	if provider.Type() == enum.ProviderManual {
		return nil, apperror.ErrProviderDisabled
	}
	// The payment id rides along as the gateway-side client reference, so a
	// callback can be correlated even when the gateway echoes only it.
	return provider.CreatePaymentLink(ctx, p.Total(), p.Description, p.ID.String())
}
