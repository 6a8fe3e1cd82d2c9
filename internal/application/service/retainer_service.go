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
	"github.com/sagikoren/agencyops-api/internal/infrastructure/payment"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
	"github.com/sagikoren/agencyops-api/pkg/pagination"
)

// ProviderResolver selects the payment provider enabled by a tenant's
// settings. Satisfied by payment.Factory.
type ProviderResolver interface {
	ForSettings(settings *entity.PaymentSettings) (payment.Provider, error)
}

// RetainerService manages recurring billing obligations and materializes
// their due periods into one-time payments.
type RetainerService struct {
	retainerRepo repository.RetainerRepository
	paymentRepo  repository.PaymentRepository
	clientRepo   repository.ClientRepository
	settingsRepo repository.PaymentSettingsRepository
	providers    ProviderResolver
	notifier     event.Notifier
	logger       *zap.Logger

	// After this many consecutive failed periods the retainer is paused and
	// the tenant is notified. Zero disables pausing.
	pauseThreshold int
}

// NewRetainerService creates a new retainer service
func NewRetainerService(
	retainerRepo repository.RetainerRepository,
	paymentRepo repository.PaymentRepository,
	clientRepo repository.ClientRepository,
	settingsRepo repository.PaymentSettingsRepository,
	providers ProviderResolver,
	notifier event.Notifier,
	logger *zap.Logger,
	pauseThreshold int,
) *RetainerService {
	return &RetainerService{
		retainerRepo:   retainerRepo,
		paymentRepo:    paymentRepo,
		clientRepo:     clientRepo,
		settingsRepo:   settingsRepo,
		providers:      providers,
		notifier:       notifier,
		logger:         logger,
		pauseThreshold: pauseThreshold,
	}
}

// CreateRetainerInput represents the input for creating a retainer
type CreateRetainerInput struct {
	TenantID    uuid.UUID
	ClientID    uuid.UUID
	QuoteID     *uuid.UUID
	Title       string
	Description *string
	Amount      money.Money
	Frequency   enum.RetainerFrequency
	StartDate   time.Time
	EndDate     *time.Time
	AutoRenew   bool
	ChargeToken *string
}

// CreateRetainer creates a new retainer
func (s *RetainerService) CreateRetainer(ctx context.Context, input *CreateRetainerInput) (*entity.Retainer, error) {
	if input.Title == "" {
		return nil, apperror.NewBadRequestError("Retainer title is required")
	}
	if input.Amount.Amount <= 0 {
		return nil, apperror.NewBadRequestError("Retainer amount must be positive")
	}
	if !input.Frequency.IsValid() {
		return nil, apperror.NewBadRequestError("Invalid billing frequency")
	}
	if input.EndDate != nil && !input.EndDate.After(input.StartDate) {
		return nil, apperror.NewBadRequestError("End date must be after start date")
	}
	if _, err := s.clientRepo.Resolve(ctx, input.TenantID, input.ClientID, enum.ClientTypeClient); err != nil {
		return nil, err
	}

	retainer := &entity.Retainer{
		TenantID:    input.TenantID,
		ClientID:    input.ClientID,
		QuoteID:     input.QuoteID,
		Title:       input.Title,
		Description: input.Description,
		Amount:      input.Amount.Amount,
		Currency:    input.Amount.Currency,
		Frequency:   input.Frequency,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		AutoRenew:   input.AutoRenew,
		ChargeToken: input.ChargeToken,
		Status:      enum.RetainerStatusActive,
	}
	if err := s.retainerRepo.Create(ctx, retainer); err != nil {
		return nil, err
	}
	return retainer, nil
}

// UpdateRetainerInput represents the input for updating a retainer
type UpdateRetainerInput struct {
	Title       *string
	Description *string
	Amount      *money.Money
	EndDate     *time.Time
	AutoRenew   *bool
	ChargeToken *string
}

// UpdateRetainer updates a retainer. Amount changes apply to future periods
// only; already materialized payments keep the amount they were issued with.
func (s *RetainerService) UpdateRetainer(ctx context.Context, tenantID, id uuid.UUID, input *UpdateRetainerInput) (*entity.Retainer, error) {
	retainer, err := s.getRetainer(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, apperror.NewBadRequestError("Retainer title is required")
		}
		retainer.Title = *input.Title
	}
	if input.Description != nil {
		retainer.Description = input.Description
	}
	if input.Amount != nil {
		if input.Amount.Amount <= 0 {
			return nil, apperror.NewBadRequestError("Retainer amount must be positive")
		}
		retainer.Amount = input.Amount.Amount
		retainer.Currency = input.Amount.Currency
	}
	if input.EndDate != nil {
		retainer.EndDate = input.EndDate
	}
	if input.AutoRenew != nil {
		retainer.AutoRenew = *input.AutoRenew
	}
	if input.ChargeToken != nil {
		retainer.ChargeToken = input.ChargeToken
	}

	if err := s.retainerRepo.Update(ctx, retainer); err != nil {
		return nil, err
	}
	return retainer, nil
}

// Pause suspends materialization for a retainer.
func (s *RetainerService) Pause(ctx context.Context, tenantID, id uuid.UUID) (*entity.Retainer, error) {
	return s.setStatus(ctx, tenantID, id, enum.RetainerStatusPaused)
}

// Resume reactivates a paused retainer and clears its failure streak so the
// next sweep retries the failed period.
func (s *RetainerService) Resume(ctx context.Context, tenantID, id uuid.UUID) (*entity.Retainer, error) {
	retainer, err := s.getRetainer(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if retainer.Status != enum.RetainerStatusPaused {
		return nil, apperror.NewBadRequestError("Only paused retainers can be resumed")
	}
	retainer.Status = enum.RetainerStatusActive
	retainer.RecordSuccess()
	if err := s.retainerRepo.Update(ctx, retainer); err != nil {
		return nil, err
	}
	return retainer, nil
}

// Cancel ends a retainer permanently.
func (s *RetainerService) Cancel(ctx context.Context, tenantID, id uuid.UUID) (*entity.Retainer, error) {
	return s.setStatus(ctx, tenantID, id, enum.RetainerStatusCancelled)
}

// GetRetainer retrieves a retainer by ID
func (s *RetainerService) GetRetainer(ctx context.Context, tenantID, id uuid.UUID) (*entity.Retainer, error) {
	return s.getRetainer(ctx, tenantID, id)
}

// ListRetainers lists retainers with filtering
func (s *RetainerService) ListRetainers(ctx context.Context, tenantID uuid.UUID, params *repository.RetainerFilterParams) (*pagination.PaginatedResult[entity.Retainer], error) {
	retainers, total, err := s.retainerRepo.List(ctx, tenantID, params)
	if err != nil {
		return nil, err
	}
	pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)
	return pagination.NewPaginatedResult(retainers, pag), nil
}

// DeleteRetainer soft-deletes a retainer. Its payment history stays.
func (s *RetainerService) DeleteRetainer(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.getRetainer(ctx, tenantID, id); err != nil {
		return err
	}
	return s.retainerRepo.Delete(ctx, tenantID, id)
}

// MaterializeDue walks every active retainer and creates one pending payment
// per billing period that has come due, catching up on periods missed while
// the service was down. The unique (retainer, period start) constraint makes
// the sweep safe to run from several instances at once: the loser of a
// concurrent insert treats the period as already handled.
func (s *RetainerService) MaterializeDue(ctx context.Context, now time.Time) (int, error) {
	retainers, err := s.retainerRepo.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range retainers {
		n, err := s.materializeRetainer(ctx, &retainers[i], now)
		created += n
		if err != nil {
			// One broken retainer must not starve the rest of the sweep.
			s.logger.Error("retainer materialization failed",
				zap.String("retainer_id", retainers[i].ID.String()),
				zap.Error(err),
			)
		}
	}
	return created, nil
}

func (s *RetainerService) materializeRetainer(ctx context.Context, r *entity.Retainer, now time.Time) (int, error) {
	if r.RanOut(now) {
		r.Status = enum.RetainerStatusCancelled
		if err := s.retainerRepo.Update(ctx, r); err != nil {
			return 0, err
		}
		return 0, nil
	}

	last, err := s.paymentRepo.LastPeriodStart(ctx, r.ID)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, periodStart := range duePeriods(r, last, now) {
		ok, err := s.materializePeriod(ctx, r, periodStart, now)
		if err != nil {
			return created, err
		}
		if !ok {
			// Paused mid-sweep; stop issuing further periods.
			break
		}
		created++
	}
	return created, nil
}

// duePeriods returns the period starts due for materialization: every
// startDate + n*frequency that is after the last materialized period and not
// after now, bounded by the end date for non-renewing retainers.
func duePeriods(r *entity.Retainer, last *time.Time, now time.Time) []time.Time {
	var due []time.Time
	for n := 0; ; n++ {
		periodStart := r.Frequency.PeriodStart(r.StartDate, n)
		if periodStart.After(now) {
			return due
		}
		if r.EndDate != nil && !r.AutoRenew && periodStart.After(*r.EndDate) {
			return due
		}
		if last != nil && !periodStart.After(*last) {
			continue
		}
		due = append(due, periodStart)
	}
}

// materializePeriod issues the pending payment for one period and, when the
// retainer carries a stored payment method, tries to capture it right away.
// Returns false when the retainer was paused by the failure threshold.
func (s *RetainerService) materializePeriod(ctx context.Context, r *entity.Retainer, periodStart, now time.Time) (bool, error) {
	ps := periodStart
	p := &entity.OneTimePayment{
		TenantID:    r.TenantID,
		ClientID:    r.ClientID,
		RetainerID:  &r.ID,
		PeriodStart: &ps,
		Description: fmt.Sprintf("%s - %s", r.Title, periodStart.Format("2006-01-02")),
		Amount:      r.Amount,
		Currency:    r.Currency,
		Status:      enum.PaymentStatusPending,
	}

	if err := s.paymentRepo.Create(ctx, p); err != nil {
		if err == repository.ErrDuplicatePeriod {
			// Another sweep already owns this period.
			return true, nil
		}
		return s.recordChargeFailure(ctx, r, periodStart, now, err)
	}

	if err := s.captureMaterialized(ctx, r, p, now); err != nil {
		// The payment row stays failed; the next sweep issues the period
		// again because failed rows do not count as materialized.
		return s.recordChargeFailure(ctx, r, periodStart, now, err)
	}

	if r.ConsecutiveFailures > 0 {
		r.RecordSuccess()
		if err := s.retainerRepo.Update(ctx, r); err != nil {
			return true, err
		}
	}

	s.logger.Info("materialized retainer period",
		zap.String("retainer_id", r.ID.String()),
		zap.String("payment_id", p.ID.String()),
		zap.String("period_start", periodStart.Format("2006-01-02")),
	)
	return true, nil
}

// captureMaterialized charges the stored payment method for a freshly issued
// period. Skipped entirely when no token is on file, auto-capture is off, or
// no capturing provider is enabled; the payment then stays pending and is
// collected by payment link or manual reconciliation.
func (s *RetainerService) captureMaterialized(ctx context.Context, r *entity.Retainer, p *entity.OneTimePayment, now time.Time) error {
	if r.ChargeToken == nil {
		return nil
	}
	settings, err := s.settingsRepo.GetByTenant(ctx, r.TenantID)
	if err != nil {
		s.logger.Warn("skipping auto-capture, settings lookup failed",
			zap.String("retainer_id", r.ID.String()),
			zap.Error(err),
		)
		return nil
	}
	if settings == nil || !settings.AutoCapture || settings.Provider == enum.ProviderManual {
		return nil
	}
	provider, err := s.providers.ForSettings(settings)
	if err != nil {
		if err == apperror.ErrProviderDisabled {
			return nil
		}
		return err
	}

	result, err := provider.CaptureCharge(ctx, *r.ChargeToken, p.Total())
	if err != nil {
		if markErr := p.MarkFailed(err.Error(), now); markErr != nil {
			return markErr
		}
		if updErr := s.paymentRepo.Update(ctx, p); updErr != nil {
			return updErr
		}
		return err
	}

	if result.Status != payment.ChargeStatusSucceeded {
		reason := result.FailureCode
		if reason == "" {
			reason = "charge declined"
		}
		if markErr := p.MarkFailed(reason, now); markErr != nil {
			return markErr
		}
		if updErr := s.paymentRepo.Update(ctx, p); updErr != nil {
			return updErr
		}
		return fmt.Errorf("capture declined: %s", reason)
	}

	if err := p.MarkCompleted(provider.Type().String(), result.ProviderRef, now); err != nil {
		return err
	}
	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return err
	}
	s.notifier.Publish(ctx, event.Event{
		Type:     event.PaymentCompleted,
		TenantID: r.TenantID,
		Payload:  map[string]interface{}{"payment_id": p.ID.String()},
	})
	return nil
}

// recordChargeFailure bumps the consecutive failure streak, pauses the
// retainer at the threshold, and notifies the tenant.
func (s *RetainerService) recordChargeFailure(ctx context.Context, r *entity.Retainer, periodStart, now time.Time, cause error) (bool, error) {
	paused := r.RecordFailure(cause.Error(), now, s.pauseThreshold)
	if paused {
		r.Status = enum.RetainerStatusPaused
	}
	if updErr := s.retainerRepo.Update(ctx, r); updErr != nil {
		return !paused, updErr
	}
	s.notifier.Publish(ctx, event.Event{
		Type:     event.RetainerChargeFailed,
		TenantID: r.TenantID,
		Payload: map[string]interface{}{
			"retainer_id":  r.ID.String(),
			"period_start": periodStart.Format("2006-01-02"),
			"reason":       cause.Error(),
		},
	})
	if paused {
		s.notifier.Publish(ctx, event.Event{
			Type:     event.RetainerPaused,
			TenantID: r.TenantID,
			Payload: map[string]interface{}{
				"retainer_id":          r.ID.String(),
				"consecutive_failures": r.ConsecutiveFailures,
			},
		})
	}
	return !paused, cause
}

func (s *RetainerService) getRetainer(ctx context.Context, tenantID, id uuid.UUID) (*entity.Retainer, error) {
	retainer, err := s.retainerRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if retainer == nil {
		return nil, apperror.NewNotFoundError("Retainer")
	}
	return retainer, nil
}

func (s *RetainerService) setStatus(ctx context.Context, tenantID, id uuid.UUID, status enum.RetainerStatus) (*entity.Retainer, error) {
	retainer, err := s.getRetainer(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if retainer.Status == enum.RetainerStatusCancelled {
		return nil, apperror.NewBadRequestError("Retainer is cancelled")
	}
	retainer.Status = status
	if err := s.retainerRepo.Update(ctx, retainer); err != nil {
		return nil, err
	}
	return retainer, nil
}
