package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	domainRepo "github.com/sagikoren/agencyops-api/internal/domain/repository"
	"gorm.io/gorm"
)

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) domainRepo.PaymentRepository {
	return &paymentRepository{db: db}
}

// Create inserts the payment. A violation of the (retainer_id, period_start)
// partial unique index surfaces as ErrDuplicatePeriod so concurrent sweeps
// can treat the period as already handled.
func (r *paymentRepository) Create(ctx context.Context, payment *entity.OneTimePayment) error {
	err := r.db.WithContext(ctx).Create(payment).Error
	if err != nil && payment.RetainerID != nil && isDuplicateKey(err) {
		return domainRepo.ErrDuplicatePeriod
	}
	return err
}

func (r *paymentRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.OneTimePayment, error) {
	var payment entity.OneTimePayment
	err := r.db.WithContext(ctx).
		Preload("Client").
		First(&payment, "id = ? AND tenant_id = ?", id, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &payment, err
}

func (r *paymentRepository) GetByProviderRef(ctx context.Context, tenantID uuid.UUID, providerRef string) (*entity.OneTimePayment, error) {
	var payment entity.OneTimePayment
	err := r.db.WithContext(ctx).
		First(&payment, "provider_ref = ? AND tenant_id = ?", providerRef, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &payment, err
}

func (r *paymentRepository) Update(ctx context.Context, payment *entity.OneTimePayment) error {
	return r.db.WithContext(ctx).Omit("Client", "Retainer", "Tenant").Save(payment).Error
}

func (r *paymentRepository) List(ctx context.Context, tenantID uuid.UUID, params *domainRepo.PaymentFilterParams) ([]entity.OneTimePayment, int64, error) {
	var payments []entity.OneTimePayment
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.OneTimePayment{}).
		Scopes(tenantOwned(tenantID))

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.ClientID != nil {
		query = query.Where("client_id = ?", *params.ClientID)
	}
	if params.RetainerID != nil {
		query = query.Where("retainer_id = ?", *params.RetainerID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Scopes(paginated(params.Pagination)).
		Preload("Client").
		Order("created_at DESC").
		Find(&payments).Error

	return payments, total, err
}

// LastPeriodStart ignores failed attempts so a failed period is due again on
// the next sweep.
func (r *paymentRepository) LastPeriodStart(ctx context.Context, retainerID uuid.UUID) (*time.Time, error) {
	var payment entity.OneTimePayment
	err := r.db.WithContext(ctx).
		Where("retainer_id = ? AND status <> ? AND period_start IS NOT NULL", retainerID, enum.PaymentStatusFailed).
		Order("period_start DESC").
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payment.PeriodStart, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// The postgres driver is not always translated by gorm; fall back to the
	// SQLSTATE in the message.
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key")
}
