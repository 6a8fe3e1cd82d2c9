package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	domainRepo "github.com/sagikoren/agencyops-api/internal/domain/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type paymentSettingsRepository struct {
	db *gorm.DB
}

// NewPaymentSettingsRepository creates a new payment settings repository
func NewPaymentSettingsRepository(db *gorm.DB) domainRepo.PaymentSettingsRepository {
	return &paymentSettingsRepository{db: db}
}

func (r *paymentSettingsRepository) GetByTenant(ctx context.Context, tenantID uuid.UUID) (*entity.PaymentSettings, error) {
	var settings entity.PaymentSettings
	err := r.db.WithContext(ctx).
		First(&settings, "tenant_id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &settings, err
}

func (r *paymentSettingsRepository) Upsert(ctx context.Context, settings *entity.PaymentSettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			UpdateAll: true,
		}).
		Create(settings).Error
}
