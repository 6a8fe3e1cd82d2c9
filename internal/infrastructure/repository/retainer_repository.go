package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	domainRepo "github.com/sagikoren/agencyops-api/internal/domain/repository"
	"gorm.io/gorm"
)

type retainerRepository struct {
	db *gorm.DB
}

// NewRetainerRepository creates a new retainer repository
func NewRetainerRepository(db *gorm.DB) domainRepo.RetainerRepository {
	return &retainerRepository{db: db}
}

func (r *retainerRepository) Create(ctx context.Context, retainer *entity.Retainer) error {
	return r.db.WithContext(ctx).Create(retainer).Error
}

func (r *retainerRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Retainer, error) {
	var retainer entity.Retainer
	err := r.db.WithContext(ctx).
		Preload("Client").
		First(&retainer, "id = ? AND tenant_id = ?", id, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &retainer, err
}

func (r *retainerRepository) Update(ctx context.Context, retainer *entity.Retainer) error {
	return r.db.WithContext(ctx).Omit("Client", "Payments").Save(retainer).Error
}

func (r *retainerRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&entity.Retainer{}, "id = ? AND tenant_id = ?", id, tenantID).Error
}

func (r *retainerRepository) List(ctx context.Context, tenantID uuid.UUID, params *domainRepo.RetainerFilterParams) ([]entity.Retainer, int64, error) {
	var retainers []entity.Retainer
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Retainer{}).
		Scopes(tenantOwned(tenantID))

	if params.Search != "" {
		query = query.Where("title ILIKE ?", "%"+params.Search+"%")
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.ClientID != nil {
		query = query.Where("client_id = ?", *params.ClientID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Scopes(paginated(params.Pagination)).
		Preload("Client").
		Order("created_at DESC").
		Find(&retainers).Error

	return retainers, total, err
}

// ListActive spans all tenants; the scheduler sweep is the one caller allowed
// to cross tenant boundaries.
func (r *retainerRepository) ListActive(ctx context.Context) ([]entity.Retainer, error) {
	var retainers []entity.Retainer
	err := r.db.WithContext(ctx).
		Where("status = ?", enum.RetainerStatusActive).
		Order("created_at ASC").
		Find(&retainers).Error
	return retainers, err
}
