package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	domainRepo "github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
	"github.com/sagikoren/agencyops-api/pkg/pagination"
	"gorm.io/gorm"
)

type clientRepository struct {
	db *gorm.DB
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *gorm.DB) domainRepo.ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, client *entity.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *clientRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Client, error) {
	var client entity.Client
	err := r.db.WithContext(ctx).
		First(&client, "id = ? AND tenant_id = ?", id, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &client, err
}

func (r *clientRepository) Resolve(ctx context.Context, tenantID, id uuid.UUID, clientType enum.ClientType) (*entity.ResolvedClient, error) {
	var client entity.Client
	err := r.db.WithContext(ctx).
		First(&client, "id = ? AND tenant_id = ? AND type = ?", id, tenantID, clientType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}

	resolved := &entity.ResolvedClient{
		ID:   client.ID,
		Name: client.Name,
	}
	if client.BillingEmail != nil {
		resolved.BillingEmail = *client.BillingEmail
	}
	return resolved, nil
}

func (r *clientRepository) List(ctx context.Context, tenantID uuid.UUID, params *pagination.PaginationParams) ([]entity.Client, int64, error) {
	var clients []entity.Client
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Client{}).
		Scopes(tenantOwned(tenantID))

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Scopes(paginated(params)).
		Order("name ASC").
		Find(&clients).Error

	return clients, total, err
}
