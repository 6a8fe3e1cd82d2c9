package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/pkg/pagination"
)

// ItemRepository defines the interface for catalog item data operations
type ItemRepository interface {
	Create(ctx context.Context, item *entity.Item) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Item, error)
	GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]entity.Item, error)
	Update(ctx context.Context, item *entity.Item) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, params *ItemFilterParams) ([]entity.Item, int64, error)
	// CountActiveProductRefs counts active products that include the item.
	CountActiveProductRefs(ctx context.Context, tenantID, itemID uuid.UUID) (int64, error)
}

// ItemFilterParams contains filtering parameters for item queries
type ItemFilterParams struct {
	Pagination *pagination.PaginationParams
	Search     string
	Category   string
	ActiveOnly bool
}

// ProductRepository defines the interface for product data operations
type ProductRepository interface {
	// Create persists the product together with its item links and tasks.
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Product, error)
	GetWithItems(ctx context.Context, tenantID, id uuid.UUID) (*entity.Product, error)
	Update(ctx context.Context, product *entity.Product) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, params *ProductFilterParams) ([]entity.Product, int64, error)
	ReplaceItems(ctx context.Context, productID uuid.UUID, items []entity.ProductItem) error
}

// ProductFilterParams contains filtering parameters for product queries
type ProductFilterParams struct {
	Pagination *pagination.PaginationParams
	Search     string
	Category   string
	ActiveOnly bool
}
