package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
	"github.com/sagikoren/agencyops-api/pkg/pagination"
)

// CatalogService handles priced items and the products composed from them
type CatalogService struct {
	itemRepo    repository.ItemRepository
	productRepo repository.ProductRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(itemRepo repository.ItemRepository, productRepo repository.ProductRepository) *CatalogService {
	return &CatalogService{
		itemRepo:    itemRepo,
		productRepo: productRepo,
	}
}

// CreateItemInput represents the input for creating a catalog item
type CreateItemInput struct {
	TenantID    uuid.UUID
	Name        string
	Description *string
	UnitPrice   money.Money
	PriceType   enum.PriceType
	Category    string
	Unit        string
}

// CreateItem creates a new catalog item
func (s *CatalogService) CreateItem(ctx context.Context, input *CreateItemInput) (*entity.Item, error) {
	if input.Name == "" {
		return nil, apperror.NewBadRequestError("Item name is required")
	}
	if input.UnitPrice.IsNegative() {
		return nil, apperror.NewBadRequestError("Item price cannot be negative")
	}
	if input.PriceType == "" {
		input.PriceType = enum.PriceTypeFixed
	}
	if !input.PriceType.IsValid() {
		return nil, apperror.NewBadRequestError("Invalid price type")
	}

	item := &entity.Item{
		TenantID:    input.TenantID,
		Name:        input.Name,
		Description: input.Description,
		UnitPrice:   input.UnitPrice.Amount,
		Currency:    input.UnitPrice.Currency,
		PriceType:   input.PriceType,
		Category:    input.Category,
		Unit:        input.Unit,
		IsActive:    true,
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItemInput represents the input for updating a catalog item
type UpdateItemInput struct {
	TenantID    uuid.UUID
	ID          uuid.UUID
	Name        string
	Description *string
	UnitPrice   money.Money
	PriceType   enum.PriceType
	Category    string
	Unit        string
	IsActive    bool
}

// UpdateItem updates an existing catalog item. Products that already snapshot
// the old price keep it until explicitly rebuilt.
func (s *CatalogService) UpdateItem(ctx context.Context, input *UpdateItemInput) (*entity.Item, error) {
	item, err := s.itemRepo.GetByID(ctx, input.TenantID, input.ID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperror.NewNotFoundError("Item")
	}
	if input.UnitPrice.IsNegative() {
		return nil, apperror.NewBadRequestError("Item price cannot be negative")
	}
	if input.PriceType != "" && !input.PriceType.IsValid() {
		return nil, apperror.NewBadRequestError("Invalid price type")
	}

	item.Name = input.Name
	item.Description = input.Description
	item.UnitPrice = input.UnitPrice.Amount
	item.Currency = input.UnitPrice.Currency
	if input.PriceType != "" {
		item.PriceType = input.PriceType
	}
	item.Category = input.Category
	item.Unit = input.Unit
	item.IsActive = input.IsActive

	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes an item unless an active product still references it.
// Referential integrity, not cascade: the caller must detach or deactivate
// the product first.
func (s *CatalogService) DeleteItem(ctx context.Context, tenantID, id uuid.UUID) error {
	item, err := s.itemRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if item == nil {
		return apperror.NewNotFoundError("Item")
	}

	refs, err := s.itemRepo.CountActiveProductRefs(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return apperror.ErrReferencedByProduct
	}

	return s.itemRepo.Delete(ctx, tenantID, id)
}

// GetItem retrieves a catalog item by ID
func (s *CatalogService) GetItem(ctx context.Context, tenantID, id uuid.UUID) (*entity.Item, error) {
	item, err := s.itemRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperror.NewNotFoundError("Item")
	}
	return item, nil
}

// ListItems lists catalog items with filtering
func (s *CatalogService) ListItems(ctx context.Context, tenantID uuid.UUID, params *repository.ItemFilterParams) (*pagination.PaginatedResult[entity.Item], error) {
	items, total, err := s.itemRepo.List(ctx, tenantID, params)
	if err != nil {
		return nil, err
	}
	pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)
	return pagination.NewPaginatedResult(items, pag), nil
}

// ProductItemInput selects a catalog item and quantity for a product
type ProductItemInput struct {
	ItemID   uuid.UUID
	Quantity int
}

// PredefinedTaskInput is a project task template attached to a product
type PredefinedTaskInput struct {
	Title          string
	EstimatedHours float64
	SortOrder      int
}

// CreateProductInput represents the input for assembling a product
type CreateProductInput struct {
	TenantID        uuid.UUID
	Name            string
	Description     *string
	Category        *string
	Items           []ProductItemInput
	PredefinedTasks []PredefinedTaskInput
}

// CreateProduct assembles a product from catalog items and snapshots the
// summed price at build time.
func (s *CatalogService) CreateProduct(ctx context.Context, input *CreateProductInput) (*entity.Product, error) {
	if input.Name == "" {
		return nil, apperror.NewBadRequestError("Product name is required")
	}
	if len(input.Items) == 0 {
		return nil, apperror.ErrEmptySelection
	}

	price, productItems, err := s.priceSelection(ctx, input.TenantID, input.Items)
	if err != nil {
		return nil, err
	}

	product := &entity.Product{
		TenantID:      input.TenantID,
		Name:          input.Name,
		Description:   input.Description,
		Category:      input.Category,
		ComputedPrice: price.Amount,
		Currency:      price.Currency,
		IsActive:      true,
		Items:         productItems,
	}
	for _, t := range input.PredefinedTasks {
		product.PredefinedTasks = append(product.PredefinedTasks, entity.ProductPredefinedTask{
			Title:          t.Title,
			EstimatedHours: t.EstimatedHours,
			SortOrder:      t.SortOrder,
		})
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// RebuildProductPrice re-snapshots a product's price from current item
// prices. This is the only way item price changes reach an existing product.
func (s *CatalogService) RebuildProductPrice(ctx context.Context, tenantID, productID uuid.UUID) (*entity.Product, error) {
	product, err := s.productRepo.GetWithItems(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}

	selection := make([]ProductItemInput, 0, len(product.Items))
	for _, pi := range product.Items {
		selection = append(selection, ProductItemInput{ItemID: pi.ItemID, Quantity: pi.Quantity})
	}
	if len(selection) == 0 {
		return nil, apperror.ErrEmptySelection
	}

	price, _, err := s.priceSelection(ctx, tenantID, selection)
	if err != nil {
		return nil, err
	}

	product.ComputedPrice = price.Amount
	product.Currency = price.Currency
	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// GetProduct retrieves a product with its items
func (s *CatalogService) GetProduct(ctx context.Context, tenantID, id uuid.UUID) (*entity.Product, error) {
	product, err := s.productRepo.GetWithItems(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}
	return product, nil
}

// ListProducts lists products with filtering
func (s *CatalogService) ListProducts(ctx context.Context, tenantID uuid.UUID, params *repository.ProductFilterParams) (*pagination.PaginatedResult[entity.Product], error) {
	products, total, err := s.productRepo.List(ctx, tenantID, params)
	if err != nil {
		return nil, err
	}
	pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)
	return pagination.NewPaginatedResult(products, pag), nil
}

// DeleteProduct soft-deletes a product
func (s *CatalogService) DeleteProduct(ctx context.Context, tenantID, id uuid.UUID) error {
	product, err := s.productRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if product == nil {
		return apperror.NewNotFoundError("Product")
	}
	return s.productRepo.Delete(ctx, tenantID, id)
}

// priceSelection loads the selected items and sums unitPrice * quantity via
// Money arithmetic. One load per selection, not per line, and each quantity
// must be positive.
func (s *CatalogService) priceSelection(ctx context.Context, tenantID uuid.UUID, selection []ProductItemInput) (money.Money, []entity.ProductItem, error) {
	ids := make([]uuid.UUID, 0, len(selection))
	for _, sel := range selection {
		if sel.Quantity < 1 {
			return money.Money{}, nil, apperror.NewBadRequestError("Item quantity must be at least 1")
		}
		ids = append(ids, sel.ItemID)
	}

	items, err := s.itemRepo.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return money.Money{}, nil, err
	}
	byID := make(map[uuid.UUID]*entity.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	var total money.Money
	productItems := make([]entity.ProductItem, 0, len(selection))
	for i, sel := range selection {
		item, ok := byID[sel.ItemID]
		if !ok {
			return money.Money{}, nil, apperror.NewNotFoundError("Item")
		}
		line := item.Price().MultiplyByQuantity(sel.Quantity)
		if i == 0 {
			total = money.Zero(line.Currency)
		}
		total, err = total.Add(line)
		if err != nil {
			return money.Money{}, nil, err
		}
		productItems = append(productItems, entity.ProductItem{
			ItemID:   sel.ItemID,
			Quantity: sel.Quantity,
		})
	}
	return total, productItems, nil
}
