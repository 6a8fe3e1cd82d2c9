package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/pkg/apperror"

	"github.com/google/uuid"
)

type catalogFixture struct {
	svc      *CatalogService
	items    *memItemRepo
	products *memProductRepo
	tenantID uuid.UUID
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	items := newMemItemRepo()
	products := newMemProductRepo()
	return &catalogFixture{
		svc:      NewCatalogService(items, products),
		items:    items,
		products: products,
		tenantID: uuid.New(),
	}
}

func (f *catalogFixture) item(t *testing.T, name string, unitPrice int64) uuid.UUID {
	t.Helper()
	item, err := f.svc.CreateItem(context.Background(), &CreateItemInput{
		TenantID:  f.tenantID,
		Name:      name,
		UnitPrice: money.New(unitPrice, "ILS"),
	})
	require.NoError(t, err)
	return item.ID
}

func TestCreateItemDefaultsAndValidation(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()

	item, err := f.svc.CreateItem(ctx, &CreateItemInput{
		TenantID:  f.tenantID,
		Name:      "Copywriting page",
		UnitPrice: money.New(25000, "ILS"),
	})
	require.NoError(t, err)
	assert.Equal(t, enum.PriceTypeFixed, item.PriceType, "price type defaults to fixed")
	assert.True(t, item.IsActive)

	_, err = f.svc.CreateItem(ctx, &CreateItemInput{
		TenantID:  f.tenantID,
		UnitPrice: money.New(25000, "ILS"),
	})
	assert.Error(t, err, "name is required")

	_, err = f.svc.CreateItem(ctx, &CreateItemInput{
		TenantID:  f.tenantID,
		Name:      "Discount",
		UnitPrice: money.New(-100, "ILS"),
	})
	assert.Error(t, err, "negative price")

	_, err = f.svc.CreateItem(ctx, &CreateItemInput{
		TenantID:  f.tenantID,
		Name:      "Odd",
		UnitPrice: money.New(100, "ILS"),
		PriceType: enum.PriceType("weekly"),
	})
	assert.Error(t, err, "unknown price type")
}

func TestDeleteItemBlockedByActiveProductRef(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()

	itemID := f.item(t, "Design hour", 45000)
	f.items.activeRefs[itemID] = 2

	err := f.svc.DeleteItem(ctx, f.tenantID, itemID)
	assert.ErrorIs(t, err, apperror.ErrReferencedByProduct)

	f.items.activeRefs[itemID] = 0
	require.NoError(t, f.svc.DeleteItem(ctx, f.tenantID, itemID))

	_, err = f.svc.GetItem(ctx, f.tenantID, itemID)
	assert.Error(t, err, "item is gone")
}

func TestCreateProductSnapshotsSummedPrice(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()

	design := f.item(t, "Design hour", 45000)
	copywriting := f.item(t, "Copywriting page", 25000)

	product, err := f.svc.CreateProduct(ctx, &CreateProductInput{
		TenantID: f.tenantID,
		Name:     "Landing page package",
		Items: []ProductItemInput{
			{ItemID: design, Quantity: 8},
			{ItemID: copywriting, Quantity: 4},
		},
		PredefinedTasks: []PredefinedTaskInput{
			{Title: "Kickoff", EstimatedHours: 2},
			{Title: "Design review", EstimatedHours: 1.5, SortOrder: 1},
		},
	})
	require.NoError(t, err)

	// 8*45000 + 4*25000.
	assert.Equal(t, int64(460000), product.ComputedPrice)
	assert.Equal(t, "ILS", product.Currency)
	require.Len(t, product.Items, 2)
	require.Len(t, product.PredefinedTasks, 2)

	_, err = f.svc.CreateProduct(ctx, &CreateProductInput{
		TenantID: f.tenantID, Name: "Empty bundle",
	})
	assert.ErrorIs(t, err, apperror.ErrEmptySelection)

	_, err = f.svc.CreateProduct(ctx, &CreateProductInput{
		TenantID: f.tenantID, Name: "Ghost bundle",
		Items: []ProductItemInput{{ItemID: uuid.New(), Quantity: 1}},
	})
	assert.Error(t, err, "unknown item in selection")

	_, err = f.svc.CreateProduct(ctx, &CreateProductInput{
		TenantID: f.tenantID, Name: "Zero bundle",
		Items: []ProductItemInput{{ItemID: design, Quantity: 0}},
	})
	assert.Error(t, err, "quantity must be positive")
}

func TestRebuildProductPriceReSnapshotsCurrentItemPrices(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()

	design := f.item(t, "Design hour", 45000)
	product, err := f.svc.CreateProduct(ctx, &CreateProductInput{
		TenantID: f.tenantID,
		Name:     "Design sprint",
		Items:    []ProductItemInput{{ItemID: design, Quantity: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(450000), product.ComputedPrice)

	// Repricing the item leaves the snapshot alone until a rebuild.
	item, err := f.svc.GetItem(ctx, f.tenantID, design)
	require.NoError(t, err)
	_, err = f.svc.UpdateItem(ctx, &UpdateItemInput{
		TenantID:  f.tenantID,
		ID:        design,
		Name:      item.Name,
		UnitPrice: money.New(50000, "ILS"),
		PriceType: item.PriceType,
		IsActive:  true,
	})
	require.NoError(t, err)

	unchanged, err := f.svc.GetProduct(ctx, f.tenantID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(450000), unchanged.ComputedPrice)

	rebuilt, err := f.svc.RebuildProductPrice(ctx, f.tenantID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), rebuilt.ComputedPrice)
}
