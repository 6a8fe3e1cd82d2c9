package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagikoren/agencyops-api/internal/domain/money"
)

// Product is a composite offering assembled from catalog items. ComputedPrice
// is a snapshot taken when the product is built or explicitly rebuilt; later
// item price changes do not drift into it.
type Product struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	TenantID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name          string         `gorm:"size:255;not null" json:"name"`
	Description   *string        `gorm:"type:text" json:"description,omitempty"`
	Category      *string        `gorm:"size:100" json:"category,omitempty"`
	ComputedPrice int64          `gorm:"not null;default:0" json:"computed_price"` // minor units, snapshot
	Currency      string         `gorm:"size:10;not null;default:'ILS'" json:"currency"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Tenant          Tenant                  `gorm:"foreignKey:TenantID" json:"-"`
	Items           []ProductItem           `gorm:"foreignKey:ProductID" json:"items,omitempty"`
	PredefinedTasks []ProductPredefinedTask `gorm:"foreignKey:ProductID" json:"predefined_tasks,omitempty"`
}

// BeforeCreate generates a UUID before creating a new product
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// Price returns the snapshot price as Money.
func (p *Product) Price() money.Money {
	return money.New(p.ComputedPrice, p.Currency)
}

// ProductItem links a product to a constituent catalog item with a quantity.
type ProductItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	ItemID    uuid.UUID `gorm:"type:uuid;not null;index" json:"item_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Product Product `gorm:"foreignKey:ProductID" json:"-"`
	Item    Item    `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

// BeforeCreate generates a UUID before creating a new product item
func (pi *ProductItem) BeforeCreate(tx *gorm.DB) error {
	if pi.ID == uuid.Nil {
		pi.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the ProductItem model
func (ProductItem) TableName() string {
	return "product_items"
}

// ProductPredefinedTask is a project task template attached to a product, used
// to seed a project board when a quote containing the product is approved.
type ProductPredefinedTask struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ProductID      uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Title          string    `gorm:"size:255;not null" json:"title"`
	EstimatedHours float64   `gorm:"default:0" json:"estimated_hours"`
	SortOrder      int       `gorm:"default:0" json:"sort_order"`
	CreatedAt      time.Time `json:"created_at"`

	// Relationships
	Product Product `gorm:"foreignKey:ProductID" json:"-"`
}

// BeforeCreate generates a UUID before creating a new predefined task
func (t *ProductPredefinedTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the ProductPredefinedTask model
func (ProductPredefinedTask) TableName() string {
	return "product_predefined_tasks"
}
