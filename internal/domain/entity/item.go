package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
)

// Item is an atomic priced offering in the catalog. Prices are stored in
// integer minor units; conversion to display values happens in the DTO layer.
type Item struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	TenantID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	Description *string        `gorm:"type:text" json:"description,omitempty"`
	UnitPrice   int64          `gorm:"not null;default:0" json:"unit_price"` // minor units
	Currency    string         `gorm:"size:10;not null;default:'ILS'" json:"currency"`
	PriceType   enum.PriceType `gorm:"size:20;not null;default:'fixed'" json:"price_type"`
	Category    string         `gorm:"size:100" json:"category"`
	Unit        string         `gorm:"size:50" json:"unit"` // e.g. hour, page, month
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Tenant Tenant `gorm:"foreignKey:TenantID" json:"-"`
}

// BeforeCreate generates a UUID before creating a new item
func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Item model
func (Item) TableName() string {
	return "items"
}

// Price returns the unit price as Money.
func (i *Item) Price() money.Money {
	return money.New(i.UnitPrice, i.Currency)
}
