package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagikoren/agencyops-api/internal/domain/enum"
)

// Client represents a billable party in the agency directory. Leads that have
// not yet converted are kept in the same table, distinguished by Type, so a
// quote can target either without a copy on conversion.
type Client struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Type         enum.ClientType `gorm:"size:20;not null;default:'client'" json:"type"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	CompanyName  *string         `gorm:"size:255" json:"company_name,omitempty"`
	BillingEmail *string         `gorm:"size:255" json:"billing_email,omitempty"`
	Phone        *string         `gorm:"size:50" json:"phone,omitempty"`
	Address      *string         `gorm:"type:text" json:"address,omitempty"`
	Notes        *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relationships
	Tenant    Tenant           `gorm:"foreignKey:TenantID" json:"-"`
	Quotes    []Quote          `gorm:"foreignKey:ClientID" json:"-"`
	Retainers []Retainer       `gorm:"foreignKey:ClientID" json:"-"`
	Payments  []OneTimePayment `gorm:"foreignKey:ClientID" json:"-"`
}

// BeforeCreate generates a UUID before creating a new client
func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Client model
func (Client) TableName() string {
	return "clients"
}

// ResolvedClient is the projection handed to the billing core: just enough to
// address a charge or a payment link.
type ResolvedClient struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	BillingEmail string    `json:"billing_email"`
}
