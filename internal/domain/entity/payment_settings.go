package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagikoren/agencyops-api/internal/domain/enum"
)

// PaymentSettings is per-tenant payment gateway configuration. It is passed
// explicitly into the provider factory at request time; nothing reads it from
// ambient state, so provider selection stays deterministic per call.
type PaymentSettings struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"tenant_id"`

	Provider      enum.ProviderType `gorm:"size:50;not null;default:'manual'" json:"provider"`
	IsEnabled     bool              `gorm:"default:false" json:"is_enabled"`
	APIKey        string            `gorm:"size:255" json:"-"`
	SecretKey     string            `gorm:"size:255" json:"-"`
	WebhookSecret *string           `gorm:"size:255" json:"-"`

	Currency           string  `gorm:"size:10;not null;default:'ILS'" json:"currency"`
	VATRateBasisPoints int64   `gorm:"not null;default:1700" json:"vat_rate_basis_points"`
	TestMode           bool    `gorm:"default:true" json:"test_mode"`
	AutoCapture        bool    `gorm:"default:true" json:"auto_capture"`
	DefaultDescription *string `gorm:"size:500" json:"default_description,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Tenant Tenant `gorm:"foreignKey:TenantID" json:"-"`
}

// BeforeCreate generates a UUID before creating new settings
func (s *PaymentSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the PaymentSettings model
func (PaymentSettings) TableName() string {
	return "payment_settings"
}
