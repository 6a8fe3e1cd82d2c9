package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
)

// Retainer is a recurring billing obligation. It never represents a single
// charge; the scheduler materializes one OneTimePayment per billing period.
type Retainer struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	TenantID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ClientID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	QuoteID     *uuid.UUID `gorm:"type:uuid" json:"quote_id,omitempty"` // set when created from an approved quote
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description *string    `gorm:"type:text" json:"description,omitempty"`

	Amount    int64                  `gorm:"not null" json:"amount"` // minor units per period
	Currency  string                 `gorm:"size:10;not null;default:'ILS'" json:"currency"`
	Frequency enum.RetainerFrequency `gorm:"size:20;not null;default:'monthly'" json:"frequency"`
	StartDate time.Time              `gorm:"type:date;not null" json:"start_date"`
	EndDate   *time.Time             `gorm:"type:date" json:"end_date,omitempty"`
	AutoRenew bool                   `gorm:"default:false" json:"auto_renew"`

	// ChargeToken is the stored payment method token the client authorized
	// for recurring capture. Nil means periods are collected by payment link
	// or manual reconciliation instead.
	ChargeToken *string `gorm:"size:255" json:"-"`

	EmailNotifications  bool                `gorm:"default:true" json:"email_notifications"`
	Status              enum.RetainerStatus `gorm:"default:0;index" json:"status"`
	ConsecutiveFailures int                 `gorm:"default:0" json:"consecutive_failures"`
	LastFailureReason   *string             `gorm:"type:text" json:"last_failure_reason,omitempty"`
	LastFailureAt       *time.Time          `json:"last_failure_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Tenant   Tenant           `gorm:"foreignKey:TenantID" json:"-"`
	Client   Client           `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Payments []OneTimePayment `gorm:"foreignKey:RetainerID" json:"-"`
}

// BeforeCreate generates a UUID before creating a new retainer
func (r *Retainer) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Retainer model
func (Retainer) TableName() string {
	return "retainers"
}

// PeriodAmount returns the per-period charge as Money.
func (r *Retainer) PeriodAmount() money.Money {
	return money.New(r.Amount, r.Currency)
}

// RanOut reports whether the obligation has run out: an end date in the past
// with auto-renew off. Auto-renewing retainers run until cancelled.
func (r *Retainer) RanOut(now time.Time) bool {
	return r.EndDate != nil && !r.AutoRenew && now.After(*r.EndDate)
}

// RecordFailure notes a failed charge and reports whether the consecutive
// failure count has reached the pause threshold.
func (r *Retainer) RecordFailure(reason string, now time.Time, pauseThreshold int) bool {
	r.ConsecutiveFailures++
	r.LastFailureReason = &reason
	r.LastFailureAt = &now
	return pauseThreshold > 0 && r.ConsecutiveFailures >= pauseThreshold
}

// RecordSuccess clears the consecutive failure streak.
func (r *Retainer) RecordSuccess() {
	r.ConsecutiveFailures = 0
	r.LastFailureReason = nil
	r.LastFailureAt = nil
}
