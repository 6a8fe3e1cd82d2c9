package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

// OneTimePayment tracks the lifecycle of a single charge. When RetainerID is
// set the record is the materialized occurrence of one billing period; the
// unique (retainer_id, period_start) index is what makes materialization safe
// to re-run concurrently.
type OneTimePayment struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	TenantID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ClientID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	// Partial unique index: at most one non-failed payment per retainer period.
	// A failed attempt stays on record while the next sweep issues a fresh one.
	RetainerID  *uuid.UUID `gorm:"type:uuid;index;index:idx_payments_retainer_period,unique,where:status <> 2" json:"retainer_id,omitempty"`
	QuoteID     *uuid.UUID `gorm:"type:uuid" json:"quote_id,omitempty"`
	PeriodStart *time.Time `gorm:"type:date;index:idx_payments_retainer_period,unique,where:status <> 2" json:"period_start,omitempty"`
	Description string     `gorm:"size:500;not null" json:"description"`

	Amount   int64  `gorm:"not null" json:"amount"` // minor units
	Currency string `gorm:"size:10;not null;default:'ILS'" json:"currency"`

	Status        enum.PaymentStatus `gorm:"default:0;index" json:"status"`
	FailureReason *string            `gorm:"type:text" json:"failure_reason,omitempty"`

	// Provider identity is frozen at capture time so switching the tenant's
	// provider later never rewrites payment history. ProviderRef is assigned
	// earlier, at link creation, so the gateway's webhook can find the row.
	Provider    *string `gorm:"size:50" json:"provider,omitempty"`
	ProviderRef *string `gorm:"size:255" json:"provider_ref,omitempty"`
	PaymentLink *string `gorm:"size:1000" json:"payment_link,omitempty"`

	CreatedAt  time.Time      `json:"created_at"`
	CapturedAt *time.Time     `json:"captured_at,omitempty"`
	FailedAt   *time.Time     `json:"failed_at,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Tenant   Tenant    `gorm:"foreignKey:TenantID" json:"-"`
	Client   Client    `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Retainer *Retainer `gorm:"foreignKey:RetainerID" json:"-"`
}

// BeforeCreate generates a UUID before creating a new payment
func (p *OneTimePayment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the OneTimePayment model
func (OneTimePayment) TableName() string {
	return "one_time_payments"
}

// Total returns the charge amount as Money.
func (p *OneTimePayment) Total() money.Money {
	return money.New(p.Amount, p.Currency)
}

// MarkCompleted records a successful capture. A second capture of a completed
// payment fails with AlreadyCaptured and leaves the record untouched.
func (p *OneTimePayment) MarkCompleted(provider, providerRef string, now time.Time) error {
	if p.Status == enum.PaymentStatusCompleted {
		return apperror.ErrAlreadyCaptured
	}
	if p.Status != enum.PaymentStatusPending {
		return apperror.ErrPaymentNotPending
	}
	p.Status = enum.PaymentStatusCompleted
	p.Provider = &provider
	p.ProviderRef = &providerRef
	p.CapturedAt = &now
	p.FailureReason = nil
	return nil
}

// MarkFailed records a failed capture attempt with a human-readable reason.
func (p *OneTimePayment) MarkFailed(reason string, now time.Time) error {
	if p.Status == enum.PaymentStatusCompleted {
		return apperror.ErrAlreadyCaptured
	}
	p.Status = enum.PaymentStatusFailed
	p.FailureReason = &reason
	p.FailedAt = &now
	return nil
}
