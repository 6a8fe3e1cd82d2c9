package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

// Quote is the central quote-to-cash document. Subtotal, VATAmount and
// TotalAmount are derived values: they are only ever written by Recompute and
// are re-derived on every line item mutation while the quote is a draft.
type Quote struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_quotes_tenant_number" json:"tenant_id"`
	QuoteNumber int64           `gorm:"not null;uniqueIndex:idx_quotes_tenant_number" json:"quote_number"`
	Title       string          `gorm:"size:255;not null" json:"title"`
	ClientID    *uuid.UUID      `gorm:"type:uuid;index" json:"client_id,omitempty"`
	ClientType  enum.ClientType `gorm:"size:20;default:'client'" json:"client_type"`

	Subtotal           int64  `gorm:"not null;default:0" json:"subtotal"` // minor units
	VATRateBasisPoints int64  `gorm:"not null;default:0" json:"vat_rate_basis_points"`
	VATAmount          int64  `gorm:"not null;default:0" json:"vat_amount"`
	TotalAmount        int64  `gorm:"not null;default:0" json:"total_amount"`
	Currency           string `gorm:"size:10;not null;default:'ILS'" json:"currency"`

	Status     enum.QuoteStatus `gorm:"default:0;index" json:"status"`
	ValidUntil *time.Time       `json:"valid_until,omitempty"`
	SentAt     *time.Time       `json:"sent_at,omitempty"`
	ApprovedAt *time.Time       `json:"approved_at,omitempty"`
	RejectedAt *time.Time       `json:"rejected_at,omitempty"`
	SignedAt   *time.Time       `json:"signed_at,omitempty"`
	ExpiredAt  *time.Time       `json:"expired_at,omitempty"`

	Terms *string `gorm:"type:text" json:"terms,omitempty"`
	Notes *string `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Tenant    Tenant          `gorm:"foreignKey:TenantID" json:"-"`
	Client    *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	LineItems []QuoteLineItem `gorm:"foreignKey:QuoteID" json:"line_items,omitempty"`
}

// BeforeCreate generates a UUID before creating a new quote
func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Quote model
func (Quote) TableName() string {
	return "quotes"
}

// Recompute re-derives subtotal, VAT and total from the line items. It is the
// only code path that writes the three derived fields.
func (q *Quote) Recompute() {
	subtotal := money.Zero(q.Currency)
	for i := range q.LineItems {
		// LineTotal was fixed when the line was added; sum, don't rederive.
		subtotal, _ = subtotal.Add(money.New(q.LineItems[i].LineTotal, q.Currency))
	}
	vat := subtotal.Percentage(q.VATRateBasisPoints)
	total, _ := subtotal.Add(vat)

	q.Subtotal = subtotal.Amount
	q.VATAmount = vat.Amount
	q.TotalAmount = total.Amount
}

// EnsureDraft fails with QuoteLocked unless the quote is still editable.
func (q *Quote) EnsureDraft() error {
	if q.Status != enum.QuoteStatusDraft {
		return apperror.ErrQuoteLocked
	}
	return nil
}

// Submit moves draft -> sent. Requires at least one line item and a client.
func (q *Quote) Submit(now time.Time) error {
	if q.Status != enum.QuoteStatusDraft {
		return apperror.ErrInvalidTransition
	}
	if len(q.LineItems) == 0 {
		return apperror.ErrEmptyQuote
	}
	if q.ClientID == nil || *q.ClientID == uuid.Nil {
		return apperror.ErrMissingClient
	}
	q.Status = enum.QuoteStatusSent
	q.SentAt = &now
	return nil
}

// Approve moves sent -> approved.
func (q *Quote) Approve(now time.Time) error {
	if q.Status != enum.QuoteStatusSent {
		return apperror.ErrInvalidTransition
	}
	q.Status = enum.QuoteStatusApproved
	q.ApprovedAt = &now
	q.SignedAt = &now
	return nil
}

// Reject moves sent -> rejected.
func (q *Quote) Reject(now time.Time) error {
	if q.Status != enum.QuoteStatusSent {
		return apperror.ErrInvalidTransition
	}
	q.Status = enum.QuoteStatusRejected
	q.RejectedAt = &now
	return nil
}

// Expire moves sent -> expired once ValidUntil has passed. Idempotent: an
// already-expired quote is a no-op so the sweep can re-run safely.
func (q *Quote) Expire(now time.Time) error {
	if q.Status == enum.QuoteStatusExpired {
		return nil
	}
	if q.Status != enum.QuoteStatusSent {
		return apperror.ErrInvalidTransition
	}
	if q.ValidUntil == nil || !now.After(*q.ValidUntil) {
		return nil
	}
	q.Status = enum.QuoteStatusExpired
	q.ExpiredAt = &now
	return nil
}

// HasLinesOfType reports whether any line item uses the given price type.
func (q *Quote) HasLinesOfType(pt enum.PriceType) bool {
	for i := range q.LineItems {
		if q.LineItems[i].PriceType == pt {
			return true
		}
	}
	return false
}

// AmountOfType sums line totals for lines of the given price type.
func (q *Quote) AmountOfType(pt enum.PriceType) money.Money {
	sum := money.Zero(q.Currency)
	for i := range q.LineItems {
		if q.LineItems[i].PriceType == pt {
			sum, _ = sum.Add(money.New(q.LineItems[i].LineTotal, q.Currency))
		}
	}
	return sum
}

// QuoteLineItem is one priced row in a quote. UnitPrice and LineTotal are
// frozen when the row is added; later catalog price changes never reach it.
type QuoteLineItem struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	QuoteID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"quote_id"`
	ProductID   *uuid.UUID     `gorm:"type:uuid" json:"product_id,omitempty"`
	ItemID      *uuid.UUID     `gorm:"type:uuid" json:"item_id,omitempty"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	Description *string        `gorm:"type:text" json:"description,omitempty"`
	Quantity    int            `gorm:"not null" json:"quantity"`
	UnitPrice   int64          `gorm:"not null" json:"unit_price"` // minor units, frozen at quoting time
	PriceType   enum.PriceType `gorm:"size:20;not null;default:'fixed'" json:"price_type"`
	LineTotal   int64          `gorm:"not null" json:"line_total"` // minor units, UnitPrice * Quantity
	SortOrder   int            `gorm:"default:0" json:"sort_order"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Quote Quote `gorm:"foreignKey:QuoteID" json:"-"`
}

// BeforeCreate generates a UUID before creating a new line item
func (li *QuoteLineItem) BeforeCreate(tx *gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the QuoteLineItem model
func (QuoteLineItem) TableName() string {
	return "quote_line_items"
}

// QuoteSequence hands out tenant-scoped sequential quote numbers. Numbers are
// never reused, even when drafts are deleted.
type QuoteSequence struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"tenant_id"`
	NextValue int64     `gorm:"not null;default:1" json:"next_value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for the QuoteSequence model
func (QuoteSequence) TableName() string {
	return "quote_sequences"
}
