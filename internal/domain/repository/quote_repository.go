package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/pkg/pagination"
)

// QuoteRepository defines the interface for quote data operations
type QuoteRepository interface {
	Create(ctx context.Context, quote *entity.Quote) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Quote, error)
	GetWithLineItems(ctx context.Context, tenantID, id uuid.UUID) (*entity.Quote, error)
	// Update persists the quote only if its stored status still equals
	// expectedStatus; otherwise it reports a stale write.
	Update(ctx context.Context, quote *entity.Quote, expectedStatus enum.QuoteStatus) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, params *QuoteFilterParams) ([]entity.Quote, int64, error)
	// ListExpirable returns sent quotes whose valid_until has passed.
	ListExpirable(ctx context.Context, now time.Time) ([]entity.Quote, error)
	// NextQuoteNumber atomically claims the next number in the tenant's
	// sequence. Numbers are never reused, even across deleted drafts.
	NextQuoteNumber(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// SaveDraft persists a draft quote together with its full line set in
	// one transaction. The draft status guard runs before the lines are
	// touched, so a quote that left draft concurrently keeps its lines.
	SaveDraft(ctx context.Context, quote *entity.Quote) error
}

// QuoteFilterParams contains filtering parameters for quote queries
type QuoteFilterParams struct {
	Pagination *pagination.PaginationParams
	Search     string
	Status     *enum.QuoteStatus
	ClientID   *uuid.UUID
	SortBy     string
	SortOrder  string
}
