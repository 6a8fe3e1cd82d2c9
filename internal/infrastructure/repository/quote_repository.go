package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	domainRepo "github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
	"gorm.io/gorm"
)

type quoteRepository struct {
	db *gorm.DB
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(db *gorm.DB) domainRepo.QuoteRepository {
	return &quoteRepository{db: db}
}

func (r *quoteRepository) Create(ctx context.Context, quote *entity.Quote) error {
	return r.db.WithContext(ctx).Create(quote).Error
}

func (r *quoteRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Quote, error) {
	var quote entity.Quote
	err := r.db.WithContext(ctx).
		First(&quote, "id = ? AND tenant_id = ?", id, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &quote, err
}

func (r *quoteRepository) GetWithLineItems(ctx context.Context, tenantID, id uuid.UUID) (*entity.Quote, error) {
	var quote entity.Quote
	err := r.db.WithContext(ctx).
		Preload("Client").
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		First(&quote, "id = ? AND tenant_id = ?", id, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &quote, err
}

// Update writes the quote only while its stored status still matches
// expectedStatus. Zero rows affected means another request decided the quote
// first; the caller gets a stale state error instead of silently winning.
func (r *quoteRepository) Update(ctx context.Context, quote *entity.Quote, expectedStatus enum.QuoteStatus) error {
	res := r.db.WithContext(ctx).Model(&entity.Quote{}).
		Where("id = ? AND tenant_id = ? AND status = ?", quote.ID, quote.TenantID, expectedStatus).
		Select("*").
		Omit("id", "tenant_id", "quote_number", "created_at", "deleted_at").
		Updates(quote)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.ErrStaleQuoteState
	}
	return nil
}

func (r *quoteRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&entity.Quote{}, "id = ? AND tenant_id = ?", id, tenantID).Error
}

func (r *quoteRepository) List(ctx context.Context, tenantID uuid.UUID, params *domainRepo.QuoteFilterParams) ([]entity.Quote, int64, error) {
	var quotes []entity.Quote
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Quote{}).
		Scopes(tenantOwned(tenantID))

	if params.Search != "" {
		query = query.Where("title ILIKE ?", "%"+params.Search+"%")
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.ClientID != nil {
		query = query.Where("client_id = ?", *params.ClientID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := "created_at"
	sortOrder := "DESC"
	if params.SortBy != "" {
		sortBy = params.SortBy
	}
	if params.SortOrder == "ASC" || params.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	err := query.Scopes(paginated(params.Pagination)).
		Preload("Client").
		Order(sortBy + " " + sortOrder).
		Find(&quotes).Error

	return quotes, total, err
}

func (r *quoteRepository) ListExpirable(ctx context.Context, now time.Time) ([]entity.Quote, error) {
	var quotes []entity.Quote
	err := r.db.WithContext(ctx).
		Where("status = ? AND valid_until IS NOT NULL AND valid_until < ?", enum.QuoteStatusSent, now).
		Find(&quotes).Error
	return quotes, err
}

// NextQuoteNumber claims the next number in the tenant's sequence in a single
// upsert so concurrent claims never hand out the same number.
func (r *quoteRepository) NextQuoteNumber(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO quote_sequences (tenant_id, next_value, updated_at)
		VALUES (?, 2, NOW())
		ON CONFLICT (tenant_id)
		DO UPDATE SET next_value = quote_sequences.next_value + 1, updated_at = NOW()
		RETURNING next_value - 1
	`, tenantID).Scan(&next).Error
	return next, err
}

// SaveDraft writes the quote header and its line set in one transaction. The
// status guard runs first: if the quote left draft concurrently, nothing is
// deleted and the caller sees a stale write.
func (r *quoteRepository) SaveDraft(ctx context.Context, quote *entity.Quote) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.Quote{}).
			Where("id = ? AND tenant_id = ? AND status = ?", quote.ID, quote.TenantID, enum.QuoteStatusDraft).
			Select("*").
			Omit("id", "tenant_id", "quote_number", "created_at", "deleted_at").
			Updates(quote)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.ErrStaleQuoteState
		}

		if err := tx.Unscoped().Where("quote_id = ?", quote.ID).Delete(&entity.QuoteLineItem{}).Error; err != nil {
			return err
		}
		if len(quote.LineItems) == 0 {
			return nil
		}
		for i := range quote.LineItems {
			quote.LineItems[i].QuoteID = quote.ID
		}
		return tx.Create(&quote.LineItems).Error
	})
}
