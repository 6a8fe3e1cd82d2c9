package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagikoren/agencyops-api/pkg/pagination"
)

// tenantOwned filters a query down to one tenant's rows. Every listing
// over a tenant-scoped table goes through it so the filter cannot be
// forgotten as a query grows more clauses.
func tenantOwned(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// paginated clamps the requested page window and applies it.
func paginated(p *pagination.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		p.Validate()
		return db.Offset(p.Offset()).Limit(p.PerPage)
	}
}
