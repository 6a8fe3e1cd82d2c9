package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/pkg/pagination"
)

// ErrDuplicatePeriod reports an insert that collided with an existing
// non-failed payment for the same (retainer, period start). Concurrent
// scheduler runs treat it as "already handled".
var ErrDuplicatePeriod = errors.New("payment for this retainer period already exists")

// RetainerRepository defines the interface for retainer data operations
type RetainerRepository interface {
	Create(ctx context.Context, retainer *entity.Retainer) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Retainer, error)
	Update(ctx context.Context, retainer *entity.Retainer) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, params *RetainerFilterParams) ([]entity.Retainer, int64, error)
	// ListActive returns every active retainer across tenants, for the sweep.
	ListActive(ctx context.Context) ([]entity.Retainer, error)
}

// RetainerFilterParams contains filtering parameters for retainer queries
type RetainerFilterParams struct {
	Pagination *pagination.PaginationParams
	Search     string
	Status     *enum.RetainerStatus
	ClientID   *uuid.UUID
}

// PaymentRepository defines the interface for one-time payment data operations
type PaymentRepository interface {
	// Create inserts the payment. For retainer-period payments a duplicate
	// (retainer_id, period_start) insert returns ErrDuplicatePeriod via the
	// partial unique index: the caller treats that as already handled.
	Create(ctx context.Context, payment *entity.OneTimePayment) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.OneTimePayment, error)
	GetByProviderRef(ctx context.Context, tenantID uuid.UUID, providerRef string) (*entity.OneTimePayment, error)
	Update(ctx context.Context, payment *entity.OneTimePayment) error
	List(ctx context.Context, tenantID uuid.UUID, params *PaymentFilterParams) ([]entity.OneTimePayment, int64, error)
	// LastPeriodStart returns the most recent materialized period start for a
	// retainer, ignoring failed attempts, or nil if none exists.
	LastPeriodStart(ctx context.Context, retainerID uuid.UUID) (*time.Time, error)
}

// PaymentFilterParams contains filtering parameters for payment queries
type PaymentFilterParams struct {
	Pagination *pagination.PaginationParams
	Status     *enum.PaymentStatus
	ClientID   *uuid.UUID
	RetainerID *uuid.UUID
}

// PaymentSettingsRepository defines the interface for tenant payment settings
type PaymentSettingsRepository interface {
	GetByTenant(ctx context.Context, tenantID uuid.UUID) (*entity.PaymentSettings, error)
	Upsert(ctx context.Context, settings *entity.PaymentSettings) error
}

// ClientRepository exposes the client/lead directory at the boundary the
// billing core needs; the CRM screens own the rest of the client lifecycle.
type ClientRepository interface {
	Create(ctx context.Context, client *entity.Client) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Client, error)
	// Resolve returns the billing projection for a client or lead.
	Resolve(ctx context.Context, tenantID, id uuid.UUID, clientType enum.ClientType) (*entity.ResolvedClient, error)
	List(ctx context.Context, tenantID uuid.UUID, params *pagination.PaginationParams) ([]entity.Client, int64, error)
}
