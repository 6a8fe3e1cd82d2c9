package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
	"github.com/sagikoren/agencyops-api/pkg/pagination"
)

// ClientService is the thin directory boundary the billing core quotes and
// charges against. The wider CRM owns the client lifecycle.
type ClientService struct {
	clientRepo repository.ClientRepository
}

// NewClientService creates a new client service
func NewClientService(clientRepo repository.ClientRepository) *ClientService {
	return &ClientService{clientRepo: clientRepo}
}

// CreateClientInput represents the input for creating a client or lead
type CreateClientInput struct {
	TenantID     uuid.UUID
	Type         enum.ClientType
	Name         string
	CompanyName  *string
	BillingEmail *string
	Phone        *string
	Address      *string
	Notes        *string
}

// CreateClient creates a new client or lead
func (s *ClientService) CreateClient(ctx context.Context, input *CreateClientInput) (*entity.Client, error) {
	if input.Name == "" {
		return nil, apperror.NewBadRequestError("Client name is required")
	}
	if input.Type == "" {
		input.Type = enum.ClientTypeClient
	}
	if !input.Type.IsValid() {
		return nil, apperror.NewBadRequestError("Invalid client type")
	}

	client := &entity.Client{
		TenantID:     input.TenantID,
		Type:         input.Type,
		Name:         input.Name,
		CompanyName:  input.CompanyName,
		BillingEmail: input.BillingEmail,
		Phone:        input.Phone,
		Address:      input.Address,
		Notes:        input.Notes,
	}
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// GetClient retrieves a client by ID
func (s *ClientService) GetClient(ctx context.Context, tenantID, id uuid.UUID) (*entity.Client, error) {
	client, err := s.clientRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, apperror.NewNotFoundError("Client")
	}
	return client, nil
}

// Resolve returns the billing projection for a client or lead.
func (s *ClientService) Resolve(ctx context.Context, tenantID, id uuid.UUID, clientType enum.ClientType) (*entity.ResolvedClient, error) {
	return s.clientRepo.Resolve(ctx, tenantID, id, clientType)
}

// ListClients lists clients with pagination
func (s *ClientService) ListClients(ctx context.Context, tenantID uuid.UUID, params *pagination.PaginationParams) (*pagination.PaginatedResult[entity.Client], error) {
	clients, total, err := s.clientRepo.List(ctx, tenantID, params)
	if err != nil {
		return nil, err
	}
	pag := pagination.NewPagination(params.Page, params.PerPage, total)
	return pagination.NewPaginatedResult(clients, pag), nil
}
