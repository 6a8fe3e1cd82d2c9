package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
	"github.com/sagikoren/agencyops-api/pkg/utils"
)

// TenantService manages agencies and their memberships. User identities are
// external; memberships only carry the JWT subject.
type TenantService struct {
	tenantRepo repository.TenantRepository
}

// NewTenantService creates a new tenant service
func NewTenantService(tenantRepo repository.TenantRepository) *TenantService {
	return &TenantService{tenantRepo: tenantRepo}
}

// CreateTenantInput represents the input for creating a tenant
type CreateTenantInput struct {
	Name    string
	OwnerID uuid.UUID
}

// CreateTenant creates a tenant and enrolls the creator as its owner.
func (s *TenantService) CreateTenant(ctx context.Context, input *CreateTenantInput) (*entity.Tenant, error) {
	if input.Name == "" {
		return nil, apperror.NewBadRequestError("Tenant name is required")
	}

	slug := utils.Slugify(input.Name)
	if slug == "" {
		return nil, apperror.NewBadRequestError("Tenant name must contain letters or digits")
	}
	for i := 2; ; i++ {
		exists, err := s.tenantRepo.SlugExists(ctx, slug)
		if err != nil {
			return nil, err
		}
		if !exists {
			break
		}
		slug = fmt.Sprintf("%s-%d", utils.Slugify(input.Name), i)
	}

	tenant := &entity.Tenant{
		Name: input.Name,
		Slug: slug,
	}
	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, err
	}

	membership := &entity.TenantMembership{
		TenantID: tenant.ID,
		UserID:   input.OwnerID,
		Role:     "owner",
	}
	if err := s.tenantRepo.AddMember(ctx, membership); err != nil {
		return nil, err
	}
	return tenant, nil
}

// GetTenant retrieves a tenant by ID
func (s *TenantService) GetTenant(ctx context.Context, id uuid.UUID) (*entity.Tenant, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, apperror.NewNotFoundError("Tenant")
	}
	return tenant, nil
}

// UpdateTenantInput represents the input for updating a tenant
type UpdateTenantInput struct {
	ID   uuid.UUID
	Name string
}

// UpdateTenant renames a tenant. The slug is stable; renaming never moves the
// subdomain under a live deployment.
func (s *TenantService) UpdateTenant(ctx context.Context, input *UpdateTenantInput) (*entity.Tenant, error) {
	tenant, err := s.GetTenant(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if input.Name != "" {
		tenant.Name = input.Name
	}
	if err := s.tenantRepo.Update(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// GetUserTenants returns the tenants a user belongs to
func (s *TenantService) GetUserTenants(ctx context.Context, userID uuid.UUID) ([]entity.Tenant, error) {
	return s.tenantRepo.GetUserTenants(ctx, userID)
}

// ListAllTenants returns every tenant (super admin only)
func (s *TenantService) ListAllTenants(ctx context.Context) ([]entity.Tenant, error) {
	return s.tenantRepo.ListAll(ctx)
}

// GetTenantMembers returns all members of a tenant
func (s *TenantService) GetTenantMembers(ctx context.Context, tenantID uuid.UUID) ([]entity.TenantMembership, error) {
	return s.tenantRepo.GetMembers(ctx, tenantID)
}

// InviteMemberInput represents the input for inviting a member
type InviteMemberInput struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Role     string
}

// InviteMember adds a user to a tenant
func (s *TenantService) InviteMember(ctx context.Context, input *InviteMemberInput) error {
	if !validRole(input.Role) {
		return apperror.NewBadRequestError("Invalid role")
	}
	existing, err := s.tenantRepo.GetMembership(ctx, input.TenantID, input.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperror.NewConflictError("User is already a member of this tenant")
	}
	return s.tenantRepo.AddMember(ctx, &entity.TenantMembership{
		TenantID: input.TenantID,
		UserID:   input.UserID,
		Role:     input.Role,
	})
}

// RemoveMember removes a user from a tenant
func (s *TenantService) RemoveMember(ctx context.Context, tenantID, userID uuid.UUID) error {
	return s.tenantRepo.RemoveMember(ctx, tenantID, userID)
}

// UpdateMemberRole changes a member's role
func (s *TenantService) UpdateMemberRole(ctx context.Context, tenantID, userID uuid.UUID, role string) error {
	if !validRole(role) {
		return apperror.NewBadRequestError("Invalid role")
	}
	return s.tenantRepo.UpdateMemberRole(ctx, tenantID, userID, role)
}

// AssignUserToTenantInput represents the input for assigning a user to a tenant
type AssignUserToTenantInput struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Role     string
}

// AssignUserToTenant adds a user to a tenant (super admin path)
func (s *TenantService) AssignUserToTenant(ctx context.Context, input *AssignUserToTenantInput) error {
	return s.InviteMember(ctx, &InviteMemberInput{
		TenantID: input.TenantID,
		UserID:   input.UserID,
		Role:     input.Role,
	})
}

func validRole(role string) bool {
	switch role {
	case "owner", "admin", "member":
		return true
	}
	return false
}
