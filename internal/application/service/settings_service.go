package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

// SettingsService manages per-tenant payment gateway configuration.
type SettingsService struct {
	settingsRepo repository.PaymentSettingsRepository

	defaultCurrency       string
	defaultVATBasisPoints int64
}

// NewSettingsService creates a new settings service
func NewSettingsService(settingsRepo repository.PaymentSettingsRepository, defaultCurrency string, defaultVATBasisPoints int64) *SettingsService {
	return &SettingsService{
		settingsRepo:          settingsRepo,
		defaultCurrency:       defaultCurrency,
		defaultVATBasisPoints: defaultVATBasisPoints,
	}
}

// GetSettings returns the tenant's settings, falling back to a manual-provider
// default for tenants that never configured a gateway.
func (s *SettingsService) GetSettings(ctx context.Context, tenantID uuid.UUID) (*entity.PaymentSettings, error) {
	settings, err := s.settingsRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return &entity.PaymentSettings{
			TenantID:           tenantID,
			Provider:           enum.ProviderManual,
			Currency:           s.defaultCurrency,
			VATRateBasisPoints: s.defaultVATBasisPoints,
			TestMode:           true,
			AutoCapture:        true,
		}, nil
	}
	return settings, nil
}

// UpdateSettingsInput represents the input for updating payment settings
type UpdateSettingsInput struct {
	Provider           enum.ProviderType
	IsEnabled          bool
	APIKey             *string
	SecretKey          *string
	WebhookSecret      *string
	Currency           *string
	VATRateBasisPoints *int64
	TestMode           *bool
	AutoCapture        *bool
	DefaultDescription *string
}

// UpdateSettings upserts the tenant's gateway configuration. Credentials are
// only overwritten when present in the input so a settings save from a screen
// that masks them does not wipe stored keys.
func (s *SettingsService) UpdateSettings(ctx context.Context, tenantID uuid.UUID, input *UpdateSettingsInput) (*entity.PaymentSettings, error) {
	if !input.Provider.IsValid() {
		return nil, apperror.NewBadRequestError("Invalid payment provider")
	}
	if input.VATRateBasisPoints != nil && (*input.VATRateBasisPoints < 0 || *input.VATRateBasisPoints > 10000) {
		return nil, apperror.NewBadRequestError("VAT rate must be between 0 and 10000 basis points")
	}

	settings, err := s.settingsRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = &entity.PaymentSettings{
			TenantID:           tenantID,
			Currency:           s.defaultCurrency,
			VATRateBasisPoints: s.defaultVATBasisPoints,
			TestMode:           true,
			AutoCapture:        true,
		}
	}

	settings.Provider = input.Provider
	settings.IsEnabled = input.IsEnabled
	if input.APIKey != nil {
		settings.APIKey = *input.APIKey
	}
	if input.SecretKey != nil {
		settings.SecretKey = *input.SecretKey
	}
	if input.WebhookSecret != nil {
		settings.WebhookSecret = input.WebhookSecret
	}
	if input.Currency != nil {
		settings.Currency = *input.Currency
	}
	if input.VATRateBasisPoints != nil {
		settings.VATRateBasisPoints = *input.VATRateBasisPoints
	}
	if input.TestMode != nil {
		settings.TestMode = *input.TestMode
	}
	if input.AutoCapture != nil {
		settings.AutoCapture = *input.AutoCapture
	}
	if input.DefaultDescription != nil {
		settings.DefaultDescription = input.DefaultDescription
	}

	if err := s.settingsRepo.Upsert(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
