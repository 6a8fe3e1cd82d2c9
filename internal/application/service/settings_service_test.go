package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagikoren/agencyops-api/internal/domain/enum"

	"github.com/google/uuid"
)

func TestGetSettingsFallsBackToManualDefaults(t *testing.T) {
	repo := &memSettingsRepo{}
	svc := NewSettingsService(repo, "ILS", 1700)
	tenantID := uuid.New()

	settings, err := svc.GetSettings(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, enum.ProviderManual, settings.Provider)
	assert.False(t, settings.IsEnabled)
	assert.Equal(t, "ILS", settings.Currency)
	assert.Equal(t, int64(1700), settings.VATRateBasisPoints)
	assert.True(t, settings.TestMode)
}

func TestUpdateSettingsKeepsMaskedCredentials(t *testing.T) {
	repo := &memSettingsRepo{}
	svc := NewSettingsService(repo, "ILS", 1700)
	ctx := context.Background()
	tenantID := uuid.New()

	apiKey := "pk_live_1"
	secretKey := "sk_live_1"
	webhookSecret := "whsec_1"
	_, err := svc.UpdateSettings(ctx, tenantID, &UpdateSettingsInput{
		Provider:      enum.ProviderStripe,
		IsEnabled:     true,
		APIKey:        &apiKey,
		SecretKey:     &secretKey,
		WebhookSecret: &webhookSecret,
	})
	require.NoError(t, err)

	// A save from a screen with masked credential fields sends them as null;
	// the stored keys must survive it.
	testMode := false
	updated, err := svc.UpdateSettings(ctx, tenantID, &UpdateSettingsInput{
		Provider:  enum.ProviderStripe,
		IsEnabled: true,
		TestMode:  &testMode,
	})
	require.NoError(t, err)
	assert.Equal(t, "pk_live_1", updated.APIKey)
	assert.Equal(t, "sk_live_1", updated.SecretKey)
	require.NotNil(t, updated.WebhookSecret)
	assert.Equal(t, "whsec_1", *updated.WebhookSecret)
	assert.False(t, updated.TestMode)
}

func TestUpdateSettingsValidation(t *testing.T) {
	repo := &memSettingsRepo{}
	svc := NewSettingsService(repo, "ILS", 1700)
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := svc.UpdateSettings(ctx, tenantID, &UpdateSettingsInput{
		Provider: enum.ProviderType("paypal"),
	})
	assert.Error(t, err, "unknown provider")

	over := int64(10001)
	_, err = svc.UpdateSettings(ctx, tenantID, &UpdateSettingsInput{
		Provider:           enum.ProviderManual,
		VATRateBasisPoints: &over,
	})
	assert.Error(t, err, "VAT rate out of range")

	negative := int64(-1)
	_, err = svc.UpdateSettings(ctx, tenantID, &UpdateSettingsInput{
		Provider:           enum.ProviderManual,
		VATRateBasisPoints: &negative,
	})
	assert.Error(t, err)
}

func TestUpdateSettingsSeedsDefaultsOnFirstSave(t *testing.T) {
	repo := &memSettingsRepo{}
	svc := NewSettingsService(repo, "ILS", 1700)

	settings, err := svc.UpdateSettings(context.Background(), uuid.New(), &UpdateSettingsInput{
		Provider:  enum.ProviderMeshulam,
		IsEnabled: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ILS", settings.Currency)
	assert.Equal(t, int64(1700), settings.VATRateBasisPoints)
	assert.True(t, settings.TestMode)
	assert.True(t, settings.AutoCapture)
}
