package payment

import (
	"context"

	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

// ManualProvider is the no-op gateway for agencies that collect payment
// offline (bank transfer, check). Capture is disabled entirely; the tenant
// reconciles received payments by hand through the payments API.
type ManualProvider struct{}

// NewManualProvider creates a manual provider
func NewManualProvider() *ManualProvider {
	return &ManualProvider{}
}

// Type returns the provider type
func (p *ManualProvider) Type() enum.ProviderType {
	return enum.ProviderManual
}

// CreatePaymentLink is not supported for manual collection.
func (p *ManualProvider) CreatePaymentLink(ctx context.Context, amount money.Money, description, clientRef string) (*PaymentLink, error) {
	return nil, apperror.NewBadRequestError("manual provider does not issue payment links")
}

// CaptureCharge always rejects; manual payments are reconciled, not captured.
func (p *ManualProvider) CaptureCharge(ctx context.Context, token string, amount money.Money) (*ChargeResult, error) {
	return nil, apperror.NewBadRequestError("manual provider cannot capture charges")
}

// VerifyWebhook rejects all callbacks; no gateway means no webhooks.
func (p *ManualProvider) VerifyWebhook(rawPayload []byte, signature string) (*WebhookEvent, error) {
	return nil, apperror.ErrInvalidSignature
}
