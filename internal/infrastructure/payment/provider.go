package payment

import (
	"context"
	"net/http"
	"time"

	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

// ChargeStatus is the normalized outcome of a capture attempt
type ChargeStatus string

const (
	ChargeStatusSucceeded ChargeStatus = "succeeded"
	ChargeStatusFailed    ChargeStatus = "failed"
)

// ChargeResult is the provider-neutral result of a capture. Callers never see
// gateway-specific field names.
type ChargeResult struct {
	Status      ChargeStatus
	ProviderRef string
	FailureCode string
}

// PaymentLink is the result of opening a hosted checkout: the URL the client
// pays at and the gateway's reference for the pending process. The reference
// is kept on the payment record so the gateway's webhook can be correlated
// back to it.
type PaymentLink struct {
	URL         string
	ProviderRef string
}

// WebhookEvent is a verified, normalized provider callback
type WebhookEvent struct {
	Type        string // payment.completed, payment.failed
	ProviderRef string
	Succeeded   bool
	RawPayload  []byte
}

// Provider is the capability interface every payment gateway implements.
// New gateways are added by implementing it, never by branching on provider
// name in calling code.
type Provider interface {
	Type() enum.ProviderType

	// CreatePaymentLink opens a hosted checkout for the given amount and
	// returns its URL plus the gateway's process reference.
	CreatePaymentLink(ctx context.Context, amount money.Money, description, clientRef string) (*PaymentLink, error)

	// CaptureCharge charges a previously tokenized payment method.
	CaptureCharge(ctx context.Context, token string, amount money.Money) (*ChargeResult, error)

	// VerifyWebhook checks the callback signature before anything in the
	// payload is trusted. Unverified payloads fail with InvalidSignature.
	VerifyWebhook(rawPayload []byte, signature string) (*WebhookEvent, error)
}

// Factory builds a Provider from tenant settings passed in per call. Settings
// are never read from ambient state, so a tenant switching providers takes
// effect deterministically on the next request.
type Factory struct {
	httpTimeout time.Duration
}

// NewFactory creates a provider factory with the given outbound HTTP timeout.
// Provider calls are the only external I/O in the billing core; the timeout
// bounds every one of them, and a timed-out capture is reported failed, never
// assumed complete.
func NewFactory(httpTimeout time.Duration) *Factory {
	if httpTimeout <= 0 {
		httpTimeout = 30 * time.Second
	}
	return &Factory{httpTimeout: httpTimeout}
}

// ForSettings returns the provider selected by the tenant's payment settings.
func (f *Factory) ForSettings(settings *entity.PaymentSettings) (Provider, error) {
	if settings == nil || !settings.IsEnabled {
		return nil, apperror.ErrProviderDisabled
	}

	client := &http.Client{Timeout: f.httpTimeout}

	switch settings.Provider {
	case enum.ProviderManual:
		return NewManualProvider(), nil
	case enum.ProviderStripe:
		return NewStripeProvider(settings, client), nil
	case enum.ProviderMeshulam:
		return NewMeshulamProvider(settings, client), nil
	case enum.ProviderGreenInvoice:
		return NewGreenInvoiceProvider(settings, client), nil
	case enum.ProviderTranzila:
		return NewTranzilaProvider(settings, client), nil
	case enum.ProviderCardcom:
		return NewCardcomProvider(settings, client), nil
	default:
		return nil, apperror.NewBadRequestError("unknown payment provider: " + settings.Provider.String())
	}
}
