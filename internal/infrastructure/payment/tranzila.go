package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

const (
	tranzilaSecureBase = "https://secure5.tranzila.com"
	tranzilaHandshake  = "https://direct.tranzila.com"
)

// TranzilaProvider integrates the Tranzila terminal API. APIKey is the
// terminal name; SecretKey the terminal password.
type TranzilaProvider struct {
	settings   *entity.PaymentSettings
	httpClient *http.Client
}

// NewTranzilaProvider creates a Tranzila provider from tenant settings
func NewTranzilaProvider(settings *entity.PaymentSettings, client *http.Client) *TranzilaProvider {
	return &TranzilaProvider{settings: settings, httpClient: client}
}

// Type returns the provider type
func (p *TranzilaProvider) Type() enum.ProviderType {
	return enum.ProviderTranzila
}

// CreatePaymentLink builds a hosted iframe payment page URL for the terminal.
// Tranzila's hosted page takes its parameters in the query string; there is
// no gateway-issued process id, so the caller's reference (echoed back in the
// notify callback's uid) is the correlation handle.
func (p *TranzilaProvider) CreatePaymentLink(ctx context.Context, amount money.Money, description, clientRef string) (*PaymentLink, error) {
	params := url.Values{}
	params.Set("sum", amount.Decimal().StringFixed(2))
	params.Set("currency", tranzilaCurrencyCode(amount.Currency))
	params.Set("pdesc", description)
	params.Set("uid", clientRef)
	if p.settings.TestMode {
		params.Set("tranmode", "N")
	}
	return &PaymentLink{
		URL:         fmt.Sprintf("%s/%s/iframenew.php?%s", tranzilaSecureBase, p.settings.APIKey, params.Encode()),
		ProviderRef: clientRef,
	}, nil
}

// CaptureCharge charges a Tranzila card token through the direct terminal API.
func (p *TranzilaProvider) CaptureCharge(ctx context.Context, token string, amount money.Money) (*ChargeResult, error) {
	form := url.Values{}
	form.Set("supplier", p.settings.APIKey)
	form.Set("TranzilaPW", p.settings.SecretKey)
	form.Set("TranzilaTK", token)
	form.Set("sum", amount.Decimal().StringFixed(2))
	form.Set("currency", tranzilaCurrencyCode(amount.Currency))
	form.Set("tranmode", "A")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tranzilaHandshake+"/cgi-bin/tranzila71u.cgi", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tranzila request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, apperror.ErrProviderUnavailable
	}

	// Response arrives urlencoded: Response=000&index=...&ConfirmationCode=...
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.ErrProviderUnavailable
	}
	values, err := url.ParseQuery(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, apperror.ErrProviderUnavailable
	}

	ref := values.Get("index")
	if values.Get("Response") == "000" {
		return &ChargeResult{Status: ChargeStatusSucceeded, ProviderRef: ref}, nil
	}
	return &ChargeResult{
		Status:      ChargeStatusFailed,
		ProviderRef: ref,
		FailureCode: values.Get("Response"),
	}, nil
}

// VerifyWebhook validates the notify callback signature.
func (p *TranzilaProvider) VerifyWebhook(rawPayload []byte, signature string) (*WebhookEvent, error) {
	if err := verifyHMAC(p.settings.WebhookSecret, rawPayload, signature); err != nil {
		return nil, err
	}

	var event struct {
		UID      string `json:"uid"`
		Index    string `json:"index"`
		Response string `json:"Response"`
	}
	if err := json.Unmarshal(rawPayload, &event); err != nil {
		return nil, apperror.ErrInvalidSignature
	}

	// uid echoes the reference the payment link was created with.
	ref := event.UID
	if ref == "" {
		ref = event.Index
	}

	succeeded := event.Response == "000"
	eventType := "payment.failed"
	if succeeded {
		eventType = "payment.completed"
	}
	return &WebhookEvent{
		Type:        eventType,
		ProviderRef: ref,
		Succeeded:   succeeded,
		RawPayload:  rawPayload,
	}, nil
}

// tranzilaCurrencyCode maps ISO currency codes to Tranzila numeric codes.
func tranzilaCurrencyCode(currency string) string {
	switch currency {
	case "USD":
		return "2"
	case "EUR":
		return "978"
	default: // ILS
		return "1"
	}
}
