package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

const cardcomAPIBase = "https://secure.cardcom.solutions/api/v11"

// CardcomProvider integrates the Cardcom low-profile payment page API.
// APIKey is the terminal number; SecretKey the API name/password pair owner.
type CardcomProvider struct {
	settings   *entity.PaymentSettings
	httpClient *http.Client
}

// NewCardcomProvider creates a Cardcom provider from tenant settings
func NewCardcomProvider(settings *entity.PaymentSettings, client *http.Client) *CardcomProvider {
	return &CardcomProvider{settings: settings, httpClient: client}
}

// Type returns the provider type
func (p *CardcomProvider) Type() enum.ProviderType {
	return enum.ProviderCardcom
}

// CreatePaymentLink creates a low-profile payment page and returns its URL
// and low-profile id.
func (p *CardcomProvider) CreatePaymentLink(ctx context.Context, amount money.Money, description, clientRef string) (*PaymentLink, error) {
	body := map[string]interface{}{
		"TerminalNumber": p.settings.APIKey,
		"ApiName":        p.settings.SecretKey,
		"Amount":         amount.Decimal().StringFixed(2),
		"ISOCoinId":      cardcomCoinID(amount.Currency),
		"ProductName":    description,
		"ReturnValue":    clientRef,
	}

	var resp struct {
		ResponseCode int    `json:"ResponseCode"`
		URL          string `json:"Url"`
		LowProfileID string `json:"LowProfileId"`
	}
	if err := p.post(ctx, "/LowProfile/Create", body, &resp); err != nil {
		return nil, err
	}
	if resp.ResponseCode != 0 || resp.URL == "" {
		return nil, apperror.ErrProviderUnavailable
	}
	return &PaymentLink{URL: resp.URL, ProviderRef: resp.LowProfileID}, nil
}

// CaptureCharge charges a stored Cardcom token.
func (p *CardcomProvider) CaptureCharge(ctx context.Context, token string, amount money.Money) (*ChargeResult, error) {
	body := map[string]interface{}{
		"TerminalNumber": p.settings.APIKey,
		"ApiName":        p.settings.SecretKey,
		"Token":          token,
		"Amount":         amount.Decimal().StringFixed(2),
		"ISOCoinId":      cardcomCoinID(amount.Currency),
	}

	var resp struct {
		ResponseCode  int    `json:"ResponseCode"`
		Description   string `json:"Description"`
		TranzactionID int64  `json:"TranzactionId"`
	}
	if err := p.post(ctx, "/Transactions/Transaction", body, &resp); err != nil {
		return nil, err
	}

	ref := fmt.Sprintf("%d", resp.TranzactionID)
	if resp.ResponseCode == 0 {
		return &ChargeResult{Status: ChargeStatusSucceeded, ProviderRef: ref}, nil
	}
	return &ChargeResult{
		Status:      ChargeStatusFailed,
		ProviderRef: ref,
		FailureCode: fmt.Sprintf("%d", resp.ResponseCode),
	}, nil
}

// VerifyWebhook validates the callback signature and normalizes the payload.
func (p *CardcomProvider) VerifyWebhook(rawPayload []byte, signature string) (*WebhookEvent, error) {
	if err := verifyHMAC(p.settings.WebhookSecret, rawPayload, signature); err != nil {
		return nil, err
	}

	var event struct {
		LowProfileID  string `json:"LowProfileId"`
		TranzactionID int64  `json:"TranzactionId"`
		ResponseCode  int    `json:"ResponseCode"`
	}
	if err := json.Unmarshal(rawPayload, &event); err != nil {
		return nil, apperror.ErrInvalidSignature
	}

	// Link payments are stored under the low-profile id from page creation.
	ref := event.LowProfileID
	if ref == "" {
		ref = fmt.Sprintf("%d", event.TranzactionID)
	}

	succeeded := event.ResponseCode == 0
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

func (p *CardcomProvider) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cardcomAPIBase+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cardcom request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return apperror.ErrProviderUnavailable
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// cardcomCoinID maps ISO currency codes to Cardcom coin ids.
func cardcomCoinID(currency string) int {
	switch currency {
	case "USD":
		return 2
	case "EUR":
		return 978
	default: // ILS
		return 1
	}
}
