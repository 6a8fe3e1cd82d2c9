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

const (
	greenInvoiceAPIBase        = "https://api.greeninvoice.co.il/api/v1"
	greenInvoiceSandboxAPIBase = "https://sandbox.d.greeninvoice.co.il/api/v1"
)

// GreenInvoiceProvider issues payment-form documents through the Green
// Invoice invoicing platform. The platform is document-oriented: a payment
// link is a document of type 320 (payment request) with an embedded checkout.
type GreenInvoiceProvider struct {
	settings   *entity.PaymentSettings
	httpClient *http.Client
}

// NewGreenInvoiceProvider creates a Green Invoice provider from tenant settings
func NewGreenInvoiceProvider(settings *entity.PaymentSettings, client *http.Client) *GreenInvoiceProvider {
	return &GreenInvoiceProvider{settings: settings, httpClient: client}
}

// Type returns the provider type
func (p *GreenInvoiceProvider) Type() enum.ProviderType {
	return enum.ProviderGreenInvoice
}

func (p *GreenInvoiceProvider) baseURL() string {
	if p.settings.TestMode {
		return greenInvoiceSandboxAPIBase
	}
	return greenInvoiceAPIBase
}

// CreatePaymentLink creates a payment-request document and returns its
// hosted payment form URL.
func (p *GreenInvoiceProvider) CreatePaymentLink(ctx context.Context, amount money.Money, description, clientRef string) (*PaymentLink, error) {
	body := map[string]interface{}{
		"type":        320,
		"description": description,
		"remarks":     clientRef,
		"currency":    amount.Currency,
		"amount":      amount.Decimal().StringFixed(2),
	}

	var resp struct {
		ID  string `json:"id"`
		URL struct {
			Origin string `json:"origin"`
		} `json:"url"`
	}
	if err := p.post(ctx, "/payments/form", body, &resp); err != nil {
		return nil, err
	}
	if resp.URL.Origin == "" {
		return nil, apperror.ErrProviderUnavailable
	}
	// Callbacks reference the same payment-form document id.
	return &PaymentLink{URL: resp.URL.Origin, ProviderRef: resp.ID}, nil
}

// CaptureCharge charges a saved payment method token.
func (p *GreenInvoiceProvider) CaptureCharge(ctx context.Context, token string, amount money.Money) (*ChargeResult, error) {
	body := map[string]interface{}{
		"token":    token,
		"currency": amount.Currency,
		"amount":   amount.Decimal().StringFixed(2),
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Error  struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := p.post(ctx, "/payments/charge", body, &resp); err != nil {
		return nil, err
	}

	if resp.Status == "approved" {
		return &ChargeResult{Status: ChargeStatusSucceeded, ProviderRef: resp.ID}, nil
	}
	return &ChargeResult{Status: ChargeStatusFailed, ProviderRef: resp.ID, FailureCode: resp.Error.Code}, nil
}

// VerifyWebhook validates the callback signature and normalizes the payload.
func (p *GreenInvoiceProvider) VerifyWebhook(rawPayload []byte, signature string) (*WebhookEvent, error) {
	if err := verifyHMAC(p.settings.WebhookSecret, rawPayload, signature); err != nil {
		return nil, err
	}

	var event struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rawPayload, &event); err != nil {
		return nil, apperror.ErrInvalidSignature
	}

	succeeded := event.Status == "approved"
	eventType := "payment.failed"
	if succeeded {
		eventType = "payment.completed"
	}
	return &WebhookEvent{
		Type:        eventType,
		ProviderRef: event.ID,
		Succeeded:   succeeded,
		RawPayload:  rawPayload,
	}, nil
}

func (p *GreenInvoiceProvider) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.settings.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("greeninvoice request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return apperror.ErrProviderUnavailable
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
