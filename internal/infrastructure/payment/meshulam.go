package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

const (
	meshulamAPIBase        = "https://secure.meshulam.co.il/api/light/server/1.0"
	meshulamSandboxAPIBase = "https://sandbox.meshulam.co.il/api/light/server/1.0"
)

// MeshulamProvider integrates the Meshulam (Grow) redirect-based payment page.
// APIKey holds the page code, SecretKey the merchant user id.
type MeshulamProvider struct {
	settings   *entity.PaymentSettings
	httpClient *http.Client
}

// NewMeshulamProvider creates a Meshulam provider from tenant settings
func NewMeshulamProvider(settings *entity.PaymentSettings, client *http.Client) *MeshulamProvider {
	return &MeshulamProvider{settings: settings, httpClient: client}
}

// Type returns the provider type
func (p *MeshulamProvider) Type() enum.ProviderType {
	return enum.ProviderMeshulam
}

func (p *MeshulamProvider) baseURL() string {
	if p.settings.TestMode {
		return meshulamSandboxAPIBase
	}
	return meshulamAPIBase
}

// CreatePaymentLink opens a payment process and returns the hosted page URL.
// Meshulam expects major-unit decimal amounts; the conversion happens here,
// at the wire boundary, and nowhere else.
func (p *MeshulamProvider) CreatePaymentLink(ctx context.Context, amount money.Money, description, clientRef string) (*PaymentLink, error) {
	form := url.Values{}
	form.Set("pageCode", p.settings.APIKey)
	form.Set("userId", p.settings.SecretKey)
	form.Set("sum", amount.Decimal().StringFixed(2))
	form.Set("description", description)
	form.Set("cField1", clientRef)

	var resp struct {
		Status int `json:"status"`
		Data   struct {
			URL       string `json:"url"`
			ProcessID string `json:"processId"`
		} `json:"data"`
		Err struct {
			Message string `json:"message"`
		} `json:"err"`
	}
	if err := p.post(ctx, "/createPaymentProcess", form, &resp); err != nil {
		return nil, err
	}
	if resp.Status != 1 || resp.Data.URL == "" {
		return nil, apperror.ErrProviderUnavailable
	}
	return &PaymentLink{URL: resp.Data.URL, ProviderRef: resp.Data.ProcessID}, nil
}

// CaptureCharge charges a stored card token ("direct debit" in Meshulam terms).
func (p *MeshulamProvider) CaptureCharge(ctx context.Context, token string, amount money.Money) (*ChargeResult, error) {
	form := url.Values{}
	form.Set("pageCode", p.settings.APIKey)
	form.Set("userId", p.settings.SecretKey)
	form.Set("cardToken", token)
	form.Set("sum", amount.Decimal().StringFixed(2))

	var resp struct {
		Status int `json:"status"`
		Data   struct {
			TransactionID string `json:"transactionId"`
		} `json:"data"`
		Err struct {
			ID      string `json:"id"`
			Message string `json:"message"`
		} `json:"err"`
	}
	if err := p.post(ctx, "/chargeToken", form, &resp); err != nil {
		return nil, err
	}

	if resp.Status == 1 {
		return &ChargeResult{Status: ChargeStatusSucceeded, ProviderRef: resp.Data.TransactionID}, nil
	}
	return &ChargeResult{
		Status:      ChargeStatusFailed,
		ProviderRef: resp.Data.TransactionID,
		FailureCode: resp.Err.ID,
	}, nil
}

// VerifyWebhook validates the callback signature and normalizes the payload.
func (p *MeshulamProvider) VerifyWebhook(rawPayload []byte, signature string) (*WebhookEvent, error) {
	if err := verifyHMAC(p.settings.WebhookSecret, rawPayload, signature); err != nil {
		return nil, err
	}

	var event struct {
		ProcessID     string `json:"processId"`
		TransactionID string `json:"transactionId"`
		StatusCode    int    `json:"statusCode"`
	}
	if err := json.Unmarshal(rawPayload, &event); err != nil {
		return nil, apperror.ErrInvalidSignature
	}

	// Link payments are stored under the processId handed out at creation;
	// the transactionId only exists once the charge ran.
	ref := event.ProcessID
	if ref == "" {
		ref = event.TransactionID
	}

	succeeded := event.StatusCode == 2 // Meshulam: 2 = approved
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

func (p *MeshulamProvider) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("meshulam request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return apperror.ErrProviderUnavailable
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
