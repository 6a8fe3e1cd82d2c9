package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

const stripeAPIBase = "https://api.stripe.com/v1"

// StripeProvider talks to the Stripe REST API directly: form-encoded requests
// with the secret key as a bearer token. Amounts cross the wire as integer
// minor units, which is also Stripe's native representation.
type StripeProvider struct {
	settings   *entity.PaymentSettings
	httpClient *http.Client
}

// NewStripeProvider creates a Stripe provider from tenant settings
func NewStripeProvider(settings *entity.PaymentSettings, client *http.Client) *StripeProvider {
	return &StripeProvider{settings: settings, httpClient: client}
}

// Type returns the provider type
func (p *StripeProvider) Type() enum.ProviderType {
	return enum.ProviderStripe
}

// CreatePaymentLink creates a hosted Checkout session and returns its URL
// and session id.
func (p *StripeProvider) CreatePaymentLink(ctx context.Context, amount money.Money, description, clientRef string) (*PaymentLink, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", clientRef)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(amount.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(amount.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", description)

	var resp struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := p.post(ctx, "/checkout/sessions", form, &resp); err != nil {
		return nil, err
	}
	if resp.URL == "" {
		return nil, apperror.ErrProviderUnavailable
	}
	return &PaymentLink{URL: resp.URL, ProviderRef: resp.ID}, nil
}

// CaptureCharge confirms an off-session payment intent against a saved
// payment method token.
func (p *StripeProvider) CaptureCharge(ctx context.Context, token string, amount money.Money) (*ChargeResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount.Amount, 10))
	form.Set("currency", strings.ToLower(amount.Currency))
	form.Set("payment_method", token)
	form.Set("confirm", "true")
	form.Set("off_session", "true")

	var resp struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		LastPaymentError *struct {
			Code string `json:"code"`
		} `json:"last_payment_error"`
	}
	if err := p.post(ctx, "/payment_intents", form, &resp); err != nil {
		return nil, err
	}

	result := &ChargeResult{ProviderRef: resp.ID}
	if resp.Status == "succeeded" {
		result.Status = ChargeStatusSucceeded
	} else {
		result.Status = ChargeStatusFailed
		if resp.LastPaymentError != nil {
			result.FailureCode = resp.LastPaymentError.Code
		} else {
			result.FailureCode = resp.Status
		}
	}
	return result, nil
}

// VerifyWebhook checks the Stripe-Signature header (t=...,v1=... HMAC-SHA256
// over "<t>.<payload>") before the event payload is trusted.
func (p *StripeProvider) VerifyWebhook(rawPayload []byte, signature string) (*WebhookEvent, error) {
	if p.settings.WebhookSecret == nil || *p.settings.WebhookSecret == "" {
		return nil, apperror.ErrInvalidSignature
	}

	var timestamp, v1 string
	for _, part := range strings.Split(signature, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			v1 = kv[1]
		}
	}
	if timestamp == "" || v1 == "" {
		return nil, apperror.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(*p.settings.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(rawPayload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return nil, apperror.ErrInvalidSignature
	}

	var event struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawPayload, &event); err != nil {
		return nil, apperror.ErrInvalidSignature
	}

	return &WebhookEvent{
		Type:        event.Type,
		ProviderRef: event.Data.Object.ID,
		Succeeded:   event.Type == "payment_intent.succeeded" || event.Type == "checkout.session.completed",
		RawPayload:  rawPayload,
	}, nil
}

func (p *StripeProvider) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, stripeAPIBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.settings.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return apperror.ErrProviderUnavailable
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
