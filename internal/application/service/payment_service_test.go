package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sagikoren/agencyops-api/internal/application/event"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/internal/infrastructure/payment"
	"github.com/sagikoren/agencyops-api/pkg/apperror"

	"github.com/google/uuid"
)

type recordingMailer struct {
	sent []string
}

func (m *recordingMailer) SendPaymentLinkEmail(toEmail, _, _, _, _ string) error {
	m.sent = append(m.sent, toEmail)
	return nil
}

type paymentFixture struct {
	svc      *PaymentService
	payments *memPaymentRepo
	settings *memSettingsRepo
	clients  *memClientRepo
	notifier *memNotifier
	mailer   *recordingMailer
	tenantID uuid.UUID
	clientID uuid.UUID
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	payments := &memPaymentRepo{}
	settings := &memSettingsRepo{}
	clients := newMemClientRepo()
	notifier := &memNotifier{}
	mailer := &recordingMailer{}
	svc := NewPaymentService(payments, settings, clients,
		payment.NewFactory(time.Second), mailer, notifier, zap.NewNop())
	return &paymentFixture{
		svc:      svc,
		payments: payments,
		settings: settings,
		clients:  clients,
		notifier: notifier,
		mailer:   mailer,
		tenantID: uuid.New(),
		clientID: clients.add("Galil Digital", "billing@galil.co.il"),
	}
}

func (f *paymentFixture) manualSettings() {
	f.settings.settings = &entity.PaymentSettings{
		TenantID:  f.tenantID,
		Provider:  enum.ProviderManual,
		IsEnabled: true,
		Currency:  "ILS",
	}
}

func (f *paymentFixture) meshulamSettings(webhookSecret string) {
	f.settings.settings = &entity.PaymentSettings{
		TenantID:      f.tenantID,
		Provider:      enum.ProviderMeshulam,
		IsEnabled:     true,
		APIKey:        "page-code",
		SecretKey:     "user-id",
		WebhookSecret: &webhookSecret,
		Currency:      "ILS",
		TestMode:      true,
	}
}

func (f *paymentFixture) pendingPayment(t *testing.T) *entity.OneTimePayment {
	t.Helper()
	p, err := f.svc.CreatePayment(context.Background(), &CreatePaymentInput{
		TenantID:    f.tenantID,
		ClientID:    f.clientID,
		ClientType:  enum.ClientTypeClient,
		Description: "Brand refresh",
		Amount:      money.New(585000, "ILS"),
	})
	require.NoError(t, err)
	return p
}

func signHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCreatePaymentValidation(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePayment(ctx, &CreatePaymentInput{
		TenantID: f.tenantID, ClientID: f.clientID, ClientType: enum.ClientTypeClient,
		Amount: money.New(1000, "ILS"),
	})
	assert.Error(t, err, "description is required")

	_, err = f.svc.CreatePayment(ctx, &CreatePaymentInput{
		TenantID: f.tenantID, ClientID: f.clientID, ClientType: enum.ClientTypeClient,
		Description: "Work", Amount: money.New(-500, "ILS"),
	})
	assert.Error(t, err, "amount must be positive")

	_, err = f.svc.CreatePayment(ctx, &CreatePaymentInput{
		TenantID: f.tenantID, ClientID: uuid.New(), ClientType: enum.ClientTypeClient,
		Description: "Work", Amount: money.New(1000, "ILS"),
	})
	assert.Error(t, err, "unknown client")
}

func TestCreatePaymentLinkFailureLeavesPaymentPending(t *testing.T) {
	f := newPaymentFixture(t)
	f.manualSettings()

	p, err := f.svc.CreatePayment(context.Background(), &CreatePaymentInput{
		TenantID:        f.tenantID,
		ClientID:        f.clientID,
		ClientType:      enum.ClientTypeClient,
		Description:     "Brand refresh",
		Amount:          money.New(585000, "ILS"),
		WithPaymentLink: true,
	})
	require.NoError(t, err, "a link failure never loses the charge")
	assert.Equal(t, enum.PaymentStatusPending, p.Status)
	assert.Nil(t, p.PaymentLink)
	assert.Empty(t, f.mailer.sent, "no link, no email")
}

func TestCaptureRejectsNonPendingPayments(t *testing.T) {
	f := newPaymentFixture(t)
	f.manualSettings()
	ctx := context.Background()

	completed := f.pendingPayment(t)
	require.NoError(t, completed.MarkCompleted("stripe", "pi_1", time.Now()))
	require.NoError(t, f.payments.Update(ctx, completed))

	_, err := f.svc.Capture(ctx, f.tenantID, completed.ID, "tok_visa")
	assert.ErrorIs(t, err, apperror.ErrAlreadyCaptured)

	failed := f.pendingPayment(t)
	require.NoError(t, failed.MarkFailed("declined", time.Now()))
	require.NoError(t, f.payments.Update(ctx, failed))

	_, err = f.svc.Capture(ctx, f.tenantID, failed.ID, "tok_visa")
	assert.ErrorIs(t, err, apperror.ErrPaymentNotPending)
}

func TestCaptureWithoutEnabledProvider(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.pendingPayment(t)

	_, err := f.svc.Capture(context.Background(), f.tenantID, p.ID, "tok_visa")
	assert.ErrorIs(t, err, apperror.ErrProviderDisabled)

	stored, _ := f.payments.GetByID(context.Background(), f.tenantID, p.ID)
	assert.Equal(t, enum.PaymentStatusPending, stored.Status, "payment is untouched")
}

func TestCaptureFailureIsRecordedNeverAssumedComplete(t *testing.T) {
	f := newPaymentFixture(t)
	f.manualSettings()
	p := f.pendingPayment(t)

	// The manual provider rejects every capture; the attempt must land as a
	// recorded failure, not as silence.
	returned, err := f.svc.Capture(context.Background(), f.tenantID, p.ID, "tok_visa")
	assert.Error(t, err)
	require.NotNil(t, returned)
	assert.Equal(t, enum.PaymentStatusFailed, returned.Status)
	require.NotNil(t, returned.FailureReason)
	require.NotNil(t, returned.FailedAt)

	assert.Empty(t, f.notifier.ofType(event.PaymentCompleted))
}

func TestMarkPaidCompletesWithManualProviderIdentity(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	p := f.pendingPayment(t)

	paid, err := f.svc.MarkPaid(ctx, f.tenantID, p.ID, "bank-transfer-4711")
	require.NoError(t, err)
	assert.Equal(t, enum.PaymentStatusCompleted, paid.Status)
	require.NotNil(t, paid.Provider)
	assert.Equal(t, "manual", *paid.Provider)
	require.NotNil(t, paid.ProviderRef)
	assert.Equal(t, "bank-transfer-4711", *paid.ProviderRef)
	require.NotNil(t, paid.CapturedAt)

	assert.Len(t, f.notifier.ofType(event.PaymentCompleted), 1)

	// Reconciling twice is refused, the record stays as first written.
	_, err = f.svc.MarkPaid(ctx, f.tenantID, p.ID, "other-ref")
	assert.ErrorIs(t, err, apperror.ErrAlreadyCaptured)
	stored, _ := f.payments.GetByID(ctx, f.tenantID, p.ID)
	assert.Equal(t, "bank-transfer-4711", *stored.ProviderRef)
}

func TestMarkPaidOnGatewayTenantIsAuditFlagged(t *testing.T) {
	f := newPaymentFixture(t)
	f.meshulamSettings("whsec")
	core, logs := observer.New(zapcore.WarnLevel)
	f.svc.logger = zap.New(core)
	ctx := context.Background()
	p := f.pendingPayment(t)

	// Out-of-band reconciliation stays allowed for gateway tenants, but
	// the completion leaves an audit trail.
	paid, err := f.svc.MarkPaid(ctx, f.tenantID, p.ID, "bank-transfer-9001")
	require.NoError(t, err)
	assert.Equal(t, enum.PaymentStatusCompleted, paid.Status)

	entries := logs.FilterMessage("manual completion for a gateway-collected tenant").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, enum.ProviderMeshulam.String(), fields["provider"])
	assert.Equal(t, p.ID.String(), fields["payment_id"])
	assert.Equal(t, "bank-transfer-9001", fields["reference"])
}

func TestMarkPaidOnManualTenantIsNotFlagged(t *testing.T) {
	f := newPaymentFixture(t)
	f.manualSettings()
	core, logs := observer.New(zapcore.WarnLevel)
	f.svc.logger = zap.New(core)
	p := f.pendingPayment(t)

	_, err := f.svc.MarkPaid(context.Background(), f.tenantID, p.ID, "cheque-17")
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

func TestPaymentLinkRefPersistedAndCompletedByWebhook(t *testing.T) {
	f := newPaymentFixture(t)
	f.meshulamSettings("whsec-123")
	ctx := context.Background()

	stub := &stubProvider{
		providerType: enum.ProviderMeshulam,
		link:         &payment.PaymentLink{URL: "https://pay.example/p/55", ProviderRef: "proc-55"},
	}
	f.svc.providers = &stubResolver{provider: stub}

	p, err := f.svc.CreatePayment(ctx, &CreatePaymentInput{
		TenantID:        f.tenantID,
		ClientID:        f.clientID,
		ClientType:      enum.ClientTypeClient,
		Description:     "Brand refresh",
		Amount:          money.New(585000, "ILS"),
		WithPaymentLink: true,
	})
	require.NoError(t, err)
	require.NotNil(t, p.PaymentLink)
	assert.Equal(t, "https://pay.example/p/55", *p.PaymentLink)
	require.NotNil(t, p.ProviderRef, "the gateway's process reference is stored with the pending payment")
	assert.Equal(t, "proc-55", *p.ProviderRef)
	assert.Equal(t, []string{p.ID.String()}, stub.linkRefs, "the payment id rides along as the client reference")

	// The provider's success callback references the process it handed out
	// at link creation; that alone must complete the payment.
	stub.webhookEvent = &payment.WebhookEvent{
		Type:        "payment.completed",
		ProviderRef: "proc-55",
		Succeeded:   true,
	}
	require.NoError(t, f.svc.HandleWebhook(ctx, f.tenantID, enum.ProviderMeshulam, []byte(`{}`), "sig"))

	stored, _ := f.payments.GetByID(ctx, f.tenantID, p.ID)
	assert.Equal(t, enum.PaymentStatusCompleted, stored.Status)
	require.NotNil(t, stored.Provider)
	assert.Equal(t, "meshulam", *stored.Provider)
	assert.Len(t, f.notifier.ofType(event.PaymentCompleted), 1)
}

func TestHandleWebhookAppliesVerifiedOutcome(t *testing.T) {
	f := newPaymentFixture(t)
	f.meshulamSettings("whsec-123")
	ctx := context.Background()

	p := f.pendingPayment(t)
	ref := "tx-900"
	p.ProviderRef = &ref
	require.NoError(t, f.payments.Update(ctx, p))

	payload := []byte(`{"transactionId":"tx-900","statusCode":2}`)
	err := f.svc.HandleWebhook(ctx, f.tenantID, enum.ProviderMeshulam, payload, signHMAC("whsec-123", payload))
	require.NoError(t, err)

	stored, _ := f.payments.GetByID(ctx, f.tenantID, p.ID)
	assert.Equal(t, enum.PaymentStatusCompleted, stored.Status)
	require.NotNil(t, stored.Provider)
	assert.Equal(t, "meshulam", *stored.Provider)
	assert.Len(t, f.notifier.ofType(event.PaymentCompleted), 1)

	// Replayed delivery of the same success is a silent no-op.
	err = f.svc.HandleWebhook(ctx, f.tenantID, enum.ProviderMeshulam, payload, signHMAC("whsec-123", payload))
	require.NoError(t, err)
	assert.Len(t, f.notifier.ofType(event.PaymentCompleted), 1, "no second event")
}

func TestHandleWebhookDiscardsBadSignature(t *testing.T) {
	f := newPaymentFixture(t)
	f.meshulamSettings("whsec-123")
	ctx := context.Background()

	p := f.pendingPayment(t)
	ref := "tx-901"
	p.ProviderRef = &ref
	require.NoError(t, f.payments.Update(ctx, p))

	payload := []byte(`{"transactionId":"tx-901","statusCode":2}`)
	err := f.svc.HandleWebhook(ctx, f.tenantID, enum.ProviderMeshulam, payload, signHMAC("wrong-secret", payload))
	assert.ErrorIs(t, err, apperror.ErrInvalidSignature)

	stored, _ := f.payments.GetByID(ctx, f.tenantID, p.ID)
	assert.Equal(t, enum.PaymentStatusPending, stored.Status, "unverified payloads never touch state")
}

func TestHandleWebhookFailureOutcome(t *testing.T) {
	f := newPaymentFixture(t)
	f.meshulamSettings("whsec-123")
	ctx := context.Background()

	p := f.pendingPayment(t)
	ref := "tx-902"
	p.ProviderRef = &ref
	require.NoError(t, f.payments.Update(ctx, p))

	payload := []byte(`{"transactionId":"tx-902","statusCode":0}`)
	err := f.svc.HandleWebhook(ctx, f.tenantID, enum.ProviderMeshulam, payload, signHMAC("whsec-123", payload))
	require.NoError(t, err)

	stored, _ := f.payments.GetByID(ctx, f.tenantID, p.ID)
	assert.Equal(t, enum.PaymentStatusFailed, stored.Status)
	assert.Empty(t, f.notifier.ofType(event.PaymentCompleted))
}

func TestHandleWebhookRejectsMismatchedProvider(t *testing.T) {
	f := newPaymentFixture(t)
	f.meshulamSettings("whsec-123")

	payload := []byte(`{"transactionId":"tx-1","statusCode":2}`)
	err := f.svc.HandleWebhook(context.Background(), f.tenantID, enum.ProviderStripe, payload, signHMAC("whsec-123", payload))
	assert.ErrorIs(t, err, apperror.ErrProviderDisabled)

	f.settings.settings = nil
	err = f.svc.HandleWebhook(context.Background(), f.tenantID, enum.ProviderMeshulam, payload, signHMAC("whsec-123", payload))
	assert.ErrorIs(t, err, apperror.ErrProviderDisabled)
}

func TestHandleWebhookUnknownProviderRef(t *testing.T) {
	f := newPaymentFixture(t)
	f.meshulamSettings("whsec-123")

	payload := []byte(`{"transactionId":"tx-nobody","statusCode":2}`)
	err := f.svc.HandleWebhook(context.Background(), f.tenantID, enum.ProviderMeshulam, payload, signHMAC("whsec-123", payload))
	assert.Error(t, err)
}
