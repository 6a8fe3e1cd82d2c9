package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

func TestMarkCompletedFreezesProviderIdentity(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	p := &OneTimePayment{Amount: 117000, Currency: "ILS", Status: enum.PaymentStatusPending}

	require.NoError(t, p.MarkCompleted("stripe", "pi_123", now))
	assert.Equal(t, enum.PaymentStatusCompleted, p.Status)
	require.NotNil(t, p.Provider)
	assert.Equal(t, "stripe", *p.Provider)
	require.NotNil(t, p.ProviderRef)
	assert.Equal(t, "pi_123", *p.ProviderRef)
	require.NotNil(t, p.CapturedAt)
	assert.True(t, now.Equal(*p.CapturedAt))

	// A second capture is refused and changes nothing, even from another
	// provider name.
	err := p.MarkCompleted("meshulam", "tx_999", now.Add(time.Hour))
	assert.ErrorIs(t, err, apperror.ErrAlreadyCaptured)
	assert.Equal(t, "stripe", *p.Provider)
	assert.Equal(t, "pi_123", *p.ProviderRef)
	assert.True(t, now.Equal(*p.CapturedAt))
}

func TestMarkCompletedRequiresPendingState(t *testing.T) {
	now := time.Now()
	p := &OneTimePayment{Status: enum.PaymentStatusFailed}

	err := p.MarkCompleted("stripe", "pi_123", now)
	assert.ErrorIs(t, err, apperror.ErrPaymentNotPending)
	assert.Equal(t, enum.PaymentStatusFailed, p.Status)
}

func TestMarkCompletedClearsEarlierFailureReason(t *testing.T) {
	now := time.Now()
	p := &OneTimePayment{Status: enum.PaymentStatusPending}

	require.NoError(t, p.MarkFailed("card declined", now))
	assert.Equal(t, enum.PaymentStatusFailed, p.Status)
	require.NotNil(t, p.FailureReason)

	// Failed is retryable: the payment goes back through pending and a later
	// capture succeeds cleanly.
	p.Status = enum.PaymentStatusPending
	require.NoError(t, p.MarkCompleted("tranzila", "txn-1", now))
	assert.Nil(t, p.FailureReason)
}

func TestMarkFailedNeverDowngradesCompleted(t *testing.T) {
	now := time.Now()
	p := &OneTimePayment{Status: enum.PaymentStatusPending}
	require.NoError(t, p.MarkCompleted("cardcom", "deal-7", now))

	err := p.MarkFailed("late decline callback", now.Add(time.Minute))
	assert.ErrorIs(t, err, apperror.ErrAlreadyCaptured)
	assert.Equal(t, enum.PaymentStatusCompleted, p.Status)
	assert.Nil(t, p.FailureReason)
}

func TestPaymentTotal(t *testing.T) {
	p := &OneTimePayment{Amount: 29250, Currency: "ILS"}
	total := p.Total()
	assert.Equal(t, int64(29250), total.Amount)
	assert.Equal(t, "ILS", total.Currency)
}
