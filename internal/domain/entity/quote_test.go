package entity

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

func draftQuote() *Quote {
	clientID := uuid.New()
	return &Quote{
		ID:                 uuid.New(),
		TenantID:           uuid.New(),
		QuoteNumber:        7,
		Title:              "Website redesign",
		ClientID:           &clientID,
		ClientType:         enum.ClientTypeClient,
		Currency:           "ILS",
		VATRateBasisPoints: 1700,
		Status:             enum.QuoteStatusDraft,
		LineItems: []QuoteLineItem{
			{Name: "Design", Quantity: 1, UnitPrice: 500000, PriceType: enum.PriceTypeFixed, LineTotal: 500000},
		},
	}
}

func TestRecomputeDerivesTotals(t *testing.T) {
	q := draftQuote()
	q.LineItems = append(q.LineItems, QuoteLineItem{
		Name: "Support", Quantity: 3, UnitPrice: 10000, PriceType: enum.PriceTypeMonthly, LineTotal: 30000,
	})
	q.Recompute()

	assert.Equal(t, int64(530000), q.Subtotal)
	assert.Equal(t, int64(90100), q.VATAmount) // 17% of 5300.00
	assert.Equal(t, int64(620100), q.TotalAmount)
}

func TestRecomputeEmptyQuote(t *testing.T) {
	q := draftQuote()
	q.LineItems = nil
	q.Recompute()

	assert.Zero(t, q.Subtotal)
	assert.Zero(t, q.VATAmount)
	assert.Zero(t, q.TotalAmount)
}

func TestRecomputeTotalsHoldForArbitraryLines(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		q := draftQuote()
		q.VATRateBasisPoints = int64(rng.Intn(3001)) // 0% to 30%
		q.LineItems = nil

		var wantSubtotal int64
		for n := rng.Intn(12) + 1; n > 0; n-- {
			qty := int64(rng.Intn(50) + 1)
			unit := int64(rng.Intn(5_000_000))
			q.LineItems = append(q.LineItems, QuoteLineItem{
				Name: "Line", Quantity: int(qty), UnitPrice: unit,
				PriceType: enum.PriceTypeFixed, LineTotal: qty * unit,
			})
			wantSubtotal += qty * unit
		}

		q.Recompute()

		require.Equal(t, wantSubtotal, q.Subtotal)
		// Half-up on the subtotal as a whole, never per line.
		wantVAT := (wantSubtotal*q.VATRateBasisPoints + 5000) / 10000
		require.Equal(t, wantVAT, q.VATAmount,
			"subtotal %d at %d bps", wantSubtotal, q.VATRateBasisPoints)
		require.Equal(t, wantSubtotal+wantVAT, q.TotalAmount)
	}
}

func TestSubmitRequiresLinesAndClient(t *testing.T) {
	now := time.Now()

	q := draftQuote()
	q.LineItems = nil
	assert.ErrorIs(t, q.Submit(now), apperror.ErrEmptyQuote)

	q = draftQuote()
	q.ClientID = nil
	assert.ErrorIs(t, q.Submit(now), apperror.ErrMissingClient)

	q = draftQuote()
	require.NoError(t, q.Submit(now))
	assert.Equal(t, enum.QuoteStatusSent, q.Status)
	require.NotNil(t, q.SentAt)
}

func TestTransitionMatrix(t *testing.T) {
	now := time.Now()

	// Approve and reject require a sent quote.
	q := draftQuote()
	assert.ErrorIs(t, q.Approve(now), apperror.ErrInvalidTransition)
	assert.ErrorIs(t, q.Reject(now), apperror.ErrInvalidTransition)

	require.NoError(t, q.Submit(now))
	require.NoError(t, q.Approve(now))
	assert.Equal(t, enum.QuoteStatusApproved, q.Status)
	require.NotNil(t, q.ApprovedAt)
	require.NotNil(t, q.SignedAt)

	// Terminal states admit nothing further.
	assert.ErrorIs(t, q.Reject(now), apperror.ErrInvalidTransition)
	assert.ErrorIs(t, q.Submit(now), apperror.ErrInvalidTransition)
	assert.ErrorIs(t, q.EnsureDraft(), apperror.ErrQuoteLocked)

	q2 := draftQuote()
	require.NoError(t, q2.Submit(now))
	require.NoError(t, q2.Reject(now))
	assert.Equal(t, enum.QuoteStatusRejected, q2.Status)
}

func TestExpireOnlyAfterValidUntil(t *testing.T) {
	now := time.Now()
	q := draftQuote()
	deadline := now.Add(24 * time.Hour)
	q.ValidUntil = &deadline
	require.NoError(t, q.Submit(now))

	// Deadline not yet passed: no-op.
	require.NoError(t, q.Expire(now))
	assert.Equal(t, enum.QuoteStatusSent, q.Status)

	// Past the deadline: expires.
	require.NoError(t, q.Expire(deadline.Add(time.Minute)))
	assert.Equal(t, enum.QuoteStatusExpired, q.Status)
	require.NotNil(t, q.ExpiredAt)

	// Re-running the sweep over an expired quote stays a no-op.
	firstExpiredAt := *q.ExpiredAt
	require.NoError(t, q.Expire(deadline.Add(2*time.Hour)))
	assert.Equal(t, firstExpiredAt, *q.ExpiredAt)
}

func TestExpireWithoutDeadlineNeverFires(t *testing.T) {
	now := time.Now()
	q := draftQuote()
	require.NoError(t, q.Submit(now))

	require.NoError(t, q.Expire(now.Add(365*24*time.Hour)))
	assert.Equal(t, enum.QuoteStatusSent, q.Status)
}

func TestAmountOfTypeSplitsBillingPortions(t *testing.T) {
	q := draftQuote()
	q.LineItems = []QuoteLineItem{
		{Name: "Build", Quantity: 1, UnitPrice: 500000, PriceType: enum.PriceTypeFixed, LineTotal: 500000},
		{Name: "Extra hours", Quantity: 10, UnitPrice: 25000, PriceType: enum.PriceTypeHourly, LineTotal: 250000},
		{Name: "Retainer", Quantity: 1, UnitPrice: 300000, PriceType: enum.PriceTypeMonthly, LineTotal: 300000},
	}

	assert.Equal(t, int64(500000), q.AmountOfType(enum.PriceTypeFixed).Amount)
	assert.Equal(t, int64(250000), q.AmountOfType(enum.PriceTypeHourly).Amount)
	assert.Equal(t, int64(300000), q.AmountOfType(enum.PriceTypeMonthly).Amount)
	assert.True(t, q.HasLinesOfType(enum.PriceTypeMonthly))
}
