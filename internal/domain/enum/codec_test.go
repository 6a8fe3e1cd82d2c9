package enum

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The int-backed statuses cross two codecs: JSON (by name, for the API)
// and database/sql (by value, for the payments partial index and status
// filters). Both must round-trip every defined constant.

func TestQuoteStatusRoundTrips(t *testing.T) {
	statuses := []QuoteStatus{
		QuoteStatusDraft, QuoteStatusSent, QuoteStatusApproved,
		QuoteStatusRejected, QuoteStatusExpired,
	}

	for _, s := range statuses {
		t.Run(s.String(), func(t *testing.T) {
			raw, err := json.Marshal(s)
			require.NoError(t, err)
			assert.JSONEq(t, `"`+s.String()+`"`, string(raw))

			var fromJSON QuoteStatus
			require.NoError(t, json.Unmarshal(raw, &fromJSON))
			assert.Equal(t, s, fromJSON)

			parsed, ok := ParseQuoteStatus(s.String())
			require.True(t, ok)
			assert.Equal(t, s, parsed)

			v, err := s.Value()
			require.NoError(t, err)
			var fromDB QuoteStatus
			require.NoError(t, fromDB.Scan(v))
			assert.Equal(t, s, fromDB)
		})
	}
}

func TestPaymentStatusRoundTrips(t *testing.T) {
	statuses := []PaymentStatus{
		PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed,
	}

	for _, s := range statuses {
		t.Run(s.String(), func(t *testing.T) {
			raw, err := json.Marshal(s)
			require.NoError(t, err)

			var fromJSON PaymentStatus
			require.NoError(t, json.Unmarshal(raw, &fromJSON))
			assert.Equal(t, s, fromJSON)

			parsed, ok := ParsePaymentStatus(s.String())
			require.True(t, ok)
			assert.Equal(t, s, parsed)

			v, err := s.Value()
			require.NoError(t, err)
			var fromDB PaymentStatus
			require.NoError(t, fromDB.Scan(v))
			assert.Equal(t, s, fromDB)
		})
	}
}

func TestRetainerStatusRoundTrips(t *testing.T) {
	statuses := []RetainerStatus{
		RetainerStatusActive, RetainerStatusPaused, RetainerStatusCancelled,
	}

	for _, s := range statuses {
		t.Run(s.String(), func(t *testing.T) {
			raw, err := json.Marshal(s)
			require.NoError(t, err)

			var fromJSON RetainerStatus
			require.NoError(t, json.Unmarshal(raw, &fromJSON))
			assert.Equal(t, s, fromJSON)

			parsed, ok := ParseRetainerStatus(s.String())
			require.True(t, ok)
			assert.Equal(t, s, parsed)

			v, err := s.Value()
			require.NoError(t, err)
			var fromDB RetainerStatus
			require.NoError(t, fromDB.Scan(v))
			assert.Equal(t, s, fromDB)
		})
	}
}

func TestStatusScanAcceptsLegacyIntWidths(t *testing.T) {
	// Drivers differ in the integer width they hand to Scan.
	var q QuoteStatus
	require.NoError(t, q.Scan(int(QuoteStatusApproved)))
	assert.Equal(t, QuoteStatusApproved, q)

	var p PaymentStatus
	require.NoError(t, p.Scan(nil))
	assert.Equal(t, PaymentStatusPending, p)
}
