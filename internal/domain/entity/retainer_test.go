package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetainerRanOut(t *testing.T) {
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, -1, 0)
	future := now.AddDate(0, 1, 0)

	open := &Retainer{}
	assert.False(t, open.RanOut(now), "no end date means the retainer never runs out")

	ended := &Retainer{EndDate: &past}
	assert.True(t, ended.RanOut(now))

	renewing := &Retainer{EndDate: &past, AutoRenew: true}
	assert.False(t, renewing.RanOut(now), "auto-renew outlives the end date")

	running := &Retainer{EndDate: &future}
	assert.False(t, running.RanOut(now))

	boundary := &Retainer{EndDate: &now}
	assert.False(t, boundary.RanOut(now), "the end date itself is still in scope")
}

func TestRecordFailureThreshold(t *testing.T) {
	now := time.Now()
	r := &Retainer{}

	assert.False(t, r.RecordFailure("declined", now, 3))
	assert.False(t, r.RecordFailure("declined", now, 3))
	assert.True(t, r.RecordFailure("declined", now, 3), "third consecutive failure trips the threshold")
	assert.Equal(t, 3, r.ConsecutiveFailures)
	assert.NotNil(t, r.LastFailureReason)
	assert.NotNil(t, r.LastFailureAt)
}

func TestRecordFailureZeroThresholdNeverPauses(t *testing.T) {
	now := time.Now()
	r := &Retainer{}
	for i := 0; i < 10; i++ {
		assert.False(t, r.RecordFailure("declined", now, 0))
	}
	assert.Equal(t, 10, r.ConsecutiveFailures)
}

func TestRecordSuccessClearsStreak(t *testing.T) {
	now := time.Now()
	r := &Retainer{}
	r.RecordFailure("declined", now, 3)
	r.RecordFailure("declined", now, 3)

	r.RecordSuccess()
	assert.Zero(t, r.ConsecutiveFailures)
	assert.Nil(t, r.LastFailureReason)
	assert.Nil(t, r.LastFailureAt)

	// The streak restarts from one, not from where it left off.
	assert.False(t, r.RecordFailure("declined", now, 2))
	assert.Equal(t, 1, r.ConsecutiveFailures)
}

func TestPeriodAmount(t *testing.T) {
	r := &Retainer{Amount: 350000, Currency: "ILS"}
	amount := r.PeriodAmount()
	assert.Equal(t, int64(350000), amount.Amount)
	assert.Equal(t, "ILS", amount.Currency)
}
