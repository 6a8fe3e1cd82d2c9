package enum

import "time"

// PriceType describes how a quote line item is billed
type PriceType string

const (
	PriceTypeFixed   PriceType = "fixed"
	PriceTypeHourly  PriceType = "hourly"
	PriceTypeMonthly PriceType = "monthly"
)

// IsValid returns true for a known price type.
func (p PriceType) IsValid() bool {
	switch p {
	case PriceTypeFixed, PriceTypeHourly, PriceTypeMonthly:
		return true
	default:
		return false
	}
}

// ClientType distinguishes converted clients from leads still in the funnel
type ClientType string

const (
	ClientTypeClient ClientType = "client"
	ClientTypeLead   ClientType = "lead"
)

// IsValid returns true for a known client type.
func (c ClientType) IsValid() bool {
	return c == ClientTypeClient || c == ClientTypeLead
}

// RetainerFrequency is the billing cadence of a retainer
type RetainerFrequency string

const (
	FrequencyMonthly   RetainerFrequency = "monthly"
	FrequencyQuarterly RetainerFrequency = "quarterly"
	FrequencyYearly    RetainerFrequency = "yearly"
)

// IsValid returns true for a known frequency.
func (f RetainerFrequency) IsValid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	default:
		return false
	}
}

// PeriodStart returns the start of the nth billing period (0-based) after
// anchor. Each period is derived from the anchor rather than from its
// predecessor, with the day-of-month clamped to the target month's length:
// a retainer anchored on Jan 31 bills Feb 28, Mar 31, Apr 30 instead of
// drifting to the 3rd the way repeated AddDate calls would.
func (f RetainerFrequency) PeriodStart(anchor time.Time, n int) time.Time {
	months := n
	switch f {
	case FrequencyQuarterly:
		months = 3 * n
	case FrequencyYearly:
		months = 12 * n
	}

	y, m, _ := anchor.Date()
	target := time.Date(y, m, 1, 0, 0, 0, 0, anchor.Location()).AddDate(0, months, 0)
	day := anchor.Day()
	if lastDay := target.AddDate(0, 1, -1).Day(); day > lastDay {
		day = lastDay
	}
	return time.Date(target.Year(), target.Month(), day,
		anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), anchor.Location())
}

// ProviderType identifies a payment gateway vendor
type ProviderType string

const (
	ProviderMeshulam     ProviderType = "meshulam"
	ProviderGreenInvoice ProviderType = "greeninvoice"
	ProviderStripe       ProviderType = "stripe"
	ProviderTranzila     ProviderType = "tranzila"
	ProviderCardcom      ProviderType = "cardcom"
	ProviderManual       ProviderType = "manual"
)

// IsValid returns true for a known provider.
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderMeshulam, ProviderGreenInvoice, ProviderStripe,
		ProviderTranzila, ProviderCardcom, ProviderManual:
		return true
	default:
		return false
	}
}

func (p ProviderType) String() string {
	return string(p)
}
