package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// QuoteStatus represents the lifecycle status of a quote
type QuoteStatus int

const (
	QuoteStatusDraft    QuoteStatus = 0
	QuoteStatusSent     QuoteStatus = 1
	QuoteStatusApproved QuoteStatus = 2
	QuoteStatusRejected QuoteStatus = 3
	QuoteStatusExpired  QuoteStatus = 4
)

func (s QuoteStatus) String() string {
	return [...]string{"Draft", "Sent", "Approved", "Rejected", "Expired"}[s]
}

// ParseQuoteStatus maps a status name (case-sensitive, as emitted by String)
// to its value. Used for query string filters.
func ParseQuoteStatus(s string) (QuoteStatus, bool) {
	switch s {
	case "Draft":
		return QuoteStatusDraft, true
	case "Sent":
		return QuoteStatusSent, true
	case "Approved":
		return QuoteStatusApproved, true
	case "Rejected":
		return QuoteStatusRejected, true
	case "Expired":
		return QuoteStatusExpired, true
	default:
		return QuoteStatusDraft, false
	}
}

// IsTerminal reports whether the status permits no further transitions.
func (s QuoteStatus) IsTerminal() bool {
	switch s {
	case QuoteStatusApproved, QuoteStatusRejected, QuoteStatusExpired:
		return true
	default:
		return false
	}
}

func (s QuoteStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *QuoteStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = QuoteStatus(i)
		return nil
	}
	switch str {
	case "Draft":
		*s = QuoteStatusDraft
	case "Sent":
		*s = QuoteStatusSent
	case "Approved":
		*s = QuoteStatusApproved
	case "Rejected":
		*s = QuoteStatusRejected
	case "Expired":
		*s = QuoteStatusExpired
	}
	return nil
}

func (s QuoteStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *QuoteStatus) Scan(value interface{}) error {
	if value == nil {
		*s = QuoteStatusDraft
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = QuoteStatus(v)
	case int:
		*s = QuoteStatus(v)
	}
	return nil
}
