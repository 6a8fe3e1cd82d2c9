package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// PaymentStatus represents the lifecycle status of a one-time payment
type PaymentStatus int

const (
	PaymentStatusPending   PaymentStatus = 0
	PaymentStatusCompleted PaymentStatus = 1
	PaymentStatusFailed    PaymentStatus = 2
)

func (s PaymentStatus) String() string {
	return [...]string{"Pending", "Completed", "Failed"}[s]
}

// ParsePaymentStatus maps a status name to its value
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch s {
	case "Pending":
		return PaymentStatusPending, true
	case "Completed":
		return PaymentStatusCompleted, true
	case "Failed":
		return PaymentStatusFailed, true
	default:
		return PaymentStatusPending, false
	}
}

// IsTerminal reports whether the payment can still change state.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

func (s PaymentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *PaymentStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = PaymentStatus(i)
		return nil
	}
	switch str {
	case "Pending":
		*s = PaymentStatusPending
	case "Completed":
		*s = PaymentStatusCompleted
	case "Failed":
		*s = PaymentStatusFailed
	}
	return nil
}

func (s PaymentStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *PaymentStatus) Scan(value interface{}) error {
	if value == nil {
		*s = PaymentStatusPending
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = PaymentStatus(v)
	case int:
		*s = PaymentStatus(v)
	}
	return nil
}
