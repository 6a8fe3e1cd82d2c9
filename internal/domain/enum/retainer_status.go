package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// RetainerStatus represents the status of a recurring retainer
type RetainerStatus int

const (
	RetainerStatusActive    RetainerStatus = 0
	RetainerStatusPaused    RetainerStatus = 1
	RetainerStatusCancelled RetainerStatus = 2
)

func (s RetainerStatus) String() string {
	return [...]string{"Active", "Paused", "Cancelled"}[s]
}

// ParseRetainerStatus maps a status name to its value
func ParseRetainerStatus(s string) (RetainerStatus, bool) {
	switch s {
	case "Active":
		return RetainerStatusActive, true
	case "Paused":
		return RetainerStatusPaused, true
	case "Cancelled":
		return RetainerStatusCancelled, true
	default:
		return RetainerStatusActive, false
	}
}

func (s RetainerStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *RetainerStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = RetainerStatus(i)
		return nil
	}
	switch str {
	case "Active":
		*s = RetainerStatusActive
	case "Paused":
		*s = RetainerStatusPaused
	case "Cancelled":
		*s = RetainerStatusCancelled
	}
	return nil
}

func (s RetainerStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *RetainerStatus) Scan(value interface{}) error {
	if value == nil {
		*s = RetainerStatusActive
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = RetainerStatus(v)
	case int:
		*s = RetainerStatus(v)
	}
	return nil
}
