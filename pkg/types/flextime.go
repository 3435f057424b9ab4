package types

import (
	"strconv"
	"strings"
	"time"
)

// FlexTime decodes a boundary timestamp supplied as either an ISO-8601
// string or epoch milliseconds, per the wire contract. A request field typed
// as *FlexTime is nil when the caller omitted the timestamp entirely,
// letting handlers distinguish "absent" from "zero time".
type FlexTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler for FlexTime.
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		parsed, err := time.Parse(time.RFC3339, strings.Trim(s, `"`))
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

// MarshalJSON implements json.Marshaler for FlexTime, always emitting
// RFC3339.
func (t FlexTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Time.UTC().Format(time.RFC3339) + `"`), nil
}
