package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFlexTimeUnmarshalRFC3339(t *testing.T) {
	var ft FlexTime
	if err := json.Unmarshal([]byte(`"2026-01-15T10:30:00Z"`), &ft); err != nil {
		t.Fatalf("unmarshal RFC3339: %v", err)
	}
	want := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	if !ft.Time.Equal(want) {
		t.Errorf("got %v, want %v", ft.Time, want)
	}
}

func TestFlexTimeUnmarshalEpochMillis(t *testing.T) {
	var ft FlexTime
	if err := json.Unmarshal([]byte(`1700000000000`), &ft); err != nil {
		t.Fatalf("unmarshal epoch ms: %v", err)
	}
	want := time.UnixMilli(1700000000000).UTC()
	if !ft.Time.Equal(want) {
		t.Errorf("got %v, want %v", ft.Time, want)
	}
}

func TestFlexTimeAbsentIsNilPointer(t *testing.T) {
	var req EvaluationRequest
	if err := json.Unmarshal([]byte(`{"instrument":"ES"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Timestamp != nil {
		t.Error("expected nil Timestamp for request omitting it")
	}
}

func TestFlexTimeRoundTrip(t *testing.T) {
	ft := FlexTime{Time: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	encoded, err := json.Marshal(ft)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded FlexTime
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Time.Equal(ft.Time) {
		t.Errorf("round trip mismatch: got %v, want %v", decoded.Time, ft.Time)
	}
}
