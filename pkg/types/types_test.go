package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestOutcomeUnmarshalPresenceFlags(t *testing.T) {
	raw := `{"entry_signal_id":"sig-1","instrument":"ES","pnl":0,"timestamp":"2026-01-15T10:30:00Z"}`
	var o Outcome
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !o.EntrySignalIDProvided {
		t.Error("expected EntrySignalIDProvided true")
	}
	if !o.PnLProvided {
		t.Error("expected PnLProvided true for an explicit zero pnl")
	}
	if !o.PnL.Equal(decimal.Zero) {
		t.Errorf("PnL = %v, want 0", o.PnL)
	}
}

func TestOutcomeUnmarshalMissingPnLNotProvided(t *testing.T) {
	raw := `{"entry_signal_id":"sig-1","instrument":"ES","timestamp":"2026-01-15T10:30:00Z"}`
	var o Outcome
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if o.PnLProvided {
		t.Error("expected PnLProvided false when pnl field is absent")
	}
}

func TestOutcomeUnmarshalMissingEntrySignalID(t *testing.T) {
	raw := `{"instrument":"ES","pnl":12.5,"timestamp":"2026-01-15T10:30:00Z"}`
	var o Outcome
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if o.EntrySignalIDProvided {
		t.Error("expected EntrySignalIDProvided false when field is absent")
	}
}

func TestKeyString(t *testing.T) {
	k := Key{InstrumentBase: "ES", Direction: DirectionLong}
	if got, want := k.String(), "ES:long"; got != want {
		t.Errorf("Key.String() = %q, want %q", got, want)
	}
}
