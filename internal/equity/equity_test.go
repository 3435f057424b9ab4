package equity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/risk-engine/pkg/types"
)

func vec(base string, direction types.Direction, pnl int64, ts time.Time) types.Vector {
	return types.Vector{
		InstrumentBase: base,
		Direction:      direction,
		Timestamp:      ts,
		PnL:            decimal.NewFromInt(pnl),
		PnLPerContract: decimal.NewFromInt(pnl),
		MaxProfit:      decimal.NewFromInt(20),
	}
}

func TestRecordTracksStreaksAndEquity(t *testing.T) {
	s := New(decimal.NewFromInt(10000))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Record(vec("ES", types.DirectionLong, 100, base))
	s.Record(vec("ES", types.DirectionLong, 50, base.Add(time.Hour)))
	if got := s.WinStreak(); got != 2 {
		t.Errorf("WinStreak = %d, want 2", got)
	}

	s.Record(vec("ES", types.DirectionLong, -30, base.Add(2*time.Hour)))
	if got := s.WinStreak(); got != 0 {
		t.Errorf("WinStreak after loss = %d, want 0", got)
	}
	if got := s.LossStreak(); got != 1 {
		t.Errorf("LossStreak = %d, want 1", got)
	}

	snap := s.Snapshot()
	wantEquity := decimal.NewFromInt(10000 + 100 + 50 - 30)
	if !snap.CurrentEquity.Equal(wantEquity) {
		t.Errorf("CurrentEquity = %v, want %v", snap.CurrentEquity, wantEquity)
	}
}

func TestDrawdownPercentClampedNonNegative(t *testing.T) {
	s := New(decimal.NewFromInt(10000))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Record(vec("ES", types.DirectionLong, -500, base))

	pct := s.DrawdownPercent()
	if pct <= 0 || pct > 100 {
		t.Errorf("DrawdownPercent = %v, want in (0, 100]", pct)
	}
}

func TestRecordsSinceFiltersByInstrumentAndWindow(t *testing.T) {
	s := New(decimal.NewFromInt(10000))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Record(vec("ES", types.DirectionLong, 10, base))
	s.Record(vec("NQ", types.DirectionLong, 10, base.Add(time.Hour)))
	s.Record(vec("ES", types.DirectionLong, 10, base.Add(-48*time.Hour)))

	since := base.Add(-24 * time.Hour)
	records := s.RecordsSince("ES", since)
	if len(records) != 1 {
		t.Fatalf("expected 1 record within window, got %d", len(records))
	}
	if records[0].InstrumentBase != "ES" {
		t.Errorf("InstrumentBase = %q, want ES", records[0].InstrumentBase)
	}
}

func TestRecentEfficiencyBoundedByRequestedWindow(t *testing.T) {
	s := New(decimal.NewFromInt(10000))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		s.Record(vec("ES", types.DirectionLong, 10, base.Add(time.Duration(i)*time.Hour)))
	}
	if got := len(s.RecentEfficiency(5)); got != 5 {
		t.Errorf("RecentEfficiency(5) length = %d, want 5", got)
	}
	if got := len(s.RecentEfficiency(1000)); got != 10 {
		t.Errorf("RecentEfficiency(1000) length = %d, want 10 (all records)", got)
	}
}
