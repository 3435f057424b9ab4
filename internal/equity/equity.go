// Package equity implements the global Equity State: a ring buffer of
// recent trade records plus streak and drawdown bookkeeping, written only by
// outcome intake (C8) and read everywhere else via snapshot.
package equity

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/risk-engine/pkg/types"
	"github.com/atlas-desktop/risk-engine/pkg/utils"
)

// ringCapacity is the number of trailing trade records retained.
const ringCapacity = 100

// Record is one trade's contribution to the equity ring buffer.
type Record struct {
	Timestamp      time.Time
	InstrumentBase string
	Direction      types.Direction
	PnLPerContract decimal.Decimal
	RunningTotal   decimal.Decimal
	MaxProfit      decimal.Decimal
	MaxLoss        decimal.Decimal
	Efficiency     float64
}

// State is the single-writer Equity State. All mutation happens through
// Record, called only from outcome intake; everyone else reads a Snapshot
// or queries the ring buffer directly via read-locked accessors.
type State struct {
	mu sync.Mutex

	startingEquity decimal.Decimal
	currentEquity  decimal.Decimal
	peakEquity     decimal.Decimal
	maxDrawdown    decimal.Decimal

	winStreak  int
	lossStreak int
	tradeCount int

	records []Record // most-recent-last, capped at ringCapacity
}

// New returns a State seeded with startingEquity.
func New(startingEquity decimal.Decimal) *State {
	return &State{
		startingEquity: startingEquity,
		currentEquity:  startingEquity,
		peakEquity:     startingEquity,
	}
}

// Record folds a completed trade into the equity state: running total,
// streaks (mutually exclusive, the opposite streak resets), and drawdown.
func (s *State) Record(v types.Vector) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentEquity = s.currentEquity.Add(v.PnL)
	s.tradeCount++
	if s.currentEquity.GreaterThan(s.peakEquity) {
		s.peakEquity = s.currentEquity
	}

	if v.PnLPerContract.GreaterThan(decimal.Zero) {
		s.winStreak++
		s.lossStreak = 0
	} else if v.PnLPerContract.LessThan(decimal.Zero) {
		s.lossStreak++
		s.winStreak = 0
	}

	drawdown := decimal.Zero
	if s.peakEquity.GreaterThan(decimal.Zero) {
		drawdown = s.peakEquity.Sub(s.currentEquity).Div(s.peakEquity)
	}
	if drawdown.GreaterThan(s.maxDrawdown) {
		s.maxDrawdown = drawdown
	}

	rec := Record{
		Timestamp:      v.Timestamp,
		InstrumentBase: v.InstrumentBase,
		Direction:      v.Direction,
		PnLPerContract: v.PnLPerContract,
		RunningTotal:   s.currentEquity,
		MaxProfit:      v.MaxProfit,
		MaxLoss:        v.MaxLoss,
		Efficiency:     efficiencyOf(v),
	}
	s.records = append(s.records, rec)
	if len(s.records) > ringCapacity {
		s.records = s.records[len(s.records)-ringCapacity:]
	}
}

func efficiencyOf(v types.Vector) float64 {
	maxProfit := v.MaxProfit.InexactFloat64()
	pnl := v.PnLPerContract.InexactFloat64()
	if maxProfit <= 0 {
		if pnl >= 0 {
			return 1
		}
		return 0
	}
	return utils.Clamp(pnl/maxProfit, 0, 1)
}

// Snapshot returns a read-only copy of the current equity summary.
func (s *State) Snapshot() types.EquitySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentDrawdown := decimal.Zero
	if s.peakEquity.GreaterThan(decimal.Zero) {
		currentDrawdown = s.peakEquity.Sub(s.currentEquity).Div(s.peakEquity)
	}

	return types.EquitySnapshot{
		CurrentEquity:     s.currentEquity,
		StartingEquity:     s.startingEquity,
		PeakEquity:        s.peakEquity,
		Drawdown:          currentDrawdown,
		ConsecutiveWins:   s.winStreak,
		ConsecutiveLosses: s.lossStreak,
		TradeCount:        s.tradeCount,
		UpdatedAt:         time.Now().UTC(),
	}
}

// RecentEfficiency returns the efficiency values from the last n records
// (fewer if the buffer holds less).
func (s *State) RecentEfficiency(n int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.records) - n
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, len(s.records)-start)
	for _, r := range s.records[start:] {
		out = append(out, r.Efficiency)
	}
	return out
}

// RecordsSince returns records for instrumentBase with timestamp >= since,
// used by the directional-bias window (last 7 days).
func (s *State) RecordsSince(instrumentBase string, since time.Time) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0)
	for _, r := range s.records {
		if r.InstrumentBase == instrumentBase && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out
}

// WinStreak returns the current consecutive win count.
func (s *State) WinStreak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winStreak
}

// LossStreak returns the current consecutive loss count.
func (s *State) LossStreak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lossStreak
}

// DrawdownPercent returns the current drawdown as a percentage (0-100) of
// peak equity, the unit the fluid risk model's equity score operates on.
func (s *State) DrawdownPercent() float64 {
	snap := s.Snapshot()
	return snap.Drawdown.InexactFloat64() * 100
}
