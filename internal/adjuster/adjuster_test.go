package adjuster

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/risk-engine/pkg/types"
)

func recentVec(direction types.Direction, pnl int64, maxProfit int64, ts time.Time) types.Vector {
	return types.Vector{
		Direction:      direction,
		Timestamp:      ts,
		PnL:            decimal.NewFromInt(pnl),
		PnLPerContract: decimal.NewFromInt(pnl),
		MaxProfit:      decimal.NewFromInt(maxProfit),
	}
}

func TestEvaluateNoLossesYieldsNoRecommendation(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	recent := []types.Vector{recentVec(types.DirectionLong, 10, 20, now.Add(-time.Hour))}
	advisory := Evaluate(recent, ModeLive, now)
	if advisory.Recommendation != RecommendationNone {
		t.Errorf("Recommendation = %v, want none", advisory.Recommendation)
	}
	if advisory.ConsecutiveLosses != 0 {
		t.Errorf("ConsecutiveLosses = %d, want 0", advisory.ConsecutiveLosses)
	}
}

func TestEvaluateTighterRiskOnConsecutiveLosses(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var recent []types.Vector
	for i := 0; i < 5; i++ {
		recent = append(recent, recentVec(types.DirectionLong, -20, 30, now.Add(-time.Duration(5-i)*time.Hour)))
	}
	advisory := Evaluate(recent, ModeLive, now)
	if advisory.ConsecutiveLosses != 5 {
		t.Fatalf("ConsecutiveLosses = %d, want 5", advisory.ConsecutiveLosses)
	}
	if advisory.Recommendation != RecommendationTighterRisk {
		t.Errorf("Recommendation = %v, want tighter_risk", advisory.Recommendation)
	}
	if advisory.TighterSL == nil || advisory.TighterTP == nil {
		t.Fatal("expected tighter SL/TP to be set")
	}
}

func TestEvaluateLiveModeExcludesStaleVectors(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	stale := recentVec(types.DirectionLong, -20, 5, now.Add(-48*time.Hour))
	advisory := Evaluate([]types.Vector{stale}, ModeLive, now)
	if advisory.TotalRecentTrades != 0 {
		t.Errorf("TotalRecentTrades = %d, want 0 for a vector outside the 24h window", advisory.TotalRecentTrades)
	}
}

func TestEvaluateBacktestModeIgnoresWallClockWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	old := recentVec(types.DirectionLong, -20, 5, now.Add(-200*time.Hour))
	advisory := Evaluate([]types.Vector{old}, ModeBacktest, now)
	if advisory.TotalRecentTrades != 1 {
		t.Errorf("TotalRecentTrades = %d, want 1 in backtest mode", advisory.TotalRecentTrades)
	}
}

func TestApplyFloorsConfidenceAtPointOne(t *testing.T) {
	advisory := Advisory{ConfidencePenalty: 2.0}
	confidence, _, _ := Apply(advisory, 0.5, decimal.NewFromInt(25), decimal.NewFromInt(50))
	if confidence != 0.1 {
		t.Errorf("confidence = %v, want floored at 0.1", confidence)
	}
}

func TestApplyOverridesSLTPWhenAdvisorySets(t *testing.T) {
	tighterSL := decimal.NewFromInt(5)
	tighterTP := decimal.NewFromInt(10)
	advisory := Advisory{TighterSL: &tighterSL, TighterTP: &tighterTP}

	_, sl, tp := Apply(advisory, 0.7, decimal.NewFromInt(25), decimal.NewFromInt(50))
	if !sl.Equal(tighterSL) {
		t.Errorf("sl = %v, want %v", sl, tighterSL)
	}
	if !tp.Equal(tighterTP) {
		t.Errorf("tp = %v, want %v", tp, tighterTP)
	}
}
