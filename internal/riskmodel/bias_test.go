package riskmodel

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/risk-engine/internal/equity"
	"github.com/atlas-desktop/risk-engine/pkg/types"
)

func record(direction types.Direction, pnl int64) equity.Record {
	return equity.Record{
		Timestamp:      time.Now(),
		InstrumentBase: "ES",
		Direction:      direction,
		PnLPerContract: decimal.NewFromInt(pnl),
	}
}

func TestBiasCheckNoRejectionWithoutImbalance(t *testing.T) {
	records := []equity.Record{
		record(types.DirectionLong, 10),
		record(types.DirectionShort, 10),
	}
	rejected, p := BiasCheck(records, types.DirectionLong, rand.New(rand.NewSource(1)))
	if rejected {
		t.Error("expected no rejection when sides are balanced")
	}
	if p != 0 {
		t.Errorf("probability = %v, want 0", p)
	}
}

func TestBiasCheckRejectionRateNearTargetProbability(t *testing.T) {
	// A strongly imbalanced opposite side produces a fixed rejection
	// probability; confirm the empirical rate over many draws converges to
	// it within a loose tolerance.
	records := make([]equity.Record, 0, 20)
	for i := 0; i < 10; i++ {
		records = append(records, record(types.DirectionShort, 50))
	}
	records = append(records, record(types.DirectionLong, 1))

	_, p := BiasCheck(records, types.DirectionLong, rand.New(rand.NewSource(1)))
	if p <= 0 {
		t.Fatal("expected a positive rejection probability for this imbalance")
	}

	const trials = 20000
	rng := rand.New(rand.NewSource(42))
	rejections := 0
	for i := 0; i < trials; i++ {
		rejected, _ := BiasCheck(records, types.DirectionLong, rng)
		if rejected {
			rejections++
		}
	}
	observed := float64(rejections) / float64(trials)
	if diff := observed - p; diff < -0.03 || diff > 0.03 {
		t.Errorf("observed rejection rate %v too far from target probability %v", observed, p)
	}
}

func TestBiasCheckNilRNGIsDeterministic(t *testing.T) {
	records := []equity.Record{
		record(types.DirectionShort, 50),
		record(types.DirectionShort, 50),
	}
	a, pa := BiasCheck(records, types.DirectionLong, nil)
	b, pb := BiasCheck(records, types.DirectionLong, nil)
	if a != b || pa != pb {
		t.Error("expected a nil RNG to fall back to a fixed seed, yielding identical results")
	}
}
