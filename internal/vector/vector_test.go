package vector

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/risk-engine/pkg/types"
)

func TestKeyNormalizesInstrument(t *testing.T) {
	k := Key("ES 12-25", types.DirectionLong)
	if k.InstrumentBase != "ES" {
		t.Errorf("InstrumentBase = %q, want ES", k.InstrumentBase)
	}
	if k.Direction != types.DirectionLong {
		t.Errorf("Direction = %q, want long", k.Direction)
	}
}

func TestSanitizeFeaturesDropsNonFinite(t *testing.T) {
	in := map[string]float64{
		"ok":  1.5,
		"nan": math.NaN(),
		"inf": math.Inf(1),
	}
	out := SanitizeFeatures(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 surviving feature, got %d: %v", len(out), out)
	}
	if _, ok := out["ok"]; !ok {
		t.Error("expected finite feature to survive sanitization")
	}
}

func TestDataTypeForCutoff(t *testing.T) {
	historical := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := DataTypeFor(historical); got != types.DataTypeTraining {
		t.Errorf("DataTypeFor(2023) = %v, want TRAINING", got)
	}
	recent := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := DataTypeFor(recent); got != types.DataTypeRecent {
		t.Errorf("DataTypeFor(2026) = %v, want RECENT", got)
	}
}

func TestBuildFloorsQuantityAtOne(t *testing.T) {
	v := Build(BuildParams{
		EntrySignalID: "sig-1",
		Instrument:    "ES",
		Direction:     types.DirectionLong,
		Timestamp:     time.Now(),
		PnL:           decimal.NewFromInt(100),
		Quantity:      0,
		ExitReason:    types.ExitReasonTakeProfit,
	})
	if v.Quantity != 1 {
		t.Errorf("Quantity = %d, want floored to 1", v.Quantity)
	}
	if !v.PnLPerContract.Equal(decimal.NewFromInt(100)) {
		t.Errorf("PnLPerContract = %v, want 100", v.PnLPerContract)
	}
	if !v.Profitable {
		t.Error("expected Profitable true for positive pnlPerContract")
	}
}

func TestClassifyImportanceNoiseFloor(t *testing.T) {
	v := types.Vector{
		PnL:       decimal.NewFromInt(5),
		MaxProfit: decimal.NewFromInt(10),
		MaxLoss:   decimal.NewFromInt(5),
	}
	if score := ClassifyImportance(v); score != 0 {
		t.Errorf("ClassifyImportance on tiny trade = %v, want 0", score)
	}
	if !IsNoise(v) {
		t.Error("expected tiny trade to be classified as noise")
	}
}

func TestClassifyImportanceElevatesSmallLossCluster(t *testing.T) {
	loss := types.Vector{PnL: decimal.NewFromInt(-25), MaxProfit: decimal.NewFromInt(5), MaxLoss: decimal.NewFromInt(25)}
	win := types.Vector{PnL: decimal.NewFromInt(25), MaxProfit: decimal.NewFromInt(25), MaxLoss: decimal.NewFromInt(5)}

	lossScore := ClassifyImportance(loss)
	winScore := ClassifyImportance(win)
	if lossScore <= winScore {
		t.Errorf("expected small-loss cluster score (%v) to exceed same-magnitude win score (%v)", lossScore, winScore)
	}
}
