package utils

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeInstrumentBase(t *testing.T) {
	cases := map[string]string{
		"ES 12-25": "ES",
		"es":       "ES",
		"  nq  ":   "NQ",
		"":         "",
	}
	for in, want := range cases {
		if got := NormalizeInstrumentBase(in); got != want {
			t.Errorf("NormalizeInstrumentBase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 1); got != 1 {
		t.Errorf("Clamp(5,0,1) = %v, want 1", got)
	}
	if got := Clamp(-5, 0, 1); got != 0 {
		t.Errorf("Clamp(-5,0,1) = %v, want 0", got)
	}
	if got := Clamp(0.5, 0, 1); got != 0.5 {
		t.Errorf("Clamp(0.5,0,1) = %v, want 0.5", got)
	}
}

func TestQuantileFloorIndex(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if got := QuantileFloorIndex(values, 0); got != 10 {
		t.Errorf("p0 = %v, want 10", got)
	}
	if got := QuantileFloorIndex(values, 0.5); got != 60 {
		t.Errorf("p50 = %v, want 60", got)
	}
	if got := QuantileFloorIndex(nil, 0.5); got != 0 {
		t.Errorf("empty input = %v, want 0", got)
	}
}

func TestStdDevSingleSample(t *testing.T) {
	if got := StdDev([]float64{5}); got != 0 {
		t.Errorf("StdDev single sample = %v, want 0", got)
	}
}

func TestGaussianMembership(t *testing.T) {
	if got := GaussianMembership(10, 10, 2); got != 1 {
		t.Errorf("membership at mean = %v, want 1", got)
	}
	if got := GaussianMembership(10, 10, 0); got != 1 {
		t.Errorf("zero std exact match = %v, want 1", got)
	}
	if got := GaussianMembership(11, 10, 0); got != 0 {
		t.Errorf("zero std mismatch = %v, want 0", got)
	}
	far := GaussianMembership(100, 10, 2)
	if far >= 0.01 {
		t.Errorf("far value membership = %v, want near 0", far)
	}
}

func TestSigmoidBounds(t *testing.T) {
	if got := Sigmoid(0); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Sigmoid(0) = %v, want 0.5", got)
	}
	if got := Sigmoid(100); got <= 0.999 {
		t.Errorf("Sigmoid(100) = %v, want close to 1", got)
	}
}

func TestClampDecimal(t *testing.T) {
	lo, hi := decimal.NewFromInt(0), decimal.NewFromInt(10)
	if got := ClampDecimal(decimal.NewFromInt(20), lo, hi); !got.Equal(hi) {
		t.Errorf("ClampDecimal above range = %v, want %v", got, hi)
	}
	if got := ClampDecimal(decimal.NewFromInt(-5), lo, hi); !got.Equal(lo) {
		t.Errorf("ClampDecimal below range = %v, want %v", got, lo)
	}
}

func TestGenerateIDUnique(t *testing.T) {
	a := GenerateID("evt")
	b := GenerateID("evt")
	if a == b {
		t.Error("expected distinct generated IDs")
	}
}
