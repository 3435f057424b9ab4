// Package utils provides shared helpers for the risk engine.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GenerateID generates a unique ID with optional prefix.
func GenerateID(prefix string) string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	id := hex.EncodeToString(bytes)
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// GenerateVectorID generates a unique pattern-memory vector ID.
func GenerateVectorID() string {
	return GenerateID("vec")
}

// GenerateRequestID generates a unique evaluation request ID.
func GenerateRequestID() string {
	return GenerateID("req")
}

// NormalizeInstrumentBase reduces a raw instrument identifier to its base
// symbol: the first whitespace-separated token, upper-cased. "ES 12-25"
// and "es" both normalize to "ES".
func NormalizeInstrumentBase(instrument string) string {
	trimmed := strings.TrimSpace(instrument)
	if trimmed == "" {
		return ""
	}
	fields := strings.Fields(trimmed)
	return strings.ToUpper(fields[0])
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation of values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}

// QuantileFloorIndex returns values[floor(p*n)] after sorting ascending,
// clamped to [0, n-1]. This is the graduated range table's quantile rule:
// a nearest-rank pick, not interpolation.
func QuantileFloorIndex(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(math.Floor(p * float64(len(sorted))))
	if idx < 0 {
		idx = 0
	}
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Sigmoid is the standard logistic function, used by the fluid risk model to
// squash unbounded scores into a (0,1) probability.
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// GaussianMembership scores how close value is to mean relative to std,
// returning 1 at the mean and decaying toward 0 as value moves away. A
// non-positive std is treated as an exact match test.
func GaussianMembership(value, mean, std float64) float64 {
	if std <= 0 {
		if value == mean {
			return 1
		}
		return 0
	}
	z := (value - mean) / std
	return math.Exp(-0.5 * z * z)
}

// EuclideanDistance returns the Euclidean distance between two equal-length
// feature vectors. Mismatched lengths compare only the overlapping prefix.
func EuclideanDistance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Clamp restricts value to [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampDecimal restricts a decimal value to [min, max].
func ClampDecimal(value, min, max decimal.Decimal) decimal.Decimal {
	if value.LessThan(min) {
		return min
	}
	if value.GreaterThan(max) {
		return max
	}
	return value
}

// MinDecimal returns the minimum of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the maximum of two decimals.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// RetryConfig controls exponential backoff for outbound calls such as the
// feature-provider client.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns a conservative backoff suited to a 3s deadline.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}
}

// Retry retries fn with exponential backoff until it succeeds or attempts
// are exhausted. It takes no context; the backoff sleeps are not cancellable.
func Retry[T any](config RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	var err error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if attempt == config.MaxAttempts {
			break
		}
		time.Sleep(delay)
		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return result, fmt.Errorf("after %d attempts: %w", config.MaxAttempts, err)
}
