// Package types provides shared type definitions for the risk engine.
package types

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Direction represents the side of a proposed entry.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// DataType partitions a Vector's origin within pattern memory.
type DataType string

const (
	DataTypeTraining    DataType = "TRAINING"
	DataTypeRecent      DataType = "RECENT"
	DataTypeOutOfSample DataType = "OUT_OF_SAMPLE"
)

// ExitReason enumerates how a trade was closed.
type ExitReason string

const (
	ExitReasonTakeProfit ExitReason = "take_profit"
	ExitReasonStopLoss   ExitReason = "stop_loss"
	ExitReasonManual     ExitReason = "manual"
	ExitReasonTime       ExitReason = "time"
	ExitReasonTrailing   ExitReason = "trailing"
	ExitReasonUnknown    ExitReason = "unknown"
)

// Method identifies which code path produced a decision, surfaced to callers
// so they can distinguish a fully scored decision from a degraded fallback.
type Method string

const (
	MethodFluidRiskModel  Method = "fluid_risk_model"
	MethodRuleBased       Method = "rule_based"
	MethodDefaultApproval Method = "default_approval"
	MethodFailsafe        Method = "failsafe"
	MethodCached          Method = "cached"
)

// Zone classifies where a feature value falls within its graduated range.
type Zone string

const (
	ZoneOptimal Zone = "optimal"
	ZoneGood    Zone = "good"
	ZonePoor    Zone = "poor"
	ZoneUnknown Zone = "unknown"
)

// Key partitions pattern memory and range tables by instrument base and
// direction, e.g. ("ES", DirectionLong).
type Key struct {
	InstrumentBase string    `json:"instrumentBase"`
	Direction      Direction `json:"direction"`
}

func (k Key) String() string {
	return k.InstrumentBase + ":" + string(k.Direction)
}

// Vector is an immutable record of one historical trade outcome, the unit
// pattern memory and the graduated range tables are built from.
type Vector struct {
	EntrySignalID  string             `json:"entrySignalId"`
	Instrument     string             `json:"instrument"`
	InstrumentBase string             `json:"instrumentBase"`
	Direction      Direction          `json:"direction"`
	EntryType      string             `json:"entryType"`
	DataType       DataType           `json:"dataType"`
	Features       map[string]float64 `json:"features"`
	Importance     float64            `json:"importance"`
	Timestamp      time.Time          `json:"timestamp"`
	PnL            decimal.Decimal    `json:"pnl"`
	Quantity       int                `json:"quantity"`
	PnLPerContract decimal.Decimal    `json:"pnlPerContract"`
	Profitable     bool               `json:"profitable"`
	ExitReason     ExitReason         `json:"exitReason"`
	MaxProfit      decimal.Decimal    `json:"maxProfit"`
	MaxLoss        decimal.Decimal    `json:"maxLoss"`
	HoldingBars    int                `json:"holdingBars"`
	WasGoodExit    bool               `json:"wasGoodExit"`
	ProfitByBar    map[int]float64    `json:"profitByBar,omitempty"`
}

// FeatureRange is one graduated quantile band for a single feature, built
// from the profitable subset of a pattern's vectors.
type FeatureRange struct {
	Feature string  `json:"feature"`
	Q10     float64 `json:"q10"`
	Q25     float64 `json:"q25"`
	Q50     float64 `json:"q50"`
	Q75     float64 `json:"q75"`
	Q90     float64 `json:"q90"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stdDev"`
	Samples int     `json:"samples"`
}

// RangeTable is the set of graduated feature ranges for one pattern key,
// along with the bookkeeping needed to decide when it must be rebuilt.
type RangeTable struct {
	Key          Key                     `json:"key"`
	Ranges       map[string]FeatureRange `json:"ranges"`
	VectorCount  int                     `json:"vectorCount"`
	BuiltVersion int                     `json:"builtVersion"`
	BuiltAt      int64                   `json:"builtAt"`
}

// FeatureScore is the per-feature confidence contribution computed by the
// range confidence engine.
type FeatureScore struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
	Zone    Zone    `json:"zone"`
	Score   float64 `json:"score"`
}

// EvaluationRequest is the inbound pre-trade risk evaluation payload
// (spec's `approve_signal` / `evaluate_risk`).
type EvaluationRequest struct {
	EntrySignalID    string             `json:"entry_signal_id"`
	Instrument       string             `json:"instrument"`
	Direction        Direction          `json:"direction"`
	EntryType        string             `json:"entry_type"`
	Timestamp        *FlexTime          `json:"timestamp"`
	TimeframeMinutes int                `json:"timeframe_minutes"`
	Quantity         int                `json:"quantity"`
	MaxStopLoss      *decimal.Decimal   `json:"max_stop_loss,omitempty"`
	MaxTakeProfit    *decimal.Decimal   `json:"max_take_profit,omitempty"`
	Features         map[string]float64 `json:"features,omitempty"`
	Diagnostic       bool               `json:"diagnostic,omitempty"`
}

// RecentTradesSummary reports the recent-trade adjuster's observed window,
// surfaced alongside the decision for caller visibility.
type RecentTradesSummary struct {
	ConsecutiveLosses int     `json:"consecutive_losses"`
	RecentWinRate     float64 `json:"recent_win_rate"`
	TotalRecentTrades int     `json:"total_recent_trades"`
}

// PullbackDetails is the RecPullback calculator's output (C7).
type PullbackDetails struct {
	SoftFloor            decimal.Decimal `json:"soft_floor"`
	StepSize             decimal.Decimal `json:"step_size"`
	MaxProfitEstimate     decimal.Decimal `json:"max_profit_estimate"`
	ThresholdDropPercent float64         `json:"threshold_drop_percent"`
}

// Decision is the outcome of a pre-trade evaluation (spec's decision
// response).
type Decision struct {
	EntrySignalID  string               `json:"entry_signal_id"`
	Approved       bool                 `json:"approved"`
	Confidence     float64              `json:"confidence"`
	SuggestedSL    decimal.Decimal      `json:"suggested_sl"`
	SuggestedTP    decimal.Decimal      `json:"suggested_tp"`
	Method         Method               `json:"method"`
	Reasons        []string             `json:"reasons"`
	DurationMs     float64              `json:"duration_ms"`
	PullbackDetail PullbackDetails      `json:"pullback_details"`
	RecentTrades   RecentTradesSummary  `json:"recent_trades"`
	FeatureScores  []FeatureScore       `json:"feature_scores,omitempty"`
	EvaluatedAt    time.Time            `json:"-"`
}

// Outcome is the realized result of a trade previously evaluated, reported
// back so pattern memory and equity state can learn from it (spec's
// `record-trade-outcome` / `digest-trade`).
type Outcome struct {
	EntrySignalID  string             `json:"entry_signal_id"`
	Instrument     string             `json:"instrument"`
	Direction      Direction          `json:"direction"`
	PnL            decimal.Decimal    `json:"pnl"`
	PnLPerContract *decimal.Decimal   `json:"pnl_per_contract,omitempty"`
	Quantity       *int               `json:"quantity,omitempty"`
	ExitReason     ExitReason         `json:"exit_reason"`
	MaxProfit      decimal.Decimal    `json:"max_profit"`
	MaxLoss        decimal.Decimal    `json:"max_loss"`
	Timestamp      *FlexTime          `json:"timestamp"`
	ProfitByBar    map[int]float64    `json:"profit_by_bar,omitempty"`
	Features       map[string]float64 `json:"features,omitempty"`
	PnLProvided    bool               `json:"-"`
	EntrySignalIDProvided bool        `json:"-"`
}

// outcomeWire mirrors Outcome's JSON shape for presence detection; aliasing
// rather than embedding Outcome avoids infinite UnmarshalJSON recursion.
type outcomeWire struct {
	EntrySignalID  *string            `json:"entry_signal_id"`
	Instrument     string             `json:"instrument"`
	Direction      Direction          `json:"direction"`
	PnL            *decimal.Decimal   `json:"pnl"`
	PnLPerContract *decimal.Decimal   `json:"pnl_per_contract,omitempty"`
	Quantity       *int               `json:"quantity,omitempty"`
	ExitReason     ExitReason         `json:"exit_reason"`
	MaxProfit      decimal.Decimal    `json:"max_profit"`
	MaxLoss        decimal.Decimal    `json:"max_loss"`
	Timestamp      *FlexTime          `json:"timestamp"`
	ProfitByBar    map[int]float64    `json:"profit_by_bar,omitempty"`
	Features       map[string]float64 `json:"features,omitempty"`
}

// UnmarshalJSON decodes an Outcome, setting PnLProvided/EntrySignalIDProvided
// from field presence rather than zero-value, since a zero decimal.Decimal
// pnl is a valid (break-even) outcome and must not be mistaken for absence.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var wire outcomeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	o.Instrument = wire.Instrument
	o.Direction = wire.Direction
	o.PnLPerContract = wire.PnLPerContract
	o.Quantity = wire.Quantity
	o.ExitReason = wire.ExitReason
	o.MaxProfit = wire.MaxProfit
	o.MaxLoss = wire.MaxLoss
	o.Timestamp = wire.Timestamp
	o.ProfitByBar = wire.ProfitByBar
	o.Features = wire.Features

	if wire.EntrySignalID != nil {
		o.EntrySignalID = *wire.EntrySignalID
		o.EntrySignalIDProvided = true
	}
	if wire.PnL != nil {
		o.PnL = *wire.PnL
		o.PnLProvided = true
	}
	return nil
}

// EquitySnapshot captures the rolling account state used by the fluid risk
// model's equity component.
type EquitySnapshot struct {
	CurrentEquity     decimal.Decimal `json:"currentEquity"`
	StartingEquity    decimal.Decimal `json:"startingEquity"`
	PeakEquity        decimal.Decimal `json:"peakEquity"`
	Drawdown          decimal.Decimal `json:"drawdown"`
	ConsecutiveWins   int             `json:"consecutiveWins"`
	ConsecutiveLosses int             `json:"consecutiveLosses"`
	TradeCount        int             `json:"tradeCount"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// RiskStats is the aggregate snapshot exposed over GET /api/v1/risk/stats.
type RiskStats struct {
	Equity          EquitySnapshot `json:"equity"`
	PatternCount    int            `json:"patternCount"`
	CacheHitRate    float64        `json:"cacheHitRate"`
	DecisionsServed int64          `json:"decisionsServed"`
}
