// Package decision orchestrates the decision pipeline: cache lookup,
// pattern-memory query, graduated-table scoring, the fluid risk model,
// the recent-trade adjuster, and the RecPullback calculator, composed into
// a single Strategy::decide(request, memory, state) -> Decision contract.
package decision

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/risk-engine/internal/adjuster"
	"github.com/atlas-desktop/risk-engine/internal/cache"
	"github.com/atlas-desktop/risk-engine/internal/confidence"
	"github.com/atlas-desktop/risk-engine/internal/equity"
	"github.com/atlas-desktop/risk-engine/internal/features"
	"github.com/atlas-desktop/risk-engine/internal/memory"
	"github.com/atlas-desktop/risk-engine/internal/pullback"
	"github.com/atlas-desktop/risk-engine/internal/ranges"
	"github.com/atlas-desktop/risk-engine/internal/riskerrors"
	"github.com/atlas-desktop/risk-engine/internal/riskmodel"
	"github.com/atlas-desktop/risk-engine/internal/telemetry"
	"github.com/atlas-desktop/risk-engine/internal/vector"
	"github.com/atlas-desktop/risk-engine/pkg/types"
)

// neutral fallback constants shared by the rule-based and failsafe paths.
var (
	neutralConfidence = 0.65
	neutralSL         = decimal.NewFromInt(25)
	neutralTP         = decimal.NewFromInt(50)

	defaultApprovalConfidence = 0.6
	defaultApprovalSL         = decimal.NewFromInt(20)
	defaultApprovalTP         = decimal.NewFromInt(40)
)

// FaultReporter receives a component-fault notice; the production wiring is
// telemetry.ChannelSink.EmitFault.
type FaultReporter interface {
	EmitFault(component string, err error)
}

// RiskAlertReporter receives a failsafe/bias-rejection activation notice;
// the production wiring is telemetry.ChannelSink.EmitRiskAlert.
type RiskAlertReporter interface {
	EmitRiskAlert(reason, key string)
}

type recordedDecision struct {
	confidence float64
	approved   bool
}

// Engine owns every piece of shared mutable state the decision pipeline
// touches: pattern memory, graduated tables, equity state, the response
// cache, and the pending-decision ledger used for calibration. Construct
// with New; the zero value is not usable.
type Engine struct {
	Memory   *memory.Memory
	Tables   *ranges.Tables
	Equity   *equity.State
	Cache    *cache.Cache
	Features features.Provider
	Sink     telemetry.Sink

	Weights         riskmodel.Weights
	AdjusterMode    adjuster.LookbackMode
	BiasRNG         *rand.Rand
	ForceStoreAll   bool

	logger *zap.Logger

	mu          sync.Mutex
	decisionLog map[string]recordedDecision
}

// New wires an Engine from already-constructed components.
func New(mem *memory.Memory, tables *ranges.Tables, eq *equity.State, c *cache.Cache, fp features.Provider, sink telemetry.Sink, weights riskmodel.Weights, adjusterMode adjuster.LookbackMode, biasRNG *rand.Rand, forceStoreAll bool, logger *zap.Logger) *Engine {
	return &Engine{
		Memory:        mem,
		Tables:        tables,
		Equity:        eq,
		Cache:         c,
		Features:      fp,
		Sink:          sink,
		Weights:       weights,
		AdjusterMode:  adjusterMode,
		BiasRNG:       biasRNG,
		ForceStoreAll: forceStoreAll,
		logger:        logger,
		decisionLog:   make(map[string]recordedDecision),
	}
}

// LookupDecision implements intake.DecisionLookup, letting outcome intake
// find the prior prediction for a completed trade's entry signal.
func (e *Engine) LookupDecision(entrySignalID string) (float64, bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.decisionLog[entrySignalID]
	if !ok {
		return 0, false, false
	}
	return rec.confidence, rec.approved, true
}

func (e *Engine) record(entrySignalID string, confidence float64, approved bool) {
	if entrySignalID == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.decisionLog[entrySignalID] = recordedDecision{confidence: confidence, approved: approved}
}

// Decide runs the full pipeline for req. It never panics and never returns
// an error except for FieldMissing/BarTimestampRequired — every other fault
// degrades to a failsafe, default-approval, or rule-based response, per the
// failure semantics table.
func (e *Engine) Decide(ctx context.Context, req types.EvaluationRequest) (decision types.Decision, err error) {
	started := time.Now()

	if req.Timestamp == nil {
		return types.Decision{}, riskerrors.BarTimestampRequired
	}
	if req.Instrument == "" {
		return types.Decision{}, riskerrors.FieldMissing("instrument")
	}
	if req.Direction == "" {
		return types.Decision{}, riskerrors.FieldMissing("direction")
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	if req.TimeframeMinutes <= 0 {
		req.TimeframeMinutes = 1
	}

	key := vector.Key(req.Instrument, req.Direction)

	defer func() {
		if r := recover(); r != nil {
			fault := fmt.Errorf("panic: %v", r)
			if e.logger != nil {
				e.logger.Error("decision pipeline fault", zap.Error(fault), zap.String("entrySignalId", req.EntrySignalID))
			}
			if fr, ok := e.Sink.(FaultReporter); ok {
				fr.EmitFault("decision.Decide", fault)
			}
			if ra, ok := e.Sink.(RiskAlertReporter); ok {
				ra.EmitRiskAlert("failsafe activation", key.String())
			}
			decision = e.neutralDecision(req, types.MethodFailsafe, started, []string{"internal computation fault recovered"})
			err = nil
		}
	}()

	fingerprint := cache.Fingerprint(req, key)
	if !req.Diagnostic && e.Cache != nil {
		if cached, ok := e.Cache.Get(fingerprint); ok {
			cached.Method = types.MethodCached
			cached.DurationMs = msSince(started)
			return cached, nil
		}
	}

	queryFeatures := req.Features
	if len(queryFeatures) == 0 && e.Features != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, features.DefaultTimeout)
		fetched, ferr := e.Features.Fetch(fetchCtx, req.Instrument)
		cancel()
		if ferr != nil {
			return e.neutralDecision(req, types.MethodDefaultApproval, started, []string{"feature provider unavailable"}), nil
		}
		queryFeatures = fetched
	}
	queryFeatures = vector.SanitizeFeatures(queryFeatures)

	allVectors := e.Memory.VectorsFor(key)
	var profitable, unprofitable []types.Vector
	for _, v := range allVectors {
		if v.Profitable {
			profitable = append(profitable, v)
		} else {
			unprofitable = append(unprofitable, v)
		}
	}

	table, tableErr := e.Tables.Get(key)
	if tableErr != nil {
		decision = e.neutralDecision(req, types.MethodRuleBased, started, []string{"insufficient data for graduated ranges"})
		e.finalize(req, key, fingerprint, decision)
		return decision, nil
	}

	confResult := confidence.Score(queryFeatures, table)

	equityScore := riskmodel.EquityScore(riskmodel.EquityInputs{
		WinStreak:        e.Equity.WinStreak(),
		LossStreak:       e.Equity.LossStreak(),
		DrawdownPercent:  e.Equity.DrawdownPercent(),
		RecentEfficiency: e.Equity.RecentEfficiency(5),
	})
	regimeScore := riskmodel.RegimeScore(queryFeatures, profitable)
	lossAvoidScore := riskmodel.LossAvoidanceScore(queryFeatures, unprofitable)
	profitSimScore := riskmodel.ProfitSimilarityScore(queryFeatures, profitable)

	confidenceValue, approved := riskmodel.Combine(e.Weights, riskmodel.ComponentScores{
		Equity:    equityScore,
		Regime:    regimeScore,
		LossAvoid: lossAvoidScore,
		ProfitSim: profitSimScore,
	})
	sl, tp := riskmodel.SLTP(confidenceValue, equityScore)

	since := req.Timestamp.Time.Add(-7 * 24 * time.Hour)
	records := e.Equity.RecordsSince(key.InstrumentBase, since)
	if rejected, _ := riskmodel.BiasCheck(records, req.Direction, e.BiasRNG); rejected {
		decision = types.Decision{
			EntrySignalID: req.EntrySignalID,
			Approved:      false,
			Confidence:    riskmodel.BiasRejectConfidence,
			SuggestedSL:   riskmodel.BiasRejectSL,
			SuggestedTP:   riskmodel.BiasRejectTP,
			Method:        types.MethodFluidRiskModel,
			Reasons:       []string{riskmodel.BiasRejectReason},
			DurationMs:    msSince(started),
			EvaluatedAt:   time.Now().UTC(),
		}
		e.record(req.EntrySignalID, decision.Confidence, decision.Approved)
		if e.Sink != nil {
			e.Sink.Publish(telemetry.NewDecisionEvent(decision))
			if ra, ok := e.Sink.(RiskAlertReporter); ok {
				ra.EmitRiskAlert(riskmodel.BiasRejectReason, key.String())
			}
		}
		// Bias rejection is non-deterministic: never cached.
		return decision, nil
	}

	recentWindow := e.Memory.RecentFor(key)
	advisory := adjuster.Evaluate(recentWindow, e.AdjusterMode, req.Timestamp.Time)
	confidenceValue, sl, tp = adjuster.Apply(advisory, confidenceValue, sl, tp)
	approved = confidenceValue >= 0.50

	pullbackDetails := pullback.Calculate(profitable, tp)

	reasons := []string{confResult.Reason}
	if advisory.Recommendation != adjuster.RecommendationNone {
		reasons = append(reasons, string(advisory.Recommendation))
	}

	decision = types.Decision{
		EntrySignalID: req.EntrySignalID,
		Approved:      approved,
		Confidence:    confidenceValue,
		SuggestedSL:   sl,
		SuggestedTP:   tp,
		Method:        types.MethodFluidRiskModel,
		Reasons:       reasons,
		DurationMs:    msSince(started),
		PullbackDetail: pullbackDetails,
		RecentTrades: types.RecentTradesSummary{
			ConsecutiveLosses: advisory.ConsecutiveLosses,
			RecentWinRate:     advisory.RecentWinRate,
			TotalRecentTrades: advisory.TotalRecentTrades,
		},
		FeatureScores: featureScoresOf(confResult, queryFeatures),
		EvaluatedAt:   time.Now().UTC(),
	}

	e.finalize(req, key, fingerprint, decision)
	return decision, nil
}

// finalize records the decision for calibration lookup, caches it when
// eligible, and publishes a telemetry event.
func (e *Engine) finalize(req types.EvaluationRequest, key types.Key, fingerprint string, decision types.Decision) {
	e.record(req.EntrySignalID, decision.Confidence, decision.Approved)
	if !req.Diagnostic && e.Cache != nil {
		e.Cache.Put(fingerprint, key, decision)
	}
	if e.Sink != nil {
		e.Sink.Publish(telemetry.NewDecisionEvent(decision))
	}
}

// neutralDecision builds the fixed-value response shared by the rule-based,
// default-approval, and failsafe fallback paths, differing only in method
// and reasons.
func (e *Engine) neutralDecision(req types.EvaluationRequest, method types.Method, started time.Time, reasons []string) types.Decision {
	confidenceValue, sl, tp := neutralConfidence, neutralSL, neutralTP
	if method == types.MethodDefaultApproval {
		confidenceValue, sl, tp = defaultApprovalConfidence, defaultApprovalSL, defaultApprovalTP
	}
	return types.Decision{
		EntrySignalID: req.EntrySignalID,
		Approved:      true,
		Confidence:    confidenceValue,
		SuggestedSL:   sl,
		SuggestedTP:   tp,
		Method:        method,
		Reasons:       reasons,
		DurationMs:    msSince(started),
		PullbackDetail: pullback.Calculate(nil, tp),
		EvaluatedAt:   time.Now().UTC(),
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func featureScoresOf(r confidence.Result, queried map[string]float64) []types.FeatureScore {
	if len(r.PerFeature) == 0 {
		return nil
	}
	out := make([]types.FeatureScore, 0, len(r.PerFeature))
	for name, fr := range r.PerFeature {
		out = append(out, types.FeatureScore{Feature: name, Value: queried[name], Zone: fr.Zone, Score: fr.Confidence})
	}
	return out
}
