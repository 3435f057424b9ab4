// Package telemetry implements the decision-telemetry sink (C13): a bounded,
// drop-oldest queue publishing decision, calibration, and component-fault
// records to an external collaborator.
package telemetry

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/risk-engine/internal/workers"
	"github.com/atlas-desktop/risk-engine/pkg/types"
	"github.com/atlas-desktop/risk-engine/pkg/utils"
)

// EventType discriminates telemetry event kinds.
type EventType string

const (
	EventTypeDecision    EventType = "decision"
	EventTypeCalibration EventType = "calibration"
	EventTypeRiskAlert   EventType = "risk_alert"
	EventTypeFault       EventType = "component_fault"
)

// Event is the common contract every telemetry record satisfies.
type Event interface {
	GetID() string
	GetType() EventType
	GetTimestamp() time.Time
}

// BaseEvent carries the fields every concrete event embeds.
type BaseEvent struct {
	ID        string
	Type      EventType
	Timestamp time.Time
}

func (b BaseEvent) GetID() string          { return b.ID }
func (b BaseEvent) GetType() EventType     { return b.Type }
func (b BaseEvent) GetTimestamp() time.Time { return b.Timestamp }

func newBaseEvent(t EventType) BaseEvent {
	return BaseEvent{ID: utils.GenerateID("evt"), Type: t, Timestamp: time.Now().UTC()}
}

// DecisionEvent records a completed decision for live broadcast.
type DecisionEvent struct {
	BaseEvent
	Decision types.Decision
}

// NewDecisionEvent constructs a DecisionEvent.
func NewDecisionEvent(d types.Decision) DecisionEvent {
	return DecisionEvent{BaseEvent: newBaseEvent(EventTypeDecision), Decision: d}
}

// CalibrationEvent records a predicted-vs-actual bucket for a completed
// trade whose entry signal had a prior decision (spec §4.8 step 5).
type CalibrationEvent struct {
	BaseEvent
	EntrySignalID        string
	PredictedConfidence  float64
	PredictedApproved    bool
	ActualProfitable     bool
	ActualPnLPerContract decimal.Decimal
}

// RiskAlertEvent marks a failsafe or bias-rejection activation worth
// surfacing to operators, the engine's analog of a kill-switch trip.
type RiskAlertEvent struct {
	BaseEvent
	Reason string
	Key    string
}

// FaultEvent records an InternalComputation fault recovered via the
// failsafe response.
type FaultEvent struct {
	BaseEvent
	Component string
	Err       string
}

// Sink is the telemetry publishing contract; tests substitute an in-memory
// implementation.
type Sink interface {
	Publish(e Event)
	Close()
}

// ChannelSink is the production Sink: a bounded channel dispatched onto a
// worker pool, dropping the oldest queued event on overflow so a slow or
// unreachable collaborator never blocks the decision path. Each forwarder
// invocation runs as a pool task, so a forwarder that panics or hangs never
// takes the dispatcher goroutine down with it.
type ChannelSink struct {
	events chan Event
	logger *zap.Logger
	pool   *workers.Pool
	wg     sync.WaitGroup

	mu         sync.Mutex
	forwarders []func(Event)
}

// NewChannelSink starts a ChannelSink with bufferSize capacity, dispatching
// onto a pool of numWorkers task goroutines.
func NewChannelSink(bufferSize, numWorkers int, logger *zap.Logger) *ChannelSink {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	poolConfig := workers.DefaultPoolConfig("telemetry")
	poolConfig.NumWorkers = numWorkers
	poolConfig.QueueSize = bufferSize

	pool := workers.NewPool(logger, poolConfig)
	pool.Start()

	s := &ChannelSink{
		events: make(chan Event, bufferSize),
		logger: logger,
		pool:   pool,
	}
	s.wg.Add(1)
	go s.dispatch()
	return s
}

// AddForwarder registers a callback invoked for every drained event, e.g. a
// WebSocket hub broadcasting decision/risk_alert/calibration events.
func (s *ChannelSink) AddForwarder(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forwarders = append(s.forwarders, fn)
}

func (s *ChannelSink) dispatch() {
	defer s.wg.Done()
	for e := range s.events {
		event := e
		if err := s.pool.SubmitFunc(func() error {
			s.handle(event)
			return nil
		}); err != nil && s.logger != nil {
			s.logger.Warn("telemetry dispatch dropped event", zap.Error(err))
		}
	}
}

func (s *ChannelSink) handle(e Event) {
	if s.logger != nil {
		s.logger.Debug("telemetry event", zap.String("type", string(e.GetType())), zap.String("id", e.GetID()))
	}
	s.mu.Lock()
	forwarders := append([]func(Event){}, s.forwarders...)
	s.mu.Unlock()
	for _, fn := range forwarders {
		fn(e)
	}
}

// Publish enqueues e, dropping the oldest queued event if the buffer is
// full rather than blocking the caller.
func (s *ChannelSink) Publish(e Event) {
	select {
	case s.events <- e:
		return
	default:
	}
	select {
	case <-s.events:
	default:
	}
	select {
	case s.events <- e:
	default:
	}
}

// Close stops the dispatcher after it has submitted every queued event to
// the worker pool, then stops the pool; tasks still queued in the pool when
// it stops may be dropped without running.
func (s *ChannelSink) Close() {
	close(s.events)
	s.wg.Wait()
	s.pool.Stop()
}

// EmitCalibration implements intake.CalibrationEmitter.
func (s *ChannelSink) EmitCalibration(entrySignalID string, predictedConfidence float64, predictedApproved bool, actual types.Vector) {
	s.Publish(CalibrationEvent{
		BaseEvent:            newBaseEvent(EventTypeCalibration),
		EntrySignalID:        entrySignalID,
		PredictedConfidence:  predictedConfidence,
		PredictedApproved:    predictedApproved,
		ActualProfitable:     actual.Profitable,
		ActualPnLPerContract: actual.PnLPerContract,
	})
}

// EmitFault publishes a component fault notice.
func (s *ChannelSink) EmitFault(component string, err error) {
	s.Publish(FaultEvent{
		BaseEvent: newBaseEvent(EventTypeFault),
		Component: component,
		Err:       err.Error(),
	})
}

// EmitRiskAlert publishes a failsafe/bias-rejection notice.
func (s *ChannelSink) EmitRiskAlert(reason, key string) {
	s.Publish(RiskAlertEvent{
		BaseEvent: newBaseEvent(EventTypeRiskAlert),
		Reason:    reason,
		Key:       key,
	})
}

// InMemorySink is a test double recording every published event.
type InMemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewInMemorySink returns an empty InMemorySink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

func (s *InMemorySink) Publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *InMemorySink) Close() {}

// Events returns a copy of every event recorded so far.
func (s *InMemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// EmitCalibration implements intake.CalibrationEmitter for tests.
func (s *InMemorySink) EmitCalibration(entrySignalID string, predictedConfidence float64, predictedApproved bool, actual types.Vector) {
	s.Publish(CalibrationEvent{
		BaseEvent:            newBaseEvent(EventTypeCalibration),
		EntrySignalID:        entrySignalID,
		PredictedConfidence:  predictedConfidence,
		PredictedApproved:    predictedApproved,
		ActualProfitable:     actual.Profitable,
		ActualPnLPerContract: actual.PnLPerContract,
	})
}

// EmitRiskAlert implements decision.RiskAlertReporter for tests.
func (s *InMemorySink) EmitRiskAlert(reason, key string) {
	s.Publish(RiskAlertEvent{
		BaseEvent: newBaseEvent(EventTypeRiskAlert),
		Reason:    reason,
		Key:       key,
	})
}
