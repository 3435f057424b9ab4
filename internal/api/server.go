// Package api provides the HTTP and WebSocket transport (C10): the public
// surface for submitting evaluation requests and outcome records, streaming
// live decision telemetry, and exposing operational stats and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atlas-desktop/risk-engine/internal/decision"
	"github.com/atlas-desktop/risk-engine/internal/equity"
	"github.com/atlas-desktop/risk-engine/internal/intake"
	"github.com/atlas-desktop/risk-engine/internal/memory"
	"github.com/atlas-desktop/risk-engine/internal/metrics"
	"github.com/atlas-desktop/risk-engine/internal/riskerrors"
	"github.com/atlas-desktop/risk-engine/pkg/types"
)

// Server is the risk engine's HTTP/WebSocket API surface.
type Server struct {
	logger     *zap.Logger
	config     *types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	hub        *Hub

	engine  *decision.Engine
	intake  *intake.Intake
	memory  *memory.Memory
	equity  *equity.State
	metrics *metrics.Registry

	decisionsServed int64
}

// NewServer wires a Server over already-constructed engine components.
func NewServer(logger *zap.Logger, config *types.ServerConfig, eng *decision.Engine, in *intake.Intake, mem *memory.Memory, eq *equity.State, reg *metrics.Registry) *Server {
	s := &Server{
		logger:  logger,
		config:  config,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		engine:  eng,
		intake:  in,
		memory:  mem,
		equity:  eq,
		metrics: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

// Hub exposes the WebSocket hub so callers can register it as a telemetry
// forwarder before Start.
func (s *Server) Hub() *Hub { return s.hub }

// Router exposes the underlying handler for tests driving the server with
// httptest rather than a bound listener.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/risk/evaluate", s.handleEvaluate).Methods("POST")
	s.router.HandleFunc("/api/v1/risk/outcome", s.handleOutcome).Methods("POST")
	s.router.HandleFunc("/api/v1/risk/stats", s.handleStats).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
}

// Start begins serving and blocks until the server stops or fails. Run it
// in its own goroutine alongside Hub.Run.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting risk engine API server", zap.String("addr", addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req types.EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.EntrySignalID == "" {
		req.EntrySignalID = uuid.New().String()
	}

	decisionResult, err := s.engine.Decide(r.Context(), req)
	if err != nil {
		s.writeDecisionError(w, err)
		return
	}

	atomic.AddInt64(&s.decisionsServed, 1)
	if s.metrics != nil {
		s.metrics.ObserveDecision(string(decisionResult.Method), decisionResult.Approved, decisionResult.DurationMs)
		if decisionResult.Reasons != nil {
			for _, reason := range decisionResult.Reasons {
				if reason == "directional bias rejection" {
					s.metrics.IncBiasRejection()
				}
			}
		}
	}

	s.writeJSON(w, http.StatusOK, decisionResult)
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	var outcome types.Outcome
	if err := json.NewDecoder(r.Body).Decode(&outcome); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := s.intake.Apply(outcome)
	if err != nil {
		s.writeDecisionError(w, err)
		return
	}

	disposition := "accepted"
	switch {
	case result.Dropped:
		disposition = "dropped"
	case !result.Accepted:
		disposition = "duplicate"
	}
	if s.metrics != nil {
		s.metrics.ObserveOutcome(disposition)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"accepted": result.Accepted,
		"dropped":  result.Dropped,
		"reason":   result.Reason,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	patternCount := 0
	for _, key := range s.memory.Keys() {
		size := s.memory.Size(key)
		patternCount += size
		if s.metrics != nil {
			s.metrics.SetPatternMemorySize(key.String(), size)
		}
	}

	cacheHitRate := 0.0
	if s.engine != nil && s.engine.Cache != nil {
		cacheHitRate = s.engine.Cache.HitRate()
	}
	if s.metrics != nil {
		s.metrics.SetCacheHitRatio(cacheHitRate)
	}

	stats := types.RiskStats{
		Equity:          s.equity.Snapshot(),
		PatternCount:    patternCount,
		CacheHitRate:    cacheHitRate,
		DecisionsServed: atomic.LoadInt64(&s.decisionsServed),
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), s.hub, conn)
	s.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeDecisionError maps a typed riskerrors variant to its wire status
// code, per the failure semantics table.
func (s *Server) writeDecisionError(w http.ResponseWriter, err error) {
	var fieldMissing *riskerrors.FieldMissingErr
	var barTimestamp *riskerrors.BarTimestampRequiredErr
	var outcomeMalformed *riskerrors.OutcomeMalformedErr
	var patternUnready *riskerrors.PatternMemoryUnreadyErr

	switch {
	case errors.As(err, &fieldMissing):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &barTimestamp):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &outcomeMalformed):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &patternUnready):
		s.writeError(w, http.StatusOK, err.Error())
	default:
		s.logger.Error("unexpected decision pipeline error", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
