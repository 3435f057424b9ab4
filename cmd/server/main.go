// Package main provides the entry point for the pre-trade risk decision
// engine server.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-desktop/risk-engine/internal/adjuster"
	"github.com/atlas-desktop/risk-engine/internal/api"
	"github.com/atlas-desktop/risk-engine/internal/cache"
	"github.com/atlas-desktop/risk-engine/internal/config"
	"github.com/atlas-desktop/risk-engine/internal/decision"
	"github.com/atlas-desktop/risk-engine/internal/equity"
	"github.com/atlas-desktop/risk-engine/internal/features"
	"github.com/atlas-desktop/risk-engine/internal/intake"
	"github.com/atlas-desktop/risk-engine/internal/memory"
	"github.com/atlas-desktop/risk-engine/internal/metrics"
	"github.com/atlas-desktop/risk-engine/internal/ranges"
	"github.com/atlas-desktop/risk-engine/internal/riskmodel"
	"github.com/atlas-desktop/risk-engine/internal/telemetry"
	"github.com/atlas-desktop/risk-engine/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	host := flag.String("host", "", "Server host (overrides config)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	backtest := flag.Bool("backtest", false, "Run the recent-trade adjuster in backtest lookback mode")
	forceStoreAll := flag.Bool("force-store-all", false, "Disable noise filtering on outcome intake")
	biasSeed := flag.Int64("bias-seed", 0, "Seed for the directional-bias RNG (0 seeds from the wall clock)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *biasSeed != 0 {
		cfg.RiskModel.BiasSeed = *biasSeed
	}

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting risk decision engine",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("backtest", *backtest),
	)

	mem := memory.New()

	vectorStore, err := vectorstore.NewFileStore(cfg.VectorStore.DataDir, logger)
	if err != nil {
		logger.Fatal("failed to initialize vector store", zap.Error(err))
	}
	defer vectorStore.Close()

	loaded, err := vectorStore.LoadAll(time.Time{}, "")
	if err != nil {
		logger.Error("failed to load historical vectors", zap.Error(err))
	}
	insertedCount, skippedCount := mem.Load(loaded)
	logger.Info("pattern memory bootstrapped", zap.Int("loaded", insertedCount), zap.Int("skipped", skippedCount))

	tables := ranges.New(mem)
	eq := equity.New(cfg.RiskModel.StartingEquity)

	reg := metrics.New()

	responseCache, err := cache.New(cfg.Cache.Size, cfg.Cache.TTL, mem.Version)
	if err != nil {
		logger.Fatal("failed to initialize response cache", zap.Error(err))
	}

	sink := telemetry.NewChannelSink(cfg.Telemetry.BufferSize, cfg.Telemetry.Workers, logger)
	defer sink.Close()

	featureProvider := features.NewHTTPProvider(cfg.FeatureProvider.BaseURL, cfg.FeatureProvider.Timeout)

	weights := riskmodel.Weights{
		Equity:    cfg.RiskModel.EquityWeight,
		Regime:    cfg.RiskModel.RegimeWeight,
		LossAvoid: cfg.RiskModel.LossAvoidWeight,
		ProfitSim: cfg.RiskModel.ProfitSimWeight,
	}
	adjusterMode := adjuster.ModeLive
	if *backtest {
		adjusterMode = adjuster.ModeBacktest
	}
	biasRNGSeed := cfg.RiskModel.BiasSeed
	if biasRNGSeed == 0 {
		biasRNGSeed = time.Now().UnixNano()
	}
	biasRNG := rand.New(rand.NewSource(biasRNGSeed))

	engine := decision.New(mem, tables, eq, responseCache, featureProvider, sink, weights, adjusterMode, biasRNG, *forceStoreAll, logger)

	outcomeIntake := intake.New(mem, eq, *forceStoreAll, engine.LookupDecision, sink, vectorStore)

	server := api.NewServer(logger, &cfg.Server, engine, outcomeIntake, mem, eq, reg)

	hubStopped := make(chan struct{})
	sink.AddForwarder(server.Hub().Forward)
	go server.Hub().Run(hubStopped)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("API server error", zap.Error(err))
		}
	}()

	logger.Info("risk engine started",
		zap.String("http", fmt.Sprintf("http://%s:%d/api/v1", cfg.Server.Host, cfg.Server.Port)),
		zap.String("ws", fmt.Sprintf("ws://%s:%d%s", cfg.Server.Host, cfg.Server.Port, cfg.Server.WebSocketPath)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	close(hubStopped)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}

	logger.Info("risk engine stopped")
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
