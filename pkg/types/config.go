// Package types provides configuration types for the risk engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServerConfig configures the HTTP/WebSocket transport.
type ServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	WebSocketPath  string        `json:"websocketPath"`
	ReadTimeout    time.Duration `json:"readTimeout"`
	WriteTimeout   time.Duration `json:"writeTimeout"`
	MaxConnections int           `json:"maxConnections"`
	EnableMetrics  bool          `json:"enableMetrics"`
	MetricsPort    int           `json:"metricsPort"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Size int           `json:"size"`
	TTL  time.Duration `json:"ttl"`
}

// MemoryConfig configures pattern memory retention.
type MemoryConfig struct {
	DataDir          string  `json:"dataDir"`
	RecentWindow     int     `json:"recentWindow"`
	RangeRebuildPct  float64 `json:"rangeRebuildPercent"`
	MinSamplesToGrade int    `json:"minSamplesToGrade"`
}

// RiskModelConfig configures the fluid risk model's component weights and
// sizing parameters.
type RiskModelConfig struct {
	EquityWeight    float64         `json:"equityWeight"`
	RegimeWeight    float64         `json:"regimeWeight"`
	LossAvoidWeight float64         `json:"lossAvoidWeight"`
	ProfitSimWeight float64         `json:"profitSimWeight"`
	StartingEquity  decimal.Decimal `json:"startingEquity"`
	TickValue       decimal.Decimal `json:"tickValue"`
	// BiasSeed seeds the directional-bias RNG. Zero means "seed from the
	// wall clock at startup"; a nonzero value makes the bias draw
	// deterministic, for reproducible backtests and tests.
	BiasSeed int64 `json:"biasSeed"`
}

// AdjusterConfig configures the recent-trade adjuster's lookback window.
type AdjusterConfig struct {
	LookbackTrades int `json:"lookbackTrades"`
}

// FeatureProviderConfig configures the outbound feature-provider client.
type FeatureProviderConfig struct {
	BaseURL string        `json:"baseUrl"`
	Timeout time.Duration `json:"timeout"`
}

// VectorStoreConfig configures the bulk vector-store client.
type VectorStoreConfig struct {
	DataDir string `json:"dataDir"`
}

// TelemetryConfig configures the bounded telemetry sink.
type TelemetryConfig struct {
	BufferSize int `json:"bufferSize"`
	Workers    int `json:"workers"`
}

// EngineConfig is the full, composed configuration for the risk engine
// process, assembled from flags, environment, and an optional config file.
type EngineConfig struct {
	Server          ServerConfig          `json:"server"`
	Cache           CacheConfig           `json:"cache"`
	Memory          MemoryConfig          `json:"memory"`
	RiskModel       RiskModelConfig       `json:"riskModel"`
	Adjuster        AdjusterConfig        `json:"adjuster"`
	FeatureProvider FeatureProviderConfig `json:"featureProvider"`
	VectorStore     VectorStoreConfig     `json:"vectorStore"`
	Telemetry       TelemetryConfig       `json:"telemetry"`
	LogLevel        string                `json:"logLevel"`
}

// DefaultEngineConfig returns the engine's baseline configuration, overridden
// by flags, environment variables, and an optional config file at startup.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			WebSocketPath:  "/ws",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			MaxConnections: 256,
			EnableMetrics:  true,
			MetricsPort:    9090,
		},
		Cache: CacheConfig{
			Size: 2048,
			TTL:  30 * time.Second,
		},
		Memory: MemoryConfig{
			DataDir:           "./data/memory",
			RecentWindow:      50,
			RangeRebuildPct:   0.05,
			MinSamplesToGrade: 20,
		},
		RiskModel: RiskModelConfig{
			EquityWeight:    0.30,
			RegimeWeight:    0.25,
			LossAvoidWeight: 0.25,
			ProfitSimWeight: 0.20,
			StartingEquity:  decimal.NewFromInt(50000),
			TickValue:       decimal.NewFromFloat(12.5),
		},
		Adjuster: AdjusterConfig{
			LookbackTrades: 5,
		},
		FeatureProvider: FeatureProviderConfig{
			BaseURL: "http://localhost:8090",
			Timeout: 3 * time.Second,
		},
		VectorStore: VectorStoreConfig{
			DataDir: "./data/vectors",
		},
		Telemetry: TelemetryConfig{
			BufferSize: 4096,
			Workers:    2,
		},
		LogLevel: "info",
	}
}
