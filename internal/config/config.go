// Package config loads the engine's EngineConfig from defaults, an optional
// config file, and environment variable overrides, in that overlay order.
package config

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/atlas-desktop/risk-engine/pkg/types"
)

// Load builds an EngineConfig starting from types.DefaultEngineConfig,
// overlaying configPath (if non-empty) and RISK_ENGINE_-prefixed environment
// variables. A missing configPath is not an error; a malformed one is.
func Load(configPath string) (types.EngineConfig, error) {
	cfg := types.DefaultEngineConfig()

	v := viper.New()
	v.SetEnvPrefix("RISK_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return cfg, err
			}
		}
	}

	cfg.Server.Host = v.GetString("server.host")
	cfg.Server.Port = v.GetInt("server.port")
	cfg.Server.WebSocketPath = v.GetString("server.websocketpath")
	cfg.Server.ReadTimeout = v.GetDuration("server.readtimeout")
	cfg.Server.WriteTimeout = v.GetDuration("server.writetimeout")
	cfg.Server.MaxConnections = v.GetInt("server.maxconnections")
	cfg.Server.EnableMetrics = v.GetBool("server.enablemetrics")
	cfg.Server.MetricsPort = v.GetInt("server.metricsport")

	cfg.Cache.Size = v.GetInt("cache.size")
	cfg.Cache.TTL = v.GetDuration("cache.ttl")

	cfg.Memory.DataDir = v.GetString("memory.datadir")
	cfg.Memory.RecentWindow = v.GetInt("memory.recentwindow")
	cfg.Memory.RangeRebuildPct = v.GetFloat64("memory.rangerebuildpercent")
	cfg.Memory.MinSamplesToGrade = v.GetInt("memory.minsamplestograde")

	cfg.RiskModel.EquityWeight = v.GetFloat64("riskmodel.equityweight")
	cfg.RiskModel.RegimeWeight = v.GetFloat64("riskmodel.regimeweight")
	cfg.RiskModel.LossAvoidWeight = v.GetFloat64("riskmodel.lossavoidweight")
	cfg.RiskModel.ProfitSimWeight = v.GetFloat64("riskmodel.profitsimweight")
	if raw := v.GetString("riskmodel.startingequity"); raw != "" {
		if d, err := decimal.NewFromString(raw); err == nil {
			cfg.RiskModel.StartingEquity = d
		}
	}
	if raw := v.GetString("riskmodel.tickvalue"); raw != "" {
		if d, err := decimal.NewFromString(raw); err == nil {
			cfg.RiskModel.TickValue = d
		}
	}
	cfg.RiskModel.BiasSeed = v.GetInt64("riskmodel.biasseed")

	cfg.Adjuster.LookbackTrades = v.GetInt("adjuster.lookbacktrades")

	cfg.FeatureProvider.BaseURL = v.GetString("featureprovider.baseurl")
	cfg.FeatureProvider.Timeout = v.GetDuration("featureprovider.timeout")

	cfg.VectorStore.DataDir = v.GetString("vectorstore.datadir")

	cfg.Telemetry.BufferSize = v.GetInt("telemetry.buffersize")
	cfg.Telemetry.Workers = v.GetInt("telemetry.workers")

	cfg.LogLevel = v.GetString("loglevel")

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg types.EngineConfig) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.websocketpath", cfg.Server.WebSocketPath)
	v.SetDefault("server.readtimeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.writetimeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.maxconnections", cfg.Server.MaxConnections)
	v.SetDefault("server.enablemetrics", cfg.Server.EnableMetrics)
	v.SetDefault("server.metricsport", cfg.Server.MetricsPort)

	v.SetDefault("cache.size", cfg.Cache.Size)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)

	v.SetDefault("memory.datadir", cfg.Memory.DataDir)
	v.SetDefault("memory.recentwindow", cfg.Memory.RecentWindow)
	v.SetDefault("memory.rangerebuildpercent", cfg.Memory.RangeRebuildPct)
	v.SetDefault("memory.minsamplestograde", cfg.Memory.MinSamplesToGrade)

	v.SetDefault("riskmodel.equityweight", cfg.RiskModel.EquityWeight)
	v.SetDefault("riskmodel.regimeweight", cfg.RiskModel.RegimeWeight)
	v.SetDefault("riskmodel.lossavoidweight", cfg.RiskModel.LossAvoidWeight)
	v.SetDefault("riskmodel.profitsimweight", cfg.RiskModel.ProfitSimWeight)
	v.SetDefault("riskmodel.startingequity", cfg.RiskModel.StartingEquity.String())
	v.SetDefault("riskmodel.tickvalue", cfg.RiskModel.TickValue.String())
	v.SetDefault("riskmodel.biasseed", cfg.RiskModel.BiasSeed)

	v.SetDefault("adjuster.lookbacktrades", cfg.Adjuster.LookbackTrades)

	v.SetDefault("featureprovider.baseurl", cfg.FeatureProvider.BaseURL)
	v.SetDefault("featureprovider.timeout", cfg.FeatureProvider.Timeout)

	v.SetDefault("vectorstore.datadir", cfg.VectorStore.DataDir)

	v.SetDefault("telemetry.buffersize", cfg.Telemetry.BufferSize)
	v.SetDefault("telemetry.workers", cfg.Telemetry.Workers)

	v.SetDefault("loglevel", cfg.LogLevel)
}
