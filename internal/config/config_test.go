package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithNoFileOrEnv(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.Size != 2048 {
		t.Errorf("Cache.Size = %d, want 2048", cfg.Cache.Size)
	}
	if cfg.RiskModel.StartingEquity.IntPart() != 50000 {
		t.Errorf("StartingEquity = %v, want 50000", cfg.RiskModel.StartingEquity)
	}
}

func TestLoadMissingConfigFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file should not error, got: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want defaulted 0.0.0.0", cfg.Server.Host)
	}
}

func TestLoadMalformedConfigFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: [this is not valid yaml"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error loading a malformed config file")
	}
}

func TestLoadOverlaysConfigFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "server:\n  port: 9999\ncache:\n  size: 99\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Cache.Size != 99 {
		t.Errorf("Cache.Size = %d, want 99", cfg.Cache.Size)
	}
	if cfg.Server.WebSocketPath != "/ws" {
		t.Errorf("unrelated field WebSocketPath = %q, should keep its default", cfg.Server.WebSocketPath)
	}
}

func TestLoadEnvVarOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9999\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("RISK_ENGINE_SERVER_PORT", "7000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want env override 7000", cfg.Server.Port)
	}
}

func TestLoadEnvVarOverridesRiskModelWeight(t *testing.T) {
	t.Setenv("RISK_ENGINE_RISKMODEL_EQUITYWEIGHT", "0.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RiskModel.EquityWeight != 0.5 {
		t.Errorf("RiskModel.EquityWeight = %v, want 0.5", cfg.RiskModel.EquityWeight)
	}
}

func TestLoadEnvVarOverridesBiasSeed(t *testing.T) {
	t.Setenv("RISK_ENGINE_RISKMODEL_BIASSEED", "42")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RiskModel.BiasSeed != 42 {
		t.Errorf("RiskModel.BiasSeed = %v, want 42", cfg.RiskModel.BiasSeed)
	}
}

func TestLoadDurationFields(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want 30s", cfg.Cache.TTL)
	}
}
