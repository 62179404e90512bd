package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.BackendType != "statevector" {
		t.Errorf("BackendType = %q, want statevector", cfg.BackendType)
	}
	if cfg.Alpha != 1.0 || cfg.Beta != 1.0 || cfg.Gamma != 1.0 {
		t.Errorf("hyperparameter defaults = %v/%v/%v, want 1.0 each", cfg.Alpha, cfg.Beta, cfg.Gamma)
	}
	if cfg.Depth != 2 || cfg.Shots != 1024 || cfg.MaxIterations != 100 {
		t.Errorf("solver defaults = %d/%d/%d", cfg.Depth, cfg.Shots, cfg.MaxIterations)
	}
	if cfg.Deadline != 300*time.Second {
		t.Errorf("Deadline = %v, want 300s", cfg.Deadline)
	}
	if cfg.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d, want 3", cfg.FailureThreshold)
	}
	if cfg.DBPath != "psq_audit.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PSQ_BACKEND_TYPE", "remote")
	t.Setenv("PSQ_REMOTE_URL", "https://sampler.example.com")
	t.Setenv("PSQ_QUBO_BETA", "2.5")
	t.Setenv("PSQ_QAOA_DEPTH", "4")
	t.Setenv("PSQ_TIMEOUT_SECONDS", "60")
	t.Setenv("PSQ_SAMPLER_SEED", "99")

	cfg := Load()
	if cfg.BackendType != "remote" || cfg.RemoteURL != "https://sampler.example.com" {
		t.Errorf("backend override not applied: %+v", cfg)
	}
	if cfg.Beta != 2.5 {
		t.Errorf("Beta = %v, want 2.5", cfg.Beta)
	}
	if cfg.Depth != 4 {
		t.Errorf("Depth = %d, want 4", cfg.Depth)
	}
	if cfg.Deadline != time.Minute {
		t.Errorf("Deadline = %v, want 1m", cfg.Deadline)
	}
	if cfg.SamplerSeed != 99 {
		t.Errorf("SamplerSeed = %d, want 99", cfg.SamplerSeed)
	}
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("PSQ_QAOA_DEPTH", "lots")
	t.Setenv("PSQ_QUBO_ALPHA", "very")

	cfg := Load()
	if cfg.Depth != 2 {
		t.Errorf("Depth = %d, want default 2 on malformed value", cfg.Depth)
	}
	if cfg.Alpha != 1.0 {
		t.Errorf("Alpha = %v, want default 1.0 on malformed value", cfg.Alpha)
	}
}
