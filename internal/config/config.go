// Package config loads the immutable service configuration from
// environment variables. The loaded value is passed into the
// orchestrator at construction; nothing here is mutated afterward.
package config

import (
	"os"
	"strconv"
	"time"
)

// #region config

// Config is the full service configuration.
type Config struct {
	// Backend selection: "statevector", "sampler", or "remote".
	BackendType string
	RemoteURL   string
	RemoteName  string
	SamplerSeed int64

	// Cost model hyperparameter defaults, overridable per request.
	Alpha float64
	Beta  float64
	Gamma float64

	// Solver budgets.
	Depth            int
	Shots            int
	MaxIterations    int
	EvalTimeout      time.Duration
	Deadline         time.Duration // overall per-request deadline
	RetryAttempts    int
	RetryBackoff     time.Duration
	FailureThreshold int

	// Result cache and audit store.
	CacheSize int
	DBPath    string
}

// Load reads configuration from PSQ_* environment variables, falling
// back to service defaults.
func Load() Config {
	return Config{
		BackendType: envOr("PSQ_BACKEND_TYPE", "statevector"),
		RemoteURL:   envOr("PSQ_REMOTE_URL", ""),
		RemoteName:  envOr("PSQ_BACKEND_NAME", "hosted_sampler"),
		SamplerSeed: envInt64("PSQ_SAMPLER_SEED", 1),

		Alpha: envFloat("PSQ_QUBO_ALPHA", 1.0),
		Beta:  envFloat("PSQ_QUBO_BETA", 1.0),
		Gamma: envFloat("PSQ_QUBO_GAMMA", 1.0),

		Depth:            envInt("PSQ_QAOA_DEPTH", 2),
		Shots:            envInt("PSQ_QAOA_SHOTS", 1024),
		MaxIterations:    envInt("PSQ_QAOA_MAX_ITER", 100),
		EvalTimeout:      time.Duration(envInt("PSQ_EVAL_TIMEOUT_SECONDS", 30)) * time.Second,
		Deadline:         time.Duration(envInt("PSQ_TIMEOUT_SECONDS", 300)) * time.Second,
		RetryAttempts:    envInt("PSQ_RETRY_ATTEMPTS", 2),
		RetryBackoff:     time.Duration(envInt("PSQ_RETRY_BACKOFF_MS", 100)) * time.Millisecond,
		FailureThreshold: envInt("PSQ_FAILURE_THRESHOLD", 3),

		CacheSize: envInt("PSQ_CACHE_SIZE", 128),
		DBPath:    envOr("PSQ_DB", "psq_audit.db"),
	}
}

// #endregion config

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// #endregion helpers
