// Package diagnose is the top-level coordinator: it sequences cost-model
// construction, spin encoding, the variational solve, and hypothesis
// decoding, and packages the final result with diagnostics.
package diagnose

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"psq/internal/backend"
	"psq/internal/config"
	"psq/internal/decode"
	"psq/internal/ising"
	"psq/internal/qubo"
	"psq/internal/solve"
)

// #region diagnoser

// Diagnoser runs diagnosis requests against a fixed backend pair. Safe
// for concurrent use: every request gets its own backend session, and
// identical in-flight solves coalesce through the singleflight group.
type Diagnoser struct {
	cfg    config.Config
	solver *solve.Solver
	cache  *lru.Cache[string, *Result]
	group  singleflight.Group
}

// New creates a diagnoser over explicit backends. fallback may be nil.
func New(cfg config.Config, primary, fallback backend.Backend) (*Diagnoser, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New[string, *Result](size)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &Diagnoser{
		cfg:    cfg,
		solver: solve.New(primary, fallback),
		cache:  cache,
	}, nil
}

// NewFromConfig wires the backend pair named by the configuration. The
// local statevector simulator backs every non-exact primary as fallback.
func NewFromConfig(cfg config.Config) (*Diagnoser, error) {
	sv := backend.NewStatevector()

	var primary backend.Backend
	var fallback backend.Backend
	switch cfg.BackendType {
	case "statevector", "":
		primary = sv
	case "sampler":
		primary = backend.NewSampler(cfg.SamplerSeed, cfg.Shots)
		fallback = sv
	case "remote":
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("backend type remote needs PSQ_REMOTE_URL: %w", qubo.ErrInvalidInput)
		}
		primary = backend.NewRemote(cfg.RemoteName, cfg.RemoteURL, nil)
		fallback = sv
	default:
		return nil, fmt.Errorf("unknown backend type %q: %w", cfg.BackendType, qubo.ErrInvalidInput)
	}

	return New(cfg, primary, fallback)
}

// #endregion diagnoser

// #region diagnose

// Diagnose executes the full pipeline for one request.
func (d *Diagnoser) Diagnose(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	alpha := d.override(req.Alpha, d.cfg.Alpha)
	beta := d.override(req.Beta, d.cfg.Beta)
	gamma := d.override(req.Gamma, d.cfg.Gamma)

	opts := solve.Options{
		Depth:            orDefault(req.Depth, d.cfg.Depth),
		Shots:            orDefault(req.Shots, d.cfg.Shots),
		MaxIterations:    d.cfg.MaxIterations,
		EvalTimeout:      d.cfg.EvalTimeout,
		RetryAttempts:    d.cfg.RetryAttempts,
		RetryBackoff:     d.cfg.RetryBackoff,
		FailureThreshold: d.cfg.FailureThreshold,
	}

	// 1. Cost model
	model, idx, err := qubo.Build(req.Sensors, req.Patterns, alpha, beta, gamma)
	if err != nil {
		return nil, err
	}

	// 2. Spin encoding
	h, err := ising.FromCostModel(model, idx)
	if err != nil {
		return nil, err
	}

	// 3. Solve, coalescing identical concurrent work. Only the winning
	// call pays the backend cost; waiters share its result.
	key := fingerprint(model, opts.Depth, opts.Shots, d.cfg.BackendType)
	if cached, ok := d.cache.Get(key); ok {
		log.Printf("[DIAG] cache hit for %s (anomaly %s)", key[:12], req.AnomalyID)
		return d.repackage(cached, req), nil
	}

	v, err, shared := d.group.Do(key, func() (interface{}, error) {
		solveCtx := ctx
		if d.cfg.Deadline > 0 {
			var cancel context.CancelFunc
			solveCtx, cancel = context.WithTimeout(ctx, d.cfg.Deadline)
			defer cancel()
		}
		res, err := d.solver.Solve(solveCtx, h, opts)
		if err != nil {
			return nil, err
		}
		return &res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("solve anomaly %s: %w", req.AnomalyID, err)
	}
	solved := v.(*solve.Result)

	// 4. Decode and rank
	hyps, err := decode.Decode(solved.Distribution, idx, req.Sensors, req.Patterns, h)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:      uuid.New().String(),
		AnomalyID:  req.AnomalyID,
		PlantID:    req.PlantID,
		Hypotheses: hyps,
		Metrics:    decode.Metrics(hyps, len(req.Sensors)),
		Solve:      solved.Meta,
		CacheHit:   shared,
	}

	// Degraded or partial runs are not cached: the next identical
	// request should get another chance at a full solve.
	if !solved.Meta.Fallback && !solved.Meta.Partial {
		d.cache.Add(key, result)
	}

	log.Printf("[DIAG] anomaly %s: %d hypotheses, best energy %.4f, backend %s, fallback=%v, %.0fms",
		req.AnomalyID, len(hyps), solved.Meta.BestEnergy, solved.Meta.Backend,
		solved.Meta.Fallback, float64(time.Since(start).Milliseconds()))

	return result, nil
}

// repackage stamps a cached result with the new request's identity.
func (d *Diagnoser) repackage(cached *Result, req Request) *Result {
	out := *cached
	out.RunID = uuid.New().String()
	out.AnomalyID = req.AnomalyID
	out.PlantID = req.PlantID
	out.CacheHit = true
	return &out
}

func (d *Diagnoser) override(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func orDefault(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

// #endregion diagnose

// #region fingerprint

// fingerprint hashes the cost model coefficients together with depth,
// shot budget, and backend identity. Terms() is sorted, so identical
// models always hash identically.
func fingerprint(m *qubo.CostModel, depth, shots int, backendType string) string {
	hash := sha256.New()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(m.Len()))
	hash.Write(buf[:])
	for _, t := range m.Terms() {
		binary.LittleEndian.PutUint64(buf[:], uint64(t.Pair.I))
		hash.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(t.Pair.J))
		hash.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(t.Coeff))
		hash.Write(buf[:])
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(depth))
	hash.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(shots))
	hash.Write(buf[:])
	hash.Write([]byte(backendType))

	return hex.EncodeToString(hash.Sum(nil))
}

// #endregion fingerprint
