package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"psq/internal/ising"
)

// #region wire-types

// remoteProblem is the JSON shape the hosted sampler accepts.
type remoteProblem struct {
	NumVars   int            `json:"num_vars"`
	Linear    []remoteTerm   `json:"linear"`
	Couplings []remoteCouple `json:"couplings"`
	Offset    float64        `json:"offset"`
}

type remoteTerm struct {
	I     int     `json:"i"`
	Coeff float64 `json:"coeff"`
}

type remoteCouple struct {
	I     int     `json:"i"`
	J     int     `json:"j"`
	Coeff float64 `json:"coeff"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type evaluateRequest struct {
	Params []float64 `json:"params"`
}

type evaluateResponse struct {
	Expectation float64 `json:"expectation"`
}

type sampleRequest struct {
	Params []float64 `json:"params"`
	Shots  int       `json:"shots"`
}

type sampleResponse struct {
	Counts map[string]int `json:"counts"`
	Shots  int            `json:"shots"`
}

// #endregion wire-types

// #region remote

// Remote talks to an externally hosted sampler service over JSON/HTTP.
// Evaluations are queued remotely and may take seconds; callers bound
// every call with a context deadline.
type Remote struct {
	name    string
	baseURL string
	httpc   *http.Client
}

// NewRemote creates a client for the hosted sampler at baseURL.
func NewRemote(name, baseURL string, httpc *http.Client) *Remote {
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Remote{name: name, baseURL: baseURL, httpc: httpc}
}

func (b *Remote) Name() string { return b.name }

func (b *Remote) Kind() Kind { return KindRemote }

// IsAvailable probes the service health endpoint.
func (b *Remote) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/v1/health", nil)
	if err != nil {
		return false
	}
	resp, err := b.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Acquire registers the problem remotely and returns a session handle.
func (b *Remote) Acquire(ctx context.Context, h *ising.Hamiltonian) (Session, error) {
	prob := remoteProblem{
		NumVars: h.N,
		Offset:  h.Offset,
	}
	for _, t := range h.LinearTerms() {
		prob.Linear = append(prob.Linear, remoteTerm{I: t.Pair.I, Coeff: t.Coeff})
	}
	for _, t := range h.CouplingTerms() {
		prob.Couplings = append(prob.Couplings, remoteCouple{I: t.Pair.I, J: t.Pair.J, Coeff: t.Coeff})
	}

	var resp sessionResponse
	if err := b.post(ctx, "/v1/sessions", prob, &resp); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("create session: empty session id: %w", ErrTransient)
	}
	return &remoteSession{backend: b, id: resp.SessionID, numVars: h.N}, nil
}

// post sends a JSON body and decodes the JSON reply. Network errors and
// throttling statuses surface as ErrTransient so the solver retries.
func (b *Remote) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", path, err, ErrTransient)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s: status %d: %w", path, resp.StatusCode, ErrTransient)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// #endregion remote

// #region remote-session

type remoteSession struct {
	backend *Remote
	id      string
	numVars int
}

func (s *remoteSession) Evaluate(ctx context.Context, params []float64) (float64, error) {
	var resp evaluateResponse
	err := s.backend.post(ctx, "/v1/sessions/"+s.id+"/evaluate", evaluateRequest{Params: params}, &resp)
	if err != nil {
		return 0, fmt.Errorf("evaluate: %w", err)
	}
	return resp.Expectation, nil
}

func (s *remoteSession) Sample(ctx context.Context, params []float64, shots int) (Distribution, error) {
	var resp sampleResponse
	err := s.backend.post(ctx, "/v1/sessions/"+s.id+"/sample", sampleRequest{Params: params, Shots: shots}, &resp)
	if err != nil {
		return Distribution{}, fmt.Errorf("sample: %w", err)
	}
	for bits := range resp.Counts {
		if len(bits) != s.numVars {
			return Distribution{}, fmt.Errorf("sample: bitstring length %d, want %d", len(bits), s.numVars)
		}
	}
	if resp.Shots == 0 {
		resp.Shots = shots
	}
	return Distribution{Counts: resp.Counts, Shots: resp.Shots}, nil
}

// Release deletes the remote session. Best effort with its own timeout;
// the request is already complete when this runs.
func (s *remoteSession) Release() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.backend.baseURL+"/v1/sessions/"+s.id, nil)
	if err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	resp, err := s.backend.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// #endregion remote-session
