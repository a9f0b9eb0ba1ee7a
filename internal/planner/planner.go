// Package planner is the client for the external planning/reasoning
// service: an opaque function from utterance + context snapshot to a
// Plan. Malformed or empty service output is tolerated by substituting
// a minimal fallback plan.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hallgrim/golem/internal/golemerr"
	"github.com/hallgrim/golem/internal/plan"
)

// Snapshot is the world context handed to the planning service.
type Snapshot struct {
	Position       [3]float64           `json:"position,omitempty"`
	Inventory      map[string]int       `json:"inventory,omitempty"`
	Detections     []string             `json:"detections,omitempty"`
	Backlog        []plan.BacklogEntry  `json:"backlog,omitempty"`
	RecoveryPrompt string               `json:"recovery_prompt,omitempty"`
	RemainingSteps []string             `json:"remaining_steps,omitempty"`
}

// Service produces a Plan for an utterance given a context snapshot.
type Service interface {
	Plan(ctx context.Context, utterance string, snapshot Snapshot) (*plan.Plan, error)
}

// HTTPService talks to the planning service over HTTP: one POST per
// utterance, raw text response containing the plan JSON.
type HTTPService struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// Option customizes an HTTPService.
type Option func(*HTTPService)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPService) { s.client = c }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *HTTPService) { s.logger = l }
}

// NewHTTPService creates a planning-service client for endpoint.
func NewHTTPService(endpoint string, opts ...Option) *HTTPService {
	s := &HTTPService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type planRequest struct {
	Utterance string   `json:"utterance"`
	Context   Snapshot `json:"context"`
}

// Plan implements Service. Transport failures are returned as errors;
// malformed plan output is absorbed into a fallback plan so a flaky
// model never crashes the executor.
func (s *HTTPService) Plan(ctx context.Context, utterance string, snapshot Snapshot) (*plan.Plan, error) {
	body, err := json.Marshal(planRequest{Utterance: utterance, Context: snapshot})
	if err != nil {
		return nil, fmt.Errorf("encode plan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build plan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, golemerr.ErrPlannerUnavailable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, golemerr.ErrPlannerUnavailable(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, golemerr.ErrPlannerUnavailable(
			fmt.Errorf("planning service returned %d", resp.StatusCode))
	}

	p, perr := plan.Parse(string(raw))
	if perr != nil {
		s.logger.Warn("malformed planner output, substituting fallback plan",
			"error", perr,
			"elapsed", time.Since(start))
		return plan.Fallback(""), nil
	}

	s.logger.Info("plan received",
		"steps", len(p.Steps),
		"intent", p.Intent,
		"confidence", p.Confidence,
		"elapsed", time.Since(start))
	return p, nil
}
