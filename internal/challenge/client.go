// Package challenge talks to the challenge lifecycle service: it starts a
// session to obtain the first problem and submits answers, each of which
// returns the next problem until the challenge ends.
package challenge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scrypster/galacticalc/internal/breaker"
	"github.com/scrypster/galacticalc/pkg/types"
)

// ErrChallenge is matched by every error returned from Client.
var ErrChallenge = errors.New("challenge service error")

// Error wraps a failed challenge call with the operation that failed.
type Error struct {
	Op  string // "start" or "submit"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to %s challenge: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrChallenge }

// Service is the subset of the challenge API the solver depends on.
type Service interface {
	Start(ctx context.Context) (*types.Problem, error)
	Submit(ctx context.Context, problemID string, answer float64) (*types.SubmitResult, error)
}

// Config holds configuration for the challenge client.
type Config struct {
	Token   string
	BaseURL string
	Mode    types.ExecutionMode // default: test
	Timeout time.Duration       // default: 30s
}

// Client implements Service over HTTP.
type Client struct {
	cfg            Config
	client         *http.Client
	circuitBreaker *breaker.CircuitBreaker
}

// NewClient creates a challenge client.
func NewClient(cfg Config) *Client {
	if cfg.Mode == "" {
		cfg.Mode = types.ModeTest
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: breaker.NewWithConfig(breaker.Config{
			Name:        "challenge",
			MaxFailures: 3,
			Timeout:     30 * time.Second,
		}),
	}
}

// startPath returns the start endpoint for the configured execution mode.
func (c *Client) startPath() string {
	if c.cfg.Mode == types.ModeProd {
		return "/challenge/start"
	}
	return "/challenge/test"
}

// Start begins a challenge session and returns the first problem.
func (c *Client) Start(ctx context.Context) (*types.Problem, error) {
	var problem types.Problem
	if err := c.call(ctx, http.MethodGet, c.startPath(), nil, &problem); err != nil {
		return nil, &Error{Op: "start", Err: err}
	}
	if problem.ID == "" {
		return nil, &Error{Op: "start", Err: errors.New("response has no problem id")}
	}
	return &problem, nil
}

type submitRequest struct {
	ProblemID string  `json:"problem_id"`
	Answer    float64 `json:"answer"`
}

// Submit sends an answer. The returned result carries the next problem, or a
// nil NextProblem when the challenge is over.
func (c *Client) Submit(ctx context.Context, problemID string, answer float64) (*types.SubmitResult, error) {
	body, err := json.Marshal(submitRequest{ProblemID: problemID, Answer: answer})
	if err != nil {
		return nil, &Error{Op: "submit", Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	var result types.SubmitResult
	if err := c.call(ctx, http.MethodPost, "/challenge/solution", body, &result); err != nil {
		return nil, &Error{Op: "submit", Err: err}
	}
	if result.NextProblem != nil && result.NextProblem.ID == "" {
		result.NextProblem = nil
	}
	return &result, nil
}

func (c *Client) call(ctx context.Context, method, path string, body []byte, out any) error {
	_, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return nil, c.do(ctx, method, path, body, out)
	})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("challenge service returned status %d: %s", resp.StatusCode, string(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var _ Service = (*Client)(nil)
