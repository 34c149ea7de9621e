package interpreter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/scrypster/galacticalc/internal/breaker"
	"github.com/scrypster/galacticalc/pkg/types"
)

// Interpreter turns problem text into an interpretation.
type Interpreter interface {
	Interpret(ctx context.Context, problemText string) (*types.Interpretation, error)
}

// InterpretationError reports a failed interpretation: transport failure,
// unexpected response structure, or model output that is not a valid
// interpretation.
type InterpretationError struct {
	Err error
}

func (e *InterpretationError) Error() string {
	return fmt.Sprintf("failed to get interpretation: %v", e.Err)
}

func (e *InterpretationError) Unwrap() error {
	return e.Err
}

// Config holds configuration for the proxy client.
type Config struct {
	Token   string
	BaseURL string        // default: https://api.openai.com
	Model   string        // default: gpt-4o-mini
	Timeout time.Duration // default: 60s
}

// ProxyClient implements Interpreter against a chat-completion proxy that
// accepts POST {base}/chat_completion with a bearer token.
type ProxyClient struct {
	cfg            Config
	client         *http.Client
	circuitBreaker *breaker.CircuitBreaker
	systemPrompt   string
}

// NewProxyClient creates a new proxy client with the given configuration.
func NewProxyClient(cfg Config) *ProxyClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &ProxyClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: breaker.NewWithConfig(breaker.Config{
			Name:        "interpreter",
			MaxFailures: 3,
			Timeout:     30 * time.Second,
		}),
		systemPrompt: SystemPrompt(),
	}
}

// chatRequest is the request body for POST /chat_completion.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response body from POST /chat_completion.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Interpret asks the model for an interpretation of problemText.
func (c *ProxyClient) Interpret(ctx context.Context, problemText string) (*types.Interpretation, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.complete(ctx, problemText)
	})
	if err != nil {
		if errors.Is(err, breaker.ErrCircuitOpen) {
			return nil, &InterpretationError{Err: fmt.Errorf("interpreter circuit breaker open: %w", err)}
		}
		return nil, &InterpretationError{Err: err}
	}

	content := result.(string)
	interp, err := ParseInterpretation(content)
	if err != nil {
		log.Printf("interpreter: unusable model output %q: %v", truncate(content, 200), err)
		return nil, &InterpretationError{Err: err}
	}
	return interp, nil
}

func (c *ProxyClient) complete(ctx context.Context, problemText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "developer", Content: c.systemPrompt},
			{Role: "user", Content: problemText},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat_completion", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("interpreter returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(respData.Choices) == 0 || strings.TrimSpace(respData.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("invalid API response structure: no message content")
	}

	return respData.Choices[0].Message.Content, nil
}

// GetModel returns the configured model name.
func (c *ProxyClient) GetModel() string {
	return c.cfg.Model
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Compile-time assertion.
var _ Interpreter = (*ProxyClient)(nil)
