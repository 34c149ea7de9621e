package sources

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/scrypster/galacticalc/internal/breaker"
)

// ClientConfig holds HTTP settings shared by the source adapters.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration // default: 10s

	// RequestsPerSecond throttles outbound calls; zero disables throttling.
	RequestsPerSecond float64
	Burst             int // default: 1 when throttling

	// InsecureSkipVerify disables TLS certificate checks. Some SWAPI mirrors
	// serve expired certificates.
	InsecureSkipVerify bool

	// HTTPClient overrides the constructed client. Timeout and TLS settings
	// are ignored when set.
	HTTPClient *http.Client
}

// jsonClient performs throttled, breaker-protected GET requests that decode
// JSON bodies.
type jsonClient struct {
	source         string
	cfg            ClientConfig
	client         *http.Client
	limiter        *rate.Limiter
	circuitBreaker *breaker.CircuitBreaker
}

func newJSONClient(source string, cfg ClientConfig) *jsonClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for broken mirrors
		}
		client = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		}
	}

	c := &jsonClient{
		source: source,
		cfg:    cfg,
		client: client,
		circuitBreaker: breaker.NewWithConfig(breaker.Config{
			Name: source,
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound)
			},
		}),
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// getJSON fetches rawURL and decodes the body into out. A 404 is reported as
// NotFoundError; every other failure as UnavailableError.
func (c *jsonClient) getJSON(ctx context.Context, name, rawURL string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &UnavailableError{Source: c.source, Name: name, Err: err}
		}
	}

	_, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return nil, c.do(ctx, name, rawURL, out)
	})
	if err == nil {
		return nil
	}

	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return notFound
	}
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return unavailable
	}
	return &UnavailableError{Source: c.source, Name: name, Err: err}
}

func (c *jsonClient) do(ctx context.Context, name, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &UnavailableError{Source: c.source, Name: name, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &UnavailableError{Source: c.source, Name: name, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &NotFoundError{Source: c.source, Name: name}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UnavailableError{Source: c.source, Name: name, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &UnavailableError{Source: c.source, Name: name, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// BreakerState reports the circuit state of the underlying client.
func (c *jsonClient) BreakerState() string {
	return c.circuitBreaker.State()
}
