package source

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sony/gobreaker"
	"github.com/timmy/memebot/internal/logger"
	"github.com/timmy/memebot/internal/metrics"
	"golang.org/x/time/rate"
)

// ClientConfig configures the HTTP plumbing shared by provider adapters.
type ClientConfig struct {
	Name           string
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	RequestsPerSec float64 // <= 0 disables rate limiting
	Burst          int
	// BreakerFailures consecutive failures open the breaker for
	// BreakerCooldown. Zero disables the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// HTTPClient performs JSON GETs against one provider with a fixed
// timeout, a token bucket and a circuit breaker.
type HTTPClient struct {
	name    string
	client  *resty.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// ErrStatus is returned for non-2xx provider responses.
var ErrStatus = errors.New("unexpected provider status")

// NewHTTPClient creates the client for one provider.
func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/"))
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	c := &HTTPClient{name: cfg.Name, client: client}

	if cfg.RequestsPerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}

	if cfg.BreakerFailures > 0 {
		failures := cfg.BreakerFailures
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Provider breaker %s changed from %s to %s", name, from, to)
			},
		})
	}

	return c
}

// Name returns the provider name this client serves.
func (c *HTTPClient) Name() string {
	return c.name
}

// GetJSON requests path with query and decodes the JSON body into out.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - path: path relative to the base URL.
//   - query: query string parameters, may be nil.
//   - out: pointer to decode the body into.
//
// Returns:
//   - error: non-nil on transport failure, non-2xx status, open breaker
//     or when the rate limiter wait is cancelled.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, query map[string]string, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit wait: %w", c.name, err)
		}
	}

	call := func() (interface{}, error) {
		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(query).
			ForceContentType("application/json").
			SetResult(out).
			Get(path)
		if err != nil {
			return nil, fmt.Errorf("%s: request failed: %w", c.name, err)
		}
		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			return nil, fmt.Errorf("%s: %w: HTTP %d", c.name, ErrStatus, resp.StatusCode())
		}
		return nil, nil
	}

	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(call)
	} else {
		_, err = call()
	}

	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ProviderRequests.WithLabelValues(c.name, "open").Inc()
	default:
		metrics.ProviderRequests.WithLabelValues(c.name, "error").Inc()
	}
	return err
}

// Observe records the outcome of a call that returned no transport error.
func (c *HTTPClient) Observe(found int) {
	outcome := "ok"
	if found == 0 {
		outcome = "empty"
	}
	metrics.ProviderRequests.WithLabelValues(c.name, outcome).Inc()
}

// Degrade logs a provider failure. Adapters call it before returning an
// empty result.
func (c *HTTPClient) Degrade(ctx context.Context, err error) {
	logger.FromContext(ctx).
		WithField(logger.FieldProvider, c.name).
		WithError(err).
		Warn("Provider unavailable, returning no candidates")
}

var titlePolicy = bluemonday.StrictPolicy()

// CleanTitle strips markup from a provider title and returns plain text.
func CleanTitle(title string) string {
	return strings.TrimSpace(html.UnescapeString(titlePolicy.Sanitize(title)))
}

// HasCyrillic reports whether text contains a Cyrillic letter. It is the
// language heuristic for provider titles.
func HasCyrillic(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}
