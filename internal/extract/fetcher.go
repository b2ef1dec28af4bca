// Package extract fetches current-weather payloads from the Open-Meteo API,
// one bounded-retry request per configured city.
package extract

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/weather-etl/internal/model"
	"github.com/sells-group/weather-etl/internal/resilience"
)

// Options configures the per-city weather fetcher.
type Options struct {
	BaseURL        string
	Timeout        time.Duration // per-attempt request timeout
	MaxRetries     int           // total attempts, including the first
	BackoffBase    float64       // exponential back-off base, in seconds
	CurrentWeather bool          // request the current_weather block
	UserAgent      string
	// RequestsPerSecond throttles outbound calls across all cities.
	// Zero disables throttling.
	RequestsPerSecond float64
}

// Fetcher issues one HTTP GET per city with bounded retries and exponential
// back-off. A city that cannot be fetched yields an error, never a panic;
// callers treat the error as "skip this city".
type Fetcher struct {
	client  *http.Client
	opts    Options
	policy  resilience.Policy
	limiter *rate.Limiter

	// sleep is the back-off wait, injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a Fetcher with the given options.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase < 1 {
		opts.BackoffBase = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "weather-etl/1.0"
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Fetcher{
		client:  &http.Client{Transport: transport},
		opts:    opts,
		policy:  resilience.Policy{MaxAttempts: opts.MaxRetries, BackoffBase: opts.BackoffBase, Unit: time.Second},
		limiter: limiter,
		sleep:   sleepContext,
	}
}

// Fetch retrieves the raw weather payload for one city. Transient failures
// (timeouts, refused connections, non-2xx statuses) are retried up to
// MaxRetries total attempts with BackoffBase^attempt seconds between them.
// Permanent failures (DNS no-such-host, request construction, malformed
// JSON) abort immediately without consuming the remaining attempts.
func (f *Fetcher) Fetch(ctx context.Context, city model.City) (map[string]any, error) {
	log := zap.L().With(zap.String("city", city.Name))

	reqURL, err := f.requestURL(city)
	if err != nil {
		log.Error("invalid request", zap.Error(err))
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "extract: rate limiter wait")
			}
		}

		log.Info("requesting weather",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", f.policy.MaxAttempts),
		)

		payload, err := f.attempt(ctx, reqURL)
		if err == nil {
			log.Info("fetched weather", zap.Int("attempt", attempt))
			return payload, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, eris.Wrapf(lastErr, "extract: fetch %s cancelled", city.Name)
		}

		if !resilience.IsRetryable(err) {
			log.Error("unrecoverable fetch error", zap.Error(err))
			return nil, eris.Wrapf(err, "extract: fetch %s", city.Name)
		}

		log.Warn("transient fetch failure",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", f.policy.MaxAttempts),
			zap.Error(err),
		)

		// No sleep after the final attempt.
		if attempt < f.policy.MaxAttempts {
			delay := f.policy.Backoff(attempt)
			log.Info("retrying after backoff", zap.Duration("delay", delay))
			if err := f.sleep(ctx, delay); err != nil {
				return nil, eris.Wrapf(lastErr, "extract: fetch %s cancelled", city.Name)
			}
		}
	}

	log.Error("all fetch attempts failed",
		zap.Int("attempts", f.policy.MaxAttempts),
		zap.Error(lastErr),
	)
	return nil, eris.Wrapf(lastErr, "extract: %d attempts failed for %s", f.policy.MaxAttempts, city.Name)
}

// attempt performs a single request with its own timeout. Errors are
// returned unwrapped so the retry loop can classify them.
func (f *Fetcher) attempt(ctx context.Context, reqURL string) (map[string]any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "extract: build request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &resilience.StatusError{Code: resp.StatusCode, URL: reqURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, eris.Wrap(err, "extract: decode response")
	}
	return payload, nil
}

func (f *Fetcher) requestURL(city model.City) (string, error) {
	u, err := url.Parse(f.opts.BaseURL)
	if err != nil {
		return "", eris.Wrapf(err, "extract: parse base url %q", f.opts.BaseURL)
	}

	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(city.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(city.Longitude, 'f', -1, 64))
	q.Set("current_weather", strconv.FormatBool(f.opts.CurrentWeather))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
