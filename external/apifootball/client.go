package apifootball

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
	"github.com/riskibarqy/matchpulse/internal/platform/resilience"
	"github.com/riskibarqy/matchpulse/internal/usecase"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL      = "https://v3.football.api-sports.io"
	apiKeyHeader        = "x-apisports-key"
	maxResponseBytes    = 8 << 20
	dateLayout          = "2006-01-02"
	defaultRetryBackoff = time.Second
)

var errTransient = crerr.New("api-football transient failure")

type ClientConfig struct {
	HTTPClient        *http.Client
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestsPerMinute int
	DedupWindow       time.Duration
	Logger            *logging.Logger
	CircuitBreaker    resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	maxRetries   int
	retryBackoff time.Duration
	dedupWindow  time.Duration
	callTimeout  time.Duration
	limiter      *rate.Limiter
	logger       *logging.Logger
	breaker      *resilience.CircuitBreaker
	flight       resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	}

	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}

	maxRetries := max(cfg.MaxRetries, 0)
	// Every attempt plus the linear backoff between attempts.
	callTimeout := httpClient.Timeout*time.Duration(maxRetries+1) +
		retryBackoff*time.Duration(maxRetries*(maxRetries+1)/2)

	breaker := resilience.NewCircuitBreaker(
		"api-football",
		cfg.CircuitBreaker,
		resilience.WithSuccessClassifier(func(err error) bool {
			return err == nil || !crerr.Is(err, errTransient)
		}),
		resilience.WithStateChange(func(name string, from, to resilience.CircuitState) {
			logger.Warn("feed circuit breaker state changed", "breaker", name, "from", from, "to", to)
		}),
	)

	return &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		dedupWindow:  max(cfg.DedupWindow, 0),
		callTimeout:  callTimeout,
		limiter:      rate.NewLimiter(limit, 1),
		logger:       logger,
		breaker:      breaker,
	}
}

// FetchFixtures queries /fixtures. The returned endpoint is set even on error.
func (c *Client) FetchFixtures(ctx context.Context, query usecase.FeedQuery) (usecase.FeedResult, error) {
	if len(query.IDs) > usecase.MaxFeedIDs {
		return usecase.FeedResult{}, fmt.Errorf("%w: at most %d fixture ids per request, got %d", usecase.ErrInvalidInput, usecase.MaxFeedIDs, len(query.IDs))
	}
	values := fixtureQueryValues(query)
	endpoint := buildEndpoint("/fixtures", values)

	var envelope fixturesEnvelope
	raw, err := c.doJSON(ctx, "/fixtures", values, &envelope)
	if err != nil {
		return usecase.FeedResult{Endpoint: endpoint}, fmt.Errorf("fetch fixtures %s: %w", endpoint, err)
	}

	return usecase.FeedResult{
		Fixtures: envelope.Response,
		Endpoint: endpoint,
		Raw:      raw,
	}, nil
}

// FetchLeagues returns the catalog of leagues with a current season.
func (c *Client) FetchLeagues(ctx context.Context) ([]usecase.RawLeagueEntry, error) {
	values := url.Values{}
	values.Set("current", "true")

	var envelope leaguesEnvelope
	if _, err := c.doJSON(ctx, "/leagues", values, &envelope); err != nil {
		return nil, fmt.Errorf("fetch leagues: %w", err)
	}
	return envelope.Response, nil
}

func fixtureQueryValues(query usecase.FeedQuery) url.Values {
	values := url.Values{}
	if query.Live {
		values.Set("live", "all")
	}
	if len(query.IDs) > 0 {
		ids := make([]string, 0, len(query.IDs))
		for _, id := range query.IDs {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			values.Set("ids", strings.Join(ids, "-"))
		}
	}
	if query.LeagueID > 0 {
		values.Set("league", strconv.FormatInt(query.LeagueID, 10))
	}
	if query.Season > 0 {
		values.Set("season", strconv.Itoa(query.Season))
	}
	if len(query.Statuses) > 0 {
		statuses := make([]string, 0, len(query.Statuses))
		for _, status := range query.Statuses {
			status = strings.ToUpper(strings.TrimSpace(status))
			if status != "" {
				statuses = append(statuses, status)
			}
		}
		if len(statuses) > 0 {
			values.Set("status", strings.Join(statuses, "-"))
		}
	}
	if !query.From.IsZero() {
		values.Set("from", query.From.UTC().Format(dateLayout))
	}
	if !query.To.IsZero() {
		values.Set("to", query.To.UTC().Format(dateLayout))
	}
	return values
}

func buildEndpoint(path string, values url.Values) string {
	if encoded := values.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

func (c *Client) doJSON(ctx context.Context, path string, values url.Values, target envelope) ([]byte, error) {
	if c.apiKey == "" {
		return nil, crerr.Mark(crerr.Newf("missing %s header value", apiKeyHeader), usecase.ErrConfiguration)
	}

	done, err := c.breaker.Allow()
	if err != nil {
		c.logger.WarnContext(ctx, "feed circuit breaker rejected request", "path", path, "state", c.breaker.State())
		return nil, fmt.Errorf("%w: fixture feed is temporarily unavailable", usecase.ErrDependencyUnavailable)
	}

	endpoint := buildEndpoint(path, values)
	out, err, shared := c.flight.DoWindow(ctx, endpoint, c.dedupWindow, func(callCtx context.Context) (any, error) {
		callCtx, cancel := context.WithTimeout(callCtx, c.callTimeout)
		defer cancel()
		return c.executeRequest(callCtx, c.baseURL+endpoint)
	})
	// Shared callers did not issue a request and must not count twice.
	if shared {
		done(nil)
	} else {
		done(err)
	}
	if err != nil {
		return nil, err
	}

	raw, ok := out.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected response payload type %T", out)
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return nil, crerr.Mark(crerr.Wrap(err, "decode feed payload"), usecase.ErrDecode)
	}
	if problems := providerErrors(target.providerErrors()); len(problems) > 0 {
		return nil, classifyProviderErrors(problems)
	}

	return raw, nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")
		req.Header.Set(apiKeyHeader, c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = markTransient(fmt.Errorf("send request: %s", sanitizeSensitiveText(err.Error(), c.apiKey)))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = markTransient(fmt.Errorf("read response body: %v", readErr))
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				return nil, crerr.Mark(
					fmt.Errorf("feed rejected credentials status=%d body=%s", resp.StatusCode, abbreviateBody(raw, c.apiKey)),
					usecase.ErrConfiguration,
				)
			case isRetryableStatus(resp.StatusCode):
				lastErr = markTransient(fmt.Errorf("feed status=%d body=%s", resp.StatusCode, abbreviateBody(raw, c.apiKey)))
			default:
				return nil, crerr.Mark(
					fmt.Errorf("feed status=%d body=%s", resp.StatusCode, abbreviateBody(raw, c.apiKey)),
					usecase.ErrUpstream,
				)
			}
		}

		if attempt == c.maxRetries {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * c.retryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = markTransient(fmt.Errorf("feed request failed"))
	}
	c.logger.WarnContext(ctx, "feed request failed", "url", fullURL, "attempts", c.maxRetries+1, "error", lastErr)
	return nil, lastErr
}

func markTransient(err error) error {
	return crerr.Mark(crerr.Mark(err, errTransient), usecase.ErrUpstream)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// providerErrors flattens the "errors" field, which the feed sends either as
// an empty array or as an object keyed by error name.
func providerErrors(raw any) map[string]string {
	out := make(map[string]string)
	switch value := raw.(type) {
	case map[string]any:
		for key, item := range value {
			text := strings.TrimSpace(fmt.Sprint(item))
			if text != "" {
				out[key] = text
			}
		}
	case []any:
		for i, item := range value {
			text := strings.TrimSpace(fmt.Sprint(item))
			if text != "" {
				out[strconv.Itoa(i)] = text
			}
		}
	}
	return out
}

func classifyProviderErrors(problems map[string]string) error {
	keys := make([]string, 0, len(problems))
	for key := range problems {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	configuration := false
	for _, key := range keys {
		parts = append(parts, key+": "+problems[key])
		switch strings.ToLower(key) {
		case "token", "access", "plan", "subscription":
			configuration = true
		}
	}

	err := crerr.Newf("feed reported errors: %s", strings.Join(parts, "; "))
	if configuration {
		return crerr.Mark(err, usecase.ErrConfiguration)
	}
	if _, limited := problems["requests"]; limited {
		return markTransient(err)
	}
	return crerr.Mark(err, usecase.ErrUpstream)
}

func sanitizeSensitiveText(value, key string) string {
	value = strings.TrimSpace(value)
	if value == "" || key == "" {
		return value
	}
	return strings.ReplaceAll(value, key, "REDACTED")
}

func abbreviateBody(body []byte, key string) string {
	text := sanitizeSensitiveText(string(body), key)
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

type envelope interface {
	providerErrors() any
}

type fixturesEnvelope struct {
	Errors   any                  `json:"errors"`
	Results  int                  `json:"results"`
	Response []usecase.RawFixture `json:"response"`
}

func (e *fixturesEnvelope) providerErrors() any { return e.Errors }

type leaguesEnvelope struct {
	Errors   any                      `json:"errors"`
	Results  int                      `json:"results"`
	Response []usecase.RawLeagueEntry `json:"response"`
}

func (e *leaguesEnvelope) providerErrors() any { return e.Errors }
