package matchapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"github.com/riskibarqy/matchpulse/internal/platform/logging"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 8 << 20
	userAgent           = "matchpulse-watch"
)

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  *logging.Logger
}

// Client reads the pull API of a matchpulse server.
type Client struct {
	http    *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *logging.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Client{
		http: &fasthttp.Client{
			Name:                userAgent,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxResponseBodySize: defaultMaxBodyBytes,
			MaxIdleConnDuration: time.Minute,
		},
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

func (c *Client) Live(ctx context.Context) (Resource[Match], error) {
	var out Resource[Match]
	err := c.get(ctx, "/v1/resources/live", nil, &out)
	return out, err
}

func (c *Client) Upcoming(ctx context.Context, days int) (Resource[Match], error) {
	query := url.Values{}
	if days > 0 {
		query.Set("days", strconv.Itoa(days))
	}
	var out Resource[Match]
	err := c.get(ctx, "/v1/resources/upcoming", query, &out)
	return out, err
}

func (c *Client) LeagueMatches(ctx context.Context, leagueID int64) (Resource[Match], error) {
	var out Resource[Match]
	err := c.get(ctx, fmt.Sprintf("/v1/resources/league/%d/matches", leagueID), nil, &out)
	return out, err
}

func (c *Client) Leagues(ctx context.Context) (Resource[League], error) {
	var out Resource[League]
	err := c.get(ctx, "/v1/resources/leagues", nil, &out)
	return out, err
}

func (c *Client) Match(ctx context.Context, matchID string) (Match, error) {
	var out Match
	err := c.get(ctx, "/v1/matches/"+url.PathEscape(strings.TrimSpace(matchID)), nil, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	uri := c.baseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	start := time.Now()
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	c.logger.DebugContext(ctx, "matchapi request",
		"path", path,
		"status", resp.StatusCode(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	var env envelope
	if err := sonic.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("decode %s (status=%d): %w", path, resp.StatusCode(), err)
	}

	status := resp.StatusCode()
	if status < fasthttp.StatusOK || status >= fasthttp.StatusMultipleChoices || env.Error != nil {
		apiErr := &APIError{StatusCode: status, Path: path}
		if env.Error != nil {
			apiErr.Status = env.Error.Status
			apiErr.Message = env.Error.Message
			if len(env.Error.Errors) > 0 {
				apiErr.Reason = env.Error.Errors[0].Reason
			}
		}
		return apiErr
	}

	if len(env.Data) == 0 {
		return fmt.Errorf("decode %s: empty data", path)
	}
	if err := sonic.Unmarshal(env.Data, data); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}
