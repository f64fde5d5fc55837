package msr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"siren/internal/config"
	"siren/internal/logging"
	"siren/internal/services"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = config.DefaultAPIEndpoint

	defaultTimeout    = 30 * time.Second
	defaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
	maxErrorBody      = 512
)

// HTTPDoer describes the HTTP client used by the API client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the client settings. The zero value targets the public API
// without retries.
type Config struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// ConfigFrom extracts client settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		BaseURL:    cfg.API.Endpoint,
		UserAgent:  cfg.API.UserAgent,
		Timeout:    cfg.APITimeout(),
		MaxRetries: cfg.API.MaxRetries,
		RetryDelay: cfg.RetryDelay(),
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithLogger sets the logger for request events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client talks to the Monster Siren API. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	userAgent  string
	maxRetries int
	retryDelay time.Duration
	http       HTTPDoer
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration) error
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "api", "base url", fmt.Sprintf("%q is not an absolute http(s) URL", raw), nil)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	c := &Client{
		base:       base,
		userAgent:  strings.TrimSpace(cfg.UserAgent),
		maxRetries: max(cfg.MaxRetries, 0),
		retryDelay: delay,
		http:       &http.Client{Timeout: timeout},
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = logging.NewComponentLogger(c.logger, "msr")
	return c, nil
}

// BaseURL returns the API root the client resolves endpoints against.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// AlbumsURL is the album list endpoint.
func (c *Client) AlbumsURL() *url.URL { return c.base.JoinPath("albums") }

// AlbumDetailURL is the album detail endpoint for cid.
func (c *Client) AlbumDetailURL(cid string) *url.URL {
	return c.base.JoinPath("album", cid, "detail")
}

// SongsURL is the song list endpoint.
func (c *Client) SongsURL() *url.URL { return c.base.JoinPath("songs") }

// SongURL is the song detail endpoint for cid.
func (c *Client) SongURL(cid string) *url.URL {
	return c.base.JoinPath("song", cid)
}

// Albums fetches the album list.
func (c *Client) Albums(ctx context.Context) ([]Album, error) {
	u := c.AlbumsURL()
	var wire *[]wireAlbum
	if err := c.get(ctx, u, &wire); err != nil {
		return nil, err
	}
	if wire == nil {
		return nil, schemaErr(u, missing("data"))
	}
	albums := make([]Album, 0, len(*wire))
	for i, w := range *wire {
		album, err := w.convert(path("data").index(i))
		if err != nil {
			return nil, schemaErr(u, err)
		}
		albums = append(albums, album)
	}
	return albums, nil
}

// AlbumDetail fetches the detail of album cid.
func (c *Client) AlbumDetail(ctx context.Context, cid string) (AlbumDetail, error) {
	u := c.AlbumDetailURL(cid)
	var wire *wireAlbumDetail
	if err := c.get(ctx, u, &wire); err != nil {
		return AlbumDetail{}, err
	}
	if wire == nil {
		return AlbumDetail{}, schemaErr(u, missing("data"))
	}
	detail, err := wire.convert(path("data"))
	if err != nil {
		return AlbumDetail{}, schemaErr(u, err)
	}
	return detail, nil
}

// Songs fetches the song list.
func (c *Client) Songs(ctx context.Context) ([]Song, error) {
	u := c.SongsURL()
	var wire *wireSongList
	if err := c.get(ctx, u, &wire); err != nil {
		return nil, err
	}
	if wire == nil {
		return nil, schemaErr(u, missing("data"))
	}
	if wire.List == nil {
		return nil, schemaErr(u, missing("data.list"))
	}
	songs := make([]Song, 0, len(*wire.List))
	for i, w := range *wire.List {
		song, err := w.convert(path("data.list").index(i))
		if err != nil {
			return nil, schemaErr(u, err)
		}
		songs = append(songs, song)
	}
	return songs, nil
}

// Song fetches the detail of song cid.
func (c *Client) Song(ctx context.Context, cid string) (SongDetail, error) {
	u := c.SongURL(cid)
	var wire *wireSongDetail
	if err := c.get(ctx, u, &wire); err != nil {
		return SongDetail{}, err
	}
	if wire == nil {
		return SongDetail{}, schemaErr(u, missing("data"))
	}
	detail, err := wire.convert(path("data"))
	if err != nil {
		return SongDetail{}, schemaErr(u, err)
	}
	return detail, nil
}

// get fetches u, checks status and envelope, and decodes data into out.
func (c *Client) get(ctx context.Context, u *url.URL, out any) error {
	resp, err := c.doWithRetry(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.DebugContext(ctx, "api status rejected",
			logging.String("url", u.String()),
			logging.Int("status", resp.StatusCode),
			logging.String("body", strings.TrimSpace(string(body))),
		)
		return &StatusError{URL: u.String(), StatusCode: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &SchemaError{URL: u.String(), Field: "body", Reason: err.Error()}
	}
	if env.Code == nil {
		return &SchemaError{URL: u.String(), Field: "code", Reason: "is missing or null"}
	}
	if *env.Code != 0 {
		msg := ""
		if env.Msg != nil {
			msg = *env.Msg
		}
		return &APIError{URL: u.String(), Code: *env.Code, Msg: msg}
	}
	if env.Msg == nil {
		return &SchemaError{URL: u.String(), Field: "msg", Reason: "is missing or null"}
	}
	if len(env.Data) == 0 {
		return &SchemaError{URL: u.String(), Field: "data", Reason: "is missing"}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return schemaErr(u, decodeFieldError(err))
	}
	return nil
}

// doWithRetry executes a GET with exponential backoff. Network errors and
// 5xx responses are retried; everything else is returned to the caller.
func (c *Client) doWithRetry(ctx context.Context, u *url.URL) (*http.Response, error) {
	var lastErr error
	delay := c.retryDelay
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WarnContext(ctx, "retrying api request",
				logging.String("url", u.String()),
				logging.Int("attempt", attempt+1),
				logging.Duration("delay", delay),
				logging.Error(lastErr),
				logging.String(logging.FieldEventType, "api_retry"),
				logging.String(logging.FieldImpact, "metadata fetch delayed"),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay = min(delay*2, maxRetryDelay)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		c.logger.DebugContext(ctx, "api request", logging.String("url", u.String()), logging.Int("attempt", attempt+1))
		resp, err := c.http.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			continue
		}
		if resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		lastErr = &StatusError{URL: u.String(), StatusCode: resp.StatusCode}
	}

	var statusErr *StatusError
	if errors.As(lastErr, &statusErr) {
		return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
	}
	return nil, services.Wrap(services.ErrTransient, "api", "GET "+u.String(),
		fmt.Sprintf("failed after %d attempts", c.maxRetries+1), lastErr)
}

func schemaErr(u *url.URL, err error) error {
	var fe *fieldError
	if errors.As(err, &fe) {
		return &SchemaError{URL: u.String(), Field: fe.field, Reason: fe.reason}
	}
	return &SchemaError{URL: u.String(), Field: "data", Reason: err.Error()}
}

func decodeFieldError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := "data"
		if typeErr.Field != "" {
			field += "." + typeErr.Field
		}
		return &fieldError{field: field, reason: fmt.Sprintf("has type %s, want %s", typeErr.Value, typeErr.Type)}
	}
	return &fieldError{field: "data", reason: err.Error()}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
