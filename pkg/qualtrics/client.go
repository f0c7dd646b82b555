package qualtrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/qualclient/pkg/httpclient"
)

const (
	// AuthSchemeToken sends the token in the X-API-TOKEN header.
	AuthSchemeToken = "token"
	// AuthSchemeBearer sends the token as an Authorization bearer credential.
	AuthSchemeBearer = "bearer"

	defaultPollInterval  = 5 * time.Second
	defaultExportTimeout = 10 * time.Minute
	defaultHTTPTimeout   = 60 * time.Second

	surveysPath     = "surveys"
	definitionsPath = "survey-definitions/"
	exportsPath     = "responseexports/"
)

// Config carries the credentials and polling policy for a Client.
type Config struct {
	Token         string
	BaseURL       string
	AuthScheme    string
	PollInterval  time.Duration
	ExportTimeout time.Duration
	HTTPTimeout   time.Duration
}

// Client issues authenticated calls against the Qualtrics v3 API.
// A Client holds no per-call state and may be reused sequentially.
type Client struct {
	cfg     Config
	baseURL string
	http    httpclient.Client
	log     Logger
	now     func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the resty-backed transport.
func WithHTTPClient(hc httpclient.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for export progress.
func WithLogger(log Logger) Option {
	return func(c *Client) { c.log = ensureLogger(log) }
}

// WithClock overrides time.Now, used for export endDate and the poll deadline.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.AuthScheme = strings.ToLower(strings.TrimSpace(cfg.AuthScheme))

	if cfg.Token == "" {
		return nil, errors.New("qualtrics api token is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("qualtrics api url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid qualtrics api url %q", cfg.BaseURL)
	}
	switch cfg.AuthScheme {
	case "":
		cfg.AuthScheme = AuthSchemeToken
	case AuthSchemeToken, AuthSchemeBearer:
	default:
		return nil, fmt.Errorf("unsupported auth scheme %q", cfg.AuthScheme)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = defaultExportTimeout
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}

	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	c := &Client{
		cfg:     cfg,
		baseURL: base,
		log:     noopLogger{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.NewRestyClient(cfg.HTTPTimeout)
	}
	return c, nil
}

// headers builds the auth and content headers sent on every call.
func (c *Client) headers() map[string]string {
	h := map[string]string{
		"Content-Type":  "application/json",
		"Cache-Control": "no-cache",
	}
	if c.cfg.AuthScheme == AuthSchemeBearer {
		h["Authorization"] = "Bearer " + c.cfg.Token
	} else {
		h["X-API-TOKEN"] = c.cfg.Token
	}
	return h
}

func (c *Client) endpoint(path string, segments ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString(path)
	for _, s := range segments {
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// getJSON issues a GET and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	resp, err := c.http.Get(ctx, target, c.headers())
	if err != nil {
		return fmt.Errorf("GET %s: %w", target, err)
	}
	return decodeResponse(http.MethodGet, target, resp, out)
}

// postJSON issues a POST with a JSON body and decodes a 2xx body into out.
func (c *Client) postJSON(ctx context.Context, target string, body, out any) error {
	resp, err := c.http.Post(ctx, target, c.headers(), body)
	if err != nil {
		return fmt.Errorf("POST %s: %w", target, err)
	}
	return decodeResponse(http.MethodPost, target, resp, out)
}

func decodeResponse(method, target string, resp httpclient.Response, out any) error {
	if !isSuccess(resp.StatusCode()) {
		return newAPIError(method, target, resp.StatusCode(), resp.Body())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &ParseError{Op: method + " " + target, Err: fmt.Errorf("decode json: %w", err)}
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
