// Package portal logs in to the signal dashboard and reads its post cards.
package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"

	"github.com/Minionjack/Trade-info-scraper/model"
)

var (
	ErrAuth           = errors.New("login rejected")
	ErrSessionExpired = errors.New("session expired")
	ErrSessionClosed  = errors.New("session closed")
	ErrTooLarge       = errors.New("response too large")
)

const DefaultMaxPageBytes = 5 << 20

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

type Credentials struct {
	Email    string
	Password string
}

type Client struct {
	LoginURL     string
	DashboardURL string
	Timeout      time.Duration
	UserAgent    string
	Selectors    Selectors
	MaxPageBytes int64
	Log          *slog.Logger
}

func New(loginURL, dashboardURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		LoginURL:     loginURL,
		DashboardURL: dashboardURL,
		Timeout:      timeout,
		UserAgent:    defaultUserAgent,
		Selectors:    DefaultSelectors(),
		MaxPageBytes: DefaultMaxPageBytes,
	}
}

// Session is an authenticated cookie jar. It is not safe for use by more than
// one cycle at a time.
type Session struct {
	c        *Client
	http     *resty.Client
	dashPath string

	mu     sync.Mutex
	closed bool
}

// Connect submits the login form and returns a session once the site lands on
// the dashboard.
func (c *Client) Connect(ctx context.Context, creds Credentials) (*Session, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: missing credentials", ErrAuth)
	}
	dash, err := url.Parse(c.DashboardURL)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard url: %w", err)
	}
	if strings.Trim(dash.Path, "/") == "" {
		return nil, fmt.Errorf("dashboard url %q has no path", c.DashboardURL)
	}

	hc := resty.New().
		SetTimeout(c.Timeout).
		SetHeader("User-Agent", c.userAgent())

	form := map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}
	page, err := hc.R().SetContext(ctx).SetDoNotParseResponse(true).Get(c.LoginURL)
	if err != nil {
		return nil, fmt.Errorf("fetch login page: %w", err)
	}
	if page.StatusCode() == http.StatusOK {
		body, err := readLimited(page, c.maxPageBytes())
		if err != nil {
			return nil, fmt.Errorf("read login page: %w", err)
		}
		if token := csrfToken(body); token != "" {
			form["_token"] = token
		}
	} else {
		discard(page)
	}

	resp, err := hc.R().SetContext(ctx).SetDoNotParseResponse(true).SetFormData(form).Post(c.LoginURL)
	if err != nil {
		return nil, fmt.Errorf("submit login: %w", err)
	}
	discard(resp)
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode())
	}
	if !strings.Contains(finalURL(resp).Path, dash.Path) {
		return nil, fmt.Errorf("%w: landed on %s", ErrAuth, finalURL(resp).Path)
	}

	return &Session{c: c, http: hc, dashPath: dash.Path}, nil
}

// FetchBatch returns every post card currently on the dashboard. Cards with a
// missing title, body or image element are logged and left out.
func (s *Session) FetchBatch(ctx context.Context) ([]model.RawPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	sel, err := s.c.Selectors.compile()
	if err != nil {
		return nil, fmt.Errorf("post card selectors: %w", err)
	}

	resp, err := s.http.R().SetContext(ctx).SetDoNotParseResponse(true).Get(s.c.DashboardURL)
	if err != nil {
		return nil, fmt.Errorf("fetch dashboard: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		discard(resp)
		return nil, fmt.Errorf("dashboard status %d", resp.StatusCode())
	}
	page := finalURL(resp)
	if !strings.Contains(page.Path, s.dashPath) {
		discard(resp)
		return nil, fmt.Errorf("%w: redirected to %s", ErrSessionExpired, page.Path)
	}
	body, err := readLimited(resp, s.c.maxPageBytes())
	if err != nil {
		return nil, fmt.Errorf("read dashboard: %w", err)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse dashboard: %w", err)
	}
	posts, skipped := sel.parseCards(doc, page)
	for _, err := range skipped {
		s.c.logger().Warn("unreadable post card", "err", err)
	}
	return posts, nil
}

// Close drops the session cookies. Further fetches fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.http.SetCookieJar(nil)
	return nil
}

func (c *Client) userAgent() string {
	if c.UserAgent == "" {
		return defaultUserAgent
	}
	return c.UserAgent
}

func (c *Client) maxPageBytes() int64 {
	if c.MaxPageBytes <= 0 {
		return DefaultMaxPageBytes
	}
	return c.MaxPageBytes
}

func (c *Client) logger() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}

// finalURL is the URL of the last request after redirects.
func finalURL(resp *resty.Response) *url.URL {
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		return resp.RawResponse.Request.URL
	}
	return &url.URL{}
}
