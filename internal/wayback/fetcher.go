package wayback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/archivist/internal/model"
	"github.com/nao1215/archivist/internal/scheduler"
)

// Defaults for the Fetcher.
const (
	DefaultUserAgent         = "archivist/1.0 (personal archive; +https://github.com/nao1215/archivist)"
	DefaultMaxRetries        = 3
	DefaultRetryDelay        = 5 * time.Second
	DefaultRetryAfter        = 60 * time.Second
	DefaultMaxBodySize int64 = 50 * 1024 * 1024
	DefaultTimeout           = 30 * time.Second
)

// Archive auth cookie names.
const (
	CookieLoggedInUser = "logged-in-user"
	CookieLoggedInSig  = "logged-in-sig"
)

// Credentials are the archive login cookies. Logged-in sessions get more
// lenient rate limits.
type Credentials struct {
	User string
	Sig  string
}

// Valid reports whether both cookies are present.
func (c Credentials) Valid() bool {
	return c.User != "" && c.Sig != ""
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc = scheduler.SleepFunc

// Response is a successful fetch.
type Response struct {
	// URL is the replay URL that was fetched.
	URL string

	// Body is the response body, capped at the maximum body size.
	Body []byte

	// ContentType is the Content-Type header.
	ContentType string

	// StatusCode is the final HTTP status.
	StatusCode int

	// Attempts is the number of requests made, including the successful one.
	Attempts int
}

// Fetcher retrieves captures from the archive.
type Fetcher struct {
	client      *http.Client
	baseURL     string
	userAgent   string
	maxRetries  int
	retryDelay  time.Duration
	retryAfter  time.Duration
	maxBodySize int64
	credentials Credentials
	sleep       SleepFunc
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithBaseURL sets the replay endpoint. Tests point it at httptest servers.
func WithBaseURL(base string) Option {
	return func(f *Fetcher) {
		f.baseURL = strings.TrimSuffix(base, "/")
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxRetries sets the attempt budget per fetch.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithRetryDelay sets the linear backoff base delay.
func WithRetryDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.retryDelay = d
	}
}

// WithDefaultRetryAfter sets the cooldown used when a 429 has no Retry-After.
func WithDefaultRetryAfter(d time.Duration) Option {
	return func(f *Fetcher) {
		f.retryAfter = d
	}
}

// WithMaxBodySize caps the bytes read from a response.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithCredentials attaches the archive login cookies to every request.
func WithCredentials(c Credentials) Option {
	return func(f *Fetcher) {
		f.credentials = c
	}
}

// WithSleep replaces the sleep function used for backoff and cooldowns.
func WithSleep(sleep SleepFunc) Option {
	return func(f *Fetcher) {
		f.sleep = sleep
	}
}

// WithClock replaces the clock used to interpret HTTP-date Retry-After values.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{Timeout: DefaultTimeout},
		baseURL:     DefaultBaseURL,
		userAgent:   DefaultUserAgent,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		retryAfter:  DefaultRetryAfter,
		maxBodySize: DefaultMaxBodySize,
		sleep:       scheduler.Sleep,
		now:         time.Now,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.maxRetries < 1 {
		f.maxRetries = 1
	}
	return f
}

// URL returns the replay URL the Fetcher would request.
func (f *Fetcher) URL(timestamp string, kind model.AssetKind, original string) string {
	return BuildURL(f.baseURL, timestamp, kind, original)
}

// Fetch retrieves original as captured at timestamp, rendered for kind.
func (f *Fetcher) Fetch(ctx context.Context, timestamp string, kind model.AssetKind, original string) (*Response, error) {
	return f.FetchURL(ctx, f.URL(timestamp, kind, original))
}

// FetchURL retrieves a replay URL with the retry policy applied.
func (f *Fetcher) FetchURL(ctx context.Context, replayURL string) (*Response, error) {
	var (
		lastStatus int
		lastErr    error
	)

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		resp, err := f.do(ctx, replayURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastStatus, lastErr = 0, err
			f.logger.Debug("request error", "url", replayURL, "attempt", attempt, "error", err)
			if attempt < f.maxRetries {
				if err := f.sleep(ctx, time.Duration(attempt)*f.retryDelay); err != nil {
					return nil, err
				}
			}
			continue
		}

		switch {
		case resp.tooLarge:
			return nil, &FetchError{
				URL:        replayURL,
				Attempts:   attempt,
				StatusCode: resp.status,
				Err:        fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.maxBodySize),
			}

		case resp.status >= 200 && resp.status < 300:
			return &Response{
				URL:         replayURL,
				Body:        resp.body,
				ContentType: resp.contentType,
				StatusCode:  resp.status,
				Attempts:    attempt,
			}, nil

		case resp.status == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, replayURL)

		case resp.status == http.StatusTooManyRequests:
			wait := f.parseRetryAfter(resp.retryAfter)
			lastStatus, lastErr = resp.status, nil
			f.logger.Warn("rate limited", "url", replayURL, "attempt", attempt, "wait", wait.String())
			if attempt < f.maxRetries {
				if err := f.sleep(ctx, wait); err != nil {
					return nil, err
				}
			}

		default:
			lastStatus, lastErr = resp.status, nil
			f.logger.Debug("unexpected status", "url", replayURL, "attempt", attempt, "status", resp.status)
			if attempt < f.maxRetries {
				if err := f.sleep(ctx, time.Duration(attempt)*f.retryDelay); err != nil {
					return nil, err
				}
			}
		}
	}

	return nil, &FetchError{
		URL:        replayURL,
		Attempts:   f.maxRetries,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

// rawResponse is what one attempt yields.
type rawResponse struct {
	status      int
	contentType string
	retryAfter  string
	body        []byte
	tooLarge    bool
}

// do performs one request.
func (f *Fetcher) do(ctx context.Context, replayURL string) (*rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, replayURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	if f.credentials.Valid() {
		req.AddCookie(&http.Cookie{Name: CookieLoggedInUser, Value: f.credentials.User})
		req.AddCookie(&http.Cookie{Name: CookieLoggedInSig, Value: f.credentials.Sig})
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &rawResponse{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		retryAfter:  resp.Header.Get("Retry-After"),
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		out.body, err = io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		if int64(len(out.body)) > f.maxBodySize {
			out.body, out.tooLarge = nil, true
		}
	} else {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	}
	return out, nil
}

// parseRetryAfter interprets a Retry-After header as seconds or an HTTP-date.
func (f *Fetcher) parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return f.retryAfter
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(f.now()); d > 0 {
			return d
		}
		return 0
	}
	return f.retryAfter
}
