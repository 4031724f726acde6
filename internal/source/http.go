package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/util"
	"github.com/boobootoo2/medbilldozer-sub000/internal/worker"
	"go.uber.org/zap"
)

const fetchAttempts = 3

// fetchSleepFunc is replaced in tests
var fetchSleepFunc = time.Sleep

// errRedirectLimit stops redirect chains longer than maxRedirects
var errRedirectLimit = errors.New("too many redirects")

const maxRedirects = 3

// StatusError is a non-2xx response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "unexpected status: " + e.Status
}

// Fetcher downloads documents over HTTP(S), e.g. patient portal exports
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *robotsPolicy // nil skips robots.txt checks
}

// FetchResult is one downloaded document
type FetchResult struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// NewFetcher creates a fetcher from the sources configuration
func NewFetcher(cfg model.SourcesConfig) *Fetcher {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	f := &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("%w: stopped after %d", errRedirectLimit, maxRedirects)
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
	}
	if cfg.RespectRobots {
		f.robots = newRobotsPolicy(f.httpClient, cfg.UserAgent)
	}
	return f
}

// Fetch performs one GET
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil {
		ok, err := f.robots.allowed(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	var r io.Reader = resp.Body
	if f.maxBytes > 0 {
		r = io.LimitReader(resp.Body, f.maxBytes)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// FetchWithRetry retries transient failures (5xx, 429, connection errors)
// with linear backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || attempt == fetchAttempts || ctx.Err() != nil {
			break
		}
		zap.L().Warn("fetch failed, retrying",
			zap.String("url", rawURL), zap.Int("attempt", attempt), zap.Error(err))
		fetchSleepFunc(time.Duration(attempt) * time.Second)
	}
	return nil, lastErr
}

func isRetryableFetchError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var ue *url.Error
	if !errors.As(err, &ue) {
		return false
	}
	return !errors.Is(err, errRedirectLimit) && !errors.Is(err, context.Canceled)
}

// HTTPSource loads one document from a URL
type HTTPSource struct {
	url     string
	fetcher *Fetcher
}

// NewHTTPSource creates a URL source
func NewHTTPSource(rawURL string, fetcher *Fetcher) *HTTPSource {
	return &HTTPSource{url: rawURL, fetcher: fetcher}
}

// Load downloads and decodes the document
func (s *HTTPSource) Load(ctx context.Context) ([]worker.Input, error) {
	result, err := s.fetcher.FetchWithRetry(ctx, s.url)
	if err != nil {
		return nil, err
	}
	name := documentName(result.FinalURL)
	text, err := decode(name, result.ContentType, result.Body)
	if err != nil {
		return nil, err
	}
	return []worker.Input{{Name: name, Text: text}}, nil
}

// Close is a no-op
func (s *HTTPSource) Close() error {
	return nil
}

// documentName uses the last path segment, or the host for bare URLs
func documentName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	p := strings.Trim(parsed.Path, "/")
	if p == "" {
		return parsed.Host
	}
	return path.Base(p)
}
