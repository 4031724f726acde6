package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// ErrDisallowed is returned when robots.txt forbids fetching a document URL
var ErrDisallowed = errors.New("disallowed by robots.txt")

// robotsPolicy answers robots.txt questions for the fetcher, one lookup per
// scheme and host
type robotsPolicy struct {
	client *http.Client
	agent  string

	mu    sync.Mutex
	hosts map[string]*robotstxt.RobotsData
}

func newRobotsPolicy(client *http.Client, userAgent string) *robotsPolicy {
	return &robotsPolicy{
		client: client,
		agent:  productToken(userAgent),
		hosts:  make(map[string]*robotstxt.RobotsData),
	}
}

// allowed reports whether rawURL may be fetched. An unreachable or broken
// robots.txt allows the fetch.
func (p *robotsPolicy) allowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse URL: %w", err)
	}
	origin := parsed.Scheme + "://" + parsed.Host

	data, err := p.lookup(ctx, origin)
	if err != nil {
		zap.L().Warn("robots.txt unavailable, allowing fetch", zap.String("origin", origin), zap.Error(err))
		return true, nil
	}

	target := parsed.EscapedPath()
	if target == "" {
		target = "/"
	}
	return data.TestAgent(target, p.agent), nil
}

func (p *robotsPolicy) lookup(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	p.mu.Lock()
	data, ok := p.hosts[origin]
	p.mu.Unlock()
	if ok {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.agent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	p.mu.Lock()
	p.hosts[origin] = data
	p.mu.Unlock()
	return data, nil
}

// productToken reduces "medbilldozer/1.0 (+url)" to "medbilldozer" for group matching
func productToken(ua string) string {
	fields := strings.Fields(ua)
	if len(fields) == 0 {
		return "*"
	}
	return strings.SplitN(fields[0], "/", 2)[0]
}
