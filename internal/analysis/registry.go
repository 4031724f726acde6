package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// smartOrder is the preference order for the "smart" default
var smartOrder = []string{KeyEnsemble, KeyMedGemma, KeyOpenAI, KeyGemini, KeyAnthropic}

// Registry maps provider keys to healthy providers. It is built once at
// startup and read-only afterwards.
type Registry struct {
	providers map[string]Provider
	excluded  []string
}

// NewRegistry health-checks candidates concurrently and registers the healthy
// ones. local is registered unconditionally.
func NewRegistry(ctx context.Context, local Provider, candidates ...Provider) *Registry {
	healthy := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range candidates {
		if p == nil {
			continue
		}
		g.Go(func() error {
			healthy[i] = p.HealthCheck(gctx)
			return nil
		})
	}
	_ = g.Wait()

	r := &Registry{providers: make(map[string]Provider)}
	for i, p := range candidates {
		if p == nil {
			continue
		}
		if !healthy[i] {
			zap.L().Warn("analysis provider failed health check, excluded", zap.String("provider", p.Name()))
			r.excluded = append(r.excluded, p.Name())
			continue
		}
		r.providers[p.Name()] = p
	}

	if local != nil {
		r.providers[local.Name()] = local
	}
	return r
}

// Get returns the provider registered under key
func (r *Registry) Get(key string) (Provider, bool) {
	p, ok := r.providers[key]
	return p, ok
}

// Local returns the always-present local provider
func (r *Registry) Local() Provider {
	return r.providers[KeyLocal]
}

// Keys returns the registered keys, sorted
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.providers))
	for k := range r.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Excluded returns the keys that failed their health check
func (r *Registry) Excluded() []string {
	return append([]string(nil), r.excluded...)
}

// Select resolves key. "" and "smart" pick the first registered provider in
// smart order, else local.
func (r *Registry) Select(key string) (Provider, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || key == KeySmart {
		for _, k := range smartOrder {
			if p, ok := r.providers[k]; ok {
				return p, nil
			}
		}
		return r.Local(), nil
	}

	if p, ok := r.providers[key]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s (registered: %s)", ErrUnknownProvider, key, strings.Join(r.Keys(), ", "))
}
