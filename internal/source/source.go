// Package source loads billing documents as text from local paths, HTTP(S)
// URLs and Google Cloud Storage.
package source

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/boobootoo2/medbilldozer-sub000/internal/extract"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/worker"
)

// Source yields the documents at one location
type Source interface {
	Load(ctx context.Context) ([]worker.Input, error)
	Close() error
}

// Extensions are the file types a directory or bucket listing picks up
var Extensions = []string{".txt", ".md", ".html", ".htm"}

// Open picks a source for location: gs://bucket/prefix, http(s):// URL, or a
// local file or directory
func Open(ctx context.Context, location string, cfg model.SourcesConfig) (Source, error) {
	switch {
	case strings.HasPrefix(location, "gs://"):
		bucket, prefix, err := ParseGCSURL(location)
		if err != nil {
			return nil, err
		}
		return NewGCSSource(ctx, bucket, prefix, cfg.MaxBodyBytes)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewHTTPSource(location, NewFetcher(cfg)), nil
	default:
		return NewLocalSource(location), nil
	}
}

// Load is a convenience wrapper that opens, loads and closes
func Load(ctx context.Context, location string, cfg model.SourcesConfig) ([]worker.Input, error) {
	src, err := Open(ctx, location, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()
	return src.Load(ctx)
}

// supported reports whether name has a loadable extension
func supported(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// decode converts a document body to analyzable text. HTML is reduced to its
// visible text.
func decode(name, contentType string, body []byte) (string, error) {
	if extract.IsHTML(name) || strings.Contains(strings.ToLower(contentType), "html") {
		text, err := extract.VisibleText(string(body))
		if err != nil {
			return "", fmt.Errorf("html %s: %w", name, err)
		}
		return text, nil
	}
	return string(body), nil
}
