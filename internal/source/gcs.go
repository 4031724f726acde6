package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/boobootoo2/medbilldozer-sub000/internal/worker"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GCSSource reads supported objects under a bucket prefix.
// Credentials come from Application Default Credentials.
type GCSSource struct {
	client   *storage.Client
	bucket   string
	prefix   string
	maxBytes int64
}

// ParseGCSURL splits gs://bucket/prefix
func ParseGCSURL(raw string) (bucket, prefix string, err error) {
	rest := strings.TrimPrefix(raw, "gs://")
	if rest == raw || rest == "" {
		return "", "", fmt.Errorf("invalid GCS URL %q: want gs://bucket/prefix", raw)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid GCS URL %q: missing bucket", raw)
	}
	return bucket, prefix, nil
}

// NewGCSSource creates a bucket source
func NewGCSSource(ctx context.Context, bucket, prefix string, maxBytes int64) (*GCSSource, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSSource{client: client, bucket: bucket, prefix: prefix, maxBytes: maxBytes}, nil
}

// Load lists the prefix and reads every supported object. A prefix naming a
// single object loads just that object.
func (s *GCSSource) Load(ctx context.Context) ([]worker.Input, error) {
	bkt := s.client.Bucket(s.bucket)
	it := bkt.Objects(ctx, &storage.Query{Prefix: s.prefix})

	var inputs []worker.Input
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", s.bucket, s.prefix, err)
		}
		if strings.HasSuffix(attrs.Name, "/") || (!supported(attrs.Name) && attrs.Name != s.prefix) {
			continue
		}

		in, err := s.read(ctx, bkt, attrs.Name, attrs.ContentType)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func (s *GCSSource) read(ctx context.Context, bkt *storage.BucketHandle, name, contentType string) (worker.Input, error) {
	r, err := bkt.Object(name).NewReader(ctx)
	if err != nil {
		return worker.Input{}, fmt.Errorf("open gs://%s/%s: %w", s.bucket, name, err)
	}
	defer func() { _ = r.Close() }()

	var body []byte
	if s.maxBytes > 0 {
		body, err = io.ReadAll(io.LimitReader(r, s.maxBytes))
	} else {
		body, err = io.ReadAll(r)
	}
	if err != nil {
		return worker.Input{}, fmt.Errorf("read gs://%s/%s: %w", s.bucket, name, err)
	}

	text, err := decode(name, contentType, body)
	if err != nil {
		return worker.Input{}, err
	}
	return worker.Input{Name: path.Base(name), Text: text}, nil
}

// Close releases the storage client
func (s *GCSSource) Close() error {
	return s.client.Close()
}

// UploadGCS writes data to a gs:// object. An existing object is left
// untouched unless overwrite is set.
func UploadGCS(ctx context.Context, rawURL string, data []byte, contentType string, overwrite bool) error {
	bucket, name, err := ParseGCSURL(rawURL)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("invalid GCS URL %q: missing object name", rawURL)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("storage.NewClient: %w", err)
	}
	defer func() { _ = client.Close() }()

	obj := client.Bucket(bucket).Object(name)
	if !overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", rawURL, err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			zap.L().Warn("object already exists, not overwritten", zap.String("url", rawURL))
			return nil
		}
		return fmt.Errorf("finalize %s: %w", rawURL, err)
	}
	return nil
}
