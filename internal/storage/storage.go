// Package storage puts uploaded files into an S3-compatible object store
// and hands back the public URL they are served from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	DriverS3    = "s3"
	DriverMinIO = "minio"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// Store is an object store addressed by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Config holds object storage settings. An empty Driver disables uploads.
type Config struct {
	Driver    string
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PublicURL string
}

// New returns the store selected by cfg.Driver, or nil when storage is not
// configured.
func New(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "":
		return nil, nil
	case DriverS3:
		return NewS3(cfg), nil
	case DriverMinIO:
		return NewMinIO(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// KeyFromURL recovers the object key from a URL previously returned by
// s.URL. The second result is false for URLs that point elsewhere.
func KeyFromURL(s Store, url string) (string, bool) {
	if s == nil {
		return "", false
	}
	prefix := s.URL("")
	if !strings.HasPrefix(url, prefix) || len(url) == len(prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
