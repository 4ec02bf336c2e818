package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Config contains the information required to talk to an object store.
type Config struct {
	Provider  string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Visibility is the canned ACL applied to stored objects.
type Visibility string

const (
	Private    Visibility = "private"
	PublicRead Visibility = "public-read"
)

type PutOptions struct {
	ContentType string
	Visibility  Visibility
	Metadata    map[string]string
}

// Client is the blob store both generators read videos from and write artifacts to.
type Client interface {
	// Fetch downloads bucket/key into the local file dest.
	Fetch(ctx context.Context, bucket, key, dest string) error
	// Store uploads the local file src to bucket/key.
	Store(ctx context.Context, src, bucket, key string, opts PutOptions) error
	// Put streams size bytes from r to bucket/key.
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) error
	EnsureBuckets(ctx context.Context, buckets ...string) error
	Close() error
}

// New creates an object store client based on the given configuration.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Provider {
	case "minio":
		return newMinioClient(cfg)
	case "s3":
		return newS3Client(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported object store provider: %s", cfg.Provider)
	}
}

// splitEndpoint accepts endpoints with or without a scheme; an explicit
// https scheme forces TLS.
func splitEndpoint(endpoint string, useSSL bool) (host string, secure bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), useSSL
	default:
		return endpoint, useSSL
	}
}
