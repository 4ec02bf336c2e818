package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioClient struct {
	client *minio.Client
}

func newMinioClient(cfg Config) (Client, error) {
	host, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	cl, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &minioClient{client: cl}, nil
}

func (m *minioClient) Fetch(ctx context.Context, bucket, key, dest string) error {
	if err := m.client.FGetObject(ctx, bucket, key, dest, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (m *minioClient) Store(ctx context.Context, src, bucket, key string, opts PutOptions) error {
	_, err := m.client.FPutObject(ctx, bucket, key, src, putOptions(opts))
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (m *minioClient) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) error {
	_, err := m.client.PutObject(ctx, bucket, key, r, size, putOptions(opts))
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func putOptions(opts PutOptions) minio.PutObjectOptions {
	meta := make(map[string]string, len(opts.Metadata)+1)
	for k, v := range opts.Metadata {
		meta[k] = v
	}
	if opts.Visibility != "" {
		// minio-go forwards x-amz-acl as a request header rather than user metadata
		meta["x-amz-acl"] = string(opts.Visibility)
	}
	return minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: meta,
	}
}

func (m *minioClient) EnsureBuckets(ctx context.Context, buckets ...string) error {
	for _, bucket := range buckets {
		exists, err := m.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func (m *minioClient) Close() error {
	return nil
}
