package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioRelay stores uploads in a MinIO/S3-compatible bucket. A short random
// suffix is folded into each key so concurrent uploads of coincidentally
// equal names cannot clobber each other's bytes; the metadata record keeps
// whichever handle this relay returns.
type MinioRelay struct {
	client        *minio.Client
	bucket        string
	presignExpiry time.Duration
}

// NewMinioRelay connects to MinIO and ensures the bucket exists.
func NewMinioRelay(endpoint, accessKey, secretKey, bucket string, useSSL bool, presignExpiry time.Duration) (*MinioRelay, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	if presignExpiry <= 0 {
		presignExpiry = 15 * time.Minute
	}
	return &MinioRelay{client: client, bucket: bucket, presignExpiry: presignExpiry}, nil
}

// Store uploads the object under a suffixed key and returns its handle.
func (m *MinioRelay) Store(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Handle, error) {
	key = suffixKey(key)
	if _, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return Handle{}, fmt.Errorf("put object: %w", err)
	}
	return Handle{URL: m.objectURL(key), Key: key}, nil
}

// Delete removes the object.
func (m *MinioRelay) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Resolve mints a pre-signed GET URL for redirect.
func (m *MinioRelay) Resolve(ctx context.Context, key string) (Target, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.presignExpiry, nil)
	if err != nil {
		return Target{}, fmt.Errorf("presign get: %w", err)
	}
	return Target{RedirectURL: url.String()}, nil
}

func (m *MinioRelay) objectURL(key string) string {
	scheme := "http"
	if m.client.EndpointURL().Scheme != "" {
		scheme = m.client.EndpointURL().Scheme
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, m.client.EndpointURL().Host, m.bucket, key)
}

// suffixKey inserts a short random fragment before the extension.
func suffixKey(key string) string {
	ext := path.Ext(key)
	stem := strings.TrimSuffix(key, ext)
	frag := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return stem + "-" + frag + ext
}
