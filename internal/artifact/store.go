// Package artifact persists generated quote PDFs in S3-compatible object
// storage, keyed by (quoteID, version).
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Store struct {
	client *minio.Client
	bucket string
}

func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func objectName(quoteID string, version int) string {
	return fmt.Sprintf("quotes/%s/v%d.pdf", quoteID, version)
}

// Put stores one version's PDF and returns its object name.
func (s *Store) Put(ctx context.Context, quoteID string, version int, data []byte) (string, error) {
	name := objectName(quoteID, version)
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("put artifact %s: %w", name, err)
	}
	return name, nil
}

// Get retrieves one version's PDF.
func (s *Store) Get(ctx context.Context, quoteID string, version int) ([]byte, error) {
	name := objectName(quoteID, version)
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	return data, nil
}

// PresignedURL returns a time-limited download link for one version; the
// link becomes Quote.pdfUrl and the outbound message attachment.
func (s *Store) PresignedURL(ctx context.Context, quoteID string, version int, expiry time.Duration) (string, error) {
	name := objectName(quoteID, version)
	u, err := s.client.PresignedGetObject(ctx, s.bucket, name, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign artifact %s: %w", name, err)
	}
	return u.String(), nil
}
