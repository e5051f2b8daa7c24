package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// GCSStore uploads job artifacts to a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	log    zerolog.Logger
}

func NewGCSStore(ctx context.Context, bucket string, log zerolog.Logger, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{
		client: client,
		bucket: bucket,
		log:    log.With().Str("component", "gcs_store").Logger(),
	}, nil
}

func (s *GCSStore) Bucket() string { return s.bucket }

func (s *GCSStore) Upload(ctx context.Context, localPath, jobID string) (string, int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("stat %s: %w", localPath, err)
	}

	key := ObjectKey(jobID, localPath)

	uploadCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(uploadCtx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", 0, fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", 0, fmt.Errorf("close writer for %s: %w", key, err)
	}

	s.log.Info().
		Str("object_key", key).
		Int64("size_bytes", info.Size()).
		Msg("artifact uploaded")
	return key, info.Size(), nil
}

func (s *GCSStore) CleanupLocal(path string) bool {
	return cleanupLocal(s.log, path)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
