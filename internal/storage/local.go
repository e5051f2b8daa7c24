package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// LocalStore keeps artifacts on the local filesystem. Used in development
// and tests where no bucket is available.
type LocalStore struct {
	root   string
	bucket string
	log    zerolog.Logger
}

func NewLocalStore(root, bucket string, log zerolog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	if bucket == "" {
		bucket = "local"
	}
	return &LocalStore{
		root:   root,
		bucket: bucket,
		log:    log.With().Str("component", "local_store").Logger(),
	}, nil
}

func (s *LocalStore) Bucket() string { return s.bucket }

func (s *LocalStore) Upload(ctx context.Context, localPath, jobID string) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	key := ObjectKey(jobID, localPath)
	dstPath := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return "", 0, fmt.Errorf("create object dir: %w", err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", dstPath, err)
	}
	size, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		return "", 0, fmt.Errorf("copy artifact: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", 0, err
	}

	s.log.Info().Str("object_key", key).Int64("size_bytes", size).Msg("artifact stored")
	return key, size, nil
}

func (s *LocalStore) CleanupLocal(path string) bool {
	return cleanupLocal(s.log, path)
}
