// Package storage handles artifact handoff to object storage and cleanup
// of local intermediates.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// ObjectStore receives the final artifact of a completed job.
type ObjectStore interface {
	// Upload stores the local file under a job-scoped key and returns the
	// key and the file size in bytes.
	Upload(ctx context.Context, localPath, jobID string) (objectKey string, sizeBytes int64, err error)
	Bucket() string
	// CleanupLocal removes a local intermediate file. A missing file counts
	// as cleaned.
	CleanupLocal(path string) bool
}

// ObjectKey builds the storage key for a job artifact: <jobID>/<jobID><ext>.
func ObjectKey(jobID, localPath string) string {
	return fmt.Sprintf("%s/%s%s", jobID, jobID, filepath.Ext(localPath))
}

func cleanupLocal(log zerolog.Logger, path string) bool {
	if path == "" {
		return true
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return true
		}
		log.Warn().Err(err).Str("path", path).Msg("failed to remove local file")
		return false
	}
	log.Info().Str("path", path).Msg("removed local file")
	return true
}
