// Package storage uploads finished run reports to S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the report archive needs.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

// ReportArchive stores report files under a key prefix, one folder per day.
type ReportArchive struct {
	store  ObjectStorage
	prefix string
}

func NewReportArchive(store ObjectStorage, prefix string) *ReportArchive {
	return &ReportArchive{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns "<prefix>/<yyyy-mm-dd>/<name>".
func (a *ReportArchive) Key(at time.Time, name string) string {
	return path.Join(a.prefix, at.UTC().Format(time.DateOnly), name)
}

// UploadFile uploads a local report file and returns its object key.
func (a *ReportArchive) UploadFile(ctx context.Context, at time.Time, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("failed reading %s: %w", localPath, err)
	}

	key := a.Key(at, filepath.Base(localPath))
	if err := a.store.UploadObject(ctx, key, data); err != nil {
		return "", fmt.Errorf("failed uploading %s: %w", key, err)
	}

	log.Info().Str("key", key).Int("bytes", len(data)).Msg("report uploaded")
	return key, nil
}

// List returns the archived reports of one day.
func (a *ReportArchive) List(ctx context.Context, day time.Time) ([]ObjectInfo, error) {
	return a.store.ListObjects(ctx, a.Key(day, "")+"/")
}
