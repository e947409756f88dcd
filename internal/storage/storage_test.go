package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObjects struct {
	objects map[string][]byte
}

func (m *memObjects) ListObjects(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memObjects) DownloadObject(_ context.Context, key, destPath string) error {
	return os.WriteFile(destPath, m.objects[key], 0o644)
}

func (m *memObjects) UploadObject(_ context.Context, key string, data []byte) error {
	m.objects[key] = data
	return nil
}

func TestReportArchiveUpload(t *testing.T) {
	store := &memObjects{objects: map[string][]byte{}}
	archive := NewReportArchive(store, "/runs/")
	at := time.Date(2025, 10, 31, 23, 0, 0, 0, time.UTC)

	local := filepath.Join(t.TempDir(), "run-7.csv")
	require.NoError(t, os.WriteFile(local, []byte("metric,value\nsales,3\n"), 0o644))

	key, err := archive.UploadFile(context.Background(), at, local)
	require.NoError(t, err)
	assert.Equal(t, "runs/2025-10-31/run-7.csv", key)
	assert.Equal(t, "metric,value\nsales,3\n", string(store.objects[key]))

	listed, err := archive.List(context.Background(), at)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, key, listed[0].Key)
}

func TestReportArchiveMissingFile(t *testing.T) {
	archive := NewReportArchive(&memObjects{objects: map[string][]byte{}}, "runs")
	_, err := archive.UploadFile(context.Background(), time.Now(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
