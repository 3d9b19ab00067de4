package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"packsync/core/storage"
	"packsync/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestArchiveStore(t *testing.T) {
	t.Run("UploadsSnapshot", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "seat-snapshots").Return(true, nil)
		client.On("PutObject", mock.Anything, "seat-snapshots", mock.MatchedBy(func(name string) bool {
			return strings.HasPrefix(name, "snapshots/perf-1/") && strings.HasSuffix(name, ".json")
		}), mock.Anything, mock.Anything, mock.Anything).Return(minio.UploadInfo{}, nil)

		archive := storage.NewArchive(client, "seat-snapshots")
		name, err := archive.Store(context.Background(), "perf-1", map[string]string{"row": "A"})

		assert.NoError(t, err)
		assert.Contains(t, name, "snapshots/perf-1/")
		client.AssertExpectations(t)
	})

	t.Run("CreatesMissingBucket", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "seat-snapshots").Return(false, nil)
		client.On("MakeBucket", mock.Anything, "seat-snapshots", mock.Anything).Return(nil)
		client.On("PutObject", mock.Anything, "seat-snapshots", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(minio.UploadInfo{}, nil)

		archive := storage.NewArchive(client, "seat-snapshots")
		_, err := archive.Store(context.Background(), "perf-1", []string{})

		assert.NoError(t, err)
		client.AssertExpectations(t)
	})
}

func TestArchiveLoad(t *testing.T) {
	client := new(mocks.Client)
	body := io.NopCloser(strings.NewReader(`{"performance":"perf-1"}`))
	client.On("GetObject", mock.Anything, "seat-snapshots", "snapshots/perf-1/x.json", mock.Anything).Return(body, nil)

	archive := storage.NewArchive(client, "seat-snapshots")
	var out map[string]string
	err := archive.Load(context.Background(), "snapshots/perf-1/x.json", &out)

	assert.NoError(t, err)
	assert.Equal(t, "perf-1", out["performance"])
}
