package storage

import (
	"context"
	"strings"
	"testing"

	"storefront/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_UploadListExistsDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	resp, err := store.Upload(ctx, &UploadRequest{
		Key:         "analytics-archive/2024/events.ndjson",
		Reader:      strings.NewReader("{\"id\":\"a\"}\n"),
		ContentType: "application/x-ndjson",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), resp.Size)

	exists, err := store.FileExists(ctx, resp.Key)
	require.NoError(t, err)
	assert.True(t, exists)

	files, err := store.ListFiles(ctx, "analytics-archive/")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "analytics-archive/2024/events.ndjson", files[0].Key)

	require.NoError(t, store.Delete(ctx, resp.Key))
	exists, err = store.FileExists(ctx, resp.Key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), &UploadRequest{
		Key:    "../outside.ndjson",
		Reader: strings.NewReader("x"),
	})
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	store, err := NewFromConfig(ctx, &config.StorageConfig{Provider: ProviderNone})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = NewFromConfig(ctx, &config.StorageConfig{
		Provider: ProviderLocal,
		Local:    &config.LocalStorageConfig{BasePath: t.TempDir()},
	})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, store)

	_, err = NewFromConfig(ctx, &config.StorageConfig{Provider: "ftp"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
