package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	presentations "github.com/sethwebster/presentations"
	"github.com/sethwebster/presentations/assetref"
)

func TestAssetStorePutGetRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewAssetStore(client, testOptions(newTestClock()))
	ctx := context.Background()

	h, err := store.Put(ctx, redPixelPNG, presentations.AssetInfo{MimeType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, assetref.FromBytes(redPixelPNG), h)

	p, err := store.Get(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, redPixelPNG, p)

	ok, err := store.Exists(ctx, h)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAssetStorePutDeduplicates(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewAssetStore(client, testOptions(newTestClock()))
	ctx := context.Background()

	h1, err := store.Put(ctx, redPixelPNG, presentations.AssetInfo{MimeType: "image/png"})
	require.NoError(t, err)
	h2, err := store.Put(ctx, redPixelPNG, presentations.AssetInfo{MimeType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// One copy of the bytes and one metadata record, nothing else.
	assert.Len(t, mr.Keys(), 2)
}

func TestAssetStoreDistinctBytesDistinctHashes(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewAssetStore(client, testOptions(newTestClock()))
	ctx := context.Background()

	h1, err := store.Put(ctx, redPixelPNG, presentations.AssetInfo{})
	require.NoError(t, err)
	h2, err := store.Put(ctx, bluePixelPNG, presentations.AssetInfo{})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestAssetStoreFirstMetadataWins(t *testing.T) {
	client, _ := newTestClient(t)
	clock := newTestClock()
	store := NewAssetStore(client, testOptions(clock))
	ctx := context.Background()

	h, err := store.Put(ctx, redPixelPNG, presentations.AssetInfo{
		MimeType:         "image/png",
		OriginalFilename: "red.png",
	})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = store.Put(ctx, redPixelPNG, presentations.AssetInfo{
		MimeType:         "image/png",
		OriginalFilename: "same-pixel-different-name.png",
	})
	require.NoError(t, err)

	info, err := store.Info(ctx, h)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "red.png", info.OriginalFilename)
	assert.Equal(t, h.String(), info.SHA256)
	assert.Equal(t, uint64(len(redPixelPNG)), info.ByteSize)
	assert.Equal(t, "2024-06-01T12:00:00Z", info.CreatedAt)
}

func TestAssetStoreDefaultMimeType(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewAssetStore(client, testOptions(newTestClock()))
	ctx := context.Background()

	h, err := store.Put(ctx, []byte("opaque payload"), presentations.AssetInfo{})
	require.NoError(t, err)

	info, err := store.Info(ctx, h)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "application/octet-stream", info.MimeType)
}

func TestAssetStoreMissingAsset(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewAssetStore(client, testOptions(newTestClock()))
	ctx := context.Background()

	h := assetref.FromBytes([]byte("never stored"))

	p, err := store.Get(ctx, h)
	require.NoError(t, err)
	assert.Nil(t, p)

	info, err := store.Info(ctx, h)
	require.NoError(t, err)
	assert.Nil(t, info)

	ok, err := store.Exists(ctx, h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAssetStoreDelete(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewAssetStore(client, testOptions(newTestClock()))
	ctx := context.Background()

	h, err := store.Put(ctx, redPixelPNG, presentations.AssetInfo{MimeType: "image/png"})
	require.NoError(t, err)

	removed, err := store.Delete(ctx, h)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, mr.Keys())

	removed, err = store.Delete(ctx, h)
	require.NoError(t, err)
	assert.False(t, removed)
}
