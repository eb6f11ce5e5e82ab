package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	presentations "github.com/sethwebster/presentations"
	"github.com/sethwebster/presentations/assetref"
)

// defaultMimeType is recorded for assets stored without one.
const defaultMimeType = "application/octet-stream"

// AssetStore is a content-addressed binary store over Redis. Bytes live at
// asset:<H> with an AssetInfo sidecar at asset:<H>:info; both are written
// with SETNX inside one transaction, which is what makes concurrent puts of
// the same bytes converge on a single stored copy with the first writer's
// metadata.
type AssetStore struct {
	client redis.UniversalClient
	keys   keyspace
	opts   Options
	log    *logrus.Entry
}

var _ presentations.AssetService = (*AssetStore)(nil)

// NewAssetStore returns a store backed by client.
func NewAssetStore(client redis.UniversalClient, opts Options) *AssetStore {
	opts = opts.withDefaults()
	return &AssetStore{
		client: client,
		keys:   keyspace{prefix: opts.Prefix},
		opts:   opts,
		log:    opts.Logger,
	}
}

// Put stores p under its content hash. Re-uploading bytes that are already
// present is a dedupe hit: the stored metadata is left untouched, so a
// different originalFilename on a second upload keeps the first one.
func (s *AssetStore) Put(ctx context.Context, p []byte, info presentations.AssetInfo) (assetref.Hash, error) {
	start := time.Now()
	defer operationTimer.WithValues("asset_put").UpdateSince(start)

	h := assetref.FromBytes(p)

	n, err := s.client.Exists(ctx, s.keys.asset(h.String())).Result()
	if err != nil {
		return "", presentations.ErrStorage{Op: "asset exists", Err: err}
	}
	if n > 0 {
		dedupeCounter.Inc(1)
		s.log.WithField("asset.hash", h.String()).Debug("asset put deduplicated")
		return h, nil
	}

	info.SHA256 = h.String()
	info.ByteSize = uint64(len(p))
	info.CreatedAt = s.opts.timestamp()
	if info.MimeType == "" {
		info.MimeType = defaultMimeType
	}
	enc, err := json.Marshal(info)
	if err != nil {
		return "", presentations.ErrStorage{Op: "asset info encode", Err: err}
	}

	var stored *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		stored = pipe.SetNX(ctx, s.keys.asset(h.String()), p, 0)
		pipe.SetNX(ctx, s.keys.assetInfo(h.String()), enc, 0)
		return nil
	})
	if err != nil {
		return "", presentations.ErrStorage{Op: "asset put", Err: err}
	}
	if !stored.Val() {
		// Another writer got there between the existence check and the
		// transaction; their copy and metadata stand.
		dedupeCounter.Inc(1)
		return h, nil
	}

	s.log.WithFields(logrus.Fields{
		"asset.hash": h.String(),
		"asset.size": len(p),
		"asset.mime": info.MimeType,
	}).Debug("asset stored")
	return h, nil
}

// Get returns the bytes for h, or nil when absent.
func (s *AssetStore) Get(ctx context.Context, h assetref.Hash) ([]byte, error) {
	start := time.Now()
	defer operationTimer.WithValues("asset_get").UpdateSince(start)

	p, err := s.client.Get(ctx, s.keys.asset(h.String())).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, presentations.ErrStorage{Op: "asset get", Err: err}
	}
	return p, nil
}

// Info returns the metadata record for h, or nil when absent.
func (s *AssetStore) Info(ctx context.Context, h assetref.Hash) (*presentations.AssetInfo, error) {
	raw, err := s.client.Get(ctx, s.keys.assetInfo(h.String())).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, presentations.ErrStorage{Op: "asset info get", Err: err}
	}
	var info presentations.AssetInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, presentations.ErrCorruptData{ID: h.Reference(), Err: err}
	}
	return &info, nil
}

// Exists reports whether the bytes for h are present.
func (s *AssetStore) Exists(ctx context.Context, h assetref.Hash) (bool, error) {
	n, err := s.client.Exists(ctx, s.keys.asset(h.String())).Result()
	if err != nil {
		return false, presentations.ErrStorage{Op: "asset exists", Err: err}
	}
	return n > 0, nil
}

// Delete removes the bytes and metadata for h atomically, reporting whether
// either key was removed. The save pipeline never deletes assets; this is
// for explicit cleanup tooling.
func (s *AssetStore) Delete(ctx context.Context, h assetref.Hash) (bool, error) {
	start := time.Now()
	defer operationTimer.WithValues("asset_delete").UpdateSince(start)

	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, s.keys.asset(h.String()), s.keys.assetInfo(h.String()))
		return nil
	})
	if err != nil {
		return false, presentations.ErrStorage{Op: "asset delete", Err: err}
	}
	return removed.Val() > 0, nil
}
