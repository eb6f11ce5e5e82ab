package storage

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	presentations "github.com/sethwebster/presentations"
	"github.com/sethwebster/presentations/assetref"
	"github.com/sethwebster/presentations/deck"
)

// DocRepository stores manifests in the split schema: the full manifest,
// the metadata projection, the referenced-asset set and the thumbnail, all
// keyed per document id. Every save commits the manifest, meta, asset set
// and search projection in one transaction, so readers observe either the
// prior document in full or the new one in full.
type DocRepository struct {
	client redis.UniversalClient
	keys   keyspace
	opts   Options
	log    *logrus.Entry
}

// NewDocRepository returns a repository backed by client.
func NewDocRepository(client redis.UniversalClient, opts Options) *DocRepository {
	opts = opts.withDefaults()
	return &DocRepository{
		client: client,
		keys:   keyspace{prefix: opts.Prefix},
		opts:   opts,
		log:    opts.Logger,
	}
}

// SaveManifest persists m under id. The manifest's updatedAt (and, when
// absent, createdAt) is stamped first and the caller's manifest sees the
// stamp. The asset set is rebuilt from a full walk of the manifest, the
// same walk read-side validation uses.
func (r *DocRepository) SaveManifest(ctx context.Context, id string, m *deck.Deck) error {
	start := time.Now()
	defer operationTimer.WithValues("manifest_save").UpdateSince(start)

	now := r.opts.timestamp()
	m.Meta.UpdatedAt = now
	if m.Meta.CreatedAt == "" {
		m.Meta.CreatedAt = now
	}

	hashes, err := deck.CollectAssetRefs(m)
	if err != nil {
		return err
	}

	manifestJSON, err := json.Marshal(m)
	if err != nil {
		return presentations.ErrStorage{Op: "manifest encode", Err: err}
	}
	metaJSON, err := json.Marshal(&m.Meta)
	if err != nil {
		return presentations.ErrStorage{Op: "meta encode", Err: err}
	}

	members := make([]interface{}, len(hashes))
	for i, h := range hashes {
		members[i] = h.String()
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.keys.docManifest(id), manifestJSON, 0)
		pipe.Set(ctx, r.keys.docMeta(id), metaJSON, 0)
		pipe.Del(ctx, r.keys.docAssets(id))
		if len(members) > 0 {
			pipe.SAdd(ctx, r.keys.docAssets(id), members...)
		}
		pipe.Del(ctx, r.keys.docSearch(id))
		pipe.HSet(ctx, r.keys.docSearch(id), searchProjection(&m.Meta))
		return nil
	})
	if err != nil {
		return presentations.ErrStorage{Op: "manifest save", Err: err}
	}

	r.log.WithFields(logrus.Fields{
		"deck.id":     id,
		"deck.assets": len(hashes),
	}).Debug("manifest saved")
	return nil
}

// GetManifest returns the manifest for id, or nil when absent.
func (r *DocRepository) GetManifest(ctx context.Context, id string) (*deck.Deck, error) {
	start := time.Now()
	defer operationTimer.WithValues("manifest_get").UpdateSince(start)

	raw, err := r.client.Get(ctx, r.keys.docManifest(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, presentations.ErrStorage{Op: "manifest get", Err: err}
	}
	var m deck.Deck
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, presentations.ErrCorruptData{ID: id, Err: err}
	}
	return &m, nil
}

// GetMeta returns the metadata projection for id, or nil when absent.
func (r *DocRepository) GetMeta(ctx context.Context, id string) (*deck.Meta, error) {
	raw, err := r.client.Get(ctx, r.keys.docMeta(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, presentations.ErrStorage{Op: "meta get", Err: err}
	}
	var meta deck.Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, presentations.ErrCorruptData{ID: id, Err: err}
	}
	return &meta, nil
}

// Exists reports whether a manifest is stored for id.
func (r *DocRepository) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, r.keys.docManifest(id)).Result()
	if err != nil {
		return false, presentations.ErrStorage{Op: "manifest exists", Err: err}
	}
	return n > 0, nil
}

// Delete removes the manifest, meta, asset set, thumbnail and search
// projection for id in one transaction. Asset bytes are untouched.
func (r *DocRepository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	defer operationTimer.WithValues("manifest_delete").UpdateSince(start)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx,
			r.keys.docManifest(id),
			r.keys.docMeta(id),
			r.keys.docAssets(id),
			r.keys.docThumb(id),
			r.keys.docSearch(id),
		)
		return nil
	})
	if err != nil {
		return presentations.ErrStorage{Op: "manifest delete", Err: err}
	}
	return nil
}

// GetAssets returns the hashes referenced by the stored manifest, sorted.
func (r *DocRepository) GetAssets(ctx context.Context, id string) ([]assetref.Hash, error) {
	members, err := r.client.SMembers(ctx, r.keys.docAssets(id)).Result()
	if err != nil {
		return nil, presentations.ErrStorage{Op: "assets get", Err: err}
	}
	sort.Strings(members)
	hashes := make([]assetref.Hash, len(members))
	for i, m := range members {
		hashes[i] = assetref.Hash(m)
	}
	return hashes, nil
}

// SaveThumbnail stores the rendered thumbnail bytes for id.
func (r *DocRepository) SaveThumbnail(ctx context.Context, id string, p []byte) error {
	if err := r.client.Set(ctx, r.keys.docThumb(id), p, 0).Err(); err != nil {
		return presentations.ErrStorage{Op: "thumbnail save", Err: err}
	}
	return nil
}

// GetThumbnail returns the thumbnail bytes for id, or nil when absent.
func (r *DocRepository) GetThumbnail(ctx context.Context, id string) ([]byte, error) {
	p, err := r.client.Get(ctx, r.keys.docThumb(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, presentations.ErrStorage{Op: "thumbnail get", Err: err}
	}
	return p, nil
}
