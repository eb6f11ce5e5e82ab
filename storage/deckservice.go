package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	presentations "github.com/sethwebster/presentations"
	"github.com/sethwebster/presentations/deck"
	"github.com/sethwebster/presentations/thumbnail"
)

// DeckService is the outward facade and the only component aware of both
// storage layouts: the split schema under doc:<D>:* and the legacy
// embedded-data blobs under deck:<D>:*. Reads blend the two with the split
// schema taking precedence; writes always land in the split schema.
type DeckService struct {
	client redis.UniversalClient
	keys   keyspace
	opts   Options
	log    *logrus.Entry

	assets *AssetStore
	conv   *Converter
	repo   *DocRepository
	search *SearchIndex
	thumbs thumbnail.Renderer // nil disables thumbnail generation
}

var _ presentations.DeckService = (*DeckService)(nil)

// NewDeckService wires the storage components over one shared client.
// renderer may be nil to disable thumbnail generation.
func NewDeckService(client redis.UniversalClient, renderer thumbnail.Renderer, opts Options) *DeckService {
	opts = opts.withDefaults()
	assets := NewAssetStore(client, opts)
	return &DeckService{
		client: client,
		keys:   keyspace{prefix: opts.Prefix},
		opts:   opts,
		log:    opts.Logger,
		assets: assets,
		conv:   NewConverter(assets, opts),
		repo:   NewDocRepository(client, opts),
		search: NewSearchIndex(client, opts),
		thumbs: renderer,
	}
}

// Assets exposes the content-addressed asset store.
func (s *DeckService) Assets() presentations.AssetService { return s.assets }

// Repository exposes the document repository.
func (s *DeckService) Repository() *DocRepository { return s.repo }

// SearchIndex exposes the metadata search component.
func (s *DeckService) SearchIndex() presentations.SearchService { return s.search }

// GetDeck returns the deck for id in its legacy shape: the stored manifest
// when one exists (asset references left in place), otherwise the parsed
// legacy blob, otherwise nil.
func (s *DeckService) GetDeck(ctx context.Context, id string) (*deck.Deck, error) {
	m, err := s.repo.GetManifest(ctx, id)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return s.conv.ManifestToDeck(ctx, m, false)
	}
	return s.getLegacy(ctx, id)
}

func (s *DeckService) getLegacy(ctx context.Context, id string) (*deck.Deck, error) {
	raw, err := s.client.Get(ctx, s.keys.legacyData(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, presentations.ErrStorage{Op: "legacy deck get", Err: err}
	}
	d, err := parseDeck(raw)
	if err != nil {
		return nil, presentations.ErrCorruptData{ID: id, Err: err}
	}
	return d, nil
}

// SaveDeck converts the legacy-shape deck to a manifest (ingesting its
// embedded assets), persists it atomically, then generates and stores a
// thumbnail. Thumbnail failures are logged and swallowed.
func (s *DeckService) SaveDeck(ctx context.Context, id string, d *deck.Deck) error {
	start := time.Now()
	defer operationTimer.WithValues("deck_save").UpdateSince(start)

	if d.Meta.ID == "" {
		d.Meta.ID = id
	}
	m, err := s.conv.DeckToManifest(ctx, d)
	if err != nil {
		return err
	}
	if err := s.repo.SaveManifest(ctx, id, m); err != nil {
		return err
	}
	// The caller's deck observes the repository timestamps the same way
	// the persisted manifest does.
	d.Meta.UpdatedAt = m.Meta.UpdatedAt
	if d.Meta.CreatedAt == "" {
		d.Meta.CreatedAt = m.Meta.CreatedAt
	}

	s.generateThumbnail(ctx, id, m)
	return nil
}

// generateThumbnail renders and stores a thumbnail for the saved manifest.
// Best effort: every failure path logs and returns.
func (s *DeckService) generateThumbnail(ctx context.Context, id string, m *deck.Deck) {
	if s.thumbs == nil {
		return
	}
	p, err := s.thumbs.Render(ctx, m)
	if err != nil {
		s.log.WithField("deck.id", id).WithError(err).Warn("thumbnail rendering failed")
		return
	}
	if err := s.repo.SaveThumbnail(ctx, id, p); err != nil {
		s.log.WithField("deck.id", id).WithError(err).Warn("thumbnail store failed")
	}
}

// ListDecks enumerates both storage layouts. A split-schema entry shadows a
// legacy blob with the same id; corrupt entries are skipped and logged.
// Results are ordered newest-updated first.
func (s *DeckService) ListDecks(ctx context.Context) ([]presentations.DeckBrief, error) {
	start := time.Now()
	defer operationTimer.WithValues("deck_list").UpdateSince(start)

	briefs := make(map[string]presentations.DeckBrief)

	newIDs, err := s.scanIDs(ctx, s.keys.docManifestPattern(), "manifest")
	if err != nil {
		return nil, err
	}
	for _, id := range newIDs {
		meta, err := s.repo.GetMeta(ctx, id)
		if err != nil {
			var corrupt presentations.ErrCorruptData
			if errors.As(err, &corrupt) {
				corruptCounter.Inc(1)
				s.log.WithField("deck.id", id).WithError(err).Warn("skipping corrupt metadata record in list")
				continue
			}
			return nil, err
		}
		if meta == nil {
			// Meta missing with a manifest present cannot come from the
			// atomic save path; fall back to the manifest itself.
			m, merr := s.repo.GetManifest(ctx, id)
			if merr != nil || m == nil {
				continue
			}
			meta = &m.Meta
		}
		briefs[id] = briefFromMeta(id, meta)
	}

	legacyIDs, err := s.scanIDs(ctx, s.keys.legacyDataPattern(), "data")
	if err != nil {
		return nil, err
	}
	for _, id := range legacyIDs {
		if _, ok := briefs[id]; ok {
			continue // the new format wins
		}
		d, err := s.getLegacy(ctx, id)
		if err != nil {
			var corrupt presentations.ErrCorruptData
			if errors.As(err, &corrupt) {
				corruptCounter.Inc(1)
				s.log.WithField("deck.id", id).WithError(err).Warn("skipping corrupt legacy deck in list")
				continue
			}
			return nil, err
		}
		if d == nil {
			continue
		}
		briefs[id] = briefFromMeta(id, &d.Meta)
	}

	out := make([]presentations.DeckBrief, 0, len(briefs))
	for _, b := range briefs {
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := epochMillis(out[i].UpdatedAt), epochMillis(out[j].UpdatedAt)
		if ti != tj {
			return ti > tj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *DeckService) scanIDs(ctx context.Context, pattern, kind string) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, pattern, 256).Iterator()
	for iter.Next(ctx) {
		if id := s.keys.docID(iter.Val(), kind); id != "" {
			ids = append(ids, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, presentations.ErrStorage{Op: "deck list scan", Err: err}
	}
	return ids, nil
}

func briefFromMeta(id string, meta *deck.Meta) presentations.DeckBrief {
	title := meta.Title
	if title == "" {
		title = "Untitled"
	}
	return presentations.DeckBrief{
		ID:         id,
		Title:      title,
		UpdatedAt:  meta.UpdatedAt,
		CreatedAt:  meta.CreatedAt,
		Slug:       meta.Slug,
		OwnerID:    meta.OwnerID,
		SharedWith: meta.SharedWith,
		DeletedAt:  meta.DeletedAt,
	}
}

// DeleteDeck removes every key of both layouts for id in one transaction.
// Asset bytes are untouched: cross-document garbage collection is
// explicitly deferred.
func (s *DeckService) DeleteDeck(ctx context.Context, id string) error {
	start := time.Now()
	defer operationTimer.WithValues("deck_delete").UpdateSince(start)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx,
			s.keys.docManifest(id),
			s.keys.docMeta(id),
			s.keys.docAssets(id),
			s.keys.docThumb(id),
			s.keys.docSearch(id),
			s.keys.legacyData(id),
			s.keys.legacyHistory(id),
			s.keys.legacyMeta(id),
		)
		return nil
	})
	if err != nil {
		return presentations.ErrStorage{Op: "deck delete", Err: err}
	}
	return nil
}

// DeckExists reports whether either layout holds a document for id.
func (s *DeckService) DeckExists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keys.docManifest(id), s.keys.legacyData(id)).Result()
	if err != nil {
		return false, presentations.ErrStorage{Op: "deck exists", Err: err}
	}
	return n > 0, nil
}

// GetDeckMetadata prefers the cheap metadata projection and falls back to
// the legacy blob's meta field.
func (s *DeckService) GetDeckMetadata(ctx context.Context, id string) (*deck.Meta, error) {
	meta, err := s.repo.GetMeta(ctx, id)
	if err != nil || meta != nil {
		return meta, err
	}
	d, err := s.getLegacy(ctx, id)
	if err != nil || d == nil {
		return nil, err
	}
	return &d.Meta, nil
}

// GetDeckThumbnail returns the stored thumbnail bytes, or nil.
func (s *DeckService) GetDeckThumbnail(ctx context.Context, id string) ([]byte, error) {
	return s.repo.GetThumbnail(ctx, id)
}

// Search delegates to the metadata search component.
func (s *DeckService) Search(ctx context.Context, q presentations.SearchQuery) ([]deck.Meta, error) {
	return s.search.Search(ctx, q)
}

// MigrateLegacy promotes the legacy blob for id into the split schema,
// reporting whether a migration happened. With destructive set, the legacy
// data and its companion keys are deleted after the manifest is committed;
// the history companion is legacy cruft and is dropped, never migrated.
func (s *DeckService) MigrateLegacy(ctx context.Context, id string, destructive bool) (bool, error) {
	start := time.Now()
	defer operationTimer.WithValues("deck_migrate").UpdateSince(start)

	d, err := s.getLegacy(ctx, id)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, nil
	}

	if err := s.SaveDeck(ctx, id, d); err != nil {
		return false, err
	}
	if destructive {
		err := s.client.Del(ctx,
			s.keys.legacyData(id),
			s.keys.legacyHistory(id),
			s.keys.legacyMeta(id),
		).Err()
		if err != nil {
			return true, presentations.ErrStorage{Op: "legacy cleanup", Err: err}
		}
	}
	s.log.WithFields(logrus.Fields{
		"deck.id":     id,
		"destructive": destructive,
	}).Info("legacy deck migrated")
	return true, nil
}

// parseDeck decodes a stored document body.
func parseDeck(raw []byte) (*deck.Deck, error) {
	var d deck.Deck
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// parseMeta decodes a stored metadata projection.
func parseMeta(raw []byte) (*deck.Meta, error) {
	var meta deck.Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
