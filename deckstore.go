// Package presentations defines the storage core of the presentation
// authoring system: a content-addressed asset pool, a manifest repository
// with dual-format (legacy and split-schema) reads, and an indexed metadata
// search. The interfaces here are implemented by the storage package and
// consumed by the HTTP handlers and the CLI.
package presentations

import (
	"context"
	"time"

	"github.com/sethwebster/presentations/assetref"
	"github.com/sethwebster/presentations/deck"
)

// AssetInfo describes a stored asset. It is written once, on first store of
// the asset's bytes, and never modified afterwards.
type AssetInfo struct {
	SHA256           string `json:"sha256"`
	ByteSize         uint64 `json:"byteSize"`
	MimeType         string `json:"mimeType"`
	OriginalFilename string `json:"originalFilename,omitempty"`
	CreatedAt        string `json:"createdAt"`
	Width            uint   `json:"width,omitempty"`
	Height           uint   `json:"height,omitempty"`
}

// AssetService is a content-addressed binary store. Put deduplicates on the
// SHA-256 of the supplied bytes: storing the same bytes twice touches the
// store once, and the metadata written by the first successful store wins.
type AssetService interface {
	// Put stores p under its content hash and returns the hash. The
	// sha256, byteSize and createdAt fields of info are filled in by the
	// store; mimeType defaults to application/octet-stream when unset.
	Put(ctx context.Context, p []byte, info AssetInfo) (assetref.Hash, error)

	// Get returns the bytes for h, or nil when the asset is unknown.
	Get(ctx context.Context, h assetref.Hash) ([]byte, error)

	// Info returns the metadata record for h, or nil when unknown.
	Info(ctx context.Context, h assetref.Hash) (*AssetInfo, error)

	// Exists reports whether the bytes for h are present.
	Exists(ctx context.Context, h assetref.Hash) (bool, error)

	// Delete removes the bytes and metadata for h, reporting whether
	// anything was removed. The save pipeline never calls this; it exists
	// for explicit cleanup tooling only.
	Delete(ctx context.Context, h assetref.Hash) (bool, error)
}

// DeckBrief is the listing projection of a stored deck, whichever format it
// is stored in.
type DeckBrief struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	UpdatedAt  string   `json:"updatedAt,omitempty"`
	CreatedAt  string   `json:"createdAt,omitempty"`
	Slug       string   `json:"slug,omitempty"`
	OwnerID    string   `json:"ownerId,omitempty"`
	SharedWith []string `json:"sharedWith,omitempty"`
	DeletedAt  string   `json:"deletedAt,omitempty"`
}

// Sort keys accepted by SearchQuery.SortBy.
const (
	SortByRelevance = "relevance"
	SortByUpdatedAt = "updatedAt"
	SortByCreatedAt = "createdAt"
	SortByTitle     = "title"
)

// SearchQuery filters the metadata projection of stored decks. All fields
// are optional; the zero query matches every document. Malformed fields are
// tolerated rather than rejected: limits above 100 are coerced to 100,
// unknown sort keys fall back to updatedAt.
type SearchQuery struct {
	// Text matches against the title: case-insensitive substring in
	// fallback mode, tokenized full-text in indexed mode.
	Text string `json:"text,omitempty"`

	// Tags must all be present on a matching document (AND semantics,
	// whole-string comparison per tag).
	Tags []string `json:"tags,omitempty"`

	// OwnerID is an exact match.
	OwnerID string `json:"ownerId,omitempty"`

	// DateFrom and DateTo bound updatedAt inclusively; either may be
	// empty for an open bound. ISO-8601.
	DateFrom string `json:"dateFrom,omitempty"`
	DateTo   string `json:"dateTo,omitempty"`

	Limit     int    `json:"limit,omitempty"`  // 1..100, default 20
	Offset    int    `json:"offset,omitempty"` // default 0
	SortBy    string `json:"sortBy,omitempty"` // default updatedAt
	SortOrder string `json:"sortOrder,omitempty"` // "asc" or "desc", default desc
}

// SearchService queries the metadata projection. Two implementations share
// the same semantics: an indexed mode backed by a secondary index and a
// SCAN-and-filter fallback used when the index capability is absent.
type SearchService interface {
	Search(ctx context.Context, q SearchQuery) ([]deck.Meta, error)

	// CreateIndex creates the secondary index if supported, reporting
	// whether it is present afterwards. Idempotent.
	CreateIndex(ctx context.Context) (bool, error)

	// DropIndex removes the index; when deleteDocuments is set the
	// indexed projection documents are removed with it.
	DropIndex(ctx context.Context, deleteDocuments bool) (bool, error)

	// IndexInfo returns index statistics, or nil when no index exists.
	IndexInfo(ctx context.Context) (map[string]interface{}, error)

	// ReindexAll rebuilds the index projection for every stored document
	// and returns the number of documents visible to the index.
	ReindexAll(ctx context.Context) (int, error)
}

// DeckService is the outward verb set of the storage core. It is the only
// surface aware of both the split-schema layout and the legacy embedded-data
// blobs, blending the two on reads. Absent documents are nil returns, not
// errors.
type DeckService interface {
	// GetDeck returns the deck in its legacy shape: the manifest when one
	// exists (asset slots keep their asset:// references), otherwise the
	// parsed legacy blob, otherwise nil.
	GetDeck(ctx context.Context, id string) (*deck.Deck, error)

	// SaveDeck converts the legacy-shape deck to a manifest, ingesting
	// embedded assets, persists it atomically, and kicks off best-effort
	// thumbnail generation.
	SaveDeck(ctx context.Context, id string, d *deck.Deck) error

	// ListDecks enumerates both formats; a split-schema entry shadows a
	// legacy blob with the same id. Corrupt entries are skipped.
	ListDecks(ctx context.Context) ([]DeckBrief, error)

	// DeleteDeck removes every key of both formats for id.
	DeleteDeck(ctx context.Context, id string) error

	// DeckExists reports whether either format is present.
	DeckExists(ctx context.Context, id string) (bool, error)

	// GetDeckMetadata prefers the cheap metadata projection and falls
	// back to the legacy blob's meta field.
	GetDeckMetadata(ctx context.Context, id string) (*deck.Meta, error)

	// GetDeckThumbnail returns the stored thumbnail bytes, or nil.
	GetDeckThumbnail(ctx context.Context, id string) ([]byte, error)

	// Search delegates to the metadata search service.
	Search(ctx context.Context, q SearchQuery) ([]deck.Meta, error)

	// MigrateLegacy promotes the legacy blob for id into the split
	// schema, reporting whether a migration happened. With destructive
	// set, the legacy companion keys are deleted afterwards.
	MigrateLegacy(ctx context.Context, id string, destructive bool) (bool, error)
}

// Clock is the wall-clock source injected into the storage components so
// tests can freeze time. All createdAt/updatedAt/migratedAt stamps are
// drawn from it.
type Clock func() time.Time
