// Package storage implements the persistence core over a single Redis
// client: the content-addressed asset store, the legacy/manifest converter,
// the document repository, the metadata search index and the outward
// DeckService facade.
package storage

import "strings"

// keyspace maps object names to Redis keys. All keys carry an optional
// namespace prefix so several installations can share one database.
//
// The key layout is as follows (without prefix):
//
//	asset:<H>            raw asset bytes (string)
//	asset:<H>:info       AssetInfo JSON (string)
//	doc:<D>:manifest     full manifest JSON (string)
//	doc:<D>:meta         manifest.meta JSON projection (string)
//	doc:<D>:assets       referenced hashes (set of bare H)
//	doc:<D>:thumb        thumbnail bytes (string)
//	doc:<D>:search       search projection (hash; the only hash type under
//	                     doc:, which is what the secondary index binds to)
//	deck:<D>:data        legacy embedded-data deck JSON (string, read-only)
//	deck:<D>:meta        legacy metadata companion (string, legacy cruft)
//	deck:<D>:history     legacy history companion (string, legacy cruft)
//
// <H> is a 64-hex SHA-256; <D> is the document id. Ids are recovered from
// keys by trimming the fixed prefix and suffix rather than splitting on
// ':', so ids containing ':' stay intact.
type keyspace struct {
	prefix string
}

func (k keyspace) asset(h string) string     { return k.prefix + "asset:" + h }
func (k keyspace) assetInfo(h string) string { return k.prefix + "asset:" + h + ":info" }

func (k keyspace) docManifest(id string) string { return k.prefix + "doc:" + id + ":manifest" }
func (k keyspace) docMeta(id string) string     { return k.prefix + "doc:" + id + ":meta" }
func (k keyspace) docAssets(id string) string   { return k.prefix + "doc:" + id + ":assets" }
func (k keyspace) docThumb(id string) string    { return k.prefix + "doc:" + id + ":thumb" }
func (k keyspace) docSearch(id string) string   { return k.prefix + "doc:" + id + ":search" }

func (k keyspace) legacyData(id string) string    { return k.prefix + "deck:" + id + ":data" }
func (k keyspace) legacyMeta(id string) string    { return k.prefix + "deck:" + id + ":meta" }
func (k keyspace) legacyHistory(id string) string { return k.prefix + "deck:" + id + ":history" }

func (k keyspace) docManifestPattern() string { return k.prefix + "doc:*:manifest" }
func (k keyspace) docMetaPattern() string     { return k.prefix + "doc:*:meta" }
func (k keyspace) legacyDataPattern() string  { return k.prefix + "deck:*:data" }

// searchIndexPrefix is the key prefix the secondary index binds to. Only
// hash-typed keys under it are indexed, which is exactly the doc:<D>:search
// projections.
func (k keyspace) searchIndexPrefix() string { return k.prefix + "doc:" }

// searchIndexName returns the index name, namespaced alongside the keys.
func (k keyspace) searchIndexName() string {
	return strings.ReplaceAll(k.prefix, ":", "-") + "deckstore-meta-idx"
}

// docID recovers the document id from a key produced by one of the
// builders above, or "" when the key does not match.
func (k keyspace) docID(key, kind string) string {
	var base string
	switch kind {
	case "manifest", "meta", "assets", "thumb", "search":
		base = k.prefix + "doc:"
	case "data", "history":
		base = k.prefix + "deck:"
	default:
		return ""
	}
	suffix := ":" + kind
	if !strings.HasPrefix(key, base) || !strings.HasSuffix(key, suffix) {
		return ""
	}
	return key[len(base) : len(key)-len(suffix)]
}
