package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	presentations "github.com/sethwebster/presentations"
	"github.com/sethwebster/presentations/deck"
)

// tagSeparator joins tags in the search projection. RediSearch defaults to
// ',' which shows up inside user tags more often than '|'.
const tagSeparator = "|"

// Search projection field names, shared by the projection writer and the
// index schema.
const (
	fieldID      = "id"
	fieldTitle   = "title"
	fieldTags    = "tags"
	fieldOwner   = "owner"
	fieldSlug    = "slug"
	fieldCreated = "created"
	fieldUpdated = "updated"
)

// searchProjection flattens a metadata record into the doc:<D>:search hash
// the secondary index binds to. Written by DocRepository inside the save
// transaction so the projection is never stale relative to the meta it
// mirrors.
func searchProjection(meta *deck.Meta) map[string]interface{} {
	return map[string]interface{}{
		fieldID:      meta.ID,
		fieldTitle:   meta.Title,
		fieldTags:    strings.Join(meta.Tags, tagSeparator),
		fieldOwner:   meta.OwnerID,
		fieldSlug:    meta.Slug,
		fieldCreated: epochMillis(meta.CreatedAt),
		fieldUpdated: epochMillis(meta.UpdatedAt),
	}
}

// epochMillis converts an ISO-8601 timestamp to millisecond epoch, the
// numeric form the index sorts and ranges over. Unparsable input maps to 0.
func epochMillis(iso string) int64 {
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

type searchMode int

const (
	modeUnknown searchMode = iota
	modeIndexed
	modeFallback
)

// SearchIndex lists and filters documents by their metadata projection. At
// first use it probes the server for the secondary-index capability with a
// benign list command: a missing capability pins the SCAN fallback for the
// life of the component, while transient probe failures leave the decision
// open for the next call. Both modes answer every query with the same set
// of documents.
type SearchIndex struct {
	client redis.UniversalClient
	keys   keyspace
	opts   Options
	log    *logrus.Entry

	mu         sync.Mutex
	mode       searchMode
	indexReady bool
}

var _ presentations.SearchService = (*SearchIndex)(nil)

// NewSearchIndex returns a search component backed by client.
func NewSearchIndex(client redis.UniversalClient, opts Options) *SearchIndex {
	opts = opts.withDefaults()
	return &SearchIndex{
		client: client,
		keys:   keyspace{prefix: opts.Prefix},
		opts:   opts,
		log:    opts.Logger,
	}
}

// resolveMode performs (or reuses) the capability probe.
func (s *SearchIndex) resolveMode(ctx context.Context) (searchMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != modeUnknown {
		return s.mode, nil
	}

	err := s.client.FT_List(ctx).Err()
	switch {
	case err == nil:
		s.mode = modeIndexed
		s.log.WithField("search.mode", "indexed").Info("search capability probe succeeded")
	case isUnknownCommandErr(err):
		s.mode = modeFallback
		s.log.WithField("search.mode", "fallback").Info("search index capability absent, pinning scan fallback")
	default:
		// Transient failure: leave the mode undecided so a later call
		// can probe again.
		return modeUnknown, presentations.ErrStorage{Op: "search capability probe", Err: err}
	}
	return s.mode, nil
}

func isUnknownCommandErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown command") || strings.Contains(msg, "unknown subcommand")
}

// ensureIndex creates the index if needed. Idempotent.
func (s *SearchIndex) ensureIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexReady {
		return nil
	}

	err := s.client.FTCreate(ctx, s.keys.searchIndexName(),
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []interface{}{s.keys.searchIndexPrefix()},
		},
		&redis.FieldSchema{FieldName: fieldTitle, FieldType: redis.SearchFieldTypeText, Sortable: true},
		&redis.FieldSchema{FieldName: fieldTags, FieldType: redis.SearchFieldTypeTag, Separator: tagSeparator},
		&redis.FieldSchema{FieldName: fieldOwner, FieldType: redis.SearchFieldTypeTag},
		&redis.FieldSchema{FieldName: fieldSlug, FieldType: redis.SearchFieldTypeTag},
		&redis.FieldSchema{FieldName: fieldCreated, FieldType: redis.SearchFieldTypeNumeric, Sortable: true},
		&redis.FieldSchema{FieldName: fieldUpdated, FieldType: redis.SearchFieldTypeNumeric, Sortable: true},
	).Err()
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return presentations.ErrStorage{Op: "search index create", Err: err}
	}
	s.indexReady = true
	return nil
}

// Search runs q in whichever mode the probe selected. The query is
// tolerant: limits are clamped to 1..100, unknown sort keys fall back to
// updatedAt, malformed date bounds are ignored.
func (s *SearchIndex) Search(ctx context.Context, q presentations.SearchQuery) ([]deck.Meta, error) {
	start := time.Now()
	defer operationTimer.WithValues("search").UpdateSince(start)

	q = normalizeQuery(q)
	mode, err := s.resolveMode(ctx)
	if err != nil {
		return nil, err
	}
	if mode == modeIndexed {
		return s.searchIndexed(ctx, q)
	}
	fallbackSearches.Inc(1)
	return s.searchScan(ctx, q)
}

func normalizeQuery(q presentations.SearchQuery) presentations.SearchQuery {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	switch q.SortBy {
	case presentations.SortByRelevance, presentations.SortByUpdatedAt,
		presentations.SortByCreatedAt, presentations.SortByTitle:
	default:
		q.SortBy = presentations.SortByUpdatedAt
	}
	switch q.SortOrder {
	case "asc", "desc":
	default:
		q.SortOrder = "desc"
	}
	return q
}

func (s *SearchIndex) searchIndexed(ctx context.Context, q presentations.SearchQuery) ([]deck.Meta, error) {
	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}

	options := &redis.FTSearchOptions{
		NoContent:   true,
		LimitOffset: q.Offset,
		Limit:       q.Limit,
	}
	if q.SortBy != presentations.SortByRelevance {
		options.SortBy = []redis.FTSearchSortBy{{
			FieldName: indexSortField(q.SortBy),
			Asc:       q.SortOrder == "asc",
			Desc:      q.SortOrder == "desc",
		}}
	}

	res, err := s.client.FTSearchWithArgs(ctx, s.keys.searchIndexName(), buildIndexQuery(q), options).Result()
	if err != nil {
		return nil, presentations.ErrStorage{Op: "search", Err: err}
	}

	ids := make([]string, 0, len(res.Docs))
	for _, doc := range res.Docs {
		if id := s.keys.docID(doc.ID, "search"); id != "" {
			ids = append(ids, id)
		}
	}
	return s.loadMetas(ctx, ids)
}

func indexSortField(sortBy string) string {
	switch sortBy {
	case presentations.SortByCreatedAt:
		return fieldCreated
	case presentations.SortByTitle:
		return fieldTitle
	default:
		return fieldUpdated
	}
}

// buildIndexQuery translates q into the index query language. Free text
// goes against the title; tags AND together as tag filters; the date range
// becomes a numeric filter on the updated field.
func buildIndexQuery(q presentations.SearchQuery) string {
	var parts []string
	if q.Text != "" {
		parts = append(parts, fmt.Sprintf("@%s:(%s)", fieldTitle, escapeQueryToken(q.Text)))
	}
	for _, tag := range q.Tags {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", fieldTags, escapeQueryToken(tag)))
	}
	if q.OwnerID != "" {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", fieldOwner, escapeQueryToken(q.OwnerID)))
	}
	if q.DateFrom != "" || q.DateTo != "" {
		from, to := "-inf", "+inf"
		if q.DateFrom != "" {
			if ms, ok := parseBound(q.DateFrom); ok {
				from = fmt.Sprintf("%d", ms)
			}
		}
		if q.DateTo != "" {
			if ms, ok := parseBound(q.DateTo); ok {
				to = fmt.Sprintf("%d", ms)
			}
		}
		parts = append(parts, fmt.Sprintf("@%s:[%s %s]", fieldUpdated, from, to))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

// escapeQueryToken backslash-escapes the query-language metacharacters so
// user input is matched literally.
func escapeQueryToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`,.<>{}[]"':;!@#$%^&*()-+=~/\| `, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// searchScan is the fallback: enumerate every metadata projection, load,
// filter and sort in memory.
func (s *SearchIndex) searchScan(ctx context.Context, q presentations.SearchQuery) ([]deck.Meta, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.keys.docMetaPattern(), 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, presentations.ErrStorage{Op: "search scan", Err: err}
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if id := s.keys.docID(key, "meta"); id != "" {
			ids = append(ids, id)
		}
	}
	metas, err := s.loadMetas(ctx, ids)
	if err != nil {
		return nil, err
	}

	filtered := metas[:0]
	for _, meta := range metas {
		if matchesQuery(&meta, q) {
			filtered = append(filtered, meta)
		}
	}
	sortMetas(filtered, q)

	if q.Offset >= len(filtered) {
		return []deck.Meta{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[q.Offset:end], nil
}

// loadMetas pipeline-loads and parses the metadata projections for ids,
// preserving order. Corrupt and missing entries are skipped and logged.
func (s *SearchIndex) loadMetas(ctx context.Context, ids []string) ([]deck.Meta, error) {
	if len(ids) == 0 {
		return []deck.Meta{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.docMeta(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, presentations.ErrStorage{Op: "search load", Err: err}
	}

	metas := make([]deck.Meta, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // deleted between enumeration and load
		}
		meta, err := parseMeta([]byte(raw))
		if err != nil {
			corruptCounter.Inc(1)
			s.log.WithField("deck.id", ids[i]).WithError(err).Warn("skipping corrupt metadata record")
			continue
		}
		metas = append(metas, *meta)
	}
	return metas, nil
}

func matchesQuery(meta *deck.Meta, q presentations.SearchQuery) bool {
	if q.Text != "" && !strings.Contains(strings.ToLower(meta.Title), strings.ToLower(q.Text)) {
		return false
	}
	for _, want := range q.Tags {
		if !containsTag(meta.Tags, want) {
			return false
		}
	}
	if q.OwnerID != "" && meta.OwnerID != q.OwnerID {
		return false
	}
	if q.DateFrom != "" {
		if from, ok := parseBound(q.DateFrom); ok && epochMillis(meta.UpdatedAt) < from {
			return false
		}
	}
	if q.DateTo != "" {
		if to, ok := parseBound(q.DateTo); ok && epochMillis(meta.UpdatedAt) > to {
			return false
		}
	}
	return true
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

// parseBound accepts a full ISO-8601 timestamp or a bare date.
func parseBound(s string) (int64, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func sortMetas(metas []deck.Meta, q presentations.SearchQuery) {
	desc := q.SortOrder == "desc"
	less := func(a, b *deck.Meta) bool {
		switch q.SortBy {
		case presentations.SortByTitle:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		case presentations.SortByCreatedAt:
			return epochMillis(a.CreatedAt) < epochMillis(b.CreatedAt)
		default:
			// relevance has no score in fallback mode; newest-updated
			// first matches the default ordering contract.
			return epochMillis(a.UpdatedAt) < epochMillis(b.UpdatedAt)
		}
	}
	sort.SliceStable(metas, func(i, j int) bool {
		if desc {
			return less(&metas[j], &metas[i])
		}
		return less(&metas[i], &metas[j])
	})
}

// CreateIndex creates the secondary index, reporting whether one is present
// afterwards. In fallback mode it reports false without error.
func (s *SearchIndex) CreateIndex(ctx context.Context) (bool, error) {
	mode, err := s.resolveMode(ctx)
	if err != nil {
		return false, err
	}
	if mode != modeIndexed {
		return false, nil
	}
	if err := s.ensureIndex(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// DropIndex removes the index. With deleteDocuments the projection hashes
// are removed alongside it.
func (s *SearchIndex) DropIndex(ctx context.Context, deleteDocuments bool) (bool, error) {
	mode, err := s.resolveMode(ctx)
	if err != nil {
		return false, err
	}
	if mode != modeIndexed {
		return false, nil
	}

	err = s.client.FTDropIndexWithArgs(ctx, s.keys.searchIndexName(), &redis.FTDropIndexOptions{
		DeleteDocs: deleteDocuments,
	}).Err()
	s.mu.Lock()
	s.indexReady = false
	s.mu.Unlock()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown index") ||
			strings.Contains(strings.ToLower(err.Error()), "no such index") {
			return false, nil
		}
		return false, presentations.ErrStorage{Op: "search index drop", Err: err}
	}
	return true, nil
}

// IndexInfo returns index statistics, or nil when no index exists or the
// capability is absent.
func (s *SearchIndex) IndexInfo(ctx context.Context) (map[string]interface{}, error) {
	mode, err := s.resolveMode(ctx)
	if err != nil {
		return nil, err
	}
	if mode != modeIndexed {
		return nil, nil
	}

	res, err := s.client.FTInfo(ctx, s.keys.searchIndexName()).Result()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown index") ||
			strings.Contains(strings.ToLower(err.Error()), "no such index") {
			return nil, nil
		}
		return nil, presentations.ErrStorage{Op: "search index info", Err: err}
	}
	return map[string]interface{}{
		"index_name":  res.IndexName,
		"num_docs":    res.NumDocs,
		"num_records": res.NumRecords,
		"num_terms":   res.NumTerms,
		"max_doc_id":  res.MaxDocID,
	}, nil
}

// ReindexAll rebuilds the search projection of every stored document from
// its metadata record and returns the number of documents visible to the
// index. Idempotent; useful after restoring a dump written before the
// projection existed.
func (s *SearchIndex) ReindexAll(ctx context.Context) (int, error) {
	mode, err := s.resolveMode(ctx)
	if err != nil {
		return 0, err
	}
	if mode == modeIndexed {
		if err := s.ensureIndex(ctx); err != nil {
			return 0, err
		}
	}

	var keys []string
	iter := s.client.Scan(ctx, 0, s.keys.docMetaPattern(), 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, presentations.ErrStorage{Op: "reindex scan", Err: err}
	}

	count := 0
	for _, key := range keys {
		id := s.keys.docID(key, "meta")
		if id == "" {
			continue
		}
		raw, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return count, presentations.ErrStorage{Op: "reindex load", Err: err}
		}
		meta, err := parseMeta(raw)
		if err != nil {
			corruptCounter.Inc(1)
			s.log.WithField("deck.id", id).WithError(err).Warn("skipping corrupt metadata record during reindex")
			continue
		}
		if err := s.client.HSet(ctx, s.keys.docSearch(id), searchProjection(meta)).Err(); err != nil {
			return count, presentations.ErrStorage{Op: "reindex write", Err: err}
		}
		count++
	}
	return count, nil
}
