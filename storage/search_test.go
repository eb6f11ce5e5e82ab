package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	presentations "github.com/sethwebster/presentations"
	"github.com/sethwebster/presentations/deck"
)

// seededSearch returns a search component over a repository pre-filled with
// three documents saved an hour apart:
//
//	alpha   12:00  "Quarterly Review"    tags finance,q2   owner user-1
//	bravo   13:00  "Launch Plan"         tags launch,q2    owner user-2
//	charlie 14:00  "Retrospective"       tags launch       owner user-1
func seededSearch(t *testing.T) (*SearchIndex, *DocRepository) {
	t.Helper()
	client, _ := newTestClient(t)
	clock := newTestClock()
	opts := testOptions(clock)
	repo := NewDocRepository(client, opts)
	search := NewSearchIndex(client, opts)

	ctx := context.Background()
	seed := func(id, title, owner string, tags []string) {
		m := &deck.Deck{Meta: deck.Meta{ID: id, Title: title, OwnerID: owner, Tags: tags}}
		require.NoError(t, repo.SaveManifest(ctx, id, m))
		clock.Advance(time.Hour)
	}
	seed("alpha", "Quarterly Review", "user-1", []string{"finance", "q2"})
	seed("bravo", "Launch Plan", "user-2", []string{"launch", "q2"})
	seed("charlie", "Retrospective", "user-1", []string{"launch"})
	return search, repo
}

func metaIDs(metas []deck.Meta) []string {
	ids := make([]string, len(metas))
	for i, m := range metas {
		ids[i] = m.ID
	}
	return ids
}

func TestSearchPinsFallbackWithoutIndexCapability(t *testing.T) {
	search, _ := seededSearch(t)

	_, err := search.Search(context.Background(), presentations.SearchQuery{})
	require.NoError(t, err)

	search.mu.Lock()
	defer search.mu.Unlock()
	assert.Equal(t, modeFallback, search.mode)
}

func TestSearchEmptyQueryReturnsAllNewestFirst(t *testing.T) {
	search, _ := seededSearch(t)

	metas, err := search.Search(context.Background(), presentations.SearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"charlie", "bravo", "alpha"}, metaIDs(metas))
}

func TestSearchTitleSubstringCaseInsensitive(t *testing.T) {
	search, _ := seededSearch(t)

	metas, err := search.Search(context.Background(), presentations.SearchQuery{Text: "qUaRtErLy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, metaIDs(metas))
}

func TestSearchTagsAreConjunctive(t *testing.T) {
	search, _ := seededSearch(t)
	ctx := context.Background()

	metas, err := search.Search(ctx, presentations.SearchQuery{Tags: []string{"q2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "alpha"}, metaIDs(metas))

	metas, err = search.Search(ctx, presentations.SearchQuery{Tags: []string{"launch", "q2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo"}, metaIDs(metas))

	// Whole-string comparison per tag, never substring.
	metas, err = search.Search(ctx, presentations.SearchQuery{Tags: []string{"fin"}})
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestSearchOwnerExactMatch(t *testing.T) {
	search, _ := seededSearch(t)

	metas, err := search.Search(context.Background(), presentations.SearchQuery{OwnerID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"charlie", "alpha"}, metaIDs(metas))
}

func TestSearchDateRangeInclusive(t *testing.T) {
	search, _ := seededSearch(t)
	ctx := context.Background()

	metas, err := search.Search(ctx, presentations.SearchQuery{DateFrom: "2024-06-01T13:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, []string{"charlie", "bravo"}, metaIDs(metas))

	metas, err = search.Search(ctx, presentations.SearchQuery{DateTo: "2024-06-01T13:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "alpha"}, metaIDs(metas))

	// Bare dates are accepted as bounds.
	metas, err = search.Search(ctx, presentations.SearchQuery{DateFrom: "2024-06-01"})
	require.NoError(t, err)
	assert.Len(t, metas, 3)

	// Unparsable bounds are ignored rather than rejected.
	metas, err = search.Search(ctx, presentations.SearchQuery{DateFrom: "not-a-date"})
	require.NoError(t, err)
	assert.Len(t, metas, 3)
}

func TestSearchPagination(t *testing.T) {
	search, _ := seededSearch(t)
	ctx := context.Background()

	metas, err := search.Search(ctx, presentations.SearchQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"charlie", "bravo"}, metaIDs(metas))

	metas, err = search.Search(ctx, presentations.SearchQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, metaIDs(metas))

	metas, err = search.Search(ctx, presentations.SearchQuery{Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestSearchSortByTitleAscending(t *testing.T) {
	search, _ := seededSearch(t)

	metas, err := search.Search(context.Background(), presentations.SearchQuery{
		SortBy:    presentations.SortByTitle,
		SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "alpha", "charlie"}, metaIDs(metas))
}

func TestSearchIndexVerbsInFallbackMode(t *testing.T) {
	search, _ := seededSearch(t)
	ctx := context.Background()

	created, err := search.CreateIndex(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	dropped, err := search.DropIndex(ctx, true)
	require.NoError(t, err)
	assert.False(t, dropped)

	info, err := search.IndexInfo(ctx)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestReindexAllRestoresProjections(t *testing.T) {
	search, _ := seededSearch(t)
	ctx := context.Background()

	require.NoError(t, search.client.Del(ctx,
		"doc:alpha:search", "doc:bravo:search", "doc:charlie:search",
	).Err())

	n, err := search.ReindexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	fields, err := search.client.HGetAll(ctx, "doc:alpha:search").Result()
	require.NoError(t, err)
	assert.Equal(t, "Quarterly Review", fields[fieldTitle])
	assert.Equal(t, "finance|q2", fields[fieldTags])
}

func TestNormalizeQuery(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   presentations.SearchQuery
		want presentations.SearchQuery
	}{
		{
			name: "zero query gets defaults",
			in:   presentations.SearchQuery{},
			want: presentations.SearchQuery{Limit: 20, SortBy: presentations.SortByUpdatedAt, SortOrder: "desc"},
		},
		{
			name: "oversized limit is clamped",
			in:   presentations.SearchQuery{Limit: 5000},
			want: presentations.SearchQuery{Limit: 100, SortBy: presentations.SortByUpdatedAt, SortOrder: "desc"},
		},
		{
			name: "negative offset is zeroed",
			in:   presentations.SearchQuery{Offset: -3},
			want: presentations.SearchQuery{Limit: 20, SortBy: presentations.SortByUpdatedAt, SortOrder: "desc"},
		},
		{
			name: "unknown sort key falls back",
			in:   presentations.SearchQuery{SortBy: "popularity", SortOrder: "sideways"},
			want: presentations.SearchQuery{Limit: 20, SortBy: presentations.SortByUpdatedAt, SortOrder: "desc"},
		},
		{
			name: "valid fields pass through",
			in:   presentations.SearchQuery{Limit: 7, Offset: 14, SortBy: presentations.SortByTitle, SortOrder: "asc"},
			want: presentations.SearchQuery{Limit: 7, Offset: 14, SortBy: presentations.SortByTitle, SortOrder: "asc"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeQuery(tc.in))
		})
	}
}

func TestBuildIndexQuery(t *testing.T) {
	assert.Equal(t, "*", buildIndexQuery(presentations.SearchQuery{}))

	q := presentations.SearchQuery{
		Text:    "launch",
		Tags:    []string{"q2", "finance"},
		OwnerID: "user-1",
	}
	assert.Equal(t, "@title:(launch) @tags:{q2} @tags:{finance} @owner:{user\\-1}", buildIndexQuery(q))

	q = presentations.SearchQuery{
		DateFrom: "2024-06-01T13:00:00Z",
		DateTo:   "bogus",
	}
	assert.Equal(t, "@updated:[1717246800000 +inf]", buildIndexQuery(q))
}

func TestEscapeQueryToken(t *testing.T) {
	assert.Equal(t, `hello\ world`, escapeQueryToken("hello world"))
	assert.Equal(t, `a\|b\{c\}`, escapeQueryToken("a|b{c}"))
	assert.Equal(t, "plain", escapeQueryToken("plain"))
}
