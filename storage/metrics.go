package storage

import "github.com/docker/go-metrics"

var (
	ns = metrics.NewNamespace("deckstore", "storage", nil)

	// operationTimer tracks latency per storage verb.
	operationTimer = ns.NewLabeledTimer("operation", "time taken per storage operation", "operation")

	// dedupeCounter counts asset puts that were satisfied by an existing
	// copy of the same bytes.
	dedupeCounter = ns.NewCounter("asset_dedupe_hits", "number of asset puts deduplicated by content hash")

	// corruptCounter counts stored documents skipped because they failed
	// to parse during list or search.
	corruptCounter = ns.NewCounter("corrupt_documents_skipped", "number of corrupt documents skipped by enumeration")

	// fallbackSearches counts queries answered by the SCAN fallback
	// because the index capability is absent.
	fallbackSearches = ns.NewCounter("search_fallback_queries", "number of search queries served by the scan fallback")
)

func init() {
	metrics.Register(ns)
}
