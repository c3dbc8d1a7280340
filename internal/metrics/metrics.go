// Package metrics provides application-level counters using stdlib expvar.
// Hosts that run an HTTP server on the default mux get them on /debug/vars
// for free; everyone else can read them through expvar.Get.
package metrics

import "expvar"

// Operation counters.
var (
	ProcessTotal        = expvar.NewInt("memopipe_process_total")
	ClassifyFallback    = expvar.NewInt("memopipe_classify_fallback_total")
	ClassifyDowngraded  = expvar.NewInt("memopipe_classify_downgraded_total")
	StoreTotal          = expvar.NewInt("memopipe_store_total")
	StoreQueued         = expvar.NewInt("memopipe_store_queued_total")
	DedupeMerged        = expvar.NewInt("memopipe_dedupe_merged_total")
	LinksCreated        = expvar.NewInt("memopipe_links_created_total")
	LinksDangling       = expvar.NewInt("memopipe_links_dangling_total")
	AuditEventsDropped  = expvar.NewInt("memopipe_audit_events_dropped_total")
	LifecycleTombstoned = expvar.NewInt("memopipe_lifecycle_tombstoned_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
