package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

// Action outcomes.
const (
	OutcomeForwarded   = "forwarded"
	OutcomeRejected    = "rejected"
	OutcomeFailed      = "failed"
	OutcomeUnavailable = "unavailable"
	OutcomeConflict    = "conflict"
)

var (
	queriesServed     atomic.Int64
	queriesFailed     atomic.Int64
	statsCacheHits    atomic.Int64
	statsCacheMisses  atomic.Int64
	eventsPublished   atomic.Int64
	eventsPublishFail atomic.Int64

	actionsMu sync.Mutex
	actions   = map[actionKey]*atomic.Int64{}
)

type actionKey struct {
	action  string
	outcome string
}

func ObserveQuery(err error) {
	if err != nil {
		queriesFailed.Add(1)
		return
	}
	queriesServed.Add(1)
}

func ObserveStatsCache(hit bool) {
	if hit {
		statsCacheHits.Add(1)
		return
	}
	statsCacheMisses.Add(1)
}

func ObserveEventPublish(err error) {
	if err != nil {
		eventsPublishFail.Add(1)
		return
	}
	eventsPublished.Add(1)
}

func ObserveAction(action, outcome string) {
	actionCounter(action, outcome).Add(1)
}

// ActionCount reports how many times action ended with outcome.
func ActionCount(action, outcome string) int64 {
	return actionCounter(action, outcome).Load()
}

func actionCounter(action, outcome string) *atomic.Int64 {
	actionsMu.Lock()
	defer actionsMu.Unlock()
	key := actionKey{action: action, outcome: outcome}
	c, ok := actions[key]
	if !ok {
		c = &atomic.Int64{}
		actions[key] = c
	}
	return c
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP formulari_queries_served_total Number of list queries answered.\n")
	fmt.Fprintf(w, "# TYPE formulari_queries_served_total counter\n")
	fmt.Fprintf(w, "formulari_queries_served_total %d\n", queriesServed.Load())

	fmt.Fprintf(w, "# HELP formulari_queries_failed_total Number of list queries that failed in the record store.\n")
	fmt.Fprintf(w, "# TYPE formulari_queries_failed_total counter\n")
	fmt.Fprintf(w, "formulari_queries_failed_total %d\n", queriesFailed.Load())

	fmt.Fprintf(w, "# HELP formulari_stats_cache_hits_total Dashboard statistics served from cache.\n")
	fmt.Fprintf(w, "# TYPE formulari_stats_cache_hits_total counter\n")
	fmt.Fprintf(w, "formulari_stats_cache_hits_total %d\n", statsCacheHits.Load())

	fmt.Fprintf(w, "# HELP formulari_stats_cache_misses_total Dashboard statistics computed from the store.\n")
	fmt.Fprintf(w, "# TYPE formulari_stats_cache_misses_total counter\n")
	fmt.Fprintf(w, "formulari_stats_cache_misses_total %d\n", statsCacheMisses.Load())

	fmt.Fprintf(w, "# HELP formulari_events_published_total Action events published to Kafka.\n")
	fmt.Fprintf(w, "# TYPE formulari_events_published_total counter\n")
	fmt.Fprintf(w, "formulari_events_published_total %d\n", eventsPublished.Load())

	fmt.Fprintf(w, "# HELP formulari_events_publish_failed_total Action events that could not be published.\n")
	fmt.Fprintf(w, "# TYPE formulari_events_publish_failed_total counter\n")
	fmt.Fprintf(w, "formulari_events_publish_failed_total %d\n", eventsPublishFail.Load())

	fmt.Fprintf(w, "# HELP formulari_actions_total Proxied actions by kind and outcome.\n")
	fmt.Fprintf(w, "# TYPE formulari_actions_total counter\n")
	actionsMu.Lock()
	keys := make([]actionKey, 0, len(actions))
	for k := range actions {
		keys = append(keys, k)
	}
	actionsMu.Unlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].action != keys[j].action {
			return keys[i].action < keys[j].action
		}
		return keys[i].outcome < keys[j].outcome
	})
	for _, k := range keys {
		fmt.Fprintf(w, "formulari_actions_total{action=%q,outcome=%q} %d\n", k.action, k.outcome, ActionCount(k.action, k.outcome))
	}
}
