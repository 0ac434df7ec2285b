package filter

import (
	"sync"
	"time"

	"fieldlog/pkg/event"
	"fieldlog/pkg/severity"
)

// LevelAtLeast accepts events at least as severe as l.
func LevelAtLeast(l severity.Level) Filter {
	return func(e *event.Event) bool {
		return e.Level().AtLeastAsSevereAs(l)
	}
}

// SubsystemIn accepts events whose subsystem is one of the given values.
func SubsystemIn(subsystems ...string) Filter {
	set := toSet(subsystems)
	return func(e *event.Event) bool {
		_, ok := set[e.Subsystem()]
		return ok
	}
}

// CategoryIn accepts events whose category is one of the given values.
func CategoryIn(categories ...string) Filter {
	set := toSet(categories)
	return func(e *event.Event) bool {
		_, ok := set[e.Category()]
		return ok
	}
}

// TagEquals accepts events whose merged tags contain key=value.
func TagEquals(key, value string) Filter {
	return func(e *event.Event) bool {
		v, ok := e.MergedTags()[key]
		return ok && v == value
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// dedupCacheLimit is the fingerprint-cache size at which an insert first
// sweeps out expired entries. Entries still inside the window are kept, so
// the cache can grow past this size.
const dedupCacheLimit = 8192

// Deduplicate rejects events whose fingerprint (see event.Event.Fingerprint)
// was already seen within window. There is no background goroutine; expired
// entries are swept lazily on insert once the cache holds dedupCacheLimit
// entries, the same "have I seen this" core the
// teacher's standalone deduplication manager builds a full LRU/TTL cache
// around, scaled down to what a pure filter closure needs.
func Deduplicate(window time.Duration) Filter {
	var (
		mu   sync.Mutex
		seen = make(map[uint64]time.Time, dedupCacheLimit)
	)
	return func(e *event.Event) bool {
		fp := e.Fingerprint()
		now := e.Timestamp()
		mu.Lock()
		defer mu.Unlock()

		if last, ok := seen[fp]; ok && now.Sub(last) < window {
			return false
		}
		if len(seen) >= dedupCacheLimit {
			for k, t := range seen {
				if now.Sub(t) >= window {
					delete(seen, k)
				}
			}
		}
		seen[fp] = now
		return true
	}
}
