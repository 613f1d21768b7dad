package flow

import (
	"time"
)

// Entry holds the aggregated counters of one live flow. Times are
// wall-clock seconds; StartTime is set at creation and never mutated,
// EndTime moves on every hit.
type Entry struct {
	Bytes     int64   `json:"bytes"`
	Packets   int64   `json:"packets"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Flags     string  `json:"flags"`
}

// Reason tells why an entry was aged out of the cache
type Reason string

const (
	ReasonShutdown Reason = "shutdown"
	ReasonOverflow Reason = "overflow"
	ReasonTCPEnd   Reason = "tcp-end"
	ReasonActive   Reason = "active-timeout"
	ReasonInactive Reason = "inactive-timeout"
)

// Eviction is an entry leaving the cache, bound for the exporter
type Eviction struct {
	Key    string
	Entry  Entry
	Reason Reason
}

// Cache is the per-interface flow table. It is single-owner: only the
// agent processor touches it, so no locking is needed.
type Cache struct {
	entries         map[string]*Entry
	limit           int
	activeTimeout   time.Duration
	inactiveTimeout time.Duration
	now             func() time.Time
}

// NewCache creates a flow cache with the given aging parameters
func NewCache(limit int, activeTimeout, inactiveTimeout time.Duration) *Cache {
	return &Cache{
		entries:         make(map[string]*Entry),
		limit:           limit,
		activeTimeout:   activeTimeout,
		inactiveTimeout: inactiveTimeout,
		now:             time.Now,
	}
}

// SetClock replaces the wall clock, for tests
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Len reports the number of live entries
func (c *Cache) Len() int {
	return len(c.entries)
}

// Update coalesces one packet observation into the cache. Existing
// entries accumulate bytes, packets and TCP flags; a first occurrence
// inserts a fresh entry with start and end time both at now.
func (c *Cache) Update(key string, length int64, flags string) {
	ts := seconds(c.now())
	if ent, ok := c.entries[key]; ok {
		ent.Bytes += length
		ent.Packets++
		ent.EndTime = ts
		ent.Flags = MergeFlags(ent.Flags, flags)
		return
	}
	if flags == "" {
		flags = NoFlags
	}
	c.entries[key] = &Entry{
		Bytes:     length,
		Packets:   1,
		StartTime: ts,
		EndTime:   ts,
		Flags:     flags,
	}
}

// Age applies the eviction policy and returns the evicted entries in
// priority order: shutdown drains everything; otherwise a single
// overflow eviction of the oldest entry when over the limit, then the
// per-entry sweep for terminated TCP sessions, the active-timeout
// cutoff and the inactivity timeout. Every eviction transfers
// ownership of the entry to the caller.
func (c *Cache) Age(shutdown bool) []Eviction {
	var evicted []Eviction
	ts := seconds(c.now())

	if shutdown {
		for key, ent := range c.entries {
			evicted = append(evicted, Eviction{Key: key, Entry: *ent, Reason: ReasonShutdown})
			delete(c.entries, key)
		}
		return evicted
	}

	// At most one overflow eviction per packet
	if len(c.entries) > c.limit {
		oldest := ""
		var oldestStart float64
		for key, ent := range c.entries {
			if oldest == "" || ent.StartTime < oldestStart {
				oldest = key
				oldestStart = ent.StartTime
			}
		}
		evicted = append(evicted, Eviction{Key: oldest, Entry: *c.entries[oldest], Reason: ReasonOverflow})
		delete(c.entries, oldest)
	}

	for key, ent := range c.entries {
		var reason Reason
		switch {
		case containsAny(ent.Flags, "FR"):
			reason = ReasonTCPEnd
		case ent.EndTime-ent.StartTime > c.activeTimeout.Seconds():
			reason = ReasonActive
		case ts-ent.EndTime > c.inactiveTimeout.Seconds():
			reason = ReasonInactive
		default:
			continue
		}
		evicted = append(evicted, Eviction{Key: key, Entry: *ent, Reason: reason})
		delete(c.entries, key)
	}

	return evicted
}

func containsAny(s, chars string) bool {
	for i := 0; i < len(chars); i++ {
		for j := 0; j < len(s); j++ {
			if s[j] == chars[i] {
				return true
			}
		}
	}
	return false
}

func seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
