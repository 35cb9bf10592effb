// Package store implements the per-type value stores described in spec §3
// and §4.3: a latest-value cache, a bounded history ring, and an
// append-during-bind subscriber list, all keyed by type identity.
//
// The latest-value cache and the subscriber list are multi-reader/
// single-writer: writers install a new immutable snapshot behind an atomic
// pointer, readers do a single atomic load. The history ring does not use
// snapshots: it is guarded by a sync.RWMutex, so a reader waits while a
// write is in progress. The snapshot scheme
// mirrors the read-copy pattern the teacher's eventloop uses for its
// promise registry (weak pointers behind a map guarded for writes only) and
// its FastState (atomic CAS, no reader-side locking).
package store

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Latest is the type-erased "most recent value of T" cell. Reads never
// block: a miss returns (nil, false).
type Latest struct {
	v atomic.Pointer[any]
}

// Set installs val as the new latest value, replacing any prior one.
func (l *Latest) Set(val any) {
	l.v.Store(&val)
}

// Get returns the most recently set value, or (nil, false) if none has ever
// been set.
func (l *Latest) Get() (any, bool) {
	p := l.v.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

// Stores owns one Latest, History, and TypeList per type, indexed by
// reflect.Type (the "type-handle supplied by the DSL word at bind" from
// the design notes §9). It is process-wide per PowerPlant instance, never
// a package-level global, so independent PowerPlants never share state.
type Stores struct {
	mu        sync.RWMutex
	latest    map[reflect.Type]*Latest
	histories map[reflect.Type]*History
	lists     map[reflect.Type]*TypeList
}

// New creates an empty store set.
func New() *Stores {
	return &Stores{
		latest:    make(map[reflect.Type]*Latest),
		histories: make(map[reflect.Type]*History),
		lists:     make(map[reflect.Type]*TypeList),
	}
}

// LatestFor returns (creating on first use) the Latest cell for t.
func (s *Stores) LatestFor(t reflect.Type) *Latest {
	s.mu.RLock()
	l, ok := s.latest[t]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.latest[t]; ok {
		return l
	}
	l = &Latest{}
	s.latest[t] = l
	return l
}

// HistoryFor returns (creating on first use) the History ring for t. depth
// is the ring's capacity the first time it is created; subsequent calls
// grow the ring to at least depth, per spec §3: "depth is the max across
// all subscribers that declared a historical view of T."
func (s *Stores) HistoryFor(t reflect.Type, depth int) *History {
	s.mu.RLock()
	h, ok := s.histories[t]
	s.mu.RUnlock()
	if ok {
		h.ensureCapacity(depth)
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok = s.histories[t]; ok {
		h.ensureCapacity(depth)
		return h
	}
	h = newHistory(depth)
	s.histories[t] = h
	return h
}

// HistoryIfPresent returns the History ring for t without creating one,
// so the emit pipeline can skip pushing into types no Last<N,T> subscriber
// has ever bound a ring for.
func (s *Stores) HistoryIfPresent(t reflect.Type) (*History, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.histories[t]
	return h, ok
}

// ListFor returns (creating on first use) the subscriber TypeList for t.
func (s *Stores) ListFor(t reflect.Type) *TypeList {
	s.mu.RLock()
	l, ok := s.lists[t]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.lists[t]; ok {
		return l
	}
	l = &TypeList{}
	s.lists[t] = l
	return l
}

// Reset clears every store. Called on powerplant destruction (spec §4.9
// Terminated state: "destroy pools, stores, chrono").
func (s *Stores) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = make(map[reflect.Type]*Latest)
	s.histories = make(map[reflect.Type]*History)
	s.lists = make(map[reflect.Type]*TypeList)
}
