// Package cache is the client's only shared mutable resource: a local
// entity cache keyed by league handle and entity kind. Turn and lifecycle
// logic read through it but never invalidate; invalidation is the
// freshness coordinator's job alone.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Kind names one cached entity class within a league.
type Kind string

const (
	KindLeague          Kind = "league"
	KindMembers         Kind = "members"
	KindPendingMembers  Kind = "pendingMembers"
	KindSettings        Kind = "settings"
	KindRules           Kind = "rules"
	KindTimeline        Kind = "selectionTimeline"
	KindContestants     Kind = "contestants"
	KindEpisodes        Kind = "episodes"
	KindBasePredictions Kind = "basePredictions"
	KindCustomEvents    Kind = "customEvents"
)

// Key identifies one cache entry.
type Key struct {
	League string
	Kind   Kind
}

type entry struct {
	data        json.RawMessage
	fetchedAt   time.Time
	invalidated bool
}

// Store holds cached entities plus the bookkeeping needed to discard late
// responses: each key carries a generation that advances whenever its
// entry is purged, and in-flight fetches are cancellable per key.
type Store struct {
	mu       sync.Mutex
	entries  map[Key]*entry
	gens     map[Key]uint64
	inflight map[Key]*Fetch
	clock    clockwork.Clock
}

// NewStore creates an empty store using the given clock for fetch
// timestamps.
func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		entries:  make(map[Key]*entry),
		gens:     make(map[Key]uint64),
		inflight: make(map[Key]*Fetch),
		clock:    clock,
	}
}

// Get returns the cached payload for key and whether one exists at all,
// regardless of freshness.
func (s *Store) Get(key Key) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.data == nil {
		return nil, false
	}
	return e.data, true
}

// Fresh reports whether key holds data younger than staleTime and not
// explicitly invalidated.
func (s *Store) Fresh(key Key, staleTime time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.data == nil || e.invalidated {
		return false
	}
	return s.clock.Now().Sub(e.fetchedAt) < staleTime
}

// Invalidate marks the keys stale so the next read refetches. Existing
// data stays readable in the meantime.
func (s *Store) Invalidate(keys ...Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		if e, ok := s.entries[key]; ok {
			e.invalidated = true
		}
	}
}

// Fetch is a handle for one in-flight remote read. Complete applies the
// result only if nothing newer superseded it. Each fetch owns its own
// cancel func: a superseded or stale handle can wind itself down but
// never touches the registration of a fetch that replaced it.
type Fetch struct {
	store  *Store
	key    Key
	gen    uint64
	cancel context.CancelFunc
}

// StartFetch registers an in-flight fetch for key and returns a context
// the caller must use for the request; PurgeLeague cancels it. The
// returned Fetch captures the key's generation so a slow response that
// resolves after a purge is discarded instead of applied.
func (s *Store) StartFetch(ctx context.Context, key Key) (*Fetch, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.inflight[key]; ok {
		// A newer fetch supersedes the old one.
		prev.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	f := &Fetch{store: s, key: key, gen: s.gens[key], cancel: cancel}
	s.inflight[key] = f

	return f, fctx
}

// deregister drops f's own registration, leaving any fetch that replaced
// it in place for PurgeLeague to cancel. Callers hold s.mu.
func (f *Fetch) deregister() {
	if f.store.inflight[f.key] == f {
		delete(f.store.inflight, f.key)
	}
}

// Complete stores the fetched payload. It returns false, applying
// nothing, when the key's generation moved on since StartFetch (the
// league was purged): a stale response must never clobber newer state or
// resurrect deleted data.
func (f *Fetch) Complete(data json.RawMessage) bool {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()

	f.cancel()
	f.deregister()
	if s.gens[f.key] != f.gen {
		log.Debug().
			Str("league", f.key.League).
			Str("kind", string(f.key.Kind)).
			Msg("discarding late fetch result")
		return false
	}
	s.entries[f.key] = &entry{data: data, fetchedAt: s.clock.Now()}
	return true
}

// Abandon drops the in-flight registration without storing anything, for
// fetches whose screen unmounted or whose request failed.
func (f *Fetch) Abandon() {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	f.cancel()
	f.deregister()
}

// PurgeLeague removes every entry for the league. In-flight fetches
// against those entries are cancelled first so a refetch cannot
// resurrect deleted data, and generations advance so already-resolved
// responses are discarded by Complete.
func (s *Store) PurgeLeague(league string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, f := range s.inflight {
		if key.League == league {
			f.cancel()
			delete(s.inflight, key)
			s.gens[key]++
		}
	}
	for key := range s.entries {
		if key.League == league {
			s.gens[key]++
			delete(s.entries, key)
		}
	}
	log.Info().Str("league", league).Msg("purged league cache entries")
}

// Keys returns every populated key, for snapshotting and tests.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}
