package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// snapshotEntry is the on-disk form of one cache entry. FetchedAt
// round-trips as an ISO (RFC 3339) string and is re-hydrated on load.
type snapshotEntry struct {
	League    string          `json:"league"`
	Kind      Kind            `json:"kind"`
	Data      json.RawMessage `json:"data"`
	FetchedAt string          `json:"fetched_at"`
}

type snapshot struct {
	SavedAt string          `json:"saved_at"`
	Entries []snapshotEntry `json:"entries"`
}

// Save writes the current cache contents to path so freshness survives an
// app restart. Invalidated entries are skipped; they would refetch anyway.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	snap := snapshot{SavedAt: s.clock.Now().UTC().Format(time.RFC3339)}
	for key, e := range s.entries {
		if e.data == nil || e.invalidated {
			continue
		}
		snap.Entries = append(snap.Entries, snapshotEntry{
			League:    key.League,
			Kind:      key.Kind,
			Data:      e.data,
			FetchedAt: e.fetchedAt.UTC().Format(time.RFC3339),
		})
	}
	s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal cache snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cache snapshot: %w", err)
	}
	log.Debug().Int("entries", len(snap.Entries)).Str("path", path).Msg("saved cache snapshot")
	return nil
}

// Load re-hydrates a snapshot written by Save. A missing file is not an
// error; a corrupt one is reported and the cache starts empty rather than
// guessing. Entries with unparseable timestamps load as already stale.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse cache snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, se := range snap.Entries {
		key := Key{League: se.League, Kind: se.Kind}
		e := &entry{data: se.Data}
		if t, perr := time.Parse(time.RFC3339, se.FetchedAt); perr == nil {
			e.fetchedAt = t
		} else {
			e.invalidated = true
		}
		s.entries[key] = e
	}
	log.Info().Int("entries", len(snap.Entries)).Str("path", path).Msg("loaded cache snapshot")
	return nil
}
