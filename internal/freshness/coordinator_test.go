package freshness

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aidan3445/castaway/internal/cache"
)

// stubFetcher records fetches and writes a payload through the store the
// way the real fetcher does.
type stubFetcher struct {
	mu    sync.Mutex
	store *cache.Store
	calls []cache.Key
	fail  map[cache.Kind]error
}

func (f *stubFetcher) FetchEntity(ctx context.Context, league string, kind cache.Kind) error {
	f.mu.Lock()
	key := cache.Key{League: league, Kind: kind}
	f.calls = append(f.calls, key)
	err := f.fail[kind]
	f.mu.Unlock()
	if err != nil {
		return err
	}

	fetch, _ := f.store.StartFetch(ctx, key)
	fetch.Complete(json.RawMessage(`{}`))
	return nil
}

func (f *stubFetcher) fetched() []cache.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]cache.Key, len(f.calls))
	copy(out, f.calls)
	return out
}

func seedKinds(t *testing.T, store *cache.Store, league string, kinds ...cache.Kind) {
	t.Helper()
	for _, kind := range kinds {
		fetch, _ := store.StartFetch(context.Background(), cache.Key{League: league, Kind: kind})
		require.True(t, fetch.Complete(json.RawMessage(`{}`)))
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *cache.Store, *stubFetcher) {
	t.Helper()
	store := cache.NewStore(clockwork.NewFakeClock())
	fetcher := &stubFetcher{store: store, fail: map[cache.Kind]error{}}
	coord := NewCoordinator(store, DefaultTable(), fetcher)
	return coord, store, fetcher
}

func TestRefreshFansOutHubScopeOnly(t *testing.T) {
	coord, store, fetcher := newTestCoordinator(t)

	seedKinds(t, store, "lg1",
		cache.KindLeague, cache.KindMembers, cache.KindTimeline,
		cache.KindBasePredictions, cache.KindCustomEvents,
		cache.KindContestants, cache.KindEpisodes)
	seedKinds(t, store, "other", cache.KindLeague, cache.KindMembers)

	require.NoError(t, coord.Refresh(context.Background(), "lg1", ScreenHub))

	want := map[cache.Key]bool{
		{League: "lg1", Kind: cache.KindLeague}:          true,
		{League: "lg1", Kind: cache.KindMembers}:         true,
		{League: "lg1", Kind: cache.KindTimeline}:        true,
		{League: "lg1", Kind: cache.KindBasePredictions}: true,
		{League: "lg1", Kind: cache.KindCustomEvents}:    true,
	}
	got := map[cache.Key]bool{}
	for _, key := range fetcher.fetched() {
		got[key] = true
	}
	assert.Equal(t, want, got, "hub refresh must touch exactly the hub scope")

	// Entities outside the scope, and other leagues, stay fresh.
	assert.True(t, store.Fresh(cache.Key{League: "lg1", Kind: cache.KindContestants}, time.Hour))
	assert.True(t, store.Fresh(cache.Key{League: "lg1", Kind: cache.KindEpisodes}, time.Hour))
	assert.True(t, store.Fresh(cache.Key{League: "other", Kind: cache.KindLeague}, time.Hour))
}

func TestRefreshSurfacesFailuresButInvalidationStands(t *testing.T) {
	coord, store, fetcher := newTestCoordinator(t)
	seedKinds(t, store, "lg1", cache.KindLeague, cache.KindMembers)

	wantErr := errors.New("remote down")
	fetcher.fail[cache.KindMembers] = wantErr

	err := coord.Refresh(context.Background(), "lg1", ScreenHub)
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)

	// The failed entity stays marked stale so the next tick retries.
	assert.False(t, store.Fresh(cache.Key{League: "lg1", Kind: cache.KindMembers}, time.Hour))
	assert.True(t, store.Fresh(cache.Key{League: "lg1", Kind: cache.KindLeague}, time.Hour))
}

func TestRefreshUnknownScreen(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	assert.Error(t, coord.Refresh(context.Background(), "lg1", Screen("mystery")))
}

func TestOnMutationInvalidatesAffectedSetAndWakes(t *testing.T) {
	coord, store, _ := newTestCoordinator(t)
	seedKinds(t, store, "lg1",
		cache.KindLeague, cache.KindMembers, cache.KindTimeline, cache.KindSettings)

	woke := false
	coord.SetWake(func() { woke = true })

	coord.OnMutation("lg1", MutationPick)

	assert.False(t, store.Fresh(cache.Key{League: "lg1", Kind: cache.KindTimeline}, time.Hour))
	assert.False(t, store.Fresh(cache.Key{League: "lg1", Kind: cache.KindLeague}, time.Hour))
	assert.True(t, store.Fresh(cache.Key{League: "lg1", Kind: cache.KindMembers}, time.Hour),
		"a pick does not touch the order")
	assert.True(t, store.Fresh(cache.Key{League: "lg1", Kind: cache.KindSettings}, time.Hour))
	assert.True(t, woke, "a mutation must wake the poller")
}

func TestResyncTurnInvalidatesTurnInputs(t *testing.T) {
	coord, store, _ := newTestCoordinator(t)
	seedKinds(t, store, "lg1",
		cache.KindLeague, cache.KindMembers, cache.KindTimeline, cache.KindContestants)

	coord.ResyncTurn("lg1")

	assert.False(t, store.Fresh(cache.Key{League: "lg1", Kind: cache.KindLeague}, time.Hour))
	assert.False(t, store.Fresh(cache.Key{League: "lg1", Kind: cache.KindMembers}, time.Hour))
	assert.False(t, store.Fresh(cache.Key{League: "lg1", Kind: cache.KindTimeline}, time.Hour))
	assert.True(t, store.Fresh(cache.Key{League: "lg1", Kind: cache.KindContestants}, time.Hour))
}

func TestOnDeletePurges(t *testing.T) {
	coord, store, _ := newTestCoordinator(t)
	seedKinds(t, store, "doomed", cache.KindLeague, cache.KindMembers)
	seedKinds(t, store, "other", cache.KindLeague)

	coord.OnDelete("doomed")

	_, ok := store.Get(cache.Key{League: "doomed", Kind: cache.KindLeague})
	assert.False(t, ok)
	_, ok = store.Get(cache.Key{League: "other", Kind: cache.KindLeague})
	assert.True(t, ok)
}
