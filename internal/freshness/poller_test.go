package freshness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aidan3445/castaway/internal/cache"
	"github.com/Aidan3445/castaway/internal/models"
)

type stubConditions struct {
	mu     sync.Mutex
	status models.LeagueStatus
	airing bool
}

func (c *stubConditions) Conditions(context.Context, string) (models.LeagueStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.airing, nil
}

func (c *stubConditions) set(status models.LeagueStatus, airing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.airing = airing
}

// signalFetcher signals every fetch on a channel so tests can wait for a
// whole tick's worth deterministically. It stores nothing, so a poll tick
// always refetches the full screen scope.
type signalFetcher struct {
	ch chan cache.Key
}

func newSignalFetcher() *signalFetcher {
	return &signalFetcher{ch: make(chan cache.Key, 64)}
}

func (f *signalFetcher) FetchEntity(_ context.Context, league string, kind cache.Kind) error {
	f.ch <- cache.Key{League: league, Kind: kind}
	return nil
}

func (f *signalFetcher) waitBatch(t *testing.T, n int) []cache.Key {
	t.Helper()
	out := make([]cache.Key, 0, n)
	for len(out) < n {
		select {
		case key := <-f.ch:
			out = append(out, key)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for fetch %d of %d", len(out)+1, n)
		}
	}
	return out
}

func (f *signalFetcher) assertQuiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case key := <-f.ch:
		t.Fatalf("unexpected fetch of %s/%s", key.League, key.Kind)
	case <-time.After(d):
	}
}

func newTestPoller(t *testing.T, cond *stubConditions) (*Poller, *signalFetcher, *clockwork.FakeClock, func()) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := cache.NewStore(clock)
	fetcher := newSignalFetcher()
	coord := NewCoordinator(store, DefaultTable(), fetcher)
	p := NewPoller(coord, store, cond, fetcher, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()
	stop := func() {
		cancel()
		<-done
	}
	return p, fetcher, clock, stop
}

func TestPollerIsSuspendedWithoutFocus(t *testing.T) {
	cond := &stubConditions{status: models.LeagueStatusDraft}
	_, fetcher, clock, stop := newTestPoller(t, cond)
	defer stop()

	clock.Advance(24 * time.Hour)
	fetcher.assertQuiet(t, 200*time.Millisecond)
}

func TestFocusTriggersImmediateScopeRefetch(t *testing.T) {
	cond := &stubConditions{status: models.LeagueStatusDraft}
	p, fetcher, _, stop := newTestPoller(t, cond)
	defer stop()

	p.OnFocus(context.Background(), "lg1", ScreenDraftRoom)

	batch := fetcher.waitBatch(t, len(ScopeFor(ScreenDraftRoom)))
	seen := map[cache.Kind]bool{}
	for _, key := range batch {
		assert.Equal(t, "lg1", key.League)
		seen[key.Kind] = true
	}
	for _, kind := range ScopeFor(ScreenDraftRoom) {
		assert.True(t, seen[kind], "focus refetch missing %s", kind)
	}
}

func TestPollerTicksAtDraftInterval(t *testing.T) {
	cond := &stubConditions{status: models.LeagueStatusDraft}
	p, fetcher, clock, stop := newTestPoller(t, cond)
	defer stop()

	scope := len(ScopeFor(ScreenDraftRoom))
	p.OnFocus(context.Background(), "lg1", ScreenDraftRoom)
	fetcher.waitBatch(t, scope)

	interval := DefaultTable().DraftWindow.PollInterval
	for i := 0; i < 3; i++ {
		// Wait for the run loop to arm its interval timer, then advance
		// exactly one interval.
		require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
		clock.Advance(interval)
		fetcher.waitBatch(t, scope)
	}
}

func TestNoTickFiresBeforeIntervalElapses(t *testing.T) {
	cond := &stubConditions{status: models.LeagueStatusDraft}
	p, fetcher, clock, stop := newTestPoller(t, cond)
	defer stop()

	scope := len(ScopeFor(ScreenDraftRoom))
	p.OnFocus(context.Background(), "lg1", ScreenDraftRoom)
	fetcher.waitBatch(t, scope)

	// Just short of the interval nothing may fire; a leftover tick from
	// timer construction would surface here as an early batch.
	interval := DefaultTable().DraftWindow.PollInterval
	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(interval - time.Second)
	fetcher.assertQuiet(t, 200*time.Millisecond)

	clock.Advance(time.Second)
	fetcher.waitBatch(t, scope)
}

func TestBlurStopsTicking(t *testing.T) {
	cond := &stubConditions{status: models.LeagueStatusDraft}
	p, fetcher, clock, stop := newTestPoller(t, cond)
	defer stop()

	scope := len(ScopeFor(ScreenDraftRoom))
	p.OnFocus(context.Background(), "lg1", ScreenDraftRoom)
	fetcher.waitBatch(t, scope)

	p.OnBlur()
	// Give the run loop a moment to process the wake and park.
	time.Sleep(200 * time.Millisecond)

	clock.Advance(24 * time.Hour)
	fetcher.assertQuiet(t, 200*time.Millisecond)

	// Refocus resumes polling with an immediate refetch.
	p.OnFocus(context.Background(), "lg1", ScreenDraftRoom)
	fetcher.waitBatch(t, scope)
}

func TestReconnectRespectsPolicyRow(t *testing.T) {
	// Dormant row: no reconnect refetch.
	cond := &stubConditions{status: models.LeagueStatusActive, airing: false}
	p, fetcher, _, stop := newTestPoller(t, cond)
	defer stop()

	scope := len(ScopeFor(ScreenHub))
	p.OnFocus(context.Background(), "lg1", ScreenHub)
	fetcher.waitBatch(t, scope)

	p.OnReconnect(context.Background())
	fetcher.assertQuiet(t, 200*time.Millisecond)

	// Draft row asks for reconnect refetches.
	cond.set(models.LeagueStatusDraft, false)
	p.OnReconnect(context.Background())
	fetcher.waitBatch(t, scope)
}
