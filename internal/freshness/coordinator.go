package freshness

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Aidan3445/castaway/internal/cache"
	"github.com/Aidan3445/castaway/internal/models"
)

// Fetcher performs one authoritative read and stores the result in the
// cache. Implemented by the league app; the coordinator decides when to
// call it, never how.
type Fetcher interface {
	FetchEntity(ctx context.Context, league string, kind cache.Kind) error
}

// Coordinator owns cache invalidation: per-screen manual refresh fan-out,
// per-mutation invalidation, and deletion teardown. A token bucket caps
// how fast invalidations can turn into refetches so a burst of mutations
// cannot become a refetch storm.
type Coordinator struct {
	store   *cache.Store
	table   Table
	fetcher Fetcher
	limiter *rate.Limiter
	wake    func()
}

// NewCoordinator wires a coordinator over the shared cache.
func NewCoordinator(store *cache.Store, table Table, fetcher Fetcher) *Coordinator {
	return &Coordinator{
		store:   store,
		table:   table,
		fetcher: fetcher,
		// Ten refetches per second sustained, a screen's worth in a burst.
		limiter: rate.NewLimiter(rate.Limit(10), 6),
	}
}

// SetWake registers the poller's wake function. Optional; without it
// mutations still invalidate, they just wait for the next tick.
func (c *Coordinator) SetWake(fn func()) {
	c.wake = fn
}

// SetFetcher installs the fetcher after construction. The league app
// implements Fetcher but also depends on the coordinator, so one of the
// two has to be wired late.
func (c *Coordinator) SetFetcher(f Fetcher) {
	c.fetcher = f
}

// PolicyFor exposes the active policy row for a league's conditions.
func (c *Coordinator) PolicyFor(status models.LeagueStatus, airing bool) Policy {
	return c.table.For(status, airing)
}

// Refresh performs the manual-refresh gesture for a screen: invalidate
// the screen's enumerated entity set, then refetch each entity, returning
// once everything settled. Failed fetches are joined into one error; the
// invalidation stands either way, so the next poll tick retries.
func (c *Coordinator) Refresh(ctx context.Context, league string, screen Screen) error {
	kinds := ScopeFor(screen)
	if len(kinds) == 0 {
		return fmt.Errorf("no refresh scope for screen %q", screen)
	}

	keys := make([]cache.Key, len(kinds))
	for i, kind := range kinds {
		keys[i] = cache.Key{League: league, Kind: kind}
	}
	c.store.Invalidate(keys...)

	log.Debug().
		Str("league", league).
		Str("screen", string(screen)).
		Int("entities", len(kinds)).
		Msg("manual refresh fan-out")

	var errs []error
	for _, kind := range kinds {
		if err := c.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if err := c.fetcher.FetchEntity(ctx, league, kind); err != nil {
			errs = append(errs, fmt.Errorf("refetch %s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// OnMutation invalidates exactly the entities a successful write can
// affect and wakes the poller so the refetch happens now, not at the next
// interval tick.
func (c *Coordinator) OnMutation(league string, m Mutation) {
	kinds := AffectedBy(m)
	keys := make([]cache.Key, len(kinds))
	for i, kind := range kinds {
		keys[i] = cache.Key{League: league, Kind: kind}
	}
	c.store.Invalidate(keys...)

	log.Debug().
		Str("league", league).
		Str("mutation", string(m)).
		Int("entities", len(kinds)).
		Msg("mutation invalidation")

	if c.wake != nil {
		c.wake()
	}
}

// ResyncTurn invalidates everything turn state derives from, used after
// the server rejects a write because the caller's view was stale.
func (c *Coordinator) ResyncTurn(league string) {
	c.store.Invalidate(
		cache.Key{League: league, Kind: cache.KindLeague},
		cache.Key{League: league, Kind: cache.KindMembers},
		cache.Key{League: league, Kind: cache.KindTimeline},
	)
	log.Debug().Str("league", league).Msg("turn state resync")
	if c.wake != nil {
		c.wake()
	}
}

// OnDelete tears down a deleted league: in-flight queries are cancelled
// before the entries go, so a late response cannot resurrect the league.
func (c *Coordinator) OnDelete(league string) {
	c.store.PurgeLeague(league)
}
