package freshness

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Aidan3445/castaway/internal/cache"
	"github.com/Aidan3445/castaway/internal/models"
)

// Conditions reports the league state the policy table keys on. The
// implementation answers from its last-known-good view when the remote
// read fails, so polling never stops on a transient error.
type Conditions interface {
	Conditions(ctx context.Context, league string) (models.LeagueStatus, bool, error)
}

// Poller drives interval polling for the screen the user is actually
// looking at. Polling is suspended entirely while no screen is focused —
// background screens in the navigation stack never tick — and resumes
// with an immediate refetch on refocus.
type Poller struct {
	coord      *Coordinator
	store      *cache.Store
	cond       Conditions
	fetcher    Fetcher
	clock      clockwork.Clock
	instanceID string

	mu        sync.Mutex
	league    string
	screen    Screen
	focused   bool
	immediate bool

	wakeCh chan struct{}
}

// NewPoller creates a poller over the shared cache. The coordinator's
// wake hook is pointed at this poller so mutations shorten the wait.
func NewPoller(coord *Coordinator, store *cache.Store, cond Conditions, fetcher Fetcher, clock clockwork.Clock) *Poller {
	p := &Poller{
		coord:      coord,
		store:      store,
		cond:       cond,
		fetcher:    fetcher,
		clock:      clock,
		instanceID: uuid.New().String()[:8],
		wakeCh:     make(chan struct{}, 1),
	}
	coord.SetWake(p.Wake)
	return p
}

// Wake nudges the run loop without blocking; duplicate wakes coalesce.
func (p *Poller) Wake() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

// OnFocus makes screen the active one for league. If the current policy
// row asks for focus refetches, the next cycle refetches the screen's
// scope immediately instead of waiting out the interval.
func (p *Poller) OnFocus(ctx context.Context, league string, screen Screen) {
	status, airing, _ := p.cond.Conditions(ctx, league)
	policy := p.coord.PolicyFor(status, airing)

	p.mu.Lock()
	p.league = league
	p.screen = screen
	p.focused = true
	p.immediate = policy.RefetchOnFocus
	p.mu.Unlock()

	log.Debug().
		Str("instance", p.instanceID).
		Str("league", league).
		Str("screen", string(screen)).
		Bool("refetch", policy.RefetchOnFocus).
		Msg("screen focused")
	p.Wake()
}

// OnBlur suspends polling until the next focus.
func (p *Poller) OnBlur() {
	p.mu.Lock()
	p.focused = false
	p.mu.Unlock()
	p.Wake()
}

// OnReconnect is the network-restored trigger; it behaves like a focus
// refetch when the current policy row asks for one.
func (p *Poller) OnReconnect(ctx context.Context) {
	p.mu.Lock()
	league := p.league
	focused := p.focused
	p.mu.Unlock()
	if !focused || league == "" {
		return
	}

	status, airing, _ := p.cond.Conditions(ctx, league)
	if p.coord.PolicyFor(status, airing).RefetchOnReconnect {
		p.mu.Lock()
		p.immediate = true
		p.mu.Unlock()
		p.Wake()
	}
}

func (p *Poller) snapshot() (league string, screen Screen, focused, immediate bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	league, screen, focused, immediate = p.league, p.screen, p.focused, p.immediate
	p.immediate = false
	return
}

// Run loops until ctx is done: fetch whatever the active screen needs,
// then sleep until the policy interval elapses or something wakes us
// (focus change, mutation, sooner policy). While unfocused it parks on
// the wake channel and sets no timer at all.
func (p *Poller) Run(ctx context.Context) error {
	log.Info().Str("instance", p.instanceID).Msg("freshness poller started")

	// Armed only by Reset below. The sentinel duration keeps the timer
	// from firing between construction and the first Stop.
	timer := p.clock.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		// Drain any pending wake so we do not double-fire after a tick.
		select {
		case <-p.wakeCh:
		default:
		}

		league, screen, focused, immediate := p.snapshot()

		if !focused || league == "" {
			select {
			case <-ctx.Done():
				log.Info().Str("instance", p.instanceID).Msg("poller shutdown while suspended")
				return nil
			case <-p.wakeCh:
				continue
			}
		}

		status, airing, err := p.cond.Conditions(ctx, league)
		policy := p.coord.PolicyFor(status, airing)
		if err != nil {
			log.Warn().
				Err(err).
				Str("instance", p.instanceID).
				Str("league", league).
				Msg("conditions read failed; keeping last-known policy")
		}

		p.tick(ctx, league, screen, policy, immediate)

		timer.Reset(policy.PollInterval)
		select {
		case <-ctx.Done():
			stopAndDrain(timer)
			log.Info().Str("instance", p.instanceID).Msg("poller shutdown")
			return nil
		case <-timer.Chan():
		case <-p.wakeCh:
			stopAndDrain(timer)
		}
	}
}

// tick refetches the active screen's entities. Normally only entities
// older than the policy's stale time are fetched; an immediate tick
// (refocus, reconnect) refetches the whole scope.
func (p *Poller) tick(ctx context.Context, league string, screen Screen, policy Policy, force bool) {
	for _, kind := range ScopeFor(screen) {
		key := cache.Key{League: league, Kind: kind}
		if !force && p.store.Fresh(key, policy.StaleTime) {
			continue
		}
		if err := p.fetcher.FetchEntity(ctx, league, kind); err != nil {
			// Transient failures wait for the next tick; no inline retry.
			log.Warn().
				Err(err).
				Str("instance", p.instanceID).
				Str("league", league).
				Str("kind", string(kind)).
				Msg("poll refetch failed")
		}
	}
}

// stopAndDrain stops a timer and empties its channel so a stale tick
// cannot fire into the next loop iteration.
func stopAndDrain(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
