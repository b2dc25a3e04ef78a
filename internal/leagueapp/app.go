// Package leagueapp is the facade the UI layer talks to: status and
// gating reads, turn state and draft operations, and per-screen refresh.
// It owns no state of its own beyond last-known-good status; everything
// else lives in the shared cache and on the server.
package leagueapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Aidan3445/castaway/internal/cache"
	"github.com/Aidan3445/castaway/internal/draftengine"
	"github.com/Aidan3445/castaway/internal/fault"
	"github.com/Aidan3445/castaway/internal/freshness"
	"github.com/Aidan3445/castaway/internal/lifecycle"
	"github.com/Aidan3445/castaway/internal/models"
	"github.com/Aidan3445/castaway/internal/remote"
	"github.com/Aidan3445/castaway/internal/session"
)

// App wires the lifecycle machine, the draft engine, the freshness
// coordinator, the cache and the remote client into one UI-facing
// surface. All collaborators arrive through the constructor; nothing is
// ambient.
type App struct {
	remote   *remote.Client
	store    *cache.Store
	coord    *freshness.Coordinator
	sessions session.Provider
	machine  *lifecycle.Machine
	clock    clockwork.Clock

	mu         sync.Mutex
	lastStatus map[string]models.LeagueStatus
	selfIDs    map[string]int // league hash -> viewer's member id
}

// NewApp creates the facade. The coordinator must share the same store.
func NewApp(rc *remote.Client, store *cache.Store, coord *freshness.Coordinator, sessions session.Provider, clock clockwork.Clock) *App {
	return &App{
		remote:     rc,
		store:      store,
		coord:      coord,
		sessions:   sessions,
		machine:    lifecycle.NewMachine(clock),
		clock:      clock,
		lastStatus: make(map[string]models.LeagueStatus),
		selfIDs:    make(map[string]int),
	}
}

// FetchEntity implements freshness.Fetcher: one authoritative read,
// stored raw in the cache. Late or superseded results are discarded by
// the store, never applied.
func (a *App) FetchEntity(ctx context.Context, league string, kind cache.Kind) error {
	endpoint := remote.EndpointForKind(league, string(kind))
	if endpoint == "" {
		return fmt.Errorf("%w: unknown entity kind %q", fault.ErrValidation, kind)
	}

	fetch, fctx := a.store.StartFetch(ctx, cache.Key{League: league, Kind: kind})
	data, err := a.remote.GetRaw(fctx, endpoint)
	if err != nil {
		fetch.Abandon()
		return err
	}
	fetch.Complete(data)

	if kind == cache.KindLeague {
		var lg models.League
		if jerr := json.Unmarshal(data, &lg); jerr == nil {
			a.mu.Lock()
			a.lastStatus[league] = lg.Status
			a.mu.Unlock()
		}
	}
	return nil
}

// entity returns the cached payload for kind, refetching when stale. On
// fetch failure stale data is still served if present; the caller decides
// whether that is acceptable.
func (a *App) entity(ctx context.Context, league string, kind cache.Kind) (json.RawMessage, error) {
	key := cache.Key{League: league, Kind: kind}
	policy := a.policyFor(ctx, league)

	if a.store.Fresh(key, policy.StaleTime) {
		if data, ok := a.store.Get(key); ok {
			return data, nil
		}
	}
	if err := a.FetchEntity(ctx, league, kind); err != nil {
		if data, ok := a.store.Get(key); ok {
			log.Warn().Err(err).Str("league", league).Str("kind", string(kind)).
				Msg("serving stale cache after failed refetch")
			return data, nil
		}
		return nil, err
	}
	data, ok := a.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s vanished after fetch", fault.ErrNetwork, league, kind)
	}
	return data, nil
}

func decodeEntity[T any](a *App, ctx context.Context, league string, kind cache.Kind) (T, error) {
	var out T
	data, err := a.entity(ctx, league, kind)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to decode cached %s: %w", kind, err)
	}
	return out, nil
}

// League returns the league, serving cache within the stale window.
func (a *App) League(ctx context.Context, hash string) (models.League, error) {
	return decodeEntity[models.League](a, ctx, hash, cache.KindLeague)
}

// Members returns the league's admitted members.
func (a *App) Members(ctx context.Context, hash string) ([]models.Member, error) {
	return decodeEntity[[]models.Member](a, ctx, hash, cache.KindMembers)
}

// Timeline returns the selection timeline.
func (a *App) Timeline(ctx context.Context, hash string) (models.SelectionTimeline, error) {
	return decodeEntity[models.SelectionTimeline](a, ctx, hash, cache.KindTimeline)
}

// Episodes returns the season's episodes.
func (a *App) Episodes(ctx context.Context, hash string) ([]models.Episode, error) {
	return decodeEntity[[]models.Episode](a, ctx, hash, cache.KindEpisodes)
}

// Contestants returns the season roster.
func (a *App) Contestants(ctx context.Context, hash string) ([]models.Contestant, error) {
	return decodeEntity[[]models.Contestant](a, ctx, hash, cache.KindContestants)
}

// Conditions implements freshness.Conditions. It answers from cache and
// falls back to last-known-good status on failure so the poller keeps a
// sensible policy through transient errors. Unknown leagues report the
// draft-window policy, the safest (shortest) row.
func (a *App) Conditions(ctx context.Context, league string) (models.LeagueStatus, bool, error) {
	lg, err := a.League(ctx, league)
	if err != nil {
		a.mu.Lock()
		last, ok := a.lastStatus[league]
		a.mu.Unlock()
		if !ok {
			last = models.LeagueStatusPredraft
		}
		return last, false, err
	}

	airing := false
	if eps, eerr := a.Episodes(ctx, league); eerr == nil {
		airing = models.AnyAiring(eps, a.clock.Now())
	}
	return lg.Status, airing, nil
}

func (a *App) policyFor(ctx context.Context, league string) freshness.Policy {
	a.mu.Lock()
	status, ok := a.lastStatus[league]
	a.mu.Unlock()
	if !ok {
		status = models.LeagueStatusPredraft
	}

	airing := false
	// Only consult episodes already in cache; this path must not fetch.
	if data, has := a.store.Get(cache.Key{League: league, Kind: cache.KindEpisodes}); has {
		var eps []models.Episode
		if err := json.Unmarshal(data, &eps); err == nil {
			airing = models.AnyAiring(eps, a.clock.Now())
		}
	}
	return a.coord.PolicyFor(status, airing)
}

// Gate evaluates a screen's intent against current status on focus. When
// the status read fails it does not redirect speculatively: the decision
// holds the last-known-good state and the next poll retries.
func (a *App) Gate(ctx context.Context, hash string, intent lifecycle.ScreenIntent) lifecycle.Decision {
	lg, err := a.League(ctx, hash)
	if err != nil {
		a.mu.Lock()
		last, ok := a.lastStatus[hash]
		a.mu.Unlock()
		if !ok {
			log.Warn().Err(err).Str("league", hash).Msg("status unavailable; holding screen")
			return lifecycle.Decision{}
		}
		return lifecycle.Gate(intent, last)
	}
	return lifecycle.Gate(intent, lg.Status)
}

// self resolves and memoizes the viewer's member record for a league.
func (a *App) self(ctx context.Context, hash string) (models.Member, error) {
	if _, err := session.Require(ctx, a.sessions); err != nil {
		return models.Member{}, err
	}

	a.mu.Lock()
	id, ok := a.selfIDs[hash]
	a.mu.Unlock()
	if ok {
		members, err := a.Members(ctx, hash)
		if err != nil {
			return models.Member{}, err
		}
		for _, m := range members {
			if m.ID == id {
				m.LoggedIn = true
				return m, nil
			}
		}
	}

	me, err := a.remote.GetSelf(ctx, hash)
	if err != nil {
		return models.Member{}, err
	}
	a.mu.Lock()
	a.selfIDs[hash] = me.ID
	a.mu.Unlock()
	return *me, nil
}

// TurnState recomputes who is on the clock from the cached order and
// pick count. Only defined while the league is drafting.
func (a *App) TurnState(ctx context.Context, hash string) (draftengine.TurnState, error) {
	lg, err := a.League(ctx, hash)
	if err != nil {
		return draftengine.TurnState{}, err
	}
	if lg.Status != models.LeagueStatusDraft {
		return draftengine.TurnState{}, fmt.Errorf("%w: league is not drafting", fault.ErrValidation)
	}

	members, err := a.Members(ctx, hash)
	if err != nil {
		return draftengine.TurnState{}, err
	}
	tl, err := a.Timeline(ctx, hash)
	if err != nil {
		return draftengine.TurnState{}, err
	}
	k := draftengine.CommittedPicks(tl, members)
	return draftengine.ComputeTurn(members, k, len(members))
}

// resync invalidates turn-relevant entities after a rejected write so the
// next read shows the corrected state to the user.
func (a *App) resync(hash string) {
	a.coord.ResyncTurn(hash)
}

// CommitPick validates locally, submits the pick, and propagates
// invalidations. A completing pick also issues the idempotent
// Draft -> Active status write. Out-of-turn and already-claimed
// rejections resync and surface; they are never retried blindly.
func (a *App) CommitPick(ctx context.Context, hash, contestantID string) (completed bool, err error) {
	me, err := a.self(ctx, hash)
	if err != nil {
		return false, err
	}

	// Local precheck on the cached view catches obvious violations
	// without a round trip; the server remains the authority.
	lg, lerr := a.League(ctx, hash)
	members, merr := a.Members(ctx, hash)
	tl, terr := a.Timeline(ctx, hash)
	if lerr == nil && merr == nil && terr == nil {
		if _, perr := draftengine.CommitPick(lg, members, tl.Clone(), me.ID, contestantID, 0); perr != nil {
			if errors.Is(perr, fault.ErrTurnViolation) || errors.Is(perr, fault.ErrStaleWrite) {
				a.resync(hash)
			}
			return false, perr
		}
	}

	resp, err := a.remote.CommitPick(ctx, hash, contestantID)
	if err != nil {
		if fault.Recoverable(err) {
			a.resync(hash)
		}
		return false, err
	}

	a.coord.OnMutation(hash, freshness.MutationPick)

	if resp.Completed {
		// At most one client's status write lands; the rest converge on
		// the next read.
		if cerr := a.remote.CompleteDraft(ctx, hash); cerr != nil && !errors.Is(cerr, fault.ErrStaleWrite) {
			log.Warn().Err(cerr).Str("league", hash).Msg("draft completion write failed; will converge by read")
		}
		a.coord.OnMutation(hash, freshness.MutationCompleteDraft)
	}
	return resp.Completed, nil
}

// SkipForward swaps the on-the-clock member with the next in order.
// Owner/Admin only. Skipping the last member is a no-op surfaced through
// the skipped flag, not an error.
func (a *App) SkipForward(ctx context.Context, hash string) (skipped bool, err error) {
	me, err := a.self(ctx, hash)
	if err != nil {
		return false, err
	}
	if !me.CanAdminister() {
		return false, fmt.Errorf("%w: only an owner or admin may skip a turn", fault.ErrValidation)
	}

	resp, err := a.remote.SkipForward(ctx, hash)
	if err != nil {
		if fault.Recoverable(err) {
			a.resync(hash)
		}
		return false, err
	}
	if resp.Skipped {
		a.coord.OnMutation(hash, freshness.MutationSkip)
	}
	return resp.Skipped, nil
}

// SendToBack moves the target member to the end of the order.
// Owner/Admin only.
func (a *App) SendToBack(ctx context.Context, hash string, memberID int) error {
	me, err := a.self(ctx, hash)
	if err != nil {
		return err
	}
	if !me.CanAdminister() {
		return fmt.Errorf("%w: only an owner or admin may reorder the draft", fault.ErrValidation)
	}

	if err := a.remote.SendToBack(ctx, hash, memberID); err != nil {
		if fault.Recoverable(err) {
			a.resync(hash)
		}
		return err
	}
	a.coord.OnMutation(hash, freshness.MutationReorder)
	return nil
}

// Reorder replaces the whole draft order during Predraft. Validation
// failures surface inline and are never sent to the server.
func (a *App) Reorder(ctx context.Context, hash string, orderedIDs []int) error {
	me, err := a.self(ctx, hash)
	if err != nil {
		return err
	}
	lg, err := a.League(ctx, hash)
	if err != nil {
		return err
	}
	members, err := a.Members(ctx, hash)
	if err != nil {
		return err
	}

	pastDraftDate := lg.DraftDate != nil && !a.clock.Now().Before(*lg.DraftDate)
	if _, err := draftengine.Reorder(lg, members, me, orderedIDs, pastDraftDate); err != nil {
		return err
	}

	if err := a.remote.ReplaceOrder(ctx, hash, orderedIDs); err != nil {
		if fault.Recoverable(err) {
			a.resync(hash)
		}
		return err
	}
	a.coord.OnMutation(hash, freshness.MutationReorder)
	return nil
}

// StartDraft moves Predraft -> Draft, either at the scheduled time or
// early by an Owner/Admin.
func (a *App) StartDraft(ctx context.Context, hash string) error {
	me, err := a.self(ctx, hash)
	if err != nil {
		return err
	}
	lg, err := a.League(ctx, hash)
	if err != nil {
		return err
	}
	members, err := a.Members(ctx, hash)
	if err != nil {
		return err
	}
	if err := a.machine.CheckStartDraft(lg, members, me); err != nil {
		return err
	}

	if err := a.remote.StartDraft(ctx, hash); err != nil {
		return err
	}
	a.coord.OnMutation(hash, freshness.MutationStartDraft)
	return nil
}

// EndSeason retires the league. Owner-only, irreversible.
func (a *App) EndSeason(ctx context.Context, hash string) error {
	me, err := a.self(ctx, hash)
	if err != nil {
		return err
	}
	lg, err := a.League(ctx, hash)
	if err != nil {
		return err
	}
	if err := a.machine.CheckEndSeason(lg, me); err != nil {
		return err
	}

	if err := a.remote.EndSeason(ctx, hash); err != nil {
		return err
	}
	a.coord.OnMutation(hash, freshness.MutationEndSeason)
	return nil
}

// CloneAndArchive retires the current league and returns the fresh
// Predraft league the server spawned from it. Owner-only; the archive
// half follows the same terminal rules as EndSeason.
func (a *App) CloneAndArchive(ctx context.Context, hash, newName string) (models.League, error) {
	me, err := a.self(ctx, hash)
	if err != nil {
		return models.League{}, err
	}
	lg, err := a.League(ctx, hash)
	if err != nil {
		return models.League{}, err
	}
	if err := a.machine.CheckEndSeason(lg, me); err != nil {
		return models.League{}, err
	}
	if newName == "" {
		return models.League{}, fmt.Errorf("%w: the new league needs a name", fault.ErrValidation)
	}

	clone, err := a.remote.CloneAndArchive(ctx, hash, newName)
	if err != nil {
		return models.League{}, err
	}
	a.coord.OnMutation(hash, freshness.MutationEndSeason)
	log.Info().
		Str("league", hash).
		Str("clone", clone.Hash).
		Msg("league archived and cloned")
	return *clone, nil
}

// DeleteLeague removes the league after typed-name confirmation. The
// cache entries go only after the server accepts, and in-flight queries
// are cancelled before the purge.
func (a *App) DeleteLeague(ctx context.Context, hash, typedName string) error {
	me, err := a.self(ctx, hash)
	if err != nil {
		return err
	}
	lg, err := a.League(ctx, hash)
	if err != nil {
		return err
	}
	if err := a.machine.CheckDelete(lg, me, typedName); err != nil {
		return err
	}

	if err := a.remote.DeleteLeague(ctx, hash, typedName); err != nil {
		return err
	}
	a.coord.OnDelete(hash)
	a.mu.Lock()
	delete(a.lastStatus, hash)
	delete(a.selfIDs, hash)
	a.mu.Unlock()
	return nil
}

// AdmitMember accepts a pending join request. Owner/Admin only.
func (a *App) AdmitMember(ctx context.Context, hash string, pendingID int) error {
	me, err := a.self(ctx, hash)
	if err != nil {
		return err
	}
	if !me.CanAdminister() {
		return fmt.Errorf("%w: only an owner or admin may admit members", fault.ErrValidation)
	}

	if err := a.remote.AdmitMember(ctx, hash, pendingID); err != nil {
		return err
	}
	a.coord.OnMutation(hash, freshness.MutationAdmitMember)
	return nil
}

// TransferOwnership atomically demotes the current owner and promotes
// the new one; the server performs both in one operation.
func (a *App) TransferOwnership(ctx context.Context, hash string, newOwnerID int) error {
	me, err := a.self(ctx, hash)
	if err != nil {
		return err
	}
	if me.Role != models.RoleOwner {
		return fmt.Errorf("%w: only the owner may transfer ownership", fault.ErrValidation)
	}

	if err := a.remote.TransferOwnership(ctx, hash, newOwnerID); err != nil {
		return err
	}
	a.coord.OnMutation(hash, freshness.MutationTransferOwnership)
	return nil
}

// ChangeRole moves a member between admin and plain member. Ownership
// moves only through TransferOwnership, so Owner is rejected server-side.
func (a *App) ChangeRole(ctx context.Context, hash string, memberID int, role models.MemberRole) error {
	me, err := a.self(ctx, hash)
	if err != nil {
		return err
	}
	if !me.CanAdminister() {
		return fmt.Errorf("%w: only an owner or admin may change roles", fault.ErrValidation)
	}

	if err := a.remote.ChangeRole(ctx, hash, memberID, role); err != nil {
		return err
	}
	a.coord.OnMutation(hash, freshness.MutationRoleChange)
	return nil
}

// UpdateSettings replaces the league's settings payload. The core never
// interprets settings; it only keeps the cached copy honest.
func (a *App) UpdateSettings(ctx context.Context, hash string, settings json.RawMessage) error {
	me, err := a.self(ctx, hash)
	if err != nil {
		return err
	}
	if !me.CanAdminister() {
		return fmt.Errorf("%w: only an owner or admin may change settings", fault.ErrValidation)
	}

	if err := a.remote.UpdateSettings(ctx, hash, settings); err != nil {
		return err
	}
	a.coord.OnMutation(hash, freshness.MutationSettingsChange)
	return nil
}

// RemoveMember removes a member; the server renumbers the remaining
// order in the same write.
func (a *App) RemoveMember(ctx context.Context, hash string, memberID int) error {
	me, err := a.self(ctx, hash)
	if err != nil {
		return err
	}
	if !me.CanAdminister() {
		return fmt.Errorf("%w: only an owner or admin may remove members", fault.ErrValidation)
	}

	if err := a.remote.RemoveMember(ctx, hash, memberID); err != nil {
		return err
	}
	a.coord.OnMutation(hash, freshness.MutationRemoveMember)
	return nil
}

// Refresh is the pull-to-refresh gesture for a screen: bounded fan-out,
// returns when settled.
func (a *App) Refresh(ctx context.Context, hash string, screen freshness.Screen) error {
	return a.coord.Refresh(ctx, hash, screen)
}
