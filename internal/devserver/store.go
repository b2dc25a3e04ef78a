// Package devserver is an in-memory reference implementation of the
// remote league service, used for local development and for exercising
// the client against real multi-client races. Every mutation is
// serialized under one lock and conditioned on the server's current
// order and pick count, never on anything the client sent.
package devserver

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Aidan3445/castaway/internal/draftengine"
	"github.com/Aidan3445/castaway/internal/fault"
	"github.com/Aidan3445/castaway/internal/lifecycle"
	"github.com/Aidan3445/castaway/internal/models"
)

// LeagueState is the authoritative state of one league.
type LeagueState struct {
	mu sync.Mutex

	League      models.League
	Members     []models.Member
	Pending     []models.PendingMember
	Timeline    models.SelectionTimeline
	Contestants []models.Contestant
	Episodes    []models.Episode

	// Opaque configuration blobs the client caches but never interprets.
	Settings    json.RawMessage
	Rules       json.RawMessage
	Predictions json.RawMessage
	Events      json.RawMessage

	// user id -> member id; how identities bind to members is server
	// business the client never sees.
	bindings map[string]int
}

// Store holds every league the devserver knows about.
type Store struct {
	mu      sync.RWMutex
	leagues map[string]*LeagueState
	machine *lifecycle.Machine
	clock   clockwork.Clock
}

// NewStore creates an empty store.
func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		leagues: make(map[string]*LeagueState),
		machine: lifecycle.NewMachine(clock),
		clock:   clock,
	}
}

// Add registers a league state under its hash.
func (s *Store) Add(ls *LeagueState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ls.bindings == nil {
		ls.bindings = make(map[string]int)
	}
	s.leagues[ls.League.Hash] = ls
}

// Get returns the league state or nil.
func (s *Store) Get(hash string) *LeagueState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leagues[hash]
}

// Delete removes a league entirely.
func (s *Store) Delete(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leagues, hash)
}

// Bind associates a user id with a member id.
func (ls *LeagueState) Bind(userID string, memberID int) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.bindings == nil {
		ls.bindings = make(map[string]int)
	}
	ls.bindings[userID] = memberID
}

// MemberFor resolves a user id to their member record.
func (ls *LeagueState) MemberFor(userID string) (models.Member, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	id, ok := ls.bindings[userID]
	if !ok {
		return models.Member{}, false
	}
	for _, m := range ls.Members {
		if m.ID == id {
			return m, true
		}
	}
	return models.Member{}, false
}

// Snapshot returns copies of the readable state for handler responses.
func (ls *LeagueState) Snapshot() (models.League, []models.Member, models.SelectionTimeline) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	members := make([]models.Member, len(ls.Members))
	copy(members, ls.Members)
	return ls.League, members, ls.Timeline.Clone()
}

// StartDraft performs Predraft -> Draft under the server lock.
func (s *Store) StartDraft(ls *LeagueState, actor models.Member) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if err := s.machine.CheckStartDraft(ls.League, ls.Members, actor); err != nil {
		return err
	}
	return lifecycle.Apply(&ls.League, models.LeagueStatusDraft)
}

// CommitPick applies one pick against current server state. The turn and
// claim checks run inside the lock, so two racing clients serialize and
// the loser gets exactly the rejection its stale view deserves.
func (s *Store) CommitPick(ls *LeagueState, actorID int, contestantID string) (draftengine.PickResult, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.Timeline == nil {
		ls.Timeline = make(models.SelectionTimeline)
	}
	known := false
	for _, c := range ls.Contestants {
		if c.ID == contestantID {
			known = true
			break
		}
	}
	if !known {
		return draftengine.PickResult{}, fmt.Errorf("%w: unknown contestant %s", fault.ErrValidation, contestantID)
	}
	return draftengine.CommitPick(ls.League, ls.Members, ls.Timeline, actorID, contestantID, currentEpisode(ls.Episodes, s.clock))
}

// CompleteDraft is the conditional Draft -> Active write. Exactly one
// caller flips the status; later callers find the league Active and
// succeed without writing, which is what makes observation idempotent.
func (s *Store) CompleteDraft(ls *LeagueState) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	needed, err := s.machine.CheckComplete(ls.League)
	if err != nil {
		return err
	}
	if !needed {
		return nil
	}
	if draftengine.CommittedPicks(ls.Timeline, ls.Members) < len(ls.Members) {
		return fmt.Errorf("%w: draft is not finished", fault.ErrStaleWrite)
	}
	return lifecycle.Apply(&ls.League, models.LeagueStatusActive)
}

// SkipForward swaps the on-the-clock member with the next in order.
func (s *Store) SkipForward(ls *LeagueState) (bool, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	k := draftengine.CommittedPicks(ls.Timeline, ls.Members)
	reordered, skipped, err := draftengine.SkipForward(ls.Members, k)
	if err != nil {
		return false, err
	}
	ls.Members = reordered
	return skipped, nil
}

// SendToBack appends the target to the end of the order with a single
// stable renumber.
func (s *Store) SendToBack(ls *LeagueState, targetID int) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	reordered, err := draftengine.SendToBack(ls.Members, targetID)
	if err != nil {
		return err
	}
	ls.Members = reordered
	return nil
}

// Reorder replaces the whole order during Predraft.
func (s *Store) Reorder(ls *LeagueState, actor models.Member, orderedIDs []int) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	pastDraftDate := ls.League.DraftDate != nil && !s.clock.Now().Before(*ls.League.DraftDate)
	reordered, err := draftengine.Reorder(ls.League, ls.Members, actor, orderedIDs, pastDraftDate)
	if err != nil {
		return err
	}
	ls.Members = reordered
	return nil
}

// EndSeason retires the league.
func (s *Store) EndSeason(ls *LeagueState, actor models.Member) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if err := s.machine.CheckEndSeason(ls.League, actor); err != nil {
		return err
	}
	return lifecycle.Apply(&ls.League, models.LeagueStatusInactive)
}

// CloneAndArchive retires the league and spawns a fresh Predraft league
// with the same membership and season data under a new handle. The old
// league's picks stay behind with the archive.
func (s *Store) CloneAndArchive(ls *LeagueState, actor models.Member, newName string) (*LeagueState, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if actor.Role != models.RoleOwner {
		return nil, fmt.Errorf("%w: only the owner may clone and archive", fault.ErrValidation)
	}
	if newName == "" {
		return nil, fmt.Errorf("%w: the new league needs a name", fault.ErrValidation)
	}
	if ls.League.Status.Terminal() {
		return nil, fmt.Errorf("%w: league is already inactive", fault.ErrValidation)
	}
	if err := lifecycle.Apply(&ls.League, models.LeagueStatusInactive); err != nil {
		return nil, err
	}

	clone := &LeagueState{
		League: models.League{
			Hash:   uuid.NewString()[:8],
			Name:   newName,
			Season: ls.League.Season,
			Status: models.LeagueStatusPredraft,
		},
		Members:     make([]models.Member, len(ls.Members)),
		Timeline:    make(models.SelectionTimeline),
		Contestants: append([]models.Contestant{}, ls.Contestants...),
		Episodes:    append([]models.Episode{}, ls.Episodes...),
		Settings:    ls.Settings,
		Rules:       ls.Rules,
		Predictions: ls.Predictions,
		Events:      ls.Events,
		bindings:    make(map[string]int, len(ls.bindings)),
	}
	copy(clone.Members, ls.Members)
	for user, id := range ls.bindings {
		clone.bindings[user] = id
	}
	return clone, nil
}

// DeleteLeague validates typed confirmation then removes the league.
func (s *Store) DeleteLeague(ls *LeagueState, actor models.Member, typedName string) error {
	ls.mu.Lock()
	err := s.machine.CheckDelete(ls.League, actor, typedName)
	hash := ls.League.Hash
	ls.mu.Unlock()
	if err != nil {
		return err
	}
	s.Delete(hash)
	return nil
}

// Admit turns a pending member into a full member at the back of the
// order, claiming the first free palette color.
func (s *Store) Admit(ls *LeagueState, pendingID int) (models.Member, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	idx := -1
	for i, p := range ls.Pending {
		if p.ID == pendingID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return models.Member{}, fmt.Errorf("%w: no pending member %d", fault.ErrStaleWrite, pendingID)
	}

	color, err := freeColor(ls.Members)
	if err != nil {
		return models.Member{}, err
	}

	p := ls.Pending[idx]
	ls.Pending = append(ls.Pending[:idx], ls.Pending[idx+1:]...)
	m := models.Member{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Color:       color,
		Role:        models.RoleMember,
		DraftOrder:  len(ls.Members),
	}
	ls.Members = append(ls.Members, m)
	return m, nil
}

// RemoveMember drops a member and renumbers the remaining order in the
// same serialized write.
func (s *Store) RemoveMember(ls *LeagueState, memberID int) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	idx := -1
	for i, m := range ls.Members {
		if m.ID == memberID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("%w: no member %d", fault.ErrStaleWrite, memberID)
	}
	if ls.Members[idx].Role == models.RoleOwner {
		return fmt.Errorf("%w: the owner cannot be removed", fault.ErrValidation)
	}

	remaining := append(ls.Members[:idx:idx], ls.Members[idx+1:]...)
	ordered := draftengine.Ordered(remaining)
	for i := range ordered {
		ordered[i].DraftOrder = i
	}
	ls.Members = ordered
	delete(ls.Timeline, memberID)
	return nil
}

// TransferOwnership demotes the current owner and promotes the new one
// in one serialized write, keeping exactly one Owner at all times.
func (s *Store) TransferOwnership(ls *LeagueState, currentOwnerID, newOwnerID int) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	var oldIdx, newIdx = -1, -1
	for i, m := range ls.Members {
		switch m.ID {
		case currentOwnerID:
			oldIdx = i
		case newOwnerID:
			newIdx = i
		}
	}
	if oldIdx == -1 || ls.Members[oldIdx].Role != models.RoleOwner {
		return fmt.Errorf("%w: caller is not the owner", fault.ErrStaleWrite)
	}
	if newIdx == -1 {
		return fmt.Errorf("%w: no member %d", fault.ErrStaleWrite, newOwnerID)
	}

	ls.Members[oldIdx].Role = models.RoleMember
	ls.Members[newIdx].Role = models.RoleOwner
	return nil
}

// ChangeRole sets a member's role. Ownership moves only through
// TransferOwnership.
func (s *Store) ChangeRole(ls *LeagueState, memberID int, role models.MemberRole) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if role == models.RoleOwner {
		return fmt.Errorf("%w: use ownership transfer to change owners", fault.ErrValidation)
	}
	for i, m := range ls.Members {
		if m.ID == memberID {
			if m.Role == models.RoleOwner {
				return fmt.Errorf("%w: demote the owner via ownership transfer", fault.ErrValidation)
			}
			ls.Members[i].Role = role
			return nil
		}
	}
	return fmt.Errorf("%w: no member %d", fault.ErrStaleWrite, memberID)
}

// UpdateSettings replaces the opaque settings payload wholesale.
func (s *Store) UpdateSettings(ls *LeagueState, blob json.RawMessage) {
	ls.mu.Lock()
	ls.Settings = blob
	ls.mu.Unlock()
}

func freeColor(members []models.Member) (string, error) {
	taken := make(map[string]bool, len(members))
	for _, m := range members {
		taken[m.Color] = true
	}
	for _, c := range models.Palette {
		if !taken[c] {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: league is full, no palette colors left", fault.ErrValidation)
}

func currentEpisode(episodes []models.Episode, clock clockwork.Clock) int {
	now := clock.Now()
	latest := 0
	for _, ep := range episodes {
		if ep.AirStatusAt(now) != models.AirStatusUpcoming && ep.Number > latest {
			latest = ep.Number
		}
	}
	return latest
}
