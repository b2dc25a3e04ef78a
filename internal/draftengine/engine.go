package draftengine

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Aidan3445/castaway/internal/fault"
	"github.com/Aidan3445/castaway/internal/models"
)

// PickResult reports the outcome of a committed pick. Completed signals
// the final pick, which triggers the Draft -> Active transition.
type PickResult struct {
	PicksMade int
	Completed bool
}

// CommitPick appends a pick for the acting member. Preconditions: league
// status is Draft, the actor is exactly on the clock, and the contestant
// is unclaimed. The timeline is mutated only on success.
func CommitPick(lg models.League, members []models.Member, tl models.SelectionTimeline, actorID int, contestantID string, episode int) (PickResult, error) {
	if lg.Status != models.LeagueStatusDraft {
		return PickResult{}, fmt.Errorf("%w: league is not drafting", fault.ErrValidation)
	}
	if contestantID == "" {
		return PickResult{}, fmt.Errorf("%w: missing contestant", fault.ErrValidation)
	}

	k := CommittedPicks(tl, members)
	turn, err := ComputeTurn(members, k, len(members))
	if err != nil {
		return PickResult{}, err
	}
	if turn.OnTheClock.ID != actorID {
		return PickResult{}, fmt.Errorf("%w: member %d picked while member %d is on the clock",
			fault.ErrTurnViolation, actorID, turn.OnTheClock.ID)
	}
	if tl.Claimed(contestantID) {
		return PickResult{}, fmt.Errorf("%w: contestant %s already claimed", fault.ErrStaleWrite, contestantID)
	}

	tl[actorID] = append(tl[actorID], models.Selection{ContestantID: contestantID, Episode: episode})
	res := PickResult{PicksMade: k + 1, Completed: k+1 == len(members)}
	log.Info().
		Str("league", lg.Hash).
		Int("member", actorID).
		Str("contestant", contestantID).
		Int("picks_made", res.PicksMade).
		Bool("completed", res.Completed).
		Msg("pick committed")
	return res, nil
}

// SkipForward swaps draft order between the on-the-clock member and the
// next member in order, an O(1) transposition. When the on-the-clock
// member is last there is no one to swap with: the order is returned
// unchanged with skipped=false so the caller can surface feedback instead
// of an error.
func SkipForward(members []models.Member, picksMade int) (out []models.Member, skipped bool, err error) {
	turn, err := ComputeTurn(members, picksMade, len(members))
	if err != nil {
		return nil, false, err
	}

	ordered := Ordered(members)
	pos := turn.OnTheClock.DraftOrder
	if pos == len(ordered)-1 {
		log.Info().Int("member", turn.OnTheClock.ID).Msg("skip requested for last member in order; no-op")
		return ordered, false, nil
	}

	ordered[pos].DraftOrder, ordered[pos+1].DraftOrder = ordered[pos+1].DraftOrder, ordered[pos].DraftOrder
	return Ordered(ordered), true, nil
}

// SendToBack removes the target from the order and appends them at the
// end, renumbering everyone after the target's old slot down by one. The
// whole membership is recomputed in a single pass so a concurrent reader
// never observes duplicate or gapped order values. Relative order of
// members after the target is preserved.
func SendToBack(members []models.Member, targetID int) ([]models.Member, error) {
	if err := ValidateOrder(members); err != nil {
		return nil, err
	}

	ordered := Ordered(members)
	idx := -1
	for i, m := range ordered {
		if m.ID == targetID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("%w: member %d not in league", fault.ErrValidation, targetID)
	}
	if idx == len(ordered)-1 {
		// Already last; nothing to renumber.
		return ordered, nil
	}

	rotated := append(append([]models.Member{}, ordered[:idx]...), ordered[idx+1:]...)
	rotated = append(rotated, ordered[idx])
	for i := range rotated {
		rotated[i].DraftOrder = i
	}
	return rotated, nil
}

// Reorder replaces the full draft order. Predraft-only and Owner-only;
// also rejected once the scheduled draft date has passed. orderedIDs is
// the complete new ranking, first picker first.
func Reorder(lg models.League, members []models.Member, actor models.Member, orderedIDs []int, pastDraftDate bool) ([]models.Member, error) {
	if lg.Status != models.LeagueStatusPredraft {
		return nil, fmt.Errorf("%w: draft order is locked once the draft starts", fault.ErrValidation)
	}
	if pastDraftDate {
		return nil, fmt.Errorf("%w: draft order is locked once the draft date passes", fault.ErrValidation)
	}
	if actor.Role != models.RoleOwner {
		return nil, fmt.Errorf("%w: only the owner may reorder the draft", fault.ErrValidation)
	}
	if len(orderedIDs) != len(members) {
		return nil, fmt.Errorf("%w: order lists %d members, league has %d", fault.ErrValidation, len(orderedIDs), len(members))
	}

	byID := make(map[int]models.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	out := make([]models.Member, 0, len(orderedIDs))
	seen := make(map[int]bool, len(orderedIDs))
	for rank, id := range orderedIDs {
		m, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: member %d not in league", fault.ErrValidation, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: member %d listed twice", fault.ErrValidation, id)
		}
		seen[id] = true
		m.DraftOrder = rank
		out = append(out, m)
	}

	// The accepted order must still hold the permutation invariant.
	if err := ValidateOrder(out); err != nil {
		return nil, err
	}
	return out, nil
}
