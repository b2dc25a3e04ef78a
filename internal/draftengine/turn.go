// Package draftengine computes draft turn state and applies order
// mutations. Turn state is always re-derived from the draft order and the
// committed pick count, never cached as independent mutable state, so
// every call site sees the same answer.
package draftengine

import (
	"fmt"
	"sort"

	"github.com/Aidan3445/castaway/internal/fault"
	"github.com/Aidan3445/castaway/internal/models"
)

// TurnState is who picks now and who is next. OnDeck is nil when the next
// commit would be the final pick of the draft.
type TurnState struct {
	OnTheClock models.Member
	OnDeck     *models.Member
}

// Ordered returns members sorted by draft order ascending. The input is
// not modified.
func Ordered(members []models.Member) []models.Member {
	out := make([]models.Member, len(members))
	copy(out, members)
	sort.Slice(out, func(i, j int) bool { return out[i].DraftOrder < out[j].DraftOrder })
	return out
}

// ValidateOrder checks the permutation invariant: draft order values of
// non-pending members are exactly {0..N-1}.
func ValidateOrder(members []models.Member) error {
	seen := make(map[int]int, len(members))
	for _, m := range members {
		if m.DraftOrder < 0 || m.DraftOrder >= len(members) {
			return fmt.Errorf("%w: draft order %d out of range for %d members", fault.ErrValidation, m.DraftOrder, len(members))
		}
		if prev, dup := seen[m.DraftOrder]; dup {
			return fmt.Errorf("%w: members %d and %d share draft order %d", fault.ErrValidation, prev, m.ID, m.DraftOrder)
		}
		seen[m.DraftOrder] = m.ID
	}
	return nil
}

// CommittedPicks is k: how many members have made their initial pick.
func CommittedPicks(tl models.SelectionTimeline, members []models.Member) int {
	k := 0
	for _, m := range members {
		if len(tl[m.ID]) > 0 {
			k++
		}
	}
	return k
}

// ComputeTurn derives turn state from the order and pick count. Pure:
// identical inputs always produce identical output. totalRequired is the
// number of picks that completes the draft (one per member).
func ComputeTurn(members []models.Member, picksMade, totalRequired int) (TurnState, error) {
	if len(members) == 0 {
		return TurnState{}, fmt.Errorf("%w: no members", fault.ErrValidation)
	}
	if err := ValidateOrder(members); err != nil {
		return TurnState{}, err
	}
	if picksMade >= totalRequired {
		return TurnState{}, fmt.Errorf("%w: draft already complete", fault.ErrValidation)
	}

	ordered := Ordered(members)
	n := len(ordered)
	ts := TurnState{OnTheClock: ordered[picksMade%n]}
	if picksMade+1 < totalRequired {
		next := ordered[(picksMade+1)%n]
		ts.OnDeck = &next
	}
	return ts, nil
}
