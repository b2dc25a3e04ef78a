// Package lifecycle owns the league status machine and the screen-gating
// rules derived from it. Status is authoritative on the server; the
// machine validates transitions locally so illegal requests are rejected
// before they are sent.
package lifecycle

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Aidan3445/castaway/internal/fault"
	"github.com/Aidan3445/castaway/internal/models"
)

// transitions is the legal status graph. Inactive is terminal and
// reachable from anywhere.
var transitions = map[models.LeagueStatus][]models.LeagueStatus{
	models.LeagueStatusPredraft: {models.LeagueStatusDraft, models.LeagueStatusInactive},
	models.LeagueStatusDraft:    {models.LeagueStatusActive, models.LeagueStatusInactive},
	models.LeagueStatusActive:   {models.LeagueStatusInactive},
	models.LeagueStatusInactive: {},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to models.LeagueStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Machine validates lifecycle operations against the current local view
// of a league. It never mutates cache entries; callers push accepted
// transitions to the remote service.
type Machine struct {
	clock clockwork.Clock
}

// NewMachine creates a lifecycle machine using the given clock.
func NewMachine(clock clockwork.Clock) *Machine {
	return &Machine{clock: clock}
}

// orderIsPermutation reports whether non-pending members carry a
// contiguous 0..N-1 draft order.
func orderIsPermutation(members []models.Member) bool {
	seen := make(map[int]bool, len(members))
	for _, m := range members {
		if m.DraftOrder < 0 || m.DraftOrder >= len(members) || seen[m.DraftOrder] {
			return false
		}
		seen[m.DraftOrder] = true
	}
	return true
}

// CheckStartDraft validates the Predraft -> Draft transition. The draft
// may start once the scheduled draft date arrives, or early when an
// Owner/Admin starts it manually. Preconditions: at least two members and
// a fully assigned draft order.
func (m *Machine) CheckStartDraft(lg models.League, members []models.Member, actor models.Member) error {
	if lg.Status != models.LeagueStatusPredraft {
		return fmt.Errorf("%w: cannot start draft from %s", fault.ErrValidation, lg.Status)
	}
	if len(members) < 2 {
		return fmt.Errorf("%w: need at least two members to draft", fault.ErrValidation)
	}
	if !orderIsPermutation(members) {
		return fmt.Errorf("%w: draft order is not fully assigned", fault.ErrValidation)
	}

	scheduled := lg.DraftDate != nil && !m.clock.Now().Before(*lg.DraftDate)
	if !scheduled && !actor.CanAdminister() {
		return fmt.Errorf("%w: only an owner or admin may start the draft early", fault.ErrValidation)
	}
	return nil
}

// CheckComplete validates the Draft -> Active transition. Completion is
// idempotent: observing an already-Active league is not an error, the
// caller just has nothing to write.
func (m *Machine) CheckComplete(lg models.League) (needed bool, err error) {
	switch lg.Status {
	case models.LeagueStatusDraft:
		return true, nil
	case models.LeagueStatusActive:
		// Another client won the completion write; converge silently.
		return false, nil
	default:
		return false, fmt.Errorf("%w: cannot complete draft from %s", fault.ErrValidation, lg.Status)
	}
}

// CheckEndSeason validates the terminal transition to Inactive.
// Owner-only and irreversible.
func (m *Machine) CheckEndSeason(lg models.League, actor models.Member) error {
	if actor.Role != models.RoleOwner {
		return fmt.Errorf("%w: only the owner may end the season", fault.ErrValidation)
	}
	if lg.Status.Terminal() {
		return fmt.Errorf("%w: league is already inactive", fault.ErrValidation)
	}
	return nil
}

// CheckDelete validates league deletion: Owner-only, and the caller must
// retype the league name exactly.
func (m *Machine) CheckDelete(lg models.League, actor models.Member, typedName string) error {
	if actor.Role != models.RoleOwner {
		return fmt.Errorf("%w: only the owner may delete the league", fault.ErrValidation)
	}
	if typedName != lg.Name {
		return fmt.Errorf("%w: typed name does not match league name", fault.ErrValidation)
	}
	return nil
}

// Apply performs a validated transition on the local copy. It logs the
// change and refuses anything outside the legal graph.
func Apply(lg *models.League, to models.LeagueStatus) error {
	if !CanTransition(lg.Status, to) {
		return fmt.Errorf("%w: illegal transition %s -> %s", fault.ErrValidation, lg.Status, to)
	}
	log.Info().
		Str("league", lg.Hash).
		Str("from", string(lg.Status)).
		Str("to", string(to)).
		Msg("league status transition")
	lg.Status = to
	return nil
}
