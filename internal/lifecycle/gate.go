package lifecycle

import (
	"github.com/Aidan3445/castaway/internal/models"
)

// ScreenIntent is where the user is trying to be. Intents are resolved
// once per navigation event and evaluated against current league status.
type ScreenIntent string

const (
	IntentHub      ScreenIntent = "hub"
	IntentPredraft ScreenIntent = "predraft"
	IntentDraft    ScreenIntent = "draft"
	IntentSettings ScreenIntent = "settings"
)

// Decision is the gating outcome for one focus event. When Redirect is
// false the screen stays where it is; RedirectTo is only meaningful when
// Redirect is true.
type Decision struct {
	Redirect   bool
	RedirectTo ScreenIntent
}

// canonicalFor is the destination a status sends stray screens to.
func canonicalFor(status models.LeagueStatus) ScreenIntent {
	switch status {
	case models.LeagueStatusPredraft:
		return IntentPredraft
	case models.LeagueStatusDraft:
		return IntentDraft
	default:
		return IntentHub
	}
}

// allowed reports whether an intent is valid under a status. The hub and
// settings screens are reachable in every phase; phase-specific screens
// only while their phase holds.
func allowed(intent ScreenIntent, status models.LeagueStatus) bool {
	switch intent {
	case IntentPredraft:
		return status == models.LeagueStatusPredraft
	case IntentDraft:
		return status == models.LeagueStatusDraft
	default:
		return true
	}
}

// Gate decides whether a screen assuming the given intent must redirect
// under the current status. Idempotent: a screen already at the canonical
// destination for the status never redirects, so gating cannot loop.
func Gate(intent ScreenIntent, status models.LeagueStatus) Decision {
	if allowed(intent, status) {
		return Decision{}
	}
	canonical := canonicalFor(status)
	if intent == canonical {
		return Decision{}
	}
	return Decision{Redirect: true, RedirectTo: canonical}
}
