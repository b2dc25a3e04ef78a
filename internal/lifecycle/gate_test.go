package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aidan3445/castaway/internal/models"
)

func TestGate(t *testing.T) {
	cases := []struct {
		name   string
		intent ScreenIntent
		status models.LeagueStatus
		want   Decision
	}{
		{"hub is always allowed", IntentHub, models.LeagueStatusDraft, Decision{}},
		{"settings is always allowed", IntentSettings, models.LeagueStatusInactive, Decision{}},
		{"predraft screen during predraft", IntentPredraft, models.LeagueStatusPredraft, Decision{}},
		{"draft room during draft", IntentDraft, models.LeagueStatusDraft, Decision{}},
		{
			"predraft screen after draft started",
			IntentPredraft, models.LeagueStatusDraft,
			Decision{Redirect: true, RedirectTo: IntentDraft},
		},
		{
			"draft room after completion",
			IntentDraft, models.LeagueStatusActive,
			Decision{Redirect: true, RedirectTo: IntentHub},
		},
		{
			"draft room before draft starts",
			IntentDraft, models.LeagueStatusPredraft,
			Decision{Redirect: true, RedirectTo: IntentPredraft},
		},
		{
			"predraft screen in retired league",
			IntentPredraft, models.LeagueStatusInactive,
			Decision{Redirect: true, RedirectTo: IntentHub},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Gate(tc.intent, tc.status))
		})
	}
}

// Gating must terminate: following a redirect lands on a screen that does
// not redirect again under the same status.
func TestGateNeverLoops(t *testing.T) {
	intents := []ScreenIntent{IntentHub, IntentPredraft, IntentDraft, IntentSettings}
	statuses := []models.LeagueStatus{
		models.LeagueStatusPredraft,
		models.LeagueStatusDraft,
		models.LeagueStatusActive,
		models.LeagueStatusInactive,
	}

	for _, status := range statuses {
		for _, intent := range intents {
			d := Gate(intent, status)
			if !d.Redirect {
				continue
			}
			second := Gate(d.RedirectTo, status)
			assert.False(t, second.Redirect,
				"intent %s under %s redirected to %s, which redirected again", intent, status, d.RedirectTo)
		}
	}
}
