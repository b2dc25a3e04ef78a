package freshness

import (
	"github.com/Aidan3445/castaway/internal/cache"
)

// Screen names a league-scoped screen for fan-out purposes.
type Screen string

const (
	ScreenHub               Screen = "hub"
	ScreenDraftRoom         Screen = "draftRoom"
	ScreenPredraftCustomize Screen = "predraftCustomize"
	ScreenSettings          Screen = "settings"
)

// scopes enumerates, per screen, the bounded set of entities a manual
// refresh invalidates. Never a wildcard flush: anything not listed here,
// including other leagues' entries, is untouched.
var scopes = map[Screen][]cache.Kind{
	ScreenHub: {
		cache.KindLeague,
		cache.KindMembers,
		cache.KindTimeline,
		cache.KindBasePredictions,
		cache.KindCustomEvents,
	},
	ScreenDraftRoom: {
		cache.KindLeague,
		cache.KindMembers,
		cache.KindTimeline,
		cache.KindContestants,
	},
	ScreenPredraftCustomize: {
		cache.KindLeague,
		cache.KindMembers,
		cache.KindPendingMembers,
		cache.KindSettings,
		cache.KindRules,
		cache.KindCustomEvents,
	},
	ScreenSettings: {
		cache.KindLeague,
		cache.KindMembers,
		cache.KindSettings,
		cache.KindRules,
	},
}

// ScopeFor returns the refresh fan-out set for a screen.
func ScopeFor(screen Screen) []cache.Kind {
	return scopes[screen]
}

// Mutation names a successful write whose effects must be invalidated.
type Mutation string

const (
	MutationPick              Mutation = "pick"
	MutationSkip              Mutation = "skip"
	MutationReorder           Mutation = "reorder"
	MutationStartDraft        Mutation = "startDraft"
	MutationCompleteDraft     Mutation = "completeDraft"
	MutationEndSeason         Mutation = "endSeason"
	MutationSettingsChange    Mutation = "settingsChange"
	MutationRoleChange        Mutation = "roleChange"
	MutationAdmitMember       Mutation = "admitMember"
	MutationRemoveMember      Mutation = "removeMember"
	MutationTransferOwnership Mutation = "transferOwnership"
)

// affected enumerates exactly the entities each mutation can touch.
// Under-invalidating leaves stale UI; over-invalidating causes refetch
// storms, so each set is as small as correctness allows.
var affected = map[Mutation][]cache.Kind{
	MutationPick:              {cache.KindTimeline, cache.KindLeague},
	MutationSkip:              {cache.KindMembers},
	MutationReorder:           {cache.KindMembers},
	MutationStartDraft:        {cache.KindLeague, cache.KindMembers},
	MutationCompleteDraft:     {cache.KindLeague},
	MutationEndSeason:         {cache.KindLeague},
	MutationSettingsChange:    {cache.KindSettings, cache.KindRules},
	MutationRoleChange:        {cache.KindMembers},
	MutationAdmitMember:       {cache.KindMembers, cache.KindPendingMembers},
	MutationRemoveMember:      {cache.KindMembers, cache.KindTimeline},
	MutationTransferOwnership: {cache.KindMembers},
}

// AffectedBy returns the invalidation set for a mutation.
func AffectedBy(m Mutation) []cache.Kind {
	return affected[m]
}
