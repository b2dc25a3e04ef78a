package models

// Selection is one committed contestant pick. A pick persists across
// episodes until the contestant is eliminated, at which point the member
// must pick again; re-picks append to the same sequence.
type Selection struct {
	ContestantID string `json:"contestant_id"`
	Episode      int    `json:"episode"`
}

// SelectionTimeline maps member id to that member's ordered pick history.
// Append-only from the client's perspective; the server resolves conflicts.
type SelectionTimeline map[int][]Selection

// Claimed reports whether any member currently holds the contestant.
func (tl SelectionTimeline) Claimed(contestantID string) bool {
	for _, picks := range tl {
		for _, p := range picks {
			if p.ContestantID == contestantID {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the timeline.
func (tl SelectionTimeline) Clone() SelectionTimeline {
	out := make(SelectionTimeline, len(tl))
	for id, picks := range tl {
		cp := make([]Selection, len(picks))
		copy(cp, picks)
		out[id] = cp
	}
	return out
}

// Contestant is a cast member of the season. Roster data is consumed
// read-only; EliminatedEpisode is set once the contestant leaves the game.
type Contestant struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	EliminatedEpisode *int   `json:"eliminated_episode,omitempty"`
}
