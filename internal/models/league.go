package models

import (
	"time"
)

// LeagueStatus is the coarse-grained phase of a league.
type LeagueStatus string

const (
	LeagueStatusPredraft LeagueStatus = "PREDRAFT"
	LeagueStatusDraft    LeagueStatus = "DRAFT"
	LeagueStatusActive   LeagueStatus = "ACTIVE"
	LeagueStatusInactive LeagueStatus = "INACTIVE"
)

// League represents a fantasy league for a single season of the show.
// The Hash is the opaque shareable handle members use to join; it doubles
// as the league's identity everywhere in the cache and remote API.
type League struct {
	Hash      string       `json:"hash"`
	Name      string       `json:"name"`
	Season    string       `json:"season"`
	Status    LeagueStatus `json:"status"`
	DraftDate *time.Time   `json:"draft_date,omitempty"`
}

// Terminal reports whether the league can no longer change status
// (other than being deleted outright).
func (s LeagueStatus) Terminal() bool {
	return s == LeagueStatusInactive
}
