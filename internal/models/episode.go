package models

import (
	"time"
)

// AirStatus is derived from the current time on every read; it is never
// stored.
type AirStatus string

const (
	AirStatusUpcoming AirStatus = "UPCOMING"
	AirStatusAiring   AirStatus = "AIRING"
	AirStatusAired    AirStatus = "AIRED"
)

// Episode describes one episode of the season being played.
type Episode struct {
	Number  int           `json:"episode_number"`
	AirDate time.Time     `json:"air_date"`
	Runtime time.Duration `json:"runtime"`
}

// AirStatusAt derives the episode's air status at the given instant. The
// episode is Airing within [AirDate, AirDate+Runtime).
func (e Episode) AirStatusAt(now time.Time) AirStatus {
	switch {
	case now.Before(e.AirDate):
		return AirStatusUpcoming
	case now.Before(e.AirDate.Add(e.Runtime)):
		return AirStatusAiring
	default:
		return AirStatusAired
	}
}

// AnyAiring reports whether any episode of the season is airing at now.
func AnyAiring(episodes []Episode, now time.Time) bool {
	for _, ep := range episodes {
		if ep.AirStatusAt(now) == AirStatusAiring {
			return true
		}
	}
	return false
}
