// Package freshness decides how stale cached data may be, when to poll,
// and which entities to invalidate after mutations and manual refreshes.
// It is the only component allowed to invalidate the cache.
package freshness

import (
	"fmt"
	"time"

	"github.com/Aidan3445/castaway/internal/fault"
	"github.com/Aidan3445/castaway/internal/models"
)

// Policy is the freshness tuple assigned to cached entities under one
// condition row.
type Policy struct {
	StaleTime          time.Duration
	PollInterval       time.Duration
	RefetchOnFocus     bool
	RefetchOnReconnect bool
}

// Table holds the three condition rows. DraftWindow covers Predraft and
// Draft and takes precedence over Airing: turn-taking correctness beats
// score freshness.
type Table struct {
	DraftWindow Policy
	Airing      Policy
	Dormant     Policy
}

// DefaultTable is the shipped tuning. Deployments override it via config.
func DefaultTable() Table {
	return Table{
		DraftWindow: Policy{
			StaleTime:          5 * time.Second,
			PollInterval:       15 * time.Second,
			RefetchOnFocus:     true,
			RefetchOnReconnect: true,
		},
		Airing: Policy{
			StaleTime:          30 * time.Second,
			PollInterval:       time.Minute,
			RefetchOnFocus:     true,
			RefetchOnReconnect: true,
		},
		Dormant: Policy{
			StaleTime:          10 * time.Minute,
			PollInterval:       30 * time.Minute,
			RefetchOnFocus:     false,
			RefetchOnReconnect: false,
		},
	}
}

// For picks the row for a league status and episode air state.
func (t Table) For(status models.LeagueStatus, airing bool) Policy {
	if status == models.LeagueStatusPredraft || status == models.LeagueStatusDraft {
		return t.DraftWindow
	}
	if airing {
		return t.Airing
	}
	return t.Dormant
}

// Validate rejects tunings that break the ordering the design depends on:
// a drafting league must poll strictly faster than a dormant one.
func (t Table) Validate() error {
	if t.DraftWindow.PollInterval <= 0 || t.Airing.PollInterval <= 0 || t.Dormant.PollInterval <= 0 {
		return fmt.Errorf("%w: poll intervals must be positive", fault.ErrValidation)
	}
	if t.DraftWindow.PollInterval >= t.Dormant.PollInterval {
		return fmt.Errorf("%w: draft-window polling must be faster than dormant polling", fault.ErrValidation)
	}
	if t.Airing.PollInterval >= t.Dormant.PollInterval {
		return fmt.Errorf("%w: airing polling must be faster than dormant polling", fault.ErrValidation)
	}
	return nil
}

// PolicyConfig is the yaml form of one row; durations are whole seconds.
type PolicyConfig struct {
	StaleTimeSec       int  `yaml:"stale_time_sec"`
	PollIntervalSec    int  `yaml:"poll_interval_sec"`
	RefetchOnFocus     bool `yaml:"refetch_on_focus"`
	RefetchOnReconnect bool `yaml:"refetch_on_reconnect"`
}

// TableConfig is the yaml form of the whole table. Zero rows fall back to
// the defaults, so a config may tune a single row.
type TableConfig struct {
	DraftWindow *PolicyConfig `yaml:"draft_window,omitempty"`
	Airing      *PolicyConfig `yaml:"airing,omitempty"`
	Dormant     *PolicyConfig `yaml:"dormant,omitempty"`
}

func (pc *PolicyConfig) policy(fallback Policy) Policy {
	if pc == nil {
		return fallback
	}
	return Policy{
		StaleTime:          time.Duration(pc.StaleTimeSec) * time.Second,
		PollInterval:       time.Duration(pc.PollIntervalSec) * time.Second,
		RefetchOnFocus:     pc.RefetchOnFocus,
		RefetchOnReconnect: pc.RefetchOnReconnect,
	}
}

// Table materializes the config over the defaults and validates it.
func (tc TableConfig) Table() (Table, error) {
	def := DefaultTable()
	t := Table{
		DraftWindow: tc.DraftWindow.policy(def.DraftWindow),
		Airing:      tc.Airing.policy(def.Airing),
		Dormant:     tc.Dormant.policy(def.Dormant),
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}
