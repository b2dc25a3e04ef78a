package devserver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/Aidan3445/castaway/internal/models"
)

// SeedOptions shapes a generated league.
type SeedOptions struct {
	Members     int
	Contestants int
	Episodes    int
	Season      string
	// FirstAir anchors the episode schedule; episodes air weekly.
	FirstAir time.Time
}

// DefaultSeed mirrors a typical mid-size league.
func DefaultSeed(firstAir time.Time) SeedOptions {
	return SeedOptions{
		Members:     6,
		Contestants: 18,
		Episodes:    13,
		Season:      "47",
		FirstAir:    firstAir,
	}
}

// SeedLeague generates a fully populated Predraft league. The first
// member is the Owner and every member is bound to a dev token equal to
// "user-<member id>".
func SeedLeague(opts SeedOptions) *LeagueState {
	faker := gofakeit.New(0)

	ls := &LeagueState{
		League: models.League{
			Hash:   uuid.NewString()[:8],
			Name:   faker.AdjectiveDescriptive() + " " + faker.NounCollectiveAnimal(),
			Season: opts.Season,
			Status: models.LeagueStatusPredraft,
		},
		Timeline: make(models.SelectionTimeline),
		bindings: make(map[string]int),
	}

	for i := 0; i < opts.Members; i++ {
		role := models.RoleMember
		if i == 0 {
			role = models.RoleOwner
		}
		m := models.Member{
			ID:          i + 1,
			DisplayName: faker.Username(),
			Color:       models.Palette[i%len(models.Palette)],
			Role:        role,
			DraftOrder:  i,
		}
		ls.Members = append(ls.Members, m)
		ls.bindings[fmt.Sprintf("user-%d", m.ID)] = m.ID
	}
	for i := 0; i < opts.Contestants; i++ {
		ls.Contestants = append(ls.Contestants, models.Contestant{
			ID:   fmt.Sprintf("c-%02d", i+1),
			Name: faker.FirstName() + " " + faker.LastName(),
		})
	}

	for i := 0; i < opts.Episodes; i++ {
		ls.Episodes = append(ls.Episodes, models.Episode{
			Number:  i + 1,
			AirDate: opts.FirstAir.Add(time.Duration(i) * 7 * 24 * time.Hour),
			Runtime: 90 * time.Minute,
		})
	}

	draftDate := opts.FirstAir.Add(-48 * time.Hour)
	ls.League.DraftDate = &draftDate

	ls.Settings = mustJSON(map[string]any{
		"scoring":          "standard",
		"survival_cap":     5,
		"preserve_streaks": true,
	})
	ls.Rules = mustJSON([]map[string]any{
		{"name": "Immunity Win", "points": 5},
		{"name": "Tribal Blindside", "points": 3},
	})
	ls.Predictions = mustJSON(map[string]any{"enabled": true})
	ls.Events = mustJSON([]any{})

	return ls
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
