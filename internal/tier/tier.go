package tier

import (
	"fmt"

	"pubg-rank-bot/internal/domain"
)

// Breakpoints are inclusive upper bounds for every tier but the last.
var Breakpoints = []int{1500, 1800, 2000, 2200, 2300}

type Resolver struct {
	names []string
}

// NewResolver expects one name per tier, lowest first.
func NewResolver(names []string) (*Resolver, error) {
	if len(names) != len(Breakpoints)+1 {
		return nil, fmt.Errorf("expected %d tier names, got %d", len(Breakpoints)+1, len(names))
	}
	return &Resolver{names: append([]string(nil), names...)}, nil
}

func (r *Resolver) Names() []string {
	return append([]string(nil), r.names...)
}

// Resolve maps a rating to its tier. Ratings of zero or less have no tier.
func (r *Resolver) Resolve(rating int) *domain.Tier {
	if rating <= 0 {
		return nil
	}
	idx := len(Breakpoints)
	for i, bound := range Breakpoints {
		if rating <= bound {
			idx = i
			break
		}
	}
	return &domain.Tier{Index: idx, Name: r.names[idx]}
}

// MaxRating is the best rating across every mode and view of the snapshot.
func MaxRating(s *domain.StatsSnapshot) int {
	best := 0
	for _, m := range domain.Modes {
		for _, v := range domain.Views {
			if r := s.Get(m, v).RatingValue(); r > best {
				best = r
			}
		}
	}
	return best
}
