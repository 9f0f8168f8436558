package domain

import (
	"strconv"
	"strings"
	"time"
)

type Mode string

type View string

const (
	ModeSolo  Mode = "solo"
	ModeDuo   Mode = "duo"
	ModeSquad Mode = "squad"
)

const (
	ViewFPP View = "fpp"
	ViewTPP View = "tpp"
)

var (
	Modes = []Mode{ModeSolo, ModeDuo, ModeSquad}
	Views = []View{ViewFPP, ViewTPP}
)

// ModeStats holds the normalized text of one mode/view block. Missing values are "0".
type ModeStats struct {
	Rating    string `json:"rating"`
	KD        string `json:"kd"`
	WinRatio  string `json:"winratio"`
	Top10s    string `json:"top10s"`
	Deals     string `json:"deals"`
	Games     string `json:"games"`
	Longest   string `json:"longest"`
	Headshots string `json:"headshots"`
	MostKills string `json:"mostkills"`
	Survival  string `json:"survival"`
}

func EmptyModeStats() ModeStats {
	return ModeStats{
		Rating: "0", KD: "0", WinRatio: "0", Top10s: "0", Deals: "0",
		Games: "0", Longest: "0", Headshots: "0", MostKills: "0", Survival: "0",
	}
}

// RatingValue returns the rating as a non-negative integer, 0 when it cannot be read.
func (s ModeStats) RatingValue() int {
	raw := strings.TrimSpace(s.Rating)
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type StatsSnapshot struct {
	Modes     map[Mode]map[View]ModeStats `json:"modes"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// NewStatsSnapshot returns a snapshot with every mode/view combination present.
func NewStatsSnapshot(updatedAt time.Time) *StatsSnapshot {
	s := &StatsSnapshot{
		Modes:     make(map[Mode]map[View]ModeStats, len(Modes)),
		UpdatedAt: updatedAt,
	}
	for _, m := range Modes {
		s.Modes[m] = make(map[View]ModeStats, len(Views))
		for _, v := range Views {
			s.Modes[m][v] = EmptyModeStats()
		}
	}
	return s
}

func (s *StatsSnapshot) Get(mode Mode, view View) ModeStats {
	if s == nil {
		return EmptyModeStats()
	}
	if views, ok := s.Modes[mode]; ok {
		if stats, ok := views[view]; ok {
			return stats
		}
	}
	return EmptyModeStats()
}

func (s *StatsSnapshot) Set(mode Mode, view View, stats ModeStats) {
	if s.Modes == nil {
		s.Modes = make(map[Mode]map[View]ModeStats, len(Modes))
	}
	if s.Modes[mode] == nil {
		s.Modes[mode] = make(map[View]ModeStats, len(Views))
	}
	s.Modes[mode][view] = stats
}

// Normalize fills any missing mode/view combination, e.g. after decoding an older document.
func (s *StatsSnapshot) Normalize() {
	for _, m := range Modes {
		for _, v := range Views {
			s.Set(m, v, s.Get(m, v))
		}
	}
}

type PlayerRecord struct {
	UserID    string
	Account   string
	Stats     *StatsSnapshot
	Avatar    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Tier struct {
	Index int
	Name  string
}

type Role struct {
	ID    string
	Name  string
	Color int
}

type SyncRecord struct {
	ID        string
	UserID    string
	Account   string
	MaxRating int
	TierName  string
	RoleError string
	CreatedAt time.Time
}
