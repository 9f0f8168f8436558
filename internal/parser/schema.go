package parser

import "pubg-rank-bot/internal/domain"

// FieldRule locates one stat inside a mode/view section: the first div carrying a
// class that starts with ClassPrefix, then its ".value" descendant.
type FieldRule struct {
	Name        string
	ClassPrefix string
	Default     string
	Assign      func(*domain.ModeStats, string)
}

type Schema struct {
	// SectionSelector and ViewSelector are formatted with the mode and view names.
	SectionSelector string
	ViewSelector    string
	ValueSelector   string
	AvatarSelector  string
	Modes           []domain.Mode
	Views           []domain.View
	Fields          []FieldRule
}

var DefaultSchema = Schema{
	SectionSelector: "section.%s.modeItem",
	ViewSelector:    "div.mode-section.%s",
	ValueSelector:   ".value",
	AvatarSelector:  "img.avatar",
	Modes:           domain.Modes,
	Views:           domain.Views,
	Fields: []FieldRule{
		{Name: "rating", ClassPrefix: "rating", Default: "0", Assign: func(s *domain.ModeStats, v string) { s.Rating = v }},
		{Name: "kd", ClassPrefix: "kd", Default: "0", Assign: func(s *domain.ModeStats, v string) { s.KD = v }},
		{Name: "winratio", ClassPrefix: "winratio", Default: "0", Assign: func(s *domain.ModeStats, v string) { s.WinRatio = v }},
		{Name: "top10s", ClassPrefix: "top10s", Default: "0", Assign: func(s *domain.ModeStats, v string) { s.Top10s = v }},
		{Name: "deals", ClassPrefix: "deals", Default: "0", Assign: func(s *domain.ModeStats, v string) { s.Deals = v }},
		{Name: "games", ClassPrefix: "games", Default: "0", Assign: func(s *domain.ModeStats, v string) { s.Games = v }},
		{Name: "mostkills", ClassPrefix: "mostkills", Default: "0", Assign: func(s *domain.ModeStats, v string) { s.MostKills = v }},
		{Name: "headshots", ClassPrefix: "headshots", Default: "0", Assign: func(s *domain.ModeStats, v string) { s.Headshots = v }},
		{Name: "longest", ClassPrefix: "longest", Default: "0", Assign: func(s *domain.ModeStats, v string) { s.Longest = v }},
		{Name: "survival", ClassPrefix: "survival", Default: "0", Assign: func(s *domain.ModeStats, v string) { s.Survival = v }},
	},
}
