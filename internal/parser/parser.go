package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"pubg-rank-bot/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

type Parser struct {
	schema Schema
	now    func() time.Time
}

func New() *Parser {
	return NewWithSchema(DefaultSchema, time.Now)
}

func NewWithSchema(schema Schema, now func() time.Time) *Parser {
	return &Parser{schema: schema, now: now}
}

// Parse extracts the stats snapshot and avatar URL from a rendered profile page.
// A missing field falls back to its default; a missing section or avatar fails the
// whole parse with domain.ErrParseFailed.
func (p *Parser) Parse(raw []byte) (*domain.StatsSnapshot, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
	}

	snapshot := domain.NewStatsSnapshot(p.now())
	for _, mode := range p.schema.Modes {
		section := doc.Find(fmt.Sprintf(p.schema.SectionSelector, mode)).First()
		if section.Length() == 0 {
			return nil, "", fmt.Errorf("%w: no %s section", domain.ErrParseFailed, mode)
		}
		for _, view := range p.schema.Views {
			block := section.Find(fmt.Sprintf(p.schema.ViewSelector, view)).First()
			if block.Length() == 0 {
				return nil, "", fmt.Errorf("%w: no %s %s section", domain.ErrParseFailed, mode, view)
			}
			snapshot.Set(mode, view, p.extract(block))
		}
	}

	avatar, ok := doc.Find(p.schema.AvatarSelector).First().Attr("src")
	if !ok {
		return nil, "", fmt.Errorf("%w: no avatar", domain.ErrParseFailed)
	}

	return snapshot, avatar, nil
}

func (p *Parser) extract(block *goquery.Selection) domain.ModeStats {
	var stats domain.ModeStats
	for _, rule := range p.schema.Fields {
		value := rule.Default
		if field := findByClassPrefix(block, rule.ClassPrefix); field != nil {
			if v := field.Find(p.schema.ValueSelector).First(); v.Length() > 0 {
				if text := Normalize(v.Text()); text != "" {
					value = text
				}
			}
		}
		rule.Assign(&stats, value)
	}
	return stats
}

func findByClassPrefix(block *goquery.Selection, prefix string) *goquery.Selection {
	var found *goquery.Selection
	block.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, class := range strings.Fields(s.AttrOr("class", "")) {
			if strings.HasPrefix(class, prefix) {
				found = s
				return false
			}
		}
		return true
	})
	return found
}

var normalizer = strings.NewReplacer(",", "", " ", "", "\n", "")

// Normalize strips thousands separators, spaces and newlines.
func Normalize(text string) string {
	return strings.TrimSpace(normalizer.Replace(text))
}
