// Package parsertest renders profile pages shaped like the live site for tests.
package parsertest

import (
	"fmt"
	"strings"

	"pubg-rank-bot/internal/domain"
)

var FieldNames = []string{"rating", "kd", "winratio", "top10s", "deals", "games", "mostkills", "headshots", "longest", "survival"}

type Page struct {
	Token        string
	ActiveRegion string
	Avatar       string
	// Values overrides a field, keyed "mode/view/field". Unset fields render "1,234".
	Values map[string]string
	// Omit drops sections or fields, keyed "mode", "mode/view" or "mode/view/field".
	Omit map[string]bool
}

func (p Page) String() string {
	var b strings.Builder
	b.WriteString("<html><head>")
	if p.Token != "" {
		fmt.Fprintf(&b, `<meta name="csrf-token" content="%s">`, p.Token)
	}
	b.WriteString("</head><body>")

	region := p.ActiveRegion
	if region == "" {
		region = "na"
	}
	b.WriteString(`<ul class="region-nav">`)
	for _, r := range []string{"as", "eu", "na", "sa", "rjp"} {
		class := ""
		if r == region {
			class = ` class="active"`
		}
		fmt.Fprintf(&b, `<li%s><a href="/profile/player/%s">%s</a></li>`, class, r, strings.ToUpper(r))
	}
	b.WriteString("</ul>")

	if p.Avatar != "" {
		fmt.Fprintf(&b, `<img class="avatar" src="%s">`, p.Avatar)
	}

	for _, mode := range domain.Modes {
		if p.Omit[string(mode)] {
			continue
		}
		fmt.Fprintf(&b, `<section class="%s modeItem">`, mode)
		for _, view := range domain.Views {
			key := fmt.Sprintf("%s/%s", mode, view)
			if p.Omit[key] {
				continue
			}
			fmt.Fprintf(&b, `<div class="mode-section %s active">`, view)
			for _, field := range FieldNames {
				fieldKey := key + "/" + field
				if p.Omit[fieldKey] {
					continue
				}
				value, ok := p.Values[fieldKey]
				if !ok {
					value = "1,234"
				}
				fmt.Fprintf(&b, "<div class=\"%s stats-item\"><div class=\"label\">%s</div><div class=\"value\">\n  %s\n</div></div>", field, field, value)
			}
			b.WriteString("</div>")
		}
		b.WriteString("</section>")
	}

	b.WriteString("</body></html>")
	return b.String()
}

// Full returns a page with every section, a token and an avatar.
func Full() Page {
	return Page{
		Token:  "csrf-token-value",
		Avatar: "https://cdn.dak.gg/avatar.png",
		Values: map[string]string{},
		Omit:   map[string]bool{},
	}
}
