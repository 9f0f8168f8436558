package discord

import (
	"fmt"
	"strings"

	"pubg-rank-bot/internal/domain"

	"github.com/bwmarrin/discordgo"
)

const (
	introColor     = 0x000080
	updatedFormat  = "02/01/06, 15:04:05"
	statsFieldTmpl = "Rating: %s\nGames: %s\nWin %%: %s\nTop 10: %s\nK/D: %s\nAvg damage: %s\nMost kills: %s\nHeadshots: %s\nLongest kill: %s\nAvg survival: %s"
)

const regionHelp = "sa (South America), na (North America), eu (Europe), as (Asia), krjp (Korea), jp (Japan), oc (Oceania), sea (South East Asia) and ru (Russia)"

type rankView struct {
	Member    string
	Requester *discordgo.User
	Record    *domain.PlayerRecord
	// Role is the tier role the member currently holds, nil when none.
	Role   *domain.Role
	Prefix string
}

func rankEmbed(v rankView) *discordgo.MessageEmbed {
	description := fmt.Sprintf("PUBG nick: %s", v.Record.Account)
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Stats of %s", v.Member),
	}
	if v.Role != nil {
		description += fmt.Sprintf("\nRole: <@&%s>", v.Role.ID)
		embed.Color = v.Role.Color
	}
	embed.Description = description

	if v.Record.Avatar != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: v.Record.Avatar}
	}

	if v.Record.Stats != nil {
		for _, view := range []domain.View{domain.ViewTPP, domain.ViewFPP} {
			for _, mode := range domain.Modes {
				stats := v.Record.Stats.Get(mode, view)
				if stats.RatingValue() <= 0 {
					continue
				}
				embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
					Name:   strings.ToUpper(string(mode)) + " " + strings.ToUpper(string(view)),
					Value:  statsField(stats),
					Inline: true,
				})
			}
		}
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Stats from dak.gg | updated %s, use %supdate to refresh",
				v.Record.Stats.UpdatedAt.Format(updatedFormat), v.Prefix),
		}
	} else {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("No stats yet, use %supdate to fetch them", v.Prefix),
		}
	}

	if v.Requester != nil {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    v.Requester.Username,
			IconURL: v.Requester.AvatarURL(""),
		}
	}
	return embed
}

func statsField(s domain.ModeStats) string {
	return fmt.Sprintf(statsFieldTmpl,
		s.Rating, s.Games, s.WinRatio, s.Top10s, s.KD, s.Deals, s.MostKills, s.Headshots, s.Longest, s.Survival)
}

func introEmbed(prefix string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Welcome!",
		Description: "Register your PUBG account following the instructions below to join our ranking!",
		Color:       introColor,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: fmt.Sprintf(`Use "%sregister [your nick] [server]" to get your role`, prefix),
				Value: fmt.Sprintf("For example, if your PUBG nick is xXJoseGamePlaysXx and you mostly play on the "+
					"South America server, write \"%sregister xXJoseGamePlaysXx sa\" in the chat below.\n"+
					"Available regions: %s", prefix, regionHelp),
			},
			{
				Name:  fmt.Sprintf(`Use "%srank" to see your stats and "%supdate" to refresh your role`, prefix, prefix),
				Value: fmt.Sprintf(`You can also use "%srank @[user]" to see the rank of another member.`, prefix),
			},
		},
	}
}
