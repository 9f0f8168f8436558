package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"pubg-rank-bot/internal/config"
	"pubg-rank-bot/internal/constants"
	"pubg-rank-bot/internal/domain"
	"pubg-rank-bot/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	channelID string
	content   string
	embed     *discordgo.MessageEmbed
}

type fakeChat struct {
	mu      sync.Mutex
	sent    []sentMessage
	deleted []string
}

func (c *fakeChat) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMessage{channelID: channelID, content: content})
	return &discordgo.Message{ID: fmt.Sprintf("m%d", len(c.sent)), ChannelID: channelID, Content: content}, nil
}

func (c *fakeChat) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMessage{channelID: channelID, embed: embed})
	return &discordgo.Message{ID: fmt.Sprintf("m%d", len(c.sent)), ChannelID: channelID}, nil
}

func (c *fakeChat) ChannelMessageDelete(_, messageID string, _ ...discordgo.RequestOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, messageID)
	return nil
}

func (c *fakeChat) texts() []string {
	var out []string
	for _, m := range c.sent {
		if m.embed == nil {
			out = append(out, m.content)
		}
	}
	return out
}

type fakeRoles struct {
	roles   []domain.Role
	held    map[string][]string
	perms   map[string]int64
	created []string
}

func (f *fakeRoles) CanManageRoles(context.Context) (bool, error) { return true, nil }

func (f *fakeRoles) FindRoleByName(_ context.Context, name string) (*domain.Role, error) {
	for _, r := range f.roles {
		if strings.EqualFold(r.Name, name) {
			role := r
			return &role, nil
		}
	}
	return nil, nil
}

func (f *fakeRoles) ListUserRoles(_ context.Context, userID string) ([]domain.Role, error) {
	var out []domain.Role
	for _, id := range f.held[userID] {
		for _, r := range f.roles {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeRoles) Grant(context.Context, string, domain.Role) error  { return nil }
func (f *fakeRoles) Revoke(context.Context, string, domain.Role) error { return nil }

func (f *fakeRoles) MemberPermissions(_ context.Context, userID string) (int64, error) {
	return f.perms[userID], nil
}

func (f *fakeRoles) CreateRole(_ context.Context, name string) (*domain.Role, error) {
	f.created = append(f.created, name)
	role := domain.Role{ID: "new-" + name, Name: name}
	f.roles = append(f.roles, role)
	return &role, nil
}

type syncCall struct {
	op      string
	userID  string
	account string
	regions []string
}

type fakeSyncer struct {
	calls   []syncCall
	result  *service.SyncResult
	report  *service.BatchReport
	records map[string]*domain.PlayerRecord
	err     error
	// deadlines records whether each SyncAll context carried a deadline.
	deadlines []bool
}

func (f *fakeSyncer) Register(_ context.Context, _ service.RoleManager, userID, account string, regions []string) (*service.SyncResult, error) {
	f.calls = append(f.calls, syncCall{op: "register", userID: userID, account: account, regions: regions})
	return f.result, f.err
}

func (f *fakeSyncer) Sync(_ context.Context, _ service.RoleManager, userID string, regions []string) (*service.SyncResult, error) {
	f.calls = append(f.calls, syncCall{op: "sync", userID: userID, regions: regions})
	return f.result, f.err
}

func (f *fakeSyncer) SyncAll(ctx context.Context, _ service.RoleManager) (*service.BatchReport, error) {
	f.calls = append(f.calls, syncCall{op: "sync_all"})
	_, ok := ctx.Deadline()
	f.deadlines = append(f.deadlines, ok)
	return f.report, f.err
}

func (f *fakeSyncer) Lookup(_ context.Context, userID string) (*domain.PlayerRecord, *domain.Tier, error) {
	f.calls = append(f.calls, syncCall{op: "lookup", userID: userID})
	rec, ok := f.records[userID]
	if !ok {
		return nil, nil, domain.ErrUnregisteredAccount
	}
	return rec, nil, nil
}

func (f *fakeSyncer) TierNames() []string {
	return config.DefaultTierRoles
}

type linker struct{}

func (linker) ProfileURL(account string) string { return "https://dak.gg/profile/" + account }

type botFixture struct {
	bot    *Bot
	chat   *fakeChat
	roles  *fakeRoles
	syncer *fakeSyncer
	ttls   []time.Duration
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	f := &botFixture{
		chat: &fakeChat{},
		roles: &fakeRoles{
			held:  map[string][]string{},
			perms: map[string]int64{"admin": discordgo.PermissionAdministrator},
		},
		syncer: &fakeSyncer{records: map[string]*domain.PlayerRecord{}},
	}
	for i, name := range config.DefaultTierRoles {
		f.roles.roles = append(f.roles.roles, domain.Role{ID: fmt.Sprintf("r%d", i), Name: name, Color: 0x100 + i})
	}
	cfg := &config.Config{CommandPrefix: "p!", GuildID: "g1"}
	f.bot = newBot(f.chat, func(string) guildRoles { return f.roles }, f.syncer, linker{}, cfg, zerolog.Nop())
	f.bot.after = func(d time.Duration, fn func()) {
		f.ttls = append(f.ttls, d)
		fn()
	}
	return f
}

func (f *botFixture) say(authorID, content string, mentions ...*discordgo.User) {
	f.bot.messageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "trigger",
		ChannelID: "c1",
		GuildID:   "g1",
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Username: authorID},
		Mentions:  mentions,
	}})
}

func TestParseCommand(t *testing.T) {
	cmd, ok := parseCommand("p!", "  p!register  Chicken_Dinner sa ")
	require.True(t, ok)
	assert.Equal(t, "register", cmd.Name)
	assert.Equal(t, []string{"Chicken_Dinner", "sa"}, cmd.Args)

	cmd, ok = parseCommand("p!", "p!RANK")
	require.True(t, ok)
	assert.Equal(t, "rank", cmd.Name)
	assert.Empty(t, cmd.Args)

	_, ok = parseCommand("p!", "hello p!rank")
	assert.False(t, ok)
	_, ok = parseCommand("p!", "p!")
	assert.False(t, ok)
	_, ok = parseCommand("", "p!rank")
	assert.False(t, ok)
}

func TestIgnoresBotsDirectMessagesAndOtherGuilds(t *testing.T) {
	f := newBotFixture(t)

	f.bot.messageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		GuildID: "g1", Content: "p!update", Author: &discordgo.User{ID: "b", Bot: true},
	}})
	f.bot.messageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		Content: "p!update", Author: &discordgo.User{ID: "u1"},
	}})
	f.bot.messageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		GuildID: "other", Content: "p!update", Author: &discordgo.User{ID: "u1"},
	}})

	assert.Empty(t, f.syncer.calls)
	assert.Empty(t, f.chat.sent)
}

func TestRegisterPassesRegionAndConfirms(t *testing.T) {
	f := newBotFixture(t)
	f.syncer.result = &service.SyncResult{Tier: &domain.Tier{Index: 2, Name: "Gold"}}

	f.say("u1", "p!register Chicken rjp")

	require.Len(t, f.syncer.calls, 1)
	assert.Equal(t, syncCall{op: "register", userID: "u1", account: "Chicken", regions: []string{"krjp"}}, f.syncer.calls[0])

	texts := f.chat.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Registering account Chicken to u1")
	assert.Contains(t, texts[1], "Role Gold given to u1")

	assert.Contains(t, f.chat.deleted, "trigger")
	assert.Contains(t, f.chat.deleted, "m1")
	assert.Contains(t, f.ttls, constants.NoticeTTL)
}

func TestRegisterWithoutRegionUsesDefaults(t *testing.T) {
	f := newBotFixture(t)
	f.syncer.result = &service.SyncResult{}

	f.say("u1", "p!register Chicken")

	require.Len(t, f.syncer.calls, 1)
	assert.Nil(t, f.syncer.calls[0].regions)
	assert.Contains(t, f.chat.texts()[1], "no ranked games yet")
}

func TestRegisterWithoutAccountShowsUsage(t *testing.T) {
	f := newBotFixture(t)

	f.say("u1", "p!register")

	assert.Empty(t, f.syncer.calls)
	require.Len(t, f.chat.texts(), 1)
	assert.Contains(t, f.chat.texts()[0], "Usage: p!register")
}

func TestUpdateUnregisteredShowsErrorNotice(t *testing.T) {
	f := newBotFixture(t)
	f.syncer.err = fmt.Errorf("user u1: %w", domain.ErrUnregisteredAccount)

	f.say("u1", "p!update")

	texts := f.chat.texts()
	require.Len(t, texts, 1)
	assert.Equal(t, "`This user is not registered yet`", texts[0])
	assert.Equal(t, []time.Duration{constants.ErrorNoticeTTL}, f.ttls)
	assert.ElementsMatch(t, []string{"trigger", "m1"}, f.chat.deleted)
}

func TestRegisterParseFailureLinksProfile(t *testing.T) {
	f := newBotFixture(t)
	f.syncer.err = domain.ErrParseFailed

	f.say("u1", "p!register Chicken")

	texts := f.chat.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "https://dak.gg/profile/Chicken")
}

func TestUpdateParseFailureLinksStoredAccount(t *testing.T) {
	f := newBotFixture(t)
	f.syncer.records["u1"] = &domain.PlayerRecord{UserID: "u1", Account: "Chicken"}
	f.syncer.err = fmt.Errorf("sync u1: %w", domain.ErrParseFailed)

	f.say("u1", "p!update")

	texts := f.chat.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "does not look up to date")
	assert.Contains(t, texts[0], "https://dak.gg/profile/Chicken")
}

func TestUpdateUserParseFailureLinksTargetAccount(t *testing.T) {
	f := newBotFixture(t)
	f.syncer.records["u2"] = &domain.PlayerRecord{UserID: "u2", Account: "Other"}
	f.syncer.err = domain.ErrParseFailed

	f.say("admin", "p!update_user <@u2>", &discordgo.User{ID: "u2", Username: "other"})

	texts := f.chat.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "https://dak.gg/profile/Other")
	assert.NotContains(t, texts[0], "<@u2>")
}

func TestUpdateFetchFailureHasNoProfileLink(t *testing.T) {
	f := newBotFixture(t)
	f.syncer.records["u1"] = &domain.PlayerRecord{UserID: "u1", Account: "Chicken"}
	f.syncer.err = domain.ErrFetchFailed

	f.say("u1", "p!update")

	texts := f.chat.texts()
	require.Len(t, texts, 1)
	assert.NotContains(t, texts[0], "dak.gg/profile")
}

func TestUpdateReportsPartialFailure(t *testing.T) {
	f := newBotFixture(t)
	f.syncer.result = &service.SyncResult{
		Tier:    &domain.Tier{Index: 5, Name: "Elite"},
		RoleErr: &domain.PartialFailure{Err: domain.ErrInsufficientPermission},
	}

	f.say("u1", "p!update")

	texts := f.chat.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Stats updated")
	assert.Contains(t, texts[0], "permission to manage roles")
	assert.Equal(t, []time.Duration{constants.ErrorNoticeTTL}, f.ttls)
}

func TestAdminCommandsAreRefusedForMembers(t *testing.T) {
	for _, content := range []string{"p!update_all", "p!update_user", "p!create", "p!intro"} {
		t.Run(content, func(t *testing.T) {
			f := newBotFixture(t)

			f.say("u1", content)

			assert.Empty(t, f.syncer.calls)
			assert.Empty(t, f.roles.created)
			require.Len(t, f.chat.sent, 1)
			assert.Contains(t, f.chat.sent[0].content, "admins only")
			assert.NotContains(t, f.chat.deleted, "trigger")
		})
	}
}

func TestUpdateUserTargetsMention(t *testing.T) {
	f := newBotFixture(t)
	f.syncer.result = &service.SyncResult{Tier: &domain.Tier{Index: 0, Name: "Bronze"}}

	f.say("admin", "p!update_user <@u2>", &discordgo.User{ID: "u2", Username: "other"})

	require.Len(t, f.syncer.calls, 1)
	assert.Equal(t, "u2", f.syncer.calls[0].userID)
	assert.Contains(t, f.chat.texts()[0], "Role Bronze given to other")
}

func TestUpdateAllPostsSummary(t *testing.T) {
	f := newBotFixture(t)
	f.syncer.report = &service.BatchReport{
		Total:  3,
		Synced: 2,
		Failed: []service.BatchFailure{{UserID: "u2", Account: "b", Err: domain.ErrFetchFailed}},
	}

	f.say("admin", "p!update_all")

	texts := f.chat.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Synced 2 of 3 players")
	assert.Contains(t, texts[0], "<@u2> (b): dak.gg is not answering")
	assert.Empty(t, f.chat.deleted)
}

func TestUpdateAllRunsWithoutCommandDeadline(t *testing.T) {
	f := newBotFixture(t)
	f.syncer.report = &service.BatchReport{Total: 1, Synced: 1}

	f.say("admin", "p!update_all")

	assert.Equal(t, []bool{false}, f.syncer.deadlines)
	assert.Contains(t, f.chat.texts()[0], "Synced 1 of 1 players")
}

func TestStoppedBotIgnoresCommands(t *testing.T) {
	f := newBotFixture(t)
	require.NoError(t, f.bot.Stop())

	f.say("u1", "p!update")
	f.say("admin", "p!update_all")

	assert.Empty(t, f.syncer.calls)
	assert.Empty(t, f.chat.sent)
}

func TestCreateProvisionsMissingRoles(t *testing.T) {
	f := newBotFixture(t)
	f.roles.roles = f.roles.roles[:2]

	f.say("admin", "p!create")

	assert.Equal(t, []string{"Gold", "Platinum", "Diamond", "Elite"}, f.roles.created)
	assert.Equal(t, []string{"Done, 4 tier roles created"}, f.chat.texts())
}

func TestRankShowsEmbedWithHeldRoleColor(t *testing.T) {
	f := newBotFixture(t)
	snapshot := domain.NewStatsSnapshot(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
	stats := snapshot.Get(domain.ModeSquad, domain.ViewFPP)
	stats.Rating = "2100"
	snapshot.Set(domain.ModeSquad, domain.ViewFPP, stats)
	f.syncer.records["u1"] = &domain.PlayerRecord{UserID: "u1", Account: "Chicken", Stats: snapshot, Avatar: "https://cdn/a.png"}
	f.roles.held["u1"] = []string{"r3"}

	f.say("u1", "p!rank")

	require.Len(t, f.chat.sent, 1)
	embed := f.chat.sent[0].embed
	require.NotNil(t, embed)
	assert.Equal(t, 0x103, embed.Color)
	assert.Contains(t, embed.Description, "<@&r3>")
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "SQUAD FPP", embed.Fields[0].Name)
	assert.Empty(t, f.chat.deleted)
}

func TestRankUnregistered(t *testing.T) {
	f := newBotFixture(t)

	f.say("u1", "p!rank", &discordgo.User{ID: "u9", Username: "ghost"})

	require.Len(t, f.syncer.calls, 1)
	assert.Equal(t, "u9", f.syncer.calls[0].userID)
	assert.Equal(t, []string{"`This user is not registered yet`"}, f.chat.texts())
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	f := newBotFixture(t)

	f.say("u1", "p!dance")

	assert.Empty(t, f.chat.sent)
	assert.Empty(t, f.chat.deleted)
}
