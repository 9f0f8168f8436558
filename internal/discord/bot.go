package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pubg-rank-bot/internal/api"
	"pubg-rank-bot/internal/config"
	"pubg-rank-bot/internal/domain"
	"pubg-rank-bot/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Syncer is the part of the sync service the command surface drives.
type Syncer interface {
	Register(ctx context.Context, roles service.RoleManager, userID, account string, regions []string) (*service.SyncResult, error)
	Sync(ctx context.Context, roles service.RoleManager, userID string, regions []string) (*service.SyncResult, error)
	SyncAll(ctx context.Context, roles service.RoleManager) (*service.BatchReport, error)
	Lookup(ctx context.Context, userID string) (*domain.PlayerRecord, *domain.Tier, error)
	TierNames() []string
}

type profileLinker interface {
	ProfileURL(account string) string
}

type chatSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

type guildRoles interface {
	service.RoleManager
	MemberPermissions(ctx context.Context, userID string) (int64, error)
	CreateRole(ctx context.Context, name string) (*domain.Role, error)
}

type Bot struct {
	session  *discordgo.Session
	chat     chatSession
	guilds   func(guildID string) guildRoles
	sync     Syncer
	links    profileLinker
	prefix   string
	guildID  string
	commands map[string]handler
	after    func(d time.Duration, f func())

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	logger  zerolog.Logger
}

func NewSession(cfg *config.Config) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	return session, nil
}

func NewBot(session *discordgo.Session, syncSvc *service.SyncService, client *api.DakGGClient, cfg *config.Config, logger zerolog.Logger) *Bot {
	b := newBot(session, func(guildID string) guildRoles {
		return NewGuildRoles(session, guildID)
	}, syncSvc, client, cfg, logger)
	b.session = session
	return b
}

func newBot(chat chatSession, guilds func(string) guildRoles, syncer Syncer, links profileLinker, cfg *config.Config, logger zerolog.Logger) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		chat:    chat,
		guilds:  guilds,
		sync:    syncer,
		links:   links,
		prefix:  cfg.CommandPrefix,
		guildID: cfg.GuildID,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "discord").Logger(),
	}
	b.commands = b.commandTable()
	return b
}

// Start registers the handlers and opens the gateway connection.
func (b *Bot) Start() error {
	b.session.AddHandler(b.ready)
	b.session.AddHandler(b.messageCreate)
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord connection: %w", err)
	}
	return nil
}

// Stop cancels running commands, waits for them and closes the connection.
func (b *Bot) Stop() error {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	if b.session == nil {
		return nil
	}
	return b.session.Close()
}

// Roles returns the role capability for guildID.
func (b *Bot) Roles(guildID string) service.RoleManager {
	return b.guilds(guildID)
}

func (b *Bot) ready(s *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info().
		Str("user", event.User.Username).
		Str("user_id", event.User.ID).
		Int("guilds", len(event.Guilds)).
		Msg("discord bot ready")
}

func (b *Bot) messageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if b.guildID != "" && m.GuildID != b.guildID {
		return
	}

	cmd, ok := parseCommand(b.prefix, m.Content)
	if !ok {
		return
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	defer b.wg.Done()
	b.handle(m.Message, cmd)
}

func (b *Bot) send(channelID, text string) *discordgo.Message {
	msg, err := b.chat.ChannelMessageSend(channelID, text)
	if err != nil {
		b.logger.Warn().Err(err).Str("channel_id", channelID).Msg("failed to send message")
		return nil
	}
	return msg
}

func (b *Bot) sendEmbed(channelID string, embed *discordgo.MessageEmbed) {
	if _, err := b.chat.ChannelMessageSendEmbed(channelID, embed); err != nil {
		b.logger.Warn().Err(err).Str("channel_id", channelID).Msg("failed to send embed")
	}
}

// notice sends a message that deletes itself after ttl.
func (b *Bot) notice(channelID, text string, ttl time.Duration) {
	if msg := b.send(channelID, text); msg != nil {
		b.expire(msg, ttl)
	}
}

func (b *Bot) expire(msg *discordgo.Message, ttl time.Duration) {
	b.after(ttl, func() { b.delete(msg) })
}

func (b *Bot) delete(msg *discordgo.Message) {
	if msg == nil {
		return
	}
	if err := b.chat.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
		b.logger.Debug().Err(err).Str("message_id", msg.ID).Msg("failed to delete message")
	}
}
