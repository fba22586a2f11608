// Package discord wires the bot together: the gateway session, the
// command dispatch, per-guild playback sessions and the embeds the
// player posts while it runs.
package discord

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/plexody/internal/bot"
	"github.com/keshon/plexody/internal/command"
	"github.com/keshon/plexody/internal/command/core"
	"github.com/keshon/plexody/internal/command/music"
	"github.com/keshon/plexody/internal/config"
	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/internal/middleware"
	"github.com/keshon/plexody/internal/music/resolver"
	"github.com/keshon/plexody/internal/music/session"
	"github.com/keshon/plexody/internal/music/sink"
	"github.com/keshon/plexody/internal/storage"
	"github.com/keshon/plexody/pkg/cmd"
)

// Bot is the running Discord frontend. It implements bot.Voice for the
// command layer.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	store    *storage.Storage
	sessions *session.Registry
	mux      *resolver.Mux
	importer *resolver.Importer
	plexSrc  *resolver.PlexSource
	notifier *Notifier
	log      zerolog.Logger
}

// NewBot builds the frontend around an unopened gateway session.
// plexSrc may be nil when no Plex server is configured.
func NewBot(cfg *config.Config, store *storage.Storage, mux *resolver.Mux, importer *resolver.Importer, plexSrc *resolver.PlexSource) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	b := &Bot{
		dg:       dg,
		cfg:      cfg,
		store:    store,
		mux:      mux,
		importer: importer,
		plexSrc:  plexSrc,
		log:      logging.WithComponent("bot"),
	}
	b.notifier = NewNotifier(dg, store)

	b.sessions = session.NewRegistry(func(guildID string) session.Config {
		return session.Config{
			Sink:        sink.NewDiscord(dg, guildID),
			Notifier:    b.notifier,
			IdleTimeout: cfg.IdleTimeout,
			QueueLimit:  cfg.MaxQueueSize,
			OnClose: func(s *session.Session) {
				importer.CancelGuild(s.GuildID())
			},
		}
	})

	b.registerBotCommands()
	return b, nil
}

// registerBotCommands adds the commands that need a live bot handle.
// The informational commands register themselves from init.
func (b *Bot) registerBotCommands() {
	command.RegisterCommand(
		&music.MusicCommand{Bot: b},
		middleware.WithGuildOnly(),
		middleware.WithUserPermissionCheck(),
		middleware.WithCommandLogger(),
		middleware.WithMetrics(),
	)
	command.RegisterCommand(
		&core.PlaylistsCommand{Bot: b},
		middleware.WithGuildOnly(),
		middleware.WithUserPermissionCheck(),
		middleware.WithCommandLogger(),
		middleware.WithMetrics(),
	)
}

// Run opens the gateway and blocks until ctx is canceled. On the way
// out it kills every live playback session.
func (b *Bot) Run(ctx context.Context) error {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onVoiceStateUpdate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	go b.runPresenceLoop(ctx)

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, cleaning up")
	b.sessions.Shutdown(session.ReasonKilled)
	return nil
}

// --- bot.Voice ---

func (b *Bot) GetOrCreateSession(guildID string) *session.Session {
	return b.sessions.GetOrCreate(guildID)
}

func (b *Bot) Session(guildID string) (*session.Session, bool) {
	return b.sessions.Get(guildID)
}

func (b *Bot) Resolver() *resolver.Mux { return b.mux }

func (b *Bot) Importer() *resolver.Importer { return b.importer }

func (b *Bot) Plex() *resolver.PlexSource { return b.plexSrc }

// Sessions exposes the registry for the status server.
func (b *Bot) Sessions() *session.Registry { return b.sessions }

// --- gateway handlers ---

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		if b.isGuildBlacklisted(g.ID) {
			b.log.Info().Str("guild", g.ID).Msg("leaving blacklisted guild")
			if err := s.GuildLeave(g.ID); err != nil {
				b.log.Error().Err(err).Str("guild", g.ID).Msg("failed to leave guild")
			}
			continue
		}

		if b.cfg.InitSlashCommands {
			if err := b.registerCommands(g.ID); err != nil {
				b.log.Error().Err(err).Str("guild", g.ID).Msg("failed to register slash commands")
			}
		}
	}
	if !b.cfg.InitSlashCommands {
		b.log.Info().Msg("slash command registration skipped")
	}

	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.isGuildBlacklisted(g.Guild.ID) {
		b.log.Info().Str("guild", g.Guild.ID).Str("name", g.Guild.Name).Msg("leaving blacklisted guild")
		if err := s.GuildLeave(g.Guild.ID); err != nil {
			b.log.Error().Err(err).Str("guild", g.Guild.ID).Msg("failed to leave guild")
		}
		return
	}

	if err := b.registerCommands(g.Guild.ID); err != nil {
		b.log.Error().Err(err).Str("guild", g.Guild.ID).Msg("failed to register slash commands")
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		c, ok := command.GetCommand(data.Name)
		if !ok {
			b.log.Warn().Str("command", data.Name).Msg("unknown command")
			return
		}

		sctx := &command.SlashInteractionContext{
			Session: s,
			Event:   i,
			Args:    flattenOptions(data.Options),
			Storage: b.store,
		}
		inv := &cmd.Invocation{Args: sctx.Args, Data: sctx}
		if err := c.Run(context.Background(), inv); err != nil {
			b.log.Error().Err(err).Str("command", data.Name).Msg("slash command failed")
			_ = bot.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
				Description: fmt.Sprintf("Error running command: %v", err),
			})
		}

	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		matched := b.findComponentCommand(customID)
		if matched == nil {
			b.log.Warn().Str("custom_id", customID).Msg("no command claims component")
			return
		}

		cctx := &command.ComponentInteractionContext{
			Session: s,
			Event:   i,
			Storage: b.store,
		}
		inv := &cmd.Invocation{Data: cctx}
		if err := matched.Run(context.Background(), inv); err != nil {
			b.log.Error().Err(err).Str("custom_id", customID).Msg("component failed")
			_ = bot.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
				Description: fmt.Sprintf("Error running component: %v", err),
			})
		}
	}
}

// findComponentCommand matches a component custom ID to the command
// whose name prefixes it. Only commands that actually handle
// components count.
func (b *Bot) findComponentCommand(customID string) cmd.Command {
	for _, c := range command.AllCommands() {
		name := c.Name()
		if customID != name &&
			!strings.HasPrefix(customID, name+":") &&
			!strings.HasPrefix(customID, name+"_") {
			continue
		}
		if a, ok := cmd.Root(c).(*command.DiscordAdapter); ok && a.HandlesComponents() {
			return c
		}
	}
	return nil
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.DiscordGuildBlacklist, guildID)
}

// flattenOptions renders interaction options as positional strings, for
// the command log.
func flattenOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) []string {
	var args []string
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
			args = append(args, o.Name)
			args = append(args, flattenOptions(o.Options)...)
		default:
			args = append(args, fmt.Sprintf("%v", o.Value))
		}
	}
	return args
}
