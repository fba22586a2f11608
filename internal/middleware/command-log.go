package middleware

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/plexody/internal/bot"
	"github.com/keshon/plexody/internal/command"
	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/pkg/cmd"
)

// WithCommandLogger appends every finished invocation to the per-guild
// command history. Logging failures never fail the command itself.
func WithCommandLogger() cmd.Middleware {
	log := logging.WithComponent("command-log")
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			err := c.Run(ctx, inv)

			switch v := inv.Data.(type) {
			case *command.SlashInteractionContext:
				e := v.Event
				user := resolveUser(v.Session, e)
				param := strings.Join(inv.Args, " ")
				if err := bot.LogCommand(v.Session, v.Storage, e.GuildID, e.ChannelID, user.ID, user.Username, c.Name(), param); err != nil {
					log.Warn().Err(err).Str("command", c.Name()).Msg("failed to log command")
				}
			case *command.ComponentInteractionContext:
				e := v.Event
				user := resolveUser(v.Session, e)
				param := e.MessageComponentData().CustomID
				if err := bot.LogCommand(v.Session, v.Storage, e.GuildID, e.ChannelID, user.ID, user.Username, c.Name(), param); err != nil {
					log.Warn().Err(err).Str("command", c.Name()).Msg("failed to log component")
				}
			}
			return err
		})
	}
}

// resolveUser digs the acting user out of an interaction. Member is set
// for guild interactions, User for DMs.
func resolveUser(s *discordgo.Session, e *discordgo.InteractionCreate) *discordgo.User {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	if e.User != nil {
		if e.User.Username != "" {
			return e.User
		}
		if u, err := s.User(e.User.ID); err == nil {
			return u
		}
		return e.User
	}
	return &discordgo.User{ID: "unknown", Username: "Unknown"}
}
