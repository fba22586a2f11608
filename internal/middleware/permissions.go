package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/plexody/internal/bot"
	"github.com/keshon/plexody/internal/command"
	"github.com/keshon/plexody/pkg/cmd"
)

// PermissionNames maps the permission bits the bot gates on to
// human-readable names for the rejection message.
var PermissionNames = map[int64]string{
	discordgo.PermissionAdministrator:    "Administrator",
	discordgo.PermissionManageGuild:      "Manage Server",
	discordgo.PermissionManageChannels:   "Manage Channels",
	discordgo.PermissionManageMessages:   "Manage Messages",
	discordgo.PermissionVoiceMuteMembers: "Mute Members",
	discordgo.PermissionVoiceMoveMembers: "Move Members",
}

// WithUserPermissionCheck rejects invocations from members lacking all
// of the command's declared permissions. Commands that declare none
// stay open to everyone, and administrators always pass.
func WithUserPermissionCheck() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			var s *discordgo.Session
			var m *discordgo.Member
			var guildID, channelID string

			switch v := inv.Data.(type) {
			case *command.SlashInteractionContext:
				s, m, guildID, channelID = v.Session, v.Event.Member, v.Event.GuildID, v.Event.ChannelID
			case *command.ComponentInteractionContext:
				s, m, guildID, channelID = v.Session, v.Event.Member, v.Event.GuildID, v.Event.ChannelID
			default:
				return c.Run(ctx, inv)
			}

			if guildID == "" || m == nil || m.User == nil {
				return c.Run(ctx, inv)
			}

			meta, ok := cmd.Root(c).(command.DiscordMeta)
			if !ok {
				return c.Run(ctx, inv)
			}
			required := meta.UserPermissions()
			if len(required) == 0 {
				return c.Run(ctx, inv)
			}

			memberPerms, err := s.UserChannelPermissions(m.User.ID, channelID)
			if err != nil {
				return fmt.Errorf("failed to get user permissions: %w", err)
			}
			if memberPerms&discordgo.PermissionAdministrator != 0 {
				return c.Run(ctx, inv)
			}

			hasAny := false
			for _, p := range required {
				if memberPerms&p != 0 {
					hasAny = true
					break
				}
			}
			if !hasAny {
				var allowed []string
				for _, p := range required {
					name := PermissionNames[p]
					if name == "" {
						name = fmt.Sprintf("0x%x", p)
					}
					allowed = append(allowed, name)
				}
				msg := fmt.Sprintf(
					"You need at least one of the following permissions to run this command:\n`%s`",
					strings.Join(allowed, "`, `"),
				)
				switch v := inv.Data.(type) {
				case *command.SlashInteractionContext:
					_ = bot.RespondEmbedEphemeral(s, v.Event, &discordgo.MessageEmbed{Description: msg})
				case *command.ComponentInteractionContext:
					_ = bot.RespondEmbedEphemeral(s, v.Event, &discordgo.MessageEmbed{Description: msg})
				}
				return nil
			}
			return c.Run(ctx, inv)
		})
	}
}
