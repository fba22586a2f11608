// Package core holds the informational commands: /about, /help and the
// Plex catalog browser /playlists.
package core

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/plexody/internal/bot"
	"github.com/keshon/plexody/internal/command"
	"github.com/keshon/plexody/internal/middleware"
	"github.com/keshon/plexody/internal/version"
)

type AboutCommand struct{}

func (c *AboutCommand) Name() string             { return "about" }
func (c *AboutCommand) Description() string      { return "Discover the origin of this bot" }
func (c *AboutCommand) Group() string            { return "core" }
func (c *AboutCommand) Category() string         { return "🕯️ Information" }
func (c *AboutCommand) UserPermissions() []int64 { return []int64{} }

func (c *AboutCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *AboutCommand) Run(ctx interface{}) error {
	sctx, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}

	return bot.RespondEmbedEphemeral(sctx.Session, sctx.Event, buildAboutEmbed())
}

func buildAboutEmbed() *discordgo.MessageEmbed {
	release := version.Version
	if version.BuildDate != "" && version.BuildDate != "unknown" {
		if t, err := time.Parse(time.RFC3339, version.BuildDate); err == nil {
			release = fmt.Sprintf("%s (%s)", version.Version, t.Format("2006-01-02"))
		}
	}

	return &discordgo.MessageEmbed{
		Description: fmt.Sprintf("%s **About %s**\n\n%s", version.AppEmoji, version.AppName, version.AppFullName),
		Color:       bot.EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Repository", Value: version.Repository},
			{Name: "Release", Value: fmt.Sprintf("%s (Go %s)", release, strings.TrimPrefix(runtime.Version(), "go"))},
		},
	}
}

func init() {
	command.RegisterCommand(
		&AboutCommand{},
		middleware.WithGuildOnly(),
		middleware.WithUserPermissionCheck(),
		middleware.WithCommandLogger(),
		middleware.WithMetrics(),
	)
}
