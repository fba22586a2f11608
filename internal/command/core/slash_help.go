package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/plexody/internal/bot"
	"github.com/keshon/plexody/internal/command"
	"github.com/keshon/plexody/internal/config"
	"github.com/keshon/plexody/internal/middleware"
	"github.com/keshon/plexody/internal/version"
	"github.com/keshon/plexody/pkg/cmd"
)

type HelpCommand struct{}

func (c *HelpCommand) Name() string             { return "help" }
func (c *HelpCommand) Description() string      { return "Get a list of available commands" }
func (c *HelpCommand) Group() string            { return "core" }
func (c *HelpCommand) Category() string         { return "🕯️ Information" }
func (c *HelpCommand) UserPermissions() []int64 { return []int64{} }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *HelpCommand) Run(ctx interface{}) error {
	sctx, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}

	embed := &discordgo.MessageEmbed{
		Title:       version.AppName + " Help",
		Description: buildHelpByCategory(),
		Color:       bot.EmbedColor,
	}
	return bot.RespondEmbedEphemeral(sctx.Session, sctx.Event, embed)
}

// buildHelpByCategory lists every registered command grouped by its
// category, ordered by the configured category weights.
func buildHelpByCategory() string {
	all := command.AllCommands()

	categories := make(map[string][]cmd.Command)
	for _, c := range all {
		cat := ""
		if meta, ok := cmd.Root(c).(command.DiscordMeta); ok {
			cat = meta.Category()
		}
		categories[cat] = append(categories[cat], c)
	}

	names := make([]string, 0, len(categories))
	for cat := range categories {
		names = append(names, cat)
	}
	sort.Slice(names, func(i, j int) bool {
		wi, wj := config.CategoryWeights[names[i]], config.CategoryWeights[names[j]]
		if wi == wj {
			return names[i] < names[j]
		}
		return wi < wj
	})

	var sb strings.Builder
	for _, cat := range names {
		if cat != "" {
			sb.WriteString(fmt.Sprintf("**%s**\n", cat))
		}
		cmds := categories[cat]
		sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name() < cmds[j].Name() })
		for _, c := range cmds {
			sb.WriteString(fmt.Sprintf("`/%s` - %s\n", c.Name(), c.Description()))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func init() {
	command.RegisterCommand(
		&HelpCommand{},
		middleware.WithGuildOnly(),
		middleware.WithUserPermissionCheck(),
		middleware.WithCommandLogger(),
		middleware.WithMetrics(),
	)
}
