// Package docs regenerates README.md from the live command registry so
// the docs never drift from what the bot actually registers.
package docs

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"text/template"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/plexody/internal/command"
	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/pkg/cmd"
)

// UpdateReadme renders README.md from README.md.tmpl, filling the
// CommandSections slot with one section per category. categoryWeights
// orders the sections, lower weights first.
func UpdateReadme(registry *cmd.Registry, categoryWeights map[string]int) error {
	commands := registry.All()
	sort.Slice(commands, func(i, j int) bool {
		ci, cj := commandCategory(commands[i]), commandCategory(commands[j])
		if categoryWeights[ci] != categoryWeights[cj] {
			return categoryWeights[ci] < categoryWeights[cj]
		}
		return commands[i].Name() < commands[j].Name()
	})

	var buf bytes.Buffer
	current := ""
	for _, c := range commands {
		if cat := commandCategory(c); cat != current {
			if current != "" {
				buf.WriteString("\n")
			}
			current = cat
			fmt.Fprintf(&buf, "### %s\n\n", cat)
		}
		writeCommand(&buf, c)
	}

	tmpl, err := template.ParseFiles("README.md.tmpl")
	if err != nil {
		return err
	}

	f, err := os.Create("README.md")
	if err != nil {
		return err
	}
	defer f.Close()

	data := struct{ CommandSections string }{CommandSections: buf.String()}
	if err := tmpl.Execute(f, data); err != nil {
		return err
	}

	log := logging.WithComponent("docs")
	log.Info().Msg("README.md updated from command registry")
	return nil
}

// writeCommand emits one bullet per invokable surface: grouped commands
// get a line per subcommand, plain commands a single line.
func writeCommand(buf *bytes.Buffer, c cmd.Command) {
	provider, ok := cmd.Root(c).(command.SlashProvider)
	if !ok || provider.SlashDefinition() == nil {
		fmt.Fprintf(buf, "- **/%s** — %s\n", c.Name(), c.Description())
		return
	}
	def := provider.SlashDefinition()
	subs := subcommands(def.Options)
	if len(subs) == 0 {
		fmt.Fprintf(buf, "- **/%s** — %s\n", def.Name, def.Description)
		return
	}
	for _, sub := range subs {
		fmt.Fprintf(buf, "- **/%s %s** — %s\n", def.Name, sub.Name, sub.Description)
	}
}

func subcommands(opts []*discordgo.ApplicationCommandOption) []*discordgo.ApplicationCommandOption {
	var subs []*discordgo.ApplicationCommandOption
	for _, o := range opts {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			subs = append(subs, o)
		}
	}
	return subs
}

func commandCategory(c cmd.Command) string {
	if meta, ok := cmd.Root(c).(command.DiscordMeta); ok {
		return meta.Category()
	}
	return ""
}
