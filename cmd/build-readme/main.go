// Command build-readme regenerates README.md from the command registry.
// Run it from the repository root after changing command definitions.
package main

import (
	"os"

	"github.com/keshon/plexody/internal/command"
	"github.com/keshon/plexody/internal/command/core"
	"github.com/keshon/plexody/internal/command/music"
	"github.com/keshon/plexody/internal/config"
	"github.com/keshon/plexody/internal/docs"
	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/pkg/cmd"
)

func main() {
	logging.Configure(logging.Config{Level: "info", Service: "build-readme"})

	// Bot-bound commands register when the bot boots; the docs build
	// only reads their definitions, so the playback surface stays nil.
	command.RegisterCommand(&music.MusicCommand{})
	command.RegisterCommand(&core.PlaylistsCommand{})

	if err := docs.UpdateReadme(cmd.DefaultRegistry, config.CategoryWeights); err != nil {
		log := logging.WithComponent("docs")
		log.Error().Err(err).Msg("failed to update README")
		os.Exit(1)
	}
}
