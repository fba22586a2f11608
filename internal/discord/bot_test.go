package discord

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/plexody/internal/command"
	"github.com/keshon/plexody/internal/command/music"
	"github.com/keshon/plexody/internal/music/session"
	"github.com/keshon/plexody/internal/music/track"
)

func TestFlattenOptions(t *testing.T) {
	opts := []*discordgo.ApplicationCommandInteractionDataOption{
		{
			Name: "play",
			Type: discordgo.ApplicationCommandOptionSubCommand,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "input", Type: discordgo.ApplicationCommandOptionString, Value: "daft punk"},
				{Name: "source", Type: discordgo.ApplicationCommandOptionString, Value: "plex"},
			},
		},
	}
	assert.Equal(t, []string{"play", "daft punk", "plex"}, flattenOptions(opts))
	assert.Empty(t, flattenOptions(nil))
}

func TestFindComponentCommand(t *testing.T) {
	command.RegisterCommand(&music.MusicCommand{})

	b := &Bot{}

	c := b.findComponentCommand("music_pause_button")
	require.NotNil(t, c)
	assert.Equal(t, "music", c.Name())

	c = b.findComponentCommand("music_queue_next:2")
	require.NotNil(t, c)
	assert.Equal(t, "music", c.Name())

	// about has no component handler, so its prefix claims nothing.
	assert.Nil(t, b.findComponentCommand("about_button"))
	assert.Nil(t, b.findComponentCommand("nonexistent"))
}

func TestPresenceFor(t *testing.T) {
	assert.Equal(t, "/play", presenceFor(nil))

	playing := track.New("Song", "Artist", "loc", track.SourcePlex, time.Minute)
	paused := track.New("Other", "", "loc", track.SourcePlex, time.Minute)
	placeholder := track.NewPlaceholder("Big List", 40)

	statuses := []session.Status{
		{State: session.StatePaused, Current: &paused},
		{State: session.StatePlaying, Current: &placeholder},
		{State: session.StatePlaying, Current: &playing},
	}
	assert.Equal(t, "Artist - Song", presenceFor(statuses))

	assert.Equal(t, "/play", presenceFor([]session.Status{
		{State: session.StatePaused, Current: &paused},
	}))
}
