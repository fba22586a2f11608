package core

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/plexody/internal/bot"
	"github.com/keshon/plexody/internal/catalog/plex"
	"github.com/keshon/plexody/internal/command"
	"github.com/keshon/plexody/pkg/util"
)

// Discord caps a select menu at 25 options.
const maxPlaylistOptions = 25

const playlistFetchTimeout = 30 * time.Second

// PlaylistsCommand lists the Plex server's playlists in a dropdown;
// picking one queues it as a background import.
type PlaylistsCommand struct {
	Bot bot.Voice
}

func (c *PlaylistsCommand) Name() string             { return "playlists" }
func (c *PlaylistsCommand) Description() string      { return "Browse Plex playlists and pick one to play" }
func (c *PlaylistsCommand) Group() string            { return "music" }
func (c *PlaylistsCommand) Category() string         { return "🎵 Music" }
func (c *PlaylistsCommand) UserPermissions() []int64 { return []int64{} }

func (c *PlaylistsCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *PlaylistsCommand) Run(ctx interface{}) error {
	sctx, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}

	s, e := sctx.Session, sctx.Event

	plexSrc := c.Bot.Plex()
	if plexSrc == nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: "No Plex server is configured.",
		})
	}

	if err := bot.RespondDeferred(s, e); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	fctx, cancel := context.WithTimeout(context.Background(), playlistFetchTimeout)
	defer cancel()

	lists, err := plexSrc.Playlists(fctx)
	if err != nil {
		bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("🚫 Failed to fetch playlists: %v", err),
		})
		return nil
	}
	if len(lists) == 0 {
		bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: "The Plex server has no playlists.",
		})
		return nil
	}
	if len(lists) > maxPlaylistOptions {
		lists = lists[:maxPlaylistOptions]
	}

	options := make([]discordgo.SelectMenuOption, 0, len(lists))
	for _, pl := range lists {
		options = append(options, discordgo.SelectMenuOption{
			Label:       pl.Title,
			Value:       pl.RatingKey,
			Description: playlistBlurb(pl),
		})
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎵 Select a Playlist",
		Description: "Choose a playlist from the dropdown menu below to start playing.",
		Color:       bot.EmbedColor,
	}
	_, err = s.FollowupMessageCreate(e.Interaction, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    "playlists_pick",
					Placeholder: "Pick a playlist",
					Options:     options,
				},
			}},
		},
	})
	return err
}

// Component handles the dropdown pick: the selected value is the
// playlist rating key.
func (c *PlaylistsCommand) Component(cctx *command.ComponentInteractionContext) error {
	s, e := cctx.Session, cctx.Event

	values := e.MessageComponentData().Values
	if len(values) == 0 {
		return bot.RespondAck(s, e)
	}
	ratingKey := values[0]

	plexSrc := c.Bot.Plex()
	if plexSrc == nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: "No Plex server is configured.",
		})
	}

	vs, err := c.Bot.FindUserVoiceState(e.GuildID, e.Member.User.ID)
	if err != nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: "Join a voice channel first.",
		})
	}

	fctx, cancel := context.WithTimeout(context.Background(), playlistFetchTimeout)
	defer cancel()

	lists, err := plexSrc.Playlists(fctx)
	if err != nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("🚫 Failed to fetch playlists: %v", err),
		})
	}

	var picked *plex.Playlist
	for i := range lists {
		if lists[i].RatingKey == ratingKey {
			picked = &lists[i]
			break
		}
	}
	if picked == nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: "That playlist no longer exists on the server.",
		})
	}

	_ = cctx.Storage.SetMusicChannel(e.GuildID, e.ChannelID)
	_ = cctx.Storage.SetLastVoiceChannel(e.GuildID, vs.ChannelID)

	sess := c.Bot.GetOrCreateSession(e.GuildID)
	plan := plexSrc.PlaylistImport(*picked)
	r, err := c.Bot.Importer().Launch(sess, vs.ChannelID, plan)
	if err != nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("🚫 Failed to queue playlist: %v", err),
		})
	}

	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("📥 **%s** holds position %d. Tracks are fetched in the background.", picked.Title, r.Position),
		Color:       bot.EmbedColor,
	})
}

func playlistBlurb(pl plex.Playlist) string {
	blurb := fmt.Sprintf("%d tracks", pl.LeafCount)
	if d := util.FormatTrackDuration(time.Duration(pl.Duration) * time.Millisecond); d != "" {
		blurb += " · " + d
	}
	return blurb
}
