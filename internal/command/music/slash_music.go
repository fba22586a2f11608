// Package music implements the /music slash command and its transport
// buttons. The command layer never touches voice or the queue directly;
// everything goes through the session owned by the bot.
package music

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/plexody/internal/bot"
	"github.com/keshon/plexody/internal/command"
	"github.com/keshon/plexody/internal/music/resolver"
	"github.com/keshon/plexody/internal/music/session"
	"github.com/keshon/plexody/internal/music/track"
)

const resolveTimeout = 30 * time.Second

type MusicCommand struct {
	Bot bot.Voice
}

func (c *MusicCommand) Name() string             { return "music" }
func (c *MusicCommand) Description() string      { return "Play music from Plex, YouTube or direct streams" }
func (c *MusicCommand) Group() string            { return "music" }
func (c *MusicCommand) Category() string         { return "🎵 Music" }
func (c *MusicCommand) UserPermissions() []int64 { return []int64{} }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play a track, album, artist or link",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "input",
						Description: "Link or search query (prefix with album:, artist: or playlist: to import)",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "source",
						Description: "Force a source instead of autodetect",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "Plex", Value: track.SourcePlex},
							{Name: "YouTube", Value: track.SourceYouTube},
							{Name: "Direct stream", Value: track.SourceStream},
						},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "playlist",
				Description: "Queue a Plex playlist by name",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "name",
						Description: "Playlist name",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "pause",
				Description: "Pause playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "resume",
				Description: "Resume paused playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop playback, clear the queue and leave",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show the current queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "page",
						Description: "Page number",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "shuffle",
				Description: "Shuffle the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a track from the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "position",
						Description: "Queue position, as shown by /music queue",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "clear",
				Description: "Clear the queue without stopping the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "history",
				Description: "Show recently played tracks",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "now",
				Description: "Show the currently playing track",
			},
		},
	}
}

func (c *MusicCommand) Run(ctx interface{}) error {
	sctx, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}

	s := sctx.Session
	e := sctx.Event

	if len(e.ApplicationCommandData().Options) == 0 {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: "Missing subcommand.",
		})
	}

	sub := e.ApplicationCommandData().Options[0]

	switch sub.Name {
	case "play":
		var input, source string
		for _, opt := range sub.Options {
			switch opt.Name {
			case "input":
				input = opt.StringValue()
			case "source":
				source = opt.StringValue()
			}
		}
		return c.runPlay(sctx, input, source)

	case "playlist":
		var name string
		for _, opt := range sub.Options {
			if opt.Name == "name" {
				name = opt.StringValue()
			}
		}
		return c.runPlaylist(sctx, name)

	case "skip":
		return c.runSkip(s, e)

	case "pause":
		return c.runPause(s, e)

	case "resume":
		return c.runResume(s, e)

	case "stop":
		return c.runStop(s, e)

	case "queue":
		page := 1
		for _, opt := range sub.Options {
			if opt.Name == "page" {
				page = int(opt.IntValue())
			}
		}
		return c.runQueue(s, e, page)

	case "shuffle":
		return c.runShuffle(s, e)

	case "remove":
		position := 0
		for _, opt := range sub.Options {
			if opt.Name == "position" {
				position = int(opt.IntValue())
			}
		}
		return c.runRemove(s, e, position)

	case "clear":
		return c.runClear(s, e)

	case "history":
		return c.runHistory(sctx)

	case "now":
		return c.runNow(s, e)

	default:
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("Unknown subcommand: %s", sub.Name),
		})
	}
}

func (c *MusicCommand) runPlay(sctx *command.SlashInteractionContext, input, source string) error {
	s, e := sctx.Session, sctx.Event

	if input == "" {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Error",
			Description: "Input is required.",
		})
	}

	if err := bot.RespondDeferred(s, e); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	vs, err := c.Bot.FindUserVoiceState(e.GuildID, e.Member.User.ID)
	if err != nil {
		bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Voice Error",
			Description: "Join a voice channel first.",
		})
		return nil
	}

	// Remember where the request came from so playback announcements
	// land in the same text channel.
	_ = sctx.Storage.SetMusicChannel(e.GuildID, e.ChannelID)
	_ = sctx.Storage.SetLastVoiceChannel(e.GuildID, vs.ChannelID)

	rctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	var res *resolver.Result
	if source != "" {
		res, err = c.Bot.Resolver().ResolveFrom(rctx, source, input)
	} else {
		res, err = c.Bot.Resolver().Resolve(rctx, input)
	}
	if err != nil {
		bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Error",
			Description: resolveErrMessage(err, input),
		})
		return nil
	}

	return c.deliver(sctx, vs.ChannelID, res)
}

func (c *MusicCommand) runPlaylist(sctx *command.SlashInteractionContext, name string) error {
	s, e := sctx.Session, sctx.Event

	if c.Bot.Plex() == nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: "No Plex server is configured.",
		})
	}
	if name == "" {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: "Playlist name is required.",
		})
	}

	if err := bot.RespondDeferred(s, e); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	vs, err := c.Bot.FindUserVoiceState(e.GuildID, e.Member.User.ID)
	if err != nil {
		bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Voice Error",
			Description: "Join a voice channel first.",
		})
		return nil
	}

	_ = sctx.Storage.SetMusicChannel(e.GuildID, e.ChannelID)
	_ = sctx.Storage.SetLastVoiceChannel(e.GuildID, vs.ChannelID)

	rctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	res, err := c.Bot.Resolver().ResolveFrom(rctx, track.SourcePlex, "playlist:"+name)
	if err != nil {
		bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Error",
			Description: resolveErrMessage(err, name),
		})
		return nil
	}

	return c.deliver(sctx, vs.ChannelID, res)
}

// deliver hands a resolver result to the guild session: plain tracks go
// straight into the queue, imports start a background fetch behind a
// placeholder.
func (c *MusicCommand) deliver(sctx *command.SlashInteractionContext, voiceChannelID string, res *resolver.Result) error {
	s, e := sctx.Session, sctx.Event
	sess := c.Bot.GetOrCreateSession(e.GuildID)

	if res.Import != nil {
		r, err := c.Bot.Importer().Launch(sess, voiceChannelID, res.Import)
		if err != nil {
			bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
				Title:       "🎵 Queue Error",
				Description: sessionErrMessage(err),
			})
			return nil
		}
		bot.FollowupEmbed(s, e, &discordgo.MessageEmbed{
			Title:       "📥 Import Started",
			Description: fmt.Sprintf("%s holds position %d. Tracks are fetched in the background.", res.Import.Placeholder.Title, r.Position),
			Color:       bot.EmbedColor,
		})
		return nil
	}

	r, err := sess.Enqueue(voiceChannelID, res.Tracks...)
	if err != nil {
		bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Queue Error",
			Description: sessionErrMessage(err),
		})
		return nil
	}

	bot.FollowupEmbed(s, e, enqueueReceipt(res.Tracks, r))
	return nil
}

func enqueueReceipt(tracks []track.Descriptor, r session.EnqueueResult) *discordgo.MessageEmbed {
	first := tracks[0]
	switch {
	case r.Started && len(tracks) == 1:
		return &discordgo.MessageEmbed{
			Description: fmt.Sprintf("▶️ Starting **%s**", first.DisplayTitle()),
			Color:       bot.EmbedColor,
		}
	case r.Started:
		return &discordgo.MessageEmbed{
			Description: fmt.Sprintf("▶️ Starting **%s**, %d more queued", first.DisplayTitle(), r.Queued),
			Color:       bot.EmbedColor,
		}
	case len(tracks) == 1:
		return &discordgo.MessageEmbed{
			Description: fmt.Sprintf("➕ Added **%s** to the queue (position %d)", first.DisplayTitle(), r.Position),
			Color:       bot.EmbedColor,
		}
	default:
		return &discordgo.MessageEmbed{
			Description: fmt.Sprintf("➕ Added %d tracks to the queue", r.Queued),
			Color:       bot.EmbedColor,
		}
	}
}

func (c *MusicCommand) runSkip(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	sess, ok := c.Bot.Session(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Nothing is playing."})
	}
	if err := sess.Skip(); err != nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: sessionErrMessage(err)})
	}
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{Description: "⏭️ Skipped.", Color: bot.EmbedColor})
}

func (c *MusicCommand) runPause(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	sess, ok := c.Bot.Session(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Nothing is playing."})
	}
	if err := sess.Pause(); err != nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: sessionErrMessage(err)})
	}
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{Description: "⏸️ Paused.", Color: bot.EmbedColor})
}

func (c *MusicCommand) runResume(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	sess, ok := c.Bot.Session(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Nothing is playing."})
	}
	if err := sess.Resume(); err != nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: sessionErrMessage(err)})
	}
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{Description: "▶️ Resumed.", Color: bot.EmbedColor})
}

func (c *MusicCommand) runStop(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	sess, ok := c.Bot.Session(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Nothing is playing."})
	}
	sess.Kill(session.ReasonKilled)
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: "⏹️ Playback stopped. Queue cleared.",
		Color:       bot.EmbedColor,
	})
}

func (c *MusicCommand) runQueue(s *discordgo.Session, e *discordgo.InteractionCreate, page int) error {
	sess, ok := c.Bot.Session(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "❌ There are no songs in the queue."})
	}

	st := sess.Status()
	if st.Current == nil && len(st.Queue) == 0 {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "❌ There are no songs in the queue."})
	}

	numPages := QueuePages(st)
	if page < 1 || page > numPages {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("❌ Invalid page number. The queue has %d page(s).", numPages),
		})
	}

	embed, _ := QueueEmbed(st, page)
	return bot.RespondEmbedComponents(s, e, embed, []discordgo.MessageComponent{QueuePagingRow(page)})
}

func (c *MusicCommand) runShuffle(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	sess, ok := c.Bot.Session(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Nothing is playing."})
	}
	n, err := sess.Shuffle()
	if err != nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: sessionErrMessage(err)})
	}
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("🔀 Shuffled %d track(s).", n),
		Color:       bot.EmbedColor,
	})
}

func (c *MusicCommand) runRemove(s *discordgo.Session, e *discordgo.InteractionCreate, position int) error {
	sess, ok := c.Bot.Session(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Nothing is playing."})
	}
	removed, err := sess.Remove(position)
	if err != nil {
		if errors.Is(err, track.ErrBadPosition) {
			return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
				Description: fmt.Sprintf("❌ No track at position %d.", position),
			})
		}
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: sessionErrMessage(err)})
	}
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("🗑️ Removed **%s** from the queue.", removed.DisplayTitle()),
		Color:       bot.EmbedColor,
	})
}

func (c *MusicCommand) runClear(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	sess, ok := c.Bot.Session(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Nothing is playing."})
	}
	n, err := sess.Clear()
	if err != nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: sessionErrMessage(err)})
	}
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("🗑️ Cleared %d track(s) from the queue.", n),
		Color:       bot.EmbedColor,
	})
}

func (c *MusicCommand) runHistory(sctx *command.SlashInteractionContext) error {
	s, e := sctx.Session, sctx.Event

	recs, err := sctx.Storage.FetchTracksHistory(e.GuildID)
	if err != nil {
		return fmt.Errorf("failed to fetch track history: %w", err)
	}
	if len(recs) == 0 {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "No playback history yet."})
	}

	var sb strings.Builder
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		line := rec.Title
		if rec.Artist != "" {
			line += " — " + rec.Artist
		}
		line += durationSuffix(rec.Duration)
		fmt.Fprintf(&sb, "`%s` %s\n", rec.PlayedAt.Format("02 Jan 15:04"), line)
	}

	return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
		Title:       "🕰️ Recently Played",
		Description: sb.String(),
		Color:       bot.EmbedColor,
	})
}

func (c *MusicCommand) runNow(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	sess, ok := c.Bot.Session(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Nothing is playing."})
	}
	st := sess.Status()
	if st.Current == nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Nothing is playing."})
	}
	embed := NowPlayingEmbed(*st.Current, st.State == session.StatePaused)
	return bot.RespondEmbedComponents(s, e, embed, []discordgo.MessageComponent{TransportRow()})
}

// Component handles the transport buttons and queue paging. Custom IDs
// are music_<action>_button, or music_queue_<dir>:<page> for paging.
func (c *MusicCommand) Component(cctx *command.ComponentInteractionContext) error {
	s, e := cctx.Session, cctx.Event
	customID := e.MessageComponentData().CustomID

	if strings.HasPrefix(customID, "music_queue_") {
		return c.queuePage(s, e, customID)
	}

	sess, ok := c.Bot.Session(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Nothing is playing."})
	}

	switch customID {
	case "music_pause_button":
		if err := sess.Pause(); err != nil {
			return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: sessionErrMessage(err)})
		}
		return c.refreshNowPlaying(s, e, sess)

	case "music_play_button":
		if err := sess.Resume(); err != nil {
			return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: sessionErrMessage(err)})
		}
		return c.refreshNowPlaying(s, e, sess)

	case "music_skip_button":
		if err := sess.Skip(); err != nil {
			return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: sessionErrMessage(err)})
		}
		// The next track announcement replaces this embed.
		return bot.RespondAck(s, e)

	case "music_shuffle_button":
		n, err := sess.Shuffle()
		if err != nil {
			return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: sessionErrMessage(err)})
		}
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("🔀 Shuffled %d track(s).", n),
		})

	case "music_kill_button":
		sess.Kill(session.ReasonKilled)
		return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{
			Description: "⏹️ Playback stopped. Queue cleared, leaving the channel.",
			Color:       bot.EmbedColor,
		})

	default:
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Unknown button."})
	}
}

// refreshNowPlaying repaints the message the button lives on so the
// title flips between playing and paused.
func (c *MusicCommand) refreshNowPlaying(s *discordgo.Session, e *discordgo.InteractionCreate, sess *session.Session) error {
	st := sess.Status()
	if st.Current == nil {
		return bot.RespondAck(s, e)
	}
	embed := NowPlayingEmbed(*st.Current, st.State == session.StatePaused)
	return bot.RespondUpdate(s, e, embed, []discordgo.MessageComponent{TransportRow()})
}

func (c *MusicCommand) queuePage(s *discordgo.Session, e *discordgo.InteractionCreate, customID string) error {
	sess, ok := c.Bot.Session(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "❌ There are no songs in the queue."})
	}

	action, pageStr, found := strings.Cut(customID, ":")
	if !found {
		return bot.RespondAck(s, e)
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil {
		return bot.RespondAck(s, e)
	}

	if strings.HasSuffix(action, "_next") {
		page++
	} else {
		page--
	}

	st := sess.Status()
	numPages := QueuePages(st)
	if page < 1 {
		page = 1
	}
	if page > numPages {
		page = numPages
	}

	embed, _ := QueueEmbed(st, page)
	return bot.RespondUpdate(s, e, embed, []discordgo.MessageComponent{QueuePagingRow(page)})
}

// sessionErrMessage renders session and queue errors in user terms.
func sessionErrMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNothingPlaying):
		return "Nothing is playing."
	case errors.Is(err, session.ErrAlreadyPaused):
		return "Playback is already paused."
	case errors.Is(err, session.ErrNotPaused):
		return "Playback is not paused."
	case errors.Is(err, session.ErrSessionClosed):
		return "The player already left the voice channel."
	case errors.Is(err, track.ErrQueueFull):
		return "The queue is full."
	default:
		return err.Error()
	}
}

// resolveErrMessage renders resolver errors in user terms.
func resolveErrMessage(err error, input string) string {
	switch {
	case errors.Is(err, track.ErrNotFound):
		return fmt.Sprintf("Nothing found for **%s**.", input)
	case errors.Is(err, track.ErrRateLimited):
		return "The source is rate limiting requests. Try again in a moment."
	case errors.Is(err, track.ErrTimeout):
		return fmt.Sprintf("Timed out while resolving **%s**.", input)
	case errors.Is(err, track.ErrUnplayable):
		return fmt.Sprintf("**%s** cannot be played.", input)
	default:
		return fmt.Sprintf("Failed to resolve track: %v", err)
	}
}
