package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/plexody/internal/bot"
	"github.com/keshon/plexody/internal/command/music"
	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/internal/music/session"
	"github.com/keshon/plexody/internal/music/track"
	"github.com/keshon/plexody/internal/storage"
)

// Notifier turns session events into messages in the guild's music
// channel. Session loops must never block on Discord REST calls, so
// events are handed to a single worker goroutine; the worker also keeps
// the delete-then-repost of the now-playing embed in order.
type Notifier struct {
	dg    *discordgo.Session
	store *storage.Storage
	jobs  chan func()
	log   zerolog.Logger
}

func NewNotifier(dg *discordgo.Session, store *storage.Storage) *Notifier {
	n := &Notifier{
		dg:    dg,
		store: store,
		jobs:  make(chan func(), 64),
		log:   logging.WithComponent("notifier"),
	}
	go n.run()
	return n
}

func (n *Notifier) run() {
	for fn := range n.jobs {
		fn()
	}
}

func (n *Notifier) submit(fn func()) {
	select {
	case n.jobs <- fn:
	default:
		n.log.Warn().Msg("notifier queue full, dropping event")
	}
}

// TrackStarted replaces the guild's now-playing embed and records the
// track in the playback history.
func (n *Notifier) TrackStarted(guildID string, t track.Descriptor) {
	n.submit(func() {
		n.repostNowPlaying(guildID, t)

		err := n.store.AppendTrackToHistory(guildID, storage.TrackHistoryRecord{
			Title:    t.Title,
			Artist:   t.Artist,
			Source:   t.Source,
			Duration: t.Duration,
			PlayedAt: time.Now(),
		})
		if err != nil {
			n.log.Warn().Err(err).Str("guild", guildID).Msg("failed to record track history")
		}
	})
}

// TrackEnqueued is only logged: the interaction that queued the track
// already posted a receipt.
func (n *Notifier) TrackEnqueued(guildID string, t track.Descriptor, position int) {
	n.log.Debug().Str("guild", guildID).Str("track", t.DisplayTitle()).Int("position", position).Msg("track enqueued")
}

// TrackFailed announces a track the player had to skip.
func (n *Notifier) TrackFailed(guildID string, t track.Descriptor, cause error) {
	n.submit(func() {
		n.postEmbed(guildID, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("⚠️ **%s** failed: %v", t.DisplayTitle(), cause),
			Color:       bot.EmbedColor,
		})
	})
}

// QueueCleared is only logged, for the same reason as TrackEnqueued.
func (n *Notifier) QueueCleared(guildID string) {
	n.log.Debug().Str("guild", guildID).Msg("queue cleared")
}

// SessionDisconnected cleans up the now-playing embed and, for exits
// the user did not ask for, says why the bot left.
func (n *Notifier) SessionDisconnected(guildID string, reason session.DisconnectReason) {
	n.submit(func() {
		n.deleteNowPlaying(guildID)

		var text string
		switch reason {
		case session.ReasonIdleTimeout:
			text = "⏰ Nothing played for a while, leaving the voice channel."
		case session.ReasonEmptyChannel:
			text = "👋 Voice channel is empty, leaving."
		default:
			// Killed sessions answered an explicit command and failed
			// connects already surfaced in the interaction reply.
			return
		}
		n.postEmbed(guildID, &discordgo.MessageEmbed{
			Description: text,
			Color:       bot.EmbedColor,
		})
	})
}

// repostNowPlaying deletes the previous now-playing message and posts a
// fresh one at the bottom of the channel, remembering its ID.
func (n *Notifier) repostNowPlaying(guildID string, t track.Descriptor) {
	channelID, err := n.store.GetMusicChannel(guildID)
	if err != nil || channelID == "" {
		return
	}

	if old, _ := n.store.GetNowPlayingMessage(guildID); old != "" {
		_ = n.dg.ChannelMessageDelete(channelID, old)
	}

	msg, err := n.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{music.NowPlayingEmbed(t, false)},
		Components: []discordgo.MessageComponent{music.TransportRow()},
	})
	if err != nil {
		n.log.Warn().Err(err).Str("guild", guildID).Msg("failed to post now-playing embed")
		return
	}
	_ = n.store.SetNowPlayingMessage(guildID, msg.ID)
}

func (n *Notifier) deleteNowPlaying(guildID string) {
	channelID, err := n.store.GetMusicChannel(guildID)
	if err != nil || channelID == "" {
		return
	}
	if old, _ := n.store.GetNowPlayingMessage(guildID); old != "" {
		_ = n.dg.ChannelMessageDelete(channelID, old)
		_ = n.store.SetNowPlayingMessage(guildID, "")
	}
}

func (n *Notifier) postEmbed(guildID string, embed *discordgo.MessageEmbed) {
	channelID, err := n.store.GetMusicChannel(guildID)
	if err != nil || channelID == "" {
		return
	}
	if err := bot.MessageEmbed(n.dg, channelID, embed); err != nil {
		n.log.Warn().Err(err).Str("guild", guildID).Msg("failed to post embed")
	}
}
