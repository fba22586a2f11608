// Package sink turns track locators into Opus frames on a Discord
// voice connection. One Discord sink serves one guild; the playback
// session drives it and owns all sequencing.
package sink

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/plexody/internal/logging"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// Discord streams audio into a guild's voice channel over discordgo.
type Discord struct {
	dg      *discordgo.Session
	guildID string
	log     zerolog.Logger

	mu     sync.Mutex
	vc     *discordgo.VoiceConnection
	active *voiceStream
}

// NewDiscord creates a sink for one guild.
func NewDiscord(dg *discordgo.Session, guildID string) *Discord {
	return &Discord{
		dg:      dg,
		guildID: guildID,
		log:     logging.WithComponent("sink").With().Str("guild", guildID).Logger(),
	}
}

// Connect joins the voice channel, reusing a live connection that is
// already there.
func (d *Discord) Connect(channelID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.vc != nil && d.vc.ChannelID == channelID && d.vc.Ready {
		return nil
	}
	vc, err := d.dg.ChannelVoiceJoin(d.guildID, channelID, false, true)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}
	d.vc = vc
	d.log.Debug().Str("channel", channelID).Msg("voice connected")
	return nil
}

// Disconnect leaves the voice channel. A failed disconnect is retried
// once after a short beat; the error from the retry is the caller's to
// judge.
func (d *Discord) Disconnect() error {
	d.mu.Lock()
	vc := d.vc
	d.vc = nil
	stream := d.active
	d.active = nil
	d.mu.Unlock()

	if stream != nil {
		stream.stop()
	}
	if vc == nil {
		return nil
	}
	if err := vc.Disconnect(); err != nil {
		d.log.Warn().Err(err).Msg("voice disconnect failed, retrying")
		time.Sleep(250 * time.Millisecond)
		if err := vc.Disconnect(); err != nil {
			return fmt.Errorf("failed to leave voice channel: %w", err)
		}
	}
	return nil
}

// Start opens the locator through ffmpeg and begins streaming. onDone
// fires exactly once after a nil return: on natural end, on a broken
// stream, or after Stop.
func (d *Discord) Start(locator string, onDone func(error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return errors.New("not connected to a voice channel")
	}
	if d.active != nil {
		d.active.stop()
		d.active = nil
	}

	pcm, cleanup, err := openPCMStream(locator)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	stream := newVoiceStream(cleanup, onDone)
	d.active = stream
	go stream.run(d.vc, pcm)
	return nil
}

// Stop cuts the current track, if any.
func (d *Discord) Stop() {
	d.mu.Lock()
	stream := d.active
	d.active = nil
	d.mu.Unlock()
	if stream != nil {
		stream.stop()
	}
}

// Pause suspends the Opus feed without closing the stream.
func (d *Discord) Pause() {
	d.mu.Lock()
	stream := d.active
	d.mu.Unlock()
	if stream != nil {
		stream.pause()
	}
}

// Resume continues a paused feed.
func (d *Discord) Resume() {
	d.mu.Lock()
	stream := d.active
	d.mu.Unlock()
	if stream != nil {
		stream.resume()
	}
}

// IsActive reports whether a track is currently streaming or paused.
func (d *Discord) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active != nil && !d.active.isStopped()
}
