package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/plexody/internal/bot"
)

var errNotInVoice = errors.New("user is not in a voice channel")

// FindUserVoiceState locates the voice channel the user currently sits
// in, from the gateway state cache.
func (b *Bot) FindUserVoiceState(guildID, userID string) (*bot.VoiceState, error) {
	g, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("guild %s not in state: %w", guildID, err)
	}
	for _, vs := range g.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return &bot.VoiceState{UserID: userID, ChannelID: vs.ChannelID}, nil
		}
	}
	return nil, errNotInVoice
}

// onVoiceStateUpdate recounts the listeners around a live session
// whenever anyone joins, leaves or moves. The session kills itself once
// the count stays at zero.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	sess, ok := b.sessions.Get(e.GuildID)
	if !ok {
		return
	}
	channelID := sess.Status().ChannelID
	if channelID == "" {
		return
	}

	// Only join/leave/move events touching the session's channel can
	// change the count.
	if e.ChannelID != channelID && (e.BeforeUpdate == nil || e.BeforeUpdate.ChannelID != channelID) {
		return
	}

	sess.ParticipantsChanged(b.countListeners(s, e.GuildID, channelID))
}

// countListeners counts members in the channel besides the bot itself.
// Other bots are excluded when the member cache knows them.
func (b *Bot) countListeners(s *discordgo.Session, guildID, channelID string) int {
	g, err := s.State.Guild(guildID)
	if err != nil {
		return 0
	}

	var botID string
	if s.State.User != nil {
		botID = s.State.User.ID
	}

	count := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != channelID || vs.UserID == botID {
			continue
		}
		if m, err := s.State.Member(guildID, vs.UserID); err == nil && m.User != nil && m.User.Bot {
			continue
		}
		count++
	}
	return count
}
