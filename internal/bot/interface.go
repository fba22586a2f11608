// Package bot declares the surface command handlers drive: session
// access, voice-state lookups and reply helpers. Commands import this
// package instead of the discord wiring, which keeps the dependency
// arrows pointing one way.
package bot

import (
	"github.com/keshon/plexody/internal/music/resolver"
	"github.com/keshon/plexody/internal/music/session"
)

// VoiceState is where a guild member currently sits.
type VoiceState struct {
	UserID    string
	ChannelID string
}

// Voice is the playback surface of the running bot.
type Voice interface {
	// GetOrCreateSession returns the guild's playback session, creating
	// one when none is live.
	GetOrCreateSession(guildID string) *session.Session

	// Session returns the guild's live session without creating one.
	Session(guildID string) (*session.Session, bool)

	// FindUserVoiceState locates the voice channel the user is in.
	FindUserVoiceState(guildID, userID string) (*VoiceState, error)

	// Resolver routes play queries to their sources.
	Resolver() *resolver.Mux

	// Importer runs deferred bulk fetches.
	Importer() *resolver.Importer

	// Plex exposes the Plex source for playlist browsing; nil when no
	// server is configured.
	Plex() *resolver.PlexSource
}
