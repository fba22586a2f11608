package session

import "github.com/keshon/plexody/internal/music/track"

// DisconnectReason explains why a session left its voice channel.
type DisconnectReason string

const (
	ReasonIdleTimeout   DisconnectReason = "idle_timeout"
	ReasonEmptyChannel  DisconnectReason = "empty_channel"
	ReasonKilled        DisconnectReason = "killed"
	ReasonConnectFailed DisconnectReason = "connect_failed"
)

// Notifier receives playback lifecycle events. Methods are invoked from
// the session's command loop and must return quickly; implementations
// that talk to the network hand the event off to their own worker.
// They must never call back into the session.
type Notifier interface {
	TrackStarted(guildID string, t track.Descriptor)
	TrackEnqueued(guildID string, t track.Descriptor, position int)
	TrackFailed(guildID string, t track.Descriptor, cause error)
	QueueCleared(guildID string)
	SessionDisconnected(guildID string, reason DisconnectReason)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) TrackStarted(string, track.Descriptor)        {}
func (NopNotifier) TrackEnqueued(string, track.Descriptor, int)  {}
func (NopNotifier) TrackFailed(string, track.Descriptor, error)  {}
func (NopNotifier) QueueCleared(string)                          {}
func (NopNotifier) SessionDisconnected(string, DisconnectReason) {}
