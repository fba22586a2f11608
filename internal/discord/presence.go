package discord

import (
	"context"
	"time"

	"github.com/keshon/plexody/internal/music/session"
)

const presenceInterval = 15 * time.Second

// runPresenceLoop advertises what the bot is doing. While any guild is
// playing, the presence shows that track; otherwise it points at /play.
func (b *Bot) runPresenceLoop(ctx context.Context) {
	ticker := time.NewTicker(presenceInterval)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := b.presenceText()
			if next == last {
				continue
			}
			if err := b.dg.UpdateListeningStatus(next); err != nil {
				b.log.Debug().Err(err).Msg("failed to update presence")
				continue
			}
			last = next
		}
	}
}

func (b *Bot) presenceText() string {
	return presenceFor(b.sessions.Statuses())
}

// presenceFor picks one currently playing track across all guilds, or
// the /play hint when the bot sits idle everywhere.
func presenceFor(statuses []session.Status) string {
	for _, st := range statuses {
		if st.Current == nil || st.Current.Placeholder {
			continue
		}
		if st.State == session.StatePlaying {
			return st.Current.DisplayTitle()
		}
	}
	return "/play"
}
