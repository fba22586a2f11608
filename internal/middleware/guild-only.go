// Package middleware provides cmd.Middleware wrappers shared by the
// Discord commands: guild gating, permission checks, history logging
// and metrics.
package middleware

import (
	"context"

	"github.com/keshon/plexody/internal/command"
	"github.com/keshon/plexody/pkg/cmd"
)

// WithGuildOnly drops invocations that arrive outside a guild. Voice
// playback has no meaning in DMs, so the commands simply do not run
// there.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if v, ok := inv.Data.(*command.SlashInteractionContext); ok && v.Event.GuildID == "" {
				return nil
			}
			if v, ok := inv.Data.(*command.ComponentInteractionContext); ok && v.Event.GuildID == "" {
				return nil
			}
			return c.Run(ctx, inv)
		})
	}
}
