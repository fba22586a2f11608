package middleware

import (
	"context"

	"github.com/keshon/plexody/internal/metrics"
	"github.com/keshon/plexody/pkg/cmd"
)

// WithMetrics counts invocations per command and outcome.
func WithMetrics() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			err := c.Run(ctx, inv)
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			metrics.CommandsHandled.WithLabelValues(c.Name(), outcome).Inc()
			return err
		})
	}
}
