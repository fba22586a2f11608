package middleware

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/plexody/internal/command"
	"github.com/keshon/plexody/internal/metrics"
	"github.com/keshon/plexody/internal/storage"
	"github.com/keshon/plexody/pkg/cmd"
)

type countingCmd struct {
	name string
	runs int
	err  error
}

func (c *countingCmd) Name() string        { return c.name }
func (c *countingCmd) Description() string { return "test command" }

func (c *countingCmd) Run(_ context.Context, _ *cmd.Invocation) error {
	c.runs++
	return c.err
}

func slashInvocation(guildID string, args ...string) *cmd.Invocation {
	sctx := &command.SlashInteractionContext{
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: guildID,
		}},
		Args: args,
	}
	return &cmd.Invocation{Args: args, Data: sctx}
}

func componentInvocation(guildID string) *cmd.Invocation {
	cctx := &command.ComponentInteractionContext{
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionMessageComponent,
			GuildID: guildID,
		}},
	}
	return &cmd.Invocation{Data: cctx}
}

func TestWithGuildOnlyDropsDMs(t *testing.T) {
	base := &countingCmd{name: "music"}
	wrapped := cmd.Apply(base, WithGuildOnly())

	require.NoError(t, wrapped.Run(context.Background(), slashInvocation("")))
	assert.Equal(t, 0, base.runs, "DM slash invocation must not run")

	require.NoError(t, wrapped.Run(context.Background(), componentInvocation("")))
	assert.Equal(t, 0, base.runs, "DM component invocation must not run")

	require.NoError(t, wrapped.Run(context.Background(), slashInvocation("g1")))
	assert.Equal(t, 1, base.runs)

	require.NoError(t, wrapped.Run(context.Background(), componentInvocation("g1")))
	assert.Equal(t, 2, base.runs)

	// Invocations without a Discord context pass through.
	require.NoError(t, wrapped.Run(context.Background(), &cmd.Invocation{}))
	assert.Equal(t, 3, base.runs)
}

func TestWithUserPermissionCheckSkipsOpenCommands(t *testing.T) {
	// No Member on the interaction means nothing to check.
	base := &countingCmd{name: "music"}
	wrapped := cmd.Apply(base, WithUserPermissionCheck())
	require.NoError(t, wrapped.Run(context.Background(), slashInvocation("g1")))
	assert.Equal(t, 1, base.runs)

	// Commands that declare no permissions stay open even with a member.
	inv := slashInvocation("g1")
	inv.Data.(*command.SlashInteractionContext).Event.Member = &discordgo.Member{
		User: &discordgo.User{ID: "u1", Username: "alice"},
	}
	require.NoError(t, wrapped.Run(context.Background(), inv))
	assert.Equal(t, 2, base.runs)
}

func TestWithMetricsCountsOutcomes(t *testing.T) {
	ok := &countingCmd{name: "mw_test_ok"}
	require.NoError(t, cmd.Apply(ok, WithMetrics()).Run(context.Background(), &cmd.Invocation{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CommandsHandled.WithLabelValues("mw_test_ok", "ok")))

	boom := &countingCmd{name: "mw_test_err", err: errors.New("boom")}
	require.Error(t, cmd.Apply(boom, WithMetrics()).Run(context.Background(), &cmd.Invocation{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CommandsHandled.WithLabelValues("mw_test_err", "error")))
}

func TestWithCommandLoggerRecordsHistory(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "storage.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	st := discordgo.NewState()
	require.NoError(t, st.GuildAdd(&discordgo.Guild{ID: "g1", Name: "Guild"}))
	require.NoError(t, st.ChannelAdd(&discordgo.Channel{
		ID: "c1", GuildID: "g1", Name: "general", Type: discordgo.ChannelTypeGuildText,
	}))
	sess := &discordgo.Session{State: st}

	base := &countingCmd{name: "music"}
	wrapped := cmd.Apply(base, WithCommandLogger())

	sctx := &command.SlashInteractionContext{
		Session: sess,
		Storage: store,
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   "g1",
			ChannelID: "c1",
			Member:    &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "alice"}},
		}},
		Args: []string{"play", "daft punk"},
	}
	require.NoError(t, wrapped.Run(context.Background(), &cmd.Invocation{Args: sctx.Args, Data: sctx}))
	assert.Equal(t, 1, base.runs)

	recs, err := store.FetchCommandHistory("g1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "music", recs[0].Command)
	assert.Equal(t, "play daft punk", recs[0].Param)
	assert.Equal(t, "alice", recs[0].Username)
	assert.Equal(t, "general", recs[0].ChannelName)
	assert.Equal(t, "Guild", recs[0].GuildName)
}
