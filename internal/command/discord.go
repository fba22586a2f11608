// Package command holds the Discord command surface: the adapter that
// puts Discord commands into the universal registry, the typed contexts
// the runtime passes on dispatch, and the commands themselves in the
// subpackages.
package command

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/plexody/internal/storage"
	"github.com/keshon/plexody/pkg/cmd"
)

// Discord-specific contexts (what the runtime passes when executing).

type SlashInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Args    []string
	Storage *storage.Storage
}

type ComponentInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage *storage.Storage
}

// SlashProvider is implemented by commands that register a slash
// definition with Discord.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// ComponentInteractionHandler is implemented by commands that answer
// button and select-menu interactions. Custom IDs are namespaced by
// command name, so dispatch is a prefix match.
type ComponentInteractionHandler interface {
	Component(*ComponentInteractionContext) error
}

// DiscordMeta exposes Group/Category/Permissions to middleware and the
// help builders without depending on the concrete command type.
type DiscordMeta interface {
	Group() string
	Category() string
	UserPermissions() []int64
}

// DiscordCommand is what individual Discord commands implement. Run
// takes interface{} because the runtime passes one of the typed
// contexts above depending on how the interaction arrived.
type DiscordCommand interface {
	Name() string
	Description() string
	Group() string
	Category() string
	UserPermissions() []int64
	Run(ctx interface{}) error
}

// DiscordAdapter adapts a DiscordCommand to cmd.Command so it can live
// in the universal registry. It passes SlashProvider,
// ComponentInteractionHandler and DiscordMeta through to the inner
// command.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string { return a.Cmd.Name() }

func (a *DiscordAdapter) Description() string { return a.Cmd.Description() }

func (a *DiscordAdapter) Group() string { return a.Cmd.Group() }

func (a *DiscordAdapter) Category() string { return a.Cmd.Category() }

func (a *DiscordAdapter) UserPermissions() []int64 { return a.Cmd.UserPermissions() }

// Run routes component contexts to the inner command's Component
// handler and everything else to its Run, so middleware wraps both
// paths the same way.
func (a *DiscordAdapter) Run(_ context.Context, inv *cmd.Invocation) error {
	if cctx, ok := inv.Data.(*ComponentInteractionContext); ok {
		return a.Component(cctx)
	}
	return a.Cmd.Run(inv.Data)
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

func (a *DiscordAdapter) Component(ctx *ComponentInteractionContext) error {
	if ch, ok := a.Cmd.(ComponentInteractionHandler); ok {
		return ch.Component(ctx)
	}
	return nil
}

// HandlesComponents reports whether the inner command answers component
// interactions. The adapter itself always has a Component method, so
// dispatchers must ask this instead of type-asserting.
func (a *DiscordAdapter) HandlesComponents() bool {
	_, ok := a.Cmd.(ComponentInteractionHandler)
	return ok
}

// RegisterCommand wraps a Discord command in the adapter, applies the
// middlewares and registers the result with the universal registry.
func RegisterCommand(discordCmd DiscordCommand, mws ...cmd.Middleware) {
	c := cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...)
	cmd.DefaultRegistry.Register(c)
}

// AllCommands returns every registered command, sorted by name.
func AllCommands() []cmd.Command {
	return cmd.DefaultRegistry.All()
}

// GetCommand looks a registered command up by name.
func GetCommand(name string) (cmd.Command, bool) {
	return cmd.DefaultRegistry.Get(name)
}
