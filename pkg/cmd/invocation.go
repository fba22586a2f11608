// Package cmd is a transport-agnostic command core. A command is
// anything with a name, a description and a Run; how it gets
// registered and dispatched (Discord interactions, CLI, HTTP) is the
// business of an adapter wrapping this package.
package cmd

import "context"

// Invocation is the input a runner hands to a command: positional
// arguments plus an opaque payload. Adapters put their own context into
// Data (a Discord session and event, a flag set, a request).
type Invocation struct {
	Args []string
	Data interface{}
}

// Command is the universal contract. Permissions, option schemas and
// transport-specific registration live in adapter-side interfaces that
// commands implement on the side.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
