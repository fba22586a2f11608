package cmd

import "context"

// Unwrappable is implemented by wrapped commands so adapters can dig
// down to the underlying command and type-assert its side interfaces
// (option schemas, component handlers).
type Unwrappable interface {
	Command
	Unwrap() Command
}

// Wrapped is a command with a swapped-in Run. Middleware builds these;
// the inner command stays reachable through Unwrap.
type Wrapped struct {
	Inner   Command
	RunFunc func(ctx context.Context, inv *Invocation) error
}

func (w *Wrapped) Name() string        { return w.Inner.Name() }
func (w *Wrapped) Description() string { return w.Inner.Description() }

func (w *Wrapped) Run(ctx context.Context, inv *Invocation) error {
	if w.RunFunc != nil {
		return w.RunFunc(ctx, inv)
	}
	return w.Inner.Run(ctx, inv)
}

func (w *Wrapped) Unwrap() Command { return w.Inner }

// Wrap returns a command that runs run in place of c.Run while keeping
// c's identity. The result implements Unwrappable.
func Wrap(c Command, run func(ctx context.Context, inv *Invocation) error) Command {
	return &Wrapped{Inner: c, RunFunc: run}
}

// Root peels wrappers until the bare command remains.
func Root(c Command) Command {
	for {
		u, ok := c.(Unwrappable)
		if !ok {
			return c
		}
		c = u.Unwrap()
	}
}
