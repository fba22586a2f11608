package cmd

// Middleware wraps a command with extra behavior: logging, guard
// checks, metrics. The wrapped value is still a Command, so middleware
// stacks compose.
type Middleware func(Command) Command

// Apply wraps c with the given middlewares. The last one in the list
// ends up outermost and therefore runs first.
func Apply(c Command, mws ...Middleware) Command {
	for _, mw := range mws {
		c = mw(c)
	}
	return c
}
