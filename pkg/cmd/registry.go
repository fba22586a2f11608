package cmd

import "sort"

// DefaultRegistry is the registry the adapters read. Command packages
// register into it from init or from main during wiring.
var DefaultRegistry = NewRegistry()

// Registry stores commands by name. It never dispatches; adapters look
// commands up and invoke them with their own context. Registration is
// expected to finish before lookups start, so there is no locking.
type Registry struct {
	commands map[string]Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command, replacing any previous one with the same
// name.
func (r *Registry) Register(c Command) {
	r.commands[c.Name()] = c
}

// Get looks a command up by name.
func (r *Registry) Get(name string) (Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

// All returns every registered command, sorted by name.
func (r *Registry) All() []Command {
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}

// Names returns the sorted names of every registered command.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
