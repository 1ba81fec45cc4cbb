// Package shell dispatches command lines to registered entry points.
package shell

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/shlex"

	"github.com/itohio/bladc/pkg/console"
	"github.com/itohio/bladc/pkg/fault"
)

// Prompt is printed by line oriented front ends after each command.
const Prompt = "#"

// ErrNotFound is returned for an unknown command name.
var ErrNotFound = errors.New("command not found")

// Handler runs a command. argv[0] is the command name. Output goes to out.
// A returned *fault.Fault is fatal; any other error is reported to the caller.
type Handler func(out *console.Buffer, argv []string) error

// Command is a registered entry point.
type Command struct {
	Name    string
	Help    string
	Handler Handler
}

// Registry holds the commands of one shell.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
	capacity int
}

// NewRegistry creates a registry whose commands write into buffers of
// capacity bytes. The help command is registered.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = console.DefaultCapacity
	}
	r := &Registry{
		commands: make(map[string]*Command),
		capacity: capacity,
	}
	r.Register("help", "List commands", r.help)
	return r
}

// Register adds a command. Registering a name twice replaces the handler.
func (r *Registry) Register(name, help string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = &Command{Name: name, Help: help, Handler: handler}
}

// Lookup returns the command called name.
func (r *Registry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns the sorted command names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exec splits line into arguments and runs the named command. It returns
// whatever the command wrote. Faults, returned or raised, go through
// fault.Halt; Exec only returns if the installed handler does.
func (r *Registry) Exec(line string) (out string, err error) {
	argv, err := shlex.Split(line)
	if err != nil {
		return "", fmt.Errorf("failed to parse command line: %w", err)
	}
	if len(argv) == 0 {
		return "", nil
	}

	cmd, ok := r.Lookup(argv[0])
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, argv[0])
	}

	buf := console.NewBuffer(r.capacity)
	defer func() { out = buf.String() }()
	defer fault.Recover(&err)

	if err := cmd.Handler(buf, argv); err != nil {
		if f, ok := fault.As(err); ok {
			return "", fault.Halt(f)
		}
		return "", err
	}
	return "", nil
}

func (r *Registry) help(out *console.Buffer, _ []string) error {
	for _, name := range r.Names() {
		if err := out.Println(name); err != nil {
			return err
		}
	}
	return nil
}
