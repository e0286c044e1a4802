package display

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// ConsoleName is the name of the built-in terminal display
const ConsoleName = "console"

// Factory builds a display
type Factory func(logger *log.Entry) (Display, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		ConsoleName: newTerminalConsole,
	}

	// isTerminal reports whether stdin and stdout are attached to a terminal
	isTerminal = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	}
)

// newTerminalConsole builds the console on the process terminal. Without one the program
// could neither draw nor read the closing key press.
func newTerminalConsole(logger *log.Entry) (Display, error) {
	if !isTerminal() {
		return nil, errors.New("stdin or stdout is not a terminal")
	}
	return NewConsole(logger), nil
}

// Register makes a display available under name, replacing a previous registration
func Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("display name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("display %q has no factory", name)
	}

	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
	return nil
}

// Names returns the registered display names, sorted
func Names() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the display registered under name. An empty name, an unknown name or a
// failing factory result in a Nop display so the update still runs silently.
func New(name string, logger *log.Entry) Display {
	if name == "" {
		return Nop{}
	}

	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		logger.Warnf("unknown display %q, running silently", name)
		return Nop{}
	}

	d, err := factory(logger)
	if err != nil {
		logger.Warnf("failed to create display %q, running silently: %v", name, err)
		return Nop{}
	}
	return d
}
