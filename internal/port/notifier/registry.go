package notifier

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Factory builds a notifier from its `notify.providers.<name>` settings.
type Factory func(config map[string]string) (Notifier, error)

var registry = struct {
	sync.RWMutex
	byName map[string]Factory
}{byName: map[string]Factory{}}

// Register adds a provider under name. Adapters call it from init; a second
// registration of the same name panics.
func Register(name string, factory Factory) {
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byName[name]; dup {
		panic(fmt.Sprintf("notifier: %q registered twice", name))
	}
	registry.byName[name] = factory
}

// New builds the notifier registered as name.
func New(name string, config map[string]string) (Notifier, error) {
	registry.RLock()
	factory := registry.byName[name]
	registry.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("notifier: unknown provider %q (available: %s)", name, strings.Join(Available(), ", "))
	}
	return factory(config)
}

// Available lists registered provider names in sorted order.
func Available() []string {
	registry.RLock()
	defer registry.RUnlock()
	return slices.Sorted(maps.Keys(registry.byName))
}
