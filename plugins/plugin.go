package plugins

import (
	"fmt"
	"sort"

	"github.com/gofiber/fiber/v2"
)

// Plugin is a unit of the HTTP API with its own hardware resources
type Plugin interface {
	// Name returns the plugin identifier
	Name() string

	// RegisterRoutes adds the plugin's HTTP routes to the app
	RegisterRoutes(app *fiber.App)

	// Shutdown releases the plugin's hardware
	Shutdown() error
}

// PluginFactory creates a plugin from its section of config.yaml
type PluginFactory func(config interface{}) (Plugin, error)

var registry = make(map[string]PluginFactory)

// Register adds a plugin factory to the registry. Registering the same
// name twice is a programming error.
func Register(name string, factory PluginFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("plugin %q registered twice", name))
	}
	registry[name] = factory
}

// Get retrieves a plugin factory by name
func Get(name string) (PluginFactory, bool) {
	factory, exists := registry[name]
	return factory, exists
}

// Names lists the registered plugins
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TokenValidator checks a session token for routes that cannot use the
// X-Auth-Token header
type TokenValidator func(token string) bool
