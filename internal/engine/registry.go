package engine

import (
	"fmt"
	"sort"

	"github.com/colvar-go/colvar/internal/parallel"
	"github.com/colvar-go/colvar/internal/value"
)

// ActionConfig carries everything a component constructor needs: the label,
// resolved argument values, the system, parsed options and the parallel
// configuration.
type ActionConfig struct {
	Label     string
	Arguments []*value.Value
	System    *System
	Options   map[string]string
	Parallel  parallel.Config
}

// Option returns a named option or its default.
func (c ActionConfig) Option(key, def string) string {
	if v, ok := c.Options[key]; ok {
		return v
	}
	return def
}

// Factory constructs a component from its configuration.
type Factory func(cfg ActionConfig) (Component, error)

// Registry maps action keywords to constructors. It is an explicit object
// built at process start and passed by reference to whoever parses input,
// never a hidden global.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a keyword to a constructor. Registering the same keyword
// twice is a programming error surfaced immediately.
func (r *Registry) Register(keyword string, f Factory) error {
	if _, dup := r.factories[keyword]; dup {
		return fmt.Errorf("registry: keyword %s registered twice", keyword)
	}
	r.factories[keyword] = f
	return nil
}

// Create constructs the component registered for the keyword.
func (r *Registry) Create(keyword string, cfg ActionConfig) (Component, error) {
	f, ok := r.factories[keyword]
	if !ok {
		return nil, fmt.Errorf("registry: unknown action %s", keyword)
	}
	c, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("registry: action %s with label %s: %w", keyword, cfg.Label, err)
	}
	return c, nil
}

// Keywords returns the registered keywords in sorted order.
func (r *Registry) Keywords() []string {
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
