package tool

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"qtick-agent/internal/domain"
)

// Registry holds named tools in registration order.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]domain.Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]domain.Tool),
		logger: logger,
	}
}

// NewCatalogRegistry registers every wrapper built from deps and checks the
// result against the catalog. A missing or extra tool is a startup error.
func NewCatalogRegistry(deps Deps) (*Registry, error) {
	r := NewRegistry(deps.Logger)
	for _, t := range Wrappers(deps) {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	if err := r.Verify(); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a tool wrapped with schema validation. Returns error if the
// name is already registered or the schema does not compile.
func (r *Registry) Register(t domain.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	wrapped, err := WithSchemaValidation(t)
	if err != nil {
		return err
	}

	r.tools[name] = wrapped
	r.order = append(r.order, name)
	if r.logger != nil {
		r.logger.Debug("tool registered", "tool", name)
	}
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

// List returns all registered tools in registration order.
func (r *Registry) List() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]domain.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Schemas returns all tool schemas for LLM function-calling.
func (r *Registry) Schemas() []domain.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]domain.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.tools[name].Schema())
	}
	return schemas
}

// Verify reports whether the registered names are exactly the catalog names.
func (r *Registry) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing, extra []string
	for _, d := range catalog {
		if _, ok := r.tools[d.Name]; !ok {
			missing = append(missing, d.Name)
		}
	}
	for _, name := range r.order {
		if _, ok := definition(name); !ok {
			extra = append(extra, name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	slices.Sort(missing)
	slices.Sort(extra)
	return fmt.Errorf("tool registry does not match catalog: missing %v, unknown %v", missing, extra)
}
