package stage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"mediaflow/internal/graph"
)

type entry struct {
	stageType  string
	capability Capability
	handler    Handler
	discoverer Discoverer
	schema     *gojsonschema.Schema
	health     HealthChecker
}

// Registry maps stage type tags to handlers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register binds a pipeline handler to a stage type.
func (r *Registry) Register(stageType string, capability Capability, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("register stage %q: nil handler", stageType)
	}
	if capability == CapabilityDiscovery {
		return fmt.Errorf("register stage %q: use RegisterDiscovery for discovery stages", stageType)
	}
	e := &entry{capability: capability, handler: handler}
	return r.add(stageType, e, handler)
}

// RegisterDiscovery binds a discoverer to a stage type.
func (r *Registry) RegisterDiscovery(stageType string, discoverer Discoverer) error {
	if discoverer == nil {
		return fmt.Errorf("register stage %q: nil discoverer", stageType)
	}
	e := &entry{capability: CapabilityDiscovery, discoverer: discoverer}
	return r.add(stageType, e, discoverer)
}

func (r *Registry) add(stageType string, e *entry, impl any) error {
	stageType = strings.TrimSpace(stageType)
	if stageType == "" {
		return fmt.Errorf("register stage: empty type")
	}
	e.stageType = stageType
	if provider, ok := impl.(SchemaProvider); ok {
		if doc := provider.ConfigSchema(); doc != nil {
			schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
			if err != nil {
				return fmt.Errorf("register stage %q: compile config schema: %w", stageType, err)
			}
			e.schema = schema
		}
	}
	if checker, ok := impl.(HealthChecker); ok {
		e.health = checker
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[stageType]; exists {
		return fmt.Errorf("register stage %q: already registered", stageType)
	}
	r.entries[stageType] = e
	return nil
}

func (r *Registry) lookup(stageType string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[stageType]
	return e, ok
}

// Handler returns the pipeline handler for a stage type.
func (r *Registry) Handler(stageType string) (Handler, bool) {
	e, ok := r.lookup(stageType)
	if !ok || e.handler == nil {
		return nil, false
	}
	return e.handler, true
}

// Discoverer returns the discoverer for a stage type.
func (r *Registry) Discoverer(stageType string) (Discoverer, bool) {
	e, ok := r.lookup(stageType)
	if !ok || e.discoverer == nil {
		return nil, false
	}
	return e.discoverer, true
}

// IsDiscovery reports whether stageType is registered as a discovery stage.
func (r *Registry) IsDiscovery(stageType string) bool {
	e, ok := r.lookup(stageType)
	return ok && e.capability == CapabilityDiscovery
}

// Capability returns the registered capability for a stage type.
func (r *Registry) Capability(stageType string) (Capability, bool) {
	e, ok := r.lookup(stageType)
	if !ok {
		return "", false
	}
	return e.capability, true
}

// Types lists registered stage types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// ValidatePipeline checks that every node of a resolved pipeline has a
// registered handler of the right kind and a configuration its schema accepts.
func (r *Registry) ValidatePipeline(p *graph.Pipeline) error {
	if err := r.ValidateNode(p.Discovery); err != nil {
		return err
	}
	for _, node := range p.Stages {
		if err := r.ValidateNode(node); err != nil {
			return err
		}
	}
	return nil
}

// ValidateNode checks a single node against the registry.
func (r *Registry) ValidateNode(node graph.Node) error {
	e, ok := r.lookup(node.Type)
	if !ok {
		return graph.NewConfigError(graph.ReasonUnknownStageType, node.ID,
			fmt.Sprintf("no handler registered for stage type %q", node.Type))
	}
	if e.schema == nil {
		return nil
	}
	result, err := e.schema.Validate(gojsonschema.NewGoLoader(node.Config()))
	if err != nil {
		return graph.NewConfigError(graph.ReasonInvalidConfig, node.ID, err.Error())
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return graph.NewConfigError(graph.ReasonInvalidConfig, node.ID,
			fmt.Sprintf("%s config: %s", node.Type, strings.Join(problems, "; ")))
	}
	return nil
}

// Health reports readiness of every registered handler that can check itself.
func (r *Registry) Health(ctx context.Context) []Health {
	r.mu.RLock()
	checkers := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		checkers = append(checkers, e)
	}
	r.mu.RUnlock()
	slices.SortFunc(checkers, func(a, b *entry) int { return strings.Compare(a.stageType, b.stageType) })

	out := make([]Health, 0, len(checkers))
	for _, e := range checkers {
		if e.health == nil {
			out = append(out, Healthy(e.stageType))
			continue
		}
		out = append(out, e.health.HealthCheck(ctx))
	}
	return out
}
