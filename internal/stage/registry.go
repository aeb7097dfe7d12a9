package stage

import (
	"fmt"

	"PaperPromoter/internal/domain"
)

// Registry keeps a mapping from stage names to their implementations.
type Registry struct {
	stages map[string]Stage
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: map[string]Stage{}}
}

// DefaultRegistry registers every built-in stage.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(LogicalDraft{})
	r.Register(VisualAnalysis{})
	r.Register(PlatformAdaptation{})
	r.Register(Original{})
	r.Register(Fewshot{})
	r.Register(WithFigure{})
	return r
}

// Register adds or replaces a stage implementation.
func (r *Registry) Register(stage Stage) {
	if r.stages == nil {
		r.stages = map[string]Stage{}
	}
	r.stages[stage.Name()] = stage
}

// Resolve returns the ordered stages executed for mode. A planned stage
// without an implementation is a configuration error.
func (r *Registry) Resolve(mode domain.PipelineMode) ([]Stage, error) {
	plan, err := domain.Plan(mode)
	if err != nil {
		return nil, err
	}
	out := make([]Stage, 0, len(plan))
	for _, name := range plan {
		s, ok := r.stages[name]
		if !ok {
			return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("stage %s is not registered (mode %s)", name, mode)}
		}
		out = append(out, s)
	}
	return out, nil
}
