package engine

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/kode4food/sequin/internal/engine/runopt"
	"github.com/kode4food/sequin/pkg/pipeline"
)

type (
	// FlowMiddleware wraps the execution of a whole flow context
	FlowMiddleware = pipeline.Middleware[*Execution]

	// GroupMiddleware wraps the execution of one step group
	GroupMiddleware = pipeline.Middleware[*Group]

	// AttemptMiddleware wraps the execution of one step attempt
	AttemptMiddleware = pipeline.Middleware[*Attempt]

	// FlowService is a named middleware that takes part in flow pipelines
	FlowService interface {
		FlowMiddleware() FlowMiddleware
	}

	// GroupService is a named middleware that takes part in group pipelines
	GroupService interface {
		GroupMiddleware() GroupMiddleware
	}

	// AttemptService is a named middleware that takes part in attempt
	// pipelines
	AttemptService interface {
		AttemptMiddleware() AttemptMiddleware
	}

	// MiddlewareFactory creates the service instance of a named middleware
	// for one run. The instance is shared by every pipeline kind that
	// selects the name and by all nested sub-flows of the run
	MiddlewareFactory func(e *Engine, opts *runopt.Options) (any, error)

	// MiddlewareRegistry resolves named middleware factories
	MiddlewareRegistry struct {
		mu        sync.RWMutex
		factories map[string]MiddlewareFactory
	}
)

const (
	MiddlewareLog        = "log"
	MiddlewareMonitor    = "monitor"
	MiddlewareBreakpoint = "breakpoint"
	MiddlewareArchive    = "archive"
)

var (
	ErrMiddlewareNotFound = errors.New("middleware not found")
	ErrMiddlewareExists   = errors.New("middleware exists")
	ErrMiddlewareKind     = errors.New("middleware does not support kind")
)

// NewMiddlewareRegistry creates a registry holding the built-in middleware
func NewMiddlewareRegistry() *MiddlewareRegistry {
	return &MiddlewareRegistry{
		factories: map[string]MiddlewareFactory{
			MiddlewareLog:        newLogService,
			MiddlewareMonitor:    newMonitorService,
			MiddlewareBreakpoint: newBreakpoints,
			MiddlewareArchive:    newArchiveService,
		},
	}
}

// Register adds a named middleware factory
func (r *MiddlewareRegistry) Register(name string, f MiddlewareFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrMiddlewareExists, name)
	}
	r.factories[name] = f
	return nil
}

// Get returns the factory registered under the name
func (r *MiddlewareRegistry) Get(name string) (MiddlewareFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.factories[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMiddlewareNotFound, name)
}

// Names returns the registered middleware names in lexical order
func (r *MiddlewareRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}
