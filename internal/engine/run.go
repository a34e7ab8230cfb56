package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/kode4food/sequin/internal/engine/runopt"
	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/pipeline"
)

// runConfig holds what every context of one run shares: the resolved run
// parameters, the middleware service instances, and the three pipelines
type runConfig struct {
	config        *api.ConfigDefinition
	opts          *runopt.Options
	errorHandling api.ErrorHandling
	stepTimeout   time.Duration
	flowTimeout   time.Duration
	services      map[string]any
	flows         pipeline.Handler[*Execution]
	groups        pipeline.Handler[*Group]
	attempts      pipeline.Handler[*Attempt]
}

func (e *Engine) newRunConfig(
	cfg *api.ConfigDefinition, opts *runopt.Options,
) (*runConfig, error) {
	eh := cfg.ErrorHandling
	if eh == "" {
		eh = e.config.ErrorHandling
	}
	policy, ok := api.ParseErrorHandling(string(eh))
	if !ok {
		return nil, definitionError(
			fmt.Errorf("%w: error handling %q", ErrInvalidControlValue, eh),
		)
	}

	flowTimeout := cfg.TimeOut
	if flowTimeout <= 0 {
		flowTimeout = e.config.FlowTimeout
	}

	r := &runConfig{
		config:        cfg,
		opts:          opts,
		errorHandling: policy,
		stepTimeout:   time.Duration(e.config.StepTimeout) * time.Millisecond,
		flowTimeout:   time.Duration(flowTimeout) * time.Millisecond,
		services:      map[string]any{},
	}

	names := mergeMiddlewareNames(
		e.config.Middleware, cfg.Middleware, opts.Middleware,
	)
	if len(opts.Breakpoints) > 0 &&
		!slices.Contains(names.Attempt, MiddlewareBreakpoint) {
		names.Attempt = append(names.Attempt, MiddlewareBreakpoint)
	}

	flows, err := resolveMiddleware(e, r, names.Flow,
		func(s any) (FlowMiddleware, bool) {
			fs, ok := s.(FlowService)
			if !ok {
				return nil, false
			}
			return fs.FlowMiddleware(), true
		},
	)
	if err != nil {
		return nil, err
	}
	groups, err := resolveMiddleware(e, r, names.Group,
		func(s any) (GroupMiddleware, bool) {
			gs, ok := s.(GroupService)
			if !ok {
				return nil, false
			}
			return gs.GroupMiddleware(), true
		},
	)
	if err != nil {
		return nil, err
	}
	attempts, err := resolveMiddleware(e, r, names.Attempt,
		func(s any) (AttemptMiddleware, bool) {
			as, ok := s.(AttemptService)
			if !ok {
				return nil, false
			}
			return as.AttemptMiddleware(), true
		},
	)
	if err != nil {
		return nil, err
	}

	r.flows = pipeline.NewBuilder(flows...).
		Use(pipeline.Func[*Execution](e.runFlow)).
		Build()
	r.groups = pipeline.NewBuilder(groups...).
		Use(
			pipeline.Func[*Group](e.groupStatus),
			pipeline.Func[*Group](e.groupLoop),
		).
		Build()
	r.attempts = pipeline.NewBuilder(attempts...).
		Use(
			pipeline.Func[*Attempt](e.attemptStatus),
			pipeline.Func[*Attempt](e.attemptTimeout),
			pipeline.Func[*Attempt](e.attemptInvoke),
		).
		Build()
	return r, nil
}

// service returns the run's instance of a named middleware, creating it on
// first use
func (r *runConfig) service(e *Engine, name string) (any, error) {
	if s, ok := r.services[name]; ok {
		return s, nil
	}
	f, err := e.middleware.Get(name)
	if err != nil {
		return nil, definitionError(err)
	}
	s, err := f(e, r.opts)
	if err != nil {
		return nil, fmt.Errorf("middleware %s: %w", name, err)
	}
	r.services[name] = s
	return s, nil
}

func resolveMiddleware[T any](
	e *Engine, r *runConfig, names []string, get func(any) (T, bool),
) ([]T, error) {
	res := make([]T, 0, len(names))
	for _, name := range names {
		s, err := r.service(e, name)
		if err != nil {
			return nil, err
		}
		mw, ok := get(s)
		if !ok {
			return nil, definitionError(
				fmt.Errorf("%w: %s", ErrMiddlewareKind, name),
			)
		}
		res = append(res, mw)
	}
	return res, nil
}

// mergeMiddlewareNames concatenates middleware selections in order, keeping
// only the first occurrence of each name per kind
func mergeMiddlewareNames(all ...api.MiddlewareNames) api.MiddlewareNames {
	var res api.MiddlewareNames
	for _, n := range all {
		res.Flow = appendUnique(res.Flow, n.Flow...)
		res.Group = appendUnique(res.Group, n.Group...)
		res.Attempt = appendUnique(res.Attempt, n.Attempt...)
	}
	return res
}

func appendUnique(res []string, names ...string) []string {
	for _, n := range names {
		if !slices.Contains(res, n) {
			res = append(res, n)
		}
	}
	return res
}
