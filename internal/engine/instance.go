package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/kode4food/sequin/internal/engine/runopt"
	"github.com/kode4food/sequin/internal/provider"
	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/log"
)

// Instance is one run of a flow started through the Run API. With
// flow-level repeat or retry configured, an Instance runs its flow
// several times, each round in a fresh root context that carries the
// previous round's data forward
type Instance struct {
	engine  *Engine
	id      api.InstanceID
	flow    *api.FlowDefinition
	config  *api.ConfigDefinition
	run     *runConfig
	ctx     context.Context
	cancel  context.CancelCauseFunc
	current atomic.Pointer[Execution]
	result  atomic.Pointer[api.FlowResult]
	done    chan struct{}
}

// StartFlow loads a flow and its selected config definition from the
// provider and starts running it
func (e *Engine) StartFlow(
	ctx context.Context, category, name string, opts ...runopt.Applier,
) (*Instance, error) {
	o := runopt.DefaultOptions(opts...)
	cfg, err := provider.LoadConfigOrDefault(
		ctx, e.provider, category, name, o.ConfigName,
	)
	if err != nil {
		return nil, err
	}
	return e.startConfig(ctx, cfg, o)
}

// StartConfig starts the flow a config definition names, using that
// config's run parameters
func (e *Engine) StartConfig(
	ctx context.Context, cfg *api.ConfigDefinition, opts ...runopt.Applier,
) (*Instance, error) {
	return e.startConfig(ctx, cfg, runopt.DefaultOptions(opts...))
}

// StartDefinition starts a flow definition that need not be stored by the
// provider. A nil config selects the defaults
func (e *Engine) StartDefinition(
	ctx context.Context, flow *api.FlowDefinition, cfg *api.ConfigDefinition,
	opts ...runopt.Applier,
) (*Instance, error) {
	if cfg == nil {
		cfg = api.NewConfigDefinition(flow.Category, flow.Name)
	}
	return e.start(ctx, flow, cfg, runopt.DefaultOptions(opts...))
}

// RunFlow starts a stored flow and waits for its result
func (e *Engine) RunFlow(
	ctx context.Context, category, name string, opts ...runopt.Applier,
) (*api.FlowResult, error) {
	inst, err := e.StartFlow(ctx, category, name, opts...)
	if err != nil {
		return nil, err
	}
	return inst.Wait(ctx)
}

func (e *Engine) startConfig(
	ctx context.Context, cfg *api.ConfigDefinition, o *runopt.Options,
) (*Instance, error) {
	flow, err := e.provider.LoadFlowDefinition(ctx, cfg.Category, cfg.Name)
	if err != nil {
		return nil, err
	}
	return e.start(ctx, flow, cfg, o)
}

func (e *Engine) start(
	ctx context.Context, flow *api.FlowDefinition, cfg *api.ConfigDefinition,
	o *runopt.Options,
) (*Instance, error) {
	if err := e.checkFlow(flow); err != nil {
		return nil, err
	}
	run, err := e.newRunConfig(cfg, o)
	if err != nil {
		return nil, err
	}

	data := newData(flow.Data)
	data.Merge(cfg.Data)
	data.Merge(o.Data)
	if err := e.checkOptions(ctx, flow, data); err != nil {
		return nil, err
	}

	id := o.InstanceID
	if id == "" {
		id = api.NewInstanceID()
	}

	ictx, cancel := context.WithCancelCause(e.ctx)
	inst := &Instance{
		engine: e,
		id:     id,
		flow:   flow,
		config: cfg,
		run:    run,
		ctx:    ictx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		cancel(ErrEngineStopped)
		return nil, ErrEngineStopped
	}
	if _, ok := e.instances[id]; ok {
		e.mu.Unlock()
		cancel(ErrInstanceExists)
		return nil, fmt.Errorf("%w: %s", ErrInstanceExists, id)
	}
	e.instances[id] = inst
	e.mu.Unlock()

	slog.Info("Flow instance started",
		log.InstanceID(id),
		log.FlowID(flow.Category, flow.Name),
		slog.String("config", cfg.ConfigName))

	inst.round(data)
	e.wg.Go(func() {
		inst.runRounds(data)
	})
	return inst, nil
}

// GetInstance returns a running or recently finished instance
func (e *Engine) GetInstance(id api.InstanceID) (*Instance, error) {
	e.mu.RLock()
	inst, ok := e.instances[id]
	e.mu.RUnlock()
	if ok {
		return inst, nil
	}
	return e.finished.Get(string(id), func() (*Instance, error) {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	})
}

// Instances returns the running instances ordered by id
func (e *Engine) Instances() []*Instance {
	e.mu.RLock()
	res := make([]*Instance, 0, len(e.instances))
	for _, inst := range e.instances {
		res = append(res, inst)
	}
	e.mu.RUnlock()
	slices.SortFunc(res, func(l, r *Instance) int {
		return strings.Compare(string(l.id), string(r.id))
	})
	return res
}

func (e *Engine) retire(inst *Instance) {
	_, _ = e.finished.Get(string(inst.id), func() (*Instance, error) {
		return inst, nil
	})
	e.mu.Lock()
	delete(e.instances, inst.id)
	e.mu.Unlock()
}

// ID returns the instance id
func (i *Instance) ID() api.InstanceID {
	return i.id
}

// Flow returns the definition being run
func (i *Instance) Flow() *api.FlowDefinition {
	return i.flow
}

// Config returns the config definition the instance was started with
func (i *Instance) Config() *api.ConfigDefinition {
	return i.config
}

// Done is closed once the instance has produced its final result
func (i *Instance) Done() <-chan struct{} {
	return i.done
}

// Wait blocks until the instance finishes or ctx is done
func (i *Instance) Wait(ctx context.Context) (*api.FlowResult, error) {
	select {
	case <-i.done:
		return i.result.Load(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the final result once the instance has finished
func (i *Instance) Result() (*api.FlowResult, bool) {
	res := i.result.Load()
	return res, res != nil
}

// SendEvent delivers a named external event with its payload to the
// running root context and every sub-flow context nested below it
func (i *Instance) SendEvent(name, payload string) error {
	x := i.current.Load()
	if x.isDone() {
		return fmt.Errorf("%w: %s", ErrFlowEnded, i.id)
	}
	targets := i.engine.contextsUnder(x.path)
	if !slices.Contains(targets, x) {
		targets = append(targets, x)
	}
	for _, t := range targets {
		if err := t.SendEvent(name, payload); err != nil {
			return err
		}
	}
	return nil
}

// Stop cancels the instance, recursively stopping every running sub-flow
func (i *Instance) Stop() {
	i.cancel(ErrCancelled)
	i.current.Load().Stop()
}

// Status returns a snapshot of the current round's root context
func (i *Instance) Status() *api.InstanceStatus {
	return i.current.Load().Status()
}

// Middleware returns the run's service instance of a named middleware
func (i *Instance) Middleware(name string) (any, bool) {
	s, ok := i.run.services[name]
	return s, ok
}

// Breakpoints returns the run's breakpoint controller, if selected
func (i *Instance) Breakpoints() (*Breakpoints, bool) {
	s, ok := i.Middleware(MiddlewareBreakpoint)
	if !ok {
		return nil, false
	}
	bp, ok := s.(*Breakpoints)
	return bp, ok
}

func (i *Instance) runRounds(data *Data) {
	defer i.finish()

	repeat := max(i.config.Repeat, 1)
	retry := max(i.config.Retry, 0)

	var res *api.FlowResult
	x := i.current.Load()
	for rep := range repeat {
		for try := 0; ; try++ {
			if rep > 0 || try > 0 {
				x = i.round(data)
			}
			err := i.run.flows(i.ctx, x)
			if _, ok := x.Result(); !ok && i.ctx.Err() != nil {
				x.cancelled()
			}
			res = x.settle(err)

			if res.Success {
				data = x.data
				break
			}
			if i.ctx.Err() != nil || try >= retry {
				break
			}
			slog.Warn("Retrying flow",
				log.InstanceID(i.id),
				log.Repeat(rep),
				log.Retry(try+1),
				log.ErrorString(res.ErrorText))
		}
		if !res.Success {
			break
		}
	}
	i.result.Store(res)
}

// round creates the root context of the next round and makes it current
func (i *Instance) round(data *Data) *Execution {
	x := newExecution(
		i.engine, i.run, api.Path{string(i.id)}, i.flow, nil, data.clone(),
	)
	i.current.Store(x)
	return x
}

func (i *Instance) finish() {
	res := i.result.Load()
	slog.Info("Flow instance finished",
		log.InstanceID(i.id),
		log.FlowID(i.flow.Category, i.flow.Name),
		log.Status(res.State),
		log.ErrorString(res.ErrorText))
	i.cancel(ErrFlowEnded)
	i.engine.retire(i)
	close(i.done)
}
