package engine

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kode4food/sequin/internal/engine/event"
	"github.com/kode4food/sequin/pkg/api"
)

// Execution is the run-time state of one flow instance, root or nested.
// Its dispatcher is serialized through an event queue while its step
// groups run concurrently
type Execution struct {
	engine  *Engine
	run     *runConfig
	path    api.Path
	flow    *api.FlowDefinition
	parent  *Execution
	deps    map[api.EventKey][]api.StepID
	data    *Data
	queue   *event.Queue
	ctx     context.Context
	cancel  context.CancelCauseFunc
	finally atomic.Bool

	mu      sync.RWMutex
	state   api.FlowState
	start   time.Time
	steps   map[api.StepID]*api.StepStatus
	events  map[string]string
	signal  chan struct{}
	log     []api.LogEntry
	result  *api.FlowResult
	done    chan struct{}
	endOnce sync.Once
}

func newExecution(
	e *Engine, run *runConfig, path api.Path, flow *api.FlowDefinition,
	parent *Execution, data *Data,
) *Execution {
	x := &Execution{
		engine: e,
		run:    run,
		path:   path,
		flow:   flow,
		parent: parent,
		deps:   buildDependencies(flow),
		data:   data,
		state:  api.FlowReady,
		steps:  map[api.StepID]*api.StepStatus{},
		events: map[string]string{},
		signal: make(chan struct{}),
		done:   make(chan struct{}),
	}
	x.queue = event.NewQueue(x.dispatch, e.config.EventBatchSize)
	return x
}

// buildDependencies indexes, for every event key, the steps waiting on it
func buildDependencies(flow *api.FlowDefinition) map[api.EventKey][]api.StepID {
	res := map[api.EventKey][]api.StepID{}
	for _, s := range flow.Steps {
		for _, w := range s.EffectiveWaits() {
			key := w.Key()
			if !slices.Contains(res[key], s.ID) {
				res[key] = append(res[key], s.ID)
			}
		}
	}
	return res
}

// ID returns the instance id of the root flow this context belongs to
func (x *Execution) ID() api.InstanceID {
	return x.path.Root()
}

// Path returns the ancestor chain of the context
func (x *Execution) Path() api.Path {
	return x.path
}

// Flow returns the definition being executed
func (x *Execution) Flow() *api.FlowDefinition {
	return x.flow
}

// Parent returns the enclosing context of a sub-flow
func (x *Execution) Parent() (*Execution, bool) {
	return x.parent, x.parent != nil
}

// IsRoot returns whether this context is the root of its instance
func (x *Execution) IsRoot() bool {
	return x.parent == nil
}

// Data returns the global data table
func (x *Execution) Data() *Data {
	return x.data
}

// Finally returns whether the context has entered finally mode
func (x *Execution) Finally() bool {
	return x.finally.Load()
}

// State returns the lifecycle state of the context
func (x *Execution) State() api.FlowState {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.state
}

// Result returns the Flow Result once the context has completed
func (x *Execution) Result() (*api.FlowResult, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.result, x.result != nil
}

// Done is closed once the context has produced its result
func (x *Execution) Done() <-chan struct{} {
	return x.done
}

// StepStatus returns a snapshot of one step's status
func (x *Execution) StepStatus(id api.StepID) (*api.StepStatus, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	st, ok := x.steps[id]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// Status returns a snapshot of the context and all of its live children
func (x *Execution) Status() *api.InstanceStatus {
	x.mu.RLock()
	steps := make(map[api.StepID]*api.StepStatus, len(x.steps))
	for id, st := range x.steps {
		steps[id] = st.Clone()
	}
	res := &api.InstanceStatus{
		ID:        x.ID(),
		Path:      x.path,
		Category:  x.flow.Category,
		Name:      x.flow.Name,
		State:     x.state,
		Finally:   x.finally.Load(),
		StartTime: x.start,
		Steps:     steps,
		Log:       slices.Clone(x.log),
	}
	x.mu.RUnlock()
	res.Data = x.data.Snapshot()

	children := x.engine.childContexts(x.path)
	slices.SortFunc(children, func(l, r *Execution) int {
		return strings.Compare(l.path.String(), r.path.String())
	})
	for _, c := range children {
		res.Children = append(res.Children, c.Status())
	}
	return res
}

// EventPayload returns the payload of a pending external event
func (x *Execution) EventPayload(name string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	p, ok := x.events[name]
	return p, ok
}

// SendEvent stores the payload of a named external event and raises its
// key to the dispatcher. Payloads stay pending for the rest of the run
func (x *Execution) SendEvent(name, payload string) error {
	x.mu.Lock()
	x.events[name] = payload
	close(x.signal)
	x.signal = make(chan struct{})
	x.mu.Unlock()
	return x.raise(api.ExternalEventKey(name), payload)
}

// AwaitEvent blocks until the named external event has a pending payload
func (x *Execution) AwaitEvent(ctx context.Context, name string) (string, error) {
	for {
		x.mu.RLock()
		p, ok := x.events[name]
		signal := x.signal
		x.mu.RUnlock()
		if ok {
			return p, nil
		}
		select {
		case <-signal:
		case <-ctx.Done():
			return "", context.Cause(ctx)
		case <-x.done:
			return "", ErrFlowEnded
		}
	}
}

// Stop cancels this context and every live context nested below it
func (x *Execution) Stop() {
	for _, c := range x.engine.contextsUnder(x.path) {
		c.cancelled()
	}
	x.cancelled()
}

func (x *Execution) isDone() bool {
	select {
	case <-x.done:
		return true
	default:
		return false
	}
}

// checkActive reports why work on behalf of this context must stop, if it
// must
func (x *Execution) checkActive(ctx context.Context) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	if x.isDone() {
		return ErrFlowEnded
	}
	return nil
}

func (x *Execution) setState(state api.FlowState) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.state = state
}

func (x *Execution) appendLog(
	typ api.LogEntryType, key api.EventKey, id api.StepID, msg string,
) {
	entry := api.LogEntry{
		Time:    x.engine.Now(),
		Type:    typ,
		Key:     key,
		StepID:  id,
		Message: msg,
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.log = append(x.log, entry)
}

func (x *Execution) updateStep(id api.StepID, fn func(*api.StepStatus)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if st, ok := x.steps[id]; ok {
		fn(st)
	}
}

// enterFinally sets the sticky finally flag. It is never cleared
func (x *Execution) enterFinally(id api.StepID) {
	if x.finally.CompareAndSwap(false, true) {
		x.appendLog(api.LogFinallyEntered, "", id, "")
	}
}

func (x *Execution) succeeded() {
	if x.finally.Load() {
		x.complete(api.FlowCompleted, ErrFlowFinally)
		return
	}
	x.complete(api.FlowCompleted, nil)
}

func (x *Execution) fail(err error) {
	x.complete(api.FlowFailed, err)
}

func (x *Execution) cancelled() {
	x.complete(api.FlowCancelled, ErrCancelled)
}

// complete produces the Flow Result and closes the done channel. Only the
// first caller has any effect
func (x *Execution) complete(state api.FlowState, err error) bool {
	first := false
	x.endOnce.Do(func() {
		first = true
		now := x.engine.Now()
		res := &api.FlowResult{
			InstanceID: x.ID(),
			Category:   x.flow.Category,
			Name:       x.flow.Name,
			State:      state,
			Success:    state == api.FlowCompleted && err == nil,
			Finally:    x.finally.Load(),
			Data:       x.data.outputs(x.flow),
			EndTime:    now,
		}
		res = res.WithError(err)

		x.mu.Lock()
		res.StartTime = x.start
		x.state = state
		x.result = res
		x.log = append(x.log, api.LogEntry{
			Time:    now,
			Type:    flowLogType(state),
			Message: res.ErrorText,
		})
		x.mu.Unlock()
		close(x.done)
	})
	return first
}

func flowLogType(state api.FlowState) api.LogEntryType {
	switch state {
	case api.FlowCompleted:
		return api.LogFlowCompleted
	case api.FlowCancelled:
		return api.LogFlowCancelled
	default:
		return api.LogFlowFailed
	}
}
