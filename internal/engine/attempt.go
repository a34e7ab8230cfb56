package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/pipeline"
)

// Attempt is one execution of a step body, identified by its repeat and
// retry indexes. It is the StepContext handed to step implementations
type Attempt struct {
	group      *Group
	repeat     int
	retry      int
	conditions api.Values
	status     *api.AttemptStatus
	claimed    atomic.Bool
}

const reasonTimeout = "timeout"

// claim settles the attempt for whichever of the body and its timeout gets
// there first. Only the winner may write outputs or report the timeout
func (a *Attempt) claim() bool {
	return a.claimed.CompareAndSwap(false, true)
}

func newAttempt(g *Group, repeat, retry int, conds api.Values) *Attempt {
	return &Attempt{
		group:      g,
		repeat:     repeat,
		retry:      retry,
		conditions: conds,
	}
}

// Group returns the step group the attempt belongs to
func (a *Attempt) Group() *Group {
	return a.group
}

// Execution returns the context the attempt runs in
func (a *Attempt) Execution() *Execution {
	return a.group.exec
}

// Step returns the step definition
func (a *Attempt) Step() *api.Step {
	return a.group.step
}

// RepeatIndex returns the zero-based repeat of the attempt
func (a *Attempt) RepeatIndex() int {
	return a.repeat
}

// RetryIndex returns the zero-based retry of the attempt
func (a *Attempt) RetryIndex() int {
	return a.retry
}

// InstanceID returns the id of the root flow instance
func (a *Attempt) InstanceID() api.InstanceID {
	return a.group.exec.ID()
}

// Path returns the path of the context the attempt runs in
func (a *Attempt) Path() api.Path {
	return a.group.exec.path
}

// StepID returns the id of the step being attempted
func (a *Attempt) StepID() api.StepID {
	return a.group.step.ID
}

// GetData reads an entry of the global data table
func (a *Attempt) GetData(name api.Name) (api.Value, bool) {
	return a.group.exec.data.Get(name)
}

// EventPayload returns the payload of a pending external event
func (a *Attempt) EventPayload(name string) (string, bool) {
	return a.group.exec.EventPayload(name)
}

// AwaitEvent blocks until the named external event has a payload
func (a *Attempt) AwaitEvent(ctx context.Context, name string) (string, error) {
	return a.group.exec.AwaitEvent(ctx, name)
}

func (a *Attempt) update(fn func(*api.AttemptStatus)) {
	x := a.group.exec
	x.mu.Lock()
	defer x.mu.Unlock()
	fn(a.status)
}

// attemptStatus records the Attempt Status around the rest of the attempt
// pipeline
func (e *Engine) attemptStatus(
	ctx context.Context, a *Attempt, next pipeline.Handler[*Attempt],
) error {
	a.status = &api.AttemptStatus{
		RepeatIndex: a.repeat,
		RetryIndex:  a.retry,
		State:       api.StepStart,
		StartTime:   e.Now(),
		Conditions:  a.conditions,
	}
	a.group.exec.updateStep(a.StepID(), func(st *api.StepStatus) {
		st.Attempts = append(st.Attempts, a.status)
	})

	err := next(ctx, a)

	now := e.Now()
	a.update(func(st *api.AttemptStatus) {
		st.EndTime = now
		if err == nil {
			st.State = api.StepComplete
			return
		}
		st.State = api.StepError
		st.Error = err.Error()
		if errors.Is(err, ErrAttemptTimeout) {
			st.Reason = reasonTimeout
		}
	})
	return err
}

// attemptTimeout races the rest of the pipeline against the step's
// dynamic timeout. A body that loses the claim keeps running until it
// observes its context, but its outputs are never written
func (e *Engine) attemptTimeout(
	ctx context.Context, a *Attempt, next pipeline.Handler[*Attempt],
) error {
	x := a.group.exec
	ms, err := x.resolveInt(
		ctx, a.group.step.TimeOut, x.run.stepTimeout.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	if ms <= 0 {
		return next(ctx, a)
	}

	timeout := time.Duration(ms) * time.Millisecond
	actx, cancel := context.WithTimeoutCause(ctx, timeout, ErrAttemptTimeout)
	defer cancel()

	res := make(chan error, 1)
	e.wg.Go(func() {
		res <- next(actx, a)
	})

	select {
	case err := <-res:
		return err
	case <-actx.Done():
		if !a.claim() {
			return <-res
		}
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return fmt.Errorf("%w: %s", ErrAttemptTimeout, timeout)
	}
}

// attemptInvoke resolves the step inputs, runs the step body, and delivers
// its outputs. Inputs and outputs are snapshotted onto the Attempt Status
func (e *Engine) attemptInvoke(
	ctx context.Context, a *Attempt, _ pipeline.Handler[*Attempt],
) error {
	x := a.group.exec
	step := a.group.step

	in, err := x.ResolveInputs(ctx, step.Inputs)
	if err != nil {
		return err
	}
	a.update(func(st *api.AttemptStatus) {
		st.Inputs = in
	})

	var out api.Values
	if step.IsFlow() {
		out, err = e.runSubFlow(ctx, a, in)
	} else {
		out, err = e.invokeStep(ctx, a, in)
	}
	if err != nil {
		return err
	}
	if !a.claim() {
		return ErrAttemptTimeout
	}

	a.update(func(st *api.AttemptStatus) {
		st.Outputs = maps.Clone(out)
	})
	return x.WriteOutputs(ctx, step, out)
}

func (e *Engine) invokeStep(
	ctx context.Context, a *Attempt, in api.Values,
) (api.Values, error) {
	step := a.group.step
	impl, err := e.caps.Steps.Get(step.Category, step.Implementation)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStepNotFound, err)
	}
	return callSafely(func() (api.Values, error) {
		return impl.Execute(ctx, a, in)
	})
}
