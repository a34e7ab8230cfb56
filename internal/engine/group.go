package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/log"
	"github.com/kode4food/sequin/pkg/pipeline"
)

// Group is the full lifecycle of one step within one context, across all
// of its repeats and retries
type Group struct {
	exec          *Execution
	step          *api.Step
	repeat        int
	retry         int
	timeout       time.Duration
	errorHandling api.ErrorHandling
	finally       bool

	errored bool
	skipped bool
	reason  string
}

const reasonFinally = "Finally"

func newGroup(x *Execution, step *api.Step) *Group {
	return &Group{
		exec:   x,
		step:   step,
		repeat: 1,
	}
}

// Execution returns the context the group runs in
func (g *Group) Execution() *Execution {
	return g.exec
}

// Step returns the step definition
func (g *Group) Step() *api.Step {
	return g.step
}

// StepID returns the id of the step
func (g *Group) StepID() api.StepID {
	return g.step.ID
}

// Repeat returns the resolved repeat count
func (g *Group) Repeat() int {
	return g.repeat
}

// Retry returns the resolved retry budget of each repeat
func (g *Group) Retry() int {
	return g.retry
}

// ErrorHandling returns the resolved escalation policy
func (g *Group) ErrorHandling() api.ErrorHandling {
	return g.errorHandling
}

// IsFinally returns whether the step still runs in finally mode
func (g *Group) IsFinally() bool {
	return g.finally
}

// Outcome returns the state the group ends in if it finishes normally
func (g *Group) Outcome() (api.StepState, string) {
	switch {
	case g.errored:
		return api.StepError, g.reason
	case g.skipped:
		return api.StepSkip, g.reason
	default:
		return api.StepComplete, ""
	}
}

// groupStatus resolves the step's control inputs once, records them on
// the Step Status, and marks the step started
func (e *Engine) groupStatus(
	ctx context.Context, g *Group, next pipeline.Handler[*Group],
) error {
	if err := g.resolveControls(ctx); err != nil {
		return fmt.Errorf("step %s: %w", g.step.ID, err)
	}

	now := e.Now()
	g.exec.updateStep(g.step.ID, func(st *api.StepStatus) {
		st.State = api.StepStart
		st.StartTime = now
		st.Repeat = g.repeat
		st.Retry = g.retry
		st.TimeOut = g.timeout
		st.ErrorHandling = g.errorHandling
		st.Finally = g.finally
	})
	return next(ctx, g)
}

// groupLoop runs the repeats of a step, each with its own retry budget.
// The loop stops at the first skipped repeat and when a failure escalates
// to Finally or Terminate. A failure tolerated by Skip moves on to the
// next repeat
func (e *Engine) groupLoop(
	ctx context.Context, g *Group, _ pipeline.Handler[*Group],
) error {
	x := g.exec
	for rep := range g.repeat {
		if err := x.checkActive(ctx); err != nil {
			return err
		}

		if x.Finally() && !g.finally {
			g.skip(rep, reasonFinally)
			return nil
		}

		ok, reason, err := x.checkIfs(ctx, g.step)
		if err != nil {
			g.record(&api.AttemptStatus{
				RepeatIndex: rep,
				State:       api.StepError,
				Reason:      "checker",
				Error:       err.Error(),
			})
			if stop, err := g.escalate(err); stop {
				return err
			}
			continue
		}
		if !ok {
			g.skip(rep, reason)
			return nil
		}

		conds := x.evaluateConditions(ctx, g.step)
		if stop, err := e.runAttempts(ctx, g, rep, conds); stop {
			return err
		}
	}
	return nil
}

func (e *Engine) runAttempts(
	ctx context.Context, g *Group, rep int, conds api.Values,
) (bool, error) {
	x := g.exec
	for try := 0; ; try++ {
		if err := x.checkActive(ctx); err != nil {
			return true, err
		}

		err := x.run.attempts(ctx, newAttempt(g, rep, try, conds))
		if err == nil {
			return false, nil
		}
		if err := x.checkActive(ctx); err != nil {
			return true, err
		}

		if try < g.retry {
			slog.Debug("Retrying step",
				log.InstanceID(x.ID()),
				log.StepID(g.step.ID),
				log.Repeat(rep),
				log.Retry(try+1),
				log.Error(err))
			continue
		}
		return g.escalate(err)
	}
}

// escalate applies the error policy to a repeat whose retries are
// exhausted, reporting whether the loop must stop
func (g *Group) escalate(err error) (bool, error) {
	x := g.exec
	g.errored = true
	g.reason = err.Error()

	switch g.errorHandling {
	case api.ErrorHandlingSkip:
		slog.Warn("Step error tolerated",
			log.InstanceID(x.ID()),
			log.StepID(g.step.ID),
			log.Error(err))
		return false, nil
	case api.ErrorHandlingFinally:
		slog.Warn("Step entered finally mode",
			log.InstanceID(x.ID()),
			log.StepID(g.step.ID),
			log.Error(err))
		x.enterFinally(g.step.ID)
		return true, nil
	default:
		return true, &TerminateError{StepID: g.step.ID, Err: err}
	}
}

func (g *Group) skip(rep int, reason string) {
	g.skipped = true
	g.reason = reason
	g.record(&api.AttemptStatus{
		RepeatIndex: rep,
		State:       api.StepSkip,
		Reason:      reason,
	})
}

func (g *Group) record(a *api.AttemptStatus) {
	now := g.exec.engine.Now()
	a.StartTime = now
	a.EndTime = now
	g.exec.updateStep(g.step.ID, func(st *api.StepStatus) {
		st.Attempts = append(st.Attempts, a)
	})
}

func (g *Group) resolveControls(ctx context.Context) error {
	x := g.exec
	s := g.step

	repeat, err := x.resolveInt(ctx, s.Repeat, 1)
	if err != nil {
		return fmt.Errorf("repeat: %w", err)
	}
	retry, err := x.resolveInt(ctx, s.Retry, 0)
	if err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	timeout, err := x.resolveInt(
		ctx, s.TimeOut, x.run.stepTimeout.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	eh, err := x.resolveErrorHandling(ctx, s.ErrorHandling, x.run.errorHandling)
	if err != nil {
		return fmt.Errorf("error handling: %w", err)
	}
	finally, err := x.resolveBool(ctx, s.Finally, false)
	if err != nil {
		return fmt.Errorf("finally: %w", err)
	}

	g.repeat = int(max(repeat, 1))
	g.retry = int(max(retry, 0))
	g.timeout = time.Duration(max(timeout, 0)) * time.Millisecond
	g.errorHandling = eh
	g.finally = finally
	return nil
}

// finishGroup records the group's final state. A normal finish raises the
// step-completed key so dependents are released, a Terminate fails the
// whole context at once, and a group cut short by the end of its context
// raises nothing
func (x *Execution) finishGroup(g *Group, err error) {
	id := g.step.ID
	var term *TerminateError

	switch {
	case errors.As(err, &term):
		g.end(api.StepError, term.Err.Error())
		x.appendLog(api.LogStepFailed, "", id, err.Error())
		slog.Error("Step terminated flow",
			log.InstanceID(x.ID()),
			log.Path(x.path),
			log.StepID(id),
			log.Error(term.Err))
		x.fail(term)

	case err != nil && (x.ctx.Err() != nil || x.isDone()):
		g.end(api.StepError, err.Error())

	case err != nil:
		g.end(api.StepError, err.Error())
		x.appendLog(api.LogStepFailed, "", id, err.Error())
		slog.Error("Step failed",
			log.InstanceID(x.ID()),
			log.Path(x.path),
			log.StepID(id),
			log.Error(err))
		x.fail(err)

	default:
		state, reason := g.Outcome()
		g.end(state, reason)
		typ := api.LogStepCompleted
		if state == api.StepSkip {
			typ = api.LogStepSkipped
		}
		x.appendLog(typ, "", id, reason)
		if err := x.raise(api.StepCompletedKey(id), ""); err != nil {
			x.fail(err)
		}
	}
}

func (g *Group) end(state api.StepState, reason string) {
	now := g.exec.engine.Now()
	g.exec.updateStep(g.step.ID, func(st *api.StepStatus) {
		st.State = state
		st.Reason = reason
		st.EndTime = now
	})
}
