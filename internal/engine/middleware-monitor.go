package engine

import (
	"context"

	"github.com/kode4food/sequin/internal/engine/runopt"
	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/pipeline"
)

// monitorService publishes a MonitorEvent when each flow, step group, and
// attempt starts and ends
type monitorService struct {
	engine *Engine
}

func newMonitorService(e *Engine, _ *runopt.Options) (any, error) {
	return &monitorService{engine: e}, nil
}

func (s *monitorService) FlowMiddleware() FlowMiddleware {
	return pipeline.Func[*Execution](
		func(
			ctx context.Context, x *Execution, next pipeline.Handler[*Execution],
		) error {
			s.publish(x, api.MonitorFlow, api.MonitorStart, "", nil)
			err := next(ctx, x)
			state := ""
			if res, ok := x.Result(); ok {
				state = string(res.State)
			}
			s.publish(x, api.MonitorFlow, api.MonitorEnd, state, err)
			return err
		},
	)
}

func (s *monitorService) GroupMiddleware() GroupMiddleware {
	return pipeline.Func[*Group](
		func(ctx context.Context, g *Group, next pipeline.Handler[*Group]) error {
			s.publishStep(g.exec, &api.MonitorEvent{
				Kind:   api.MonitorGroup,
				Phase:  api.MonitorStart,
				StepID: g.step.ID,
			}, nil)
			err := next(ctx, g)
			state, _ := g.Outcome()
			if err != nil {
				state = api.StepError
			}
			s.publishStep(g.exec, &api.MonitorEvent{
				Kind:   api.MonitorGroup,
				Phase:  api.MonitorEnd,
				StepID: g.step.ID,
				State:  string(state),
			}, err)
			return err
		},
	)
}

func (s *monitorService) AttemptMiddleware() AttemptMiddleware {
	return pipeline.Func[*Attempt](
		func(
			ctx context.Context, a *Attempt, next pipeline.Handler[*Attempt],
		) error {
			ev := func(phase api.MonitorPhase, state api.StepState) *api.MonitorEvent {
				return &api.MonitorEvent{
					Kind:        api.MonitorAttempt,
					Phase:       phase,
					StepID:      a.StepID(),
					RepeatIndex: a.repeat,
					RetryIndex:  a.retry,
					State:       string(state),
				}
			}
			s.publishStep(a.group.exec, ev(api.MonitorStart, api.StepStart), nil)
			err := next(ctx, a)
			state := api.StepComplete
			if err != nil {
				state = api.StepError
			}
			s.publishStep(a.group.exec, ev(api.MonitorEnd, state), err)
			return err
		},
	)
}

func (s *monitorService) publish(
	x *Execution, kind api.MonitorKind, phase api.MonitorPhase, state string,
	err error,
) {
	s.publishStep(x, &api.MonitorEvent{
		Kind:  kind,
		Phase: phase,
		State: state,
	}, err)
}

func (s *monitorService) publishStep(
	x *Execution, ev *api.MonitorEvent, err error,
) {
	ev.Time = s.engine.Now()
	ev.InstanceID = x.ID()
	ev.Path = x.path
	if err != nil {
		ev.Error = err.Error()
	}
	s.engine.publish(ev)
}
