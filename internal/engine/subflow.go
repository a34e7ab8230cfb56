package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/log"
)

// runSubFlow runs a step body that is itself a flow in a nested context
// and returns the nested flow's output data. The nested context shares the
// run's middleware but nothing else: its finally flag, status table, and
// data table are its own
func (e *Engine) runSubFlow(
	ctx context.Context, a *Attempt, in api.Values,
) (api.Values, error) {
	x := a.group.exec
	step := a.group.step

	flow, external, err := e.subFlowDefinition(ctx, x.flow, step)
	if err != nil {
		return nil, err
	}

	data := newData(flow.Data)
	for _, d := range flow.Data {
		if v, ok := in[d.Name]; ok && (d.IsInput || !external) {
			data.Set(d.Name, v)
		}
	}

	child := newExecution(e, x.run, x.path.Child(step.ID), flow, x, data)
	slog.Debug("Sub-flow starting",
		log.InstanceID(x.ID()),
		log.Path(child.path),
		log.FlowID(flow.Category, flow.Name))

	res := child.settle(x.run.flows(ctx, child))
	if !res.Success {
		return nil, fmt.Errorf("%w: %s: %w", ErrSubFlowFailed, step.ID, res.Error)
	}
	return res.Values(), nil
}

// subFlowDefinition returns the definition a flow step runs, and whether
// it was loaded from the provider rather than embedded in the parent
func (e *Engine) subFlowDefinition(
	ctx context.Context, parent *api.FlowDefinition, step *api.Step,
) (*api.FlowDefinition, bool, error) {
	if step.EffectiveKind() == api.StepKindEmbedded {
		flow, ok := parent.GetEmbeddedFlow(step.ID)
		if !ok {
			return nil, false, definitionError(
				fmt.Errorf("%w: %s", api.ErrEmbeddedFlowMissing, step.ID),
			)
		}
		return flow, false, nil
	}

	flow, err := e.provider.LoadFlowDefinition(
		ctx, step.Category, step.Implementation,
	)
	if err != nil {
		return nil, true, err
	}
	if err := e.checkFlow(flow); err != nil {
		return nil, true, err
	}
	return flow, true, nil
}

// settle guarantees the context has a result, failing it with err (or
// ErrFlowEnded) when the flow pipeline returned without producing one
func (x *Execution) settle(err error) *api.FlowResult {
	if _, ok := x.Result(); !ok {
		if err == nil {
			err = ErrFlowEnded
		}
		x.fail(err)
	}
	x.queue.Cancel()
	res, _ := x.Result()
	return res
}
