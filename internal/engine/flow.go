package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/log"
	"github.com/kode4food/sequin/pkg/pipeline"
)

// runFlow is the innermost flow middleware. It initializes the status
// table, injects the flow-started key, and waits for the context to
// produce its result
func (e *Engine) runFlow(
	ctx context.Context, x *Execution, _ pipeline.Handler[*Execution],
) error {
	x.begin(ctx)
	defer x.end()

	if x.IsRoot() && x.run.flowTimeout > 0 {
		timeout := x.run.flowTimeout
		e.scheduler.After(ctx, x.path, timeout, func() {
			x.fail(fmt.Errorf("%w: %s", ErrFlowTimeout, timeout))
		})
	}

	slog.Debug("Flow started",
		log.InstanceID(x.ID()),
		log.Path(x.path),
		log.FlowID(x.flow.Category, x.flow.Name))

	x.setState(api.FlowRunning)
	if err := x.raise(api.FlowStartedKey, ""); err != nil {
		x.fail(err)
	}

	select {
	case <-x.done:
	case <-ctx.Done():
		x.complete(api.FlowCancelled, context.Cause(ctx))
	}

	res, _ := x.Result()
	return res.Error
}

func (x *Execution) begin(ctx context.Context) {
	x.ctx, x.cancel = context.WithCancelCause(ctx)

	x.mu.Lock()
	x.start = x.engine.Now()
	for _, s := range x.flow.Steps {
		x.steps[s.ID] = api.NewStepStatus(s)
	}
	x.mu.Unlock()

	x.engine.register(x)
	x.queue.Start()
}

// end cancels whatever step groups are still running. They observe the
// cancellation at their next repeat or retry boundary
func (x *Execution) end() {
	if x.IsRoot() && x.run.flowTimeout > 0 {
		x.engine.scheduler.Cancel(x.engine.ctx, x.path)
	}
	x.cancel(ErrFlowEnded)
	x.queue.Cancel()
	x.engine.unregister(x)
}
