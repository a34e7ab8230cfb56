package engine

import (
	"errors"
	"log/slog"

	"github.com/kode4food/sequin/internal/engine/event"
	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/log"
)

// raise hands an event key to the dispatcher. Keys raised after the
// context has ended are dropped
func (x *Execution) raise(key api.EventKey, payload string) error {
	err := x.queue.Enqueue(key, payload)
	if errors.Is(err, event.ErrQueueClosed) {
		return nil
	}
	return err
}

func (x *Execution) dispatch(batch []event.Event) error {
	for _, ev := range batch {
		x.dispatchKey(ev.Key)
	}
	return nil
}

// dispatchKey removes the key from the remaining waits of every step that
// depends on it and launches each step whose waits just became empty. A
// step is launched at most once because a key is only removed if present
func (x *Execution) dispatchKey(key api.EventKey) {
	if x.isDone() {
		return
	}
	x.appendLog(api.LogEventDispatched, key, "", "")

	var ready []api.StepID
	x.mu.Lock()
	for _, id := range x.deps[key] {
		st := x.steps[id]
		if !st.Waits.Contains(key) {
			continue
		}
		st.Waits.Remove(key)
		if st.Waits.IsEmpty() {
			ready = append(ready, id)
		}
	}
	x.mu.Unlock()

	for _, id := range ready {
		x.launch(id)
	}
	x.checkCompletion()
}

// checkCompletion signals success once every step has ended while the
// context is still running
func (x *Execution) checkCompletion() {
	x.mu.RLock()
	if x.state != api.FlowRunning {
		x.mu.RUnlock()
		return
	}
	for _, st := range x.steps {
		if !st.IsEnded() {
			x.mu.RUnlock()
			return
		}
	}
	x.mu.RUnlock()
	x.succeeded()
}

func (x *Execution) launch(id api.StepID) {
	step, ok := x.flow.GetStep(id)
	if !ok {
		return
	}
	g := newGroup(x, step)
	x.appendLog(api.LogStepLaunched, "", id, "")
	slog.Debug("Step launched",
		log.InstanceID(x.ID()),
		log.Path(x.path),
		log.StepID(id))

	x.engine.wg.Go(func() {
		err := x.run.groups(x.ctx, g)
		x.finishGroup(g, err)
	})
}
