package wait

import (
	"testing"
	"time"

	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/util"
)

type (
	Wait struct {
		t        *testing.T
		consumer topic.Consumer[*api.MonitorEvent]
		timeout  time.Duration
	}

	EventFilter func(*api.MonitorEvent) bool
)

const DefaultTimeout = time.Second * 5

func On(t *testing.T, consumer topic.Consumer[*api.MonitorEvent]) *Wait {
	return &Wait{
		t:        t,
		consumer: consumer,
		timeout:  DefaultTimeout,
	}
}

func (w *Wait) WithTimeout(timeout time.Duration) *Wait {
	res := *w
	res.timeout = timeout
	return &res
}

// ForEvents waits for matching events from the consumer, returning them
func (w *Wait) ForEvents(count int, filter EventFilter) []*api.MonitorEvent {
	w.t.Helper()

	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()

	var res []*api.MonitorEvent
	for len(res) < count {
		select {
		case ev, ok := <-w.consumer.Receive():
			if !ok {
				w.t.Fatalf(
					"monitor consumer closed before receiving %d events", count,
				)
			}
			if !filter(ev) {
				continue
			}
			res = append(res, ev)
		case <-deadline.C:
			w.t.Fatalf("timeout waiting for %d events", count)
		}
	}
	return res
}

// ForEvent waits for a single matching event
func (w *Wait) ForEvent(filter EventFilter) *api.MonitorEvent {
	w.t.Helper()
	return w.ForEvents(1, filter)[0]
}

// And composes event filters and returns true when all match
func And(filters ...EventFilter) EventFilter {
	return func(ev *api.MonitorEvent) bool {
		for _, filter := range filters {
			if !filter(ev) {
				return false
			}
		}
		return true
	}
}

// Kind matches events produced by the given pipelines
func Kind(kinds ...api.MonitorKind) EventFilter {
	lookup := util.SetOf(kinds...)
	return func(ev *api.MonitorEvent) bool {
		return ev != nil && lookup.Contains(ev.Kind)
	}
}

// Phase matches events of the given phase
func Phase(phase api.MonitorPhase) EventFilter {
	return func(ev *api.MonitorEvent) bool {
		return ev != nil && ev.Phase == phase
	}
}

// Instance matches events of the given root instance
func Instance(id api.InstanceID) EventFilter {
	return func(ev *api.MonitorEvent) bool {
		return ev != nil && ev.InstanceID == id
	}
}

// Step matches events of the given steps
func Step(ids ...api.StepID) EventFilter {
	lookup := util.SetOf(ids...)
	return func(ev *api.MonitorEvent) bool {
		return ev != nil && lookup.Contains(ev.StepID)
	}
}

// Root matches events raised by root flow contexts
func Root() EventFilter {
	return func(ev *api.MonitorEvent) bool {
		return ev != nil && len(ev.Path) == 1
	}
}

// FlowEnded matches the end of the root flow of an instance
func FlowEnded(id api.InstanceID) EventFilter {
	return And(
		Kind(api.MonitorFlow), Phase(api.MonitorEnd), Instance(id), Root(),
	)
}

// AttemptStarted matches the start of attempts of the given steps
func AttemptStarted(ids ...api.StepID) EventFilter {
	return And(Kind(api.MonitorAttempt), Phase(api.MonitorStart), Step(ids...))
}

// GroupEnded matches the end of the given steps
func GroupEnded(ids ...api.StepID) EventFilter {
	return And(Kind(api.MonitorGroup), Phase(api.MonitorEnd), Step(ids...))
}
