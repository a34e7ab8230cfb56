package wait_test

import (
	"testing"

	"github.com/kode4food/caravan"
	"github.com/stretchr/testify/assert"

	"github.com/kode4food/sequin/internal/assert/wait"
	"github.com/kode4food/sequin/pkg/api"
)

func TestKindFilter(t *testing.T) {
	filter := wait.Kind(api.MonitorFlow, api.MonitorGroup)
	assert.False(t, filter(nil))
	assert.True(t, filter(&api.MonitorEvent{Kind: api.MonitorFlow}))
	assert.True(t, filter(&api.MonitorEvent{Kind: api.MonitorGroup}))
	assert.False(t, filter(&api.MonitorEvent{Kind: api.MonitorAttempt}))
}

func TestStepFilter(t *testing.T) {
	filter := wait.Step("a", "b")
	assert.True(t, filter(&api.MonitorEvent{StepID: "a"}))
	assert.True(t, filter(&api.MonitorEvent{StepID: "b"}))
	assert.False(t, filter(&api.MonitorEvent{StepID: "c"}))
}

func TestFlowEndedFilter(t *testing.T) {
	filter := wait.FlowEnded("run-1")
	assert.True(t, filter(&api.MonitorEvent{
		Kind:       api.MonitorFlow,
		Phase:      api.MonitorEnd,
		InstanceID: "run-1",
		Path:       api.Path{"run-1"},
	}))
	assert.False(t, filter(&api.MonitorEvent{
		Kind:       api.MonitorFlow,
		Phase:      api.MonitorEnd,
		InstanceID: "run-1",
		Path:       api.Path{"run-1", "sub"},
	}))
	assert.False(t, filter(&api.MonitorEvent{
		Kind:       api.MonitorFlow,
		Phase:      api.MonitorStart,
		InstanceID: "run-1",
		Path:       api.Path{"run-1"},
	}))
}

func TestWaitForEvents(t *testing.T) {
	top := caravan.NewTopic[*api.MonitorEvent]()
	consumer := top.NewConsumer()
	defer consumer.Close()
	producer := top.NewProducer()
	defer producer.Close()

	go func() {
		producer.Send() <- &api.MonitorEvent{
			Kind: api.MonitorAttempt, Phase: api.MonitorStart, StepID: "x",
		}
		producer.Send() <- &api.MonitorEvent{
			Kind: api.MonitorAttempt, Phase: api.MonitorStart, StepID: "a",
		}
		producer.Send() <- &api.MonitorEvent{
			Kind: api.MonitorAttempt, Phase: api.MonitorStart, StepID: "a",
		}
	}()

	evs := wait.On(t, consumer).ForEvents(2, wait.AttemptStarted("a"))
	assert.Len(t, evs, 2)
	assert.Equal(t, api.StepID("a"), evs[1].StepID)
}
