package assert

import (
	"testing"
	"time"

	"github.com/kode4food/sequin/internal/config"
	"github.com/kode4food/sequin/pkg/api"
)

func TestNew(t *testing.T) {
	wrapper := New(t)

	if wrapper.T != t {
		t.Error("Wrapper.T should be set to the testing.T instance")
	}
	if wrapper.Assertions == nil {
		t.Error("Wrapper.Assertions should be initialized")
	}
	if wrapper.Require == nil {
		t.Error("Wrapper.Require should be initialized")
	}
}

func TestFlowSucceeded(t *testing.T) {
	w := New(t)
	w.FlowSucceeded(&api.FlowResult{
		State:   api.FlowCompleted,
		Success: true,
	})
}

func TestFlowFailed(t *testing.T) {
	w := New(t)
	res := (&api.FlowResult{State: api.FlowFailed}).WithError(
		api.ErrDependencyCycle,
	)
	w.FlowFailed(res, api.ErrDependencyCycle)
	w.FlowFailed(res, nil)
}

func TestStepStateAndAttempts(t *testing.T) {
	w := New(t)
	st := &api.InstanceStatus{
		Steps: map[api.StepID]*api.StepStatus{
			"a": {
				StepID: "a",
				State:  api.StepError,
				Attempts: []*api.AttemptStatus{
					{State: api.StepError},
					{RetryIndex: 1, State: api.StepComplete},
				},
			},
		},
	}
	w.StepState(st, "a", api.StepError)
	w.AttemptStates(st, "a", api.StepError, api.StepComplete)
}

func TestConfigValid(t *testing.T) {
	w := New(t)
	w.ConfigValid(config.NewDefaultConfig())

	cfg := config.NewDefaultConfig()
	cfg.APIPort = 0
	w.ConfigInvalid(cfg, "invalid API port")
}

func TestEventually(t *testing.T) {
	w := New(t)
	count := 0
	w.Eventually(func() bool {
		count++
		return count >= 3
	}, time.Second, "condition should pass")
	w.Equal(3, count)
}

func TestEventuallyWithError(t *testing.T) {
	w := New(t)
	count := 0
	w.EventuallyWithError(func() error {
		count++
		if count < 2 {
			return api.ErrStepIDRequired
		}
		return nil
	}, time.Second, "condition should pass")
	w.Equal(2, count)
}
