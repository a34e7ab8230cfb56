package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/sequin/internal/config"
	"github.com/kode4food/sequin/pkg/api"
)

// Wrapper wraps testify assertions with engine-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 10 * time.Millisecond

// New creates a new test assertion wrapper with both assert and require from
// testify plus engine-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// FlowSucceeded asserts that a flow result is a plain success
func (w *Wrapper) FlowSucceeded(res *api.FlowResult) {
	w.Helper()
	if !w.NotNil(res) {
		return
	}
	w.True(res.Success, "flow should succeed: %s", res.ErrorText)
	w.Equal(api.FlowCompleted, res.State)
	w.False(res.Finally)
	w.NoError(res.Error)
}

// FlowFailed asserts that a flow result is unsuccessful and, when target is
// not nil, that its error matches target
func (w *Wrapper) FlowFailed(res *api.FlowResult, target error) {
	w.Helper()
	if !w.NotNil(res) {
		return
	}
	w.False(res.Success, "flow should not succeed")
	if target != nil {
		w.ErrorIs(res.Error, target)
	}
}

// StepState asserts the final state of a step in a status snapshot
func (w *Wrapper) StepState(
	st *api.InstanceStatus, id api.StepID, expected api.StepState,
) {
	w.Helper()
	step, ok := st.Steps[id]
	if !w.True(ok, "status should contain step: %s", id) {
		return
	}
	w.Equal(expected, step.State, "step %s state", id)
}

// AttemptStates asserts the sequence of attempt states recorded for a step
func (w *Wrapper) AttemptStates(
	st *api.InstanceStatus, id api.StepID, expected ...api.StepState,
) {
	w.Helper()
	step, ok := st.Steps[id]
	if !w.True(ok, "status should contain step: %s", id) {
		return
	}
	got := make([]api.StepState, len(step.Attempts))
	for i, a := range step.Attempts {
		got[i] = a.State
	}
	w.Equal(expected, got, "step %s attempts", id)
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= 65535)
	w.True(cfg.StepTimeout >= 0)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}

// EventuallyWithError runs a condition that returns an error until it succeeds
// or times out
func (w *Wrapper) EventuallyWithError(
	condition func() error, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		err := condition()
		if err == nil {
			return
		}
		lastErr = err
		time.Sleep(DefaultRetryInterval)
	}
	if lastErr != nil {
		w.Fail(msg+": last error: "+lastErr.Error(), args...)
		return
	}
	w.Fail(msg, args...)
}
