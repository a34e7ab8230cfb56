package helpers

import (
	"context"
	"errors"
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/capability"
)

// StepRecorder backs the "test" step category and records every call made
// to it, keyed by the path of the calling context and the step id
type StepRecorder struct {
	mu    sync.Mutex
	calls map[string][]api.Values
}

const (
	// TestCategory is the category of the recording test steps
	TestCategory = "test"

	// StepEcho produces its inputs as outputs
	StepEcho = "echo"

	// StepFail always fails with ErrTestStep
	StepFail = "fail"

	// StepSleep waits for the "delay" input in milliseconds
	StepSleep = "sleep"

	// StepStubborn sleeps for the "delay" input in milliseconds without
	// observing cancellation, then echoes its inputs
	StepStubborn = "stubborn"

	// StepFlaky fails until it has been called "succeed_after" times for
	// the same step
	StepFlaky = "flaky"

	// StepPanic panics
	StepPanic = "panic"
)

var ErrTestStep = errors.New("test step failed")

// NewStepRecorder creates an empty StepRecorder
func NewStepRecorder() *StepRecorder {
	return &StepRecorder{
		calls: map[string][]api.Values{},
	}
}

// Register adds the recording test steps to the registries
func (r *StepRecorder) Register(caps *capability.Registries) error {
	steps := map[string]capability.StepFunc{
		StepEcho:     r.echo,
		StepFail:     r.fail,
		StepSleep:    r.sleep,
		StepStubborn: r.stubborn,
		StepFlaky:    r.flaky,
		StepPanic:    r.panic,
	}
	var errs []error
	for name, fn := range steps {
		errs = append(errs, caps.Steps.Register(TestCategory, name, fn))
	}
	return errors.Join(errs...)
}

// Calls returns how many times the step was called at the root of any
// instance
func (r *StepRecorder) Calls(id api.StepID) int {
	return len(r.Inputs(id))
}

// Inputs returns the inputs of every call made to the step
func (r *StepRecorder) Inputs(id api.StepID) []api.Values {
	return r.InputsAt(nil, id)
}

// InputsAt returns the inputs of every call made to the step from a
// sub-flow. The path excludes the root instance id
func (r *StepRecorder) InputsAt(path []string, id api.StepID) []api.Values {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.Values{}, r.calls[recordKey(path, id)]...)
}

func (r *StepRecorder) record(sc capability.StepContext, in api.Values) int {
	key := recordKey(sc.Path()[1:], sc.StepID())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[key] = append(r.calls[key], maps.Clone(in))
	return len(r.calls[key])
}

func recordKey(path []string, id api.StepID) string {
	res := ""
	for _, p := range path {
		res += p + "/"
	}
	return res + string(id)
}

func (r *StepRecorder) echo(
	_ context.Context, sc capability.StepContext, in api.Values,
) (api.Values, error) {
	r.record(sc, in)
	return maps.Clone(in), nil
}

func (r *StepRecorder) fail(
	_ context.Context, sc capability.StepContext, in api.Values,
) (api.Values, error) {
	r.record(sc, in)
	return nil, ErrTestStep
}

func (r *StepRecorder) sleep(
	ctx context.Context, sc capability.StepContext, in api.Values,
) (api.Values, error) {
	r.record(sc, in)
	delay := time.Duration(in.GetInt("delay", 0)) * time.Millisecond
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return maps.Clone(in), nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

func (r *StepRecorder) stubborn(
	_ context.Context, sc capability.StepContext, in api.Values,
) (api.Values, error) {
	r.record(sc, in)
	time.Sleep(time.Duration(in.GetInt("delay", 0)) * time.Millisecond)
	return maps.Clone(in), nil
}

func (r *StepRecorder) flaky(
	_ context.Context, sc capability.StepContext, in api.Values,
) (api.Values, error) {
	n := r.record(sc, in)
	if n < in.GetInt("succeed_after", 1) {
		return nil, ErrTestStep
	}
	return api.Values{"calls": strconv.Itoa(n)}, nil
}

func (r *StepRecorder) panic(
	_ context.Context, sc capability.StepContext, in api.Values,
) (api.Values, error) {
	r.record(sc, in)
	panic("test step panicked")
}

// NewFlow creates a flow definition in the "test" category
func NewFlow(name string, steps ...*api.Step) *api.FlowDefinition {
	return &api.FlowDefinition{
		Category: TestCategory,
		Name:     name,
		Steps:    steps,
	}
}

// NewStep creates a step backed by one of the recording test steps
func NewStep(id api.StepID, impl string, waits ...*api.Wait) *api.Step {
	return &api.Step{
		ID:             id,
		Category:       TestCategory,
		Implementation: impl,
		WaitEvents:     waits,
	}
}

// AfterStep creates a wait on another step's completion
func AfterStep(id api.StepID) *api.Wait {
	return &api.Wait{Type: api.WaitStep, StepID: id}
}

// OnEvent creates a wait on a named external event
func OnEvent(name string) *api.Wait {
	return &api.Wait{Type: api.WaitEvent, Event: name}
}

// OnStart creates a wait on the flow start
func OnStart() *api.Wait {
	return &api.Wait{Type: api.WaitFlowStart}
}

// ToData creates an Output written to the named global data entry
func ToData(name, target api.Name) *api.Output {
	return &api.Output{Name: name, Mode: api.OutputData, Target: target}
}
