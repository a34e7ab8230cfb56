package api

import (
	"slices"
	"strings"
)

type (
	// StepKind determines how a step body is dispatched
	StepKind string

	// InputMode determines how an Input without a converter is resolved
	InputMode string

	// OutputMode determines where a produced output is delivered
	OutputMode string

	// WaitType identifies which kind of event a step waits on
	WaitType string

	// ErrorHandling is the escalation policy applied once a step has
	// exhausted its retry budget
	ErrorHandling string

	// FlowDefinition is the immutable template of a flow
	FlowDefinition struct {
		Category      string            `json:"category" yaml:"category"`
		Name          string            `json:"name" yaml:"name"`
		Description   string            `json:"description,omitempty" yaml:"description,omitempty"`
		Steps         []*Step           `json:"steps" yaml:"steps"`
		Checkers      []*Checker        `json:"checkers,omitempty" yaml:"checkers,omitempty"`
		Data          []*DataDefinition `json:"data,omitempty" yaml:"data,omitempty"`
		EmbeddedFlows []*EmbeddedFlow   `json:"embedded_flows,omitempty" yaml:"embedded_flows,omitempty"`
	}

	// EmbeddedFlow is a sub-flow inlined into its parent, keyed by the id of
	// the step that owns it
	EmbeddedFlow struct {
		StepID StepID          `json:"step_id" yaml:"step_id"`
		Flow   *FlowDefinition `json:"flow" yaml:"flow"`
	}

	// Step is one node of the flow graph
	Step struct {
		ID                   StepID             `json:"id" yaml:"id"`
		Name                 string             `json:"name,omitempty" yaml:"name,omitempty"`
		Kind                 StepKind           `json:"kind,omitempty" yaml:"kind,omitempty"`
		Category             string             `json:"category" yaml:"category"`
		Implementation       string             `json:"implementation" yaml:"implementation"`
		Inputs               []*Input           `json:"inputs,omitempty" yaml:"inputs,omitempty"`
		Outputs              []*Output          `json:"outputs,omitempty" yaml:"outputs,omitempty"`
		TimeOut              *Input             `json:"timeout,omitempty" yaml:"timeout,omitempty"`
		Retry                *Input             `json:"retry,omitempty" yaml:"retry,omitempty"`
		Repeat               *Input             `json:"repeat,omitempty" yaml:"repeat,omitempty"`
		ErrorHandling        *Input             `json:"error_handling,omitempty" yaml:"error_handling,omitempty"`
		Finally              *Input             `json:"finally,omitempty" yaml:"finally,omitempty"`
		Ifs                  map[CheckerID]bool `json:"ifs,omitempty" yaml:"ifs,omitempty"`
		AdditionalConditions map[CheckerID]bool `json:"additional_conditions,omitempty" yaml:"additional_conditions,omitempty"`
		WaitEvents           []*Wait            `json:"wait_events,omitempty" yaml:"wait_events,omitempty"`
	}

	// Input is an expression resolved to a string by the value resolver
	Input struct {
		Name      Name          `json:"name" yaml:"name"`
		Mode      InputMode     `json:"mode,omitempty" yaml:"mode,omitempty"`
		Value     string        `json:"value,omitempty" yaml:"value,omitempty"`
		Converter *ConverterRef `json:"converter,omitempty" yaml:"converter,omitempty"`
	}

	// ConverterRef names a pluggable converter along with its own inputs
	ConverterRef struct {
		Category string   `json:"category" yaml:"category"`
		Name     string   `json:"name" yaml:"name"`
		Inputs   []*Input `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	}

	// Output describes the delivery of one named value produced by a step
	Output struct {
		Name      Name          `json:"name" yaml:"name"`
		Mode      OutputMode    `json:"mode,omitempty" yaml:"mode,omitempty"`
		Target    Name          `json:"target,omitempty" yaml:"target,omitempty"`
		Converter *ConverterRef `json:"converter,omitempty" yaml:"converter,omitempty"`
	}

	// Wait describes one event a step must observe before it may launch
	Wait struct {
		Type   WaitType `json:"type" yaml:"type"`
		StepID StepID   `json:"step_id,omitempty" yaml:"step_id,omitempty"`
		Event  string   `json:"event,omitempty" yaml:"event,omitempty"`
	}

	// Checker is a named boolean predicate shared by the steps of a flow
	Checker struct {
		ID       CheckerID `json:"id" yaml:"id"`
		Name     string    `json:"name,omitempty" yaml:"name,omitempty"`
		Language string    `json:"language,omitempty" yaml:"language,omitempty"`
		Script   string    `json:"script" yaml:"script"`
		Inputs   []*Input  `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	}

	// DataDefinition declares one entry of the global data table
	DataDefinition struct {
		Name     Name   `json:"name" yaml:"name"`
		Type     string `json:"type,omitempty" yaml:"type,omitempty"`
		IsInput  bool   `json:"is_input,omitempty" yaml:"is_input,omitempty"`
		IsOutput bool   `json:"is_output,omitempty" yaml:"is_output,omitempty"`
		Default  string `json:"default,omitempty" yaml:"default,omitempty"`
		Options  string `json:"options,omitempty" yaml:"options,omitempty"`
	}
)

const (
	StepKindStep     StepKind = "step"
	StepKindEmbedded StepKind = "embedded"
	StepKindFlow     StepKind = "flow"
)

const (
	InputLiteral InputMode = "literal"
	InputData    InputMode = "data"
	InputEvent   InputMode = "event"
)

const (
	OutputDrop      OutputMode = "drop"
	OutputData      OutputMode = "data"
	OutputConverter OutputMode = "converter"
)

const (
	WaitFlowStart WaitType = "flow_start"
	WaitStep      WaitType = "step"
	WaitEvent     WaitType = "event"
)

const (
	ErrorHandlingSkip      ErrorHandling = "Skip"
	ErrorHandlingFinally   ErrorHandling = "Finally"
	ErrorHandlingTerminate ErrorHandling = "Terminate"
)

// Literal creates an Input that always resolves to the given value
func Literal(value string) *Input {
	return &Input{Mode: InputLiteral, Value: value}
}

// DataRef creates an Input that reads the named global data entry
func DataRef(name Name) *Input {
	return &Input{Mode: InputData, Value: string(name)}
}

// EventRef creates an Input that reads the payload of a named external
// event
func EventRef(event string) *Input {
	return &Input{Mode: InputEvent, Value: event}
}

// Named returns a copy of the Input carrying the given name
func (i *Input) Named(name Name) *Input {
	res := *i
	res.Name = name
	return &res
}

// ParseErrorHandling converts a resolved string into an ErrorHandling policy
func ParseErrorHandling(s string) (ErrorHandling, bool) {
	for _, eh := range []ErrorHandling{
		ErrorHandlingSkip, ErrorHandlingFinally, ErrorHandlingTerminate,
	} {
		if strings.EqualFold(s, string(eh)) {
			return eh, true
		}
	}
	return "", false
}

// EffectiveKind returns the step kind, defaulting to StepKindStep
func (s *Step) EffectiveKind() StepKind {
	if s.Kind == "" {
		return StepKindStep
	}
	return s.Kind
}

// IsFlow returns whether the step body is itself a flow
func (s *Step) IsFlow() bool {
	k := s.EffectiveKind()
	return k == StepKindEmbedded || k == StepKindFlow
}

// DisplayName returns the step name, or its id when it has none
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.ID)
}

// GetOutput returns the Output with the given name
func (s *Step) GetOutput(name Name) (*Output, bool) {
	for _, out := range s.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return nil, false
}

// EffectiveWaits returns the step's wait descriptors. A step that declares
// none waits on the flow start
func (s *Step) EffectiveWaits() []*Wait {
	if len(s.WaitEvents) == 0 {
		return []*Wait{{Type: WaitFlowStart}}
	}
	return s.WaitEvents
}

// Key returns the event key that satisfies the wait
func (w *Wait) Key() EventKey {
	switch w.Type {
	case WaitStep:
		return StepCompletedKey(w.StepID)
	case WaitEvent:
		return ExternalEventKey(w.Event)
	default:
		return FlowStartedKey
	}
}

// GetStep returns the step with the given id
func (f *FlowDefinition) GetStep(id StepID) (*Step, bool) {
	for _, s := range f.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// GetChecker returns the checker with the given id
func (f *FlowDefinition) GetChecker(id CheckerID) (*Checker, bool) {
	for _, c := range f.Checkers {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// GetData returns the data definition with the given name
func (f *FlowDefinition) GetData(name Name) (*DataDefinition, bool) {
	for _, d := range f.Data {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// GetEmbeddedFlow returns the embedded flow owned by the given step
func (f *FlowDefinition) GetEmbeddedFlow(id StepID) (*FlowDefinition, bool) {
	for _, e := range f.EmbeddedFlows {
		if e.StepID == id && e.Flow != nil {
			return e.Flow, true
		}
	}
	return nil, false
}

// Inputs returns the data definitions flagged as inputs
func (f *FlowDefinition) Inputs() []*DataDefinition {
	return slices.DeleteFunc(slices.Clone(f.Data), func(d *DataDefinition) bool {
		return !d.IsInput
	})
}

// Outputs returns the data definitions flagged as outputs
func (f *FlowDefinition) Outputs() []*DataDefinition {
	return slices.DeleteFunc(slices.Clone(f.Data), func(d *DataDefinition) bool {
		return !d.IsOutput
	})
}
