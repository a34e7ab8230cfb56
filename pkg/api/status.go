package api

import (
	"maps"
	"slices"
	"time"

	"github.com/kode4food/sequin/pkg/util"
)

type (
	// FlowState is the lifecycle state of a flow instance
	FlowState string

	// StepState is the lifecycle state of a step or of one of its attempts
	StepState string

	// StepStatus is the run-time record of one step within one flow
	// instance. It exists before the run starts and is only ever mutated
	StepStatus struct {
		StepID        StepID             `json:"step_id"`
		State         StepState          `json:"state,omitempty"`
		Reason        string             `json:"reason,omitempty"`
		Repeat        int                `json:"repeat"`
		Retry         int                `json:"retry"`
		TimeOut       time.Duration      `json:"timeout"`
		ErrorHandling ErrorHandling      `json:"error_handling,omitempty"`
		Finally       bool               `json:"finally"`
		StartTime     time.Time          `json:"start_time,omitzero"`
		EndTime       time.Time          `json:"end_time,omitzero"`
		Waits         util.Set[EventKey] `json:"waits"`
		Attempts      []*AttemptStatus   `json:"attempts,omitempty"`
	}

	// AttemptStatus is the record of one repeat-index by retry-index attempt
	AttemptStatus struct {
		RepeatIndex int       `json:"repeat_index"`
		RetryIndex  int       `json:"retry_index"`
		State       StepState `json:"state"`
		Reason      string    `json:"reason,omitempty"`
		Error       string    `json:"error,omitempty"`
		StartTime   time.Time `json:"start_time,omitzero"`
		EndTime     time.Time `json:"end_time,omitzero"`
		Inputs      Values    `json:"inputs,omitempty"`
		Outputs     Values    `json:"outputs,omitempty"`
		Conditions  Values    `json:"conditions,omitempty"`
	}

	// InstanceStatus is a point-in-time snapshot of a flow instance
	InstanceStatus struct {
		ID        InstanceID             `json:"id"`
		Path      Path                   `json:"path"`
		Category  string                 `json:"category"`
		Name      string                 `json:"name"`
		State     FlowState              `json:"state"`
		Finally   bool                   `json:"finally"`
		StartTime time.Time              `json:"start_time,omitzero"`
		Steps     map[StepID]*StepStatus `json:"steps"`
		Data      map[Name]Value         `json:"data"`
		Log       []LogEntry             `json:"log,omitempty"`
		Children  []*InstanceStatus      `json:"children,omitempty"`
	}
)

const (
	FlowReady     FlowState = "ready"
	FlowRunning   FlowState = "running"
	FlowCompleted FlowState = "completed"
	FlowFailed    FlowState = "failed"
	FlowCancelled FlowState = "cancelled"
)

const (
	StepStart    StepState = "Start"
	StepSkip     StepState = "Skip"
	StepComplete StepState = "Complete"
	StepError    StepState = "Error"
)

// NewStepStatus creates the initial status of a step, copying its wait
// descriptors into the remaining-waits set
func NewStepStatus(step *Step) *StepStatus {
	waits := util.Set[EventKey]{}
	for _, w := range step.EffectiveWaits() {
		waits.Add(w.Key())
	}
	return &StepStatus{
		StepID: step.ID,
		Waits:  waits,
	}
}

// IsEnded returns whether the step has recorded an end time
func (s *StepStatus) IsEnded() bool {
	return !s.EndTime.IsZero()
}

// LastAttempt returns the most recently recorded attempt
func (s *StepStatus) LastAttempt() (*AttemptStatus, bool) {
	if len(s.Attempts) == 0 {
		return nil, false
	}
	return s.Attempts[len(s.Attempts)-1], true
}

// Clone returns a deep copy of the status
func (s *StepStatus) Clone() *StepStatus {
	res := *s
	res.Waits = maps.Clone(s.Waits)
	res.Attempts = make([]*AttemptStatus, len(s.Attempts))
	for i, a := range s.Attempts {
		res.Attempts[i] = a.Clone()
	}
	return &res
}

// Clone returns a deep copy of the attempt status
func (a *AttemptStatus) Clone() *AttemptStatus {
	res := *a
	res.Inputs = maps.Clone(a.Inputs)
	res.Outputs = maps.Clone(a.Outputs)
	res.Conditions = maps.Clone(a.Conditions)
	return &res
}

// IsTerminal returns whether the flow state is final
func (s FlowState) IsTerminal() bool {
	return slices.Contains(
		[]FlowState{FlowCompleted, FlowFailed, FlowCancelled}, s,
	)
}
