package api

import "time"

type (
	// MonitorKind identifies which pipeline produced a MonitorEvent
	MonitorKind string

	// MonitorPhase marks whether a MonitorEvent opens or closes a scope
	MonitorPhase string

	// MonitorEvent is published by the monitor middleware for every flow,
	// step group, and attempt that starts or ends
	MonitorEvent struct {
		Time        time.Time    `json:"time"`
		Kind        MonitorKind  `json:"kind"`
		Phase       MonitorPhase `json:"phase"`
		InstanceID  InstanceID   `json:"instance_id"`
		Path        Path         `json:"path"`
		StepID      StepID       `json:"step_id,omitempty"`
		RepeatIndex int          `json:"repeat_index,omitempty"`
		RetryIndex  int          `json:"retry_index,omitempty"`
		State       string       `json:"state,omitempty"`
		Error       string       `json:"error,omitempty"`
	}
)

const (
	MonitorFlow    MonitorKind = "flow"
	MonitorGroup   MonitorKind = "group"
	MonitorAttempt MonitorKind = "attempt"
)

const (
	MonitorStart MonitorPhase = "start"
	MonitorEnd   MonitorPhase = "end"
)
