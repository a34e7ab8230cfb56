package api

import (
	"strings"
	"time"
)

type (
	// EventKey identifies an event that may release waiting steps
	EventKey string

	// LogEntryType classifies an entry of a flow instance's event log
	LogEntryType string

	// LogEntry is one timestamped record of a flow instance's event log
	LogEntry struct {
		Time    time.Time    `json:"time"`
		Type    LogEntryType `json:"type"`
		Key     EventKey     `json:"key,omitempty"`
		StepID  StepID       `json:"step_id,omitempty"`
		Message string       `json:"message,omitempty"`
	}
)

const (
	// FlowStartedKey is raised once when a flow instance begins running
	FlowStartedKey EventKey = "flow:started"

	stepKeyPrefix  = "step:"
	eventKeyPrefix = "event:"
)

const (
	LogEventDispatched LogEntryType = "event_dispatched"
	LogStepLaunched    LogEntryType = "step_launched"
	LogStepSkipped     LogEntryType = "step_skipped"
	LogStepCompleted   LogEntryType = "step_completed"
	LogStepFailed      LogEntryType = "step_failed"
	LogFinallyEntered  LogEntryType = "finally_entered"
	LogFlowCompleted   LogEntryType = "flow_completed"
	LogFlowFailed      LogEntryType = "flow_failed"
	LogFlowCancelled   LogEntryType = "flow_cancelled"
)

// StepCompletedKey returns the event key raised when a step finishes
func StepCompletedKey(id StepID) EventKey {
	return EventKey(stepKeyPrefix + string(id))
}

// ExternalEventKey returns the event key raised by a named external event
func ExternalEventKey(name string) EventKey {
	return EventKey(eventKeyPrefix + name)
}

// StepID returns the step id carried by a step completion key
func (k EventKey) StepID() (StepID, bool) {
	s, ok := strings.CutPrefix(string(k), stepKeyPrefix)
	return StepID(s), ok
}

// EventName returns the external event name carried by the key
func (k EventKey) EventName() (string, bool) {
	return strings.CutPrefix(string(k), eventKeyPrefix)
}
