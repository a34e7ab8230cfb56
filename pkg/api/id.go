package api

import (
	"strings"

	"github.com/google/uuid"
)

type (
	// InstanceID uniquely identifies one running flow instance
	InstanceID string

	// StepID identifies a step within a flow definition
	StepID string

	// CheckerID identifies a shared boolean predicate within a flow
	CheckerID string

	// Name is a string identifier for data entries, inputs, and outputs
	Name string

	// Path is the chain of ancestor identifiers of a flow instance, root
	// instance first, followed by the id of every step that nests a sub-flow
	Path []string
)

// NewInstanceID generates a random instance identifier
func NewInstanceID() InstanceID {
	return InstanceID(uuid.NewString())
}

// Child returns a new Path extended by the given step id
func (p Path) Child(stepID StepID) Path {
	res := make(Path, len(p), len(p)+1)
	copy(res, p)
	return append(res, string(stepID))
}

// Root returns the instance id at the root of the path
func (p Path) Root() InstanceID {
	if len(p) == 0 {
		return ""
	}
	return InstanceID(p[0])
}

// String joins the path elements with slashes
func (p Path) String() string {
	return strings.Join(p, "/")
}
