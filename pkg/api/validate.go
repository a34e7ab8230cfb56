package api

import (
	"errors"
	"fmt"

	"github.com/kode4food/sequin/pkg/util"
)

var (
	ErrFlowDefinitionRequired = errors.New("flow definition required")
	ErrStepIDRequired         = errors.New("step id required")
	ErrDuplicateStepID        = errors.New("duplicate step id")
	ErrDuplicateCheckerID     = errors.New("duplicate checker id")
	ErrDuplicateDataName      = errors.New("duplicate data name")
	ErrUnknownWaitStep        = errors.New("wait references unknown step")
	ErrEventNameRequired      = errors.New("wait event name required")
	ErrInvalidWaitType        = errors.New("invalid wait type")
	ErrUnknownChecker         = errors.New("unknown checker")
	ErrInvalidStepKind        = errors.New("invalid step kind")
	ErrImplementationRequired = errors.New("step implementation required")
	ErrEmbeddedFlowMissing    = errors.New("embedded flow missing")
	ErrDependencyCycle        = errors.New("dependency cycle")
	ErrOutputTargetRequired   = errors.New("output target required")
)

// Validate checks the structural soundness of a flow definition, including
// the absence of cycles in its wait graph. Embedded flows are validated
// recursively
func (f *FlowDefinition) Validate() error {
	if f == nil {
		return ErrFlowDefinitionRequired
	}

	steps := util.Set[StepID]{}
	for _, s := range f.Steps {
		if s.ID == "" {
			return ErrStepIDRequired
		}
		if steps.Contains(s.ID) {
			return fmt.Errorf("%w: %s", ErrDuplicateStepID, s.ID)
		}
		steps.Add(s.ID)
	}

	checkers := util.Set[CheckerID]{}
	for _, c := range f.Checkers {
		if checkers.Contains(c.ID) {
			return fmt.Errorf("%w: %s", ErrDuplicateCheckerID, c.ID)
		}
		checkers.Add(c.ID)
	}

	names := util.Set[Name]{}
	for _, d := range f.Data {
		if names.Contains(d.Name) {
			return fmt.Errorf("%w: %s", ErrDuplicateDataName, d.Name)
		}
		names.Add(d.Name)
	}

	for _, s := range f.Steps {
		if err := f.validateStep(s, steps, checkers); err != nil {
			return fmt.Errorf("step %s: %w", s.ID, err)
		}
	}

	for _, e := range f.EmbeddedFlows {
		if err := e.Flow.Validate(); err != nil {
			return fmt.Errorf("embedded flow %s: %w", e.StepID, err)
		}
	}

	return f.checkCycles()
}

func (f *FlowDefinition) validateStep(
	s *Step, steps util.Set[StepID], checkers util.Set[CheckerID],
) error {
	switch s.EffectiveKind() {
	case StepKindStep, StepKindFlow:
		if s.Category == "" || s.Implementation == "" {
			return ErrImplementationRequired
		}
	case StepKindEmbedded:
		if _, ok := f.GetEmbeddedFlow(s.ID); !ok {
			return ErrEmbeddedFlowMissing
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStepKind, s.Kind)
	}

	for _, w := range s.WaitEvents {
		switch w.Type {
		case WaitFlowStart:
		case WaitStep:
			if !steps.Contains(w.StepID) {
				return fmt.Errorf("%w: %s", ErrUnknownWaitStep, w.StepID)
			}
		case WaitEvent:
			if w.Event == "" {
				return ErrEventNameRequired
			}
		default:
			return fmt.Errorf("%w: %s", ErrInvalidWaitType, w.Type)
		}
	}

	for id := range s.Ifs {
		if !checkers.Contains(id) {
			return fmt.Errorf("%w: %s", ErrUnknownChecker, id)
		}
	}
	for id := range s.AdditionalConditions {
		if !checkers.Contains(id) {
			return fmt.Errorf("%w: %s", ErrUnknownChecker, id)
		}
	}

	for _, out := range s.Outputs {
		switch out.Mode {
		case OutputData, OutputConverter:
			if out.Target == "" {
				return fmt.Errorf("%w: %s", ErrOutputTargetRequired, out.Name)
			}
		}
	}
	return nil
}

func (f *FlowDefinition) checkCycles() error {
	const (
		unvisited = iota
		visiting
		visited
	)

	deps := map[StepID][]StepID{}
	for _, s := range f.Steps {
		for _, w := range s.WaitEvents {
			if w.Type == WaitStep {
				deps[s.ID] = append(deps[s.ID], w.StepID)
			}
		}
	}

	marks := map[StepID]int{}
	var visit func(id StepID) error
	visit = func(id StepID) error {
		switch marks[id] {
		case visiting:
			return fmt.Errorf("%w: %s", ErrDependencyCycle, id)
		case visited:
			return nil
		}
		marks[id] = visiting
		for _, dep := range deps[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		marks[id] = visited
		return nil
	}

	for _, s := range f.Steps {
		if err := visit(s.ID); err != nil {
			return err
		}
	}
	return nil
}
