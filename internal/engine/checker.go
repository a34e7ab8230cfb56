package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/kode4food/sequin/pkg/api"
)

// EvaluateChecker resolves a checker's inputs and evaluates its predicate
func (x *Execution) EvaluateChecker(
	ctx context.Context, id api.CheckerID,
) (bool, error) {
	c, ok := x.flow.GetChecker(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", api.ErrUnknownChecker, id)
	}
	in, err := x.ResolveInputs(ctx, c.Inputs)
	if err != nil {
		return false, fmt.Errorf("checker %s: %w", id, err)
	}
	res, err := callSafely(func() (bool, error) {
		return x.engine.scripts.EvaluatePredicate(c.Language, c.Script, in)
	})
	if err != nil {
		return false, fmt.Errorf("checker %s: %w", id, err)
	}
	return res, nil
}

// checkIfs evaluates the step's skip conditions in id order. The first
// checker that disagrees with its expected value names the skip reason
func (x *Execution) checkIfs(
	ctx context.Context, step *api.Step,
) (bool, string, error) {
	for _, id := range slices.Sorted(maps.Keys(step.Ifs)) {
		res, err := x.EvaluateChecker(ctx, id)
		if err != nil {
			return false, "", err
		}
		if res != step.Ifs[id] {
			return false, x.checkerName(id), nil
		}
	}
	return true, "", nil
}

// evaluateConditions evaluates the step's audit-only checkers. Failures
// are recorded rather than raised
func (x *Execution) evaluateConditions(
	ctx context.Context, step *api.Step,
) api.Values {
	if len(step.AdditionalConditions) == 0 {
		return nil
	}
	res := make(api.Values, len(step.AdditionalConditions))
	for _, id := range slices.Sorted(maps.Keys(step.AdditionalConditions)) {
		name := api.Name(x.checkerName(id))
		v, err := x.EvaluateChecker(ctx, id)
		if err != nil {
			res[name] = "error: " + err.Error()
			continue
		}
		res[name] = strconv.FormatBool(v)
	}
	return res
}

func (x *Execution) checkerName(id api.CheckerID) string {
	if c, ok := x.flow.GetChecker(id); ok && c.Name != "" {
		return c.Name
	}
	return string(id)
}
