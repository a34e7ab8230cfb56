package script

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/kode4food/sequin/pkg/api"
)

type (
	// ExprEnv provides an expr-lang checker environment. Inputs are bound
	// as variables of the same name
	ExprEnv struct {
		*compiler[*vm.Program]
	}
)

var (
	ErrExprCompile   = errors.New("expr compile error")
	ErrExprRun       = errors.New("expr run error")
	ErrExprNotBool   = errors.New("expr result is not a boolean")
	ErrExprBadScript = errors.New("expected compiled expr program")
)

// NewExprEnv creates a new expr-lang checker environment
func NewExprEnv(cacheSize int) *ExprEnv {
	return &ExprEnv{
		compiler: newCompiler(cacheSize, compileExpr),
	}
}

// EvaluatePredicate runs a compiled program. A nil result is false
func (e *ExprEnv) EvaluatePredicate(
	c Compiled, inputs api.Values,
) (bool, error) {
	program, ok := c.(*vm.Program)
	if !ok {
		return false, fmt.Errorf("%w, got %T", ErrExprBadScript, c)
	}

	res, err := catchPanic(ErrExprRun, func() (any, error) {
		return expr.Run(program, bindValues(inputs))
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrExprRun, err)
	}

	switch v := res.(type) {
	case bool:
		return v, nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %T", ErrExprNotBool, res)
	}
}

// compileExpr type-checks against an empty environment so that every input
// is untyped. Inputs are bound only at evaluation time
func compileExpr(script string, _ []api.Name) (*vm.Program, error) {
	program, err := expr.Compile(script,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExprCompile, err)
	}
	return program, nil
}
