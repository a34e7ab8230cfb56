package script

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kode4food/ale"
	"github.com/kode4food/ale/core/bootstrap"
	"github.com/kode4food/ale/data"
	"github.com/kode4food/ale/env"
	"github.com/kode4food/ale/eval"

	"github.com/kode4food/sequin/pkg/api"
)

type (
	// AleEnv provides an Ale checker environment. Each predicate is
	// compiled into a lambda over the checker's sorted input names
	AleEnv struct {
		*compiler[*CompiledAle]
		env *env.Environment
	}

	// CompiledAle represents a compiled Ale predicate
	CompiledAle struct {
		proc     data.Procedure
		argNames []api.Name
	}
)

const aleLambdaTemplate = "(lambda (%s) %s)"

var (
	ErrAleNotProcedure = errors.New("not a procedure")
	ErrAleCompile      = errors.New("ale compile error")
	ErrAleCall         = errors.New("ale call error")
)

// NewAleEnv creates a new Ale checker environment
func NewAleEnv(cacheSize int) *AleEnv {
	e := env.NewEnvironment()
	bootstrap.Into(e)
	aleEnv := &AleEnv{env: e}
	aleEnv.compiler = newCompiler(cacheSize, aleEnv.compile)
	return aleEnv
}

// EvaluatePredicate calls a compiled Ale predicate. Any result other than
// false is considered true
func (e *AleEnv) EvaluatePredicate(
	c Compiled, inputs api.Values,
) (bool, error) {
	compiled, ok := c.(*CompiledAle)
	if !ok {
		return false, fmt.Errorf("%w, got %T", ErrAleNotProcedure, c)
	}

	args := make(data.Vector, 0, len(compiled.argNames))
	for _, name := range compiled.argNames {
		args = append(args, aleArg(inputs, name))
	}

	res, err := catchPanic(ErrAleCall, func() (ale.Value, error) {
		return compiled.proc.Call(args...), nil
	})
	if err != nil {
		return false, err
	}
	return res != data.False && res != data.Null, nil
}

func (e *AleEnv) compile(
	script string, argNames []api.Name,
) (*CompiledAle, error) {
	src := fmt.Sprintf(
		aleLambdaTemplate, strings.Join(argStrings(argNames), " "), script,
	)

	return catchPanic(ErrAleCompile,
		func() (*CompiledAle, error) {
			ns := e.env.GetAnonymous()
			res, err := eval.String(ns, data.String(src))
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrAleCompile, err)
			}

			proc, ok := res.(data.Procedure)
			if !ok {
				return nil, fmt.Errorf("%w, got: %T", ErrAleNotProcedure, res)
			}
			return &CompiledAle{proc: proc, argNames: argNames}, nil
		},
	)
}

func aleArg(inputs api.Values, name api.Name) ale.Value {
	value, ok := inputs[name]
	if !ok {
		return data.Null
	}
	switch v := bindValue(value).(type) {
	case bool:
		return data.Bool(v)
	case int64:
		return data.Integer(v)
	case float64:
		return data.Float(v)
	default:
		return data.String(value)
	}
}

func catchPanic[T any](baseErr error, fn func() (T, error)) (res T, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok {
			err = fmt.Errorf("%w: %w", baseErr, e)
			return
		}
		err = fmt.Errorf("%w: %v", baseErr, r)
	}()
	return fn()
}
