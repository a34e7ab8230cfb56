package script

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/kode4food/lru"

	"github.com/kode4food/sequin/pkg/api"
)

type (
	// Registry manages checker environments for different languages
	Registry struct {
		envs map[string]Environment
	}

	// Environment defines the interface for checker script environments
	Environment interface {
		// Validate checks if a script is syntactically valid
		Validate(script string, argNames []api.Name) error

		// Compile compiles a script and returns the compiled form
		Compile(script string, argNames []api.Name) (Compiled, error)

		// EvaluatePredicate evaluates a compiled predicate with given inputs
		EvaluatePredicate(c Compiled, inputs api.Values) (bool, error)
	}

	// Compiled represents a compiled script for any supported language
	Compiled any

	compileFunc[T any] func(script string, argNames []api.Name) (T, error)

	compiler[T any] struct {
		cache *lru.Cache[T]
		build compileFunc[T]
	}
)

const (
	LangAle  = "ale"
	LangExpr = "expr"
	LangJSON = "json"
	LangLua  = "lua"

	// DefaultLanguage is used by checkers that do not name a language
	DefaultLanguage = LangExpr

	// DefaultCacheSize bounds the compiled scripts kept per language
	DefaultCacheSize = 4096
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported script language")
	ErrEmptyScript         = errors.New("script is empty")
)

// NewRegistry creates a script registry with Ale, Expr, JSON, and Lua
// environments
func NewRegistry() *Registry {
	return NewRegistryWithCacheSize(DefaultCacheSize)
}

// NewRegistryWithCacheSize creates a script registry whose environments
// cache up to size compiled scripts each
func NewRegistryWithCacheSize(size int) *Registry {
	return &Registry{
		envs: map[string]Environment{
			LangAle:  NewAleEnv(size),
			LangExpr: NewExprEnv(size),
			LangJSON: NewJSONEnv(size),
			LangLua:  NewLuaEnv(size),
		},
	}
}

// Register adds or replaces the environment for a language
func (r *Registry) Register(language string, env Environment) {
	r.envs[language] = env
}

// Get returns the script environment for the given language
func (r *Registry) Get(language string) (Environment, error) {
	if language == "" {
		language = DefaultLanguage
	}
	env, ok := r.envs[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	return env, nil
}

// Validate checks a script in the given language against the names of the
// inputs it will receive
func (r *Registry) Validate(
	language, script string, argNames []api.Name,
) error {
	env, err := r.Get(language)
	if err != nil {
		return err
	}
	return env.Validate(script, argNames)
}

// EvaluatePredicate compiles (or reuses) a script and evaluates it against
// the provided inputs, each of which is bound to a variable of the same name
func (r *Registry) EvaluatePredicate(
	language, script string, inputs api.Values,
) (bool, error) {
	env, err := r.Get(language)
	if err != nil {
		return false, err
	}
	c, err := env.Compile(script, inputs.SortedNames())
	if err != nil {
		return false, err
	}
	return env.EvaluatePredicate(c, inputs)
}

func newCompiler[T any](size int, build compileFunc[T]) *compiler[T] {
	return &compiler[T]{
		cache: lru.NewCache[T](size),
		build: build,
	}
}

func (c *compiler[T]) Validate(script string, argNames []api.Name) error {
	if script == "" {
		return ErrEmptyScript
	}
	_, err := c.build(script, argNames)
	return err
}

func (c *compiler[T]) Compile(
	script string, argNames []api.Name,
) (Compiled, error) {
	if script == "" {
		return nil, ErrEmptyScript
	}

	return c.cache.Get(hashScript(script, argNames), func() (T, error) {
		return c.build(script, argNames)
	})
}

func hashScript(script string, argNames []api.Name) string {
	h := sha256.New()
	_, _ = h.Write([]byte(script))

	for _, arg := range argNames {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(arg))
	}

	return hex.EncodeToString(h.Sum(nil))
}

func argStrings(names []api.Name) []string {
	res := make([]string, len(names))
	for i, n := range names {
		res[i] = string(n)
	}
	return res
}
