package script

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/kode4food/sequin/pkg/api"
)

type (
	// LuaEnv provides a Lua checker environment with state pooling
	LuaEnv struct {
		*compiler[*CompiledLua]
		statePool chan *lua.State
	}

	// CompiledLua represents a compiled Lua predicate
	CompiledLua struct {
		bytecode []byte
		argNames []api.Name
	}
)

const (
	luaStatePoolSize    = 10
	luaGlobalTableIndex = -2
	luaArgLocalTemplate = "local %s = select(%d, ...)"
	luaGlobalTableName  = "_G"
	luaSeparator        = "\n"
)

var (
	ErrLuaLoad      = errors.New("lua load error")
	ErrLuaExecution = errors.New("lua execution error")
)

var luaExclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

// NewLuaEnv creates a new Lua checker environment with a state pool for
// efficient script reuse
func NewLuaEnv(cacheSize int) *LuaEnv {
	luaEnv := &LuaEnv{
		statePool: make(chan *lua.State, luaStatePoolSize),
	}
	luaEnv.compiler = newCompiler(cacheSize,
		func(script string, argNames []api.Name) (*CompiledLua, error) {
			src := luaEnv.wrapSource(script, argNames)
			return luaEnv.compile(src, argNames)
		},
	)
	return luaEnv
}

// EvaluatePredicate executes a compiled Lua predicate with the provided
// inputs and returns its truthiness
func (e *LuaEnv) EvaluatePredicate(
	c Compiled, inputs api.Values,
) (bool, error) {
	proc, ok := c.(*CompiledLua)
	if !ok {
		return false, fmt.Errorf("%w: %T", ErrLuaLoad, c)
	}
	result := false
	err := e.withCompiledResult(proc, inputs,
		func(L *lua.State) {
			result = L.ToBoolean(-1)
			L.Pop(1)
		},
	)
	return result, err
}

func (e *LuaEnv) wrapSource(script string, argNames []api.Name) string {
	argLocals := make([]string, len(argNames))
	for i, name := range argNames {
		argLocals[i] = fmt.Sprintf(luaArgLocalTemplate, name, i+1)
	}
	body := script
	if !strings.Contains(script, "return") {
		body = "return " + script
	}
	return strings.Join([]string{
		strings.Join(argLocals, luaSeparator), body,
	}, luaSeparator)
}

func (e *LuaEnv) compile(
	src string, argNames []api.Name,
) (*CompiledLua, error) {
	L := lua.NewState()

	e.setupSandbox(L)

	if err := lua.LoadString(L, src); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	return &CompiledLua{
		bytecode: buf.Bytes(),
		argNames: argNames,
	}, nil
}

func (e *LuaEnv) setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(luaGlobalTableName)
	for _, name := range luaExclude {
		L.PushNil()
		L.SetField(luaGlobalTableIndex, name)
	}
	L.Pop(1)
}

func (e *LuaEnv) withCompiledResult(
	proc *CompiledLua, inputs api.Values, onResult func(*lua.State),
) error {
	L := e.getState()
	defer e.returnState(L)

	e.setupSandbox(L)
	if err := L.Load(bytes.NewReader(proc.bytecode), "chunk", "b"); err != nil {
		return fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	for _, name := range proc.argNames {
		pushLuaArg(L, inputs, name)
	}

	if err := L.ProtectedCall(len(proc.argNames), 1, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrLuaExecution, err)
	}

	onResult(L)
	return nil
}

func (e *LuaEnv) getState() *lua.State {
	select {
	case L := <-e.statePool:
		return L
	default:
		return lua.NewState()
	}
}

func (e *LuaEnv) returnState(L *lua.State) {
	L.SetTop(0)

	select {
	case e.statePool <- L:
	default:
	}
}

func pushLuaArg(L *lua.State, inputs api.Values, name api.Name) {
	value, ok := inputs[name]
	if !ok {
		L.PushNil()
		return
	}
	switch v := bindValue(value).(type) {
	case bool:
		L.PushBoolean(v)
	case int64:
		L.PushInteger(int(v))
	case float64:
		L.PushNumber(v)
	default:
		L.PushString(value)
	}
}
