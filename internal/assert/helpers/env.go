package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kode4food/sequin/internal/builtin"
	"github.com/kode4food/sequin/internal/config"
	"github.com/kode4food/sequin/internal/engine"
	"github.com/kode4food/sequin/internal/engine/runopt"
	"github.com/kode4food/sequin/internal/provider"
	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/capability"
)

// TestEngineEnv holds all the components needed for engine testing
type TestEngineEnv struct {
	T        *testing.T
	Engine   *engine.Engine
	Caps     *capability.Registries
	Provider provider.Provider
	Config   *config.Config
	Steps    *StepRecorder
	Cleanup  func()
}

// DefaultRunTimeout bounds how long test helpers wait for a flow result
const DefaultRunTimeout = 5 * time.Second

// NewTestConfig creates a default configuration with debug logging enabled
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

// NewTestEngine creates a test engine environment backed by the memory
// provider, with the built-in capabilities and the recording test steps
// registered
func NewTestEngine(t *testing.T) *TestEngineEnv {
	t.Helper()
	return NewTestEngineWithConfig(t, NewTestConfig())
}

// NewTestEngineWithConfig creates a test engine environment using the
// provided configuration
func NewTestEngineWithConfig(
	t *testing.T, cfg *config.Config,
) *TestEngineEnv {
	t.Helper()

	caps, err := builtin.NewRegistries()
	require.NoError(t, err)

	rec := NewStepRecorder()
	require.NoError(t, rec.Register(caps))

	env := &TestEngineEnv{
		T:        t,
		Caps:     caps,
		Provider: provider.NewMemory(),
		Config:   cfg,
		Steps:    rec,
	}

	eng, err := engine.New(cfg, env.Dependencies())
	require.NoError(t, err)
	env.Engine = eng
	env.Cleanup = func() {
		_ = eng.Stop()
		_ = env.Provider.Close()
	}
	return env
}

// Dependencies returns the engine dependencies of the environment
func (env *TestEngineEnv) Dependencies() engine.Dependencies {
	return engine.Dependencies{
		Capabilities: env.Caps,
		Provider:     env.Provider,
	}
}

// Start starts a flow definition with an optional config
func (env *TestEngineEnv) Start(
	flow *api.FlowDefinition, cfg *api.ConfigDefinition,
	opts ...runopt.Applier,
) *engine.Instance {
	env.T.Helper()
	inst, err := env.Engine.StartDefinition(
		context.Background(), flow, cfg, opts...,
	)
	require.NoError(env.T, err)
	return inst
}

// Run starts a flow definition and waits for its result
func (env *TestEngineEnv) Run(
	flow *api.FlowDefinition, cfg *api.ConfigDefinition,
	opts ...runopt.Applier,
) *api.FlowResult {
	env.T.Helper()
	return env.Wait(env.Start(flow, cfg, opts...))
}

// Wait waits for an instance's result, failing the test on timeout
func (env *TestEngineEnv) Wait(inst *engine.Instance) *api.FlowResult {
	env.T.Helper()
	ctx, cancel := context.WithTimeout(
		context.Background(), DefaultRunTimeout,
	)
	defer cancel()
	res, err := inst.Wait(ctx)
	require.NoError(env.T, err)
	return res
}

// Store saves flow definitions with the environment's provider
func (env *TestEngineEnv) Store(flows ...*api.FlowDefinition) {
	env.T.Helper()
	for _, f := range flows {
		err := env.Provider.SaveFlowDefinition(context.Background(), f)
		require.NoError(env.T, err)
	}
}

// WithTestEnv creates a test engine environment, executes the provided
// function with it, and ensures cleanup happens automatically
func WithTestEnv(t *testing.T, fn func(*TestEngineEnv)) {
	t.Helper()
	env := NewTestEngine(t)
	defer env.Cleanup()
	fn(env)
}

// WithEngine creates a test engine, executes the provided function with it,
// and ensures cleanup happens automatically
func WithEngine(t *testing.T, fn func(*engine.Engine)) {
	t.Helper()
	WithTestEnv(t, func(env *TestEngineEnv) {
		fn(env.Engine)
	})
}

// WithStartedEnv creates a test engine environment, starts its engine,
// and executes the provided function with it
func WithStartedEnv(t *testing.T, fn func(*TestEngineEnv)) {
	t.Helper()
	WithTestEnv(t, func(env *TestEngineEnv) {
		env.Engine.Start()
		fn(env)
	})
}
