package engine_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/sequin/internal/archive"
	"github.com/kode4food/sequin/internal/assert/helpers"
	"github.com/kode4food/sequin/internal/assert/wait"
	"github.com/kode4food/sequin/internal/engine"
	"github.com/kode4food/sequin/internal/engine/runopt"
	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/pipeline"
)

type countingService struct {
	groups   atomic.Int32
	attempts atomic.Int32
}

func (s *countingService) GroupMiddleware() engine.GroupMiddleware {
	return pipeline.Func[*engine.Group](
		func(
			ctx context.Context, g *engine.Group,
			next pipeline.Handler[*engine.Group],
		) error {
			s.groups.Add(1)
			return next(ctx, g)
		},
	)
}

func (s *countingService) AttemptMiddleware() engine.AttemptMiddleware {
	return pipeline.Func[*engine.Attempt](
		func(
			ctx context.Context, a *engine.Attempt,
			next pipeline.Handler[*engine.Attempt],
		) error {
			s.attempts.Add(1)
			return next(ctx, a)
		},
	)
}

func TestMiddlewareRegistry(t *testing.T) {
	reg := engine.NewMiddlewareRegistry()
	assert.Equal(t, []string{
		engine.MiddlewareArchive,
		engine.MiddlewareBreakpoint,
		engine.MiddlewareLog,
		engine.MiddlewareMonitor,
	}, reg.Names())

	err := reg.Register(engine.MiddlewareLog,
		func(*engine.Engine, *runopt.Options) (any, error) { return nil, nil },
	)
	assert.ErrorIs(t, err, engine.ErrMiddlewareExists)

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, engine.ErrMiddlewareNotFound)
}

func TestCustomMiddlewareSharedAcrossSubFlows(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		var created atomic.Int32
		err := env.Engine.Middleware().Register("count",
			func(*engine.Engine, *runopt.Options) (any, error) {
				created.Add(1)
				return &countingService{}, nil
			},
		)
		require.NoError(t, err)

		a := helpers.NewStep("a", helpers.StepFail)
		a.Retry = api.Literal("2")
		a.ErrorHandling = api.Literal("Skip")
		flow := helpers.NewFlow("counted", a, &api.Step{
			ID:   "sub",
			Kind: api.StepKindEmbedded,
		})
		flow.EmbeddedFlows = []*api.EmbeddedFlow{{
			StepID: "sub",
			Flow:   helpers.NewFlow("inner", helpers.NewStep("i", helpers.StepEcho)),
		}}

		inst := env.Start(flow, nil, runopt.WithMiddleware(api.MiddlewareNames{
			Group:   []string{"count"},
			Attempt: []string{"count", "count"},
		}))
		require.True(t, env.Wait(inst).Success)

		svc, ok := inst.Middleware("count")
		require.True(t, ok)
		counter := svc.(*countingService)
		assert.Equal(t, int32(1), created.Load())
		assert.Equal(t, int32(3), counter.groups.Load())
		assert.Equal(t, int32(5), counter.attempts.Load())
	})
}

func TestLogMiddleware(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		flow := helpers.NewFlow("logged", helpers.NewStep("a", helpers.StepEcho))
		cfg := api.NewConfigDefinition(flow.Category, flow.Name)
		cfg.Middleware = api.MiddlewareNames{
			Flow:    []string{engine.MiddlewareLog},
			Group:   []string{engine.MiddlewareLog},
			Attempt: []string{engine.MiddlewareLog},
		}
		inst := env.Start(flow, cfg)
		assert.True(t, env.Wait(inst).Success)
		_, ok := inst.Middleware(engine.MiddlewareLog)
		assert.True(t, ok)
	})
}

func TestMonitorMiddleware(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		consumer := env.Engine.NewMonitorConsumer()
		defer consumer.Close()

		flow := helpers.NewFlow("monitored", helpers.NewStep("a", helpers.StepEcho))
		cfg := api.NewConfigDefinition(flow.Category, flow.Name)
		cfg.Middleware = api.MiddlewareNames{
			Flow:    []string{engine.MiddlewareMonitor},
			Group:   []string{engine.MiddlewareMonitor},
			Attempt: []string{engine.MiddlewareMonitor},
		}
		inst := env.Start(flow, cfg)

		evs := wait.On(t, consumer).ForEvents(6, wait.Instance(inst.ID()))
		type step struct {
			kind  api.MonitorKind
			phase api.MonitorPhase
		}
		var got []step
		for _, ev := range evs {
			got = append(got, step{ev.Kind, ev.Phase})
		}
		assert.Equal(t, []step{
			{api.MonitorFlow, api.MonitorStart},
			{api.MonitorGroup, api.MonitorStart},
			{api.MonitorAttempt, api.MonitorStart},
			{api.MonitorAttempt, api.MonitorEnd},
			{api.MonitorGroup, api.MonitorEnd},
			{api.MonitorFlow, api.MonitorEnd},
		}, got)
		assert.Equal(t, string(api.StepComplete), evs[4].State)
		assert.Equal(t, string(api.FlowCompleted), evs[5].State)
		assert.Equal(t, api.StepID("a"), evs[2].StepID)
		env.Wait(inst)
	})
}

func TestBreakpoints(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		a := helpers.NewStep("a", helpers.StepEcho)
		b := helpers.NewStep("b", helpers.StepEcho, helpers.AfterStep("a"))
		inst := env.Start(helpers.NewFlow("debug", a, b), nil,
			runopt.WithBreakpoints("b"),
		)

		bp, ok := inst.Breakpoints()
		require.True(t, ok)
		assert.Equal(t, []api.StepID{"b"}, bp.Armed())

		require.Eventually(t, func() bool {
			return len(bp.Waiting()) == 1
		}, eventuallyWait, eventuallyTick)
		assert.Equal(t, 1, env.Steps.Calls("a"))
		assert.Zero(t, env.Steps.Calls("b"))
		assert.False(t, bp.Resume("a"))

		assert.True(t, bp.Resume("b"))
		assert.True(t, env.Wait(inst).Success)
		assert.Equal(t, 1, env.Steps.Calls("b"))
		assert.Empty(t, bp.Waiting())
	})
}

func TestBreakpointClear(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		a := helpers.NewStep("a", helpers.StepEcho)
		a.Repeat = api.Literal("2")
		inst := env.Start(helpers.NewFlow("debug", a), nil,
			runopt.WithBreakpoints("a"),
		)
		bp, ok := inst.Breakpoints()
		require.True(t, ok)

		require.Eventually(t, func() bool {
			return len(bp.Waiting()) == 1
		}, eventuallyWait, eventuallyTick)
		bp.Clear("a")
		assert.True(t, env.Wait(inst).Success)
		assert.Equal(t, 2, env.Steps.Calls("a"))
		assert.Empty(t, bp.Armed())
	})
}

func TestBreakpointHeldAttemptStops(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		inst := env.Start(
			helpers.NewFlow("debug", helpers.NewStep("a", helpers.StepEcho)),
			nil, runopt.WithBreakpoints("a"),
		)
		bp, _ := inst.Breakpoints()
		require.Eventually(t, func() bool {
			return len(bp.Waiting()) == 1
		}, eventuallyWait, eventuallyTick)

		inst.Stop()
		assert.Equal(t, api.FlowCancelled, env.Wait(inst).State)
		assert.Zero(t, env.Steps.Calls("a"))
	})
}

func TestArchiveMiddleware(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		ctx := context.Background()
		arc, err := archive.NewBlobArchive(ctx, "mem://", "results/")
		require.NoError(t, err)
		defer func() { _ = arc.Close() }()

		deps := env.Dependencies()
		deps.Archive = arc
		eng, err := engine.New(env.Config, deps)
		require.NoError(t, err)
		eng.Start()
		defer func() { _ = eng.Stop() }()

		a := helpers.NewStep("a", helpers.StepEcho)
		a.Inputs = []*api.Input{api.Literal("v").Named("v")}
		a.Outputs = []*api.Output{helpers.ToData("v", "out")}
		flow := helpers.NewFlow("archived", a)
		flow.Data = []*api.DataDefinition{{Name: "out", IsOutput: true}}

		inst, err := eng.StartDefinition(ctx, flow, nil,
			runopt.WithMiddleware(api.MiddlewareNames{
				Flow: []string{engine.MiddlewareArchive},
			}),
		)
		require.NoError(t, err)
		res, err := inst.Wait(ctx)
		require.NoError(t, err)
		require.True(t, res.Success)

		stored, err := arc.Get(ctx, inst.ID())
		require.NoError(t, err)
		assert.Equal(t, inst.ID(), stored.InstanceID)
		assert.Equal(t, api.FlowCompleted, stored.State)
		assert.Equal(t, "v", stored.Values()["out"])
	})
}

func TestArchiveRequiresArchiver(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		_, err := env.Engine.StartDefinition(context.Background(),
			helpers.NewFlow("archived"), nil,
			runopt.WithMiddleware(api.MiddlewareNames{
				Flow: []string{engine.MiddlewareArchive},
			}),
		)
		assert.ErrorIs(t, err, engine.ErrArchiveRequired)
	})
}
