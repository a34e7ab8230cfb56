package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/sequin/internal/assert/helpers"
	"github.com/kode4food/sequin/internal/engine"
	"github.com/kode4food/sequin/internal/engine/runopt"
	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/pipeline"
)

type captureService struct {
	exec chan *engine.Execution
}

func (s *captureService) GroupMiddleware() engine.GroupMiddleware {
	return pipeline.Func[*engine.Group](
		func(
			ctx context.Context, g *engine.Group,
			next pipeline.Handler[*engine.Group],
		) error {
			select {
			case s.exec <- g.Execution():
			default:
			}
			return next(ctx, g)
		},
	)
}

// runCaptured runs the flow and returns its finished root context
func runCaptured(
	t *testing.T, env *helpers.TestEngineEnv, flow *api.FlowDefinition,
	opts ...runopt.Applier,
) *engine.Execution {
	t.Helper()
	svc := &captureService{exec: make(chan *engine.Execution, 1)}
	err := env.Engine.Middleware().Register("capture",
		func(*engine.Engine, *runopt.Options) (any, error) {
			return svc, nil
		},
	)
	require.NoError(t, err)

	opts = append(opts, runopt.WithMiddleware(api.MiddlewareNames{
		Group: []string{"capture"},
	}))
	inst := env.Start(flow, nil, opts...)
	env.Wait(inst)
	return <-svc.exec
}

func upperOf(in *api.Input) *api.ConverterRef {
	return &api.ConverterRef{
		Category: "text",
		Name:     "upper",
		Inputs:   []*api.Input{in},
	}
}

func TestResolvePriority(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		flow := helpers.NewFlow("resolve", helpers.NewStep("a", helpers.StepEcho))
		flow.Data = []*api.DataDefinition{
			{Name: "name", Default: "bob"},
			{Name: "empty"},
		}
		x := runCaptured(t, env, flow)
		require.NoError(t, x.SendEvent("ev", "payload"))
		ctx := context.Background()

		resolve := func(in *api.Input, def string) string {
			res, err := x.Resolve(ctx, in, def)
			require.NoError(t, err)
			return res
		}

		assert.Equal(t, "def", resolve(nil, "def"))
		assert.Equal(t, "lit", resolve(api.Literal("lit"), "def"))
		assert.Equal(t, "def", resolve(api.Literal(""), "def"))
		assert.Equal(t, "bob", resolve(api.DataRef("name"), "def"))
		assert.Equal(t, "", resolve(api.DataRef("empty"), "def"))
		assert.Equal(t, "missing", resolve(api.DataRef("missing"), "def"))
		assert.Equal(t, "def", resolve(api.DataRef(""), "def"))
		assert.Equal(t, "payload", resolve(api.EventRef("ev"), "def"))
		assert.Equal(t, "def", resolve(api.EventRef("other"), "def"))

		withConv := api.DataRef("name")
		withConv.Converter = upperOf(api.EventRef("ev"))
		assert.Equal(t, "PAYLOAD", resolve(withConv, "def"))

		_, err := x.Resolve(ctx, &api.Input{
			Converter: &api.ConverterRef{Category: "no", Name: "such"},
		}, "")
		assert.ErrorIs(t, err, engine.ErrConverterNotFound)
	})
}

func TestResolveIsNotCached(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		flow := helpers.NewFlow("resolve", helpers.NewStep("a", helpers.StepEcho))
		flow.Data = []*api.DataDefinition{{Name: "name", Default: "bob"}}
		x := runCaptured(t, env, flow)
		ctx := context.Background()

		in := api.DataRef("name")
		v, err := x.Resolve(ctx, in, "")
		require.NoError(t, err)
		assert.Equal(t, "bob", v)

		x.Data().Set("name", "alice")
		v, err = x.Resolve(ctx, in, "")
		require.NoError(t, err)
		assert.Equal(t, "alice", v)
	})
}

func TestUndeclaredDataRefFallsBackToLiteral(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		a := helpers.NewStep("a", helpers.StepEcho)
		a.Inputs = []*api.Input{api.DataRef("undeclared").Named("in")}

		res := env.Run(helpers.NewFlow("fallback", a), nil)
		require.True(t, res.Success)
		assert.Equal(t,
			[]api.Values{{"in": "undeclared"}}, env.Steps.Inputs("a"),
		)
	})
}

func TestWriteOutputModes(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		a := helpers.NewStep("a", helpers.StepEcho)
		a.Inputs = []*api.Input{
			api.Literal("hello").Named("plain"),
			api.Literal("shout").Named("loud"),
			api.Literal("gone").Named("dropped"),
			api.Literal("extra").Named("undeclared"),
			api.Literal("implicit").Named("implicit"),
		}
		a.Outputs = []*api.Output{
			helpers.ToData("plain", "plain"),
			{
				Name:      "loud",
				Mode:      api.OutputConverter,
				Target:    "loud",
				Converter: &api.ConverterRef{Category: "text", Name: "upper"},
			},
			{Name: "dropped", Mode: api.OutputDrop, Target: "dropped"},
			{Name: "implicit", Target: "implicit"},
		}

		flow := helpers.NewFlow("outputs", a)
		flow.Data = []*api.DataDefinition{
			{Name: "plain", IsOutput: true},
			{Name: "loud", IsOutput: true},
			{Name: "dropped", IsOutput: true, Default: "kept"},
			{Name: "implicit", IsOutput: true},
			{Name: "internal", Default: "hidden"},
		}

		res := env.Run(flow, nil)
		require.True(t, res.Success)
		assert.Equal(t, api.Values{
			"plain":    "hello",
			"loud":     "SHOUT",
			"dropped":  "kept",
			"implicit": "implicit",
		}, res.Values())
	})
}

func TestDataKeepsDeclaredType(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		a := helpers.NewStep("a", helpers.StepEcho)
		a.Inputs = []*api.Input{api.Literal("7").Named("n")}
		a.Outputs = []*api.Output{helpers.ToData("n", "count")}
		flow := helpers.NewFlow("typed", a)
		flow.Data = []*api.DataDefinition{
			{Name: "count", Type: "int", IsOutput: true, Default: "0"},
		}

		res := env.Run(flow, nil)
		require.True(t, res.Success)
		assert.Equal(t, api.Value{Type: "int", Value: "7"}, res.Data["count"])
	})
}

func TestEvaluateChecker(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		flow := helpers.NewFlow("checkers", helpers.NewStep("a", helpers.StepEcho))
		flow.Data = []*api.DataDefinition{{Name: "doc", Default: `{"ok":true}`}}
		flow.Checkers = []*api.Checker{
			{
				ID:       "ale",
				Language: "ale",
				Script:   "(> n 3)",
				Inputs:   []*api.Input{api.Literal("4").Named("n")},
			},
			{
				ID:       "json",
				Language: "json",
				Script:   "doc.ok",
				Inputs:   []*api.Input{api.DataRef("doc").Named("doc")},
			},
		}
		x := runCaptured(t, env, flow)
		ctx := context.Background()

		ok, err := x.EvaluateChecker(ctx, "ale")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = x.EvaluateChecker(ctx, "json")
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = x.EvaluateChecker(ctx, "missing")
		assert.ErrorIs(t, err, api.ErrUnknownChecker)
	})
}
