package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/sequin/internal/assert/helpers"
	"github.com/kode4food/sequin/internal/engine"
	"github.com/kode4food/sequin/pkg/api"
)

func innerFlow(name string) *api.FlowDefinition {
	i := helpers.NewStep("i", helpers.StepEcho)
	i.Inputs = []*api.Input{
		api.DataRef("x").Named("x"),
		api.DataRef("z").Named("z"),
	}
	i.Outputs = []*api.Output{
		helpers.ToData("x", "y"),
		helpers.ToData("z", "w"),
	}
	flow := helpers.NewFlow(name, i)
	flow.Data = []*api.DataDefinition{
		{Name: "x", IsInput: true},
		{Name: "z", Default: "inner-default"},
		{Name: "y", IsOutput: true},
		{Name: "w", IsOutput: true},
	}
	return flow
}

func subFlowStep(kind api.StepKind) *api.Step {
	return &api.Step{
		ID:             "sub",
		Kind:           kind,
		Category:       helpers.TestCategory,
		Implementation: "inner",
		Inputs: []*api.Input{
			api.Literal("42").Named("x"),
			api.Literal("outer").Named("z"),
		},
		Outputs: []*api.Output{
			helpers.ToData("y", "result"),
			helpers.ToData("w", "other"),
		},
	}
}

func outerFlow(kind api.StepKind) *api.FlowDefinition {
	after := helpers.NewStep("after", helpers.StepEcho, helpers.AfterStep("sub"))
	after.Inputs = []*api.Input{api.DataRef("result").Named("in")}
	flow := helpers.NewFlow("outer", subFlowStep(kind), after)
	flow.Data = []*api.DataDefinition{
		{Name: "result", IsOutput: true},
		{Name: "other", IsOutput: true},
	}
	return flow
}

func TestEmbeddedSubFlow(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		flow := outerFlow(api.StepKindEmbedded)
		flow.EmbeddedFlows = []*api.EmbeddedFlow{
			{StepID: "sub", Flow: innerFlow("inner")},
		}

		inst := env.Start(flow, nil)
		res := env.Wait(inst)
		require.True(t, res.Success)
		assert.Equal(t, "42", res.Values()["result"])
		assert.Equal(t, "outer", res.Values()["other"])
		assert.Equal(t, []api.Values{{"in": "42"}}, env.Steps.Inputs("after"))
		assert.Equal(t,
			[]api.Values{{"x": "42", "z": "outer"}},
			env.Steps.InputsAt([]string{"sub"}, "i"),
		)

		st := inst.Status().Steps["sub"]
		require.Len(t, st.Attempts, 1)
		assert.Equal(t, api.Values{"y": "42", "w": "outer"}, st.Attempts[0].Outputs)
	})
}

func TestExternalSubFlow(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		env.Store(innerFlow("inner"))

		res := env.Run(outerFlow(api.StepKindFlow), nil)
		require.True(t, res.Success)
		assert.Equal(t, "42", res.Values()["result"])
		assert.Equal(t, "inner-default", res.Values()["other"])
	})
}

func TestExternalSubFlowMissing(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		res := env.Run(outerFlow(api.StepKindFlow), nil)
		assert.False(t, res.Success)
		assert.Zero(t, env.Steps.Calls("after"))
	})
}

func TestSubFlowFailure(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		failing := helpers.NewFlow("failing", helpers.NewStep("i", helpers.StepFail))
		env.Store(failing)

		sub := &api.Step{
			ID:             "sub",
			Kind:           api.StepKindFlow,
			Category:       helpers.TestCategory,
			Implementation: "failing",
			Retry:          api.Literal("1"),
		}
		res := env.Run(helpers.NewFlow("outer", sub), nil)
		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Error, engine.ErrSubFlowFailed)
		assert.ErrorIs(t, res.Error, helpers.ErrTestStep)
		assert.Len(t, env.Steps.InputsAt([]string{"sub"}, "i"), 2)
	})
}

func TestNestedEmbeddedFlows(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		middle := helpers.NewFlow("middle", &api.Step{
			ID:   "deep",
			Kind: api.StepKindEmbedded,
		})
		middle.EmbeddedFlows = []*api.EmbeddedFlow{{
			StepID: "deep",
			Flow:   helpers.NewFlow("leaf", helpers.NewStep("leaf", helpers.StepEcho)),
		}}

		outer := helpers.NewFlow("outer", &api.Step{
			ID:   "mid",
			Kind: api.StepKindEmbedded,
		})
		outer.EmbeddedFlows = []*api.EmbeddedFlow{{StepID: "mid", Flow: middle}}

		res := env.Run(outer, nil)
		require.True(t, res.Success)
		assert.Len(t, env.Steps.InputsAt([]string{"mid", "deep"}, "leaf"), 1)
	})
}
