package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/sequin/internal/assert/helpers"
	"github.com/kode4food/sequin/internal/server"
	"github.com/kode4food/sequin/pkg/api"
)

type testServerEnv struct {
	*helpers.TestEngineEnv
	Server *server.Server
	Router *gin.Engine
}

const (
	eventuallyWait = 2 * time.Second
	eventuallyTick = 5 * time.Millisecond
)

func withServer(t *testing.T, fn func(*testServerEnv)) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		srv := server.NewServer(env.Engine, "test")
		defer srv.CloseWebSockets()
		fn(&testServerEnv{
			TestEngineEnv: env,
			Server:        srv,
			Router:        srv.SetupRoutes(),
		})
	})
}

func (e *testServerEnv) do(
	method, path string, body any,
) *httptest.ResponseRecorder {
	e.T.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var res T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func waitingFlow(name string) *api.FlowDefinition {
	a := helpers.NewStep("a", helpers.StepEcho, helpers.OnEvent("go"))
	a.Inputs = []*api.Input{api.EventRef("go").Named("v")}
	a.Outputs = []*api.Output{helpers.ToData("v", "out")}
	flow := helpers.NewFlow(name, a)
	flow.Data = []*api.DataDefinition{{Name: "out", IsOutput: true}}
	return flow
}

func TestHealthEndpoint(t *testing.T) {
	withServer(t, func(env *testServerEnv) {
		w := env.do(http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		res := decode[api.HealthResponse](t, w)
		assert.Equal(t, "sequin", res.Service)
		assert.Equal(t, "test", res.Version)
		assert.Equal(t, api.HealthHealthy, res.Status)
		assert.Zero(t, res.Instances)
	})
}

func TestCORSPreflight(t *testing.T) {
	withServer(t, func(env *testServerEnv) {
		w := env.do(http.MethodOptions, "/runs", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestListFlows(t *testing.T) {
	withServer(t, func(env *testServerEnv) {
		env.Store(helpers.NewFlow("b"), helpers.NewFlow("a"))

		w := env.do(http.MethodGet, "/flows", nil)
		require.Equal(t, http.StatusOK, w.Code)
		cats := decode[api.CategoriesResponse](t, w)
		assert.Equal(t, []string{helpers.TestCategory}, cats.Categories)
		assert.Equal(t, 1, cats.Count)

		w = env.do(http.MethodGet, "/flows/"+helpers.TestCategory, nil)
		require.Equal(t, http.StatusOK, w.Code)
		flows := decode[api.FlowsListResponse](t, w)
		assert.Equal(t, []string{"a", "b"}, flows.Flows)
		assert.Equal(t, 2, flows.Count)
	})
}

func TestStartStoredRun(t *testing.T) {
	withServer(t, func(env *testServerEnv) {
		a := helpers.NewStep("a", helpers.StepEcho)
		a.Inputs = []*api.Input{api.DataRef("name").Named("name")}
		a.Outputs = []*api.Output{helpers.ToData("name", "echoed")}
		flow := helpers.NewFlow("stored", a)
		flow.Data = []*api.DataDefinition{
			{Name: "name", IsInput: true},
			{Name: "echoed", IsOutput: true},
		}
		env.Store(flow)

		w := env.do(http.MethodPost, "/runs", api.StartRunRequest{
			Category:   helpers.TestCategory,
			Name:       "stored",
			InstanceID: "run-1",
			Data:       api.Values{"name": "bob"},
		})
		require.Equal(t, http.StatusCreated, w.Code)
		started := decode[api.RunStartedResponse](t, w)
		assert.Equal(t, api.InstanceID("run-1"), started.InstanceID)

		inst, err := env.Engine.GetInstance("run-1")
		require.NoError(t, err)
		env.Wait(inst)

		w = env.do(http.MethodGet, "/runs/run-1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		run := decode[api.RunResponse](t, w)
		require.NotNil(t, run.Result)
		assert.True(t, run.Result.Success)
		assert.Equal(t, "bob", run.Result.Values()["echoed"])
		assert.Equal(t, api.FlowCompleted, run.Status.State)
		assert.Contains(t, run.Status.Steps, api.StepID("a"))
	})
}

func TestStartRunErrors(t *testing.T) {
	withServer(t, func(env *testServerEnv) {
		req := httptest.NewRequest(http.MethodPost, "/runs",
			bytes.NewReader([]byte("not-json")),
		)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.Router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = env.do(http.MethodPost, "/runs", api.StartRunRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t,
			decode[api.ErrorResponse](t, w).Error,
			server.ErrNameRequired.Error(),
		)

		w = env.do(http.MethodPost, "/runs", api.StartRunRequest{
			Category: helpers.TestCategory,
			Name:     "missing",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)

		bad := helpers.NewFlow("bad", helpers.NewStep("a", "no-such-step"))
		w = env.do(http.MethodPost, "/runs", api.StartRunRequest{Flow: bad})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, http.StatusBadRequest,
			decode[api.ErrorResponse](t, w).Status,
		)
	})
}

func TestDuplicateRun(t *testing.T) {
	withServer(t, func(env *testServerEnv) {
		req := api.StartRunRequest{Flow: waitingFlow("dup"), InstanceID: "dup"}
		w := env.do(http.MethodPost, "/runs", req)
		require.Equal(t, http.StatusCreated, w.Code)

		w = env.do(http.MethodPost, "/runs", req)
		assert.Equal(t, http.StatusConflict, w.Code)

		w = env.do(http.MethodPost, "/runs/dup/stop", nil)
		assert.Equal(t, http.StatusAccepted, w.Code)
	})
}

func TestListRuns(t *testing.T) {
	withServer(t, func(env *testServerEnv) {
		for _, id := range []api.InstanceID{"r2", "r1"} {
			w := env.do(http.MethodPost, "/runs", api.StartRunRequest{
				Flow:       waitingFlow("listed"),
				InstanceID: id,
			})
			require.Equal(t, http.StatusCreated, w.Code)
		}

		w := env.do(http.MethodGet, "/runs", nil)
		require.Equal(t, http.StatusOK, w.Code)
		runs := decode[api.RunsListResponse](t, w)
		require.Equal(t, 2, runs.Count)
		assert.Equal(t, api.InstanceID("r1"), runs.Runs[0].ID)
		assert.Equal(t, api.InstanceID("r2"), runs.Runs[1].ID)
		assert.Equal(t, "listed", runs.Runs[0].Name)

		health := decode[api.HealthResponse](t, env.do(
			http.MethodGet, "/health", nil,
		))
		assert.Equal(t, 2, health.Instances)

		for _, id := range []string{"r1", "r2"} {
			env.do(http.MethodPost, "/runs/"+id+"/stop", nil)
		}
	})
}

func TestSendEvent(t *testing.T) {
	withServer(t, func(env *testServerEnv) {
		w := env.do(http.MethodPost, "/runs", api.StartRunRequest{
			Flow:       waitingFlow("events"),
			InstanceID: "ev",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w = env.do(http.MethodPost, "/runs/ev/events/go",
			api.EventRequest{Payload: "hello"},
		)
		assert.Equal(t, http.StatusAccepted, w.Code)

		inst, err := env.Engine.GetInstance("ev")
		require.NoError(t, err)
		res := env.Wait(inst)
		assert.Equal(t, "hello", res.Values()["out"])

		w = env.do(http.MethodPost, "/runs/ev/events/go", nil)
		assert.Equal(t, http.StatusConflict, w.Code)

		w = env.do(http.MethodPost, "/runs/nope/events/go", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestStopRun(t *testing.T) {
	withServer(t, func(env *testServerEnv) {
		w := env.do(http.MethodPost, "/runs", api.StartRunRequest{
			Flow:       waitingFlow("stopped"),
			InstanceID: "stop",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w = env.do(http.MethodPost, "/runs/stop/stop", nil)
		assert.Equal(t, http.StatusAccepted, w.Code)

		inst, err := env.Engine.GetInstance("stop")
		require.NoError(t, err)
		assert.Equal(t, api.FlowCancelled, env.Wait(inst).State)

		w = env.do(http.MethodPost, "/runs/missing/stop", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestResumeBreakpoint(t *testing.T) {
	withServer(t, func(env *testServerEnv) {
		flow := helpers.NewFlow("debug", helpers.NewStep("a", helpers.StepEcho))
		w := env.do(http.MethodPost, "/runs", api.StartRunRequest{
			Flow:        flow,
			InstanceID:  "bp",
			Breakpoints: []api.StepID{"a"},
		})
		require.Equal(t, http.StatusCreated, w.Code)

		inst, err := env.Engine.GetInstance("bp")
		require.NoError(t, err)
		bp, ok := inst.Breakpoints()
		require.True(t, ok)
		require.Eventually(t, func() bool {
			return len(bp.Waiting()) == 1
		}, eventuallyWait, eventuallyTick)

		w = env.do(http.MethodPost, "/runs/bp/breakpoints/b/resume", nil)
		assert.Equal(t, http.StatusConflict, w.Code)

		w = env.do(http.MethodPost, "/runs/bp/breakpoints/a/resume", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, env.Wait(inst).Success)
	})
}

func TestResumeWithoutBreakpoints(t *testing.T) {
	withServer(t, func(env *testServerEnv) {
		inst, err := env.Engine.StartDefinition(context.Background(),
			waitingFlow("plain"), nil,
		)
		require.NoError(t, err)
		defer inst.Stop()

		w := env.do(http.MethodPost,
			"/runs/"+string(inst.ID())+"/breakpoints/a/resume", nil,
		)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t,
			decode[api.ErrorResponse](t, w).Error,
			server.ErrNoBreakpoints.Error(),
		)
	})
}
