package server

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/sequin/internal/engine"
	"github.com/kode4food/sequin/internal/engine/runopt"
	"github.com/kode4food/sequin/pkg/api"
)

var monitored = api.MiddlewareNames{
	Flow:    []string{engine.MiddlewareMonitor},
	Group:   []string{engine.MiddlewareMonitor},
	Attempt: []string{engine.MiddlewareMonitor},
}

func (s *Server) startRun(c *gin.Context) {
	var req api.StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, ErrInvalidJSON, err)
		return
	}

	opts := []runopt.Applier{
		runopt.WithMiddleware(monitored),
		runopt.WithData(req.Data),
		runopt.WithConfigName(req.ConfigName),
	}
	if req.InstanceID != "" {
		opts = append(opts, runopt.WithInstanceID(req.InstanceID))
	}
	if len(req.Breakpoints) > 0 {
		opts = append(opts, runopt.WithBreakpoints(req.Breakpoints...))
	}

	inst, err := s.start(c, &req, opts)
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.RunStartedResponse{
		Message:    "Run started",
		InstanceID: inst.ID(),
	})
}

func (s *Server) start(
	c *gin.Context, req *api.StartRunRequest, opts []runopt.Applier,
) (*engine.Instance, error) {
	ctx := c.Request.Context()
	if req.Flow != nil {
		return s.engine.StartDefinition(ctx, req.Flow, nil, opts...)
	}
	if req.Category == "" || req.Name == "" {
		return nil, ErrNameRequired
	}
	return s.engine.StartFlow(ctx, req.Category, req.Name, opts...)
}

func (s *Server) listRuns(c *gin.Context) {
	insts := s.engine.Instances()
	runs := make([]*api.RunDigest, 0, len(insts))
	for _, inst := range insts {
		flow := inst.Flow()
		runs = append(runs, &api.RunDigest{
			ID:       inst.ID(),
			Category: flow.Category,
			Name:     flow.Name,
			State:    inst.Status().State,
		})
	}
	slices.SortFunc(runs, func(l, r *api.RunDigest) int {
		return cmp.Compare(l.ID, r.ID)
	})
	c.JSON(http.StatusOK, api.RunsListResponse{
		Runs:  runs,
		Count: len(runs),
	})
}

func (s *Server) getRun(c *gin.Context) {
	inst, ok := s.instance(c)
	if !ok {
		return
	}
	res := api.RunResponse{Status: inst.Status()}
	if r, ok := inst.Result(); ok {
		res.Result = r
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) sendEvent(c *gin.Context) {
	inst, ok := s.instance(c)
	if !ok {
		return
	}

	var req api.EventRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, http.StatusBadRequest, ErrInvalidJSON, err)
			return
		}
	}

	name := c.Param("name")
	if err := inst.SendEvent(name, req.Payload); err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusAccepted, api.MessageResponse{
		Message: fmt.Sprintf("Event %s sent", name),
	})
}

func (s *Server) stopRun(c *gin.Context) {
	inst, ok := s.instance(c)
	if !ok {
		return
	}
	inst.Stop()
	c.JSON(http.StatusAccepted, api.MessageResponse{
		Message: "Run stopping",
	})
}

func (s *Server) resumeBreakpoint(c *gin.Context) {
	inst, ok := s.instance(c)
	if !ok {
		return
	}
	bp, ok := inst.Breakpoints()
	if !ok {
		s.error(c, fmt.Errorf("%w: %s", ErrNoBreakpoints, inst.ID()))
		return
	}

	stepID := api.StepID(c.Param("stepID"))
	if !bp.Resume(stepID) {
		s.error(c, fmt.Errorf("%w: %s", ErrNotAtBreakpoint, stepID))
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{
		Message: fmt.Sprintf("Step %s resumed", stepID),
	})
}

func (s *Server) instance(c *gin.Context) (*engine.Instance, bool) {
	id := api.InstanceID(c.Param("id"))
	inst, err := s.engine.GetInstance(id)
	if err != nil {
		s.error(c, fmt.Errorf("%w: %s", ErrRunNotFound, id))
		return nil, false
	}
	return inst, true
}
