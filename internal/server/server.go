package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	app "github.com/kode4food/sequin"
	"github.com/kode4food/sequin/internal/engine"
	"github.com/kode4food/sequin/internal/provider"
	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/util"
)

// Server implements the HTTP Run API on top of an engine
type Server struct {
	engine  *engine.Engine
	version string
	sockets util.Set[*Client]
	mu      sync.Mutex
}

var (
	ErrInvalidJSON     = errors.New("invalid JSON")
	ErrListFlows       = errors.New("failed to list flows")
	ErrNameRequired    = errors.New("category and name are required")
	ErrRunNotFound     = errors.New("run not found")
	ErrNoBreakpoints   = errors.New("run has no breakpoints")
	ErrNotAtBreakpoint = errors.New("step is not held at a breakpoint")
)

// NewServer creates a new HTTP API server
func NewServer(eng *engine.Engine, version string) *Server {
	return &Server{
		engine:  eng,
		version: version,
		sockets: util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods", "GET, POST, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers", "Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)

	// Flow definitions
	router.GET("/flows", s.listCategories)
	router.GET("/flows/:category", s.listFlows)

	// Runs
	runs := router.Group("/runs")
	{
		runs.POST("", s.startRun)
		runs.GET("", s.listRuns)
		runs.GET("/:id", s.getRun)
		runs.POST("/:id/events/:name", s.sendEvent)
		runs.POST("/:id/stop", s.stopRun)
		runs.POST("/:id/breakpoints/:stepID/resume", s.resumeBreakpoint)
		runs.GET("/:id/ws", s.handleWebSocket)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service:   app.Name,
		Version:   s.version,
		Status:    api.HealthHealthy,
		Instances: len(s.engine.Instances()),
	})
}

func (s *Server) listCategories(c *gin.Context) {
	cats, err := s.engine.Provider().Categories(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, ErrListFlows, err)
		return
	}
	c.JSON(http.StatusOK, api.CategoriesResponse{
		Categories: cats,
		Count:      len(cats),
	})
}

func (s *Server) listFlows(c *gin.Context) {
	category := c.Param("category")
	flows, err := s.engine.Provider().Flows(c.Request.Context(), category)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, ErrListFlows, err)
		return
	}
	c.JSON(http.StatusOK, api.FlowsListResponse{
		Category: category,
		Flows:    flows,
		Count:    len(flows),
	})
}

func (s *Server) fail(c *gin.Context, status int, base, err error) {
	c.JSON(status, api.ErrorResponse{
		Error:  fmt.Sprintf("%s: %v", base, err),
		Status: status,
	})
}

func (s *Server) error(c *gin.Context, err error) {
	status := errorStatus(err)
	c.JSON(status, api.ErrorResponse{
		Error:  err.Error(),
		Status: status,
	})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrRunNotFound),
		errors.Is(err, engine.ErrInstanceNotFound),
		errors.Is(err, provider.ErrFlowNotFound),
		errors.Is(err, provider.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInstanceExists),
		errors.Is(err, engine.ErrFlowEnded),
		errors.Is(err, ErrNotAtBreakpoint),
		errors.Is(err, ErrNoBreakpoints):
		return http.StatusConflict
	case errors.Is(err, engine.ErrEngineStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
