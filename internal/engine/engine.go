package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"
	"github.com/kode4food/lru"

	"github.com/kode4food/sequin/internal/config"
	"github.com/kode4food/sequin/internal/engine/scheduler"
	"github.com/kode4food/sequin/internal/engine/script"
	"github.com/kode4food/sequin/internal/provider"
	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/capability"
	"github.com/kode4food/sequin/pkg/util"
)

type (
	// Engine runs flow instances and tracks every live execution context
	Engine struct {
		config     *config.Config
		caps       *capability.Registries
		provider   provider.Provider
		scripts    *script.Registry
		middleware *MiddlewareRegistry
		archive    Archiver
		monitor    topic.Topic[*api.MonitorEvent]
		monitorOut topic.Producer[*api.MonitorEvent]
		scheduler  *scheduler.Scheduler
		clock      scheduler.Clock
		ctx        context.Context
		cancel     context.CancelFunc
		wg         sync.WaitGroup
		mu         sync.RWMutex
		contexts   *util.PathTree[*Execution]
		instances  map[api.InstanceID]*Instance
		finished   *lru.Cache[*Instance]
		startOnce  sync.Once
		stopOnce   sync.Once
		stopErr    error
		stopped    bool
	}

	// Dependencies are the collaborators an Engine is constructed with.
	// Capabilities and Provider are required, the rest fall back to
	// defaults
	Dependencies struct {
		Capabilities *capability.Registries
		Provider     provider.Provider
		Scripts      *script.Registry
		Middleware   *MiddlewareRegistry
		Archive      Archiver
		Clock        scheduler.Clock
		TimerCtor    scheduler.TimerConstructor
	}

	// Archiver stores the results of finished root flow instances
	Archiver interface {
		Put(ctx context.Context, res *api.FlowResult) error
	}

	// MonitorConsumer receives the events published by the monitor
	// middleware
	MonitorConsumer = topic.Consumer[*api.MonitorEvent]
)

var ErrMissingDependency = errors.New("missing engine dependency")

// New creates an Engine from a configuration and its dependencies
func New(cfg *config.Config, deps Dependencies) (*Engine, error) {
	switch {
	case deps.Capabilities == nil:
		return nil, fmt.Errorf("%w: capabilities", ErrMissingDependency)
	case deps.Provider == nil:
		return nil, fmt.Errorf("%w: provider", ErrMissingDependency)
	}
	if deps.Scripts == nil {
		deps.Scripts = script.NewRegistryWithCacheSize(cfg.ScriptCacheSize)
	}
	if deps.Middleware == nil {
		deps.Middleware = NewMiddlewareRegistry()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.TimerCtor == nil {
		deps.TimerCtor = scheduler.NewTimer
	}

	ctx, cancel := context.WithCancel(context.Background())
	monitor := caravan.NewTopic[*api.MonitorEvent]()
	return &Engine{
		config:     cfg,
		caps:       deps.Capabilities,
		provider:   deps.Provider,
		scripts:    deps.Scripts,
		middleware: deps.Middleware,
		archive:    deps.Archive,
		monitor:    monitor,
		monitorOut: monitor.NewProducer(),
		scheduler:  scheduler.New(deps.Clock, deps.TimerCtor),
		clock:      deps.Clock,
		ctx:        ctx,
		cancel:     cancel,
		contexts:   util.NewPathTree[*Execution](),
		instances:  map[api.InstanceID]*Instance{},
		finished:   lru.NewCache[*Instance](cfg.InstanceCacheSize),
	}, nil
}

// Start begins running the engine's background scheduler
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		slog.Info("Engine starting")
		go e.scheduler.Run(e.ctx)
	})
}

// Stop cancels every running instance and waits for their step groups to
// unwind, up to the configured shutdown timeout. Later calls return the
// result of the first
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() {
		e.stopErr = e.stop()
	})
	return e.stopErr
}

func (e *Engine) stop() error {
	e.mu.Lock()
	e.stopped = true
	running := make([]*Instance, 0, len(e.instances))
	for _, inst := range e.instances {
		running = append(running, inst)
	}
	e.mu.Unlock()

	for _, inst := range running {
		inst.Stop()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	defer e.cancel()
	select {
	case <-done:
		e.monitorOut.Close()
		slog.Info("Engine stopped")
		return nil
	case <-time.After(e.config.ShutdownTimeout):
		return ErrShutdownTimeout
	}
}

// Now returns the current time from the Engine's configured clock
func (e *Engine) Now() time.Time {
	return e.clock()
}

// Config returns the engine configuration
func (e *Engine) Config() *config.Config {
	return e.config
}

// Capabilities returns the capability registries steps are resolved from
func (e *Engine) Capabilities() *capability.Registries {
	return e.caps
}

// Provider returns the flow definition provider
func (e *Engine) Provider() provider.Provider {
	return e.provider
}

// Scripts returns the checker script registry
func (e *Engine) Scripts() *script.Registry {
	return e.scripts
}

// Middleware returns the registry of named middleware
func (e *Engine) Middleware() *MiddlewareRegistry {
	return e.middleware
}

// NewMonitorConsumer subscribes to the events published by the monitor
// middleware. The caller must Close the consumer
func (e *Engine) NewMonitorConsumer() MonitorConsumer {
	return e.monitor.NewConsumer()
}

func (e *Engine) publish(ev *api.MonitorEvent) {
	select {
	case e.monitorOut.Send() <- ev:
	case <-e.ctx.Done():
	}
}

func (e *Engine) register(x *Execution) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contexts.Insert(x.path, x)
}

func (e *Engine) unregister(x *Execution) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.contexts.Get(x.path); ok && cur == x {
		e.contexts.Remove(x.path)
	}
}

func (e *Engine) contextsUnder(path api.Path) []*Execution {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.contexts.Under(path)
}

func (e *Engine) childContexts(path api.Path) []*Execution {
	var res []*Execution
	for _, x := range e.contextsUnder(path) {
		if len(x.path) == len(path)+1 {
			res = append(res, x)
		}
	}
	return res
}
