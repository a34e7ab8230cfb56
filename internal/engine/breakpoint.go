package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/kode4food/sequin/internal/engine/runopt"
	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/log"
	"github.com/kode4food/sequin/pkg/pipeline"
	"github.com/kode4food/sequin/pkg/util"
)

// Breakpoints holds attempts of armed steps until they are resumed. It is
// the service instance of the breakpoint middleware
type Breakpoints struct {
	mu      sync.Mutex
	armed   util.Set[api.StepID]
	waiting map[api.StepID]chan struct{}
}

func newBreakpoints(_ *Engine, opts *runopt.Options) (any, error) {
	return NewBreakpoints(opts.Breakpoints...), nil
}

// NewBreakpoints creates a controller armed at the given steps
func NewBreakpoints(ids ...api.StepID) *Breakpoints {
	return &Breakpoints{
		armed:   util.SetOf(ids...),
		waiting: map[api.StepID]chan struct{}{},
	}
}

// AttemptMiddleware holds attempts of armed steps
func (b *Breakpoints) AttemptMiddleware() AttemptMiddleware {
	return pipeline.Func[*Attempt](b.invoke)
}

func (b *Breakpoints) invoke(
	ctx context.Context, a *Attempt, next pipeline.Handler[*Attempt],
) error {
	if ch, ok := b.hold(a.StepID()); ok {
		slog.Info("Breakpoint reached",
			log.InstanceID(a.InstanceID()),
			log.Path(a.Path()),
			log.StepID(a.StepID()))
		select {
		case <-ch:
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
	return next(ctx, a)
}

func (b *Breakpoints) hold(id api.StepID) (chan struct{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.armed.Contains(id) {
		return nil, false
	}
	ch, ok := b.waiting[id]
	if !ok {
		ch = make(chan struct{})
		b.waiting[id] = ch
	}
	return ch, true
}

// Set arms the given steps
func (b *Breakpoints) Set(ids ...api.StepID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		b.armed.Add(id)
	}
}

// Clear disarms the given steps and releases any attempt they hold
func (b *Breakpoints) Clear(ids ...api.StepID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		b.armed.Remove(id)
		b.release(id)
	}
}

// Resume releases the attempts held at a step, reporting whether any were
func (b *Breakpoints) Resume(id api.StepID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.release(id)
}

func (b *Breakpoints) release(id api.StepID) bool {
	ch, ok := b.waiting[id]
	if ok {
		close(ch)
		delete(b.waiting, id)
	}
	return ok
}

// Armed returns the armed steps in id order
func (b *Breakpoints) Armed() []api.StepID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedIDs(b.armed.Items())
}

// Waiting returns the steps whose attempts are currently held
func (b *Breakpoints) Waiting() []api.StepID {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]api.StepID, 0, len(b.waiting))
	for id := range b.waiting {
		ids = append(ids, id)
	}
	return sortedIDs(ids)
}

func sortedIDs(ids []api.StepID) []api.StepID {
	slices.Sort(ids)
	return ids
}
