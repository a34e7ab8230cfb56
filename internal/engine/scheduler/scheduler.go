// Package scheduler fires deadlines registered under execution context
// paths. The engine uses it for flow timeouts
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/log"
)

type (
	// Scheduler owns every pending deadline and fires them from the single
	// goroutine running Run. Registering a deadline at a path that already
	// holds one replaces it
	Scheduler struct {
		now      Clock
		newTimer TimerConstructor
		requests chan request
	}

	// Action is called once its deadline passes
	Action func()

	request struct {
		cancel bool
		path   api.Path
		at     time.Time
		fn     Action
	}
)

const requestBuffer = 100

// New creates a scheduler using the provided clock and timer constructor
func New(now Clock, newTimer TimerConstructor) *Scheduler {
	return &Scheduler{
		now:      now,
		newTimer: newTimer,
		requests: make(chan request, requestBuffer),
	}
}

// At registers an Action to run at the given time
func (s *Scheduler) At(
	ctx context.Context, path api.Path, at time.Time, fn Action,
) {
	s.send(ctx, request{path: path, at: at, fn: fn})
}

// After registers an Action to run once delay has elapsed
func (s *Scheduler) After(
	ctx context.Context, path api.Path, delay time.Duration, fn Action,
) {
	s.At(ctx, path, s.now().Add(delay), fn)
}

// Cancel drops the deadline at the path along with any registered by
// contexts nested below it
func (s *Scheduler) Cancel(ctx context.Context, path api.Path) {
	s.send(ctx, request{cancel: true, path: path})
}

// Run fires deadlines until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	pending := newDeadlines()
	timer := s.newTimer(0)
	defer timer.Stop()

	var fire <-chan time.Time
	rearm := func() {
		at, ok := pending.next()
		if !ok {
			timer.Stop()
			fire = nil
			return
		}
		timer.Reset(at.Sub(s.now()))
		fire = timer.Channel()
	}
	rearm()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.requests:
			if req.cancel {
				pending.cancel(req.path)
			} else if req.fn != nil && len(req.path) > 0 {
				pending.set(req.path, req.at, req.fn)
			}
			rearm()
		case <-fire:
			if dl, ok := pending.pop(); ok {
				slog.Debug("Deadline reached", log.Path(dl.path))
				dl.fn()
			}
			rearm()
		}
	}
}

func (s *Scheduler) send(ctx context.Context, req request) {
	select {
	case s.requests <- req:
	case <-ctx.Done():
	}
}
