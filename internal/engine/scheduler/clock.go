package scheduler

import "time"

type (
	// Clock reports the current time. The engine uses one Clock for status
	// timestamps and for computing deadlines
	Clock func() time.Time

	// Timer is the resettable timer a Scheduler waits on
	Timer interface {
		Channel() <-chan time.Time
		Reset(delay time.Duration) bool
		Stop() bool
	}

	// TimerConstructor builds a Timer that first fires after delay
	TimerConstructor func(delay time.Duration) Timer

	wallTimer struct {
		*time.Timer
	}
)

// NewTimer builds a Timer backed by the runtime's timers
func NewTimer(delay time.Duration) Timer {
	return wallTimer{Timer: time.NewTimer(delay)}
}

func (t wallTimer) Channel() <-chan time.Time {
	return t.C
}
