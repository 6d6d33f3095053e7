package frame

import (
	"context"
	"time"

	"neofeed/models"

	log "github.com/sirupsen/logrus"
)

// UpdateFunc runs once per tick with the loop's state
type UpdateFunc func(now time.Time, state *State) error

type system struct {
	name string
	fn   UpdateFunc
}

// Scheduler calls its update functions in registration order, once per tick.
// Tick must stay non-blocking: update functions may not wait on I/O.
type Scheduler struct {
	systems []system
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) Add(name string, fn UpdateFunc) *Scheduler {
	s.systems = append(s.systems, system{name: name, fn: fn})
	return s
}

// Tick runs every update function. An error from one function is logged
// and does not stop the functions after it.
func (s *Scheduler) Tick(now time.Time, state *State) {
	for _, sys := range s.systems {
		if err := sys.fn(now, state); err != nil {
			log.WithFields(log.Fields{
				"system": sys.name,
				"tick":   state.Tick,
			}).WithError(err).Warn("Update function failed")
		}
	}
	state.Tick++
}

// Poller is the frame side of the bridge
type Poller interface {
	Poll() (models.BridgeResult, bool)
}

// PollBridge reads at most one result per tick and replaces materialized
// state with it. An empty queue leaves state untouched.
func PollBridge(p Poller) UpdateFunc {
	return func(now time.Time, state *State) error {
		result, ok := p.Poll()
		if !ok {
			return nil
		}
		if state.Waiting > 0 {
			state.Waiting--
		}
		state.Replace(result)
		return nil
	}
}

// Tracker reports requests still waiting for a result
type Tracker interface {
	Outstanding() int
}

// TrackWaiting copies the bridge's outstanding count into state.Waiting, so
// requests the bridge dropped stop being counted
func TrackWaiting(t Tracker) UpdateFunc {
	return func(now time.Time, state *State) error {
		state.Waiting = t.Outstanding()
		return nil
	}
}

// Loop drives a scheduler from a ticker for consumers without their own
// frame clock
type Loop struct {
	Scheduler *Scheduler
	State     *State
	Interval  time.Duration
}

// Run ticks until ctx is done
func (l *Loop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			l.Scheduler.Tick(now, l.State)
		}
	}
}
