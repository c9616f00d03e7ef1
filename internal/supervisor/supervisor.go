// Package supervisor runs the long-lived units of the process and restarts
// them on failure within a bounded budget.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/soldag/soldag/pkg/logger"
)

// State is a unit's position in its lifecycle:
// Starting -> Running -> (Failed -> Restarting -> Running)* -> PermanentlyFailed.
type State string

const (
	StateStarting          State = "starting"
	StateRunning           State = "running"
	StateFailed            State = "failed"
	StateRestarting        State = "restarting"
	StatePermanentlyFailed State = "permanently_failed"
	StateStopped           State = "stopped"
)

const (
	// DefaultMaxRestarts is how many times a unit is restarted before it is
	// given up on. The budget counts consecutive failures only.
	DefaultMaxRestarts = 3
	// DefaultHealthyAfter is how long a unit must run for its failure count
	// to reset.
	DefaultHealthyAfter = time.Minute
)

// ErrAllUnitsFailed is returned by Run when no unit is left running.
var ErrAllUnitsFailed = errors.New("all supervised units permanently failed")

// Unit is one independently supervised long-running task. Run must block
// until failure or context cancellation; each restart calls it again, so it
// must build fresh internal state per call.
type Unit struct {
	Name string
	Run  func(ctx context.Context) error
}

type Supervisor struct {
	units        []Unit
	maxRestarts  int
	healthyAfter time.Duration
	logger       *slog.Logger

	mu     sync.RWMutex
	states map[string]State
}

type Option func(*Supervisor)

func WithMaxRestarts(n int) Option {
	return func(s *Supervisor) { s.maxRestarts = n }
}

func WithHealthyAfter(d time.Duration) Option {
	return func(s *Supervisor) { s.healthyAfter = d }
}

func New(units []Unit, opts ...Option) *Supervisor {
	s := &Supervisor{
		units:        units,
		maxRestarts:  DefaultMaxRestarts,
		healthyAfter: DefaultHealthyAfter,
		logger:       logger.With(slog.String("component", "supervisor")),
		states:       make(map[string]State, len(units)),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, u := range units {
		s.states[u.Name] = StateStarting
	}
	return s
}

// Run supervises all units until the context is cancelled or every unit has
// permanently failed. Units fail and restart independently of each other.
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, u := range s.units {
		wg.Add(1)
		go func(u Unit) {
			defer wg.Done()
			s.superviseUnit(ctx, u)
		}(u)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return ErrAllUnitsFailed
}

func (s *Supervisor) superviseUnit(ctx context.Context, u Unit) {
	failures := 0
	for {
		s.setState(u.Name, StateRunning)
		s.logger.Info("Unit running", "unit", u.Name)

		started := time.Now()
		err := runSafely(ctx, u)

		if ctx.Err() != nil {
			s.setState(u.Name, StateStopped)
			s.logger.Info("Unit stopped", "unit", u.Name)
			return
		}

		// A sustained healthy run forgives earlier failures.
		if time.Since(started) >= s.healthyAfter {
			failures = 0
		}
		failures++
		s.setState(u.Name, StateFailed)
		s.logger.Error("Unit failed", "unit", u.Name, "failures", failures, "err", err)

		if failures > s.maxRestarts {
			s.setState(u.Name, StatePermanentlyFailed)
			s.logger.Error("Unit permanently failed, giving up", "unit", u.Name)
			return
		}

		s.setState(u.Name, StateRestarting)
		s.logger.Warn("Restarting unit", "unit", u.Name, "attempt", failures)
	}
}

// runSafely converts panics and silent exits into errors so the restart
// budget applies uniformly.
func runSafely(ctx context.Context, u Unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit %s panicked: %v\n%s", u.Name, r, debug.Stack())
		}
	}()
	err = u.Run(ctx)
	if err == nil && ctx.Err() == nil {
		err = fmt.Errorf("unit %s exited unexpectedly", u.Name)
	}
	return err
}

func (s *Supervisor) setState(name string, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[name] = state
}

// Snapshot returns the current state of every unit, for health reporting.
func (s *Supervisor) Snapshot() map[string]State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]State, len(s.states))
	for name, state := range s.states {
		out[name] = state
	}
	return out
}
