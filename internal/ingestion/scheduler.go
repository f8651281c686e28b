package ingestion

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"launch-watch/internal/observability"
	"launch-watch/internal/tracker"
)

// State is the scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// CycleRunner runs one poll cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context, id string, limit int) (tracker.CycleSummary, error)
}

// Default scheduling values.
const (
	DefaultInitialLimit = 50
	DefaultSteadyLimit  = 20
	DefaultInterval     = 30 * time.Second
	DefaultMinWakeGap   = 2 * time.Second
)

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	// InitialLimit is the listing limit of the first cycle. Default: 50.
	InitialLimit int
	// SteadyLimit is the listing limit of later cycles. Default: 20.
	SteadyLimit int
	// Interval is measured from the end of one cycle to the start of the next. Default: 30s.
	Interval time.Duration
	// MinWakeGap is the minimum idle time before a wake signal starts a cycle. Default: 2s.
	MinWakeGap time.Duration
	// Wake optionally signals that new activity is likely.
	Wake   <-chan struct{}
	Logger *zap.Logger
	// NewID returns cycle correlation ids. Default: uuid.NewString.
	NewID func() string
}

// Status is a point-in-time view of scheduler progress.
type Status struct {
	State        string
	Cycles       uint64
	FailedCycles uint64
	LastCycleID  string
	LastCycleAt  time.Time
	LastDuration time.Duration
	LastError    string
	LastSummary  tracker.CycleSummary
}

// Scheduler runs poll cycles sequentially: one eagerly at start, then one per
// interval after the previous cycle ends. Cycles never overlap.
type Scheduler struct {
	runner CycleRunner
	opts   SchedulerOptions
	logger *zap.Logger

	state    atomic.Int32
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu     sync.RWMutex
	status Status
}

// NewScheduler creates a scheduler for runner.
func NewScheduler(runner CycleRunner, opts SchedulerOptions) *Scheduler {
	if opts.InitialLimit <= 0 {
		opts.InitialLimit = DefaultInitialLimit
	}
	if opts.SteadyLimit <= 0 {
		opts.SteadyLimit = DefaultSteadyLimit
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MinWakeGap < 0 {
		opts.MinWakeGap = 0
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		runner: runner,
		opts:   opts,
		logger: logger.Named("scheduler"),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Status returns counters and the outcome of the last cycle.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.State = s.State().String()
	return st
}

// Stop cancels the pending timer. An in-flight cycle runs to completion, then Run returns.
// Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Done is closed when Run has returned.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run blocks until Stop is called or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.state.Store(int32(StateStopped))

	s.logger.Info("scheduler started",
		zap.Int("initial_limit", s.opts.InitialLimit),
		zap.Int("steady_limit", s.opts.SteadyLimit),
		zap.Duration("interval", s.opts.Interval))

	if s.stopped(ctx) {
		return nil
	}
	lastEnd := s.runCycle(ctx, s.opts.InitialLimit)

	next := lastEnd.Add(s.opts.Interval)
	timer := time.NewTimer(s.opts.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", zap.Error(ctx.Err()))
			return nil

		case <-s.stopCh:
			s.logger.Info("scheduler stopped")
			return nil

		case _, ok := <-s.opts.Wake:
			if !ok {
				s.opts.Wake = nil
				continue
			}
			observability.RecordWake()
			earliest := lastEnd.Add(s.opts.MinWakeGap)
			if earliest.Before(next) {
				next = earliest
				resetTimer(timer, time.Until(next))
			}

		case <-timer.C:
			if s.stopped(ctx) {
				return nil
			}
			lastEnd = s.runCycle(ctx, s.opts.SteadyLimit)
			next = lastEnd.Add(s.opts.Interval)
			timer.Reset(s.opts.Interval)
		}
	}
}

// stopped reports a pending stop so a fired timer does not start a cycle.
func (s *Scheduler) stopped(ctx context.Context) bool {
	select {
	case <-s.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// runCycle executes one cycle detached from ctx cancellation and returns its end time.
func (s *Scheduler) runCycle(ctx context.Context, limit int) time.Time {
	id := s.opts.NewID()
	s.state.Store(int32(StatePolling))
	defer s.state.CompareAndSwap(int32(StatePolling), int32(StateIdle))

	start := time.Now()
	summary, err := s.runner.RunCycle(context.WithoutCancel(ctx), id, limit)
	end := time.Now()
	duration := end.Sub(start)

	status := observability.CycleOK
	if err != nil {
		status = observability.CycleFailed
	}
	observability.RecordCycle(status, duration)

	s.mu.Lock()
	s.status.Cycles++
	if err != nil {
		s.status.FailedCycles++
		s.status.LastError = err.Error()
	} else {
		s.status.LastError = ""
	}
	s.status.LastCycleID = id
	s.status.LastCycleAt = end
	s.status.LastDuration = duration
	s.status.LastSummary = summary
	s.mu.Unlock()

	return end
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	if d < 0 {
		d = 0
	}
	t.Reset(d)
}
