// Package scheduler runs registered background tasks on a fixed cadence with
// a per-run execution budget.
//
// The scheduler mirrors the constraint model of mobile background job
// frameworks: a minimum spacing between runs, a hard per-run time budget
// enforced by a watchdog, and declarative placement constraints (network
// class, charging, idle) that the host process surfaces to its platform.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Default cadence and budget applied when Options leaves them zero.
const (
	DefaultMinimumInterval = 15 * time.Minute
	DefaultExecutionBudget = 10 * time.Minute
)

// Network is the connectivity class a task requires before it may run.
type Network int

const (
	// NetworkAny runs on any connection, metered or not.
	NetworkAny Network = iota
	// NetworkUnmetered runs only on unmetered connections.
	NetworkUnmetered
	// NetworkNone runs regardless of connectivity.
	NetworkNone
)

func (n Network) String() string {
	switch n {
	case NetworkUnmetered:
		return "unmetered"
	case NetworkNone:
		return "none"
	default:
		return "any"
	}
}

// TaskFunc is one unit of background work. The context is cancelled when the
// execution budget is exhausted or the scheduler stops.
type TaskFunc func(ctx context.Context) error

// Options configures scheduler cadence and placement constraints.
type Options struct {
	// MinimumInterval is the spacing between periodic runs.
	// Zero means DefaultMinimumInterval.
	MinimumInterval time.Duration
	// ExecutionBudget bounds a single run of a single task.
	// Zero means DefaultExecutionBudget.
	ExecutionBudget time.Duration
	// PersistOnTerminate keeps the schedule registered across host restarts.
	PersistOnTerminate bool
	// StartOnBoot requests the first run at host boot rather than the first
	// interval tick.
	StartOnBoot bool
	// Headless runs tasks without any foreground surface.
	Headless bool
	// RequiredNetwork gates runs on the connectivity class.
	RequiredNetwork Network
	// RequiresCharging gates runs on external power.
	RequiresCharging bool
	// RequiresIdle gates runs on device idleness.
	RequiresIdle bool

	Logger *log.Logger
}

// Spec is the scheduler's effective configuration, for status display.
type Spec struct {
	MinimumInterval    time.Duration `json:"minimum_interval"`
	ExecutionBudget    time.Duration `json:"execution_budget"`
	PersistOnTerminate bool          `json:"persist_on_terminate"`
	StartOnBoot        bool          `json:"start_on_boot"`
	Headless           bool          `json:"headless"`
	RequiredNetwork    string        `json:"required_network"`
	RequiresCharging   bool          `json:"requires_charging"`
	RequiresIdle       bool          `json:"requires_idle"`
	Tasks              []string      `json:"tasks"`
}

type task struct {
	name      string
	run       TaskFunc
	onTimeout func()
}

// Scheduler runs registered tasks periodically. Register before Start; Start
// and Stop pair, and RunOnce may be used without Start for manual triggers.
type Scheduler struct {
	opts   Options
	logger *log.Logger

	mu      sync.Mutex
	tasks   []*task
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a scheduler with the given options.
func New(opts Options) *Scheduler {
	if opts.MinimumInterval <= 0 {
		opts.MinimumInterval = DefaultMinimumInterval
	}
	if opts.ExecutionBudget <= 0 {
		opts.ExecutionBudget = DefaultExecutionBudget
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[scheduler] ", log.LstdFlags)
	}
	return &Scheduler{
		opts:   opts,
		logger: logger,
	}
}

// Register adds a named task. onTimeout, if non-nil, is invoked once when a
// run exhausts its execution budget. Registration order is run order.
func (s *Scheduler) Register(name string, run TaskFunc, onTimeout func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, &task{name: name, run: run, onTimeout: onTimeout})
}

// Spec returns the effective configuration and registered task names.
func (s *Scheduler) Spec() Spec {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec := Spec{
		MinimumInterval:    s.opts.MinimumInterval,
		ExecutionBudget:    s.opts.ExecutionBudget,
		PersistOnTerminate: s.opts.PersistOnTerminate,
		StartOnBoot:        s.opts.StartOnBoot,
		Headless:           s.opts.Headless,
		RequiredNetwork:    s.opts.RequiredNetwork.String(),
		RequiresCharging:   s.opts.RequiresCharging,
		RequiresIdle:       s.opts.RequiresIdle,
	}
	for _, t := range s.tasks {
		spec.Tasks = append(spec.Tasks, t.name)
	}
	return spec
}

// Start begins periodic execution. If StartOnBoot is set, the first run
// happens immediately; otherwise it waits one interval. Returns an error if
// the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)

	s.logger.Printf("Started, interval %s, budget %s", s.opts.MinimumInterval, s.opts.ExecutionBudget)
	return nil
}

// Stop cancels the periodic loop and waits for any in-flight run to yield.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Printf("Stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	if s.opts.StartOnBoot {
		s.RunOnce(ctx)
	}

	ticker := time.NewTicker(s.opts.MinimumInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes every registered task in registration order. Each task
// gets its own budget-bounded context; an overrunning task is force-completed
// by the watchdog, its onTimeout hook fires exactly once, and the scheduler
// moves on without waiting for it to unwind.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.mu.Lock()
	tasks := make([]*task, len(s.tasks))
	copy(tasks, s.tasks)
	budget := s.opts.ExecutionBudget
	s.mu.Unlock()

	for _, t := range tasks {
		if ctx.Err() != nil {
			return
		}
		s.runTask(ctx, t, budget)
	}
}

func (s *Scheduler) runTask(ctx context.Context, t *task, budget time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- t.run(runCtx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Printf("Task %s failed: %v", t.name, err)
		}
	case <-runCtx.Done():
		if ctx.Err() != nil {
			// Scheduler shutdown, not a budget overrun.
			return
		}
		s.logger.Printf("Task %s exceeded budget %s, force-completed", t.name, budget)
		if t.onTimeout != nil {
			t.onTimeout()
		}
	}
}
