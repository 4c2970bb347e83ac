package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestRunOnce_RunsTasksInOrder tests registration order execution
func TestRunOnce_RunsTasksInOrder(t *testing.T) {
	s := New(Options{})

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		s.Register(name, func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}, nil)
	}

	s.RunOnce(context.Background())

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("ran %d tasks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

// TestRunOnce_TaskErrorDoesNotStopOthers tests isolation between tasks
func TestRunOnce_TaskErrorDoesNotStopOthers(t *testing.T) {
	s := New(Options{})

	var ran atomic.Bool
	s.Register("failing", func(ctx context.Context) error {
		return errors.New("boom")
	}, nil)
	s.Register("after", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}, nil)

	s.RunOnce(context.Background())

	if !ran.Load() {
		t.Error("task after a failing task did not run")
	}
}

// TestRunOnce_BudgetTimeout tests that an overrunning task is
// force-completed and its timeout hook fires exactly once
func TestRunOnce_BudgetTimeout(t *testing.T) {
	s := New(Options{ExecutionBudget: 50 * time.Millisecond})

	var timeouts atomic.Int32
	release := make(chan struct{})
	s.Register("stuck", func(ctx context.Context) error {
		<-release
		return nil
	}, func() {
		timeouts.Add(1)
	})

	var after atomic.Bool
	s.Register("after", func(ctx context.Context) error {
		after.Store(true)
		return nil
	}, nil)

	start := time.Now()
	s.RunOnce(context.Background())
	close(release)

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("RunOnce() blocked for %v on a stuck task", elapsed)
	}
	if got := timeouts.Load(); got != 1 {
		t.Errorf("onTimeout fired %d times, want 1", got)
	}
	if !after.Load() {
		t.Error("task after the stuck task did not run")
	}
}

// TestStartStop_RunsPeriodically tests the ticker loop
func TestStartStop_RunsPeriodically(t *testing.T) {
	s := New(Options{
		MinimumInterval: 20 * time.Millisecond,
		StartOnBoot:     true,
	})

	var runs atomic.Int32
	s.Register("count", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs before deadline, want at least 2", runs.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	s.Stop()
	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if runs.Load() != settled {
		t.Error("tasks still running after Stop()")
	}
}

// TestStart_AlreadyRunning tests double-start rejection
func TestStart_AlreadyRunning(t *testing.T) {
	s := New(Options{MinimumInterval: time.Hour})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer s.Stop()

	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded, want error")
	}
}

// TestSpec_ReflectsOptions tests the metadata snapshot
func TestSpec_ReflectsOptions(t *testing.T) {
	s := New(Options{
		MinimumInterval:  30 * time.Minute,
		ExecutionBudget:  5 * time.Minute,
		StartOnBoot:      true,
		Headless:         true,
		RequiredNetwork:  NetworkUnmetered,
		RequiresCharging: true,
	})
	s.Register("sync", func(ctx context.Context) error { return nil }, nil)

	spec := s.Spec()
	if spec.MinimumInterval != 30*time.Minute {
		t.Errorf("MinimumInterval = %v, want 30m", spec.MinimumInterval)
	}
	if spec.RequiredNetwork != "unmetered" {
		t.Errorf("RequiredNetwork = %q, want 'unmetered'", spec.RequiredNetwork)
	}
	if len(spec.Tasks) != 1 || spec.Tasks[0] != "sync" {
		t.Errorf("Tasks = %v, want [sync]", spec.Tasks)
	}
}

// TestDefaults tests that zero options fall back to the documented values
func TestDefaults(t *testing.T) {
	s := New(Options{})
	spec := s.Spec()
	if spec.MinimumInterval != DefaultMinimumInterval {
		t.Errorf("MinimumInterval = %v, want %v", spec.MinimumInterval, DefaultMinimumInterval)
	}
	if spec.ExecutionBudget != DefaultExecutionBudget {
		t.Errorf("ExecutionBudget = %v, want %v", spec.ExecutionBudget, DefaultExecutionBudget)
	}
}
