package updater

import (
	"context"
	"testing"
	"time"

	"github.com/mybus-data/internal/common/logger"
)

func TestSchedulerRunsImmediatelyAndStops(t *testing.T) {
	f := newCheckerFixture(t, Config{})
	s := NewScheduler(f.checker, time.Hour, logger.Nop())

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for f.recorder.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !s.IsRunning() {
		t.Fatal("Expected scheduler to be running")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Scheduler did not stop")
	}

	if f.endpoint.calls != 1 {
		t.Errorf("Expected one initial check, got %d", f.endpoint.calls)
	}
	if s.IsRunning() {
		t.Error("Expected scheduler to report stopped")
	}
}

func TestSchedulerStopWhenNotRunning(t *testing.T) {
	f := newCheckerFixture(t, Config{})
	s := NewScheduler(f.checker, time.Hour, logger.Nop())
	if err := s.Stop(); err == nil {
		t.Error("Expected error stopping an idle scheduler")
	}
}
