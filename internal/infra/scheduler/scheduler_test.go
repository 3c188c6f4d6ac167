package scheduler

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// blockingReminders parks inside RunDailyCheck until released, so tests can
// hold a tick open and probe the overlap guard.
type blockingReminders struct {
	started    chan struct{}
	release    chan struct{}
	dailyCalls atomic.Int32
}

func newBlockingReminders() *blockingReminders {
	return &blockingReminders{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (r *blockingReminders) RunDailyCheck(ctx context.Context) error {
	r.dailyCalls.Add(1)
	r.started <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return nil
}

func (r *blockingReminders) RunWeeklyCheck(ctx context.Context) error { return nil }

func TestDailyTickDoesNotOverlap(t *testing.T) {
	fake := newBlockingReminders()
	s := NewReminderScheduler(fake, testLogger(), "0 * * * *", "15 * * * *")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runDailyTick()
	}()

	select {
	case <-fake.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick never started")
	}

	// With the first tick still in flight, a second one must be dropped.
	s.runDailyTick()
	if got := fake.dailyCalls.Load(); got != 1 {
		t.Fatalf("overlapping tick ran the check %d times, want 1", got)
	}

	close(fake.release)
	wg.Wait()

	// Once the first tick finishes, the next one runs again.
	s.runDailyTick()
	<-fake.started
	if got := fake.dailyCalls.Load(); got != 2 {
		t.Fatalf("check ran %d times after release, want 2", got)
	}
}

func TestStartRejectsInvalidCronSpec(t *testing.T) {
	fake := newBlockingReminders()
	s := NewReminderScheduler(fake, testLogger(), "not a cron spec", "15 * * * *")
	if err := s.Start(); err == nil {
		t.Fatal("expected an error for an invalid cron spec")
	}
}
