package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunsSubmittedTasks(t *testing.T) {
	p := New(Config{Core: 2, Max: 2, QueueSize: 10}, zerolog.Nop())
	defer p.Close()

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		if !p.Submit(func() { ran.Add(1) }) {
			t.Fatalf("Task %d rejected", i)
		}
	}
	waitFor(t, "tasks", func() bool { return ran.Load() == 10 })
	waitFor(t, "pending", func() bool { return p.Pending() == 0 })
}

func TestRejectsWhenQueueIsFull(t *testing.T) {
	p := New(Config{Core: 1, Max: 1, QueueSize: 1}, zerolog.Nop())
	block := make(chan struct{})
	started := make(chan struct{})

	if !p.Submit(func() { close(started); <-block }) {
		t.Fatal("First task rejected")
	}
	<-started
	if !p.Submit(func() {}) {
		t.Fatal("Queued task rejected")
	}
	submitted := time.Now()
	if p.Submit(func() {}) {
		t.Fatal("Task accepted beyond queue capacity")
	}
	if time.Since(submitted) > 100*time.Millisecond {
		t.Fatal("Rejection blocked the caller")
	}
	if s := p.Stats(); s.Rejected != 1 || s.Pending != 2 {
		t.Fatalf("Stats: %+v", s)
	}
	close(block)
	waitFor(t, "pending", func() bool { return p.Pending() == 0 })
	p.Close()
}

func TestSurplusWorkersStartAndRetire(t *testing.T) {
	p := New(Config{Core: 1, Max: 3, QueueSize: 0, IdleLifetime: 50 * time.Millisecond}, zerolog.Nop())
	defer p.Close()

	block := make(chan struct{})
	var running atomic.Int32
	// with no queue a task is only accepted by an idle or a new worker, and
	// the core worker may not be receiving yet
	for i := 0; i < 3; i++ {
		waitFor(t, "submit", func() bool { return p.Submit(func() { running.Add(1); <-block }) })
	}
	waitFor(t, "running", func() bool { return running.Load() == 3 })
	if p.Submit(func() {}) {
		t.Fatal("Task accepted beyond max workers")
	}
	close(block)
	waitFor(t, "retire", func() bool { return p.Stats().Workers == 1 })
}

func TestPanickingTaskDoesNotKillWorker(t *testing.T) {
	p := New(Config{Core: 1, Max: 1, QueueSize: 2}, zerolog.Nop())
	defer p.Close()

	p.Submit(func() { panic("boom") })
	done := make(chan struct{})
	p.Submit(func() { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Task after panic did not run")
	}
}

func TestCloseDropsQueuedTasks(t *testing.T) {
	p := New(Config{Core: 1, Max: 1, QueueSize: 5}, zerolog.Nop())
	block := make(chan struct{})
	started := make(chan struct{})
	p.Submit(func() { close(started); <-block })
	<-started
	for i := 0; i < 3; i++ {
		p.Submit(func() { t.Error("Queued task ran after Close") })
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(block)
	}()
	if dropped := p.Close(); dropped != 3 {
		t.Fatalf("Dropped %d tasks", dropped)
	}
	if p.Submit(func() {}) {
		t.Fatal("Task accepted after Close")
	}
	if p.Pending() != 0 {
		t.Fatalf("Pending is %d", p.Pending())
	}
}

func TestSubmitRacingClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		p := New(Config{Core: 1, Max: 2, QueueSize: 4}, zerolog.Nop())
		var accepted, ran atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					if p.Submit(func() { ran.Add(1) }) {
						accepted.Add(1)
					}
				}
			}()
		}
		dropped := p.Close()
		wg.Wait()

		if pending := p.Pending(); pending != 0 {
			t.Fatalf("Round %d: %d tasks pending after Close", round, pending)
		}
		if got := ran.Load() + int64(dropped); got != accepted.Load() {
			t.Fatalf("Round %d: %d accepted, %d ran or dropped", round, accepted.Load(), got)
		}
	}
}
