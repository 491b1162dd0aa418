package queue

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func TestJobsReportTheirErrors(t *testing.T) {
	q := NewRequestQueueManager(4, 2, zerolog.Nop())
	defer q.Shutdown()

	want := errors.New("boom")
	errc := make(chan error, 1)
	q.EnqueueJob(Job{Fn: func() error { return want }, Errc: errc})

	if err := <-errc; !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestPanickingJobDoesNotKillWorker(t *testing.T) {
	q := NewRequestQueueManager(1, 1, zerolog.Nop())
	defer q.Shutdown()

	errc := make(chan error, 1)
	q.EnqueueJob(Job{Fn: func() error { panic("bad handler") }, Errc: errc})
	if err := <-errc; err == nil {
		t.Fatalf("expected panic to surface as an error")
	}

	q.EnqueueJob(Job{Fn: func() error { return nil }, Errc: errc})
	if err := <-errc; err != nil {
		t.Fatalf("worker should still serve jobs: %v", err)
	}
}

func TestShutdownDrainsQueue(t *testing.T) {
	q := NewRequestQueueManager(16, 3, zerolog.Nop())

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		q.EnqueueJob(Job{Fn: func() error { ran.Add(1); return nil }})
	}
	q.Shutdown()
	q.Shutdown()

	if got := ran.Load(); got != 10 {
		t.Fatalf("expected 10 jobs, got %d", got)
	}
}
