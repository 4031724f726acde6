package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type docResult struct {
	docID string
	err   error
}

func (r docResult) GetError() error { return r.err }

// docJob pretends to analyze one document
type docJob struct {
	docID string
	delay time.Duration
	fail  bool
	runs  *atomic.Int32
	onRun func()
	onEnd func()
}

func (j docJob) Execute(ctx context.Context) Result {
	if j.runs != nil {
		j.runs.Add(1)
	}
	if j.onRun != nil {
		j.onRun()
	}
	if j.onEnd != nil {
		defer j.onEnd()
	}
	if j.delay > 0 {
		t := time.NewTimer(j.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return docResult{docID: j.docID, err: ctx.Err()}
		}
	}
	if j.fail {
		return docResult{docID: j.docID, err: errors.New("analysis failed")}
	}
	return docResult{docID: j.docID}
}

func TestNewPool_WorkerCount(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: 3, want: 3},
		{in: 0, want: 1},
		{in: -4, want: 1},
	}
	for _, tt := range tests {
		if got := NewPool(context.Background(), tt.in).workers; got != tt.want {
			t.Errorf("NewPool(%d).workers = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPool_RunsEveryDocument(t *testing.T) {
	pool := NewPool(context.Background(), 3)
	pool.Start()

	var runs atomic.Int32
	const docs = 40
	for i := range docs {
		pool.Submit(docJob{docID: fmt.Sprintf("doc-%d", i), runs: &runs})
	}

	results := pool.Wait()
	if len(results) != docs {
		t.Fatalf("got %d results, want %d", len(results), docs)
	}
	if got := runs.Load(); got != docs {
		t.Errorf("executed %d jobs, want %d", got, docs)
	}
}

func TestPool_ResultsFollowSubmission(t *testing.T) {
	pool := NewPool(context.Background(), 4)
	pool.Start()

	const docs = 10
	for i := range docs {
		// later documents finish first
		pool.Submit(docJob{docID: fmt.Sprintf("doc-%d", i), delay: time.Duration(docs-i) * time.Millisecond})
	}

	for i, res := range pool.Wait() {
		if want := fmt.Sprintf("doc-%d", i); res.(docResult).docID != want {
			t.Errorf("slot %d holds %s, want %s", i, res.(docResult).docID, want)
		}
	}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	const workers = 4
	pool := NewPool(context.Background(), workers)
	pool.Start()

	var active, peak atomic.Int32
	for i := range 24 {
		pool.Submit(docJob{
			docID: fmt.Sprintf("doc-%d", i),
			delay: 5 * time.Millisecond,
			onRun: func() {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
			},
			onEnd: func() { active.Add(-1) },
		})
	}
	pool.Wait()

	if p := peak.Load(); p > workers {
		t.Errorf("peak concurrency %d exceeds %d workers", p, workers)
	}
	if p := peak.Load(); p == 0 {
		t.Error("no job observed running")
	}
}

func TestPool_FailureStaysInItsSlot(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	pool.Submit(docJob{docID: "bad", fail: true})
	pool.Submit(docJob{docID: "good"})

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].GetError() == nil {
		t.Error("failed document lost its error")
	}
	if err := results[1].GetError(); err != nil {
		t.Errorf("good document carries error: %v", err)
	}
}

func TestPool_SubmitAfterShutdownRejected(t *testing.T) {
	pool := NewPool(context.Background(), 1)
	pool.Start()
	pool.Shutdown()

	got := make(chan int, 1)
	go func() { got <- pool.Submit(docJob{docID: "late"}) }()

	select {
	case idx := <-got:
		if idx != -1 {
			t.Errorf("Submit returned %d after shutdown, want -1", idx)
		}
	case <-time.After(time.Second):
		t.Fatal("Submit blocked after shutdown")
	}
}

func TestPool_ShutdownInterruptsRunningJob(t *testing.T) {
	pool := NewPool(context.Background(), 1)
	pool.Start()

	running := make(chan struct{})
	pool.Submit(docJob{docID: "slow", delay: 5 * time.Second, onRun: func() { close(running) }})
	<-running

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not interrupt the running job")
	}
}

func TestPool_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 1)
	pool.Start()

	pool.Submit(docJob{docID: "slow", delay: time.Second})
	cancel()

	results := pool.Wait()
	if len(results) != 1 {
		t.Fatalf("got %d result slots, want 1", len(results))
	}
	if res := results[0]; res != nil && res.GetError() == nil {
		t.Error("cancelled document reported success")
	}
}
