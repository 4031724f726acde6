// Package worker runs document jobs concurrently and throttles model calls.
package worker

import (
	"context"
	"sync"
)

// Job is one unit of work, usually the analysis of a single document
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a Job produced; GetError is nil on success
type Result interface {
	GetError() error
}

type slot struct {
	pos int
	job Job
}

// Pool executes jobs on a fixed set of goroutines. Wait returns results
// indexed by submission order, whatever order the jobs finished in.
type Pool struct {
	workers int
	queue   chan slot
	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
	closed  sync.Once

	mu      sync.Mutex
	next    int
	results map[int]Result
}

// NewPool returns a pool of n workers (at least one) whose jobs inherit ctx
func NewPool(ctx context.Context, n int) *Pool {
	if ctx == nil {
		ctx = context.Background()
	}
	n = max(n, 1)
	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		workers: n,
		queue:   make(chan slot, 2*n),
		ctx:     ctx,
		cancel:  cancel,
		results: make(map[int]Result),
	}
}

// Start launches the workers
func (p *Pool) Start() {
	for range p.workers {
		p.running.Go(p.loop)
	}
}

func (p *Pool) loop() {
	for {
		var s slot
		var ok bool
		select {
		case <-p.ctx.Done():
			return
		case s, ok = <-p.queue:
		}
		if !ok {
			return
		}
		res := s.job.Execute(p.ctx)
		p.mu.Lock()
		p.results[s.pos] = res
		p.mu.Unlock()
	}
}

// Submit enqueues job and returns the index its result will occupy, or -1
// if the pool was shut down. It blocks while the queue is full and must not
// be called after Wait.
func (p *Pool) Submit(job Job) int {
	if p.ctx.Err() != nil {
		return -1
	}
	p.mu.Lock()
	pos := p.next
	p.next++
	p.mu.Unlock()

	select {
	case p.queue <- slot{pos: pos, job: job}:
		return pos
	case <-p.ctx.Done():
		return -1
	}
}

// Wait stops accepting jobs, drains the queue and returns every result.
// Jobs cut off by cancellation leave a nil entry.
func (p *Pool) Wait() []Result {
	p.closed.Do(func() { close(p.queue) })
	p.running.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Result, p.next)
	for i := range out {
		out[i] = p.results[i]
	}
	return out
}

// Shutdown cancels in-flight jobs and waits for the workers to exit
func (p *Pool) Shutdown() {
	p.cancel()
	p.running.Wait()
}
