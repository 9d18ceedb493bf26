// Package workerpool implements a bounded codec-worker dispatcher: up to
// maxWorkers worker identities may be bound to a stage session at once;
// new identities are spawned until maxWorkers exist, after which idle
// workers are rebound, and callers beyond the bound queue FIFO until one
// frees, mirroring the
// bounded-concurrency admission pattern cosnicolaou/pbzip2 uses for its
// decompression goroutines, built here on golang.org/x/sync/semaphore
// instead of a hand-rolled channel/heap pair.
package workerpool

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Stage is the minimal surface a dispatched codec session must provide.
// It mirrors the root package's Stage interface without importing it, so
// workerpool has no dependency on the zipflow root package.
type Stage interface {
	Append(p []byte) ([]byte, error)
	Flush() (tail []byte, signature uint32, err error)
}

// Factory builds the Stage a newly bound (or rebound) worker will run.
type Factory func() (Stage, error)

// Worker is a bound codec-worker identity, stable across rebinds so log
// lines and diagnostics can name a specific worker.
type Worker struct {
	ID string
}

// Pool is a bounded pool of worker identities admitting at most maxWorkers
// concurrent stage sessions.
type Pool struct {
	sem    *semaphore.Weighted
	max    int64
	logger *slog.Logger
	inUse  int64

	mu      sync.Mutex
	idle    []*Worker
	spawned int64
}

// New creates a Pool admitting at most maxWorkers concurrent sessions. A
// nil logger defaults to slog.Default().
func New(maxWorkers int, logger *slog.Logger) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(maxWorkers)),
		max:    int64(maxWorkers),
		logger: logger,
	}
}

// Lease is a bound worker session: a Stage plus the worker identity that
// backs it. Flush implicitly releases the worker, serving the next queued
// acquirer (if any) exactly as acquire's FIFO contract promises, since
// semaphore.Weighted wakes waiters in FIFO order.
type Lease struct {
	pool   *Pool
	worker *Worker
	stage  Stage

	mu       sync.Mutex
	released bool
}

// Worker returns the identity bound to this lease.
func (l *Lease) Worker() *Worker { return l.worker }

// Append threads p through the bound stage.
func (l *Lease) Append(p []byte) ([]byte, error) {
	out, err := l.stage.Append(p)
	if err != nil {
		l.release()
	}
	return out, err
}

// Flush finalises the bound stage and releases the worker back to the
// pool, whether or not it returns an error: an error from the worker
// invalidates the stage, and a poisoned stage has nothing left to hold a
// worker for.
func (l *Lease) Flush() ([]byte, uint32, error) {
	tail, sig, err := l.stage.Flush()
	l.release()
	return tail, sig, err
}

func (l *Lease) release() {
	l.mu.Lock()
	already := l.released
	l.released = true
	l.mu.Unlock()
	if already {
		return
	}
	l.pool.release(l.worker)
}

// Acquire binds a worker to a new Stage built by build, spawning a new
// worker identity if the pool has not yet reached maxWorkers, rebinding an
// idle worker in preference to spawning otherwise, and blocking FIFO (via
// the semaphore) when the pool is fully busy. The returned Lease's Flush
// must be called exactly once to release the worker; Append auto-releases
// on error since a failed stage is poisoned.
func (p *Pool) Acquire(ctx context.Context, build Factory) (*Lease, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	var w *Worker
	if n := len(p.idle); n > 0 && p.spawned >= p.max {
		w = p.idle[n-1]
		p.idle = p.idle[:n-1]
	} else {
		w = &Worker{ID: uuid.New().String()}
		p.spawned++
	}
	p.mu.Unlock()
	atomic.AddInt64(&p.inUse, 1)

	stage, err := build()
	if err != nil {
		p.release(w)
		return nil, err
	}

	p.logger.Debug("workerpool: acquired", "worker", w.ID)
	return &Lease{pool: p, worker: w, stage: stage}, nil
}

func (p *Pool) release(w *Worker) {
	p.mu.Lock()
	p.idle = append(p.idle, w)
	p.mu.Unlock()
	atomic.AddInt64(&p.inUse, -1)
	p.logger.Debug("workerpool: released", "worker", w.ID)
	p.sem.Release(1)
}

// InUse reports the number of permits currently checked out, for tests
// asserting the "no more than maxWorkers at any instant" property.
func (p *Pool) InUse() int64 { return atomic.LoadInt64(&p.inUse) }
