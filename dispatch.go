package zipflow

import (
	"context"
	"sync"

	"github.com/brittlewing/zipflow/internal/workerpool"
)

// sharedPool lazily builds one process-wide workerpool.Pool per distinct
// maxWorkers value, so readers/writers constructed with the same Config
// share the same bound: up to maxWorkers workers may exist concurrently
// across all of them, not per caller.
var (
	poolsMu sync.Mutex
	pools   = map[int]*workerpool.Pool{}
)

func sharedWorkerPool(cfg Config) *workerpool.Pool {
	poolsMu.Lock()
	defer poolsMu.Unlock()
	if p, ok := pools[cfg.MaxWorkers]; ok {
		return p
	}
	p := workerpool.New(cfg.MaxWorkers, cfg.Logger)
	pools[cfg.MaxWorkers] = p
	return p
}

// dispatchedStage adapts a workerpool.Lease to the root package's Stage
// interface.
type dispatchedStage struct {
	lease *workerpool.Lease
}

func (d *dispatchedStage) Append(p []byte) ([]byte, error) { return d.lease.Append(p) }
func (d *dispatchedStage) Flush() ([]byte, uint32, error)  { return d.lease.Flush() }

// newDispatchedStage builds dir/policy's codec chain via the shared worker
// pool when cfg.UseWorkers is set and the policy actually needs a codec or
// crypto stage; otherwise it falls back to running the stage synchronously
// in-process (store with no encryption and no signature, or worker use
// disabled).
func newDispatchedStage(ctx context.Context, cfg Config, dir Direction, policy StagePolicy, codecFactory func() (codecStage, error), cryptoFactory func() (cryptoStage, error)) (Stage, error) {
	needsWorker := policy.Compressed || policy.Encrypted || policy.Signed
	if !cfg.UseWorkers || !needsWorker {
		return newStage(dir, policy, codecFactory, cryptoFactory)
	}

	pool := sharedWorkerPool(cfg)
	lease, err := pool.Acquire(ctx, func() (workerpool.Stage, error) {
		return newStage(dir, policy, codecFactory, cryptoFactory)
	})
	if err != nil {
		return nil, err
	}
	return &dispatchedStage{lease: lease}, nil
}
