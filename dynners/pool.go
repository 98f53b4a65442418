package dynners

import (
	"context"
	"dynners/log"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Pool runs the independent pieces of a tick: source lookups and provider
// calls. Its size bounds how many of them are in flight at once.
type Pool struct {
	pool *ants.Pool
}

func NewPool(ctx context.Context, size int) (*Pool, error) {
	p, err := ants.NewPool(size,
		ants.WithLogger(log.PoolLogger(ctx)),
		ants.WithPanicHandler(func(v any) {
			log.S(ctx).Errorw("worker panicked", "panic", v, log.Internal)
		}))
	if err != nil {
		log.S(ctx).Errorw("failed create worker pool", "size", size, zap.Error(err))
		return nil, fmt.Errorf("failed create worker pool: %w", err)
	}

	return &Pool{pool: p}, nil
}

// Run calls task(0) .. task(n-1) concurrently and waits for all of them.
// A panicking task reports an error instead of taking the process down.
func (p *Pool) Run(ctx context.Context, n int, task func(i int) error) []error {
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		run := func() {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					log.S(ctx).Errorw("task panicked", "panic", v, "stack", string(debug.Stack()), log.Internal)
					errs[i] = fmt.Errorf("panic: %v", v)
				}
			}()

			errs[i] = task(i)
		}

		wg.Add(1)
		if err := p.pool.Submit(run); err != nil {
			// closed pool: run inline so the tick still completes
			log.S(ctx).Warnw("failed submit task, running inline", zap.Error(err))
			run()
		}
	}

	wg.Wait()
	return errs
}

func (p *Pool) Release() {
	p.pool.Release()
}
