package autodoc

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// NewLimitedRunner creates a runner with bounded concurrency. Tasks still
// waiting for a slot when ctx ends are skipped and report ctx.Err().
func NewLimitedRunner(ctx context.Context, maxConcurrency int) Runner {
	return newErrGroupRunner(ctx, max(1, maxConcurrency))
}

// errGroupRunner is the default implementation backed by errgroup.Group.
type errGroupRunner struct {
	ctx context.Context // derived ctx shared by all tasks
	eg  *errgroup.Group
	sem chan struct{} // concurrency gate
}

func newErrGroupRunner(parent context.Context, maxConcurrency int) *errGroupRunner {
	eg, ctx := errgroup.WithContext(parent)
	return &errGroupRunner{
		ctx: ctx,
		eg:  eg,
		sem: make(chan struct{}, maxConcurrency),
	}
}

func (r *errGroupRunner) Go(fn func() error) {
	r.eg.Go(func() error {
		select {
		case r.sem <- struct{}{}: // acquire
		case <-r.ctx.Done():
			return r.ctx.Err()
		}
		defer func() { <-r.sem }() // release
		return fn()
	})
}

func (r *errGroupRunner) Wait() error { return r.eg.Wait() }
