package autodoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// RenderRequest is what a worker receives for one job.
type RenderRequest struct {
	Markup        string
	Format        OutputFormat
	SettleTimeout time.Duration // inner bound on the content settle wait
	MinSettle     time.Duration // quiet period that counts as settled
}

// Worker is one renderer instance. A worker is used by a single job at a
// time and is closed instead of reused after any error.
type Worker interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
	Close() error
}

// WorkerFactory spins up a fresh worker.
type WorkerFactory func(ctx context.Context) (Worker, error)

// PoolConfig sizes the render pool.
type PoolConfig struct {
	Size           int // 0 derives the size from the memory budget
	MemoryBudgetMB int
	WorkerMemoryMB int
	SettleTimeout  time.Duration
	MinSettle      time.Duration
	Logger         *slog.Logger
}

// PoolSizeFor derives a pool size from a memory budget, at least one.
func PoolSizeFor(budgetMB, workerMB int) int {
	if workerMB <= 0 || budgetMB <= 0 {
		return 1
	}
	return max(1, budgetMB/workerMB)
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Size      int   `json:"size"`
	Live      int   `json:"live"`
	Idle      int   `json:"idle"`
	InUse     int   `json:"inUse"`
	PeakInUse int   `json:"peakInUse"`
	Created   int64 `json:"created"`
	Discarded int64 `json:"discarded"`
	Rendered  int64 `json:"rendered"`
	Timeouts  int64 `json:"timeouts"`
}

// Pool is a bounded set of renderer workers. Workers are created lazily,
// never exceed Size, and are discarded after any failed job.
type Pool struct {
	factory WorkerFactory
	cfg     PoolConfig
	size    int
	sem     *semaphore.Weighted
	log     *slog.Logger

	mu     sync.Mutex
	idle   []Worker
	live   int
	inUse  int
	closed bool
	stats  PoolStats
}

// NewPool creates a pool. No worker is started until the first render.
func NewPool(factory WorkerFactory, cfg PoolConfig) (*Pool, error) {
	if factory == nil {
		return nil, errors.New("render pool: nil worker factory")
	}
	size := cfg.Size
	if size <= 0 {
		size = PoolSizeFor(cfg.MemoryBudgetMB, cfg.WorkerMemoryMB)
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 10 * time.Second
	}
	if cfg.MinSettle <= 0 {
		cfg.MinSettle = 50 * time.Millisecond
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		factory: factory,
		cfg:     cfg,
		size:    size,
		sem:     semaphore.NewWeighted(int64(size)),
		log:     log,
	}, nil
}

// Size returns the maximum number of workers.
func (p *Pool) Size() int { return p.size }

// Render acquires a worker, renders job and releases the worker. The whole
// sequence is bounded by job.Deadline and ctx. A job that cannot settle
// before its deadline fails with ErrRenderTimeout without touching a worker.
func (p *Pool) Render(ctx context.Context, job RenderJob) ([]byte, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if !job.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, job.Deadline)
		defer cancel()
	}
	log := p.log.With("job", job.ID, "format", job.Format)

	settle := p.cfg.SettleTimeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < p.cfg.MinSettle {
			p.countTimeout()
			return nil, fmt.Errorf("%w: %v left, content needs at least %v to settle",
				ErrRenderTimeout, remaining.Round(time.Millisecond), p.cfg.MinSettle)
		}
		settle = min(settle, remaining)
	}
	if p.isClosed() {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, p.ctxError(ctx, "waiting for a worker", err)
	}
	defer p.sem.Release(1)
	log.Debug("worker slot acquired", "waited", time.Since(start))

	w, err := p.checkout(ctx)
	if err != nil {
		return nil, err
	}

	out, err := w.Render(ctx, RenderRequest{
		Markup:        job.Markup,
		Format:        job.Format,
		SettleTimeout: settle,
		MinSettle:     p.cfg.MinSettle,
	})
	if err == nil && ctx.Err() != nil {
		// finished after the deadline: never hand out a late result
		err = ctx.Err()
	}
	if err == nil {
		err = verifyOutput(job.Format, out)
	}
	p.checkin(w, err == nil)

	if err != nil {
		log.Debug("render failed, worker discarded", "error", err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.countTimeout()
			return nil, fmt.Errorf("%w: %v", ErrRenderTimeout, err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if errors.Is(err, ErrRender) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	log.Debug("render complete", "bytes", len(out), "elapsed", time.Since(start))
	return out, nil
}

func (p *Pool) ctxError(ctx context.Context, what string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		p.countTimeout()
		return fmt.Errorf("%w: %s", ErrRenderTimeout, what)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// checkout pops an idle worker or creates one. The caller holds a
// semaphore slot, so live never exceeds size.
func (p *Pool) checkout(ctx context.Context) (Worker, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		w := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.markInUse()
		p.mu.Unlock()
		return w, nil
	}
	p.live++
	p.markInUse()
	p.mu.Unlock()

	w, err := p.factory(ctx)
	if err != nil {
		p.mu.Lock()
		p.live--
		p.inUse--
		p.mu.Unlock()
		return nil, p.startError(ctx, err)
	}
	p.mu.Lock()
	p.stats.Created++
	p.mu.Unlock()
	p.log.Debug("render worker started")
	return w, nil
}

func (p *Pool) startError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		p.countTimeout()
		return fmt.Errorf("%w: starting worker: %v", ErrRenderTimeout, err)
	}
	return fmt.Errorf("%w: starting worker: %v", ErrRender, err)
}

// markInUse must be called with mu held.
func (p *Pool) markInUse() {
	p.inUse++
	p.stats.PeakInUse = max(p.stats.PeakInUse, p.inUse)
}

// checkin returns a healthy worker to the idle stack and discards the rest.
func (p *Pool) checkin(w Worker, healthy bool) {
	p.mu.Lock()
	p.inUse--
	if healthy && !p.closed {
		p.idle = append(p.idle, w)
		p.stats.Rendered++
		p.mu.Unlock()
		return
	}
	if healthy {
		p.stats.Rendered++
	} else {
		p.stats.Discarded++
	}
	p.live--
	p.mu.Unlock()

	if err := w.Close(); err != nil {
		p.log.Debug("closing worker", "error", err)
	}
}

func (p *Pool) countTimeout() {
	p.mu.Lock()
	p.stats.Timeouts++
	p.mu.Unlock()
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Size = p.size
	s.Live = p.live
	s.Idle = len(p.idle)
	s.InUse = p.inUse
	return s
}

// Close stops idle workers and rejects new jobs. Workers still rendering
// are closed when their job finishes.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.live -= len(idle)
	p.mu.Unlock()

	var errs []error
	for _, w := range idle {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// verifyOutput checks that binary output carries the requested format.
func verifyOutput(f OutputFormat, out []byte) error {
	if len(out) == 0 {
		return fmt.Errorf("%w: renderer returned no bytes", ErrRender)
	}
	var want string
	switch f {
	case FormatPDF:
		want = "application/pdf"
	case FormatPNG:
		want = "image/png"
	default:
		return nil
	}
	if got := mimetype.Detect(out); !got.Is(want) {
		return fmt.Errorf("%w: expected %s output, got %s", ErrRender, want, got.String())
	}
	return nil
}
