package autodoc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestPool(t *testing.T, r *FakeRenderer, size int) *Pool {
	t.Helper()
	p, err := NewPool(r.Factory(), PoolConfig{Size: size, MinSettle: time.Millisecond, Logger: discardLogger()})
	require.NoError(t, err)
	return p
}

func TestPoolSizeFor(t *testing.T) {
	tests := []struct {
		budget, worker, want int
	}{
		{1024, 128, 8},
		{100, 128, 1},
		{0, 128, 1},
		{1024, 0, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.budget, tt.worker), func(t *testing.T) {
			assert.Equal(t, tt.want, PoolSizeFor(tt.budget, tt.worker))
		})
	}

	p, err := NewPool((&FakeRenderer{}).Factory(), PoolConfig{MemoryBudgetMB: 512, WorkerMemoryMB: 128})
	require.NoError(t, err)
	assert.Equal(t, 4, p.Size())

	_, err = NewPool(nil, PoolConfig{})
	assert.Error(t, err)
}

func TestPool_Formats(t *testing.T) {
	r := &FakeRenderer{}
	p := newTestPool(t, r, 1)
	defer p.Close()

	for _, f := range []OutputFormat{FormatPDF, FormatPNG, FormatHTML} {
		t.Run(string(f), func(t *testing.T) {
			out, err := p.Render(t.Context(), RenderJob{Markup: "<p>hi</p>", Format: f})
			require.NoError(t, err)
			assert.NoError(t, verifyOutput(f, out))
		})
	}
	assert.Equal(t, 1, r.Created(), "the worker is reused between jobs")
	assert.Equal(t, int64(3), p.Stats().Rendered)
}

// Many more jobs than workers: every job completes, no more than Size
// workers ever exist or render at once, and nothing leaks after Close.
func TestPool_Stress(t *testing.T) {
	defer goleak.VerifyNone(t)

	const size, jobs = 3, 60
	r := &FakeRenderer{Delay: 2 * time.Millisecond}
	p := newTestPool(t, r, size)

	var wg sync.WaitGroup
	errs := make(chan error, jobs)
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.Render(context.Background(), RenderJob{
				Markup:   fmt.Sprintf("<p>%d</p>", i),
				Format:   FormatPDF,
				Deadline: time.Now().Add(10 * time.Second),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, r.MaxConcurrent(), size)
	assert.LessOrEqual(t, r.Created(), size)
	stats := p.Stats()
	assert.LessOrEqual(t, stats.PeakInUse, size)
	assert.Equal(t, int64(jobs), stats.Rendered)
	assert.Zero(t, stats.InUse)

	require.NoError(t, p.Close())
	assert.Equal(t, r.Created(), r.Closed())
	assert.Zero(t, p.Stats().Live)
}

func TestPool_DeadlineShorterThanSettle(t *testing.T) {
	r := &FakeRenderer{}
	p, err := NewPool(r.Factory(), PoolConfig{Size: 1, MinSettle: 50 * time.Millisecond, Logger: discardLogger()})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Render(t.Context(), RenderJob{Markup: "<p/>", Format: FormatPDF, Deadline: time.Now().Add(10 * time.Millisecond)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderTimeout)
	assert.Zero(t, r.Created(), "no worker is touched")
	assert.Equal(t, int64(1), p.Stats().Timeouts)
}

func TestPool_SlowRenderTimesOut(t *testing.T) {
	r := &FakeRenderer{Delay: 500 * time.Millisecond}
	p := newTestPool(t, r, 1)
	defer p.Close()

	_, err := p.Render(t.Context(), RenderJob{Markup: "<p/>", Format: FormatPDF, Deadline: time.Now().Add(50 * time.Millisecond)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderTimeout)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Discarded)
	assert.Zero(t, stats.Live)
	assert.Equal(t, 1, r.Closed())
}

func TestPool_WaitingForSlotTimesOut(t *testing.T) {
	r := &FakeRenderer{Delay: 300 * time.Millisecond}
	p := newTestPool(t, r, 1)
	defer p.Close()

	done := make(chan error, 1)
	go func() {
		_, err := p.Render(context.Background(), RenderJob{Markup: "<p/>", Format: FormatPDF})
		done <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().InUse == 1 }, time.Second, time.Millisecond)

	_, err := p.Render(t.Context(), RenderJob{Markup: "<p/>", Format: FormatPDF, Deadline: time.Now().Add(30 * time.Millisecond)})
	assert.ErrorIs(t, err, ErrRenderTimeout)
	require.NoError(t, <-done)
}

func TestPool_FailedWorkerDiscarded(t *testing.T) {
	r := &FakeRenderer{FailMarker: "BOOM"}
	p := newTestPool(t, r, 1)
	defer p.Close()

	_, err := p.Render(t.Context(), RenderJob{Markup: "<p>BOOM</p>", Format: FormatPDF})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRender)
	assert.Equal(t, 1, r.Closed())

	_, err = p.Render(t.Context(), RenderJob{Markup: "<p>fine</p>", Format: FormatPDF})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Created(), "a fresh worker replaces the failed one")

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Discarded)
	assert.Equal(t, int64(1), stats.Rendered)
	assert.Equal(t, 1, stats.Live)
}

func TestPool_FactoryError(t *testing.T) {
	r := &FakeRenderer{FactoryErr: errors.New("no chrome")}
	p := newTestPool(t, r, 2)
	defer p.Close()

	_, err := p.Render(t.Context(), RenderJob{Markup: "<p/>", Format: FormatPNG})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRender)
	assert.Contains(t, err.Error(), "no chrome")
	assert.Zero(t, p.Stats().Live)
}

func TestPool_Closed(t *testing.T) {
	r := &FakeRenderer{}
	p := newTestPool(t, r, 2)

	_, err := p.Render(t.Context(), RenderJob{Markup: "<p/>", Format: FormatPDF})
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, r.Closed(), "idle workers are stopped on close")

	_, err = p.Render(t.Context(), RenderJob{Markup: "<p/>", Format: FormatPDF})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestVerifyOutput(t *testing.T) {
	assert.ErrorIs(t, verifyOutput(FormatPDF, nil), ErrRender)
	assert.ErrorIs(t, verifyOutput(FormatPDF, []byte("<html></html>")), ErrRender)
	assert.ErrorIs(t, verifyOutput(FormatPNG, []byte("%PDF-1.4\n%%EOF")), ErrRender)
	assert.NoError(t, verifyOutput(FormatHTML, []byte("<html></html>")))
}
