package autodoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// StubOracle is a deterministic Oracle for tests. The zero value fails every
// call with ErrOracleUnavailable.
type StubOracle struct {
	DocumentType *DocumentTypeGuess
	Mappings     map[string][]MappingSuggestion // by template id
	Err          error
	Delay        time.Duration

	docCalls atomic.Int64
	mapCalls atomic.Int64
}

// GuessDocumentType implements Oracle.
func (s *StubOracle) GuessDocumentType(ctx context.Context, _ DocumentTypeRequest) (DocumentTypeGuess, error) {
	s.docCalls.Add(1)
	if err := s.wait(ctx); err != nil {
		return DocumentTypeGuess{}, err
	}
	if s.Err != nil {
		return DocumentTypeGuess{}, s.Err
	}
	if s.DocumentType == nil {
		return DocumentTypeGuess{}, ErrOracleUnavailable
	}
	return *s.DocumentType, nil
}

// SuggestMappings implements Oracle.
func (s *StubOracle) SuggestMappings(ctx context.Context, req MappingRequest) ([]MappingSuggestion, error) {
	s.mapCalls.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Mappings == nil {
		return nil, ErrOracleUnavailable
	}
	return s.Mappings[req.TemplateID], nil
}

// DocumentTypeCalls reports how often GuessDocumentType ran.
func (s *StubOracle) DocumentTypeCalls() int { return int(s.docCalls.Load()) }

// MappingCalls reports how often SuggestMappings ran.
func (s *StubOracle) MappingCalls() int { return int(s.mapCalls.Load()) }

func (s *StubOracle) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StubInvoker replays canned model responses in order; the last one repeats.
type StubInvoker struct {
	Responses [][]byte
	Err       error

	mu      sync.Mutex
	calls   int
	Prompts []string
}

// Generate implements Invoker.
func (s *StubInvoker) Generate(ctx context.Context, _ Model, prompt string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, prompt)
	i := min(s.calls, len(s.Responses)-1)
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if i < 0 {
		return nil, errors.New("stub invoker: no responses")
	}
	return s.Responses[i], nil
}

// Calls reports how often Generate ran.
func (s *StubInvoker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FakeRenderer produces well-formed fake documents without a browser.
// Markup containing FailMarker makes the worker fail; Delay simulates a
// slow render and honours ctx.
type FakeRenderer struct {
	Delay      time.Duration
	FailMarker string
	FactoryErr error

	created   atomic.Int64
	closed    atomic.Int64
	active    atomic.Int64
	maxActive atomic.Int64
}

// Factory returns a WorkerFactory backed by r.
func (r *FakeRenderer) Factory() WorkerFactory {
	return func(ctx context.Context) (Worker, error) {
		if r.FactoryErr != nil {
			return nil, r.FactoryErr
		}
		r.created.Add(1)
		return &fakeWorker{r: r}, nil
	}
}

// Created reports how many workers were started.
func (r *FakeRenderer) Created() int { return int(r.created.Load()) }

// Closed reports how many workers were closed.
func (r *FakeRenderer) Closed() int { return int(r.closed.Load()) }

// MaxConcurrent reports the highest number of simultaneous renders seen.
func (r *FakeRenderer) MaxConcurrent() int { return int(r.maxActive.Load()) }

type fakeWorker struct {
	r      *FakeRenderer
	closed atomic.Bool
}

func (w *fakeWorker) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if w.closed.Load() {
		return nil, errors.New("fake worker: used after close")
	}
	n := w.r.active.Add(1)
	defer w.r.active.Add(-1)
	for {
		peak := w.r.maxActive.Load()
		if n <= peak || w.r.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}

	if w.r.Delay > 0 {
		t := time.NewTimer(w.r.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if w.r.FailMarker != "" && strings.Contains(req.Markup, w.r.FailMarker) {
		return nil, fmt.Errorf("fake worker: markup contains %q", w.r.FailMarker)
	}

	switch req.Format {
	case FormatPDF:
		return []byte("%PDF-1.4\n% fake\n" + req.Markup + "\n%%EOF\n"), nil
	case FormatPNG:
		return append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), req.Markup...), nil
	default:
		return []byte(req.Markup), nil
	}
}

func (w *fakeWorker) Close() error {
	if w.closed.CompareAndSwap(false, true) {
		w.r.closed.Add(1)
	}
	return nil
}

// NewForTesting creates a Generator over the embedded templates with a
// fake render pool of the given size and an in-memory sink. No network or
// browser is touched.
func NewForTesting(poolSize int, optFns ...func(*Options)) (*Generator, *FakeRenderer, error) {
	reg, err := DefaultRegistry()
	if err != nil {
		return nil, nil, err
	}
	renderer := &FakeRenderer{}
	pool, err := NewPool(renderer.Factory(), PoolConfig{Size: poolSize, MinSettle: time.Millisecond, Logger: discardLogger()})
	if err != nil {
		return nil, nil, err
	}
	opts := append([]func(*Options){
		WithPool(pool),
		WithSink(NewMemorySink("https://docs.test/d")),
		WithLogger(discardLogger()),
	}, optFns...)
	return NewGenerator(reg, opts...), renderer, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
