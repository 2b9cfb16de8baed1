package autodoc

import (
	"context"
	"fmt"
	"time"
)

// BatchRequest fans the pipeline out over several requests.
type BatchRequest struct {
	Items          []Request `json:"items"`
	MaxConcurrency int       `json:"maxConcurrency,omitempty"` // 0 -> generator default
}

// ItemResult is the outcome of one batch item. Exactly one of Result or
// Error is meaningful, except for LOW_CONFIDENCE items which carry both the
// suggestion and the error.
type ItemResult struct {
	Index  int     `json:"index"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
	Code   string  `json:"code,omitempty"`
}

// OK reports whether the item produced a document.
func (r ItemResult) OK() bool { return r.Code == "" && r.Result != nil }

// BatchResult collects item results in input order.
type BatchResult struct {
	Results      []ItemResult `json:"results"`
	SuccessCount int          `json:"successCount"`
	FailCount    int          `json:"failCount"`
	TotalTimeMs  int64        `json:"totalTimeMs"`
}

// RunBatch runs Generate for every item with bounded concurrency. A failing
// item never affects its siblings. Items not started before ctx ends fail
// with ctx's error.
func (g *Generator) RunBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if req.MaxConcurrency < 0 {
		return nil, newError(fmt.Errorf("%w: maxConcurrency must not be negative", ErrInvalidRequest), "invalid batch")
	}
	start := time.Now()

	limit := req.MaxConcurrency
	if limit == 0 {
		limit = g.opts.BatchConcurrency
	}
	if g.opts.Pool != nil {
		limit = min(limit, g.opts.Pool.Size())
	}
	limit = max(1, limit)

	results := make([]ItemResult, len(req.Items))
	done := make([]bool, len(req.Items))

	runner := NewLimitedRunner(ctx, limit)
	for i, item := range req.Items {
		runner.Go(func() error {
			results[i] = g.runItem(ctx, i, item)
			done[i] = true
			return nil
		})
	}
	// Item errors are captured in results; Wait only reports ctx ending.
	waitErr := runner.Wait()

	out := &BatchResult{Results: results}
	for i := range results {
		if !done[i] {
			err := ctx.Err()
			if err == nil {
				err = waitErr
			}
			results[i] = failedItem(i, newError(err, "batch item %d not started", i), nil)
		}
		if results[i].OK() {
			out.SuccessCount++
		} else {
			out.FailCount++
		}
	}
	out.TotalTimeMs = time.Since(start).Milliseconds()

	g.log.Info("batch finished", "items", len(req.Items), "succeeded", out.SuccessCount,
		"failed", out.FailCount, "concurrency", limit, "elapsed", time.Since(start))
	return out, nil
}

func (g *Generator) runItem(ctx context.Context, i int, req Request) ItemResult {
	res, err := g.Generate(ctx, req)
	if err != nil {
		g.log.Debug("batch item failed", "index", i, "code", CodeOf(err), "error", err)
		return failedItem(i, err, nil)
	}
	if res.Status == StatusNeedsConfirmation {
		e := newError(ErrLowConfidence, "confidence %.2f below threshold %.2f", res.Confidence, req.threshold())
		if !req.autoAccept() && res.Confidence >= req.threshold() {
			e = newError(ErrLowConfidence, "auto accept disabled")
		}
		return failedItem(i, e, res)
	}
	return ItemResult{Index: i, Result: res}
}

func failedItem(i int, err error, res *Result) ItemResult {
	return ItemResult{Index: i, Result: res, Error: err.Error(), Code: CodeOf(err)}
}
