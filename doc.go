// Package autodoc turns an arbitrary structured record (a database row, a
// spreadsheet row or a raw JSON blob) into a finished rendered document
// without anyone first choosing a template or writing a field mapping.
//
// # Problem Statement
//
// Document generation usually needs a human to pick the template and to
// map every source column onto a template placeholder. Records coming from
// different systems name the same thing differently ("Job Number",
// "wo_no", "work_order_number"), nest values, and store dates and amounts
// as text. autodoc closes that gap:
//
//   - Schema inference: every leaf of the record becomes a typed field with
//     a dot path and a sample value
//   - Semantic matching: exact, substring, synonym-group and edit-distance
//     strategies score each placeholder against each source field
//   - Confidence aggregation: required fields weigh more than optional ones,
//     and unmapped fields pull the score down
//   - Template selection: the best template is selected, returned as a
//     suggestion that needs confirmation, or rejected as no match
//   - Bounded rendering: a fixed pool of headless browser workers renders
//     HTML, PDF or PNG under a deadline
//
// An optional oracle (a text-generation model) is consulted only when the
// deterministic heuristics are inconclusive. Its answers are advisory,
// clamped, and never required.
//
// # Basic Usage
//
//	reg, _ := autodoc.DefaultRegistry()
//	browser, _ := autodoc.StartRodBrowser(ctx, autodoc.RodConfig{})
//	defer browser.Close()
//	pool, _ := autodoc.NewPool(browser.Factory(), autodoc.PoolConfig{Size: 4})
//	defer pool.Close()
//
//	gen := autodoc.NewGenerator(reg,
//	    autodoc.WithPool(pool),
//	    autodoc.WithSink(autodoc.NewMemorySink("https://docs.example.com/d")),
//	)
//
//	res, err := gen.Generate(ctx, autodoc.Request{
//	    Record: map[string]any{
//	        "Job Number": "WO-1042",
//	        "Customer":   "Acme Corp",
//	        "Scheduled":  "2024-05-01",
//	    },
//	    OutputFormat: autodoc.FormatPDF,
//	})
//	if err != nil {
//	    log.Fatal(autodoc.CodeOf(err), err)
//	}
//	switch res.Status {
//	case autodoc.StatusCompleted:
//	    fmt.Println(res.PayloadOrURL)
//	case autodoc.StatusNeedsConfirmation:
//	    fmt.Println("confirm", res.SuggestedTemplate.ID)
//	}
//
// # Decisions
//
// Template selection has three outcomes, modelled as the Decision variants
// Selected, NeedsConfirmation and NoMatch. A needs-confirmation outcome is a
// normal Result with Status StatusNeedsConfirmation; NoMatch is the error
// ErrNoTemplateMatch with a suggestion to pass a template override.
//
// Analyze runs the pipeline up to selection without rendering; the
// resulting Analysis can be explained as a text tree or JSON:
//
//	a, _ := gen.Analyze(ctx, req)
//	out, _ := autodoc.Explain(a.Report(), autodoc.ReportText)
//
// # Batches
//
// RunBatch runs Generate for many requests with bounded concurrency capped
// by the render pool size. Results keep the input order and a failing item
// never changes the result of another.
//
// # Errors
//
// Every error returned by Generate is an *Error carrying a stable code
// (NO_TEMPLATE_MATCH, RENDER_TIMEOUT, ...) and an HTTP-style status. It
// unwraps to one of the Err* sentinels, so errors.Is works as usual.
//
// # Record Sources
//
// Requests may name a record by sourceId and recordId instead of inlining
// it. Sources are registered with WithSources; SQLite, PostgreSQL, XLSX
// workbooks and directories of JSON files are supported.
package autodoc
