package autodoc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Generator runs the one-call pipeline: infer, detect, match, select,
// apply, render, host.
type Generator struct {
	registry Registry
	opts     Options
	matcher  *Matcher
	detector *documentTypeDetector
	log      *slog.Logger
}

// NewGenerator returns a Generator that logs with slog.Default() unless
// WithLogger is given.
func NewGenerator(registry Registry, optFns ...func(*Options)) *Generator {
	opts := Options{
		Scoring:          DefaultScoring(),
		OracleTimeout:    5 * time.Second,
		RenderTimeout:    30 * time.Second,
		HostTTL:          24 * time.Hour,
		BatchConcurrency: 5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Vocabulary == nil {
		opts.Vocabulary = DefaultVocabulary()
	}
	return &Generator{
		registry: registry,
		opts:     opts,
		matcher: NewMatcher(opts.Vocabulary, opts.Scoring,
			WithOracle(opts.Oracle), WithOracleTimeout(opts.OracleTimeout), WithLogger(opts.Logger)),
		detector: &documentTypeDetector{
			vocab:   opts.Vocabulary,
			oracle:  opts.Oracle,
			timeout: opts.OracleTimeout,
			log:     opts.Logger,
		},
		log: opts.Logger,
	}
}

// Analysis is everything the pipeline decided before rendering.
type Analysis struct {
	Record       map[string]any      `json:"-"`
	Schema       *DiscoveredSchema   `json:"schema"`
	DocumentType DocumentTypeGuess   `json:"documentType"`
	Decision     Decision            `json:"-"`
	Candidates   []TemplateCandidate `json:"candidates"`
}

// Analyze runs the pipeline up to template selection. NoMatch is reported
// in the Decision, not as an error.
func (g *Generator) Analyze(ctx context.Context, req Request) (*Analysis, error) {
	if err := validateRequest(req); err != nil {
		return nil, newError(err, "invalid request")
	}

	record, err := g.loadRecord(ctx, req)
	if err != nil {
		return nil, newError(err, "loading record")
	}

	schema := InferSchema(record)
	g.log.Debug("schema inferred", "fields", schema.Len())

	guess := g.detector.detect(ctx, schema)
	g.log.Debug("document type", "type", guess.Type, "confidence", guess.Confidence, "source", guess.Source)
	if err := ctx.Err(); err != nil {
		return nil, newError(err, "detecting document type")
	}

	templates, err := g.templates(ctx, req.TemplateID)
	if err != nil {
		return nil, newError(err, "loading templates")
	}

	candidates := make([]TemplateCandidate, 0, len(templates))
	for _, t := range templates {
		cands := g.matcher.MatchTemplate(ctx, t, schema)
		overrides, err := overrideCandidates(req.MappingOverrides, t, record)
		if err != nil {
			return nil, newError(err, "applying mapping overrides")
		}
		mapping := Aggregate(t.FieldNames(), t.RequiredSet(), append(cands, overrides...), g.opts.Scoring)
		g.log.Debug("template mapped", "template", t.ID, "candidates", len(cands),
			"coverage", mapping.Coverage, "confidence", mapping.OverallConfidence)
		candidates = append(candidates, TemplateCandidate{TemplateID: t.ID, Template: t, Mapping: mapping})
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(err, "matching fields")
	}

	decision, ranked, err := SelectTemplate(guess, candidates, SelectParams{
		Override:   req.TemplateID,
		Threshold:  req.threshold(),
		AutoAccept: req.autoAccept(),
	}, g.opts.Scoring)
	if err != nil {
		return nil, newError(err, "selecting template")
	}

	return &Analysis{
		Record:       record,
		Schema:       schema,
		DocumentType: guess,
		Decision:     decision,
		Candidates:   ranked,
	}, nil
}

// Generate runs the whole pipeline for one record. A needs-confirmation
// outcome is a Result, not an error. Errors are *Error.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	a, err := g.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	switch d := a.Decision.(type) {
	case *NoMatch:
		e := newError(ErrNoTemplateMatch, "%s", d.Reasoning)
		e.Suggestion = "supply templateIdOverride, or register a template whose placeholders match the record's fields"
		return nil, e

	case *NeedsConfirmation:
		best := d.Best
		g.log.Info("template needs confirmation", "template", best.TemplateID, "confidence", best.Mapping.OverallConfidence)
		return &Result{
			Status:       StatusNeedsConfirmation,
			OutputFormat: req.format(),
			SuggestedTemplate: &TemplateUsage{
				ID:         best.TemplateID,
				Name:       templateName(best),
				Confidence: best.Mapping.OverallConfidence,
				Reasoning:  d.Reasoning,
			},
			Confidence:      best.Mapping.OverallConfidence,
			Reasoning:       d.Reasoning,
			MappingsApplied: best.Mapping.MappedPaths(),
			UnmappedFields:  best.Mapping.UnmappedFields,
			MappingCoverage: best.Mapping.Coverage,
			DocumentType:    a.DocumentType,
			Candidates:      a.Candidates,
		}, nil

	case *Selected:
		res, err := g.produce(ctx, req, a, d)
		if err != nil {
			return nil, err
		}
		g.log.Info("document generated", "template", res.TemplateUsed.ID, "format", res.OutputFormat,
			"confidence", res.Confidence, "coverage", res.MappingCoverage, "elapsed", time.Since(start))
		return res, nil
	}
	return nil, newError(fmt.Errorf("unexpected decision %T", a.Decision), "selecting template")
}

// produce applies the mapping, renders and hosts the document.
func (g *Generator) produce(ctx context.Context, req Request, a *Analysis, sel *Selected) (*Result, error) {
	c := sel.Candidate
	tpl := c.Template

	data, err := Apply(c.Mapping, a.Record, tpl.Fields)
	if err != nil {
		return nil, newError(err, "applying mapping for %s", tpl.ID)
	}
	if err := tpl.Validate(data); err != nil {
		g.log.Debug("mapped data does not satisfy template schema", "template", tpl.ID, "error", err)
	}

	markup, err := RenderMarkup(tpl, data)
	if err != nil {
		return nil, newError(err, "substituting markup")
	}

	res := &Result{
		Status:       StatusCompleted,
		OutputFormat: req.format(),
		TemplateUsed: &TemplateUsage{
			ID:         tpl.ID,
			Name:       tpl.Name,
			Confidence: sel.Confidence(),
			Reasoning:  sel.Reasoning,
		},
		Confidence:      sel.Confidence(),
		Reasoning:       sel.Reasoning,
		MappingsApplied: c.Mapping.MappedPaths(),
		Data:            data,
		UnmappedFields:  c.Mapping.UnmappedFields,
		MappingCoverage: c.Mapping.Coverage,
		DocumentType:    a.DocumentType,
		Candidates:      a.Candidates,
	}

	format := req.format()
	if format == FormatPreview || (format == FormatHTML && g.opts.Pool == nil) {
		res.PayloadOrURL = markup
		return res, nil
	}
	if g.opts.Pool == nil {
		return nil, newError(fmt.Errorf("%w: no render pool configured for %s output", ErrRender, format), "rendering")
	}

	out, err := g.opts.Pool.Render(ctx, RenderJob{
		ID:       uuid.NewString(),
		Markup:   markup,
		Format:   format,
		Deadline: time.Now().Add(g.opts.RenderTimeout),
	})
	if err != nil {
		return nil, newError(err, "rendering %s", tpl.ID)
	}

	if g.opts.Sink == nil {
		res.PayloadOrURL = dataURL(format.ContentType(), out)
		return res, nil
	}
	ttl := g.opts.HostTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	hosted, err := g.opts.Sink.Put(ctx, out, ttl)
	if err != nil {
		return nil, newError(err, "hosting document")
	}
	res.Hosted = &hosted
	res.PayloadOrURL = hosted.URL
	return res, nil
}

func validateRequest(req Request) error {
	supplied := 0
	if req.Record != nil {
		supplied++
	}
	if len(req.RawRecord) > 0 {
		supplied++
	}
	if req.SourceID != "" {
		supplied++
	}
	if supplied != 1 {
		return fmt.Errorf("%w: supply exactly one of record, rawRecord or sourceId+recordId", ErrInvalidRequest)
	}
	if !req.format().Valid() {
		return fmt.Errorf("%w: unknown output format %q", ErrInvalidRequest, req.OutputFormat)
	}
	if req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidenceThreshold must be within [0, 1]", ErrInvalidRequest)
	}
	if req.TTLSeconds < 0 {
		return fmt.Errorf("%w: ttl must not be negative", ErrInvalidRequest)
	}
	return nil
}

func (g *Generator) loadRecord(ctx context.Context, req Request) (map[string]any, error) {
	switch {
	case req.Record != nil:
		return req.Record, nil
	case len(req.RawRecord) > 0:
		return ParseRecord(req.RawRecord)
	}
	if g.opts.Sources == nil {
		return nil, fmt.Errorf("%w: no record sources configured", ErrInvalidRequest)
	}
	return g.opts.Sources.Fetch(ctx, req.SourceID, req.RecordID)
}

func (g *Generator) templates(ctx context.Context, override string) ([]*Template, error) {
	if override != "" {
		t, err := g.registry.Get(ctx, override)
		if err != nil {
			return nil, err
		}
		return []*Template{t}, nil
	}
	return g.registry.List(ctx, "")
}

// overrideCandidates turns caller supplied field -> path pairs into
// candidates for the placeholders t declares. Paths must resolve.
func overrideCandidates(overrides map[string]string, t *Template, record map[string]any) ([]MatchCandidate, error) {
	var out []MatchCandidate
	for _, f := range t.Fields {
		p, ok := overrides[f.Name]
		if !ok {
			continue
		}
		if _, ok := resolvePath(record, p); !ok {
			return nil, fmt.Errorf("%w: mapping override %s -> %q does not resolve in the record", ErrInvalidRequest, f.Name, p)
		}
		out = append(out, MatchCandidate{
			TemplateField:   f.Name,
			SourceFieldPath: p,
			Confidence:      1.0,
			Reasoning:       "override: supplied by caller",
			Strategy:        StrategyOverride,
		})
	}
	return out, nil
}

func templateName(c TemplateCandidate) string {
	if c.Template != nil {
		return c.Template.Name
	}
	return c.TemplateID
}
