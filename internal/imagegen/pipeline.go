package imagegen

import (
	"context"
	"fmt"
	"time"

	"nanoedit/internal/domain"
	"nanoedit/internal/infra"
	"nanoedit/internal/metrics"
	"nanoedit/internal/providers/genai"
)

// PipelineOptions wires a Pipeline.
type PipelineOptions struct {
	Resolver ImageResolver
	Backend  Backend
	// MissingKeys lists absent backend configuration, computed once at
	// start-up. A non-empty list short-circuits every run.
	MissingKeys []string
	Logger      *infra.Logger
	Metrics     *metrics.Collector
}

// Pipeline is one edit pass: resolve inputs, build the instruction,
// assemble the payload, call the backend and extract the answer.
type Pipeline struct {
	resolver    ImageResolver
	backend     Backend
	missingKeys []string
	logger      *infra.Logger
	metrics     *metrics.Collector
}

// NewPipeline constructs a pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	return &Pipeline{
		resolver:    opts.Resolver,
		backend:     opts.Backend,
		missingKeys: append([]string(nil), opts.MissingKeys...),
		logger:      infra.OrDiscard(opts.Logger),
		metrics:     opts.Metrics,
	}
}

// Run executes req. Request faults (validation, unsupported input, failed
// fetch) are returned as *domain.Error; every backend outcome, including
// missing configuration, is a Result.
func (p *Pipeline) Run(ctx context.Context, req domain.EditRequest) (domain.Result, error) {
	start := time.Now()
	op := string(req.Mode)
	if _, ok := domain.ParseMode(op); !ok {
		op = "invalid"
	}

	if len(p.missingKeys) > 0 {
		res := domain.ConfigMissing(p.missingKeys)
		p.metrics.ObservePipeline(op, res.Kind.String(), time.Since(start))
		return res, nil
	}

	res, err := p.run(ctx, req)
	outcome := res.Kind.String()
	if err != nil {
		outcome = "rejected"
	}
	p.metrics.ObservePipeline(op, outcome, time.Since(start))
	return res, err
}

func (p *Pipeline) run(ctx context.Context, req domain.EditRequest) (domain.Result, error) {
	if err := req.Validate(); err != nil {
		return domain.Result{}, err
	}

	base, err := p.resolver.Resolve(ctx, req.Base)
	if err != nil {
		return domain.Result{}, fmt.Errorf("imagegen: resolve base: %w", err)
	}

	var reference *domain.InlineAsset
	if req.HasReference() {
		ref, err := p.resolver.Resolve(ctx, *req.Reference)
		if err != nil {
			return domain.Result{}, fmt.Errorf("imagegen: resolve reference: %w", err)
		}
		reference = &ref
	}

	instruction := BuildInstruction(req.Mode, req.Target, req.BoundingBox, req.PromptOverride, reference != nil)
	payload := genai.Assemble(instruction, base, reference)

	res, err := p.backend.Generate(ctx, payload)
	if err != nil {
		return domain.Result{}, fmt.Errorf("imagegen: generate: %w", err)
	}

	p.logger.Debug().
		Str("mode", string(req.Mode)).
		Str("outcome", res.Kind.String()).
		Int("attempts", res.Attempts).
		Bool("reference", reference != nil).
		Msg("imagegen: edit pass finished")
	return res, nil
}
