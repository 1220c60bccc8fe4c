package bridge

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/finsightlab/mlbridge/internal/metrics"
	"github.com/finsightlab/mlbridge/models"
)

// Pipeline composes the bridge: input validation, batching, throttled
// sequential invocation with retries, and aggregation. Construct one per
// analyzer configuration; independently configured pipelines coexist
// freely since nothing here is package-global.
type Pipeline struct {
	validator *Validator
	retrier   *Retrier
	defaults  Options
	log       zerolog.Logger
}

// NewPipeline wires a pipeline around analyzer. Zero-valued fields of
// defaults fall back to the package defaults; per-call Options override
// both.
func NewPipeline(analyzer models.Analyzer, defaults Options) *Pipeline {
	validator := NewValidator()
	return &Pipeline{
		validator: validator,
		retrier:   NewRetrier(analyzer, validator),
		defaults:  defaults.withDefaults(),
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

// Analyze validates the input and runs one retried invocation over the
// whole dataset, however large it is. Callers wanting bounded memory per
// invocation use AnalyzeBatch instead.
func (p *Pipeline) Analyze(ctx context.Context, input *models.AnalysisInput, opts *Options) (*models.AnalysisResult, error) {
	o := p.defaults.merge(opts)
	if err := p.validator.ValidateInput(input); err != nil {
		return nil, err
	}
	metrics.ObserveBatchRun(1, len(input.Transactions))
	return p.retrier.Analyze(ctx, input, o)
}

// AnalyzeBatch validates the input once, splits it into contiguous
// batches, runs them strictly sequentially — at most one analyzer process
// alive at a time — and folds the per-batch results into one aggregate,
// validated before return. A failing batch aborts the remainder.
func (p *Pipeline) AnalyzeBatch(ctx context.Context, input *models.AnalysisInput, opts *Options) (*models.AnalysisResult, error) {
	o := p.defaults.merge(opts)
	if err := p.validator.ValidateInput(input); err != nil {
		return nil, err
	}

	chunks := Split(input.Transactions, o.BatchSize)
	metrics.ObserveBatchRun(len(chunks), len(input.Transactions))
	if len(chunks) == 1 {
		return p.retrier.Analyze(ctx, input, o)
	}

	p.log.Info().
		Int("records", len(input.Transactions)).
		Int("batches", len(chunks)).
		Int("batch_size", o.BatchSize).
		Msg("dataset exceeds batch size, processing sequentially")

	// The limiter paces launches so the analyzer pool gets BatchDelay of
	// air between processes; the first Wait consumes the initial token and
	// does not block.
	limiter := rate.NewLimiter(rate.Every(o.BatchDelay), 1)

	results := make([]*models.AnalysisResult, 0, len(chunks))
	for i, records := range chunks {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		batch := &models.AnalysisInput{Transactions: records, Metadata: input.Metadata}
		res, err := p.retrier.Analyze(ctx, batch, o)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", i+1, len(chunks), err)
		}

		p.log.Info().
			Int("batch", i+1).
			Int("batches", len(chunks)).
			Int("records", len(records)).
			Int64("processing_time_ms", res.Meta.ProcessingTimeMs).
			Msg("batch analyzed")
		results = append(results, res)
	}

	aggregate, err := Aggregate(results)
	if err != nil {
		return nil, err
	}
	if err := p.validator.ValidateOutput(aggregate); err != nil {
		return nil, err
	}
	return aggregate, nil
}

// AnalyzeStream bridges a push-based record source into the pull-based
// batch pipeline: the stream is materialized in full, then analyzed batch
// by batch.
func (p *Pipeline) AnalyzeStream(ctx context.Context, chunks <-chan Chunk, opts *Options) (*models.AnalysisResult, error) {
	input, err := Materialize(ctx, chunks)
	if err != nil {
		return nil, err
	}
	return p.AnalyzeBatch(ctx, input, opts)
}
