package bridge

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finsightlab/mlbridge/internal/metrics"
	"github.com/finsightlab/mlbridge/models"
)

// Retrier drives an Analyzer through bounded attempts with exponential
// backoff: the wait before attempt k+1 is 2^k * BaseDelay, the first
// attempt starts immediately. Non-retryable failures and context
// cancellation stop the loop at once.
type Retrier struct {
	analyzer  models.Analyzer
	validator *Validator
	log       zerolog.Logger
}

// NewRetrier wraps analyzer. The validator checks the result of every
// successful attempt; a contract violation is final since re-running a
// structurally wrong model cannot fix it.
func NewRetrier(analyzer models.Analyzer, validator *Validator) *Retrier {
	if validator == nil {
		validator = NewValidator()
	}
	return &Retrier{
		analyzer:  analyzer,
		validator: validator,
		log:       log.With().Str("component", "retrier").Logger(),
	}
}

// Analyze runs up to opts.MaxAttempts attempts over the same input; no
// mutation happens between attempts. Each attempt gets its own deadline
// carved from ctx. Once the budget is spent the error of the last attempt
// comes back wrapped in ExhaustedError.
func (r *Retrier) Analyze(ctx context.Context, input *models.AnalysisInput, opts Options) (*models.AnalysisResult, error) {
	opts = opts.withDefaults()

	var result *models.AnalysisResult
	attempt := 0

	operation := func() error {
		attempt++
		if attempt > 1 {
			metrics.IncRetry()
		}

		attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()

		res, err := r.analyzer.Analyze(attemptCtx, input)
		if err != nil {
			if !Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := r.validator.ValidateOutput(res); err != nil {
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 2 * opts.BaseDelay
	expo.RandomizationFactor = 0
	expo.Multiplier = 2
	expo.MaxInterval = 2 * time.Minute
	expo.MaxElapsedTime = 0 // attempts are bounded by count, not wall clock

	strategy := backoff.WithMaxRetries(backoff.WithContext(expo, ctx), uint64(opts.MaxAttempts-1))

	notify := func(err error, next time.Duration) {
		r.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", opts.MaxAttempts).
			Dur("next_backoff", next).
			Msg("analysis attempt failed, retrying")
	}

	if err := backoff.RetryNotify(operation, strategy, notify); err != nil {
		if Retryable(err) {
			return nil, &ExhaustedError{Attempts: attempt, Err: err}
		}
		return nil, err
	}
	return result, nil
}
