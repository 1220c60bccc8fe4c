package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finsightlab/mlbridge/internal/metrics"
	"github.com/finsightlab/mlbridge/models"
)

// snippetLimit bounds how much raw analyzer output a ParseError carries.
const snippetLimit = 200

// waitDelay bounds pipe teardown after the process is killed.
const waitDelay = 5 * time.Second

// Invoker runs the external analyzer as a subprocess: exactly one process
// per call, the input document on stdin, the result document on stdout.
// The deadline on the call's context is the timeout contract — when it
// fires the process is killed and the call fails with TimeoutError, so no
// process outlives its call. Implements models.Analyzer.
type Invoker struct {
	Command string
	Args    []string
	Env     []string // process environment; nil inherits the parent's

	log zerolog.Logger
}

// NewInvoker builds an Invoker for the given executable and arguments.
func NewInvoker(command string, args ...string) *Invoker {
	return &Invoker{
		Command: command,
		Args:    args,
		log:     log.With().Str("component", "invoker").Logger(),
	}
}

// Analyze spawns one analyzer process, writes the serialized input to its
// stdin (the pipe closes once fully written), accumulates stdout and
// stderr concurrently, and waits for exit or deadline.
func (inv *Invoker) Analyze(ctx context.Context, input *models.AnalysisInput) (*models.AnalysisResult, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode analysis input: %w", err)
	}

	cmd := exec.CommandContext(ctx, inv.Command, inv.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if inv.Env != nil {
		cmd.Env = inv.Env
	}

	invocationID := uuid.NewString()
	started := time.Now()
	inv.log.Debug().
		Str("invocation_id", invocationID).
		Str("command", inv.Command).
		Int("records", len(input.Transactions)).
		Msg("starting analyzer process")

	if err := cmd.Start(); err != nil {
		metrics.ObserveInvocation(time.Since(started), metrics.OutcomeSpawnError)
		return nil, &SpawnError{Command: inv.Command, Err: err}
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(started)

	if waitErr != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			inv.log.Warn().
				Str("invocation_id", invocationID).
				Dur("elapsed", elapsed).
				Msg("analyzer killed after deadline")
			metrics.ObserveInvocation(elapsed, metrics.OutcomeTimeout)
			return nil, &TimeoutError{Command: inv.Command, Elapsed: elapsed}
		case ctx.Err() != nil:
			metrics.ObserveInvocation(elapsed, metrics.OutcomeCanceled)
			return nil, ctx.Err()
		}

		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			metrics.ObserveInvocation(elapsed, metrics.OutcomeExitError)
			return nil, &ExitError{
				Command: inv.Command,
				Code:    exitErr.ExitCode(),
				Stderr:  strings.TrimSpace(stderr.String()),
			}
		}
		metrics.ObserveInvocation(elapsed, metrics.OutcomeSpawnError)
		return nil, &SpawnError{Command: inv.Command, Err: waitErr}
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		metrics.ObserveInvocation(elapsed, metrics.OutcomeParseError)
		return nil, &ParseError{Err: err, Snippet: outputSnippet(stdout.Bytes())}
	}

	inv.log.Debug().
		Str("invocation_id", invocationID).
		Dur("elapsed", elapsed).
		Int("records", result.Meta.RecordCount).
		Msg("analyzer process finished")
	metrics.ObserveInvocation(elapsed, metrics.OutcomeSuccess)
	return &result, nil
}

func outputSnippet(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > snippetLimit {
		s = s[:snippetLimit] + "..."
	}
	return s
}
