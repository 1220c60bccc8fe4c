package bridge

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyBatchList is returned by Aggregate when called with no results.
// It signals a caller bug, not a data condition.
var ErrEmptyBatchList = errors.New("aggregate: empty batch result list")

// InputError rejects an AnalysisInput before any process is started.
type InputError struct {
	Reasons []string
}

func (e *InputError) Error() string {
	return "invalid analysis input: " + strings.Join(e.Reasons, "; ")
}

// SpawnError means the analyzer process could not be started or its pipes
// could not be serviced.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn analyzer %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TimeoutError means the analyzer process exceeded its deadline and was
// killed.
type TimeoutError struct {
	Command string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analyzer %q timed out after %s", e.Command, e.Elapsed.Round(time.Millisecond))
}

// ExitError means the analyzer process ran but signalled failure. Stderr
// carries whatever the process wrote to its error stream.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("analyzer %q exited with code %d", e.Command, e.Code)
	}
	return fmt.Sprintf("analyzer %q exited with code %d: %s", e.Command, e.Code, e.Stderr)
}

// ParseError means the analyzer's stdout was not a result document. Snippet
// holds a bounded prefix of the raw output for diagnostics.
type ParseError struct {
	Err     error
	Snippet string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse analyzer output: %v (output: %q)", e.Err, e.Snippet)
}

func (e *ParseError) Unwrap() error { return e.Err }

// OutputError means the parsed result violates the output contract. It is
// never retried: a structurally wrong contract will not self-correct.
type OutputError struct {
	Reasons []string
}

func (e *OutputError) Error() string {
	return "invalid analysis result: " + strings.Join(e.Reasons, "; ")
}

// ExhaustedError wraps the error of the final attempt once the retry budget
// is spent.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("analysis failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// StreamError means the push-based source failed before completion; any
// partially accumulated records were discarded.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("transaction stream failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// Retryable reports whether err belongs to one of the transient categories
// worth another attempt: spawn, timeout, non-zero exit and parse failures.
// Validation errors and context cancellation are final.
func Retryable(err error) bool {
	var (
		spawn   *SpawnError
		timeout *TimeoutError
		exit    *ExitError
		parse   *ParseError
	)
	return errors.As(err, &spawn) ||
		errors.As(err, &timeout) ||
		errors.As(err, &exit) ||
		errors.As(err, &parse)
}
