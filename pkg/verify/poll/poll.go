// Package poll implements convergence polling: repeatedly observing the
// system under test until it reaches an expected state or a time budget
// elapses.
//
// The poller is deliberately conservative: probe faults, transient or not,
// do not abort the poll by default, because an eventually-consistent control
// plane routinely serves garbage mid-convergence. The last fault is carried
// into the final result so a timeout can always distinguish "wrong state"
// from "no response at all".
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"k8s.io/utils/clock"
)

// Probe observes the system under test once and returns the observation.
// Faults should be classified with Transient or Fatal; unclassified errors
// are treated as fatal for reporting but still retried (see Options.FailFast).
type Probe[T comparable] func(ctx context.Context) (T, error)

// Expectation is the set of observations that count as success.
type Expectation[T comparable] struct {
	values []T
}

// Value expects exactly one observation.
func Value[T comparable](v T) Expectation[T] {
	return Expectation[T]{values: []T{v}}
}

// OneOf expects any of the given observations.
func OneOf[T comparable](vs ...T) Expectation[T] {
	return Expectation[T]{values: vs}
}

// Matches reports whether the observation satisfies the expectation.
func (e Expectation[T]) Matches(observation T) bool {
	for _, v := range e.values {
		if v == observation {
			return true
		}
	}
	return false
}

// Values returns the acceptable observations.
func (e Expectation[T]) Values() []T {
	return e.values
}

func (e Expectation[T]) String() string {
	parts := make([]string, len(e.values))
	for i, v := range e.values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, " or ")
}

// Result captures the state of a finished poll. It is created at poll start,
// mutated once per attempt, and immutable once returned.
type Result[T comparable] struct {
	// Succeeded is true when an observation matched the expectation.
	Succeeded bool

	// LastObservation is the most recent successful probe observation;
	// only meaningful when Observed is true.
	LastObservation T

	// Observed is false when every attempt faulted before observing anything.
	Observed bool

	// Elapsed is the wall-clock time consumed by the poll.
	Elapsed time.Duration

	// Attempts is the number of probe invocations made.
	Attempts int

	// LastFault is the most recent probe fault, nil if the last attempt
	// observed cleanly.
	LastFault error
}

// Recorder receives poll telemetry. Implementations must be cheap; the
// poller calls them on the polling goroutine.
type Recorder interface {
	PollAttempt()
	PollOutcome(outcome string, elapsed time.Duration)
}

// Options tune a single poll. Zero values select the defaults.
type Options struct {
	// Budget is the total wall-clock budget. Default: DefaultBudget.
	Budget time.Duration

	// Interval is the cooperative sleep between attempts. Default: DefaultInterval.
	Interval time.Duration

	// FailFast aborts immediately on faults classified as fatal instead of
	// retrying them until the deadline.
	FailFast bool

	// Clock is injected for tests; defaults to the real clock.
	Clock clock.Clock

	// Logger for per-attempt diagnostics; defaults to slog.Default.
	Logger *slog.Logger

	// Recorder receives attempt/outcome telemetry; optional.
	Recorder Recorder
}

const (
	// DefaultInterval between probe attempts.
	DefaultInterval = 2 * time.Second

	// DefaultBudget is a floor chosen to absorb scheduler jitter on top of
	// the control plane's typical convergence latency. Callers that know
	// their reconcile interval should pass 3x that, or this floor,
	// whichever is larger.
	DefaultBudget = 60 * time.Second
)

// Until invokes probe immediately and then once per interval until the
// observation matches expected or the budget elapses. It always returns
// within budget plus one interval (plus one probe round-trip).
//
// On success the Result is returned with a nil error. On exhaustion the
// partially filled Result accompanies a *TimeoutError carrying the expected
// values, elapsed time, last observation and last fault. Context
// cancellation surfaces as ctx.Err().
func Until[T comparable](ctx context.Context, probe Probe[T], expected Expectation[T], opts Options) (*Result[T], error) {
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	result := &Result[T]{}
	start := clk.Now()

	for {
		result.Attempts++
		if opts.Recorder != nil {
			opts.Recorder.PollAttempt()
		}

		observation, err := probe(ctx)
		switch {
		case err == nil:
			result.LastObservation = observation
			result.Observed = true
			result.LastFault = nil
			if expected.Matches(observation) {
				result.Succeeded = true
				result.Elapsed = clk.Since(start)
				if opts.Recorder != nil {
					opts.Recorder.PollOutcome("success", result.Elapsed)
				}
				return result, nil
			}
		case IsTransient(err):
			result.LastFault = err
			logger.Debug("transient probe fault, retrying",
				"attempt", result.Attempts, "error", err)
		default:
			result.LastFault = err
			logger.Warn("unexpected probe fault",
				"attempt", result.Attempts, "error", err)
			if opts.FailFast {
				result.Elapsed = clk.Since(start)
				if opts.Recorder != nil {
					opts.Recorder.PollOutcome("fatal", result.Elapsed)
				}
				return result, err
			}
		}

		select {
		case <-ctx.Done():
			result.Elapsed = clk.Since(start)
			if opts.Recorder != nil {
				opts.Recorder.PollOutcome("canceled", result.Elapsed)
			}
			return result, ctx.Err()
		case <-clk.After(opts.Interval):
		}

		if clk.Since(start) >= opts.Budget {
			break
		}
	}

	result.Elapsed = clk.Since(start)
	if opts.Recorder != nil {
		opts.Recorder.PollOutcome("timeout", result.Elapsed)
	}
	return result, newTimeoutError(expected, result)
}
