package poll

import (
	"errors"
	"fmt"
	"time"
)

// TransientFault marks a probe error as expected noise during convergence
// (connection refused, 503 from a half-programmed gateway). The poller logs
// it at debug level and retries.
type TransientFault struct {
	Err error
}

func (e *TransientFault) Error() string {
	return fmt.Sprintf("transient fault: %v", e.Err)
}

func (e *TransientFault) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientFault. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientFault{Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientFault.
func IsTransient(err error) bool {
	var tf *TransientFault
	return errors.As(err, &tf)
}

// TimeoutError reports an exhausted poll budget. It always carries the
// expectation, the elapsed time, the last observation (if any attempt
// observed one) and the last fault, so the failure is diagnosable without
// re-running the poll.
type TimeoutError struct {
	// Expected is the rendered expectation, e.g. "200" or "401 or 403".
	Expected string

	// Elapsed is the budget actually consumed.
	Elapsed time.Duration

	// LastObservation is the final observation, rendered; empty when
	// Observed is false.
	LastObservation string

	// Observed is false when no attempt ever produced an observation.
	Observed bool

	// Attempts is the number of probe invocations made.
	Attempts int

	// LastFault is the most recent probe fault, possibly nil.
	LastFault error
}

func newTimeoutError[T comparable](expected Expectation[T], result *Result[T]) *TimeoutError {
	te := &TimeoutError{
		Expected:  expected.String(),
		Elapsed:   result.Elapsed,
		Observed:  result.Observed,
		Attempts:  result.Attempts,
		LastFault: result.LastFault,
	}
	if result.Observed {
		te.LastObservation = fmt.Sprintf("%v", result.LastObservation)
	}
	return te
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("expected %s within %s (%d attempts)", e.Expected, e.Elapsed.Round(time.Millisecond), e.Attempts)
	if e.Observed {
		msg += fmt.Sprintf(", last observation: %s", e.LastObservation)
	} else {
		msg += ", no observation"
	}
	if e.LastFault != nil {
		msg += fmt.Sprintf(", last fault: %v", e.LastFault)
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return e.LastFault
}
