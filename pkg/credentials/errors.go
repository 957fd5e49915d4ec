package credentials

import (
	"fmt"
	"strings"
)

// PolicyDenialError reports a mint rejected by policy (forbidden). Policy
// denials are terminal: retrying cannot succeed until an operator changes
// the policy, so the acquirer surfaces them immediately without waiting out
// the retry delay.
type PolicyDenialError struct {
	Subject string
	Err     error
}

func (e *PolicyDenialError) Error() string {
	return fmt.Sprintf("token mint denied by policy for %s: %v", e.Subject, e.Err)
}

func (e *PolicyDenialError) Unwrap() error {
	return e.Err
}

// AcquisitionError reports that every mint attempt failed. It carries all
// attempt errors so a flaky first attempt is distinguishable from a
// consistently broken minter.
type AcquisitionError struct {
	Attempts []error
}

func (e *AcquisitionError) Error() string {
	msgs := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		msgs[i] = fmt.Sprintf("attempt %d: %v", i+1, err)
	}
	return fmt.Sprintf("token acquisition failed after %d attempts: %s", len(e.Attempts), strings.Join(msgs, "; "))
}

func (e *AcquisitionError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1]
}
