// Package credentials obtains the bearer tokens verification scenarios
// authenticate with. A pre-provisioned token always wins; otherwise a
// Minter is asked, with exactly one delayed retry, because a freshly
// installed gateway commonly rejects the first mint while its auth policy
// is still converging.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Minter creates a fresh bearer token.
type Minter interface {
	Mint(ctx context.Context) (string, error)
}

// DefaultRetryWait before the second (and last) mint attempt.
const DefaultRetryWait = 60 * time.Second

// Options configure an Acquirer.
type Options struct {
	// PreProvisioned is an operator-supplied token. When non-empty it is
	// returned verbatim and the minter is never contacted.
	PreProvisioned string

	// Minter used when no pre-provisioned token is configured.
	Minter Minter

	// RetryWait before the single retry. Default: DefaultRetryWait.
	RetryWait time.Duration

	Logger *slog.Logger
}

// Acquirer resolves a usable bearer token from the configured sources.
type Acquirer struct {
	preProvisioned string
	minter         Minter
	retryWait      time.Duration
	logger         *slog.Logger
}

// NewAcquirer creates an Acquirer.
func NewAcquirer(opts Options) *Acquirer {
	retryWait := opts.RetryWait
	if retryWait <= 0 {
		retryWait = DefaultRetryWait
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{
		preProvisioned: opts.PreProvisioned,
		minter:         opts.Minter,
		retryWait:      retryWait,
		logger:         logger,
	}
}

// Acquire returns a bearer token. Minting gets at most two attempts with
// the configured wait in between; a policy denial aborts immediately. When
// both attempts fail the returned *AcquisitionError carries both errors.
func (a *Acquirer) Acquire(ctx context.Context) (string, error) {
	if a.preProvisioned != "" {
		a.logger.Debug("using pre-provisioned token")
		return a.preProvisioned, nil
	}
	if a.minter == nil {
		return "", fmt.Errorf("no token source configured: set a token or a minter")
	}

	var attempts []error
	token, err := backoff.Retry(ctx, func() (string, error) {
		tok, merr := a.minter.Mint(ctx)
		if merr == nil {
			return tok, nil
		}
		attempts = append(attempts, merr)
		var denial *PolicyDenialError
		if errors.As(merr, &denial) {
			return "", backoff.Permanent(merr)
		}
		a.logger.Warn("token mint failed, will retry once",
			"wait", a.retryWait, "error", merr)
		return "", merr
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(a.retryWait)),
		backoff.WithMaxTries(2),
	)
	if err != nil {
		var denial *PolicyDenialError
		if errors.As(err, &denial) {
			return "", denial
		}
		if ctx.Err() != nil && len(attempts) == 0 {
			return "", ctx.Err()
		}
		return "", &AcquisitionError{Attempts: attempts}
	}
	return token, nil
}
