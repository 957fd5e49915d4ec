package config

import (
	"errors"
	"fmt"
)

// ValidationError describes a configuration value that fails validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for values that would make a run
// meaningless or ambiguous. All problems are reported together so the
// operator fixes the environment in one pass.
func (c *Config) Validate() error {
	var errs []error

	if c.GatewayHost == "" {
		errs = append(errs, &ValidationError{
			Field:   "GatewayHost",
			Message: "GATEWAY_HOST environment variable is required",
		})
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "RequestTimeout",
			Message: "must be positive",
		})
	}
	if c.PollInterval <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "PollInterval",
			Message: "must be positive",
		})
	}
	if c.ReconcileWait < 0 {
		errs = append(errs, &ValidationError{
			Field:   "ReconcileWait",
			Message: "must not be negative",
		})
	}
	if c.RateLimitRequestCount <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "RateLimitRequestCount",
			Message: "must be positive",
		})
	}
	switch c.DeleteLastSubscriptionStatus {
	case 200, 403, 429:
	default:
		errs = append(errs, &ValidationError{
			Field:   "DeleteLastSubscriptionStatus",
			Message: fmt.Sprintf("must be 200, 403 or 429, got %d", c.DeleteLastSubscriptionStatus),
		})
	}

	return errors.Join(errs...)
}
