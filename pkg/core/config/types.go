// Package config provides the environment-supplied parameters consumed by the
// verification harness.
//
// All parameters have documented defaults; the only required value is the
// gateway host. Validation fails fast before any scenario runs, so a missing
// required parameter never surfaces mid-run as a confusing probe failure.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds every externally supplied parameter of a verification run.
//
// The harness consumes these values but does not own them: they describe the
// system under test (gateway host, namespaces, resource names) and the timing
// model (request timeout, reconcile wait, poll interval).
type Config struct {
	// GatewayHost is the hostname of the gateway under test
	// (e.g. "maas.apps.cluster.example.com"). Required.
	GatewayHost string

	// InsecureHTTP selects plain HTTP instead of HTTPS for gateway requests.
	InsecureHTTP bool

	// SkipTLSVerify disables TLS certificate verification towards the
	// gateway. Test gateways usually terminate TLS with self-signed
	// certificates, so FromEnv defaults this to true; set
	// SKIP_TLS_VERIFY=false against properly certified deployments.
	SkipTLSVerify bool

	// MaasAPIBaseURL is the base URL of the MaaS management API.
	// Default: "<scheme>://<GatewayHost>/maas-api".
	MaasAPIBaseURL string

	// Namespace is the namespace holding the MaaS policy and subscription
	// resources mutated by scenarios. Default: "opendatahub".
	Namespace string

	// RequestTimeout bounds a single probe request. Default: 30s.
	RequestTimeout time.Duration

	// ReconcileWait is the fixed delay granted to the control plane after a
	// resource mutation before probing begins, and after restoration before
	// the next scenario starts. Default: 8s.
	ReconcileWait time.Duration

	// PollInterval is the sleep between probe attempts. Default: 2s.
	PollInterval time.Duration

	// RetryWait is the backoff before the single token-mint retry.
	// Default: 60s.
	RetryWait time.Duration

	// RateLimitRequestCount is the burst size used to trip the token rate
	// limit in the functional rate-limit check. Default: 10.
	RateLimitRequestCount int

	// Token is an optional pre-provisioned bearer token for the whole run.
	// When set, the credential acquirer never mints.
	Token string

	// TokenSANamespace and TokenSAName select the ServiceAccount whose token
	// stands in for the run identity when no pre-provisioned token is given.
	TokenSANamespace string
	TokenSAName      string

	// Model topology of the system under test.
	ModelPath             string
	PremiumModelPath      string
	UnconfiguredModelPath string
	ModelName             string
	ModelRef              string
	PremiumModelRef       string
	UnconfiguredModelRef  string

	// Pre-existing subscription and policy names referenced by scenarios.
	SimulatorSubscription        string
	PremiumSimulatorSubscription string
	SimulatorAccessPolicy        string
	InvalidSubscription          string

	// DeleteLastSubscriptionStatus is the status code expected after the last
	// subscription for a model is deleted. The system under test has shipped
	// both unrestricted access (200) and default-deny (429) here, so the
	// terminal behavior is a parameter rather than a constant. Default: 200.
	DeleteLastSubscriptionStatus int

	// MetricsAddr enables the harness's own Prometheus endpoint when
	// non-empty (e.g. ":9090").
	MetricsAddr string
}

// GatewayURL returns the scheme-qualified base URL of the gateway under test.
func (c *Config) GatewayURL() string {
	scheme := "https"
	if c.InsecureHTTP {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, c.GatewayHost)
}

// PollBudget returns the default time budget for convergence polling:
// three reconcile intervals, floored at one minute to absorb scheduler jitter.
func (c *Config) PollBudget() time.Duration {
	budget := 3 * c.ReconcileWait
	if budget < time.Minute {
		budget = time.Minute
	}
	return budget
}

// SubscriptionForPath returns the subscription name conventionally paired
// with a model path, or "" when the path has no pre-existing subscription
// (e.g. the unconfigured model).
func (c *Config) SubscriptionForPath(path string) string {
	switch path {
	case c.PremiumModelPath:
		return c.PremiumSimulatorSubscription
	case c.ModelPath:
		return c.SimulatorSubscription
	default:
		return ""
	}
}

// NormalizeURL strips any trailing slashes so URL joining stays predictable.
func NormalizeURL(raw string) string {
	return strings.TrimRight(raw, "/")
}
