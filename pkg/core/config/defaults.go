package config

import "time"

// Default values applied by FromEnv when the corresponding environment
// variable is unset or empty.
const (
	DefaultNamespace = "opendatahub"

	DefaultRequestTimeout = 30 * time.Second
	DefaultReconcileWait  = 8 * time.Second
	DefaultPollInterval   = 2 * time.Second
	DefaultRetryWait      = 60 * time.Second

	DefaultRateLimitRequestCount = 10

	DefaultModelPath             = "/llm/facebook-opt-125m-simulated"
	DefaultPremiumModelPath      = "/llm/premium-simulated-simulated-premium"
	DefaultUnconfiguredModelPath = "/llm/e2e-unconfigured-facebook-opt-125m-simulated"
	DefaultModelName             = "facebook/opt-125m"
	DefaultModelRef              = "facebook-opt-125m-simulated"
	DefaultPremiumModelRef       = "premium-simulated-simulated-premium"
	DefaultUnconfiguredModelRef  = "e2e-unconfigured-facebook-opt-125m-simulated"

	DefaultSimulatorSubscription        = "simulator-subscription"
	DefaultPremiumSimulatorSubscription = "premium-simulator-subscription"
	DefaultSimulatorAccessPolicy        = "simulator-access"
	DefaultInvalidSubscription          = "nonexistent-sub"

	// DefaultDeleteLastSubscriptionStatus reflects the current control-plane
	// revision: removing the last subscription falls back to unrestricted
	// access. Override with E2E_DELETE_LAST_SUBSCRIPTION_STATUS=429 for
	// default-deny builds.
	DefaultDeleteLastSubscriptionStatus = 200
)

// applyDefaults fills every zero-valued field that has a documented default.
func (c *Config) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ReconcileWait == 0 {
		c.ReconcileWait = DefaultReconcileWait
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RetryWait == 0 {
		c.RetryWait = DefaultRetryWait
	}
	if c.RateLimitRequestCount == 0 {
		c.RateLimitRequestCount = DefaultRateLimitRequestCount
	}
	if c.ModelPath == "" {
		c.ModelPath = DefaultModelPath
	}
	if c.PremiumModelPath == "" {
		c.PremiumModelPath = DefaultPremiumModelPath
	}
	if c.UnconfiguredModelPath == "" {
		c.UnconfiguredModelPath = DefaultUnconfiguredModelPath
	}
	if c.ModelName == "" {
		c.ModelName = DefaultModelName
	}
	if c.ModelRef == "" {
		c.ModelRef = DefaultModelRef
	}
	if c.PremiumModelRef == "" {
		c.PremiumModelRef = DefaultPremiumModelRef
	}
	if c.UnconfiguredModelRef == "" {
		c.UnconfiguredModelRef = DefaultUnconfiguredModelRef
	}
	if c.SimulatorSubscription == "" {
		c.SimulatorSubscription = DefaultSimulatorSubscription
	}
	if c.PremiumSimulatorSubscription == "" {
		c.PremiumSimulatorSubscription = DefaultPremiumSimulatorSubscription
	}
	if c.SimulatorAccessPolicy == "" {
		c.SimulatorAccessPolicy = DefaultSimulatorAccessPolicy
	}
	if c.InvalidSubscription == "" {
		c.InvalidSubscription = DefaultInvalidSubscription
	}
	if c.DeleteLastSubscriptionStatus == 0 {
		c.DeleteLastSubscriptionStatus = DefaultDeleteLastSubscriptionStatus
	}
	if c.TokenSANamespace == "" {
		c.TokenSANamespace = c.Namespace
	}
	if c.MaasAPIBaseURL == "" && c.GatewayHost != "" {
		c.MaasAPIBaseURL = c.GatewayURL() + "/maas-api"
	}
	c.MaasAPIBaseURL = NormalizeURL(c.MaasAPIBaseURL)
}
