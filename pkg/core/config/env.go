package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FromEnv builds a Config from environment variables, applies defaults and
// validates the result.
//
// Recognized variables (all optional unless noted):
//
//   - GATEWAY_HOST: gateway hostname (required)
//   - INSECURE_HTTP: use plain HTTP ("1", "true", "yes", "y", "on")
//   - SKIP_TLS_VERIFY: skip TLS certificate verification (default: true,
//     test gateways are usually self-signed)
//   - MAAS_API_BASE_URL: override the derived MaaS API base URL
//   - MAAS_NAMESPACE: resource namespace (default: opendatahub)
//   - E2E_TIMEOUT: per-request timeout in seconds (default: 30)
//   - E2E_RECONCILE_WAIT: reconcile wait in seconds (default: 8)
//   - E2E_POLL_INTERVAL: poll interval in seconds (default: 2)
//   - RETRY_WAIT_SECONDS: token-mint retry backoff in seconds (default: 60)
//   - RATE_LIMIT_TEST_COUNT: rate-limit burst size (default: 10)
//   - TOKEN: pre-provisioned bearer token for the whole run
//   - E2E_TEST_TOKEN_SA_NAMESPACE, E2E_TEST_TOKEN_SA_NAME: ServiceAccount
//     used to mint the run identity token
//   - E2E_MODEL_PATH, E2E_PREMIUM_MODEL_PATH, E2E_UNCONFIGURED_MODEL_PATH,
//     E2E_MODEL_NAME, E2E_MODEL_REF, E2E_PREMIUM_MODEL_REF,
//     E2E_UNCONFIGURED_MODEL_REF: model topology
//   - E2E_SIMULATOR_SUBSCRIPTION, E2E_PREMIUM_SIMULATOR_SUBSCRIPTION,
//     E2E_SIMULATOR_ACCESS_POLICY, E2E_INVALID_SUBSCRIPTION: resource names
//   - E2E_DELETE_LAST_SUBSCRIPTION_STATUS: expected terminal status after
//     the last subscription is deleted (default: 200)
//   - METRICS_ADDR: listen address for the harness metrics endpoint
func FromEnv() (*Config, error) {
	retryWait, err := EnvInt("RETRY_WAIT_SECONDS", 0)
	if err != nil {
		return nil, err
	}
	timeout, err := EnvInt("E2E_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	reconcileWait, err := EnvInt("E2E_RECONCILE_WAIT", 0)
	if err != nil {
		return nil, err
	}
	pollInterval, err := EnvInt("E2E_POLL_INTERVAL", 0)
	if err != nil {
		return nil, err
	}
	burst, err := EnvInt("RATE_LIMIT_TEST_COUNT", 0)
	if err != nil {
		return nil, err
	}
	terminalStatus, err := EnvInt("E2E_DELETE_LAST_SUBSCRIPTION_STATUS", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		GatewayHost:                  EnvStr("GATEWAY_HOST", ""),
		InsecureHTTP:                 EnvBool("INSECURE_HTTP", false),
		SkipTLSVerify:                EnvBool("SKIP_TLS_VERIFY", true),
		MaasAPIBaseURL:               EnvStr("MAAS_API_BASE_URL", ""),
		Namespace:                    EnvStr("MAAS_NAMESPACE", ""),
		RequestTimeout:               time.Duration(timeout) * time.Second,
		ReconcileWait:                time.Duration(reconcileWait) * time.Second,
		PollInterval:                 time.Duration(pollInterval) * time.Second,
		RetryWait:                    time.Duration(retryWait) * time.Second,
		RateLimitRequestCount:        burst,
		Token:                        EnvStr("TOKEN", ""),
		TokenSANamespace:             EnvStr("E2E_TEST_TOKEN_SA_NAMESPACE", ""),
		TokenSAName:                  EnvStr("E2E_TEST_TOKEN_SA_NAME", ""),
		ModelPath:                    EnvStr("E2E_MODEL_PATH", ""),
		PremiumModelPath:             EnvStr("E2E_PREMIUM_MODEL_PATH", ""),
		UnconfiguredModelPath:        EnvStr("E2E_UNCONFIGURED_MODEL_PATH", ""),
		ModelName:                    EnvStr("E2E_MODEL_NAME", ""),
		ModelRef:                     EnvStr("E2E_MODEL_REF", ""),
		PremiumModelRef:              EnvStr("E2E_PREMIUM_MODEL_REF", ""),
		UnconfiguredModelRef:         EnvStr("E2E_UNCONFIGURED_MODEL_REF", ""),
		SimulatorSubscription:        EnvStr("E2E_SIMULATOR_SUBSCRIPTION", ""),
		PremiumSimulatorSubscription: EnvStr("E2E_PREMIUM_SIMULATOR_SUBSCRIPTION", ""),
		SimulatorAccessPolicy:        EnvStr("E2E_SIMULATOR_ACCESS_POLICY", ""),
		InvalidSubscription:          EnvStr("E2E_INVALID_SUBSCRIPTION", ""),
		DeleteLastSubscriptionStatus: terminalStatus,
		MetricsAddr:                  EnvStr("METRICS_ADDR", ""),
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnvStr returns the trimmed value of an environment variable, or the default
// when unset or blank.
func EnvStr(name, defaultValue string) string {
	raw, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

// EnvBool interprets an environment variable as a boolean. Recognized true
// values: "1", "true", "yes", "y", "on" (case-insensitive).
func EnvBool(name string, defaultValue bool) bool {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// EnvInt interprets an environment variable as an integer. Unset or blank
// values yield the default; unparseable values are an error rather than a
// silent fallback.
func EnvInt(name string, defaultValue int) (int, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer, got %q", name, raw)
	}
	return value, nil
}
