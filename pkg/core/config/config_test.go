package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("GATEWAY_HOST", "maas.apps.example.com")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://maas.apps.example.com", cfg.GatewayURL())
	assert.Equal(t, "https://maas.apps.example.com/maas-api", cfg.MaasAPIBaseURL)
	assert.Equal(t, DefaultNamespace, cfg.Namespace)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, DefaultReconcileWait, cfg.ReconcileWait)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultRateLimitRequestCount, cfg.RateLimitRequestCount)
	assert.Equal(t, DefaultDeleteLastSubscriptionStatus, cfg.DeleteLastSubscriptionStatus)
	// SA namespace falls back to the resource namespace.
	assert.Equal(t, cfg.Namespace, cfg.TokenSANamespace)
	// Test gateways are usually self-signed.
	assert.True(t, cfg.SkipTLSVerify)
}

func TestFromEnv_TLSVerificationCanBeEnabled(t *testing.T) {
	t.Setenv("GATEWAY_HOST", "maas.example.com")
	t.Setenv("SKIP_TLS_VERIFY", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.SkipTLSVerify)
}

func TestFromEnv_MissingGatewayHostFailsFast(t *testing.T) {
	t.Setenv("GATEWAY_HOST", "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_HOST")
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("GATEWAY_HOST", "maas.example.com")
	t.Setenv("INSECURE_HTTP", "true")
	t.Setenv("E2E_TIMEOUT", "10")
	t.Setenv("E2E_RECONCILE_WAIT", "4")
	t.Setenv("MAAS_NAMESPACE", "maas-system")
	t.Setenv("E2E_DELETE_LAST_SUBSCRIPTION_STATUS", "429")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://maas.example.com", cfg.GatewayURL())
	assert.Equal(t, "http://maas.example.com/maas-api", cfg.MaasAPIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4*time.Second, cfg.ReconcileWait)
	assert.Equal(t, "maas-system", cfg.Namespace)
	assert.Equal(t, 429, cfg.DeleteLastSubscriptionStatus)
}

func TestFromEnv_BadIntegerIsAnError(t *testing.T) {
	t.Setenv("GATEWAY_HOST", "maas.example.com")
	t.Setenv("E2E_TIMEOUT", "not-a-number")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E2E_TIMEOUT")
}

func TestPollBudget_FloorsAtOneMinute(t *testing.T) {
	cfg := &Config{ReconcileWait: 8 * time.Second}
	assert.Equal(t, time.Minute, cfg.PollBudget())

	cfg.ReconcileWait = 30 * time.Second
	assert.Equal(t, 90*time.Second, cfg.PollBudget())
}

func TestSubscriptionForPath(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.GatewayHost = "maas.example.com"

	assert.Equal(t, DefaultSimulatorSubscription, cfg.SubscriptionForPath(cfg.ModelPath))
	assert.Equal(t, DefaultPremiumSimulatorSubscription, cfg.SubscriptionForPath(cfg.PremiumModelPath))
	assert.Empty(t, cfg.SubscriptionForPath(cfg.UnconfiguredModelPath))
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{DeleteLastSubscriptionStatus: 418}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GatewayHost")
	assert.Contains(t, err.Error(), "RequestTimeout")
	assert.Contains(t, err.Error(), "DeleteLastSubscriptionStatus")
}

func TestEnvBool(t *testing.T) {
	t.Setenv("TEST_FLAG", "YES")
	assert.True(t, EnvBool("TEST_FLAG", false))

	t.Setenv("TEST_FLAG", "off")
	assert.False(t, EnvBool("TEST_FLAG", true))
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://x/maas-api", NormalizeURL("https://x/maas-api//"))
}
