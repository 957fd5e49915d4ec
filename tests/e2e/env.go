//go:build e2e

// Package e2e verifies an eventually-consistent MaaS gateway end to end:
// scenarios mutate policy and subscription resources, poll the gateway
// until its observable behavior converges, and restore everything they
// touched. The suite requires a reachable gateway (GATEWAY_HOST) and a
// kubeconfig for the cluster hosting its policy resources.
package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rekby/fixenv"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"maas-gateway-verifier/pkg/core/logging"
	"maas-gateway-verifier/pkg/credentials"
	"maas-gateway-verifier/pkg/diagnostics"
	"maas-gateway-verifier/pkg/gateway"
	"maas-gateway-verifier/pkg/k8s/client"
	"maas-gateway-verifier/pkg/k8s/resource"
	"maas-gateway-verifier/pkg/verify/guard"
	"maas-gateway-verifier/pkg/verify/poll"
	"maas-gateway-verifier/pkg/verify/summary"
)

// Logger provides the suite logger, package scoped.
func Logger(env fixenv.Env) *slog.Logger {
	return fixenv.CacheResult(env, func() (*fixenv.GenericResult[*slog.Logger], error) {
		return fixenv.NewGenericResult(logging.NewLogger("debug")), nil
	}, fixenv.CacheOptions{Scope: fixenv.ScopePackage})
}

// K8sClient provides the cluster connection, package scoped.
func K8sClient(env fixenv.Env) *client.Client {
	return fixenv.CacheResult(env, func() (*fixenv.GenericResult[*client.Client], error) {
		c, err := client.New(client.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to create cluster client: %w", err)
		}
		return fixenv.NewGenericResult(c), nil
	}, fixenv.CacheOptions{Scope: fixenv.ScopePackage})
}

// Resources provides the dynamic resource store, package scoped.
func Resources(env fixenv.Env) *resource.Client {
	return fixenv.CacheResult(env, func() (*fixenv.GenericResult[*resource.Client], error) {
		store := resource.NewClient(K8sClient(env).DynamicClient(), logging.ForComponent(Logger(env), "resources"))
		return fixenv.NewGenericResult(store), nil
	}, fixenv.CacheOptions{Scope: fixenv.ScopePackage})
}

// Gateway provides the gateway HTTP client, package scoped.
func Gateway(env fixenv.Env) *gateway.Client {
	return fixenv.CacheResult(env, func() (*fixenv.GenericResult[*gateway.Client], error) {
		gw := gateway.New(gateway.Options{
			GatewayURL:         runCfg.GatewayURL(),
			APIBaseURL:         runCfg.MaasAPIBaseURL,
			Timeout:            runCfg.RequestTimeout,
			InsecureSkipVerify: runCfg.SkipTLSVerify,
			Logger:             logging.ForComponent(Logger(env), "gateway"),
		})
		return fixenv.NewGenericResult(gw), nil
	}, fixenv.CacheOptions{Scope: fixenv.ScopePackage})
}

// RunToken provides the suite's bearer token, package scoped: the
// pre-provisioned token when configured, a minted ServiceAccount token
// otherwise.
func RunToken(env fixenv.Env) string {
	return fixenv.CacheResult(env, func() (*fixenv.GenericResult[string], error) {
		acquirer := credentials.NewAcquirer(credentials.Options{
			PreProvisioned: runCfg.Token,
			Minter: credentials.NewTokenRequestMinter(
				K8sClient(env).Clientset(), runCfg.TokenSANamespace, runCfg.TokenSAName),
			RetryWait: runCfg.RetryWait,
			Logger:    Logger(env),
		})
		token, err := acquirer.Acquire(context.Background())
		if err != nil {
			return nil, err
		}
		return fixenv.NewGenericResult(token), nil
	}, fixenv.CacheOptions{Scope: fixenv.ScopePackage})
}

// Results provides the shared outcome set, package scoped; the full report
// is rendered once when the package finishes.
func Results(env fixenv.Env) *summary.Summary {
	return fixenv.CacheResult(env, func() (*fixenv.GenericResult[*summary.Summary], error) {
		s := summary.New()
		return fixenv.NewGenericResultWithCleanup(s, func() {
			fmt.Print(s.Render())
		}), nil
	}, fixenv.CacheOptions{Scope: fixenv.ScopePackage})
}

// Guard provides the scenario guard with the configured reconcile head
// start.
func Guard(env fixenv.Env) *guard.Guard {
	return fixenv.CacheResult(env, func() (*fixenv.GenericResult[*guard.Guard], error) {
		g := guard.New(Resources(env), guard.Options{
			ReconcileWait: runCfg.ReconcileWait,
			Logger:        logging.ForComponent(Logger(env), "guard"),
		})
		return fixenv.NewGenericResult(g), nil
	}, fixenv.CacheOptions{Scope: fixenv.ScopePackage})
}

// Collector provides the diagnostics collector, package scoped.
func Collector(env fixenv.Env) *diagnostics.Collector {
	return fixenv.CacheResult(env, func() (*fixenv.GenericResult[*diagnostics.Collector], error) {
		c := diagnostics.NewCollector(Resources(env), K8sClient(env).Clientset(),
			logging.ForComponent(Logger(env), "diagnostics"))
		return fixenv.NewGenericResult(c), nil
	}, fixenv.CacheOptions{Scope: fixenv.ScopePackage})
}

// UniqueName returns a DNS-safe resource name unique to this test run.
func UniqueName(prefix string) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%s-%s", prefix, suffix)
}

// pollOptions are the standard options for convergence polling in this
// suite.
func pollOptions(env fixenv.Env) poll.Options {
	return poll.Options{
		Budget:   runCfg.PollBudget(),
		Interval: runCfg.PollInterval,
		Logger:   Logger(env),
	}
}

// chatRequest builds the standard completion request for a model path,
// using the subscription conventionally paired with it.
func chatRequest(t *testing.T, path, token string) gateway.Request {
	t.Helper()
	payload, err := gateway.ChatPayload(runCfg.ModelName)
	if err != nil {
		t.Fatalf("failed to render completion payload: %v", err)
	}
	return gateway.Request{
		Path:         path + "/v1/chat/completions",
		Token:        token,
		Subscription: runCfg.SubscriptionForPath(path),
		Payload:      payload,
	}
}

// expectStatus polls until the request observes one of the expected
// statuses and records the verdict. On timeout it attaches a diagnostics
// report so the failure is debuggable after the cluster is gone.
func expectStatus(ctx context.Context, t *testing.T, env fixenv.Env, caseName string, req gateway.Request, expected poll.Expectation[int]) bool {
	t.Helper()
	results := Results(env)

	result, err := poll.Until(ctx, Gateway(env).StatusProbe(req), expected, pollOptions(env))
	if err != nil {
		results.Record(caseName, false, err.Error(), expected.String())
		attachDiagnostics(ctx, t, env)
		t.Errorf("%s: %v", caseName, err)
		return false
	}
	results.Record(caseName, true, fmt.Sprintf("%d", result.LastObservation), expected.String())
	return true
}

// attachDiagnostics logs the control plane state around the standard
// resources of interest.
func attachDiagnostics(ctx context.Context, t *testing.T, env fixenv.Env) {
	t.Helper()
	report := Collector(env).Collect(ctx, []resource.Descriptor{
		{GVR: resource.Gateways, Namespace: runCfg.Namespace, Name: "maas-default-gateway"},
		resource.SubscriptionDescriptor(runCfg.SimulatorSubscription, runCfg.Namespace),
		resource.AuthPolicyDescriptor(runCfg.SimulatorAccessPolicy, runCfg.Namespace),
	})
	if raw, err := report.JSON(); err == nil {
		t.Logf("control plane state:\n%s", raw)
	}
}

// authenticatedGroup covers every caller carrying a valid cluster identity.
const authenticatedGroup = "system:authenticated"

// serviceAccountsGroup returns the group every ServiceAccount in the run
// namespace belongs to.
func serviceAccountsGroup() string {
	return "system:serviceaccounts:" + runCfg.Namespace
}

// groupSubjects builds the owner/subjects block naming groups. The same
// shape serves MaaSSubscription owners and MaaSAuthPolicy subjects.
func groupSubjects(groups ...string) map[string]any {
	refs := make([]any, 0, len(groups))
	for _, g := range groups {
		refs = append(refs, map[string]any{"name": g})
	}
	return map[string]any{"groups": refs}
}

// userSubjects builds the owner/subjects block naming individual users.
func userSubjects(users ...string) map[string]any {
	names := make([]any, 0, len(users))
	for _, u := range users {
		names = append(names, u)
	}
	return map[string]any{"users": names}
}

// subscriptionMutation builds the apply mutation for a MaaSSubscription
// owned by the given subjects, granting each model ref a token budget per
// one-minute window.
func subscriptionMutation(t *testing.T, name string, owner map[string]any, tokenLimit int64, modelRefs ...string) guard.Mutation {
	t.Helper()
	refs := make([]any, 0, len(modelRefs))
	for _, ref := range modelRefs {
		refs = append(refs, map[string]any{
			"name": ref,
			"tokenRateLimits": []any{
				map[string]any{"limit": tokenLimit, "window": "1m"},
			},
		})
	}
	manifest := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "maas.opendatahub.io/v1alpha1",
		"kind":       "MaaSSubscription",
		"metadata": map[string]any{
			"name":      name,
			"namespace": runCfg.Namespace,
		},
		"spec": map[string]any{
			"owner":     owner,
			"modelRefs": refs,
		},
	}}
	return guard.Apply(resource.SubscriptionDescriptor(name, runCfg.Namespace), manifest)
}

// authPolicyMutation builds the apply mutation for a MaaSAuthPolicy granting
// the given subjects access to the model refs.
func authPolicyMutation(t *testing.T, name string, subjects map[string]any, modelRefs ...string) guard.Mutation {
	t.Helper()
	refs := make([]any, 0, len(modelRefs))
	for _, ref := range modelRefs {
		refs = append(refs, ref)
	}
	manifest := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "maas.opendatahub.io/v1alpha1",
		"kind":       "MaaSAuthPolicy",
		"metadata": map[string]any{
			"name":      name,
			"namespace": runCfg.Namespace,
		},
		"spec": map[string]any{
			"modelRefs": refs,
			"subjects":  subjects,
		},
	}}
	return guard.Apply(resource.AuthPolicyDescriptor(name, runCfg.Namespace), manifest)
}

// scenarioServiceAccount mints a token for a scenario-scoped ServiceAccount
// and returns it with the account's Kubernetes user name. The ServiceAccount
// is removed when the test finishes, so every scenario probes with a fresh
// subject the pre-existing policies have never heard of.
func scenarioServiceAccount(ctx context.Context, t *testing.T, env fixenv.Env, name string) (token, user string) {
	t.Helper()
	minter := credentials.NewTokenRequestMinter(K8sClient(env).Clientset(), runCfg.Namespace, name)
	token, err := minter.Mint(ctx)
	if err != nil {
		t.Fatalf("failed to mint token for ServiceAccount %s: %v", name, err)
	}
	t.Cleanup(func() {
		cleanupCtx := context.WithoutCancel(ctx)
		err := K8sClient(env).Clientset().CoreV1().ServiceAccounts(runCfg.Namespace).
			Delete(cleanupCtx, name, metav1.DeleteOptions{})
		if err != nil && !apierrors.IsNotFound(err) {
			t.Logf("failed to delete ServiceAccount %s: %v", name, err)
		}
	})
	return token, fmt.Sprintf("system:serviceaccount:%s:%s", runCfg.Namespace, name)
}
