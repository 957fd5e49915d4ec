//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"testing"

	"github.com/rekby/fixenv"

	"maas-gateway-verifier/pkg/k8s/resource"
	"maas-gateway-verifier/pkg/verify/guard"
	"maas-gateway-verifier/pkg/verify/poll"
)

// TestWrongSubjectDenied verifies a subject outside every auth policy for
// the premium model is rejected with 403 despite presenting a valid token.
func TestWrongSubjectDenied(t *testing.T) {
	env := fixenv.New(t)
	ctx := context.Background()
	token, _ := scenarioServiceAccount(ctx, t, env, UniqueName("e2e-outsider"))

	req := chatRequest(t, runCfg.PremiumModelPath, token)
	expectStatus(ctx, t, env, "authpolicy/wrong-subject-denied", req, poll.Value(403))
}

// TestAuthWithoutSubscriptionRateLimited verifies the two gates are
// independent: a subject the auth policy admits but no subscription covers
// clears authorization and then runs into 429 for lack of a token budget.
func TestAuthWithoutSubscriptionRateLimited(t *testing.T) {
	env := fixenv.New(t)
	ctx := context.Background()
	policy := UniqueName("e2e-authpolicy")
	token, _ := scenarioServiceAccount(ctx, t, env, UniqueName("e2e-no-sub"))

	err := Guard(env).WithMutatedResources(ctx, []guard.Mutation{
		authPolicyMutation(t, policy, groupSubjects(serviceAccountsGroup()), runCfg.PremiumModelRef),
	}, func(ctx context.Context) error {
		req := chatRequest(t, runCfg.PremiumModelPath, token)
		req.Subscription = ""
		expectStatus(ctx, t, env, "authpolicy/authorized-without-subscription", req, poll.Value(429))
		return nil
	})
	if err != nil {
		t.Fatalf("scenario failed: %v", err)
	}
}

// TestAuthPolicyRestoredAfterScenario verifies the guard's restoration:
// the grant a scenario carved out for its subject disappears with the
// scenario, and the subject converges back to denied.
func TestAuthPolicyRestoredAfterScenario(t *testing.T) {
	env := fixenv.New(t)
	ctx := context.Background()
	policy := UniqueName("e2e-authpolicy")
	sub := UniqueName("e2e-sub")
	token, user := scenarioServiceAccount(ctx, t, env, UniqueName("e2e-ephemeral"))

	err := Guard(env).WithMutatedResources(ctx, []guard.Mutation{
		subscriptionMutation(t, sub, userSubjects(user), 1000, runCfg.PremiumModelRef),
		authPolicyMutation(t, policy, userSubjects(user), runCfg.PremiumModelRef),
	}, func(ctx context.Context) error {
		req := chatRequest(t, runCfg.PremiumModelPath, token)
		req.Subscription = sub
		expectStatus(ctx, t, env, "authpolicy/grant-while-scoped", req, poll.Value(200))
		return nil
	})
	if err != nil {
		t.Fatalf("scenario failed: %v", err)
	}

	// Guard has restored; the policy must be gone and the subject locked
	// out again.
	exists, err := Resources(env).Exists(ctx, resource.AuthPolicyDescriptor(policy, runCfg.Namespace))
	if err != nil {
		t.Fatalf("failed to check policy: %v", err)
	}
	if exists {
		t.Fatalf("auth policy %s survived restoration", policy)
	}
	req := chatRequest(t, runCfg.PremiumModelPath, token)
	expectStatus(ctx, t, env, "authpolicy/denial-restored", req, poll.Value(403))
}

// TestTwoAuthPoliciesOrLogic verifies OR semantics across policies: with
// two policies targeting the model, a subject named in either one is
// allowed.
func TestTwoAuthPoliciesOrLogic(t *testing.T) {
	env := fixenv.New(t)
	ctx := context.Background()
	first := UniqueName("e2e-authpolicy-a")
	second := UniqueName("e2e-authpolicy-b")
	sub := UniqueName("e2e-sub")
	tokenA, userA := scenarioServiceAccount(ctx, t, env, UniqueName("e2e-subject-a"))
	tokenB, userB := scenarioServiceAccount(ctx, t, env, UniqueName("e2e-subject-b"))

	err := Guard(env).WithMutatedResources(ctx, []guard.Mutation{
		subscriptionMutation(t, sub, userSubjects(userA, userB), 1000, runCfg.PremiumModelRef),
		authPolicyMutation(t, first, userSubjects(userA), runCfg.PremiumModelRef),
		authPolicyMutation(t, second, userSubjects(userB), runCfg.PremiumModelRef),
	}, func(ctx context.Context) error {
		for name, token := range map[string]string{"first": tokenA, "second": tokenB} {
			req := chatRequest(t, runCfg.PremiumModelPath, token)
			req.Subscription = sub
			expectStatus(ctx, t, env, "authpolicy/either-policy-admits/"+name, req, poll.Value(200))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scenario failed: %v", err)
	}
}

// TestPolicyUpdateConverges verifies an in-place policy update takes
// effect: first deny, then widen the same policy to cover the subject, and
// watch the gate open without deleting anything.
func TestPolicyUpdateConverges(t *testing.T) {
	env := fixenv.New(t)
	ctx := context.Background()
	policy := UniqueName("e2e-authpolicy")
	sub := UniqueName("e2e-sub")
	token, user := scenarioServiceAccount(ctx, t, env, UniqueName("e2e-latecomer"))

	err := Guard(env).WithMutatedResources(ctx, []guard.Mutation{
		subscriptionMutation(t, sub, userSubjects(user), 1000, runCfg.PremiumModelRef),
		authPolicyMutation(t, policy, groupSubjects("nonexistent-group-xyz"), runCfg.PremiumModelRef),
	}, func(ctx context.Context) error {
		req := chatRequest(t, runCfg.PremiumModelPath, token)
		req.Subscription = sub
		if !expectStatus(ctx, t, env, "authpolicy/update-initial-deny", req, poll.Value(403)) {
			return fmt.Errorf("subject was admitted before the policy named it")
		}

		// Widen the existing policy to name the subject.
		widened := authPolicyMutation(t, policy, userSubjects(user), runCfg.PremiumModelRef)
		if err := Resources(env).Apply(ctx, widened.Descriptor, widened.Manifest); err != nil {
			return fmt.Errorf("failed to widen policy: %w", err)
		}
		expectStatus(ctx, t, env, "authpolicy/update-widens-access", req, poll.Value(200))
		return nil
	})
	if err != nil {
		t.Fatalf("scenario failed: %v", err)
	}
}
