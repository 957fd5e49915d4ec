// Package resource implements the primitive operations against the
// declarative store: apply, get and delete of arbitrary manifests keyed by
// (resource, name, namespace), plus snapshot capture and restoration of a
// resource's user-intent shape.
package resource

import (
	"fmt"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Descriptor identifies a mutable declarative object in the store.
// (Resource, Name, Namespace) is unique within a run.
type Descriptor struct {
	GVR       schema.GroupVersionResource
	Name      string
	Namespace string
}

// String renders the descriptor for logs and error messages.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s/%s", d.GVR.Resource, d.Namespace, d.Name)
}

// GroupVersionResources of the MaaS control plane and its Kuadrant-backed
// policy machinery. Scenarios reference these instead of spelling out GVRs.
var (
	MaaSAuthPolicies = schema.GroupVersionResource{
		Group:    "maas.opendatahub.io",
		Version:  "v1alpha1",
		Resource: "maasauthpolicies",
	}
	MaaSSubscriptions = schema.GroupVersionResource{
		Group:    "maas.opendatahub.io",
		Version:  "v1alpha1",
		Resource: "maassubscriptions",
	}
	AuthPolicies = schema.GroupVersionResource{
		Group:    "kuadrant.io",
		Version:  "v1",
		Resource: "authpolicies",
	}
	RateLimitPolicies = schema.GroupVersionResource{
		Group:    "kuadrant.io",
		Version:  "v1",
		Resource: "ratelimitpolicies",
	}
	TokenRateLimitPolicies = schema.GroupVersionResource{
		Group:    "kuadrant.io",
		Version:  "v1alpha1",
		Resource: "tokenratelimitpolicies",
	}
	Gateways = schema.GroupVersionResource{
		Group:    "gateway.networking.k8s.io",
		Version:  "v1",
		Resource: "gateways",
	}
	HTTPRoutes = schema.GroupVersionResource{
		Group:    "gateway.networking.k8s.io",
		Version:  "v1",
		Resource: "httproutes",
	}
)

// AuthPolicyDescriptor returns the descriptor for a MaaSAuthPolicy.
func AuthPolicyDescriptor(name, namespace string) Descriptor {
	return Descriptor{GVR: MaaSAuthPolicies, Name: name, Namespace: namespace}
}

// SubscriptionDescriptor returns the descriptor for a MaaSSubscription.
func SubscriptionDescriptor(name, namespace string) Descriptor {
	return Descriptor{GVR: MaaSSubscriptions, Name: name, Namespace: namespace}
}
