package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func TestApply_CreatesThenUpdates(t *testing.T) {
	store := newFakeStore(t)
	d := SubscriptionDescriptor("sub", "opendatahub")

	first := subscriptionManifest("sub", "opendatahub")
	require.NoError(t, store.Apply(context.Background(), d, first))

	second := subscriptionManifest("sub", "opendatahub")
	second.Object["spec"] = map[string]interface{}{
		"owner": map[string]interface{}{
			"groups": []interface{}{
				map[string]interface{}{"name": "premium-users"},
			},
		},
	}
	require.NoError(t, store.Apply(context.Background(), d, second))

	stored, err := store.Get(context.Background(), d)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, second.Object["spec"], stored.Object["spec"])
}

func TestApply_AlignsManifestWithDescriptor(t *testing.T) {
	store := newFakeStore(t)
	d := SubscriptionDescriptor("canonical-name", "opendatahub")

	manifest := subscriptionManifest("other-name", "other-namespace")
	require.NoError(t, store.Apply(context.Background(), d, manifest))

	stored, err := store.Get(context.Background(), d)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "canonical-name", stored.GetName())

	// The caller's manifest is untouched.
	assert.Equal(t, "other-name", manifest.GetName())
}

func TestApply_NilManifestFails(t *testing.T) {
	store := newFakeStore(t)

	err := store.Apply(context.Background(), SubscriptionDescriptor("sub", "opendatahub"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil manifest")
}

func TestDelete_AbsentResourceIsSuccess(t *testing.T) {
	store := newFakeStore(t)

	err := store.Delete(context.Background(), SubscriptionDescriptor("ghost", "opendatahub"))
	assert.NoError(t, err)
}

func TestGet_MissingResourceIsNilNotError(t *testing.T) {
	store := newFakeStore(t)

	obj, err := store.Get(context.Background(), AuthPolicyDescriptor("ghost", "opendatahub"))
	require.NoError(t, err)
	assert.Nil(t, obj)
}

func TestManifestFromYAML(t *testing.T) {
	doc := []byte(`
apiVersion: maas.opendatahub.io/v1alpha1
kind: MaaSSubscription
metadata:
  name: e2e-extra-sub
  namespace: opendatahub
spec:
  owner:
    groups:
      - name: nonexistent-group-xyz
  modelRefs:
    - name: facebook-opt-125m-simulated
      tokenRateLimits:
        - limit: 999
          window: 1m
`)

	obj, err := ManifestFromYAML(doc)
	require.NoError(t, err)
	assert.Equal(t, "MaaSSubscription", obj.GetKind())
	assert.Equal(t, "e2e-extra-sub", obj.GetName())

	// YAML integers must normalize to int64 as unstructured requires.
	refs, found, err := unstructured.NestedSlice(obj.Object, "spec", "modelRefs")
	require.NoError(t, err)
	require.True(t, found)
	limits := refs[0].(map[string]interface{})["tokenRateLimits"].([]interface{})
	assert.Equal(t, int64(999), limits[0].(map[string]interface{})["limit"])
}

func TestManifestFromYAML_Invalid(t *testing.T) {
	_, err := ManifestFromYAML([]byte(""))
	assert.Error(t, err)

	_, err = ManifestFromYAML([]byte("metadata:\n  name: incomplete\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiVersion or kind")
}
