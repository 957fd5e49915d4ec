package diagnostics_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	k8sfake "k8s.io/client-go/kubernetes/fake"

	"maas-gateway-verifier/pkg/diagnostics"
	"maas-gateway-verifier/pkg/k8s/resource"
)

type mapGetter struct {
	objects map[string]*unstructured.Unstructured
	errs    map[string]error
}

func (g *mapGetter) Get(_ context.Context, d resource.Descriptor) (*unstructured.Unstructured, error) {
	if err := g.errs[d.Name]; err != nil {
		return nil, err
	}
	return g.objects[d.Name], nil
}

func gatewayObject(accepted, programmed string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "gateway.networking.k8s.io/v1",
		"kind":       "Gateway",
		"metadata":   map[string]interface{}{"name": "maas", "namespace": "opendatahub"},
		"status": map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"type": "Accepted", "status": accepted, "reason": "Accepted"},
				map[string]interface{}{"type": "Programmed", "status": programmed, "message": "address assigned"},
			},
		},
	}}
}

func routeObject() *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "gateway.networking.k8s.io/v1",
		"kind":       "HTTPRoute",
		"metadata":   map[string]interface{}{"name": "simulator", "namespace": "opendatahub"},
		"status": map[string]interface{}{
			"parents": []interface{}{
				map[string]interface{}{
					"conditions": []interface{}{
						map[string]interface{}{"type": "Accepted", "status": "True"},
					},
				},
			},
		},
	}}
}

func TestExtractConditions_TopLevel(t *testing.T) {
	conditions := diagnostics.ExtractConditions(gatewayObject("True", "False"))

	require.Len(t, conditions, 2)
	assert.True(t, diagnostics.ConditionTrue(conditions, "Accepted"))
	assert.False(t, diagnostics.ConditionTrue(conditions, "Programmed"))
	assert.Equal(t, "address assigned", conditions[1].Message)
}

func TestExtractConditions_RouteParents(t *testing.T) {
	conditions := diagnostics.ExtractConditions(routeObject())

	require.Len(t, conditions, 1)
	assert.Equal(t, "parents[0].Accepted", conditions[0].Type)
	assert.True(t, diagnostics.ConditionTrue(conditions, "parents[0].Accepted"))
}

func TestCollect_BestEffort(t *testing.T) {
	getter := &mapGetter{
		objects: map[string]*unstructured.Unstructured{"maas": gatewayObject("True", "True")},
		errs:    map[string]error{"broken": errors.New("api server unavailable")},
	}
	collector := diagnostics.NewCollector(getter, nil, nil)

	report := collector.Collect(context.Background(), []resource.Descriptor{
		{GVR: resource.Gateways, Namespace: "opendatahub", Name: "maas"},
		{GVR: resource.Gateways, Namespace: "opendatahub", Name: "missing"},
		{GVR: resource.Gateways, Namespace: "opendatahub", Name: "broken"},
	})

	require.Len(t, report.Resources, 3)
	assert.True(t, report.Resources[0].Found)
	assert.Len(t, report.Resources[0].Conditions, 2)
	assert.False(t, report.Resources[1].Found)
	assert.Empty(t, report.Resources[1].Error)
	assert.Contains(t, report.Resources[2].Error, "unavailable")
}

func TestCollect_ReportRendersAsJSON(t *testing.T) {
	getter := &mapGetter{objects: map[string]*unstructured.Unstructured{"maas": gatewayObject("True", "True")}}
	collector := diagnostics.NewCollector(getter, nil, nil)

	report := collector.Collect(context.Background(), []resource.Descriptor{
		{GVR: resource.Gateways, Namespace: "opendatahub", Name: "maas"},
	})

	raw, err := report.JSON()
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "resources")
}

func TestCountRunningPods(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset(
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "gw-1", Namespace: "opendatahub", Labels: map[string]string{"app": "gateway"}},
			Status:     corev1.PodStatus{Phase: corev1.PodRunning},
		},
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "gw-2", Namespace: "opendatahub", Labels: map[string]string{"app": "gateway"}},
			Status:     corev1.PodStatus{Phase: corev1.PodPending},
		},
	)
	collector := diagnostics.NewCollector(&mapGetter{}, clientset, nil)
	report := &diagnostics.Report{}

	running, err := collector.CountRunningPods(context.Background(), report, "opendatahub", "app=gateway")

	require.NoError(t, err)
	assert.Equal(t, 1, running)
	assert.Equal(t, 1, report.RunningPods["app=gateway"])
}

func TestCountRunningPods_NoClientset(t *testing.T) {
	collector := diagnostics.NewCollector(&mapGetter{}, nil, nil)
	_, err := collector.CountRunningPods(context.Background(), nil, "ns", "app=x")
	require.Error(t, err)
}
