// Package diagnostics captures control plane state for failure reports:
// resource conditions (Gateway Accepted/Programmed, policy
// Accepted/Enforced, route parent acceptance) and workload liveness. A
// failed scenario attaches a Report so the cluster does not need to be
// alive anymore when someone reads the failure.
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/kubernetes"

	"maas-gateway-verifier/pkg/k8s/resource"
)

// Getter reads one resource; *resource.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, d resource.Descriptor) (*unstructured.Unstructured, error)
}

// Condition is one status condition, flattened.
type Condition struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// ResourceReport is the collected state of one resource.
type ResourceReport struct {
	Resource   string      `json:"resource"`
	Found      bool        `json:"found"`
	Conditions []Condition `json:"conditions,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Report is one collection pass over the resources of interest.
type Report struct {
	CollectedAt time.Time        `json:"collectedAt"`
	Resources   []ResourceReport `json:"resources"`
	RunningPods map[string]int   `json:"runningPods,omitempty"`
}

// JSON renders the report for log attachment.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Collector gathers reports. The clientset is optional; without it pod
// counts are skipped.
type Collector struct {
	getter    Getter
	clientset kubernetes.Interface
	logger    *slog.Logger
}

// NewCollector creates a Collector.
func NewCollector(getter Getter, clientset kubernetes.Interface, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{getter: getter, clientset: clientset, logger: logger}
}

// Collect reads every descriptor and flattens its conditions. Collection is
// best effort: an unreadable resource yields a report entry with the error
// instead of failing the whole pass.
func (c *Collector) Collect(ctx context.Context, descriptors []resource.Descriptor) *Report {
	report := &Report{CollectedAt: time.Now().UTC()}

	for _, d := range descriptors {
		entry := ResourceReport{Resource: d.String()}
		obj, err := c.getter.Get(ctx, d)
		switch {
		case err != nil:
			entry.Error = err.Error()
			c.logger.Debug("diagnostics read failed", "resource", d.String(), "error", err)
		case obj == nil:
			entry.Found = false
		default:
			entry.Found = true
			entry.Conditions = ExtractConditions(obj)
		}
		report.Resources = append(report.Resources, entry)
	}

	return report
}

// CountRunningPods counts pods in phase Running matching the selector and
// records the count in the report under the selector.
func (c *Collector) CountRunningPods(ctx context.Context, report *Report, namespace, labelSelector string) (int, error) {
	if c.clientset == nil {
		return 0, fmt.Errorf("no clientset configured for pod counting")
	}
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return 0, fmt.Errorf("failed to list pods %s in %s: %w", labelSelector, namespace, err)
	}
	running := 0
	for _, pod := range pods.Items {
		if pod.Status.Phase == corev1.PodRunning {
			running++
		}
	}
	if report != nil {
		if report.RunningPods == nil {
			report.RunningPods = make(map[string]int)
		}
		report.RunningPods[labelSelector] = running
	}
	return running, nil
}

// ExtractConditions flattens status.conditions, and for routed resources
// also status.parents[].conditions with the parent index prefixed to the
// condition type.
func ExtractConditions(obj *unstructured.Unstructured) []Condition {
	var out []Condition

	if conditions, found, _ := unstructured.NestedSlice(obj.Object, "status", "conditions"); found {
		out = append(out, flattenConditions(conditions, "")...)
	}

	if parents, found, _ := unstructured.NestedSlice(obj.Object, "status", "parents"); found {
		for i, parent := range parents {
			parentMap, ok := parent.(map[string]interface{})
			if !ok {
				continue
			}
			if conditions, ok := parentMap["conditions"].([]interface{}); ok {
				out = append(out, flattenConditions(conditions, fmt.Sprintf("parents[%d].", i))...)
			}
		}
	}

	return out
}

func flattenConditions(raw []interface{}, prefix string) []Condition {
	var out []Condition
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		cond := Condition{
			Type:    prefix + stringField(m, "type"),
			Status:  stringField(m, "status"),
			Reason:  stringField(m, "reason"),
			Message: stringField(m, "message"),
		}
		out = append(out, cond)
	}
	return out
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// ConditionTrue reports whether a condition of the given type exists with
// status True.
func ConditionTrue(conditions []Condition, conditionType string) bool {
	for _, c := range conditions {
		if c.Type == conditionType && c.Status == "True" {
			return true
		}
	}
	return false
}
