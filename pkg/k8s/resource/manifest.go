package resource

import (
	"fmt"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// ManifestFromYAML parses a single YAML document into an unstructured
// manifest. Scenario fixtures are authored as YAML, the store speaks JSON;
// the conversion and map-key normalization happen here, once.
func ManifestFromYAML(doc []byte) (*unstructured.Unstructured, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest YAML: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("manifest YAML is empty")
	}

	normalized, ok := normalizeYAMLValue(raw).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("manifest YAML is not a mapping")
	}

	obj := &unstructured.Unstructured{Object: normalized}
	if obj.GetKind() == "" || obj.GetAPIVersion() == "" {
		return nil, fmt.Errorf("manifest missing apiVersion or kind")
	}
	return obj, nil
}

// normalizeYAMLValue rewrites yaml.v3 decode output into the shapes
// unstructured expects: map[string]interface{} keys and int64 numbers.
func normalizeYAMLValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, item := range v {
			v[key] = normalizeYAMLValue(item)
		}
		return v
	case map[interface{}]interface{}:
		normalized := make(map[string]interface{}, len(v))
		for key, item := range v {
			normalized[fmt.Sprintf("%v", key)] = normalizeYAMLValue(item)
		}
		return normalized
	case []interface{}:
		for i, item := range v {
			v[i] = normalizeYAMLValue(item)
		}
		return v
	case int:
		return int64(v)
	default:
		return v
	}
}
