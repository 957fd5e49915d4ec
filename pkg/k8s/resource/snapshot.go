package resource

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// lastAppliedAnnotation is the client-side bookkeeping annotation that must
// not survive a snapshot: re-applying it would lie about the manifest's
// provenance.
const lastAppliedAnnotation = "kubectl.kubernetes.io/last-applied-configuration"

// strippedMetadataFields are server-assigned and regenerate deterministically
// on re-apply; keeping them would make restoration fail or drift.
var strippedMetadataFields = []string{
	"resourceVersion",
	"uid",
	"creationTimestamp",
	"generation",
	"managedFields",
}

// Snapshot is a resource's user-intent manifest with all runtime and
// server-assigned fields removed, suitable for exact restoration.
//
// A nil *Snapshot is meaningful: it records that the resource did not exist
// at capture time, so restoration means ensuring it stays absent.
type Snapshot struct {
	Descriptor Descriptor
	manifest   *unstructured.Unstructured
}

// NewSnapshot builds a snapshot from an already stripped manifest. Most
// callers want Client.Capture instead; this exists for composing test
// fixtures and pre-recorded states.
func NewSnapshot(d Descriptor, manifest *unstructured.Unstructured) *Snapshot {
	return &Snapshot{
		Descriptor: d,
		manifest:   manifest.DeepCopy(),
	}
}

// Manifest returns a deep copy of the captured manifest.
func (s *Snapshot) Manifest() *unstructured.Unstructured {
	return s.manifest.DeepCopy()
}

// Capture reads the resource and returns its stripped user-intent shape.
// Returns (nil, nil) when the resource does not exist, a valid outcome
// signaling "nothing to restore".
func (c *Client) Capture(ctx context.Context, d Descriptor) (*Snapshot, error) {
	obj, err := c.Get(ctx, d)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}

	return &Snapshot{
		Descriptor: d,
		manifest:   StripRuntimeFields(obj),
	}, nil
}

// Restore re-applies the snapshot verbatim. A nil snapshot is a no-op: the
// resource did not pre-exist and should remain deleted (the guard handles
// the deletion).
func (c *Client) Restore(ctx context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return nil
	}
	return c.Apply(ctx, snapshot.Descriptor, snapshot.manifest)
}

// StripRuntimeFields returns a copy of the manifest with server-assigned
// metadata, the last-applied-configuration annotation and the status subtree
// removed. If stripping the annotation leaves the annotations map empty, the
// map key itself is removed so the result round-trips against a hand-authored
// manifest.
func StripRuntimeFields(obj *unstructured.Unstructured) *unstructured.Unstructured {
	stripped := obj.DeepCopy()

	for _, field := range strippedMetadataFields {
		unstructured.RemoveNestedField(stripped.Object, "metadata", field)
	}

	annotations := stripped.GetAnnotations()
	if annotations != nil {
		delete(annotations, lastAppliedAnnotation)
		if len(annotations) == 0 {
			unstructured.RemoveNestedField(stripped.Object, "metadata", "annotations")
		} else {
			stripped.SetAnnotations(annotations)
		}
	}

	unstructured.RemoveNestedField(stripped.Object, "status")

	return stripped
}
