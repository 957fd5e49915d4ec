package resource

import (
	"context"
	"fmt"
	"log/slog"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/dynamic"
)

// Client performs primitive apply/get/delete operations against the
// declarative store. All operations are idempotent: apply is an upsert,
// delete treats "already absent" as success.
type Client struct {
	dynamicClient dynamic.Interface
	logger        *slog.Logger
}

// NewClient creates a resource client on top of a dynamic Kubernetes client.
func NewClient(dynamicClient dynamic.Interface, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		dynamicClient: dynamicClient,
		logger:        logger.With("component", "resource-client"),
	}
}

// Apply upserts the manifest under the given descriptor. The manifest's own
// metadata (name, namespace) is aligned with the descriptor before the write
// so callers cannot accidentally apply under a different key.
func (c *Client) Apply(ctx context.Context, d Descriptor, manifest *unstructured.Unstructured) error {
	if manifest == nil {
		return &OperationError{Op: "apply", Descriptor: d, Err: fmt.Errorf("nil manifest")}
	}

	obj := manifest.DeepCopy()
	obj.SetName(d.Name)
	obj.SetNamespace(d.Namespace)

	iface := c.dynamicClient.Resource(d.GVR).Namespace(d.Namespace)

	_, err := iface.Create(ctx, obj, metav1.CreateOptions{})
	if err == nil {
		c.logger.Debug("resource created", "resource", d.String())
		return nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return &OperationError{Op: "apply", Descriptor: d, Err: err}
	}

	// Update path: the store requires the current resourceVersion.
	existing, err := iface.Get(ctx, d.Name, metav1.GetOptions{})
	if err != nil {
		return &OperationError{Op: "apply", Descriptor: d, Err: err}
	}
	obj.SetResourceVersion(existing.GetResourceVersion())
	if _, err := iface.Update(ctx, obj, metav1.UpdateOptions{}); err != nil {
		return &OperationError{Op: "apply", Descriptor: d, Err: err}
	}
	c.logger.Debug("resource updated", "resource", d.String())
	return nil
}

// Get fetches the manifest for the descriptor. A missing resource is
// reported as (nil, nil): "not found" is an observation, not a failure.
func (c *Client) Get(ctx context.Context, d Descriptor) (*unstructured.Unstructured, error) {
	obj, err := c.dynamicClient.Resource(d.GVR).Namespace(d.Namespace).Get(ctx, d.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &OperationError{Op: "get", Descriptor: d, Err: err}
	}
	return obj, nil
}

// Delete removes the resource. Deleting an absent resource is a success.
func (c *Client) Delete(ctx context.Context, d Descriptor) error {
	err := c.dynamicClient.Resource(d.GVR).Namespace(d.Namespace).Delete(ctx, d.Name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return &OperationError{Op: "delete", Descriptor: d, Err: err}
	}
	c.logger.Debug("resource deleted", "resource", d.String())
	return nil
}

// Exists reports whether the resource currently exists in the store.
func (c *Client) Exists(ctx context.Context, d Descriptor) (bool, error) {
	obj, err := c.Get(ctx, d)
	if err != nil {
		return false, err
	}
	return obj != nil, nil
}

// OperationError wraps a failed store operation with its descriptor so the
// failing resource is always identifiable from the message alone.
type OperationError struct {
	Op         string
	Descriptor Descriptor
	Err        error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Descriptor.String(), e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
