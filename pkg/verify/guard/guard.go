// Package guard scopes resource mutations to a scenario: every resource a
// scenario touches is snapshotted before its first mutation and restored,
// best effort and in reverse order, when the scenario ends, whether it
// returned, failed, or panicked. Shared environments stay usable for the
// next scenario even after a crash mid-mutation.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/utils/clock"

	"maas-gateway-verifier/pkg/k8s/resource"
)

// Op is a mutation kind.
type Op string

const (
	// OpApply creates or updates the resource from a manifest.
	OpApply Op = "apply"

	// OpDelete removes the resource.
	OpDelete Op = "delete"
)

// Mutation is one resource change to perform before the scenario body runs.
type Mutation struct {
	Op         Op
	Descriptor resource.Descriptor

	// Manifest is required for OpApply and ignored for OpDelete.
	Manifest *unstructured.Unstructured
}

// Apply builds an OpApply mutation.
func Apply(d resource.Descriptor, manifest *unstructured.Unstructured) Mutation {
	return Mutation{Op: OpApply, Descriptor: d, Manifest: manifest}
}

// Delete builds an OpDelete mutation.
func Delete(d resource.Descriptor) Mutation {
	return Mutation{Op: OpDelete, Descriptor: d}
}

// Store is the resource backend the guard mutates and restores through.
// *resource.Client satisfies it.
type Store interface {
	Apply(ctx context.Context, d resource.Descriptor, manifest *unstructured.Unstructured) error
	Delete(ctx context.Context, d resource.Descriptor) error
	Capture(ctx context.Context, d resource.Descriptor) (*resource.Snapshot, error)
	Restore(ctx context.Context, snapshot *resource.Snapshot) error
}

// Options tune a Guard. Zero values select the defaults.
type Options struct {
	// ReconcileWait is slept twice per scenario: after the mutations land,
	// before the body runs, and again after restoration, so the control
	// plane converges before the next scenario starts. Zero skips both.
	ReconcileWait time.Duration

	// Clock is injected for tests; defaults to the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Guard executes scenario bodies with snapshot/restore bracketing.
type Guard struct {
	store         Store
	reconcileWait time.Duration
	clock         clock.Clock
	logger        *slog.Logger
}

// New creates a Guard over the given store.
func New(store Store, opts Options) *Guard {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		store:         store,
		reconcileWait: opts.ReconcileWait,
		clock:         clk,
		logger:        logger,
	}
}

type touchedResource struct {
	descriptor resource.Descriptor
	snapshot   *resource.Snapshot
}

// WithMutatedResources applies the mutations in order, waits for the
// configured reconcile head start, and runs body. Each distinct resource is
// snapshotted exactly once, immediately before its first mutation, so later
// mutations of the same resource do not overwrite the pristine state.
//
// Restoration runs in a defer, in reverse snapshot order, and is best
// effort: every failed restore is reported, none aborts the others. A
// resource that did not exist before the scenario is deleted on restore.
// Restore failures are aggregated with the body's (or failed mutation's)
// error; restoration alone failing still fails the scenario.
func (g *Guard) WithMutatedResources(ctx context.Context, mutations []Mutation, body func(ctx context.Context) error) (err error) {
	var touched []touchedResource
	seen := make(map[string]bool)

	defer func() {
		// The scenario may have been canceled or panicked; restoration
		// still has to run to completion.
		restoreCtx := context.WithoutCancel(ctx)
		var restoreErrs []error
		for i := len(touched) - 1; i >= 0; i-- {
			tr := touched[i]
			var rerr error
			if tr.snapshot == nil {
				rerr = g.store.Delete(restoreCtx, tr.descriptor)
			} else {
				rerr = g.store.Restore(restoreCtx, tr.snapshot)
			}
			if rerr != nil {
				g.logger.Error("failed to restore resource",
					"resource", tr.descriptor.String(), "error", rerr)
				restoreErrs = append(restoreErrs, &RestoreError{Descriptor: tr.descriptor, Err: rerr})
			} else {
				g.logger.Debug("restored resource", "resource", tr.descriptor.String())
			}
		}
		if len(restoreErrs) > 0 {
			if err != nil {
				err = utilerrors.NewAggregate(append([]error{err}, restoreErrs...))
			} else {
				err = utilerrors.NewAggregate(restoreErrs)
			}
		}

		// The next scenario must not start against a control plane still
		// converging back to the restored state.
		if g.reconcileWait > 0 && len(touched) > 0 {
			<-g.clock.After(g.reconcileWait)
		}
	}()

	for _, m := range mutations {
		key := m.Descriptor.String()
		if !seen[key] {
			snapshot, cerr := g.store.Capture(ctx, m.Descriptor)
			if cerr != nil {
				return &MutationError{Op: "capture", Descriptor: m.Descriptor, Err: cerr}
			}
			touched = append(touched, touchedResource{descriptor: m.Descriptor, snapshot: snapshot})
			seen[key] = true
		}

		var merr error
		switch m.Op {
		case OpApply:
			if m.Manifest == nil {
				merr = fmt.Errorf("apply mutation requires a manifest")
			} else {
				merr = g.store.Apply(ctx, m.Descriptor, m.Manifest)
			}
		case OpDelete:
			merr = g.store.Delete(ctx, m.Descriptor)
		default:
			merr = fmt.Errorf("unknown mutation op %q", m.Op)
		}
		if merr != nil {
			return &MutationError{Op: string(m.Op), Descriptor: m.Descriptor, Err: merr}
		}
		g.logger.Debug("mutated resource", "op", string(m.Op), "resource", key)
	}

	if g.reconcileWait > 0 && len(mutations) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.clock.After(g.reconcileWait):
		}
	}

	return body(ctx)
}

// MutationError reports a failed scenario setup mutation. The body never ran.
type MutationError struct {
	Op         string
	Descriptor resource.Descriptor
	Err        error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Descriptor.String(), e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// RestoreError reports one resource that could not be restored after a
// scenario. It usually travels inside an aggregate.
type RestoreError struct {
	Descriptor resource.Descriptor
	Err        error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("failed to restore %s: %v", e.Descriptor.String(), e.Err)
}

func (e *RestoreError) Unwrap() error {
	return e.Err
}
