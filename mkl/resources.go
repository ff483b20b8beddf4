// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

package mkl

import "github.com/pkg/errors"

// Resource is the logical role a memory plays in a primitive execution. The set is
// closed: a Resources table has exactly one fixed slot per role.
type Resource int

//go:generate go tool enumer -type=Resource -trimprefix=Resource -output=gen_resource_enumer.go resources.go

const (
	// ResourceSrc is the primitive's input.
	ResourceSrc Resource = iota

	// ResourceDst is the primitive's output.
	ResourceDst

	// ResourceWorkspace holds per-element selection state recorded by a forward
	// primitive (argmax indices for max pooling) and consumed by the matching
	// backward primitive.
	ResourceWorkspace

	// ResourceDiffDst is the gradient w.r.t. the forward output, input to a
	// backward primitive.
	ResourceDiffDst

	// ResourceDiffSrc is the gradient w.r.t. the forward input, output of a
	// backward primitive.
	ResourceDiffSrc
)

// numResources is the size of a Resources table.
const numResources = int(ResourceDiffSrc) + 1

// Resources is the fixed-size, role-indexed table binding memories into one primitive
// execution. Memory addresses may change between invocations even when shapes don't,
// so callers rebuild the bindings before every Execute.
type Resources struct {
	table [numResources]*Memory
}

// Set binds the memory to the given role, replacing any previous binding.
func (r *Resources) Set(role Resource, m *Memory) {
	r.table[role] = m
}

// Get returns the memory bound to the role, or nil.
func (r *Resources) Get(role Resource) *Memory {
	return r.table[role]
}

// Reset clears all bindings.
func (r *Resources) Reset() {
	r.table = [numResources]*Memory{}
}

// require returns the memory bound to the role or an ErrExecutionFailed if absent.
func (r *Resources) require(role Resource) (*Memory, error) {
	m := r.table[role]
	if m == nil {
		return nil, errors.Wrapf(ErrExecutionFailed, "no memory bound for resource %s", role)
	}
	return m, nil
}
