// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

// Package operators implements the framework-side operator layer: operator
// definitions, the blob workspace they run against, and the type registry mapping
// operator type names to constructors.
//
// Operators are constructed once per graph build and invoked many times. The
// framework guarantees single-threaded invocation per operator instance, so
// operators keep per-instance cached state (compiled primitives, staging buffers)
// without locking.
//
// All construction problems -- unknown operator types, malformed arguments,
// unsupported geometry -- are reported at construction as ErrInvalidOperator, so
// they surface while the model is authored, never mid-run.
package operators

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidOperator flags a definition that cannot be built: unknown type,
	// wrong argument struct, or geometry the underlying engine rejects.
	ErrInvalidOperator = errors.New("invalid operator definition")

	// ErrNotImplemented is returned by declared-but-unimplemented execution paths.
	// It doesn't carry a stack; attach one with errors.Wrapf when returning it.
	ErrNotImplemented = errors.New("not implemented")
)

// OperatorDef declares one operator instance: the registered type to build, its
// position in the blob graph, and its typed arguments.
type OperatorDef struct {
	// Name identifies the instance in logs and errors. Optional.
	Name string

	// Type is the registered operator type, e.g. "MaxPool".
	Type string

	// Inputs and Outputs name workspace blobs, resolved positionally by the
	// operator at run time.
	Inputs  []string
	Outputs []string

	// Args is the operator-specific argument struct. Pooling operators take
	// ConvPoolArgs.
	Args any
}

// Operator is a runnable node bound to a workspace. Run executes one synchronous
// invocation; Close releases instance-owned resources (cached primitives and
// buffers). Blobs stay owned by the workspace.
type Operator interface {
	Run() error
	Close() error
}

// Constructor builds an operator from its definition, bound to the workspace.
type Constructor func(def *OperatorDef, ws *Workspace) (Operator, error)

var registeredConstructors = make(map[string]Constructor)

// Register the constructor under the given operator type name. Call it during
// package initialization; duplicate registrations are a programmer error and panic.
func Register(opType string, constructor Constructor) {
	if _, found := registeredConstructors[opType]; found {
		exceptions.Panicf("operators.Register(%q): duplicate registration", opType)
	}
	registeredConstructors[opType] = constructor
}

// CreateOperator builds the operator the definition's type names.
func CreateOperator(def *OperatorDef, ws *Workspace) (Operator, error) {
	constructor, found := registeredConstructors[def.Type]
	if !found {
		return nil, errors.Wrapf(ErrInvalidOperator, "no operator registered as %q", def.Type)
	}
	return constructor(def, ws)
}
