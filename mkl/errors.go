// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

package mkl

import "github.com/pkg/errors"

var (
	// ErrInvalidDescriptor is returned when a primitive descriptor cannot be
	// compiled: unsupported layout, malformed kernel/stride/padding, or a dtype the
	// engine has no kernels for. It always indicates a configuration bug, never a
	// transient condition.
	ErrInvalidDescriptor = errors.New("invalid primitive descriptor")

	// ErrExecutionFailed is returned when a compiled primitive is fed a resource
	// table that doesn't match what it was compiled for: missing roles, or memories
	// whose layouts differ from the compiled ones.
	ErrExecutionFailed = errors.New("primitive execution failed")
)
