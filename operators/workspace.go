// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

package operators

import (
	"github.com/pkg/errors"
	"github.com/sundiego47/caffe2/mkl"
	"k8s.io/klog/v2"
)

// Workspace owns the named memories (blobs) that operators read and write, plus the
// engine they were allocated from. Operators borrow blob references for the duration
// of one invocation; the workspace keeps ownership.
type Workspace struct {
	engine *mkl.Engine
	blobs  map[string]*mkl.Memory
}

// NewWorkspace creates an empty workspace over the given engine.
func NewWorkspace(engine *mkl.Engine) *Workspace {
	return &Workspace{engine: engine, blobs: make(map[string]*mkl.Memory)}
}

// Engine the workspace allocates its blobs from.
func (w *Workspace) Engine() *mkl.Engine { return w.engine }

// Blob returns the named blob, if present.
func (w *Workspace) Blob(name string) (*mkl.Memory, bool) {
	m, found := w.blobs[name]
	return m, found
}

// SetBlob installs (or replaces) the named blob. The workspace takes ownership;
// a replaced blob is released back to the engine pools.
func (w *Workspace) SetBlob(name string, m *mkl.Memory) {
	if old, found := w.blobs[name]; found && old != m {
		old.Release()
	}
	w.blobs[name] = m
}

// Feed allocates a blob with the given layout, fills it from the flat slice and
// installs it under name. It is how callers hand inputs to a graph.
func (w *Workspace) Feed(name string, layout mkl.Layout, flat any) (*mkl.Memory, error) {
	m, err := w.engine.NewMemory(layout)
	if err != nil {
		return nil, errors.WithMessagef(err, "feeding blob %q", name)
	}
	if err := m.SetFlat(flat); err != nil {
		m.Release()
		return nil, errors.WithMessagef(err, "feeding blob %q", name)
	}
	w.SetBlob(name, m)
	return m, nil
}

// Close releases every blob. The workspace must not be used afterwards.
func (w *Workspace) Close() {
	klog.V(2).Infof("operators: closing workspace with %d blobs", len(w.blobs))
	for _, m := range w.blobs {
		m.Release()
	}
	w.blobs = nil
}
