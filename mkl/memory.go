// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

package mkl

import (
	"reflect"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/sundiego47/caffe2/types/shapes"
	"github.com/x448/float16"
)

// Memory is a tensor-sized region with a definite Layout, backed by a pooled buffer.
//
// A Memory owns the buffer it was created with, but its active storage may
// temporarily alias another Memory's buffer after ShareFrom: that is how a staging
// destination avoids the final copy into an already layout-compatible output.
type Memory struct {
	engine *Engine
	layout Layout

	// own is the buffer allocated for this memory; active is what reads and writes
	// go through -- either own, or the sharing target's active buffer.
	own        *buffer
	active     *buffer
	sharedWith *Memory
}

// NewMemory allocates a Memory of the given layout from the engine's buffer pools.
func (e *Engine) NewMemory(layout Layout) (*Memory, error) {
	if !layout.Ok() {
		return nil, errors.Wrapf(ErrInvalidDescriptor, "NewMemory with an uninitialized layout")
	}
	buf := e.getBuffer(layout.shape.DType, layout.Size())
	m := &Memory{engine: e, layout: layout, own: buf, active: buf}
	return m, nil
}

// Layout of the memory.
func (m *Memory) Layout() Layout { return m.layout }

// Shape returns the logical NCHW shape. It implements shapes.HasShape.
func (m *Memory) Shape() shapes.Shape { return m.layout.shape }

// ShareFrom makes this memory's active storage alias other's, when the two layouts
// are identical, so that writes here land directly in other. It returns whether the
// aliasing took place; when it returns false the memory reverts to its own buffer
// and a later CopyTo is needed.
func (m *Memory) ShareFrom(other *Memory) bool {
	if other != nil && other != m && m.layout.Equal(other.layout) {
		m.active = other.active
		m.sharedWith = other
		return true
	}
	m.active = m.own
	m.sharedWith = nil
	return false
}

// SharesWith reports whether this memory's active storage currently aliases other's.
func (m *Memory) SharesWith(other *Memory) bool {
	return m.sharedWith == other && other != nil
}

// CopyTo moves this memory's contents into dst, converting between orders when
// needed. It is a no-op when the two already share storage.
func (m *Memory) CopyTo(dst *Memory) error {
	if dst == nil {
		return errors.Wrapf(ErrExecutionFailed, "CopyTo(nil)")
	}
	if m.SharesWith(dst) || dst.SharesWith(m) {
		return nil
	}
	if !m.layout.shape.Equal(dst.layout.shape) {
		return errors.Wrapf(ErrExecutionFailed, "CopyTo between different shapes: %s vs %s", m.layout, dst.layout)
	}
	if m.layout.order == dst.layout.order {
		copyFlat(dst.active.flat, m.active.flat)
		return nil
	}
	switch {
	case m.layout.order == OrderNChw8c && dst.layout.order == OrderNCHW:
		return convertOrder(dst, m, unpackDirection)
	case m.layout.order == OrderNCHW && dst.layout.order == OrderNChw8c:
		return convertOrder(dst, m, packDirection)
	}
	return errors.Wrapf(ErrExecutionFailed, "no conversion from %s to %s", m.layout, dst.layout)
}

type convertDirection int

const (
	packDirection convertDirection = iota
	unpackDirection
)

// convertOrder rearranges src into dst between plain NCHW and nChw8c.
func convertOrder(dst, src *Memory, direction convertDirection) error {
	shape := src.layout.shape
	batch, channels := shape.Dim(0), shape.Dim(1)
	height, width := shape.Dim(2), shape.Dim(3)
	switch shape.DType {
	case dtypes.Float32:
		convertOrderFlat(flatOf[float32](dst.active), flatOf[float32](src.active), direction, batch, channels, height, width)
	case dtypes.Float64:
		convertOrderFlat(flatOf[float64](dst.active), flatOf[float64](src.active), direction, batch, channels, height, width)
	case dtypes.Float16:
		convertOrderFlat(flatOf[float16.Float16](dst.active), flatOf[float16.Float16](src.active), direction, batch, channels, height, width)
	case dtypes.Int32:
		convertOrderFlat(flatOf[int32](dst.active), flatOf[int32](src.active), direction, batch, channels, height, width)
	default:
		return errors.Wrapf(ErrExecutionFailed, "no layout conversion kernels for dtype %s", shape.DType)
	}
	return nil
}

func convertOrderFlat[T any](dst, src []T, direction convertDirection, batch, channels, height, width int) {
	if direction == packDirection {
		packNChw8c(dst, src, batch, channels, height, width)
	} else {
		unpackNChw8c(dst, src, batch, channels, height, width)
	}
}

// SetFlat copies the given flat slice into the memory. The slice's element type and
// length must match the memory's dtype and size; the layout's order is taken as the
// order the values are already in.
func (m *Memory) SetFlat(flat any) error {
	if err := m.checkFlat(flat); err != nil {
		return err
	}
	copyFlat(m.active.flat, flat)
	return nil
}

// Flat returns the memory's active storage as a flat slice of the dtype's Go type.
// It is a view, not a copy: it stays valid until the memory is released or re-shared.
func (m *Memory) Flat() any {
	return m.active.flat
}

func (m *Memory) checkFlat(flat any) error {
	flatV := reflect.ValueOf(flat)
	if flatV.Kind() != reflect.Slice {
		return errors.Wrapf(ErrExecutionFailed, "flat data must be a slice, got %T", flat)
	}
	if flatV.Type().Elem() != m.layout.shape.DType.GoType() {
		return errors.Wrapf(ErrExecutionFailed, "flat data is %T, memory dtype is %s", flat, m.layout.shape.DType)
	}
	if flatV.Len() != m.layout.Size() {
		return errors.Wrapf(ErrExecutionFailed, "flat data has %d elements, layout %s needs %d",
			flatV.Len(), m.layout, m.layout.Size())
	}
	return nil
}

// Release returns the memory's own buffer to the engine pools. The memory must not
// be used afterwards; memories sharing its storage must be re-shared or released too.
func (m *Memory) Release() {
	if m == nil || m.own == nil {
		return
	}
	m.engine.putBuffer(m.own)
	m.own = nil
	m.active = nil
	m.sharedWith = nil
}
