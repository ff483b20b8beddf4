// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

package mkl

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sundiego47/caffe2/types/shapes"
)

func TestNewLayout(t *testing.T) {
	shape := shapes.Make(dtypes.Float32, 2, 8, 4, 4)
	layout, err := NewLayout(shape, OrderNChw8c)
	require.NoError(t, err)
	assert.Equal(t, OrderNChw8c, layout.Order())
	assert.Equal(t, shape.Size(), layout.Size())
	assert.Equal(t, "(Float32)[2 8 4 4]@NChw8c", layout.String())

	// Blocking requires channels divisible by the block size.
	_, err = NewLayout(shapes.Make(dtypes.Float32, 2, 3, 4, 4), OrderNChw8c)
	require.ErrorIs(t, err, ErrInvalidDescriptor)

	// Layouts are rank-4 only.
	_, err = NewLayout(shapes.Make(dtypes.Float32, 2, 3), OrderNCHW)
	require.ErrorIs(t, err, ErrInvalidDescriptor)

	_, err = NewLayout(shape, Order(42))
	require.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestPreferredLayout(t *testing.T) {
	blocked, err := PreferredLayout(shapes.Make(dtypes.Float32, 1, 16, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, OrderNChw8c, blocked.Order())

	plain, err := PreferredLayout(shapes.Make(dtypes.Float32, 1, 3, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, OrderNCHW, plain.Order())
}

func TestLayoutEqual(t *testing.T) {
	shape := shapes.Make(dtypes.Float32, 1, 8, 2, 2)
	a, err := NewLayout(shape, OrderNCHW)
	require.NoError(t, err)
	b, err := NewLayout(shape, OrderNCHW)
	require.NoError(t, err)
	c, err := NewLayout(shape, OrderNChw8c)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(Layout{}))
}

// Packing to nChw8c and unpacking back must be the identity.
func TestBlockedConversionRoundTrip(t *testing.T) {
	dims := []int{2, 16, 3, 5}
	size := 2 * 16 * 3 * 5
	flat := make([]float32, size)
	for i := range flat {
		flat[i] = float32(i) * 0.5
	}
	plain := newTestMemory(t, dtypes.Float32, dims, OrderNCHW, flat)
	blocked := newTestMemory(t, dtypes.Float32, dims, OrderNChw8c, nil)
	back := newTestMemory(t, dtypes.Float32, dims, OrderNCHW, nil)
	defer plain.Release()
	defer blocked.Release()
	defer back.Release()

	require.NoError(t, plain.CopyTo(blocked))
	require.NotEqual(t, flat, blocked.Flat().([]float32))
	require.NoError(t, blocked.CopyTo(back))
	require.Equal(t, flat, back.Flat().([]float32))
}

// A single spatial position with 8 channels blocks into itself: nChw8c's innermost
// axis is the channel group.
func TestBlockedConversionSingleBlock(t *testing.T) {
	dims := []int{1, 8, 1, 1}
	flat := []float32{0, 1, 2, 3, 4, 5, 6, 7}
	plain := newTestMemory(t, dtypes.Float32, dims, OrderNCHW, flat)
	blocked := newTestMemory(t, dtypes.Float32, dims, OrderNChw8c, nil)
	defer plain.Release()
	defer blocked.Release()

	require.NoError(t, plain.CopyTo(blocked))
	assert.Equal(t, flat, blocked.Flat().([]float32))
}

func TestMemoryShareFrom(t *testing.T) {
	dims := []int{1, 1, 2, 2}
	a := newTestMemory(t, dtypes.Float32, dims, OrderNCHW, []float32{1, 2, 3, 4})
	b := newTestMemory(t, dtypes.Float32, dims, OrderNCHW, nil)
	defer a.Release()
	defer b.Release()

	require.True(t, b.ShareFrom(a))
	require.True(t, b.SharesWith(a))
	// Writes through b land in a.
	require.NoError(t, b.SetFlat([]float32{5, 6, 7, 8}))
	assert.Equal(t, []float32{5, 6, 7, 8}, a.Flat().([]float32))
	// CopyTo between sharing memories is a no-op.
	require.NoError(t, b.CopyTo(a))

	// Incompatible layouts refuse to share and revert to owned storage.
	blocked := newTestMemory(t, dtypes.Float32, []int{1, 8, 2, 2}, OrderNChw8c, nil)
	defer blocked.Release()
	require.False(t, blocked.ShareFrom(a))
	require.False(t, blocked.SharesWith(a))
}

func TestMemorySetFlatChecks(t *testing.T) {
	m := newTestMemory(t, dtypes.Float32, []int{1, 1, 2, 2}, OrderNCHW, nil)
	defer m.Release()

	err := m.SetFlat([]float64{1, 2, 3, 4})
	require.ErrorIs(t, err, ErrExecutionFailed)
	err = m.SetFlat([]float32{1, 2})
	require.ErrorIs(t, err, ErrExecutionFailed)
	err = m.SetFlat("not a slice")
	require.ErrorIs(t, err, ErrExecutionFailed)
	require.NoError(t, m.SetFlat([]float32{1, 2, 3, 4}))
}

func TestCopyToMismatchedShapes(t *testing.T) {
	a := newTestMemory(t, dtypes.Float32, []int{1, 1, 2, 2}, OrderNCHW, nil)
	b := newTestMemory(t, dtypes.Float32, []int{1, 1, 4, 4}, OrderNCHW, nil)
	defer a.Release()
	defer b.Release()
	err := a.CopyTo(b)
	require.True(t, errors.Is(err, ErrExecutionFailed))
}
