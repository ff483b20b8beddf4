// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

package mkl

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sundiego47/caffe2/types/shapes"
	"github.com/x448/float16"
)

// iotaFloats returns 1, 2, 3, ... as a flat slice.
func iotaFloats(size int) []float32 {
	flat := make([]float32, size)
	for i := range flat {
		flat[i] = float32(i + 1)
	}
	return flat
}

// compileForward builds src memory, primitive, dst and workspace memories and runs
// the forward pass once.
func compileForward(t *testing.T, algo PoolingAlgorithm, srcDims []int, srcFlat any,
	kernel, strides, padsLow, padsHigh [2]int) (*Pooling, *Resources) {
	t.Helper()
	dtype := dtypes.Float32
	switch srcFlat.(type) {
	case []float64:
		dtype = dtypes.Float64
	case []float16.Float16:
		dtype = dtypes.Float16
	}
	src := newTestMemory(t, dtype, srcDims, OrderNCHW, srcFlat)
	t.Cleanup(src.Release)

	primitive, err := testEngine.PoolingForward(PoolingDesc{
		Algorithm: algo,
		Source:    src.Layout(),
		Kernel:    kernel,
		Strides:   strides,
		PadsLow:   padsLow,
		PadsHigh:  padsHigh,
		Border:    BorderZeros,
	})
	require.NoError(t, err)

	dst, err := testEngine.NewMemory(primitive.DstLayout())
	require.NoError(t, err)
	t.Cleanup(dst.Release)

	var res Resources
	res.Set(ResourceSrc, src)
	res.Set(ResourceDst, dst)
	if wsLayout, needed := primitive.WorkspaceLayout(); needed {
		ws, err := testEngine.NewMemory(wsLayout)
		require.NoError(t, err)
		t.Cleanup(ws.Release)
		res.Set(ResourceWorkspace, ws)
	}
	require.NoError(t, primitive.Execute(&res))
	return primitive, &res
}

func TestMaxPoolForward(t *testing.T) {
	// 4x4 input of 1..16, 2x2 kernel, stride 2: each output is the max of its
	// non-overlapping block.
	primitive, res := compileForward(t, PoolingMax, []int{1, 1, 4, 4}, iotaFloats(16),
		[2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0}, [2]int{0, 0})

	require.Equal(t, []int{1, 1, 2, 2}, primitive.DstLayout().Shape().Dimensions)
	assert.Equal(t, []float32{6, 8, 14, 16}, res.Get(ResourceDst).Flat().([]float32))
	assert.Equal(t, []int32{5, 7, 13, 15}, res.Get(ResourceWorkspace).Flat().([]int32))
}

func TestAveragePoolForward(t *testing.T) {
	_, res := compileForward(t, PoolingAverage, []int{1, 1, 4, 4}, iotaFloats(16),
		[2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0}, [2]int{0, 0})
	assert.Equal(t, []float32{3.5, 5.5, 11.5, 13.5}, res.Get(ResourceDst).Flat().([]float32))
	// No workspace for average pooling.
	assert.Nil(t, res.Get(ResourceWorkspace))
}

func TestMaxPoolForwardPadded(t *testing.T) {
	// 3x3 kernel with stride 2 and a one-element border on every side. Border
	// zeros never win the max over the in-bounds elements here.
	_, res := compileForward(t, PoolingMax, []int{1, 1, 4, 4}, iotaFloats(16),
		[2]int{3, 3}, [2]int{2, 2}, [2]int{1, 1}, [2]int{1, 1})
	assert.Equal(t, []float32{6, 8, 14, 16}, res.Get(ResourceDst).Flat().([]float32))
}

func TestAveragePoolForwardPadded(t *testing.T) {
	// The border contributes zeros to the sum and the divisor stays the full
	// window area.
	_, res := compileForward(t, PoolingAverage, []int{1, 1, 2, 2}, []float32{1, 2, 3, 4},
		[2]int{2, 2}, [2]int{2, 2}, [2]int{1, 1}, [2]int{1, 1})
	assert.Equal(t, []float32{0.25, 0.5, 0.75, 1}, res.Get(ResourceDst).Flat().([]float32))
}

func TestMaxPoolForwardMultiChannelBatch(t *testing.T) {
	// 2 samples x 2 channels of 2x2, global-sized kernel: one max per plane.
	flat := []float32{
		1, 2, 3, 4, // n0 c0
		8, 7, 6, 5, // n0 c1
		-4, -3, -2, -1, // n1 c0
		0, 0, 9, 0, // n1 c1
	}
	_, res := compileForward(t, PoolingMax, []int{2, 2, 2, 2}, flat,
		[2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0}, [2]int{0, 0})
	assert.Equal(t, []float32{4, 8, -1, 9}, res.Get(ResourceDst).Flat().([]float32))
}

func TestMaxPoolForwardAllNegative(t *testing.T) {
	// Padding never participates in a max: an all-negative window next to the
	// border must keep its own maximum, not pick up a border zero.
	_, res := compileForward(t, PoolingMax, []int{1, 1, 2, 2}, []float32{-8, -7, -6, -5},
		[2]int{2, 2}, [2]int{1, 1}, [2]int{1, 1}, [2]int{0, 0})
	dst := res.Get(ResourceDst).Flat().([]float32)
	for _, v := range dst {
		assert.Negative(t, v)
	}
}

func TestMaxPoolForwardFloat64(t *testing.T) {
	flat := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	_, res := compileForward(t, PoolingMax, []int{1, 1, 4, 4}, flat,
		[2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0}, [2]int{0, 0})
	assert.Equal(t, []float64{6, 8, 14, 16}, res.Get(ResourceDst).Flat().([]float64))
}

func TestMaxPoolForwardFloat16(t *testing.T) {
	flat := make([]float16.Float16, 16)
	for i := range flat {
		flat[i] = float16.Fromfloat32(float32(i + 1))
	}
	_, res := compileForward(t, PoolingMax, []int{1, 1, 4, 4}, flat,
		[2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0}, [2]int{0, 0})
	dst := res.Get(ResourceDst).Flat().([]float16.Float16)
	got := make([]float32, len(dst))
	for i, v := range dst {
		got[i] = v.Float32()
	}
	assert.Equal(t, []float32{6, 8, 14, 16}, got)
}

// With a channel count divisible by the block size the primitive prefers a blocked
// destination; unpacking it must match the plain per-channel maxima.
func TestMaxPoolForwardBlockedDestination(t *testing.T) {
	dims := []int{1, 8, 2, 2}
	flat := make([]float32, 8*4)
	for c := 0; c < 8; c++ {
		for i := 0; i < 4; i++ {
			flat[c*4+i] = float32(c*10 + i)
		}
	}
	primitive, res := compileForward(t, PoolingMax, dims, flat,
		[2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0}, [2]int{0, 0})
	require.Equal(t, OrderNChw8c, primitive.DstLayout().Order())

	plain := newTestMemory(t, dtypes.Float32, []int{1, 8, 1, 1}, OrderNCHW, nil)
	defer plain.Release()
	require.NoError(t, res.Get(ResourceDst).CopyTo(plain))
	assert.Equal(t, []float32{3, 13, 23, 33, 43, 53, 63, 73}, plain.Flat().([]float32))
}

func TestPoolingForwardDescriptorErrors(t *testing.T) {
	f32 := shapes.Make(dtypes.Float32, 1, 1, 4, 4)
	nchw, err := NewLayout(f32, OrderNCHW)
	require.NoError(t, err)
	nhwc, err := NewLayout(f32, OrderNHWC)
	require.NoError(t, err)
	i32, err := NewLayout(shapes.Make(dtypes.Int32, 1, 1, 4, 4), OrderNCHW)
	require.NoError(t, err)

	valid := PoolingDesc{
		Algorithm: PoolingMax,
		Source:    nchw,
		Kernel:    [2]int{2, 2},
		Strides:   [2]int{2, 2},
	}

	testCases := []struct {
		name   string
		mutate func(desc *PoolingDesc)
	}{
		{"pad >= kernel", func(desc *PoolingDesc) { desc.PadsLow = [2]int{2, 0} }},
		{"high pad >= kernel", func(desc *PoolingDesc) { desc.PadsHigh = [2]int{0, 3} }},
		{"negative pad", func(desc *PoolingDesc) { desc.PadsLow = [2]int{-1, 0} }},
		{"zero kernel", func(desc *PoolingDesc) { desc.Kernel = [2]int{0, 2} }},
		{"zero stride", func(desc *PoolingDesc) { desc.Strides = [2]int{2, 0} }},
		{"kernel larger than input", func(desc *PoolingDesc) { desc.Kernel = [2]int{5, 5} }},
		{"NHWC source", func(desc *PoolingDesc) { desc.Source = nhwc }},
		{"non-float dtype", func(desc *PoolingDesc) { desc.Source = i32 }},
		{"unknown algorithm", func(desc *PoolingDesc) { desc.Algorithm = PoolingAlgorithm(7) }},
		{"unknown border mode", func(desc *PoolingDesc) { desc.Border = BorderMode(7) }},
		{"uninitialized source", func(desc *PoolingDesc) { desc.Source = Layout{} }},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			desc := valid
			testCase.mutate(&desc)
			_, err := testEngine.PoolingForward(desc)
			require.ErrorIs(t, err, ErrInvalidDescriptor)
		})
	}

	// The unmutated descriptor compiles.
	_, err = testEngine.PoolingForward(valid)
	require.NoError(t, err)
}

func TestPoolingExecuteResourceErrors(t *testing.T) {
	src := newTestMemory(t, dtypes.Float32, []int{1, 1, 4, 4}, OrderNCHW, iotaFloats(16))
	defer src.Release()
	primitive, err := testEngine.PoolingForward(PoolingDesc{
		Algorithm: PoolingMax,
		Source:    src.Layout(),
		Kernel:    [2]int{2, 2},
		Strides:   [2]int{2, 2},
	})
	require.NoError(t, err)
	dst, err := testEngine.NewMemory(primitive.DstLayout())
	require.NoError(t, err)
	defer dst.Release()

	var res Resources
	// Nothing bound.
	require.ErrorIs(t, primitive.Execute(&res), ErrExecutionFailed)

	// Max pooling without a workspace.
	res.Set(ResourceSrc, src)
	res.Set(ResourceDst, dst)
	require.ErrorIs(t, primitive.Execute(&res), ErrExecutionFailed)

	// Source layout differing from the compiled one.
	wsLayout, _ := primitive.WorkspaceLayout()
	ws, err := testEngine.NewMemory(wsLayout)
	require.NoError(t, err)
	defer ws.Release()
	res.Set(ResourceWorkspace, ws)
	other := newTestMemory(t, dtypes.Float32, []int{1, 1, 8, 8}, OrderNCHW, nil)
	defer other.Release()
	res.Set(ResourceSrc, other)
	require.ErrorIs(t, primitive.Execute(&res), ErrExecutionFailed)

	res.Set(ResourceSrc, src)
	require.NoError(t, primitive.Execute(&res))
}
