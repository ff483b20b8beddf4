// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

package mkl

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/sundiego47/caffe2/types/shapes"
	"k8s.io/klog/v2"
)

// PoolingAlgorithm selects the window reduction of a pooling primitive.
type PoolingAlgorithm int

//go:generate go tool enumer -type=PoolingAlgorithm -trimprefix=Pooling -output=gen_poolingalgorithm_enumer.go pooling.go

const (
	// PoolingMax takes the maximum over each window. Padding never participates:
	// only in-bounds elements are candidates.
	PoolingMax PoolingAlgorithm = iota

	// PoolingAverage averages each window over the full window area, with the
	// zero border contributing zeros to the sum.
	PoolingAverage
)

// BorderMode selects how windows reaching past the input edge are handled.
type BorderMode int

const (
	// BorderZeros treats the (possibly asymmetric) padding region as zeros.
	// It is the only border mode this engine implements.
	BorderZeros BorderMode = iota
)

// PoolingDesc describes a pooling primitive to be compiled: "pool over source layout
// S with kernel K, strides R, pads P, algorithm A". All pairs are {height, width}.
type PoolingDesc struct {
	Algorithm PoolingAlgorithm
	Source    Layout
	Kernel    [2]int
	Strides   [2]int

	// PadsLow is the padding before the data (top, left); PadsHigh after it
	// (bottom, right). They may differ: the border convention is asymmetric.
	PadsLow  [2]int
	PadsHigh [2]int

	Border BorderMode
}

// Pooling is a compiled forward pooling primitive. It is bound to the exact source
// layout it was compiled for; feed it a different one and Execute fails. Compiling is
// the expensive step, Execute is cheap and repeatable.
type Pooling struct {
	engine *Engine
	desc   PoolingDesc
	dst    Layout
	ws     Layout // valid only for PoolingMax
	geom   poolGeometry
}

// PoolingForward compiles a forward pooling primitive from the descriptor.
//
// All validation happens here, never at Execute time: unsupported source orders,
// non-float dtypes, malformed kernel/stride/pad combinations and empty outputs are
// all reported as ErrInvalidDescriptor.
func (e *Engine) PoolingForward(desc PoolingDesc) (*Pooling, error) {
	if err := validatePoolingDesc(desc); err != nil {
		return nil, err
	}
	srcShape := desc.Source.Shape()
	outH, err := pooledDim(srcShape.Dim(2), desc.Kernel[0], desc.Strides[0], desc.PadsLow[0], desc.PadsHigh[0])
	if err != nil {
		return nil, errors.WithMessagef(err, "height axis of %s", desc.Source)
	}
	outW, err := pooledDim(srcShape.Dim(3), desc.Kernel[1], desc.Strides[1], desc.PadsLow[1], desc.PadsHigh[1])
	if err != nil {
		return nil, errors.WithMessagef(err, "width axis of %s", desc.Source)
	}

	dstShape := shapes.Make(srcShape.DType, srcShape.Dim(0), srcShape.Dim(1), outH, outW)
	dst, err := PreferredLayout(dstShape)
	if err != nil {
		return nil, err
	}
	p := &Pooling{engine: e, desc: desc, dst: dst}
	if desc.Algorithm == PoolingMax {
		// Argmax indices, one int32 per output element, always plain NCHW ordered.
		p.ws, err = NewLayout(shapes.Make(dtypes.Int32, dstShape.Dimensions...), OrderNCHW)
		if err != nil {
			return nil, err
		}
	}
	p.geom = poolGeometry{
		batch:    srcShape.Dim(0),
		channels: srcShape.Dim(1),
		inH:      srcShape.Dim(2),
		inW:      srcShape.Dim(3),
		outH:     outH,
		outW:     outW,
		kernelH:  desc.Kernel[0],
		kernelW:  desc.Kernel[1],
		strideH:  desc.Strides[0],
		strideW:  desc.Strides[1],
		padT:     desc.PadsLow[0],
		padL:     desc.PadsLow[1],
		blocked:  dst.Order() == OrderNChw8c,
	}
	klog.V(1).Infof("mkl: compiled %s pooling %s -> %s (kernel=%v strides=%v)",
		desc.Algorithm, desc.Source, dst, desc.Kernel, desc.Strides)
	return p, nil
}

// pooledDim applies the standard pooling output-size formula to one spatial axis.
// The formula floors: a kernel exceeding the padded input makes the quotient
// negative and is rejected, it never truncates up to a phantom output element.
func pooledDim(in, kernel, stride, padLow, padHigh int) (int, error) {
	span := in + padLow + padHigh - kernel
	if span < 0 {
		return 0, errors.Wrapf(ErrInvalidDescriptor,
			"kernel=%d exceeds the padded input: input=%d pads=%d+%d",
			kernel, in, padLow, padHigh)
	}
	return span/stride + 1, nil
}

func validatePoolingDesc(desc PoolingDesc) error {
	if !desc.Algorithm.IsAPoolingAlgorithm() {
		return errors.Wrapf(ErrInvalidDescriptor, "unknown pooling algorithm %d", desc.Algorithm)
	}
	if desc.Border != BorderZeros {
		return errors.Wrapf(ErrInvalidDescriptor, "unknown border mode %d", desc.Border)
	}
	if !desc.Source.Ok() {
		return errors.Wrapf(ErrInvalidDescriptor, "pooling source layout is uninitialized")
	}
	if desc.Source.Order() != OrderNCHW {
		return errors.Wrapf(ErrInvalidDescriptor, "pooling source must be %s ordered, got %s",
			OrderNCHW, desc.Source)
	}
	if !supportedPoolingDType(desc.Source.Shape().DType) {
		return errors.Wrapf(ErrInvalidDescriptor, "no pooling kernels for dtype %s", desc.Source.Shape().DType)
	}
	for axis := 0; axis < 2; axis++ {
		if desc.Kernel[axis] < 1 {
			return errors.Wrapf(ErrInvalidDescriptor, "kernel %v must be >= 1 on both axes", desc.Kernel)
		}
		if desc.Strides[axis] < 1 {
			return errors.Wrapf(ErrInvalidDescriptor, "strides %v must be >= 1 on both axes", desc.Strides)
		}
		if desc.PadsLow[axis] < 0 || desc.PadsHigh[axis] < 0 {
			return errors.Wrapf(ErrInvalidDescriptor, "pads %v/%v must be >= 0", desc.PadsLow, desc.PadsHigh)
		}
		// Every window must overlap the input, otherwise border zeros would be
		// pooled on their own.
		if desc.PadsLow[axis] >= desc.Kernel[axis] || desc.PadsHigh[axis] >= desc.Kernel[axis] {
			return errors.Wrapf(ErrInvalidDescriptor, "pads %v/%v must be smaller than kernel %v",
				desc.PadsLow, desc.PadsHigh, desc.Kernel)
		}
	}
	return nil
}

func supportedPoolingDType(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Float32, dtypes.Float64, dtypes.Float16:
		return true
	}
	return false
}

// DstLayout returns the engine-preferred destination layout the primitive was
// compiled to write.
func (p *Pooling) DstLayout() Layout { return p.dst }

// WorkspaceLayout returns the layout of the workspace the primitive requires, and
// whether it requires one at all (only max pooling does).
func (p *Pooling) WorkspaceLayout() (Layout, bool) {
	return p.ws, p.desc.Algorithm == PoolingMax
}

// Execute runs the compiled primitive over the resource table bindings: ResourceSrc
// and ResourceDst are required, ResourceWorkspace too for max pooling. It blocks
// until the destination (and workspace) are fully written.
func (p *Pooling) Execute(res *Resources) error {
	src, err := res.require(ResourceSrc)
	if err != nil {
		return err
	}
	dst, err := res.require(ResourceDst)
	if err != nil {
		return err
	}
	if !src.Layout().Equal(p.desc.Source) {
		return errors.Wrapf(ErrExecutionFailed, "src layout %s, primitive compiled for %s",
			src.Layout(), p.desc.Source)
	}
	if !dst.Layout().Equal(p.dst) {
		return errors.Wrapf(ErrExecutionFailed, "dst layout %s, primitive compiled for %s",
			dst.Layout(), p.dst)
	}
	var wsFlat []int32
	if p.desc.Algorithm == PoolingMax {
		ws, err := res.require(ResourceWorkspace)
		if err != nil {
			return err
		}
		if !ws.Layout().Equal(p.ws) {
			return errors.Wrapf(ErrExecutionFailed, "workspace layout %s, primitive compiled for %s",
				ws.Layout(), p.ws)
		}
		wsFlat = flatOf[int32](ws.active)
	}

	switch p.desc.Source.Shape().DType {
	case dtypes.Float32:
		runForward(p, flatOf[float32](src.active), flatOf[float32](dst.active), wsFlat)
	case dtypes.Float64:
		runForward(p, flatOf[float64](src.active), flatOf[float64](dst.active), wsFlat)
	case dtypes.Float16:
		p.forwardFloat16(src, dst, wsFlat)
	default:
		return errors.Wrapf(ErrExecutionFailed, "no pooling kernels for dtype %s", p.desc.Source.Shape().DType)
	}
	return nil
}
