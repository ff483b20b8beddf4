// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

package operators

import (
	"github.com/pkg/errors"
	"github.com/sundiego47/caffe2/mkl"
	"github.com/sundiego47/caffe2/types/shapes"
)

// ConvPoolArgs are the shared geometry arguments of convolution and pooling
// operators: kernel, strides, per-edge pads, dilation and memory order.
//
// Zero strides and dilations are normalized to 1 at construction, so the zero value
// plus a kernel is a valid non-strided configuration.
type ConvPoolArgs struct {
	// Order of the operator's input and output blobs: mkl.OrderNCHW or
	// mkl.OrderNHWC.
	Order mkl.Order

	KernelH, KernelW int
	StrideH, StrideW int

	// Per-edge pads: top/bottom pad the height axis, left/right the width axis.
	PadT, PadL, PadB, PadR int

	// DilationH and DilationW must be 1 (or 0, normalized to 1): dilated pooling
	// is not supported.
	DilationH, DilationW int

	// GlobalPooling pools each channel over its full spatial extent. Kernel,
	// strides and pads are ignored and may be left zero.
	GlobalPooling bool
}

// convPoolBase holds validated, normalized geometry shared by pooling operators.
// Validation is construction-time only: a built operator never re-checks geometry.
type convPoolBase struct {
	args ConvPoolArgs
}

func newConvPoolBase(args ConvPoolArgs) (convPoolBase, error) {
	if args.StrideH == 0 {
		args.StrideH = 1
	}
	if args.StrideW == 0 {
		args.StrideW = 1
	}
	if args.DilationH == 0 {
		args.DilationH = 1
	}
	if args.DilationW == 0 {
		args.DilationW = 1
	}

	if args.Order != mkl.OrderNCHW && args.Order != mkl.OrderNHWC {
		return convPoolBase{}, errors.Wrapf(ErrInvalidOperator, "unsupported storage order %s", args.Order)
	}
	if args.DilationH != 1 || args.DilationW != 1 {
		return convPoolBase{}, errors.Wrapf(ErrInvalidOperator,
			"pooling does not support dilation, got %dx%d", args.DilationH, args.DilationW)
	}
	if args.StrideH < 1 || args.StrideW < 1 {
		return convPoolBase{}, errors.Wrapf(ErrInvalidOperator,
			"strides must be >= 1, got %dx%d", args.StrideH, args.StrideW)
	}
	if args.PadT < 0 || args.PadL < 0 || args.PadB < 0 || args.PadR < 0 {
		return convPoolBase{}, errors.Wrapf(ErrInvalidOperator,
			"pads must be >= 0, got t=%d l=%d b=%d r=%d", args.PadT, args.PadL, args.PadB, args.PadR)
	}
	if !args.GlobalPooling {
		if args.KernelH < 1 || args.KernelW < 1 {
			return convPoolBase{}, errors.Wrapf(ErrInvalidOperator,
				"kernel must be >= 1, got %dx%d", args.KernelH, args.KernelW)
		}
		if args.PadT >= args.KernelH || args.PadB >= args.KernelH ||
			args.PadL >= args.KernelW || args.PadR >= args.KernelW {
			return convPoolBase{}, errors.Wrapf(ErrInvalidOperator,
				"pad should be smaller than kernel: kernel=%dx%d pads t=%d l=%d b=%d r=%d",
				args.KernelH, args.KernelW, args.PadT, args.PadL, args.PadB, args.PadR)
		}
	}
	return convPoolBase{args: args}, nil
}

// poolingDesc resolves the geometry against a concrete source layout. Global
// pooling takes the kernel from the source's spatial extent, with no stride and no
// padding.
func (b convPoolBase) poolingDesc(algo mkl.PoolingAlgorithm, source mkl.Layout) mkl.PoolingDesc {
	desc := mkl.PoolingDesc{
		Algorithm: algo,
		Source:    source,
		Border:    mkl.BorderZeros,
	}
	if b.args.GlobalPooling {
		desc.Kernel = [2]int{source.Shape().Dim(2), source.Shape().Dim(3)}
		desc.Strides = [2]int{1, 1}
		return desc
	}
	desc.Kernel = [2]int{b.args.KernelH, b.args.KernelW}
	desc.Strides = [2]int{b.args.StrideH, b.args.StrideW}
	desc.PadsLow = [2]int{b.args.PadT, b.args.PadL}
	desc.PadsHigh = [2]int{b.args.PadB, b.args.PadR}
	return desc
}

// outputDims applies the pooling output-size formula to a source shape, mirroring
// what the compiled primitive will produce. A dimension <= 0 means the kernel
// exceeds the padded input on that axis; the engine rejects such descriptors.
func (b convPoolBase) outputDims(src shapes.Shape) []int {
	if b.args.GlobalPooling {
		return []int{src.Dim(0), src.Dim(1), 1, 1}
	}
	outH := pooledExtent(src.Dim(2), b.args.KernelH, b.args.StrideH, b.args.PadT, b.args.PadB)
	outW := pooledExtent(src.Dim(3), b.args.KernelW, b.args.StrideW, b.args.PadL, b.args.PadR)
	return []int{src.Dim(0), src.Dim(1), outH, outW}
}

// pooledExtent floors the output-size quotient, matching the engine's formula even
// when the numerator is negative.
func pooledExtent(in, kernel, stride, padLow, padHigh int) int {
	span := in + padLow + padHigh - kernel
	if span < 0 {
		return (span-stride+1)/stride + 1
	}
	return span/stride + 1
}
