// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

package mkl

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sundiego47/caffe2/types/shapes"
)

// Order is the physical arrangement of a rank-4 tensor in memory.
//
// The logical shape of a Layout is always given in NCHW axis order (batch, channels,
// height, width); Order says how those elements are laid out.
type Order int

//go:generate go tool enumer -type=Order -trimprefix=Order -output=gen_order_enumer.go layout.go

const (
	// OrderNCHW is the plain row-major batch/channels/height/width arrangement used
	// by user-visible memories.
	OrderNCHW Order = iota

	// OrderNHWC is declared for completeness of the public contract but no primitive
	// in this engine accepts it.
	OrderNHWC

	// OrderNChw8c blocks the channel axis in groups of 8: the innermost axis holds 8
	// consecutive channels of one spatial position. It is the engine-preferred
	// destination arrangement when the channel count allows it.
	OrderNChw8c
)

// channelBlock is the channel group size of OrderNChw8c.
const channelBlock = 8

// Layout describes the memory arrangement of a rank-4 tensor: its logical NCHW shape
// plus the physical Order. Layouts are values; two memories are layout-compatible,
// and thus may alias each other's storage, iff their Layouts are Equal.
type Layout struct {
	shape shapes.Shape
	order Order
}

// NewLayout builds a Layout for the given logical NCHW shape and order.
func NewLayout(shape shapes.Shape, order Order) (Layout, error) {
	if shape.Rank() != 4 {
		return Layout{}, errors.Wrapf(ErrInvalidDescriptor, "layouts are rank-4 only, got shape %s", shape)
	}
	if !order.IsAOrder() {
		return Layout{}, errors.Wrapf(ErrInvalidDescriptor, "unknown memory order %d", order)
	}
	if order == OrderNChw8c && shape.Dim(1)%channelBlock != 0 {
		return Layout{}, errors.Wrapf(ErrInvalidDescriptor,
			"%s requires channels divisible by %d, got shape %s", order, channelBlock, shape)
	}
	return Layout{shape: shape.Clone(), order: order}, nil
}

// PreferredLayout returns the engine-preferred layout for a destination of the given
// logical NCHW shape: channel-blocked when the channel count is a multiple of the
// block size, plain NCHW otherwise.
func PreferredLayout(shape shapes.Shape) (Layout, error) {
	if shape.Rank() == 4 && shape.Dim(1)%channelBlock == 0 {
		return NewLayout(shape, OrderNChw8c)
	}
	return NewLayout(shape, OrderNCHW)
}

// Shape returns the logical NCHW shape.
func (l Layout) Shape() shapes.Shape { return l.shape }

// Order returns the physical arrangement.
func (l Layout) Order() Order { return l.order }

// Ok returns whether the layout was properly initialized through NewLayout.
func (l Layout) Ok() bool { return l.shape.Ok() }

// Size returns the number of elements a memory of this layout holds. Blocking never
// pads (the channel count is already a block multiple), so this equals the logical
// shape size for every order.
func (l Layout) Size() int { return l.shape.Size() }

// Equal reports whether two layouts describe the same arrangement: same logical
// shape, dtype and order.
func (l Layout) Equal(other Layout) bool {
	return l.order == other.order && l.shape.Equal(other.shape)
}

// String implements fmt.Stringer.
func (l Layout) String() string {
	return fmt.Sprintf("%s@%s", l.shape, l.order)
}

// packNChw8c rearranges a plain NCHW flat slice into nChw8c blocking.
// Both slices must have the full layout size.
func packNChw8c[T any](dst, src []T, batch, channels, height, width int) {
	cBlocks := channels / channelBlock
	for n := 0; n < batch; n++ {
		for c := 0; c < channels; c++ {
			cb, ci := c/channelBlock, c%channelBlock
			for h := 0; h < height; h++ {
				plain := ((n*channels+c)*height + h) * width
				blocked := ((((n*cBlocks+cb)*height+h)*width)*channelBlock + ci)
				for w := 0; w < width; w++ {
					dst[blocked+w*channelBlock] = src[plain+w]
				}
			}
		}
	}
}

// unpackNChw8c is the inverse of packNChw8c.
func unpackNChw8c[T any](dst, src []T, batch, channels, height, width int) {
	cBlocks := channels / channelBlock
	for n := 0; n < batch; n++ {
		for c := 0; c < channels; c++ {
			cb, ci := c/channelBlock, c%channelBlock
			for h := 0; h < height; h++ {
				plain := ((n*channels+c)*height + h) * width
				blocked := ((((n*cBlocks+cb)*height+h)*width)*channelBlock + ci)
				for w := 0; w < width; w++ {
					dst[plain+w] = src[blocked+w*channelBlock]
				}
			}
		}
	}
}
