// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

package mkl

import (
	"sync"

	"github.com/x448/float16"
)

// poolGeometry is the fully-resolved iteration space of a compiled pooling
// primitive. All fields refer to the logical NCHW shape; blocked selects the
// nChw8c destination indexing.
type poolGeometry struct {
	batch, channels  int
	inH, inW         int
	outH, outW       int
	kernelH, kernelW int
	strideH, strideW int
	padT, padL       int
	blocked          bool
}

func (g poolGeometry) srcIndex(n, c, h, w int) int {
	return ((n*g.channels+c)*g.inH+h)*g.inW + w
}

// dstIndex maps a logical output position to its physical offset under the
// destination order.
func (g poolGeometry) dstIndex(n, c, oh, ow int) int {
	if g.blocked {
		cBlocks := g.channels / channelBlock
		cb, ci := c/channelBlock, c%channelBlock
		return (((n*cBlocks+cb)*g.outH+oh)*g.outW+ow)*channelBlock + ci
	}
	return ((n*g.channels+c)*g.outH+oh)*g.outW + ow
}

// wsIndex is the workspace offset for a logical output position: always plain NCHW
// ordered, independent of the destination order.
func (g poolGeometry) wsIndex(n, c, oh, ow int) int {
	return ((n*g.channels+c)*g.outH+oh)*g.outW + ow
}

type poolFloats interface {
	float32 | float64
}

// forwardKernel computes one batch sample.
func forwardKernel[T poolFloats](p *Pooling, src, dst []T, ws []int32, n int) {
	g := p.geom
	for c := 0; c < g.channels; c++ {
		for oh := 0; oh < g.outH; oh++ {
			for ow := 0; ow < g.outW; ow++ {
				if p.desc.Algorithm == PoolingMax {
					maxPoolWindow(g, src, dst, ws, n, c, oh, ow)
				} else {
					avgPoolWindow(g, src, dst, n, c, oh, ow)
				}
			}
		}
	}
}

// maxPoolWindow reduces one window to its maximum and records the winning source
// index. Out-of-bounds positions are skipped; pad < kernel guarantees at least one
// in-bounds candidate.
func maxPoolWindow[T poolFloats](g poolGeometry, src, dst []T, ws []int32, n, c, oh, ow int) {
	var best T
	bestIdx := -1
	for kh := 0; kh < g.kernelH; kh++ {
		ih := oh*g.strideH - g.padT + kh
		if ih < 0 || ih >= g.inH {
			continue
		}
		for kw := 0; kw < g.kernelW; kw++ {
			iw := ow*g.strideW - g.padL + kw
			if iw < 0 || iw >= g.inW {
				continue
			}
			idx := g.srcIndex(n, c, ih, iw)
			if bestIdx < 0 || src[idx] > best {
				best = src[idx]
				bestIdx = idx
			}
		}
	}
	dst[g.dstIndex(n, c, oh, ow)] = best
	if ws != nil {
		ws[g.wsIndex(n, c, oh, ow)] = int32(bestIdx)
	}
}

// avgPoolWindow averages one window over the full window area; the zero border
// contributes zeros to the sum.
func avgPoolWindow[T poolFloats](g poolGeometry, src, dst []T, n, c, oh, ow int) {
	var sum T
	for kh := 0; kh < g.kernelH; kh++ {
		ih := oh*g.strideH - g.padT + kh
		if ih < 0 || ih >= g.inH {
			continue
		}
		for kw := 0; kw < g.kernelW; kw++ {
			iw := ow*g.strideW - g.padL + kw
			if iw < 0 || iw >= g.inW {
				continue
			}
			sum += src[g.srcIndex(n, c, ih, iw)]
		}
	}
	dst[g.dstIndex(n, c, oh, ow)] = sum / T(g.kernelH*g.kernelW)
}

// runForward fans the per-sample kernel out over the engine workers and waits.
func runForward[T poolFloats](p *Pooling, src, dst []T, ws []int32) {
	var wg sync.WaitGroup
	for n := 0; n < p.geom.batch; n++ {
		wg.Add(1)
		work := func(n int) func() {
			return func() {
				forwardKernel(p, src, dst, ws, n)
				wg.Done()
			}
		}(n)
		if !p.engine.startWorker(work) {
			work()
		}
	}
	wg.Wait()
}

// forwardFloat16 converts through float32: the engine has no native half kernels.
func (p *Pooling) forwardFloat16(src, dst *Memory, ws []int32) {
	srcFlat := flatOf[float16.Float16](src.active)
	dstFlat := flatOf[float16.Float16](dst.active)
	src32 := make([]float32, len(srcFlat))
	for i, v := range srcFlat {
		src32[i] = v.Float32()
	}
	dst32 := make([]float32, len(dstFlat))
	runForward(p, src32, dst32, ws)
	for i, v := range dst32 {
		dstFlat[i] = float16.Fromfloat32(v)
	}
}
