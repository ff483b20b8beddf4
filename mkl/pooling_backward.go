// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

package mkl

import (
	"sync"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// PoolingBackward is the compiled gradient primitive matching a forward pooling
// configuration: it routes destination gradients back to the source positions the
// forward pass selected (max, through the recorded workspace) or spreads them over
// the window (average).
//
// Gradients flow through plain NCHW memories on both sides regardless of the forward
// destination order; the hosting framework converts before handing them in.
type PoolingBackward struct {
	engine  *Engine
	desc    PoolingDesc
	diffDst Layout
	diffSrc Layout
	ws      Layout // valid only for PoolingMax
	geom    poolGeometry
}

// PoolingBackwardFrom compiles the backward primitive for the same descriptor a
// forward primitive was compiled from.
func (e *Engine) PoolingBackwardFrom(desc PoolingDesc) (*PoolingBackward, error) {
	forward, err := e.PoolingForward(desc)
	if err != nil {
		return nil, err
	}
	dstShape := forward.dst.Shape()
	diffDst, err := NewLayout(dstShape, OrderNCHW)
	if err != nil {
		return nil, err
	}
	diffSrc, err := NewLayout(desc.Source.Shape(), OrderNCHW)
	if err != nil {
		return nil, err
	}
	p := &PoolingBackward{
		engine:  e,
		desc:    desc,
		diffDst: diffDst,
		diffSrc: diffSrc,
		ws:      forward.ws,
		geom:    forward.geom,
	}
	p.geom.blocked = false
	return p, nil
}

// DiffDstLayout returns the layout Execute expects for ResourceDiffDst.
func (p *PoolingBackward) DiffDstLayout() Layout { return p.diffDst }

// DiffSrcLayout returns the layout Execute writes through ResourceDiffSrc.
func (p *PoolingBackward) DiffSrcLayout() Layout { return p.diffSrc }

// WorkspaceLayout returns the workspace layout consumed by max-pooling gradients,
// and whether one is needed.
func (p *PoolingBackward) WorkspaceLayout() (Layout, bool) {
	return p.ws, p.desc.Algorithm == PoolingMax
}

// Execute accumulates nothing: ResourceDiffSrc is fully overwritten.
func (p *PoolingBackward) Execute(res *Resources) error {
	diffDst, err := res.require(ResourceDiffDst)
	if err != nil {
		return err
	}
	diffSrc, err := res.require(ResourceDiffSrc)
	if err != nil {
		return err
	}
	if !diffDst.Layout().Equal(p.diffDst) {
		return errors.Wrapf(ErrExecutionFailed, "diffDst layout %s, primitive compiled for %s",
			diffDst.Layout(), p.diffDst)
	}
	if !diffSrc.Layout().Equal(p.diffSrc) {
		return errors.Wrapf(ErrExecutionFailed, "diffSrc layout %s, primitive compiled for %s",
			diffSrc.Layout(), p.diffSrc)
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
		runBackward(p, flatOf[float32](diffDst.active), flatOf[float32](diffSrc.active), wsFlat)
	case dtypes.Float64:
		runBackward(p, flatOf[float64](diffDst.active), flatOf[float64](diffSrc.active), wsFlat)
	case dtypes.Float16:
		p.backwardFloat16(diffDst, diffSrc, wsFlat)
	default:
		return errors.Wrapf(ErrExecutionFailed, "no pooling kernels for dtype %s", p.desc.Source.Shape().DType)
	}
	return nil
}

// runBackward fans out per batch sample: gradients of different samples never touch
// the same diffSrc element, so samples are independent.
func runBackward[T poolFloats](p *PoolingBackward, diffDst, diffSrc []T, ws []int32) {
	var wg sync.WaitGroup
	for n := 0; n < p.geom.batch; n++ {
		wg.Add(1)
		work := func(n int) func() {
			return func() {
				backwardKernel(p, diffDst, diffSrc, ws, n)
				wg.Done()
			}
		}(n)
		if !p.engine.startWorker(work) {
			work()
		}
	}
	wg.Wait()
}

func backwardKernel[T poolFloats](p *PoolingBackward, diffDst, diffSrc []T, ws []int32, n int) {
	g := p.geom
	sampleLen := g.channels * g.inH * g.inW
	sample := diffSrc[n*sampleLen : (n+1)*sampleLen]
	for i := range sample {
		sample[i] = 0
	}
	for c := 0; c < g.channels; c++ {
		for oh := 0; oh < g.outH; oh++ {
			for ow := 0; ow < g.outW; ow++ {
				grad := diffDst[g.wsIndex(n, c, oh, ow)]
				if p.desc.Algorithm == PoolingMax {
					diffSrc[ws[g.wsIndex(n, c, oh, ow)]] += grad
					continue
				}
				spreadAvgGradient(g, diffSrc, grad, n, c, oh, ow)
			}
		}
	}
}

// spreadAvgGradient distributes one output gradient uniformly over the full window
// area; the share that falls on the zero border is dropped, mirroring the forward
// average convention.
func spreadAvgGradient[T poolFloats](g poolGeometry, diffSrc []T, grad T, n, c, oh, ow int) {
	share := grad / T(g.kernelH*g.kernelW)
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
			diffSrc[g.srcIndex(n, c, ih, iw)] += share
		}
	}
}

func (p *PoolingBackward) backwardFloat16(diffDst, diffSrc *Memory, ws []int32) {
	dstFlat := flatOf[float16.Float16](diffDst.active)
	srcFlat := flatOf[float16.Float16](diffSrc.active)
	dst32 := make([]float32, len(dstFlat))
	for i, v := range dstFlat {
		dst32[i] = v.Float32()
	}
	src32 := make([]float32, len(srcFlat))
	runBackward(p, dst32, src32, ws)
	for i, v := range src32 {
		srcFlat[i] = float16.Fromfloat32(v)
	}
}
