// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

package operators

import (
	"github.com/pkg/errors"
	"github.com/sundiego47/caffe2/mkl"
	"github.com/sundiego47/caffe2/types/shapes"
	"k8s.io/klog/v2"
)

func init() {
	Register("MaxPool", newPoolOp(mkl.PoolingMax))
	Register("AveragePool", newPoolOp(mkl.PoolingAverage))
}

// PoolOp is the pooling operator: a thin adapter that compiles an mkl pooling
// primitive for the current input shape, executes it, and publishes the result as
// its output blob. Forward only; gradient operators live with the hosting framework.
//
// The compiled primitive, the staging destination and the workspace buffer are
// cached across invocations and rebuilt only when the input shape changes. The
// resource table is rebuilt every invocation, since blob addresses may change even
// when shapes don't.
//
// Input: X. Output: Y.
type PoolOp struct {
	def  *OperatorDef
	ws   *Workspace
	base convPoolBase
	algo mkl.PoolingAlgorithm

	cachedInputShape shapes.Shape
	primitive        *mkl.Pooling
	staging          *mkl.Memory // primitive destination, engine-preferred layout
	workspaceMem     *mkl.Memory // argmax workspace, max pooling only
	resources        mkl.Resources
}

// newPoolOp returns a constructor with the pooling variant fixed at registration
// time: whoever registers the operator type decides the algorithm, and nothing is
// inferred from type names at run time.
func newPoolOp(algo mkl.PoolingAlgorithm) Constructor {
	return func(def *OperatorDef, ws *Workspace) (Operator, error) {
		args, ok := def.Args.(ConvPoolArgs)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidOperator,
				"%s operator %q wants ConvPoolArgs, got %T", def.Type, def.Name, def.Args)
		}
		base, err := newConvPoolBase(args)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s operator %q", def.Type, def.Name)
		}
		if len(def.Inputs) != 1 || len(def.Outputs) != 1 {
			return nil, errors.Wrapf(ErrInvalidOperator,
				"%s operator %q takes one input and one output, got %d and %d",
				def.Type, def.Name, len(def.Inputs), len(def.Outputs))
		}
		return &PoolOp{def: def, ws: ws, base: base, algo: algo}, nil
	}
}

// Run executes one synchronous pooling invocation for the order the operator was
// defined with.
func (op *PoolOp) Run() error {
	if op.base.args.Order == mkl.OrderNHWC {
		return op.runNHWC()
	}
	return op.runNCHW()
}

// runNHWC is declared by the operator contract but intentionally unimplemented: it
// fails before touching any cached state, rather than producing wrong results.
func (op *PoolOp) runNHWC() error {
	return errors.Wrapf(ErrNotImplemented,
		"%s operator %q with %s order", op.def.Type, op.def.Name, mkl.OrderNHWC)
}

func (op *PoolOp) runNCHW() error {
	X, found := op.ws.Blob(op.def.Inputs[0])
	if !found {
		return errors.Wrapf(ErrInvalidOperator,
			"%s operator %q: input blob %q not in workspace", op.def.Type, op.def.Name, op.def.Inputs[0])
	}

	if op.shapeChanged(X.Shape()) {
		if err := op.rebuild(X); err != nil {
			// Forget the memo so the next invocation retries the rebuild.
			op.cachedInputShape = shapes.Invalid()
			return errors.WithMessagef(err, "%s operator %q", op.def.Type, op.def.Name)
		}
	}
	Y, found := op.ws.Blob(op.def.Outputs[0])
	if !found {
		return errors.Wrapf(ErrInvalidOperator,
			"%s operator %q: output blob %q vanished from workspace", op.def.Type, op.def.Name, op.def.Outputs[0])
	}

	// Try to share with the output: if Y's allocation already has the primitive's
	// preferred layout, the primitive writes straight into it and CopyTo is a
	// no-op. Rebind the resource table every time, addresses may have changed.
	op.staging.ShareFrom(Y)
	op.resources.Reset()
	op.resources.Set(mkl.ResourceSrc, X)
	op.resources.Set(mkl.ResourceDst, op.staging)
	if op.workspaceMem != nil {
		op.resources.Set(mkl.ResourceWorkspace, op.workspaceMem)
	}
	if err := op.primitive.Execute(&op.resources); err != nil {
		return errors.WithMessagef(err, "%s operator %q", op.def.Type, op.def.Name)
	}
	if err := op.staging.CopyTo(Y); err != nil {
		return errors.WithMessagef(err, "%s operator %q", op.def.Type, op.def.Name)
	}
	return nil
}

// shapeChanged compares the input shape against the remembered one and updates the
// memo. First invocation always reports a change.
func (op *PoolOp) shapeChanged(input shapes.Shape) bool {
	if op.cachedInputShape.Ok() && op.cachedInputShape.Equal(input) {
		return false
	}
	op.cachedInputShape = input.Clone()
	return true
}

// rebuild compiles the primitive for the new input shape and (re)allocates the
// output blob, the staging destination and the workspace buffer.
func (op *PoolOp) rebuild(X *mkl.Memory) error {
	op.releaseCached()

	desc := op.base.poolingDesc(op.algo, X.Layout())
	primitive, err := op.ws.Engine().PoolingForward(desc)
	if err != nil {
		return err
	}

	// The user-visible output is always plain NCHW; the staging destination uses
	// whatever the primitive prefers.
	outLayout, err := mkl.NewLayout(primitive.DstLayout().Shape(), mkl.OrderNCHW)
	if err != nil {
		return err
	}
	Y, err := op.ws.Engine().NewMemory(outLayout)
	if err != nil {
		return err
	}
	op.ws.SetBlob(op.def.Outputs[0], Y)

	op.staging, err = op.ws.Engine().NewMemory(primitive.DstLayout())
	if err != nil {
		return err
	}
	if wsLayout, needed := primitive.WorkspaceLayout(); needed {
		op.workspaceMem, err = op.ws.Engine().NewMemory(wsLayout)
		if err != nil {
			return err
		}
	}
	op.primitive = primitive
	klog.V(1).Infof("operators: %s %q rebuilt for input %s, output %s",
		op.def.Type, op.def.Name, X.Shape(), primitive.DstLayout().Shape())
	return nil
}

// releaseCached drops the shape-dependent cached state. Output blobs stay with the
// workspace.
func (op *PoolOp) releaseCached() {
	op.staging.Release()
	op.staging = nil
	op.workspaceMem.Release()
	op.workspaceMem = nil
	op.primitive = nil
}

// Close releases the cached primitive state. The operator must not run afterwards.
func (op *PoolOp) Close() error {
	op.releaseCached()
	op.cachedInputShape = shapes.Invalid()
	return nil
}
