// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

// poolbench runs the pooling operator repeatedly over one input shape and reports
// throughput. It is a smoke-and-speed tool, not a rigorous benchmark harness.
//
// Example:
//
//	poolbench -batch=32 -channels=64 -size=112 -kernel=3 -stride=2 -algo=max -iters=200
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/sundiego47/caffe2/mkl"
	"github.com/sundiego47/caffe2/operators"
	"github.com/sundiego47/caffe2/types/shapes"
)

var (
	flagBatch    = flag.Int("batch", 32, "Batch size (N) of the input.")
	flagChannels = flag.Int("channels", 64, "Channels (C) of the input.")
	flagSize     = flag.Int("size", 112, "Spatial extent: the input is size x size.")
	flagKernel   = flag.Int("kernel", 2, "Square pooling kernel size.")
	flagStride   = flag.Int("stride", 2, "Stride on both spatial axes.")
	flagPad      = flag.Int("pad", 0, "Padding on every edge.")
	flagAlgo     = flag.String("algo", "max", "Pooling algorithm: max or average.")
	flagIters    = flag.Int("iters", 100, "Number of timed invocations.")
	flagParallel = flag.Int("parallelism", 0,
		fmt.Sprintf("Worker bound inside the engine; 0 takes $%s or the CPU count.", mkl.ParallelismEnvVar))
)

var titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if flag.NArg() > 0 {
		klog.Errorf("Unexpected arguments %q. See 'poolbench -help'.", flag.Args())
		os.Exit(1)
	}

	algo := must.M1(mkl.PoolingAlgorithmString(*flagAlgo))
	opType := "MaxPool"
	if algo == mkl.PoolingAverage {
		opType = "AveragePool"
	}

	engine := mkl.NewEngine(mkl.Options{MaxParallelism: *flagParallel})
	ws := operators.NewWorkspace(engine)
	defer ws.Close()

	op := must.M1(operators.CreateOperator(&operators.OperatorDef{
		Name:    "poolbench",
		Type:    opType,
		Inputs:  []string{"X"},
		Outputs: []string{"Y"},
		Args: operators.ConvPoolArgs{
			KernelH: *flagKernel, KernelW: *flagKernel,
			StrideH: *flagStride, StrideW: *flagStride,
			PadT: *flagPad, PadL: *flagPad, PadB: *flagPad, PadR: *flagPad,
		},
	}, ws))
	defer func() { must.M(op.Close()) }()

	inputShape := shapes.Make(dtypes.Float32, *flagBatch, *flagChannels, *flagSize, *flagSize)
	flat := make([]float32, inputShape.Size())
	for i := range flat {
		flat[i] = rand.Float32()
	}
	layout := must.M1(mkl.NewLayout(inputShape, mkl.OrderNCHW))
	must.M1(ws.Feed("X", layout, flat))

	// First run compiles the primitive; time it apart from the steady state.
	compileStart := time.Now()
	must.M(op.Run())
	compileElapsed := time.Since(compileStart)

	bar := progressbar.Default(int64(*flagIters), "pooling")
	start := time.Now()
	for range *flagIters {
		must.M(op.Run())
		_ = bar.Add(1)
	}
	elapsed := time.Since(start)
	_ = bar.Finish()

	Y, found := ws.Blob("Y")
	if !found {
		klog.Errorf("Output blob Y missing after run.")
		os.Exit(1)
	}
	report(Y.Shape(), inputShape, compileElapsed, elapsed)
}

func report(outShape, inputShape shapes.Shape, compileElapsed, elapsed time.Duration) {
	perIter := elapsed / time.Duration(*flagIters)
	bytesPerIter := inputShape.Memory() + outShape.Memory()
	bytesPerSec := float64(bytesPerIter) / perIter.Seconds()
	elementsPerSec := float64(inputShape.Size()) / perIter.Seconds()

	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		Row("input", inputShape.String()).
		Row("output", outShape.String()).
		Row("first run (compile)", compileElapsed.String()).
		Row("per iteration", perIter.String()).
		Row("elements/s", humanize.SIWithDigits(elementsPerSec, 1, "")).
		Row("memory traffic/s", humanize.Bytes(uint64(bytesPerSec)))
	fmt.Println(titleStyle.Render(fmt.Sprintf("%s %dx%d stride %d pad %d",
		*flagAlgo, *flagKernel, *flagKernel, *flagStride, *flagPad)))
	fmt.Println(table.Render())
}
