// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

// Package mkl implements a small, pure-Go rendition of the MKL-DNN primitive API
// surface needed by the operators layer: memory layouts, pooled buffers, role-indexed
// resource tables and compiled pooling primitives.
//
// The package mirrors the shape of the vendor API it stands in for: a primitive is
// created ("compiled") once per configuration and input shape, is expensive to build
// and cheap to execute, and is fed its inputs and outputs through a Resources table
// rebuilt by the caller on every invocation. Unlike the vendor API, every entry point
// returns an error instead of aborting: descriptor validation failures are reported
// as ErrInvalidDescriptor and execution failures as ErrExecutionFailed, and the caller
// decides policy.
//
// Primitives may fan out internally over a bounded number of worker goroutines, but
// Execute is synchronous: it returns only after the destination memory is fully
// written. An Engine and the memories and primitives created from it are not safe for
// concurrent use by multiple goroutines.
package mkl

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"
)

// ParallelismEnvVar limits the number of worker goroutines a primitive may use
// internally. Zero or unset means one worker per available CPU.
const ParallelismEnvVar = "CAFFE2_MKL_PARALLELISM"

// Options configure a new Engine.
type Options struct {
	// MaxParallelism bounds the worker goroutines used inside primitive execution.
	// If 0, the value is taken from ParallelismEnvVar, and failing that from
	// runtime.GOMAXPROCS. Use 1 for fully sequential execution.
	MaxParallelism int
}

// Engine owns the buffer pools and the worker allowance shared by all primitives and
// memories created from it. It plays the role of the vendor library handle.
type Engine struct {
	maxParallelism int
	currentWorkers atomic.Int32

	// bufferPools maps bufferPoolKey to *sync.Pool of reusable buffers.
	bufferPools sync.Map
}

// NewEngine creates an Engine with the given options.
func NewEngine(opts Options) *Engine {
	maxParallelism := opts.MaxParallelism
	if maxParallelism <= 0 {
		maxParallelism = parallelismFromEnv()
	}
	if maxParallelism <= 0 {
		maxParallelism = runtime.GOMAXPROCS(0)
	}
	klog.V(2).Infof("mkl: new engine, maxParallelism=%d", maxParallelism)
	return &Engine{maxParallelism: maxParallelism}
}

func parallelismFromEnv() int {
	value, found := os.LookupEnv(ParallelismEnvVar)
	if !found || value == "" {
		return 0
	}
	parallelism, err := strconv.Atoi(value)
	if err != nil || parallelism < 0 {
		klog.Warningf("mkl: ignoring invalid $%s=%q", ParallelismEnvVar, value)
		return 0
	}
	return parallelism
}

// MaxParallelism returns the worker bound the engine was configured with.
func (e *Engine) MaxParallelism() int { return e.maxParallelism }

// startWorker runs fn in a separate goroutine, if there are workers left in the
// engine's allowance. It returns true if it found a worker to run the function,
// false otherwise, in which case the caller should run fn inline.
//
// It's up to the caller to synchronize the end of the function execution.
func (e *Engine) startWorker(fn func()) bool {
	if e.maxParallelism > 0 && e.currentWorkers.Load() >= int32(e.maxParallelism) {
		return false
	}
	e.currentWorkers.Add(1)
	go func() {
		fn()
		e.currentWorkers.Add(-1)
	}()
	return true
}
