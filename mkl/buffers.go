// Copyright 2026 The Caffe2-Go Authors. SPDX-License-Identifier: Apache-2.0

package mkl

import (
	"reflect"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// buffer holds a flat slice of a supported dtype. Buffers are recycled through
// per-(dtype, length) pools owned by the Engine, so descriptor rebuilds on shape
// changes don't churn the allocator.
type buffer struct {
	dtype  dtypes.DType
	length int

	// flat is always a slice of the Go type corresponding to dtype.
	flat any
}

type bufferPoolKey struct {
	dtype  dtypes.DType
	length int
}

// getBufferPool for the given dtype/length.
func (e *Engine) getBufferPool(dtype dtypes.DType, length int) *sync.Pool {
	key := bufferPoolKey{dtype: dtype, length: length}
	poolInterface, ok := e.bufferPools.Load(key)
	if !ok {
		poolInterface, _ = e.bufferPools.LoadOrStore(key, &sync.Pool{
			New: func() any {
				return &buffer{
					dtype:  dtype,
					length: length,
					flat:   reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), length, length).Interface(),
				}
			},
		})
	}
	return poolInterface.(*sync.Pool)
}

// getBuffer takes a buffer from the engine pools.
func (e *Engine) getBuffer(dtype dtypes.DType, length int) *buffer {
	pool := e.getBufferPool(dtype, length)
	return pool.Get().(*buffer)
}

// putBuffer returns a buffer to the engine pools. Any references to it should be
// dropped after this.
func (e *Engine) putBuffer(buf *buffer) {
	if buf == nil || buf.flat == nil {
		return
	}
	pool := e.getBufferPool(buf.dtype, buf.length)
	pool.Put(buf)
}

// copyFlat assumes both flat slices are of the same underlying type.
func copyFlat(flatDst, flatSrc any) {
	reflect.Copy(reflect.ValueOf(flatDst), reflect.ValueOf(flatSrc))
}

// flatOf returns the buffer's flat slice as []T. It panics if T doesn't match the
// buffer's dtype -- that is a programmer error in the dispatch above it.
func flatOf[T any](buf *buffer) []T {
	flat, ok := buf.flat.([]T)
	if !ok {
		exceptions.Panicf("mkl: buffer holds %s (%T), caller asked for %T", buf.dtype, buf.flat, flat)
	}
	return flat
}
