// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlsf

import (
	"flag"
	"testing"

	"github.com/cznic/mathutil"
)

var (
	testN = flag.Int("N", 1024, "rnd test operation count")
)

func init() {
	if *testN <= 0 {
		*testN = 1
	}
}

func rng() *mathutil.FC32 {
	r, err := mathutil.NewFC32(0, 1<<20, false)
	if err != nil {
		panic(err)
	}

	return r
}

// Paranoid allocator, verifies the whole structure after every mutating
// operation.
type vAllocator struct {
	*Allocator
	t *testing.T
}

func vInt(t *testing.T, mem []byte) *vAllocator {
	a, err := NewAllocator(mem)
	if err != nil {
		t.Fatal(err)
	}

	v := &vAllocator{a, t}
	v.verify()
	return v
}

func vExt(t *testing.T, base, size int64) *vAllocator {
	a, err := NewExtAllocator(base, size)
	if err != nil {
		t.Fatal(err)
	}

	v := &vAllocator{a, t}
	v.verify()
	return v
}

func (a *vAllocator) verify() {
	a.t.Helper()
	var errs []error
	logger := func(err error) bool {
		errs = append(errs, err)
		return false
	}
	if err := a.Allocator.Verify(logger, nil); err != nil {
		a.t.Fatalf("Verify: %v %v", err, errs)
	}
}

func (a *vAllocator) stats() (st Stats) {
	a.t.Helper()
	if err := a.Allocator.Verify(nil, &st); err != nil {
		a.t.Fatal(err)
	}

	return
}

func (a *vAllocator) alloc(n int64) (int64, error) {
	a.t.Helper()
	off, err := a.Allocator.Alloc(n)
	a.verify()
	return off, err
}

func (a *vAllocator) free(off int64) error {
	a.t.Helper()
	err := a.Allocator.Free(off)
	a.verify()
	return err
}

func (a *vAllocator) extAlloc(n int64) (*Block, error) {
	a.t.Helper()
	b, err := a.Allocator.ExtAlloc(n)
	a.verify()
	return b, err
}

func (a *vAllocator) extFree(b *Block) error {
	a.t.Helper()
	err := a.Allocator.ExtFree(b)
	a.verify()
	return err
}
