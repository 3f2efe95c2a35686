// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The allocator service layer.

package tlsf

const (
	// MinBlockSize is the granularity of the allocator. Every block
	// length is a non zero multiple of MinBlockSize and every request is
	// rounded up to it.
	MinBlockSize = 32

	mbs      = MinBlockSize
	slShift  = 5           // log2 of the number of second level classes
	slCount  = 1 << slShift // second level classes per first level band
	flCount  = 64           // first level bands, one per word bit
	wordSize = 8

	// intHdrLen is the length of a block header embedded in the managed
	// extent. Keeping it equal to MinBlockSize keeps every payload
	// offset a multiple of MinBlockSize, hence word aligned.
	intHdrLen = mbs

	maxRq = 1 << 62 // largest representable request
)

/*

Allocator manages a single contiguous extent of linearly addressed units
and serves allocation and deallocation requests from it in constant worst
case time.

Free blocks are kept in doubly linked lists segregated by size class, one
list per (first level, second level) cell. A word-wide bitmap summarizes
which first level bands hold any free block and a per-band bitmap
summarizes the sub-bands, so locating a big-enough block is two
find-first-set scans and a list head read. Deallocation merges the freed
block with its free physical neighbours, keeping the invariant that no two
adjacent blocks are ever both free.

An Allocator works in one of two header modes fixed at construction time.
NewAllocator embeds block headers in the managed extent (see blk.go for
the layout); NewExtAllocator keeps them in side records and never touches
the extent. Both modes run the same engine over the same segregated
structure; only the header backend differs.

An Allocator is not safe for concurrent use.

*/
type Allocator struct {
	mem    []byte // the managed extent; nil in external header mode
	base   int64  // opaque extent origin, external header mode
	size   int64  // managed bytes, aligned down to a whole number of minimum blocks
	unused int64  // sum of the lengths of all free blocks
	hdrLen int64  // per block header overhead: intHdrLen or 0
	ext    bool
	closed bool
	phys   *extBlk // first block in address order, external header mode

	l1    uint64                 // non empty first level bands
	l2    [flCount]uint32        // non empty sub-bands per band
	heads [flCount][slCount]blk  // free list head per cell
}

// roundup rounds n up to a multiple of m. m must be a power of 2.
func roundup(n, m int64) int64 { return (n + m - 1) &^ (m - 1) }

// truncExtent aligns a raw extent size down to a whole number of minimum
// blocks.
func truncExtent(n int64) int64 { return roundup(n+1, mbs) - mbs }

// NewAllocator returns an allocator managing mem with block headers
// embedded in mem itself. The extent is len(mem) bytes aligned down to a
// multiple of MinBlockSize; a trailing fragment, if any, is never touched.
// Payload bytes are never read or written by the allocator, but the first
// words of a free block's payload are lent to the free list links, so the
// content of a block is only stable between Alloc and Free.
func NewAllocator(mem []byte) (a *Allocator, err error) {
	size := truncExtent(int64(len(mem)))
	a = &Allocator{mem: mem, size: size, hdrLen: intHdrLen}
	if size >= intHdrLen+mbs {
		q2b(mem[0:], pksz(size-intHdrLen, false))
		h2b(mem[8:], -1)
		a.insert(intBlk{a, 0})
	}
	return a, nil
}

// NewExtAllocator returns an allocator managing size units starting at
// base, with block headers kept in side records. The managed extent is
// never read or written; base is an opaque, word aligned origin and every
// address handed out is relative to it. The extent therefore does not
// have to be memory at all.
func NewExtAllocator(base, size int64) (a *Allocator, err error) {
	if base < 0 || base%wordSize != 0 {
		return nil, &ErrINVAL{"tlsf.NewExtAllocator: base negative or not word aligned", base}
	}

	if size < 0 {
		return nil, &ErrINVAL{"tlsf.NewExtAllocator: invalid size", size}
	}

	size = truncExtent(size)
	a = &Allocator{base: base, size: size, ext: true}
	if size >= mbs {
		b := &extBlk{off: 0, sz: size}
		a.phys = b
		a.insert(b)
	}
	return a, nil
}

// Close invalidates the allocator and releases its side records. Every
// method returning an error fails with ErrPERM after Close; UnusedSpace and
// AvailSpace return 0.
func (a *Allocator) Close() (err error) {
	if a.closed {
		return &ErrPERM{"Allocator.Close"}
	}

	a.closed = true
	for b := a.phys; b != nil; {
		n := b.pnext
		b.pprev, b.pnext, b.fprev, b.fnext = nil, nil, nil, nil
		b = n
	}
	a.phys = nil
	a.mem = nil
	a.unused = 0
	a.l1 = 0
	a.l2 = [flCount]uint32{}
	a.heads = [flCount][slCount]blk{}
	return nil
}

// first returns the physically lowest block or nil when the extent holds
// no block at all.
func (a *Allocator) first() blk {
	if a.ext {
		if a.phys == nil {
			return nil
		}

		return a.phys
	}

	if a.size < intHdrLen+mbs {
		return nil
	}

	return intBlk{a, 0}
}

func (a *Allocator) alloc(n int64) (b blk, err error) {
	switch {
	case n < 0:
		return nil, &ErrINVAL{"Allocator.Alloc: invalid size", n}
	case n == 0:
		n = 1
	case n > maxRq:
		return nil, &ErrNOMEM{n}
	}

	rq := roundup(n, mbs)
	fl, sl, ok := a.locate(rq)
	if !ok {
		return nil, &ErrNOMEM{rq}
	}

	b = a.remove(nil, fl, sl)
	if excess := b.size() - rq; excess >= mbs+a.hdrLen {
		b.setSize(rq)
		a.insert(b.newSucc(excess - a.hdrLen))
	}
	return b, nil
}

func (a *Allocator) free(b blk) (err error) {
	if b.isFree() {
		return &ErrINVAL{"Allocator.Free: block is already free at", b.addr()}
	}

	if l := b.prev(); l != nil && l.isFree() {
		// <- left join: the merged block inherits the predecessor's
		// identity. The absorbed header is destroyed only after the
		// survivor grew, while its own fields are still intact.
		fl, sl := mapIns(l.size())
		a.remove(l, fl, sl)
		l.setSize(l.size() + a.hdrLen + b.size())
		b.destroy()
		b = l
	}

	if r := b.next(); r != nil && r.isFree() {
		// right join ->
		fl, sl := mapIns(r.size())
		a.remove(r, fl, sl)
		b.setSize(b.size() + a.hdrLen + r.size())
		r.destroy()
	}

	a.insert(b)
	return nil
}

// Alloc allocates n bytes and returns the offset of the payload within
// the managed extent. The offset is always a multiple of the word size.
// Alloc is available only on allocators created by NewAllocator; external
// header mode has no payload to address, use ExtAlloc.
func (a *Allocator) Alloc(n int64) (off int64, err error) {
	if a.closed {
		return 0, &ErrPERM{"Allocator.Alloc"}
	}

	if a.ext {
		return 0, &ErrINVAL{"Allocator.Alloc: external header mode", n}
	}

	b, err := a.alloc(n)
	if err != nil {
		return 0, err
	}

	return b.addr(), nil
}

// Free deallocates the block whose payload starts at off, merging it with
// any free physical neighbour. off must have been returned by Alloc on a
// and the block must be currently allocated; freeing a free block is
// detected and reported, any other invalid offset can irreparably corrupt
// the allocator.
func (a *Allocator) Free(off int64) (err error) {
	if a.closed {
		return &ErrPERM{"Allocator.Free"}
	}

	if a.ext {
		return &ErrINVAL{"Allocator.Free: external header mode", off}
	}

	if off < intHdrLen || off >= a.size || off%mbs != 0 {
		return &ErrINVAL{"Allocator.Free: offset out of limits", off}
	}

	return a.free(intBlk{a, off - intHdrLen})
}

// ExtAlloc allocates n units and returns an opaque handle of the new
// block. It is available in both header modes; on an internal header
// allocator the handle addresses the block payload.
func (a *Allocator) ExtAlloc(n int64) (h *Block, err error) {
	if a.closed {
		return nil, &ErrPERM{"Allocator.ExtAlloc"}
	}

	b, err := a.alloc(n)
	if err != nil {
		return nil, err
	}

	return &Block{b}, nil
}

// ExtFree deallocates a block returned by ExtAlloc, merging it with any
// free physical neighbour. The handle is invalid afterwards.
func (a *Allocator) ExtFree(h *Block) (err error) {
	if a.closed {
		return &ErrPERM{"Allocator.ExtFree"}
	}

	if h == nil || h.b == nil {
		return &ErrINVAL{"Allocator.ExtFree: invalid handle", h}
	}

	if err = a.free(h.b); err != nil {
		return
	}

	h.b = nil
	return nil
}

// UnusedSpace returns the total number of free units in the managed
// extent. The space is not necessarily contiguous.
func (a *Allocator) UnusedSpace() int64 { return a.unused }

// AvailSpace returns the size of the largest request currently guaranteed
// to succeed, or 0 when no free block exists. The value is conservative,
// a somewhat larger request may still succeed.
func (a *Allocator) AvailSpace() (n int64) {
	if a.l1 == 0 {
		return 0
	}

	fl := fls64(a.l1)
	sl := fls32(a.l2[fl])
	n = a.heads[fl][sl].size()
	n = roundup(n+1, mbs) - mbs
	return n - 1<<uint(log2(n)-slShift)
}

// A Block is an opaque handle of an allocated block, as returned by
// ExtAlloc. A Block is valid until passed to ExtFree.
type Block struct {
	b blk
}

// Addr returns the base-relative address of the block and its length.
func (h *Block) Addr() (off, n int64) {
	if h == nil || h.b == nil {
		return -1, 0
	}

	return h.b.addr(), h.b.size()
}
