// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The block header abstraction and its two backends.

package tlsf

/*

Internal mode block layout

Every block starts with a 32 byte header written into the managed extent,
immediately followed by the payload. Lengths exclude the header and are non
zero multiples of MinBlockSize, so bit 0 of a length is always clear and
holds the free flag instead.

	|<-header                 ->|<-payload            ...
	+--------+--------+--------+--------+--------+-- ...
	|  0..7  |  8..15 | 16..31 |  0..7  |  8..15 |
	+--------+--------+--------+--------+--------+-- ...
	| LEN|F  |   P    | unused |   SP   |   SN   |
	+--------+--------+--------+--------+--------+-- ...

LEN|F is the block length with the free flag packed into bit 0. P is the
reference of the physical predecessor header. SP and SN, meaningful only
while the block is free, are the references of the previous and next block
in the segregation list of the block's class; they overlap the payload,
which is wide enough because MinBlockSize >= 2 words. References are header
offsets biased by one, so the zero value means "no block". The physical
successor needs no field, its header starts at offset+32+LEN.

External mode blocks are side records holding the same capability set plus
the base-relative address of the region; they are additionally threaded in
a doubly linked list over all live blocks in address order, which stands in
for the address arithmetic of the internal mode.

*/

// blk is the uniform view of a block header, independent of where the
// header lives.
type blk interface {
	size() int64
	setSize(n int64)
	isFree() bool
	setFree(v bool)
	// addr returns the base-relative address of the block's payload
	// (internal mode) or region (external mode).
	addr() int64
	prev() blk // physical predecessor or nil
	next() blk // physical successor or nil
	sprev() blk
	snext() blk
	setSprev(b blk)
	setSnext(b blk)
	// newSucc lays down the header of an n byte block placed physically
	// right after the receiver and wires the physical linkage. It does
	// not touch the segregation lists.
	newSucc(n int64) blk
	// destroy erases the receiver's header, patching the physical
	// linkage of the successor, if any, to skip the receiver. A
	// destroyed block always has a physical predecessor - it is always
	// the right-hand side of a merge.
	destroy()
}

// q2b stores v in the first 8 bytes of b in network byte order.
func q2b(b []byte, v uint64) {
	b[0], b[1], b[2], b[3] = byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32)
	b[4], b[5], b[6], b[7] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
}

// b2q is the inverse of q2b.
func b2q(b []byte) uint64 {
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}

// h2b stores the header offset h, biased by one so that the zero value
// means "no block", in the first 8 bytes of b. h == -1 encodes no block.
func h2b(b []byte, h int64) {
	q2b(b, uint64(h+1))
}

// b2h is the inverse of h2b.
func b2h(b []byte) int64 {
	return int64(b2q(b)) - 1
}

// pksz packs a block length and its free flag into the on-extent size
// field. n must be a multiple of MinBlockSize.
func pksz(n int64, free bool) uint64 {
	v := uint64(n)
	if free {
		v |= 1
	}
	return v
}

// upksz is the inverse of pksz.
func upksz(v uint64) (n int64, free bool) {
	return int64(v &^ 1), v&1 != 0
}

// An intBlk refers to a block header embedded in the managed extent.
type intBlk struct {
	a   *Allocator
	off int64 // header offset within the extent
}

func (b intBlk) size() int64 {
	n, _ := upksz(b2q(b.a.mem[b.off:]))
	return n
}

func (b intBlk) setSize(n int64) {
	_, free := upksz(b2q(b.a.mem[b.off:]))
	q2b(b.a.mem[b.off:], pksz(n, free))
}

func (b intBlk) isFree() bool {
	_, free := upksz(b2q(b.a.mem[b.off:]))
	return free
}

func (b intBlk) setFree(v bool) {
	n, _ := upksz(b2q(b.a.mem[b.off:]))
	q2b(b.a.mem[b.off:], pksz(n, v))
}

func (b intBlk) addr() int64 { return b.off + intHdrLen }

func (b intBlk) prev() blk {
	h := b2h(b.a.mem[b.off+8:])
	if h < 0 {
		return nil
	}

	return intBlk{b.a, h}
}

func (b intBlk) next() blk {
	off := b.off + intHdrLen + b.size()
	if off >= b.a.size {
		return nil
	}

	return intBlk{b.a, off}
}

func (b intBlk) sprev() blk {
	h := b2h(b.a.mem[b.addr():])
	if h < 0 {
		return nil
	}

	return intBlk{b.a, h}
}

func (b intBlk) snext() blk {
	h := b2h(b.a.mem[b.addr()+wordSize:])
	if h < 0 {
		return nil
	}

	return intBlk{b.a, h}
}

func (b intBlk) setSprev(x blk) {
	h := int64(-1)
	if x != nil {
		h = x.(intBlk).off
	}
	h2b(b.a.mem[b.addr():], h)
}

func (b intBlk) setSnext(x blk) {
	h := int64(-1)
	if x != nil {
		h = x.(intBlk).off
	}
	h2b(b.a.mem[b.addr()+wordSize:], h)
}

func (b intBlk) newSucc(n int64) blk {
	off := b.off + intHdrLen + b.size()
	q2b(b.a.mem[off:], pksz(n, false))
	h2b(b.a.mem[off+8:], b.off)
	nb := intBlk{b.a, off}
	if s := nb.next(); s != nil {
		h2b(b.a.mem[s.(intBlk).off+8:], off)
	}
	return nb
}

func (b intBlk) destroy() {
	if s := b.next(); s != nil {
		h2b(b.a.mem[s.(intBlk).off+8:], b2h(b.a.mem[b.off+8:]))
	}
}

// An extBlk is a block header kept outside of the managed extent.
type extBlk struct {
	off  int64 // base-relative address of the region
	sz   int64
	free bool
	// physical-address-ordered list of all live blocks
	pprev, pnext *extBlk
	// segregation list of the block's class, while free
	fprev, fnext *extBlk
}

func (b *extBlk) size() int64     { return b.sz }
func (b *extBlk) setSize(n int64) { b.sz = n }
func (b *extBlk) isFree() bool    { return b.free }
func (b *extBlk) setFree(v bool)  { b.free = v }
func (b *extBlk) addr() int64     { return b.off }

func (b *extBlk) prev() blk {
	if b.pprev == nil {
		return nil
	}

	return b.pprev
}

func (b *extBlk) next() blk {
	if b.pnext == nil {
		return nil
	}

	return b.pnext
}

func (b *extBlk) sprev() blk {
	if b.fprev == nil {
		return nil
	}

	return b.fprev
}

func (b *extBlk) snext() blk {
	if b.fnext == nil {
		return nil
	}

	return b.fnext
}

func (b *extBlk) setSprev(x blk) {
	if x == nil {
		b.fprev = nil
		return
	}

	b.fprev = x.(*extBlk)
}

func (b *extBlk) setSnext(x blk) {
	if x == nil {
		b.fnext = nil
		return
	}

	b.fnext = x.(*extBlk)
}

func (b *extBlk) newSucc(n int64) blk {
	nb := &extBlk{off: b.off + b.sz, sz: n, pprev: b, pnext: b.pnext}
	if b.pnext != nil {
		b.pnext.pprev = nb
	}
	b.pnext = nb
	return nb
}

func (b *extBlk) destroy() {
	if b.pprev != nil {
		b.pprev.pnext = b.pnext
	}
	if b.pnext != nil {
		b.pnext.pprev = b.pprev
	}
	b.pprev, b.pnext, b.fprev, b.fnext = nil, nil, nil, nil
}
