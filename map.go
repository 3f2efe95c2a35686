// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Size-class mapping and the segregated free list management.

package tlsf

// The first level splits sizes into power-of-two bands, class fl covering
// [2^fl, 2^(fl+1)). Every band is split into slCount equal sub-bands, the
// second level index being the top slShift bits of the offset within the
// band. MinBlockSize keeps fl >= slShift, so the shifts below never go
// negative.

// mapIns returns the class cell of a block of n bytes. n must be at least
// MinBlockSize.
func mapIns(n int64) (fl, sl int) {
	fl = log2(n)
	sl = int((n ^ 1<<uint(fl)) >> uint(fl-slShift))
	return
}

// mapRq returns the cell to search for a request of n bytes. The request
// is first rounded up to the next class boundary, which guarantees that
// any block found in the returned cell, or any higher one, is big enough.
func mapRq(n int64) (fl, sl int) {
	return mapIns(n + 1<<uint(log2(n)-slShift) - 1)
}

// insert files b, which must not be in any list, at the head of the
// segregation list of its class, flags it free and updates the bitmap
// summaries and the free bytes counter.
func (a *Allocator) insert(b blk) {
	fl, sl := mapIns(b.size())
	h := a.heads[fl][sl]
	b.setSprev(nil)
	b.setSnext(h)
	if h != nil {
		h.setSprev(b)
	}
	a.heads[fl][sl] = b
	b.setFree(true)
	a.unused += b.size()
	a.l2[fl] |= 1 << uint(sl)
	a.l1 |= 1 << uint(fl)
}

// remove unlinks b, or the head of cell (fl, sl) when b is nil, from its
// segregation list, clears its free flag and updates the bitmap summaries
// and the free bytes counter. It returns the unlinked block.
func (a *Allocator) remove(b blk, fl, sl int) blk {
	if b == nil {
		b = a.heads[fl][sl]
	}
	p, n := b.sprev(), b.snext()
	if p != nil {
		p.setSnext(n)
	}
	if n != nil {
		n.setSprev(p)
	}
	if a.heads[fl][sl] == b {
		a.heads[fl][sl] = n
		if n == nil {
			a.l2[fl] &^= 1 << uint(sl)
			if a.l2[fl] == 0 {
				a.l1 &^= 1 << uint(fl)
			}
		}
	}
	b.setFree(false)
	a.unused -= b.size()
	b.setSprev(nil)
	b.setSnext(nil)
	return b
}

// locate finds a non empty cell whose every block can serve a request of n
// bytes. It first looks for a big-enough sub-band within the request's own
// band and then for the lowest cell of any higher band. Both lookups are a
// single find-first-set.
func (a *Allocator) locate(n int64) (fl, sl int, ok bool) {
	fl, sl = mapRq(n)
	if m := a.l2[fl] & (^uint32(0) << uint(sl)); m != 0 {
		return fl, ffs32(m), true
	}

	if m := a.l1 & (^uint64(0) << uint(fl+1)); m != 0 {
		fl = ffs64(m)
		return fl, ffs32(a.l2[fl]), true
	}

	return 0, 0, false
}
