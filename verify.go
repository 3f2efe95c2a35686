// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Structural validation.

package tlsf

// Stats records statistics about an Allocator. It can be optionally
// filled by Verify, if successful.
type Stats struct {
	TotalBytes int64 // managed extent size after alignment
	AllocBytes int64 // sum of allocated block lengths
	FreeBytes  int64 // sum of free block lengths == UnusedSpace()
	Blocks     int64 // total number of blocks
	FreeBlocks int64 // number of free blocks
}

var nolog = func(error) bool { return false }

// chk reports whether b refers to a representable block header. In
// internal header mode a corrupted list link can produce an arbitrary
// offset; dereferencing it must be avoided.
func (a *Allocator) chk(b blk) bool {
	ib, ok := b.(intBlk)
	if !ok {
		return true
	}

	return ib.off >= 0 && ib.off%mbs == 0 && ib.off+intHdrLen+mbs <= a.size
}

// Verify attempts to find any structural errors in the allocator: invalid
// block lengths, broken physical chaining, adjacent free blocks, free
// list or bitmap summaries out of sync with the physical chain and a
// stale free bytes counter.
//
// Problems found are reported to 'log' and the verification stops at the
// first problem, returning that error. Passing a nil log works like
// providing a log function always returning false. Statistics are
// returned via 'stats' if non nil; they are valid only if Verify
// succeeded, ie. it returned a nil error.
//
// Verify is linear in the number of blocks and is meant for tests and
// debugging; the service operations never call it.
func (a *Allocator) Verify(log func(error) bool, stats *Stats) (err error) {
	if log == nil {
		log = nolog
	}

	if a.closed {
		return &ErrPERM{"Allocator.Verify"}
	}

	var st Stats
	st.TotalBytes = a.size

	// Phase 1 - walk the physical chain. Check lengths, bounds,
	// predecessor agreement and the no-adjacent-free-blocks invariant,
	// and count the free blocks of every class.
	var cnt [flCount][slCount]int64
	var prev, last blk
	for b := a.first(); b != nil; b = b.next() {
		n := b.size()
		if n < mbs || n%mbs != 0 {
			err = &ErrILSEQ{Type: ErrBlkLen, Off: b.addr(), Arg: n}
			log(err)
			return
		}

		if b.addr()+n > a.size {
			err = &ErrILSEQ{Type: ErrBlkBounds, Off: b.addr(), Arg: a.size}
			log(err)
			return
		}

		if p := b.prev(); p != prev {
			err = &ErrILSEQ{Type: ErrPhysChain, Off: b.addr()}
			log(err)
			return
		}

		if prev != nil {
			if b.addr() != prev.addr()+prev.size()+a.hdrLen {
				err = &ErrILSEQ{Type: ErrPhysChain, Off: b.addr()}
				log(err)
				return
			}

			if prev.isFree() && b.isFree() {
				err = &ErrILSEQ{Type: ErrAdjacentFree, Off: prev.addr(), Arg: b.addr()}
				log(err)
				return
			}
		}

		st.Blocks++
		if st.Blocks > a.size/mbs {
			// more blocks than the extent can hold, the chain cycles
			err = &ErrILSEQ{Type: ErrPhysChain, Off: b.addr()}
			log(err)
			return
		}

		switch b.isFree() {
		case true:
			st.FreeBlocks++
			st.FreeBytes += n
			fl, sl := mapIns(n)
			cnt[fl][sl]++
		case false:
			st.AllocBytes += n
		}
		prev = b
		last = b
	}

	if last != nil && last.addr()+last.size() != a.size {
		err = &ErrILSEQ{Type: ErrBlkBounds, Off: last.addr(), Arg: a.size}
		log(err)
		return
	}

	// Phase 2 - walk every segregation list. Every listed block must be
	// free, of the cell's class and properly back-linked, and every
	// class must list exactly the free blocks phase 1 saw.
	for fl := 0; fl < flCount; fl++ {
		for sl := 0; sl < slCount; sl++ {
			head := a.heads[fl][sl]
			if bit := a.l2[fl]&(1<<uint(sl)) != 0; bit != (head != nil) {
				err = &ErrILSEQ{Type: ErrBitmap, Arg: int64(fl), Arg2: int64(sl)}
				log(err)
				return
			}

			var p blk
			for b := head; b != nil; b = b.snext() {
				if !a.chk(b) {
					err = &ErrILSEQ{Type: ErrSegChaining, Arg: int64(fl), Arg2: int64(sl)}
					log(err)
					return
				}

				if !b.isFree() {
					err = &ErrILSEQ{Type: ErrExpFree, Off: b.addr()}
					log(err)
					return
				}

				if bfl, bsl := mapIns(b.size()); bfl != fl || bsl != sl {
					err = &ErrILSEQ{Type: ErrSegClass, Off: b.addr(), Arg: int64(fl), Arg2: int64(sl)}
					log(err)
					return
				}

				if b.sprev() != p {
					err = &ErrILSEQ{Type: ErrSegChaining, Off: b.addr()}
					log(err)
					return
				}

				cnt[fl][sl]--
				if cnt[fl][sl] < 0 {
					err = &ErrILSEQ{Type: ErrSegCount, Arg: int64(fl), Arg2: int64(sl)}
					log(err)
					return
				}

				p = b
			}

			if cnt[fl][sl] != 0 {
				err = &ErrILSEQ{Type: ErrSegCount, Arg: int64(fl), Arg2: int64(sl)}
				log(err)
				return
			}
		}

		if bit := a.l1&(1<<uint(fl)) != 0; bit != (a.l2[fl] != 0) {
			err = &ErrILSEQ{Type: ErrBitmap, Arg: int64(fl), Arg2: -1}
			log(err)
			return
		}
	}

	if st.FreeBytes != a.unused {
		err = &ErrILSEQ{Type: ErrFreeCount, Arg: st.FreeBytes, Arg2: a.unused}
		log(err)
		return
	}

	if stats != nil {
		*stats = st
	}
	return nil
}
