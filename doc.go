// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tlsf implements a two-level segregated fit storage allocator.
//
// The allocator manages a single contiguous extent of bytes supplied by the
// caller at construction time and services allocation and deallocation
// requests in constant worst-case time, which makes it usable from real-time
// and interactive code paths. Free blocks are segregated in a two-level
// structure: a first level of power-of-two size bands and, within every
// band, a second level of equally sized sub-bands. Two bitmaps summarize
// which classes are non empty, so finding a big-enough free block costs two
// bit scans and one list head read regardless of how many blocks exist.
//
// The allocator operates in one of two header modes.
//
// In the internal mode (NewAllocator) block bookkeeping is embedded in the
// managed extent itself, prepended to every payload, and the payload
// addresses handed out are word-aligned offsets into the extent. Payload
// bytes are never read or written by the allocator; a free block only lends
// the first words of its payload to the free-list links.
//
// In the external mode (NewExtAllocator) bookkeeping lives in side records
// and the managed extent is never touched at all. The extent does not even
// have to be memory - it can be disk space, an ID range or any other
// linearly addressed resource. Operations deal in opaque *Block handles and
// base-relative addresses.
//
// No method of an Allocator may be called concurrently with another one.
// Callers requiring concurrent access must serialise all entry points with
// an external mutex covering the whole allocator.
package tlsf
