// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Machine word bit scans.

package tlsf

import (
	"github.com/cznic/mathutil"
)

// fls64 returns the position of the highest set bit of v or -1 for v == 0.
func fls64(v uint64) int {
	return mathutil.BitLenUint64(v) - 1
}

// ffs64 returns the position of the lowest set bit of v or -1 for v == 0.
func ffs64(v uint64) int {
	if v == 0 {
		return -1
	}

	return mathutil.BitLenUint64(v&^(v-1)) - 1
}

// fls32 returns the position of the highest set bit of v or -1 for v == 0.
func fls32(v uint32) int {
	return mathutil.BitLenUint32(v) - 1
}

// ffs32 returns the position of the lowest set bit of v or -1 for v == 0.
func ffs32(v uint32) int {
	if v == 0 {
		return -1
	}

	return mathutil.BitLenUint32(v&^(v-1)) - 1
}

// log2 returns floor(log2(n)). n must be positive.
func log2(n int64) int {
	return fls64(uint64(n))
}
