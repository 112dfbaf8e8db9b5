// Copyright 2016 Michael Stapelberg and contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package matrix hides bytes in the parities of quantized DCT coefficients
// using (1, n, k) matrix encoding and recovers them again.
//
// A coefficient stream consists of 64-entry blocks. The first entry of each
// block (DC) never carries data and neither does a coefficient of value
// zero. Embedding only ever moves a coefficient one step towards zero.
package matrix

import "errors"

// MaxLength is the largest payload the 23 bit length field can declare.
const MaxLength = 0x7fffff

// ErrCapacity is returned when a payload does not fit into a coefficient
// stream.
var ErrCapacity = errors.New("payload exceeds embedding capacity")

// Stats summarizes the carriers of a coefficient stream.
type Stats struct {
	Coefficients int // all entries, DC included
	Zeros        int // non-DC entries of value 0
	Ones         int // non-DC entries of value ±1
	Large        int // non-DC entries with |c| > 1

	// Expected is the estimated number of bits the stream carries. About
	// half of the ±1 entries are lost to shrinkage.
	Expected int
}

// Analyze counts the carriers in coeffs.
func Analyze(coeffs []int32) Stats {
	s := Stats{Coefficients: len(coeffs)}
	for i, c := range coeffs {
		if i%64 == 0 {
			continue
		}
		switch c {
		case 0:
			s.Zeros++
		case 1, -1:
			s.Ones++
		}
	}
	s.Large = len(coeffs) - s.Zeros - s.Ones - len(coeffs)/64
	s.Expected = s.Large + int(0.49*float64(s.Ones))
	return s
}

// Usable returns the number of bytes the (1, 2^k-1, k) code can embed,
// including the 4 byte header.
func (s Stats) Usable(k int) int {
	n := 1<<k - 1
	u := s.Expected * k / n
	u -= u % n
	return u / 8
}

// Capacity returns the largest payload in bytes that Embed is certain to
// accept, or -1 if not even an empty payload is. Entries with |c| > 1 never
// shrink under the direct code, so each of them carries one bit.
func (s Stats) Capacity() int {
	c := s.Large/8 - 4
	if c < 0 {
		return -1
	}
	if c > MaxLength {
		return MaxLength
	}
	return c
}

// Estimate returns the largest payload in bytes that SelectCode accepts. It
// relies on Expected, so payloads between Capacity and Estimate usually, but
// not always, fit.
func (s Stats) Estimate() int {
	c := s.Usable(1) - 4
	if c < 0 {
		return -1
	}
	if c > MaxLength {
		return MaxLength
	}
	return c
}

// SelectCode returns the largest k in [1,7] whose code still fits length
// payload bytes, stopping at the first code that does not. 0 means the
// payload does not fit at all.
func SelectCode(s Stats, length int) int {
	for k := 1; k <= 7; k++ {
		u := s.Usable(k)
		if u == 0 || u < length+4 {
			return k - 1
		}
	}
	return 7
}

// parity returns the bit a non-zero coefficient carries. Negative values
// carry the inverted low bit.
func parity(c int32) int32 {
	if c > 0 {
		return c & 1
	}
	return 1 - c&1
}
