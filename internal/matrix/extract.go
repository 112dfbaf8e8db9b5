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

package matrix

import (
	"fmt"

	"github.com/stapelberg/f5stego/internal/jfif"
	"github.com/stapelberg/f5stego/internal/keystream"
)

// Extraction is the outcome of Extract.
type Extraction struct {
	Data     []byte
	Declared int // length stored in the header
	K        int // code parameter stored in the header
}

// Incomplete reports whether the carriers ran out before Declared bytes
// were recovered.
func (e *Extraction) Incomplete() bool {
	return len(e.Data) < e.Declared
}

// reader yields the parities of carriers in permutation order. The
// coefficients are in zig-zag order per block, as a decoder produces them,
// while the permutation addresses natural order.
type reader struct {
	coeffs []int32
	perm   *keystream.Permutation
	pos    int
}

func (r *reader) next() (int32, bool) {
	for r.pos++; r.pos < r.perm.Len(); r.pos++ {
		idx := r.perm.At(r.pos)
		mod := idx % 64
		if mod == 0 {
			continue
		}
		if c := r.coeffs[idx-mod+jfif.Zig[mod]]; c != 0 {
			return parity(c), true
		}
	}
	return 0, false
}

// Extract recovers the payload from coeffs (zig-zag order per block). perm
// must cover coeffs and be drawn from s.
//
// Running out of carriers is not an error; the returned Extraction is then
// Incomplete.
func Extract(coeffs []int32, perm *keystream.Permutation, s *keystream.Stream) (*Extraction, error) {
	if got, want := perm.Len(), len(coeffs); got != want {
		return nil, fmt.Errorf("permutation covers %d coefficients, want %d", got, want)
	}
	r := &reader{coeffs: coeffs, perm: perm, pos: -1}

	var header uint32
	for i := 0; i < 32; i++ {
		bit, ok := r.next()
		if !ok {
			break
		}
		header |= uint32(bit) << i
	}
	for i := 0; i < 4; i++ {
		header ^= uint32(s.Next()) << (8 * i)
	}
	e := &Extraction{
		Declared: int(header & MaxLength),
		K:        int(header>>24) % 32,
	}
	if e.Declared == 0 {
		return e, nil
	}
	// Without a valid password the declared length is noise; allocate
	// as bytes arrive.
	var (
		acc  byte
		nacc uint
	)
	// put appends one bit and reports whether the payload is complete.
	put := func(bit int32) bool {
		acc |= byte(bit) << nacc
		nacc++
		if nacc < 8 {
			return false
		}
		e.Data = append(e.Data, acc^s.Next())
		acc, nacc = 0, 0
		return len(e.Data) == e.Declared
	}

	n := 1<<e.K - 1
	if n == 0 {
		for {
			bit, ok := r.next()
			if !ok || put(bit) {
				return e, nil
			}
		}
	}
	for {
		var h int
		for code := 1; code <= n; code++ {
			bit, ok := r.next()
			if !ok {
				return e, nil
			}
			if bit == 1 {
				h ^= code
			}
		}
		for i := 0; i < e.K; i++ {
			if put(int32(h>>i) & 1) {
				return e, nil
			}
		}
	}
}
