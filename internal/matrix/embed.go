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

	"github.com/stapelberg/f5stego/internal/keystream"
)

// Report describes one embedding.
type Report struct {
	Stats Stats

	K int // code parameter stored in the header
	N int // codeword length, 1 for direct embedding

	// Retried counts the larger codes which ran out of carriers before K
	// was used.
	Retried int

	Examined int // non-zero coefficients visited by direct embedding
	Changed  int // coefficients moved towards zero
	Shrunk   int // coefficients that became zero
	Bits     int // header and payload bits embedded
}

// Efficiency returns the embedded bits per changed coefficient.
func (r *Report) Efficiency() float64 {
	if r.Changed == 0 {
		return 0
	}
	return float64(r.Bits) / float64(r.Changed)
}

// bitSource yields bits least significant first. Once the loaded word is
// used up, the next payload byte is loaded, XORed with one stream byte.
type bitSource struct {
	data  []byte
	s     *keystream.Stream
	word  uint32
	avail int
}

func (b *bitSource) more() bool {
	return b.avail > 0 || len(b.data) > 0
}

func (b *bitSource) next() int32 {
	if b.avail == 0 {
		b.word = uint32(b.data[0] ^ b.s.Next())
		b.data = b.data[1:]
		b.avail = 8
	}
	bit := int32(b.word & 1)
	b.word >>= 1
	b.avail--
	return bit
}

// cursor hands out carrier indices in permutation order, starting at pos.
// Carriers are judged when they are handed out, so coefficients that shrank
// earlier are skipped.
type cursor struct {
	coeffs []int32
	perm   *keystream.Permutation
	pos    int
}

func (c *cursor) next() (int, bool) {
	for ; c.pos < c.perm.Len(); c.pos++ {
		idx := c.perm.At(c.pos)
		if idx%64 != 0 && c.coeffs[idx] != 0 {
			c.pos++
			return idx, true
		}
	}
	return 0, false
}

// Embed hides payload in coeffs, which hold blocks in natural order. perm
// must cover coeffs and be drawn from s; s then supplies the XOR pad.
//
// The code is chosen by SelectCode. Should its carriers run out, the next
// smaller code is tried, down to the direct code. On error, coeffs is left
// untouched.
func Embed(coeffs []int32, perm *keystream.Permutation, s *keystream.Stream, payload []byte) (*Report, error) {
	if got, want := perm.Len(), len(coeffs); got != want {
		return nil, fmt.Errorf("permutation covers %d coefficients, want %d", got, want)
	}
	if len(payload) > MaxLength {
		return nil, fmt.Errorf("%w: %d bytes exceed the length field (%d bytes)", ErrCapacity, len(payload), MaxLength)
	}
	stats := Analyze(coeffs)
	k := SelectCode(stats, len(payload))
	if k == 0 {
		return nil, fmt.Errorf("%w: %d bytes do not fit, an estimated %d bytes do", ErrCapacity, len(payload), stats.Estimate())
	}
	work := make([]int32, len(coeffs))
	var err error
	for retried := 0; k > 0; k, retried = k-1, retried+1 {
		copy(work, coeffs)
		ks := s.Clone()
		r := &Report{
			Stats:   stats,
			K:       k,
			N:       1<<k - 1,
			Retried: retried,
		}
		if err = r.embed(work, perm, ks, payload); err == nil {
			copy(coeffs, work)
			*s = *ks
			return r, nil
		}
	}
	return nil, err
}

func (r *Report) embed(coeffs []int32, perm *keystream.Permutation, s *keystream.Stream, payload []byte) error {
	header := uint32(len(payload)) | uint32(r.K)<<24
	for i := 0; i < 4; i++ {
		header ^= uint32(s.Next()) << (8 * i)
	}
	src := &bitSource{
		data:  payload,
		s:     s,
		word:  header,
		avail: 32,
	}

	pos, err := r.embedDirect(coeffs, perm, src)
	if err != nil {
		return err
	}
	if r.N == 1 {
		return nil
	}
	cur := &cursor{coeffs: coeffs, perm: perm, pos: pos + 1}
	return r.embedMatrix(coeffs, cur, src)
}

// embedDirect stores one bit per carrier until the header is done (or, with
// the direct code, the whole payload). A carrier that shrinks to zero takes
// no bit and the bit is retried on the next carrier. embedDirect returns the
// permutation position of the last carrier used.
func (r *Report) embedDirect(coeffs []int32, perm *keystream.Permutation, src *bitSource) (int, error) {
	bit := src.next()
	for i := 0; i < perm.Len(); i++ {
		idx := perm.At(i)
		if idx%64 == 0 || coeffs[idx] == 0 {
			continue
		}
		r.Examined++
		c := coeffs[idx]
		if c > 0 && c&1 != bit {
			coeffs[idx]--
			r.Changed++
		} else if c < 0 && c&1 == bit {
			coeffs[idx]++
			r.Changed++
		}
		if coeffs[idx] == 0 {
			r.Shrunk++
			continue
		}
		r.Bits++
		if src.avail == 0 && (r.N > 1 || len(src.data) == 0) {
			return i, nil
		}
		bit = src.next()
	}
	return 0, fmt.Errorf("%w: carriers exhausted after %d bits", ErrCapacity, r.Bits)
}

// embedMatrix stores k bits per codeword of n carriers, changing at most one
// carrier per codeword unless it shrinks. A shrunk carrier is replaced by
// the next one from cur and the codeword is evaluated again. The last
// codeword holds fewer than k bits, possibly none.
func (r *Report) embedMatrix(coeffs []int32, cur *cursor, src *bitSource) error {
	word := make([]int, 0, r.N)
	for {
		var group, bits int
		for ; bits < r.K && src.more(); bits++ {
			group |= int(src.next()) << bits
		}
		r.Bits += bits

		word = word[:0]
		for len(word) < r.N {
			idx, ok := cur.next()
			if !ok {
				return fmt.Errorf("%w: carriers exhausted after %d bits", ErrCapacity, r.Bits)
			}
			word = append(word, idx)
		}

		for {
			h := hash(coeffs, word) ^ group
			if h == 0 {
				break
			}
			idx := word[h-1]
			if coeffs[idx] < 0 {
				coeffs[idx]++
			} else {
				coeffs[idx]--
			}
			r.Changed++
			if coeffs[idx] != 0 {
				continue
			}
			r.Shrunk++
			word = append(word[:h-1], word[h:]...)
			next, ok := cur.next()
			if !ok {
				return fmt.Errorf("%w: carriers exhausted after %d bits", ErrCapacity, r.Bits)
			}
			word = append(word, next)
		}
		if bits < r.K {
			return nil
		}
	}
}

// hash XORs the 1-based positions of all carriers in word whose parity is 1.
func hash(coeffs []int32, word []int) int {
	var h int
	for i, idx := range word {
		if parity(coeffs[idx]) == 1 {
			h ^= i + 1
		}
	}
	return h
}
