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

package keystream

// Permutation is a bijection over [0, Len()). It is read-only once built.
type Permutation struct {
	shuffled []int
}

// NewPermutation shuffles [0, n) with a Fisher-Yates pass whose upper bound
// decreases from n to 1, drawing from s. The Stream continues to be usable
// afterwards; callers take their XOR pad from it.
func NewPermutation(n int, s *Stream) *Permutation {
	shuffled := make([]int, n)
	for i := range shuffled {
		shuffled[i] = i
	}
	max := n
	for i := 0; i < n; i++ {
		r := s.NextValue(max)
		max--
		shuffled[max], shuffled[r] = shuffled[r], shuffled[max]
	}
	return &Permutation{shuffled: shuffled}
}

// Len returns the size of the permuted range.
func (p *Permutation) Len() int { return len(p.shuffled) }

// At returns the index at shuffled position i.
func (p *Permutation) At(i int) int { return p.shuffled[i] }
