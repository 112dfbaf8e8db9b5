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

// Package keystream derives the password-dependent byte stream which drives
// both the coefficient permutation and the XOR pad of embedded data.
//
// The generator is byte-compatible with the SHA-1 DigestRandomGenerator of
// the Bouncy Castle library, which F5 implementations have used since the
// original Java release. Files written by those implementations can
// therefore be read with the same password, and vice versa.
package keystream

import (
	"crypto/sha1"
	"encoding/binary"
	"hash"
)

// BufferSize is the number of bytes generated at once.
const BufferSize = 1024

// cycleCount is the number of states after which the seed is cycled.
const cycleCount = 10

type digestRandom struct {
	h            hash.Hash
	seed         [sha1.Size]byte
	state        [sha1.Size]byte
	seedCounter  uint64
	stateCounter uint64
	counter      [8]byte
}

func newDigestRandom() *digestRandom {
	return &digestRandom{
		h:            sha1.New(),
		seedCounter:  1,
		stateCounter: 1,
	}
}

func (d *digestRandom) addCounter(v uint64) {
	binary.LittleEndian.PutUint64(d.counter[:], v)
	d.h.Write(d.counter[:])
}

func (d *digestRandom) addSeed(material []byte) {
	d.h.Reset()
	d.h.Write(material)
	d.h.Write(d.seed[:])
	copy(d.seed[:], d.h.Sum(nil))
}

func (d *digestRandom) cycleSeed() {
	d.h.Reset()
	d.h.Write(d.seed[:])
	d.addCounter(d.seedCounter)
	d.seedCounter++
	copy(d.seed[:], d.h.Sum(nil))
}

func (d *digestRandom) generateState() {
	d.h.Reset()
	d.addCounter(d.stateCounter)
	d.stateCounter++
	d.h.Write(d.state[:])
	d.h.Write(d.seed[:])
	copy(d.state[:], d.h.Sum(nil))
	if d.stateCounter%cycleCount == 0 {
		d.cycleSeed()
	}
}

// fill always starts from a fresh state, even if the previous call left
// unused state bytes behind.
func (d *digestRandom) fill(b []byte) {
	d.generateState()
	off := 0
	for i := range b {
		if off == len(d.state) {
			d.generateState()
			off = 0
		}
		b[i] = d.state[off]
		off++
	}
}

// Stream is an infinite, deterministic byte sequence derived from a
// password. A Stream is not safe for concurrent use.
type Stream struct {
	rnd *digestRandom
	buf [BufferSize]byte
	pos int
}

// New returns the Stream for password. The password bytes are used as-is,
// so callers holding a string should pass its UTF-8 encoding.
func New(password []byte) *Stream {
	s := &Stream{rnd: newDigestRandom()}
	s.rnd.addSeed(password)
	s.rnd.fill(s.buf[:])
	return s
}

// Next returns the next byte of the stream.
func (s *Stream) Next() byte {
	if s.pos == len(s.buf) {
		s.rnd.fill(s.buf[:])
		s.pos = 0
	}
	b := s.buf[s.pos]
	s.pos++
	return b
}

// Clone returns an independent Stream which continues where s is.
func (s *Stream) Clone() *Stream {
	rnd := *s.rnd
	rnd.h = sha1.New() // always Reset before use
	c := *s
	c.rnd = &rnd
	return &c
}

// NextValue returns a value in [0, max), assembled from the next four bytes
// of the stream in little endian order. max must be positive.
func (s *Stream) NextValue(max int) int {
	v := int32(uint32(s.Next()) |
		uint32(s.Next())<<8 |
		uint32(s.Next())<<16 |
		uint32(s.Next())<<24)
	r := int(v) % max
	if r < 0 {
		r += max
	}
	return r
}
