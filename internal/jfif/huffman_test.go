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

package jfif

import (
	"bufio"
	"bytes"
	"fmt"
	"testing"
)

func TestHuffmanLUT(t *testing.T) {
	for _, test := range []struct {
		h     huffIndex
		value int
		size  uint32
		code  uint32
	}{
		{huffIndexLuminanceDC, 0, 2, 0b00},
		{huffIndexLuminanceDC, 5, 3, 0b110},
		{huffIndexLuminanceDC, 6, 4, 0b1110},
		{huffIndexLuminanceDC, 11, 9, 0b111111110},
		{huffIndexLuminanceAC, 0x00 /* EOB */, 4, 0b1010},
		{huffIndexLuminanceAC, 0x01, 2, 0b00},
		{huffIndexLuminanceAC, 0x11, 4, 0b1100},
		{huffIndexLuminanceAC, 0xf0 /* ZRL */, 11, 0b11111111001},
		{huffIndexLuminanceAC, 0xfa, 16, 0xfffe},
		{huffIndexChrominanceDC, 0, 2, 0b00},
		{huffIndexChrominanceDC, 3, 3, 0b110},
		{huffIndexChrominanceAC, 0x00, 2, 0x0},
	} {
		x := theHuffmanLUT[test.h][test.value]
		if got, want := x>>24, test.size; got != want {
			t.Errorf("table %d, value %#x: size %d, want %d", test.h, test.value, got, want)
		}
		if got, want := x&(1<<24-1), test.code; got != want {
			t.Errorf("table %d, value %#x: code %b, want %b", test.h, test.value, got, want)
		}
	}
}

func TestDecodeTable(t *testing.T) {
	dt, err := newDecodeTable(StandardSpecs[huffIndexLuminanceDC])
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		l      int
		min    int32
		max    int32
		valPtr int32
	}{
		{l: 1, max: -1},
		{l: 2, min: 0, max: 0, valPtr: 0},
		{l: 3, min: 2, max: 6, valPtr: 1},
		{l: 4, min: 14, max: 14, valPtr: 6},
		{l: 9, min: 510, max: 510, valPtr: 11},
		{l: 10, max: -1},
	} {
		if got, want := dt.maxCode[test.l], test.max; got != want {
			t.Errorf("maxCode[%d] = %d, want %d", test.l, got, want)
		}
		if test.max < 0 {
			continue
		}
		if got, want := dt.minCode[test.l], test.min; got != want {
			t.Errorf("minCode[%d] = %d, want %d", test.l, got, want)
		}
		if got, want := dt.valPtr[test.l], test.valPtr; got != want {
			t.Errorf("valPtr[%d] = %d, want %d", test.l, got, want)
		}
	}
}

func TestDecodeTableOverflow(t *testing.T) {
	// Three codes of length 1 do not fit.
	s := Spec{Count: [16]byte{3}, Values: []byte{0, 1, 2}}
	if _, err := newDecodeTable(s); err == nil {
		t.Fatalf("newDecodeTable(%v) unexpectedly succeeded", s)
	}
}

func TestEmit(t *testing.T) {
	type bits struct {
		bits, n uint32
	}
	for _, test := range []struct {
		num  int
		emit []bits
		want []byte
	}{
		{
			num:  1,
			emit: []bits{{0x0, 1}},
			want: []byte{0x7f}, // 0b, padded with 1111111b
		},

		{
			num:  2,
			emit: []bits{{0x1, 1}},
			want: []byte{0xff, 0x00}, // padding produces 0xff, which is stuffed
		},

		{
			num:  3,
			emit: []bits{{0xff, 8}},
			want: []byte{0xff, 0x00},
		},

		{
			num:  4,
			emit: []bits{{0xa, 4}, {0x5, 4}},
			want: []byte{0xa5},
		},

		{
			num:  5,
			emit: []bits{{0x3, 2}, {0xfff, 12}},
			want: []byte{0xff, 0x00, 0xff, 0x00},
		},

		{
			num:  6,
			emit: []bits{{0x0, 16}, {0x1, 3}},
			want: []byte{0x00, 0x00, 0x3f}, // 001b + 11111b
		},
	} {
		t.Run(fmt.Sprintf("%d", test.num), func(t *testing.T) {
			var buf bytes.Buffer
			e := encoder{w: bufio.NewWriter(&buf)}
			for _, b := range test.emit {
				e.emit(b.bits, b.n)
			}
			e.padBits()
			e.flush()
			if e.err != nil {
				t.Fatal(e.err)
			}
			if got, want := buf.Bytes(), test.want; !bytes.Equal(got, want) {
				t.Errorf("unexpected bit stream: got %x, want %x", got, want)
			}
		})
	}
}

func TestReadBit(t *testing.T) {
	d := &decoder{data: []byte{0xa5, 0xff, 0x00, 0x80, 0xff, 0xd9}}
	var got []int32
	for {
		bit, err := d.readBit()
		if err == errTruncated {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, bit)
	}
	want := []int32{
		1, 0, 1, 0, 0, 1, 0, 1, // 0xa5
		1, 1, 1, 1, 1, 1, 1, 1, // 0xff, stuffed 0x00 removed
		1, 0, 0, 0, 0, 0, 0, 0, // 0x80, then the EOI marker ends the data
	}
	if len(got) != len(want) {
		t.Fatalf("read %d bits, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("bit %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestZigIsInverseOfUnzig(t *testing.T) {
	for i := 0; i < blockSize; i++ {
		if got := Zig[Unzig[i]]; got != i {
			t.Errorf("Zig[Unzig[%d]] = %d", i, got)
		}
	}
}
