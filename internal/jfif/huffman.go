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

import "fmt"

type huffIndex int

const (
	huffIndexLuminanceDC huffIndex = iota
	huffIndexLuminanceAC
	huffIndexChrominanceDC
	huffIndexChrominanceAC
	nHuffIndex
)

// Spec specifies a Huffman table as stored in a DHT segment.
type Spec struct {
	// Count[i] is the number of codes of length i+1 bits.
	Count [16]byte
	// Values are the decoded values, ordered by code.
	Values []byte
}

// StandardSpecs are the tables of ITU-T T.81 Annex K.3, in DHT order:
// luminance DC, luminance AC, chrominance DC, chrominance AC.
var StandardSpecs = [nHuffIndex]Spec{
	// Luminance DC.
	{
		[16]byte{0, 1, 5, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0},
		[]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	},
	// Luminance AC.
	{
		[16]byte{0, 2, 1, 3, 3, 2, 4, 3, 5, 5, 4, 4, 0, 0, 1, 125},
		[]byte{
			0x01, 0x02, 0x03, 0x00, 0x04, 0x11, 0x05, 0x12,
			0x21, 0x31, 0x41, 0x06, 0x13, 0x51, 0x61, 0x07,
			0x22, 0x71, 0x14, 0x32, 0x81, 0x91, 0xa1, 0x08,
			0x23, 0x42, 0xb1, 0xc1, 0x15, 0x52, 0xd1, 0xf0,
			0x24, 0x33, 0x62, 0x72, 0x82, 0x09, 0x0a, 0x16,
			0x17, 0x18, 0x19, 0x1a, 0x25, 0x26, 0x27, 0x28,
			0x29, 0x2a, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39,
			0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49,
			0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59,
			0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68, 0x69,
			0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78, 0x79,
			0x7a, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89,
			0x8a, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97, 0x98,
			0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7,
			0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4, 0xb5, 0xb6,
			0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3, 0xc4, 0xc5,
			0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2, 0xd3, 0xd4,
			0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda, 0xe1, 0xe2,
			0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9, 0xea,
			0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
			0xf9, 0xfa,
		},
	},
	// Chrominance DC.
	{
		[16]byte{0, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0},
		[]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	},
	// Chrominance AC.
	{
		[16]byte{0, 2, 1, 2, 4, 4, 3, 4, 7, 5, 4, 4, 0, 1, 2, 119},
		[]byte{
			0x00, 0x01, 0x02, 0x03, 0x11, 0x04, 0x05, 0x21,
			0x31, 0x06, 0x12, 0x41, 0x51, 0x07, 0x61, 0x71,
			0x13, 0x22, 0x32, 0x81, 0x08, 0x14, 0x42, 0x91,
			0xa1, 0xb1, 0xc1, 0x09, 0x23, 0x33, 0x52, 0xf0,
			0x15, 0x62, 0x72, 0xd1, 0x0a, 0x16, 0x24, 0x34,
			0xe1, 0x25, 0xf1, 0x17, 0x18, 0x19, 0x1a, 0x26,
			0x27, 0x28, 0x29, 0x2a, 0x35, 0x36, 0x37, 0x38,
			0x39, 0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48,
			0x49, 0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58,
			0x59, 0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68,
			0x69, 0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78,
			0x79, 0x7a, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87,
			0x88, 0x89, 0x8a, 0x92, 0x93, 0x94, 0x95, 0x96,
			0x97, 0x98, 0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5,
			0xa6, 0xa7, 0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4,
			0xb5, 0xb6, 0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3,
			0xc4, 0xc5, 0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2,
			0xd3, 0xd4, 0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda,
			0xe2, 0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9,
			0xea, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
			0xf9, 0xfa,
		},
	},
}

// codes generates the code size and code of every value of s, in the order
// of s.Values (ITU-T T.81 Annex C, figures C.1 and C.2).
func (s *Spec) codes() (sizes []uint8, codes []uint16, err error) {
	code := uint32(0)
	for l := 1; l <= 16; l++ {
		for i := 0; i < int(s.Count[l-1]); i++ {
			if code >= 1<<uint(l) {
				return nil, nil, FormatError("bad Huffman table: code overflow")
			}
			sizes = append(sizes, uint8(l))
			codes = append(codes, uint16(code))
			code++
		}
		code <<= 1
	}
	if got, want := len(codes), len(s.Values); got != want {
		return nil, nil, FormatError(fmt.Sprintf("bad Huffman table: %d codes for %d values", got, want))
	}
	return sizes, codes, nil
}

// huffmanLUT is a compiled look-up table representation of a Spec for
// encoding. Each value maps to a uint32 of which the 8 most significant bits
// hold the codeword size in bits and the 24 least significant bits hold the
// codeword. The maximum codeword size is 16 bits.
type huffmanLUT []uint32

func (h *huffmanLUT) init(s Spec) error {
	sizes, codes, err := s.codes()
	if err != nil {
		return err
	}
	*h = make([]uint32, 256)
	for i, v := range s.Values {
		(*h)[v] = uint32(sizes[i])<<24 | uint32(codes[i])
	}
	return nil
}

// theHuffmanLUT are compiled representations of StandardSpecs.
var theHuffmanLUT [nHuffIndex]huffmanLUT

func init() {
	for i, s := range StandardSpecs {
		if err := theHuffmanLUT[i].init(s); err != nil {
			panic(err)
		}
	}
}

// decodeTable holds the derived decoding procedure tables of ITU-T T.81
// Annex F.2.2.3 for one Spec. Index l of each array refers to code length l.
type decodeTable struct {
	// maxCode[l] is the largest code of length l, or -1 if there is none.
	maxCode [17]int32
	// minCode[l] is the smallest code of length l.
	minCode [17]int32
	// valPtr[l] is the index into values of the first value with a code of
	// length l.
	valPtr [17]int32
	values []byte
}

func newDecodeTable(s Spec) (*decodeTable, error) {
	_, codes, err := s.codes()
	if err != nil {
		return nil, err
	}
	t := &decodeTable{values: s.Values}
	j := int32(0)
	for l := 1; l <= 16; l++ {
		n := int32(s.Count[l-1])
		if n == 0 {
			t.maxCode[l] = -1
			continue
		}
		t.valPtr[l] = j
		t.minCode[l] = int32(codes[j])
		j += n
		t.maxCode[l] = int32(codes[j-1])
	}
	return t, nil
}
