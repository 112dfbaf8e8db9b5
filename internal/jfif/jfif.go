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

// Package jfif reads and writes baseline JPEG files at the level of
// quantized DCT coefficients, without any pixel processing.
//
// The writer produces 4:2:0 YCbCr files with the standard Huffman tables of
// ITU-T T.81 Annex K.3. The reader accepts any single-scan baseline file
// with one or three components and returns its coefficients in the order in
// which they appear in the entropy-coded data: blocks in MCU order, and the
// 64 entries of each block in zig-zag order.
package jfif

const blockSize = 64

// See https://www.w3.org/Graphics/JPEG/itu-t81.pdf Table B.1.
const (
	sof0Marker  = 0xc0 // Start Of Frame (Baseline Sequential).
	sof1Marker  = 0xc1 // Start Of Frame (Extended Sequential).
	sof2Marker  = 0xc2 // Start Of Frame (Progressive).
	sof3Marker  = 0xc3 // Start Of Frame (Lossless).
	dhtMarker   = 0xc4 // Define Huffman Table.
	jpgMarker   = 0xc8 // Reserved for JPEG extensions.
	dacMarker   = 0xcc // Define Arithmetic Coding conditioning.
	sof15Marker = 0xcf
	rst0Marker  = 0xd0 // ReSTart (0).
	rst7Marker  = 0xd7 // ReSTart (7).
	soiMarker   = 0xd8 // Start Of Image.
	eoiMarker   = 0xd9 // End Of Image.
	sosMarker   = 0xda // Start Of Scan.
	dqtMarker   = 0xdb // Define Quantization Table.
	driMarker   = 0xdd // Define Restart Interval.
	app0Marker  = 0xe0
	app15Marker = 0xef
	jpg0Marker  = 0xf0
	jpg13Marker = 0xfd
	comMarker   = 0xfe // COMment.
	temMarker   = 0x01 // Temporary, no parameters.
)

// Unzig maps from the zig-zag ordering to the natural ordering. For example,
// Unzig[3] is the column and row of the fourth element in zig-zag order. The
// value is 16, which means first column (16%8 == 0) and third row (16/8 ==
// 2).
var Unzig = [blockSize]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// Zig is the inverse of Unzig: Zig[i] is the zig-zag position of the
// coefficient at natural position i.
var Zig = [blockSize]int{
	0, 1, 5, 6, 14, 15, 27, 28,
	2, 4, 7, 13, 16, 26, 29, 42,
	3, 8, 12, 17, 25, 30, 41, 43,
	9, 11, 18, 24, 31, 40, 44, 53,
	10, 19, 23, 32, 39, 45, 52, 54,
	20, 22, 33, 38, 46, 51, 55, 60,
	21, 34, 37, 47, 50, 56, 59, 61,
	35, 36, 48, 49, 57, 58, 62, 63,
}

// A FormatError reports that the input is not a valid JPEG.
type FormatError string

func (e FormatError) Error() string { return "invalid JPEG format: " + string(e) }

// An UnsupportedError reports that the input uses a valid but unimplemented
// JPEG feature.
type UnsupportedError string

func (e UnsupportedError) Error() string { return "unsupported JPEG feature: " + string(e) }

// Component describes one image component of a frame.
type Component struct {
	ID byte
	// H and V are the horizontal and vertical sampling factors.
	H, V int
	// Tq selects the quantization table.
	Tq byte
}

// frameComponents are the components written by Encode.
var frameComponents = [3]Component{
	{ID: 1, H: 2, V: 2, Tq: 0},
	{ID: 2, H: 1, V: 1, Tq: 1},
	{ID: 3, H: 1, V: 1, Tq: 1},
}

// BlocksPerMCU is the number of blocks in one MCU written by Encode: four
// luminance blocks followed by one block each of Cb and Cr.
const BlocksPerMCU = 6
