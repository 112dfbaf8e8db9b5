// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jfif

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// bitCount counts the number of bits needed to hold an integer.
var bitCount = [256]byte{
	0, 1, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 4, 4, 4, 4,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
}

// jfifAPP0 is the JFIF 1.01 identifier with a 96×96 dpi density and no
// thumbnail, preceded by its marker and length.
var jfifAPP0 = []byte{
	0xff, app0Marker, 0x00, 0x10,
	'J', 'F', 'I', 'F', 0x00,
	0x01, 0x01, // version 1.01
	0x01,       // density unit: dots per inch
	0x00, 0x60, // X density
	0x00, 0x60, // Y density
	0x00, 0x00, // no thumbnail
}

// sosHeaderYCbCr is the SOS marker "\xff\xda" followed by 12 bytes:
//   - the marker length "\x00\x0c",
//   - the number of components "\x03",
//   - component 1 uses DC table 0 and AC table 0 "\x01\x00",
//   - component 2 uses DC table 1 and AC table 1 "\x02\x11",
//   - component 3 uses DC table 1 and AC table 1 "\x03\x11",
//   - the bytes "\x00\x3f\x00". Section B.2.3 of ITU-T T.81 says that for
//     sequential DCTs, those bytes (8-bit Ss, 8-bit Se, 4-bit Ah, 4-bit Al)
//     should be 0x00, 0x3f, 0x00<<4 | 0x00.
var sosHeaderYCbCr = []byte{
	0xff, 0xda, 0x00, 0x0c, 0x03, 0x01, 0x00, 0x02,
	0x11, 0x03, 0x11, 0x00, 0x3f, 0x00,
}

// Header describes the file written by Encode.
type Header struct {
	Width, Height int

	// Quant holds the luminance and chrominance quantization tables in
	// natural order.
	Quant [2]*[blockSize]int

	// Comment is written as a COM segment unless it is empty.
	Comment string

	// RestartInterval, if positive, is the number of MCUs between RSTn
	// markers.
	RestartInterval int
}

// MCUs returns the number of MCUs per row and per column of an image with
// the dimensions of h.
func (h *Header) MCUs() (x, y int) {
	return (h.Width + 15) / 16, (h.Height + 15) / 16
}

// writer is a buffered writer.
type writer interface {
	Flush() error
	io.Writer
	io.ByteWriter
}

// encoder writes the container and the entropy-coded data.
type encoder struct {
	// w is the writer to write to. err is the first error encountered during
	// writing. All attempted writes after the first error become no-ops.
	w   writer
	err error
	// buf is a scratch buffer.
	buf [16]byte
	// bits and nBits are accumulated bits to write to w.
	bits, nBits uint32
}

func (e *encoder) flush() {
	if e.err != nil {
		return
	}
	e.err = e.w.Flush()
}

func (e *encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}

func (e *encoder) writeByte(b byte) {
	if e.err != nil {
		return
	}
	e.err = e.w.WriteByte(b)
}

// emit emits the least significant nBits bits of bits to the bit-stream.
// The precondition is bits < 1<<nBits && nBits <= 16.
func (e *encoder) emit(bits, nBits uint32) {
	nBits += e.nBits
	bits <<= 32 - nBits
	bits |= e.bits
	for nBits >= 8 {
		b := uint8(bits >> 24)
		e.writeByte(b)
		if b == 0xff {
			e.writeByte(0x00)
		}
		bits <<= 8
		nBits -= 8
	}
	e.bits, e.nBits = bits, nBits
}

// padBits fills the last partial byte with 1 bits.
func (e *encoder) padBits() {
	e.emit(0x7f, 7)
	e.bits, e.nBits = 0, 0
}

// emitHuff emits the given value with the given Huffman encoder.
func (e *encoder) emitHuff(h huffIndex, value int32) {
	x := theHuffmanLUT[h][value]
	e.emit(x&(1<<24-1), x>>24)
}

// emitHuffRLE emits a run of runLength copies of value encoded with the given
// Huffman encoder.
func (e *encoder) emitHuffRLE(h huffIndex, runLength, value int32) {
	a, b := value, value
	if a < 0 {
		a, b = -value, value-1
	}
	var nBits uint32
	if a < 0x100 {
		nBits = uint32(bitCount[a])
	} else {
		nBits = 8 + uint32(bitCount[a>>8])
	}
	e.emitHuff(h, runLength<<4|int32(nBits))
	if nBits > 0 {
		e.emit(uint32(b)&(1<<nBits-1), nBits)
	}
}

// writeMarkerHeader writes the header for a marker with the given length.
func (e *encoder) writeMarkerHeader(marker uint8, markerlen int) {
	e.buf[0] = 0xff
	e.buf[1] = marker
	e.buf[2] = uint8(markerlen >> 8)
	e.buf[3] = uint8(markerlen & 0xff)
	e.write(e.buf[:4])
}

// writeCOM writes the COMment marker.
func (e *encoder) writeCOM(comment string) {
	e.writeMarkerHeader(comMarker, 2+len(comment))
	e.write([]byte(comment))
}

// writeDQT writes the Define Quantization Table marker. The tables are
// stored in zig-zag order.
func (e *encoder) writeDQT(quant [2]*[blockSize]int) {
	const markerlen = 2 + 2*(1+blockSize)
	e.writeMarkerHeader(dqtMarker, markerlen)
	for i, q := range quant {
		e.writeByte(uint8(i))
		for zig := 0; zig < blockSize; zig++ {
			e.writeByte(uint8(q[Unzig[zig]]))
		}
	}
}

// writeSOF0 writes the Start Of Frame (Baseline) marker.
func (e *encoder) writeSOF0(width, height int) {
	markerlen := 8 + 3*len(frameComponents)
	e.writeMarkerHeader(sof0Marker, markerlen)
	e.buf[0] = 8 // 8-bit color.
	e.buf[1] = uint8(height >> 8)
	e.buf[2] = uint8(height & 0xff)
	e.buf[3] = uint8(width >> 8)
	e.buf[4] = uint8(width & 0xff)
	e.buf[5] = uint8(len(frameComponents))
	for i, c := range frameComponents {
		e.buf[3*i+6] = c.ID
		e.buf[3*i+7] = uint8(c.H<<4 | c.V)
		e.buf[3*i+8] = c.Tq
	}
	e.write(e.buf[:3*(len(frameComponents)-1)+9])
}

// writeDHT writes the Define Huffman Table marker.
func (e *encoder) writeDHT() {
	markerlen := 2
	for _, s := range StandardSpecs {
		markerlen += 1 + 16 + len(s.Values)
	}
	e.writeMarkerHeader(dhtMarker, markerlen)
	for i, s := range StandardSpecs {
		e.writeByte("\x00\x10\x01\x11"[i])
		e.write(s.Count[:])
		e.write(s.Values)
	}
}

// writeDRI writes the Define Restart Interval marker.
func (e *encoder) writeDRI(interval int) {
	e.writeMarkerHeader(driMarker, 4)
	e.buf[0] = uint8(interval >> 8)
	e.buf[1] = uint8(interval & 0xff)
	e.write(e.buf[:2])
}

// writeBlock writes one block of quantized coefficients in natural order,
// returning its DC value.
func (e *encoder) writeBlock(b []int32, dcTable, acTable huffIndex, prevDC int32) int32 {
	// Emit the DC delta.
	e.emitHuffRLE(dcTable, 0, b[0]-prevDC)
	// Emit the AC components.
	runLength := int32(0)
	for zig := 1; zig < blockSize; zig++ {
		ac := b[Unzig[zig]]
		if ac == 0 {
			runLength++
			continue
		}
		for runLength > 15 {
			e.emitHuff(acTable, 0xf0)
			runLength -= 16
		}
		e.emitHuffRLE(acTable, runLength, ac)
		runLength = 0
	}
	if runLength > 0 {
		e.emitHuff(acTable, 0x00)
	}
	return b[0]
}

// writeScan writes the entropy-coded data of coeffs.
func (e *encoder) writeScan(h *Header, coeffs []int32) {
	mcusX, mcusY := h.MCUs()
	mcus := mcusX * mcusY
	var prevDC [3]int32
	rst := 0
	for m := 0; m < mcus; m++ {
		if h.RestartInterval > 0 && m > 0 && m%h.RestartInterval == 0 {
			e.padBits()
			e.writeByte(0xff)
			e.writeByte(uint8(rst0Marker + rst))
			rst = (rst + 1) & 7
			prevDC = [3]int32{}
		}
		mcu := coeffs[m*BlocksPerMCU*blockSize:]
		for i := 0; i < BlocksPerMCU; i++ {
			b := mcu[i*blockSize : (i+1)*blockSize]
			switch {
			case i < 4:
				prevDC[0] = e.writeBlock(b, huffIndexLuminanceDC, huffIndexLuminanceAC, prevDC[0])
			default:
				c := i - 3
				prevDC[c] = e.writeBlock(b, huffIndexChrominanceDC, huffIndexChrominanceAC, prevDC[c])
			}
		}
	}
	e.padBits()
}

// Encode writes a complete JFIF file to w. coeffs holds BlocksPerMCU blocks
// per MCU in natural order, with MCUs in raster order.
func Encode(w io.Writer, h *Header, coeffs []int32) error {
	if h.Width < 1 || h.Height < 1 {
		return errors.New("jfif: image is empty")
	}
	if h.Width >= 1<<16 || h.Height >= 1<<16 {
		return errors.New("jfif: image is too large to encode")
	}
	if len(h.Comment) > 0xffff-2 {
		return errors.New("jfif: comment is too long")
	}
	if h.RestartInterval < 0 || h.RestartInterval > 0xffff {
		return fmt.Errorf("jfif: restart interval %d out of range", h.RestartInterval)
	}
	mcusX, mcusY := h.MCUs()
	if got, want := len(coeffs), mcusX*mcusY*BlocksPerMCU*blockSize; got != want {
		return fmt.Errorf("jfif: got %d coefficients, want %d", got, want)
	}
	for i, q := range h.Quant {
		if q == nil {
			return fmt.Errorf("jfif: quantization table %d missing", i)
		}
	}

	var e encoder
	if ww, ok := w.(writer); ok {
		e.w = ww
	} else {
		e.w = bufio.NewWriter(w)
	}
	// Write the Start Of Image marker.
	e.buf[0] = 0xff
	e.buf[1] = soiMarker
	e.write(e.buf[:2])
	e.write(jfifAPP0)
	if h.Comment != "" {
		e.writeCOM(h.Comment)
	}
	e.writeDQT(h.Quant)
	e.writeSOF0(h.Width, h.Height)
	e.writeDHT()
	if h.RestartInterval > 0 {
		e.writeDRI(h.RestartInterval)
	}
	e.write(sosHeaderYCbCr)
	e.writeScan(h, coeffs)
	// Write the End Of Image marker.
	e.buf[0] = 0xff
	e.buf[1] = eoiMarker
	e.write(e.buf[:2])
	e.flush()
	return e.err
}
