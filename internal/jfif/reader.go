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
	"errors"
	"fmt"
	"io"
)

// Scan is the decoded content of a baseline file.
type Scan struct {
	Width, Height int
	Components    []Component

	// MCUsX and MCUsY count the MCUs of the scan.
	MCUsX, MCUsY int

	// Coeffs holds all blocks in MCU order. Within a block, coefficients are
	// in zig-zag order.
	Coeffs []int32

	// Comment is the text of the last COM segment, if any.
	Comment string

	RestartInterval int

	// Truncated is set when the entropy-coded data ended early. Blocks
	// which could not be decoded are left zero.
	Truncated bool
}

// errTruncated is returned by the bit reader when it runs out of
// entropy-coded data.
var errTruncated = errors.New("entropy-coded data truncated")

type decoder struct {
	data []byte
	pos  int

	// cur holds the byte being consumed bit by bit, nBits the number of its
	// bits not yet consumed.
	cur   byte
	nBits uint

	width, height   int
	comps           []Component
	restartInterval int
	comment         string
	huff            [2][4]*decodeTable
	quantDefined    [4]bool
}

// Decode reads a baseline JPEG file from r and returns its coefficients.
func Decode(r io.Reader) (*Scan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	d := &decoder{data: data}
	return d.decode()
}

// nextMarker returns the next marker, skipping fill bytes.
func (d *decoder) nextMarker() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, FormatError("missing EOI marker")
	}
	if d.data[d.pos] != 0xff {
		return 0, FormatError(fmt.Sprintf("expected marker at offset %d, found %#02x", d.pos, d.data[d.pos]))
	}
	for d.pos < len(d.data) && d.data[d.pos] == 0xff {
		d.pos++
	}
	if d.pos >= len(d.data) {
		return 0, FormatError("missing EOI marker")
	}
	marker := d.data[d.pos]
	d.pos++
	return marker, nil
}

// segment returns the payload of the marker segment at the current position
// and advances past it.
func (d *decoder) segment() ([]byte, error) {
	if d.pos+2 > len(d.data) {
		return nil, FormatError("short segment length")
	}
	n := int(d.data[d.pos])<<8 | int(d.data[d.pos+1])
	if n < 2 {
		return nil, FormatError("bad segment length")
	}
	if d.pos+n > len(d.data) {
		return nil, FormatError("segment exceeds file")
	}
	payload := d.data[d.pos+2 : d.pos+n]
	d.pos += n
	return payload, nil
}

func (d *decoder) decode() (*Scan, error) {
	if len(d.data) < 2 || d.data[0] != 0xff || d.data[1] != soiMarker {
		return nil, FormatError("missing SOI marker")
	}
	d.pos = 2
	for {
		marker, err := d.nextMarker()
		if err != nil {
			return nil, err
		}
		switch {
		case marker == eoiMarker:
			return nil, FormatError("no scan before EOI")
		case marker == temMarker || (rst0Marker <= marker && marker <= rst7Marker):
			// Parameterless markers outside of a scan carry no data.
			continue
		}
		payload, err := d.segment()
		if err != nil {
			return nil, err
		}
		switch {
		case marker == sof0Marker || marker == sof1Marker:
			err = d.processSOF(payload)
		case marker == dhtMarker:
			err = d.processDHT(payload)
		case marker == dqtMarker:
			err = d.processDQT(payload)
		case marker == driMarker:
			err = d.processDRI(payload)
		case marker == comMarker:
			d.comment = string(payload)
		case marker == sosMarker:
			return d.processSOS(payload)
		case app0Marker <= marker && marker <= app15Marker:
			// Application data (JFIF, Exif, ICC profiles, …) is skipped.
		case jpg0Marker <= marker && marker <= jpg13Marker:
			// Reserved for JPEG extensions, skipped.
		case marker == sof2Marker:
			err = UnsupportedError("progressive mode")
		case marker == dacMarker:
			err = UnsupportedError("arithmetic coding")
		case sof3Marker <= marker && marker <= sof15Marker && marker != dhtMarker && marker != jpgMarker:
			err = UnsupportedError(fmt.Sprintf("SOF marker %#02x", marker))
		default:
			err = FormatError(fmt.Sprintf("unexpected marker %#02x", marker))
		}
		if err != nil {
			return nil, err
		}
	}
}

func (d *decoder) processSOF(p []byte) error {
	if d.comps != nil {
		return FormatError("multiple SOF markers")
	}
	if len(p) < 6 {
		return FormatError("short SOF segment")
	}
	if p[0] != 8 {
		return UnsupportedError(fmt.Sprintf("precision %d", p[0]))
	}
	d.height = int(p[1])<<8 | int(p[2])
	d.width = int(p[3])<<8 | int(p[4])
	if d.height == 0 {
		return UnsupportedError("DNL height")
	}
	if d.width == 0 {
		return FormatError("zero width")
	}
	n := int(p[5])
	if n != 1 && n != 3 {
		return UnsupportedError(fmt.Sprintf("%d components", n))
	}
	if len(p) != 6+3*n {
		return FormatError("bad SOF length")
	}
	comps := make([]Component, n)
	for i := range comps {
		c := &comps[i]
		c.ID = p[6+3*i]
		c.H = int(p[7+3*i] >> 4)
		c.V = int(p[7+3*i] & 0x0f)
		c.Tq = p[8+3*i]
		if c.H < 1 || c.H > 2 || c.V < 1 || c.V > 2 {
			return UnsupportedError(fmt.Sprintf("sampling factors %dx%d", c.H, c.V))
		}
		if c.Tq > 3 {
			return FormatError("bad quantization table selector")
		}
		for _, o := range comps[:i] {
			if o.ID == c.ID {
				return FormatError("repeated component identifier")
			}
		}
	}
	if n == 1 {
		// A single component is never interleaved: every MCU is one block.
		comps[0].H, comps[0].V = 1, 1
	}
	d.comps = comps
	return nil
}

func (d *decoder) processDHT(p []byte) error {
	for len(p) > 0 {
		if len(p) < 17 {
			return FormatError("short DHT segment")
		}
		class, id := p[0]>>4, p[0]&0x0f
		if class > 1 || id > 3 {
			return FormatError("bad Huffman table class or identifier")
		}
		var s Spec
		copy(s.Count[:], p[1:17])
		total := 0
		for _, c := range s.Count {
			total += int(c)
		}
		if total > 256 || 17+total > len(p) {
			return FormatError("bad Huffman table length")
		}
		s.Values = append([]byte(nil), p[17:17+total]...)
		t, err := newDecodeTable(s)
		if err != nil {
			return err
		}
		d.huff[class][id] = t
		p = p[17+total:]
	}
	return nil
}

func (d *decoder) processDQT(p []byte) error {
	for len(p) > 0 {
		pq, tq := p[0]>>4, p[0]&0x0f
		if tq > 3 {
			return FormatError("bad quantization table identifier")
		}
		n := 1 + blockSize
		switch pq {
		case 0:
		case 1:
			n = 1 + 2*blockSize
		default:
			return FormatError("bad quantization table precision")
		}
		if len(p) < n {
			return FormatError("short DQT segment")
		}
		d.quantDefined[tq] = true
		p = p[n:]
	}
	return nil
}

func (d *decoder) processDRI(p []byte) error {
	if len(p) != 2 {
		return FormatError("bad DRI length")
	}
	d.restartInterval = int(p[0])<<8 | int(p[1])
	return nil
}

func (d *decoder) processSOS(p []byte) (*Scan, error) {
	if d.comps == nil {
		return nil, FormatError("missing SOF marker")
	}
	if len(p) < 1 {
		return nil, FormatError("short SOS segment")
	}
	ns := int(p[0])
	if len(p) != 4+2*ns {
		return nil, FormatError("bad SOS length")
	}
	if ns != len(d.comps) {
		return nil, UnsupportedError("non-interleaved scans")
	}
	type scanComp struct {
		comp   Component
		dc, ac *decodeTable
	}
	scomps := make([]scanComp, ns)
	for i := range scomps {
		id, tables := p[1+2*i], p[2+2*i]
		idx := -1
		for j, c := range d.comps {
			if c.ID == id {
				idx = j
			}
		}
		if idx < 0 {
			return nil, FormatError("unknown component selector")
		}
		td, ta := tables>>4, tables&0x0f
		if td > 3 || ta > 3 {
			return nil, FormatError("bad Huffman table selector")
		}
		sc := scanComp{comp: d.comps[idx], dc: d.huff[0][td], ac: d.huff[1][ta]}
		if sc.dc == nil || sc.ac == nil {
			return nil, FormatError("undefined Huffman table")
		}
		if !d.quantDefined[sc.comp.Tq] {
			return nil, FormatError("undefined quantization table")
		}
		scomps[i] = sc
	}
	ss, se, ahal := p[1+2*ns], p[2+2*ns], p[3+2*ns]
	if ss != 0 || se != 63 || ahal != 0 {
		return nil, UnsupportedError("spectral selection or successive approximation")
	}

	hmax, vmax, perMCU := 1, 1, 0
	for _, c := range d.comps {
		if c.H > hmax {
			hmax = c.H
		}
		if c.V > vmax {
			vmax = c.V
		}
		perMCU += c.H * c.V
	}
	s := &Scan{
		Width:           d.width,
		Height:          d.height,
		Components:      d.comps,
		MCUsX:           (d.width + 8*hmax - 1) / (8 * hmax),
		MCUsY:           (d.height + 8*vmax - 1) / (8 * vmax),
		Comment:         d.comment,
		RestartInterval: d.restartInterval,
	}
	mcus := s.MCUsX * s.MCUsY
	s.Coeffs = make([]int32, mcus*perMCU*blockSize)

	pred := make([]int32, ns)
	rst := 0
	blk := 0
	for m := 0; m < mcus; m++ {
		if d.restartInterval > 0 && m > 0 && m%d.restartInterval == 0 {
			if err := d.restart(rst); err != nil {
				if err == errTruncated {
					s.Truncated = true
					return s, nil
				}
				return nil, err
			}
			rst = (rst + 1) & 7
			for i := range pred {
				pred[i] = 0
			}
		}
		for i, sc := range scomps {
			for n := 0; n < sc.comp.H*sc.comp.V; n++ {
				b := s.Coeffs[blk*blockSize : (blk+1)*blockSize]
				if err := d.decodeBlock(b, sc.dc, sc.ac, &pred[i]); err != nil {
					if err == errTruncated {
						s.Truncated = true
						return s, nil
					}
					return nil, err
				}
				blk++
			}
		}
	}
	return s, nil
}

// restart consumes the RSTn marker expected at a restart boundary. Bits
// remaining in the current byte are padding.
func (d *decoder) restart(n int) error {
	d.nBits = 0
	if d.pos+2 > len(d.data) {
		return errTruncated
	}
	if d.data[d.pos] != 0xff || d.data[d.pos+1] != byte(rst0Marker+n) {
		return FormatError("bad RST marker")
	}
	d.pos += 2
	return nil
}

// readBit returns the next bit of the entropy-coded data, removing the 0x00
// stuffed after each 0xff byte. A marker ends the data.
func (d *decoder) readBit() (int32, error) {
	if d.nBits == 0 {
		if d.pos >= len(d.data) {
			return 0, errTruncated
		}
		b := d.data[d.pos]
		if b == 0xff {
			if d.pos+1 >= len(d.data) || d.data[d.pos+1] != 0x00 {
				return 0, errTruncated
			}
			d.pos++
		}
		d.pos++
		d.cur = b
		d.nBits = 8
	}
	d.nBits--
	return int32(d.cur>>d.nBits) & 1, nil
}

// receive reads s bits and sign-extends them (ITU-T T.81 F.2.2.1).
func (d *decoder) receive(s uint8) (int32, error) {
	v := int32(0)
	for i := uint8(0); i < s; i++ {
		bit, err := d.readBit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | bit
	}
	if s > 0 && v < 1<<(s-1) {
		v += -1<<s + 1
	}
	return v, nil
}

// decodeHuffman implements the DECODE procedure of ITU-T T.81 F.2.2.3.
func (d *decoder) decodeHuffman(t *decodeTable) (uint8, error) {
	code := int32(0)
	for l := 1; l <= 16; l++ {
		bit, err := d.readBit()
		if err != nil {
			return 0, err
		}
		code = code<<1 | bit
		if code <= t.maxCode[l] {
			return t.values[t.valPtr[l]+code-t.minCode[l]], nil
		}
	}
	return 0, FormatError("bad Huffman code")
}

// decodeBlock decodes one block into b, in zig-zag order.
func (d *decoder) decodeBlock(b []int32, dc, ac *decodeTable, pred *int32) error {
	t, err := d.decodeHuffman(dc)
	if err != nil {
		return err
	}
	if t > 11 {
		return FormatError("bad DC size category")
	}
	diff, err := d.receive(t)
	if err != nil {
		return err
	}
	*pred += diff
	b[0] = *pred

	for k := 1; k < blockSize; {
		rs, err := d.decodeHuffman(ac)
		if err != nil {
			return err
		}
		r, s := int(rs>>4), rs&0x0f
		if s == 0 {
			if r != 0x0f {
				break // EOB
			}
			k += 16
			continue
		}
		if s > 10 {
			return FormatError("bad AC size category")
		}
		k += r
		if k >= blockSize {
			return FormatError("AC coefficient index out of range")
		}
		v, err := d.receive(s)
		if err != nil {
			return err
		}
		b[k] = v
		k++
	}
	return nil
}
