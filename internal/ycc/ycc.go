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

// Package ycc converts an RGB raster into the padded, 4:2:0 subsampled
// Y/Cb/Cr planes from which the encoder takes its 8×8 blocks.
package ycc

import (
	"image"
	"image/color"
)

// Component indices.
const (
	Y  = 0
	Cb = 1
	Cr = 2
)

// Sampling factors per component (horizontal, vertical).
var Sampling = [3][2]int{
	{2, 2},
	{1, 1},
	{1, 1},
}

// Plane is one component, row-major.
type Plane struct {
	Width, Height int
	Pix           []float32
}

func newPlane(w, h int) Plane {
	return Plane{Width: w, Height: h, Pix: make([]float32, w*h)}
}

// Block copies the 8×8 block whose top left sample is (x, y) into dst.
// Coordinates outside of the plane are clamped to its last row and column.
func (p *Plane) Block(dst *[64]float32, x, y int) {
	for a := 0; a < 8; a++ {
		row := y + a
		if row >= p.Height {
			row = p.Height - 1
		}
		for b := 0; b < 8; b++ {
			col := x + b
			if col >= p.Width {
				col = p.Width - 1
			}
			dst[a*8+b] = p.Pix[row*p.Width+col]
		}
	}
}

// Frame holds the three planes of one image.
type Frame struct {
	// Width and Height are the dimensions of the source raster.
	Width, Height int

	// MCUsX and MCUsY count the 16×16 minimum coded units.
	MCUsX, MCUsY int

	Planes [3]Plane
}

// Blocks returns the number of 8×8 blocks of the frame.
func (f *Frame) Blocks() int {
	per := 0
	for _, s := range Sampling {
		per += s[0] * s[1]
	}
	return f.MCUsX * f.MCUsY * per
}

// rgbAt returns the 8-bit RGB values of the pixel at (x, y) relative to the
// bounds' origin.
type rgbAt func(x, y int) (r, g, b uint8)

func sampler(m image.Image) rgbAt {
	bounds := m.Bounds()
	switch m := m.(type) {
	case *image.RGBA:
		// Pix is alpha-premultiplied.
		if !m.Opaque() {
			break
		}
		return func(x, y int) (uint8, uint8, uint8) {
			i := m.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
		}
	case *image.NRGBA:
		return func(x, y int) (uint8, uint8, uint8) {
			i := m.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
		}
	case *image.YCbCr:
		return func(x, y int) (uint8, uint8, uint8) {
			yi := m.YOffset(bounds.Min.X+x, bounds.Min.Y+y)
			ci := m.COffset(bounds.Min.X+x, bounds.Min.Y+y)
			return color.YCbCrToRGB(m.Y[yi], m.Cb[ci], m.Cr[ci])
		}
	}
	return func(x, y int) (uint8, uint8, uint8) {
		c := color.NRGBAModel.Convert(m.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
		return c.R, c.G, c.B
	}
}

// FromImage converts m. Pixels beyond the bounds of m repeat the last valid
// row and column.
func FromImage(m image.Image) *Frame {
	bounds := m.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	f := &Frame{
		Width:  w,
		Height: h,
		MCUsX:  (w + 15) / 16,
		MCUsY:  (h + 15) / 16,
	}
	fullW, fullH := f.MCUsX*16, f.MCUsY*16
	if w == 0 || h == 0 {
		for c := range f.Planes {
			f.Planes[c] = newPlane(0, 0)
		}
		return f
	}

	at := sampler(m)
	var full [3]Plane
	for c := range full {
		full[c] = newPlane(fullW, fullH)
	}
	for y := 0; y < fullH; y++ {
		sy := y
		if sy >= h {
			sy = h - 1
		}
		for x := 0; x < fullW; x++ {
			sx := x
			if sx >= w {
				sx = w - 1
			}
			r8, g8, b8 := at(sx, sy)
			r, g, b := float32(r8), float32(g8), float32(b8)
			i := y*fullW + x
			full[Y].Pix[i] = 0.299*r + 0.587*g + 0.114*b
			full[Cb].Pix[i] = 128 + (-0.16874*r - 0.33126*g + 0.5*b)
			full[Cr].Pix[i] = 128 + (0.5*r - 0.41869*g - 0.08131*b)
		}
	}

	f.Planes[Y] = full[Y]
	f.Planes[Cb] = downsample(&full[Cb])
	f.Planes[Cr] = downsample(&full[Cr])
	return f
}

// downsample halves p in both directions with a 2×2 box filter. The
// rounding bias alternates between 1 and 2 across each output row so that
// rounding errors do not accumulate in one direction.
func downsample(p *Plane) Plane {
	out := newPlane(p.Width/2, p.Height/2)
	for y := 0; y < out.Height; y++ {
		in0 := p.Pix[(2*y)*p.Width:]
		in1 := p.Pix[(2*y+1)*p.Width:]
		bias := float32(1)
		for x := 0; x < out.Width; x++ {
			sum := in0[2*x] + in0[2*x+1] + in1[2*x] + in1[2*x+1]
			out.Pix[y*out.Width+x] = (sum + bias) / 4
			bias = 3 - bias
		}
	}
	return out
}
