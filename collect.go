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

package f5stego

import (
	"errors"
	"image"

	"github.com/stapelberg/f5stego/internal/dct"
	"github.com/stapelberg/f5stego/internal/jfif"
	"github.com/stapelberg/f5stego/internal/ycc"
)

// collect transforms m into quantized coefficients: blocks in natural order,
// Y Y Y Y Cb Cr per MCU, MCUs in raster order. The returned header carries
// everything jfif.Encode needs besides the coefficients.
func collect(m image.Image, o *Options) (*jfif.Header, []int32, error) {
	b := m.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return nil, nil, errors.New("image is empty")
	}
	if b.Dx() >= 1<<16 || b.Dy() >= 1<<16 {
		return nil, nil, errors.New("image is too large to encode")
	}
	tables := dct.NewTables(o.quality())
	f := ycc.FromImage(m)
	coeffs := make([]int32, f.Blocks()*64)

	var (
		samples [64]float32
		freq    [64]float64
		off     int
	)
	for my := 0; my < f.MCUsY; my++ {
		for mx := 0; mx < f.MCUsX; mx++ {
			for c, s := range ycc.Sampling {
				p := &f.Planes[c]
				t := tables[dct.Luminance]
				if c != ycc.Y {
					t = tables[dct.Chrominance]
				}
				for v := 0; v < s[1]; v++ {
					for h := 0; h < s[0]; h++ {
						p.Block(&samples, (mx*s[0]+h)*8, (my*s[1]+v)*8)
						dct.Forward(&freq, &samples)
						dct.Quantize((*[64]int32)(coeffs[off:off+64]), &freq, t)
						off += 64
					}
				}
			}
		}
	}

	h := &jfif.Header{
		Width:           f.Width,
		Height:          f.Height,
		Quant:           [2]*[64]int{&tables[dct.Luminance].Quanta, &tables[dct.Chrominance].Quanta},
		Comment:         o.comment(),
		RestartInterval: o.restartInterval(),
	}
	return h, coeffs, nil
}
