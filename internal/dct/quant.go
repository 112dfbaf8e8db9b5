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

package dct

import "math"

// DefaultQuality is the quality used when none is configured.
const DefaultQuality = 80

// Table indices.
const (
	Luminance   = 0
	Chrominance = 1
)

// base holds the quantization tables of ITU-T T.81 Annex K.1 in natural
// (row-major) order.
var base = [2][64]int{
	{
		16, 11, 10, 16, 24, 40, 51, 61,
		12, 12, 14, 19, 26, 58, 60, 55,
		14, 13, 16, 24, 40, 57, 69, 56,
		14, 17, 22, 29, 51, 87, 80, 62,
		18, 22, 37, 56, 68, 109, 103, 77,
		24, 35, 55, 64, 81, 104, 113, 92,
		49, 64, 78, 87, 103, 121, 120, 101,
		72, 92, 95, 98, 112, 100, 103, 99,
	},
	{
		17, 18, 24, 47, 99, 99, 99, 99,
		18, 21, 26, 66, 99, 99, 99, 99,
		24, 26, 56, 99, 99, 99, 99, 99,
		47, 66, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
	},
}

// aanScale holds the AAN scale factors cos(k*pi/16)*sqrt(2) for k > 0.
var aanScale = [8]float64{
	1.0, 1.387039845, 1.306562965, 1.175875602,
	1.0, 0.785694958, 0.541196100, 0.275899379,
}

// Table is one scaled quantization table.
type Table struct {
	// Quanta are the quantizer step sizes in natural order, each in [1,255].
	Quanta [64]int

	// Divisors fold the step size and the AAN output scaling into one
	// multiplier per coefficient.
	Divisors [64]float64
}

// ClampQuality maps q into [1,100].
func ClampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// Scale converts a quality in [1,100] into the percentage applied to the
// base tables, as libjpeg does.
func Scale(quality int) int {
	quality = ClampQuality(quality)
	if quality < 50 {
		return 5000 / quality
	}
	return 200 - quality*2
}

// NewTables returns the luminance and chrominance tables for quality.
func NewTables(quality int) [2]*Table {
	scale := Scale(quality)
	var tables [2]*Table
	for i := range tables {
		t := &Table{}
		for j, b := range base[i] {
			q := (b*scale + 50) / 100
			if q < 1 {
				q = 1
			} else if q > 255 {
				q = 255
			}
			t.Quanta[j] = q
		}
		for row := 0; row < 8; row++ {
			for col := 0; col < 8; col++ {
				q := float64(t.Quanta[row*8+col])
				t.Divisors[row*8+col] = 1.0 / (q * aanScale[row] * aanScale[col] * 8.0)
			}
		}
		tables[i] = t
	}
	return tables
}

// Coefficient limits of 8-bit baseline JPEG. Level shifted samples keep the
// DC term within ±1024, so DC differences fit the 11-bit size categories.
const (
	maxDC = 1024
	maxAC = 1023
)

// Quantize divides the output of Forward by t. Ties round to the even
// neighbour, which keeps the output identical to other F5 encoders.
func Quantize(dst *[64]int32, src *[64]float64, t *Table) {
	for i, v := range src {
		q := math.RoundToEven(v * t.Divisors[i])
		lim := float64(maxAC)
		if i == 0 {
			lim = maxDC
		}
		if q > lim {
			q = lim
		} else if q < -lim {
			q = -lim
		}
		dst[i] = int32(q)
	}
}
