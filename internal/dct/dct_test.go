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

package dct_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stapelberg/f5stego/internal/dct"
)

// reference computes the orthonormal 2-D DCT-II of ITU-T T.81 A.3.3.
func reference(src *[64]float32) [64]float64 {
	c := func(k int) float64 {
		if k == 0 {
			return 1 / math.Sqrt2
		}
		return 1
	}
	var out [64]float64
	for u := 0; u < 8; u++ {
		for v := 0; v < 8; v++ {
			var sum float64
			for y := 0; y < 8; y++ {
				for x := 0; x < 8; x++ {
					sum += (float64(src[y*8+x]) - 128) *
						math.Cos(float64(2*y+1)*float64(u)*math.Pi/16) *
						math.Cos(float64(2*x+1)*float64(v)*math.Pi/16)
				}
			}
			out[u*8+v] = c(u) * c(v) * sum / 4
		}
	}
	return out
}

func TestForwardMatchesReference(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	tables := dct.NewTables(100) // all quanta 1
	for n := 0; n < 20; n++ {
		var src [64]float32
		for i := range src {
			src[i] = float32(rnd.Intn(256))
		}
		var got [64]float64
		dct.Forward(&got, &src)
		want := reference(&src)
		for i := range got {
			// Divisors undo the AAN output scaling.
			scaled := got[i] * tables[dct.Luminance].Divisors[i]
			if diff := math.Abs(scaled - want[i]); diff > 1e-3 {
				t.Fatalf("block %d, coefficient %d: got %v, want %v", n, i, scaled, want[i])
			}
		}
	}
}

func TestConstantBlock(t *testing.T) {
	var src [64]float32
	for i := range src {
		src[i] = 200
	}
	var coef [64]float64
	dct.Forward(&coef, &src)
	tables := dct.NewTables(80)
	var q [64]int32
	dct.Quantize(&q, &coef, tables[dct.Luminance])
	// 8·(200−128)/6
	if got, want := q[0], int32(96); got != want {
		t.Errorf("unexpected DC coefficient: got %d, want %d", got, want)
	}
	for i := 1; i < 64; i++ {
		if q[i] != 0 {
			t.Errorf("AC coefficient %d = %d, want 0", i, q[i])
		}
	}
}

func TestQuantizationClamp(t *testing.T) {
	for q := -5; q <= 105; q++ {
		for i, table := range dct.NewTables(q) {
			for j, v := range table.Quanta {
				if v < 1 || v > 255 {
					t.Fatalf("quality %d, table %d, entry %d: %d out of [1,255]", q, i, j, v)
				}
			}
		}
	}
}

func TestTables(t *testing.T) {
	for _, test := range []struct {
		quality    int
		lumaDC     int
		chromaDC   int
		lumaLast   int
		chromaLast int
	}{
		{quality: 1, lumaDC: 255, chromaDC: 255, lumaLast: 255, chromaLast: 255},
		{quality: 50, lumaDC: 16, chromaDC: 17, lumaLast: 99, chromaLast: 99},
		{quality: 80, lumaDC: 6, chromaDC: 7, lumaLast: 40, chromaLast: 40},
		{quality: 100, lumaDC: 1, chromaDC: 1, lumaLast: 1, chromaLast: 1},
	} {
		tables := dct.NewTables(test.quality)
		luma, chroma := tables[dct.Luminance], tables[dct.Chrominance]
		if got, want := luma.Quanta[0], test.lumaDC; got != want {
			t.Errorf("quality %d: luma[0] = %d, want %d", test.quality, got, want)
		}
		if got, want := chroma.Quanta[0], test.chromaDC; got != want {
			t.Errorf("quality %d: chroma[0] = %d, want %d", test.quality, got, want)
		}
		if got, want := luma.Quanta[63], test.lumaLast; got != want {
			t.Errorf("quality %d: luma[63] = %d, want %d", test.quality, got, want)
		}
		if got, want := chroma.Quanta[63], test.chromaLast; got != want {
			t.Errorf("quality %d: chroma[63] = %d, want %d", test.quality, got, want)
		}
	}
}

func TestQuantizeRoundsHalfToEven(t *testing.T) {
	tables := dct.NewTables(100)
	var coef [64]float64
	// Divisors[0] is 1/8 with all quanta 1.
	coef[0] = 8 * 2.5
	coef[1] = 1e9
	var q [64]int32
	dct.Quantize(&q, &coef, tables[dct.Luminance])
	if got, want := q[0], int32(2); got != want {
		t.Errorf("unexpected rounding: got %d, want %d", got, want)
	}
	if got, want := q[1], int32(1023); got != want {
		t.Errorf("AC coefficient not clamped: got %d, want %d", got, want)
	}
}
