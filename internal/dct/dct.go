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

// Package dct implements the forward discrete cosine transform and the
// quantization stage of the encoder.
//
// The transform is the floating point variant of the Arai, Agui and Nakajima
// butterfly (as in the IJG jfdctflt.c). Its outputs are scaled by the AAN
// factors, which the quantization divisors compensate for.
package dct

// Forward transforms one 8×8 block of samples in natural order (values in
// [0,255]) into dst. Samples are level shifted by 128 first.
func Forward(dst *[64]float64, src *[64]float32) {
	for i, v := range src {
		dst[i] = float64(v) - 128
	}
	for row := 0; row < 8; row++ {
		butterfly(dst, row*8, 1)
	}
	for col := 0; col < 8; col++ {
		butterfly(dst, col, 8)
	}
}

// butterfly transforms the 8 values d[off], d[off+stride], … in place.
func butterfly(d *[64]float64, off, stride int) {
	at := func(i int) *float64 { return &d[off+i*stride] }

	tmp0 := *at(0) + *at(7)
	tmp7 := *at(0) - *at(7)
	tmp1 := *at(1) + *at(6)
	tmp6 := *at(1) - *at(6)
	tmp2 := *at(2) + *at(5)
	tmp5 := *at(2) - *at(5)
	tmp3 := *at(3) + *at(4)
	tmp4 := *at(3) - *at(4)

	// even part
	tmp10 := tmp0 + tmp3
	tmp13 := tmp0 - tmp3
	tmp11 := tmp1 + tmp2
	tmp12 := tmp1 - tmp2

	*at(0) = tmp10 + tmp11
	*at(4) = tmp10 - tmp11

	z1 := (tmp12 + tmp13) * 0.707106781
	*at(2) = tmp13 + z1
	*at(6) = tmp13 - z1

	// odd part
	tmp10 = tmp4 + tmp5
	tmp11 = tmp5 + tmp6
	tmp12 = tmp6 + tmp7

	z5 := (tmp10 - tmp12) * 0.382683433
	z2 := 0.541196100*tmp10 + z5
	z4 := 1.306562965*tmp12 + z5
	z3 := tmp11 * 0.707106781

	z11 := tmp7 + z3
	z13 := tmp7 - z3

	*at(5) = z13 + z2
	*at(3) = z13 - z2
	*at(1) = z11 + z4
	*at(7) = z11 - z4
}
