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
	"context"
	"fmt"
	"image"
	"io"

	"github.com/stapelberg/f5stego/internal/jfif"
	"github.com/stapelberg/f5stego/internal/keystream"
	"github.com/stapelberg/f5stego/internal/matrix"
)

// Encode writes m to w as a baseline JPEG file without embedding anything.
func Encode(ctx context.Context, w io.Writer, m image.Image, o *Options) error {
	h, coeffs, err := collect(m, o)
	if err != nil {
		return traceError(ctx, err)
	}
	tracef(ctx, "%dx%d at quality %d: %d blocks", h.Width, h.Height, o.quality(), len(coeffs)/64)
	return traceError(ctx, jfif.Encode(w, h, coeffs))
}

// Embed writes m to w as a baseline JPEG file carrying the contents of
// payload, retrievable with Extract and the same password.
//
// Payloads up to Capacity's Bytes always fit. If payload does not fit, Embed
// returns an error wrapping ErrCapacity and nothing is written to w.
func Embed(ctx context.Context, w io.Writer, m image.Image, payload io.Reader, password string, o *Options) (*Report, error) {
	data, err := io.ReadAll(payload)
	if err != nil {
		return nil, traceError(ctx, fmt.Errorf("reading payload: %v", err))
	}
	h, coeffs, err := collect(m, o)
	if err != nil {
		return nil, traceError(ctx, err)
	}
	tracef(ctx, "%dx%d at quality %d: %d blocks, embedding %d bytes", h.Width, h.Height, o.quality(), len(coeffs)/64, len(data))

	s := keystream.New([]byte(password))
	perm := keystream.NewPermutation(len(coeffs), s)
	rep, err := matrix.Embed(coeffs, perm, s, data)
	if err != nil {
		return nil, traceError(ctx, err)
	}
	if rep.Retried > 0 {
		tracef(ctx, "carriers ran out for %d larger codes", rep.Retried)
	}
	tracef(ctx, "(1, %d, %d) code: %d bits, %d changed, %d shrunk, efficiency %.2f",
		rep.N, rep.K, rep.Bits, rep.Changed, rep.Shrunk, rep.Efficiency())

	if err := jfif.Encode(w, h, coeffs); err != nil {
		return nil, traceError(ctx, err)
	}
	return rep, nil
}

// Capacity reports how many bytes m can carry when encoded with o.
func Capacity(ctx context.Context, m image.Image, o *Options) (*CapacityInfo, error) {
	h, coeffs, err := collect(m, o)
	if err != nil {
		return nil, traceError(ctx, err)
	}
	stats := matrix.Analyze(coeffs)
	info := &CapacityInfo{
		Width:    h.Width,
		Height:   h.Height,
		Blocks:   len(coeffs) / 64,
		Stats:    stats,
		Bytes:    stats.Capacity(),
		Estimate: stats.Estimate(),
	}
	for k := 1; k < len(info.Usable); k++ {
		info.Usable[k] = stats.Usable(k)
	}
	tracef(ctx, "capacity: %v", info)
	return info, nil
}
