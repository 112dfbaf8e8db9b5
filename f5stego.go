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

// Package f5stego hides data in JPEG images with the F5 algorithm.
//
// Embedding compresses an image into a baseline JPEG file and, while doing
// so, stores the payload in the parities of the quantized DCT coefficients.
// The coefficients are visited in an order derived from a password, and
// matrix encoding keeps the number of changed coefficients low. Extraction
// needs the same password.
//
// The password only determines the visiting order and a XOR pad. It does
// not provide confidentiality; encrypt the payload first if that matters.
package f5stego

import (
	"context"
	"fmt"

	"github.com/stapelberg/f5stego/internal/dct"
	"github.com/stapelberg/f5stego/internal/jfif"
	"github.com/stapelberg/f5stego/internal/matrix"
	"golang.org/x/net/trace"
)

// DefaultComment is written into the COM segment unless Options say
// otherwise. Other F5 implementations write the same text.
const DefaultComment = "JPEG Encoder Copyright 1998, James R. Weeks and BioElectroMech.  "

// MaxPayload is the largest payload in bytes which the header can declare.
const MaxPayload = matrix.MaxLength

// ErrCapacity is returned (wrapped) when a payload does not fit into an
// image.
var ErrCapacity = matrix.ErrCapacity

// A FormatError reports that the input is not a valid JPEG file.
type FormatError = jfif.FormatError

// An UnsupportedError reports that the input is a valid JPEG file which
// uses features other than baseline sequential coding.
type UnsupportedError = jfif.UnsupportedError

// Report describes one embedding: the carrier statistics of the cover, the
// code that was chosen and how many coefficients changed.
type Report = matrix.Report

// Stats summarizes the carriers of an image.
type Stats = matrix.Stats

// Options configure the encoder. A nil *Options is valid and means
// DefaultQuality and DefaultComment.
type Options struct {
	// Quality is in [1,100]; values outside are clamped. 0 selects
	// DefaultQuality.
	Quality int

	// Comment replaces DefaultComment if non-empty.
	Comment string

	// OmitComment suppresses the COM segment altogether.
	OmitComment bool

	// RestartInterval, if positive, inserts a restart marker every
	// RestartInterval MCUs.
	RestartInterval int
}

// DefaultQuality is used when Options.Quality is 0.
const DefaultQuality = dct.DefaultQuality

func (o *Options) quality() int {
	if o == nil || o.Quality == 0 {
		return DefaultQuality
	}
	return dct.ClampQuality(o.Quality)
}

func (o *Options) comment() string {
	switch {
	case o == nil:
		return DefaultComment
	case o.OmitComment:
		return ""
	case o.Comment != "":
		return o.Comment
	}
	return DefaultComment
}

func (o *Options) restartInterval() int {
	if o == nil {
		return 0
	}
	return o.RestartInterval
}

// tracef logs to the trace in ctx, if any.
func tracef(ctx context.Context, format string, a ...interface{}) {
	if tr, ok := trace.FromContext(ctx); ok {
		tr.LazyPrintf(format, a...)
	}
}

// traceError marks the trace in ctx, if any, as failed.
func traceError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if tr, ok := trace.FromContext(ctx); ok {
		tr.LazyPrintf("%v", err)
		tr.SetError()
	}
	return err
}

// CapacityInfo describes how much an image can carry.
type CapacityInfo struct {
	Width, Height int
	Blocks        int
	Stats         Stats

	// Bytes is the largest payload Embed is certain to accept for the
	// image, -1 if there is none.
	Bytes int

	// Estimate is the largest payload Embed attempts to embed. Payloads
	// between Bytes and Estimate fit most of the time.
	Estimate int

	// Usable[k] is the estimated number of bytes the code with parameter k
	// carries, header included, for k in [1,7].
	Usable [8]int
}

func (c *CapacityInfo) String() string {
	capacity := "no capacity"
	if c.Bytes >= 0 {
		capacity = fmt.Sprintf("%d bytes capacity", c.Bytes)
	}
	return fmt.Sprintf("%dx%d, %d blocks, %d carriers (%d ±1), %d bits expected, %s (estimated %d bytes)",
		c.Width, c.Height, c.Blocks, c.Stats.Large+c.Stats.Ones, c.Stats.Ones, c.Stats.Expected, capacity, max(c.Estimate, 0))
}

// Result describes one extraction.
type Result struct {
	// Declared is the payload length stored in the file.
	Declared int

	// Extracted is the number of bytes written.
	Extracted int

	// K is the code parameter stored in the file.
	K int

	// Comment is the text of the file's COM segment.
	Comment string

	// Truncated is set when the file's entropy-coded data ended early.
	Truncated bool
}

// Incomplete reports whether fewer bytes were extracted than declared. This
// happens with damaged files and, most of the time, with a wrong password.
func (r *Result) Incomplete() bool {
	return r.Extracted < r.Declared
}
