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
	"io"

	"github.com/stapelberg/f5stego/internal/jfif"
	"github.com/stapelberg/f5stego/internal/keystream"
	"github.com/stapelberg/f5stego/internal/matrix"
)

// Extract reads a JPEG file from r and writes the payload embedded with
// password to w.
//
// A file that carries less than it declares is not an error: the bytes
// recovered are written and the Result is Incomplete. Files which are not
// baseline JPEG result in a FormatError or an UnsupportedError.
func Extract(ctx context.Context, w io.Writer, r io.Reader, password string) (*Result, error) {
	scan, err := jfif.Decode(r)
	if err != nil {
		return nil, traceError(ctx, err)
	}
	tracef(ctx, "%dx%d, %d components, %d blocks", scan.Width, scan.Height, len(scan.Components), len(scan.Coeffs)/64)
	if scan.Truncated {
		tracef(ctx, "entropy-coded data truncated")
	}

	s := keystream.New([]byte(password))
	perm := keystream.NewPermutation(len(scan.Coeffs), s)
	ex, err := matrix.Extract(scan.Coeffs, perm, s)
	if err != nil {
		return nil, traceError(ctx, err)
	}
	res := &Result{
		Declared:  ex.Declared,
		Extracted: len(ex.Data),
		K:         ex.K,
		Comment:   scan.Comment,
		Truncated: scan.Truncated,
	}
	tracef(ctx, "k = %d, %d of %d bytes extracted", res.K, res.Extracted, res.Declared)
	if _, err := w.Write(ex.Data); err != nil {
		return nil, traceError(ctx, fmt.Errorf("writing payload: %v", err))
	}
	return res, nil
}
