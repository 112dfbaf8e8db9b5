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

package stegojob_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stapelberg/f5stego"
	"github.com/stapelberg/f5stego/internal/payload"
	"github.com/stapelberg/f5stego/internal/stegojob"
	"golang.org/x/image/bmp"
)

func cover(t *testing.T, encode func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	m := image.NewNRGBA(image.Rect(0, 0, 48, 48))
	s := uint32(2463534242)
	for i := range m.Pix {
		s ^= s << 13
		s ^= s >> 17
		s ^= s << 5
		m.Pix[i] = uint8(s >> 8)
	}
	for i := 3; i < len(m.Pix); i += 4 {
		m.Pix[i] = 255
	}
	var buf bytes.Buffer
	if err := encode(&buf, m); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodePNG(buf *bytes.Buffer, m image.Image) error { return png.Encode(buf, m) }
func encodeBMP(buf *bytes.Buffer, m image.Image) error { return bmp.Encode(buf, m) }

func TestJob(t *testing.T) {
	ctx := context.Background()
	for _, test := range []struct {
		format   string
		encode   func(*bytes.Buffer, image.Image) error
		compress bool
	}{
		{"png", encodePNG, false},
		{"bmp", encodeBMP, true},
	} {
		t.Run(test.format, func(t *testing.T) {
			var called int
			e := &stegojob.Embedder{
				EmbedCallback: func(*stegojob.Job, *f5stego.Report) { called++ },
			}
			j, err := e.NewJob()
			if err != nil {
				t.Fatal(err)
			}
			if err := j.SetCover(bytes.NewReader(cover(t, test.encode))); err != nil {
				t.Fatal(err)
			}
			if _, format := j.Cover(); format != test.format {
				t.Errorf("cover format = %q, want %q", format, test.format)
			}
			for _, part := range []string{"I Am ", "Groot"} {
				if err := j.AddPayload([]byte(part)); err != nil {
					t.Fatal(err)
				}
			}
			if got, want := j.PayloadLen(), 10; got != want {
				t.Errorf("PayloadLen() = %d, want %d", got, want)
			}

			var out bytes.Buffer
			if _, err := j.Embed(ctx, &out, stegojob.Params{Password: "abc123", Compress: test.compress}); err != nil {
				t.Fatal(err)
			}
			if called != 1 {
				t.Errorf("EmbedCallback called %d times, want 1", called)
			}

			var extracted bytes.Buffer
			if _, err := f5stego.Extract(ctx, &extracted, &out, "abc123"); err != nil {
				t.Fatal(err)
			}
			got := extracted.Bytes()
			if test.compress {
				if got, err = payload.Decompress(got); err != nil {
					t.Fatal(err)
				}
			}
			if want := []byte("I Am Groot"); !bytes.Equal(got, want) {
				t.Errorf("extracted %q, want %q", got, want)
			}
		})
	}
}

func TestJobErrors(t *testing.T) {
	e := &stegojob.Embedder{}
	j, err := e.NewJob()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.Embed(context.Background(), &bytes.Buffer{}, stegojob.Params{}); err == nil {
		t.Errorf("Embed without cover unexpectedly succeeded")
	}
	if err := j.SetCover(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Errorf("SetCover(garbage) unexpectedly succeeded")
	}
	if err := j.AddPayload(make([]byte, f5stego.MaxPayload+1)); !errors.Is(err, f5stego.ErrCapacity) {
		t.Errorf("AddPayload(too much) = %v, want ErrCapacity", err)
	}

	// A cover without any detail cannot carry anything.
	m := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range m.Pix {
		m.Pix[i] = 200
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		t.Fatal(err)
	}
	if err := j.SetCover(&buf); err != nil {
		t.Fatal(err)
	}
	if err := j.AddPayload([]byte("x")); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if _, err := j.Embed(context.Background(), &out, stegojob.Params{}); !errors.Is(err, f5stego.ErrCapacity) {
		t.Errorf("Embed into flat cover = %v, want ErrCapacity", err)
	}
	if out.Len() != 0 {
		t.Errorf("Embed wrote %d bytes despite failing", out.Len())
	}
}
