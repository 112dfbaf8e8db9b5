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

package main

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stapelberg/f5stego"
)

func TestOutputFor(t *testing.T) {
	for _, test := range []struct {
		input, want string
	}{
		{"a.jpg", "a.payload"},
		{"dir/b.jpeg", "dir/b.jpeg.payload"},
	} {
		if got := outputFor(test.input); got != test.want {
			t.Errorf("outputFor(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestExtractOne(t *testing.T) {
	m := image.NewRGBA(image.Rect(0, 0, 32, 32))
	s := uint32(2463534242)
	for i := range m.Pix {
		s ^= s << 13
		s ^= s >> 17
		s ^= s << 5
		m.Pix[i] = uint8(s >> 8)
	}
	ctx := context.Background()
	var buf bytes.Buffer
	if _, err := f5stego.Embed(ctx, &buf, m, strings.NewReader("I Am Groot"), "abc123", nil); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	in := filepath.Join(dir, "groot.jpg")
	if err := os.WriteFile(in, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := extractOne(ctx, in, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if want := "I Am Groot"; string(got) != want {
		t.Errorf("extractOne = %q, want %q", got, want)
	}

	out := outputFor(in)
	if err := write(out, got); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, got) {
		t.Errorf("%s contains %q, want %q", out, b, got)
	}

	if _, err := extractOne(ctx, filepath.Join(dir, "missing.jpg"), "abc123"); err == nil {
		t.Errorf("extractOne(missing file) unexpectedly succeeded")
	}
}
