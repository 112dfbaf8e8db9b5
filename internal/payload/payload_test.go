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

package payload_test

import (
	"bytes"
	"testing"

	"github.com/stapelberg/f5stego/internal/payload"
)

func TestCompress(t *testing.T) {
	for _, test := range []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"short", []byte("I Am Groot")},
		{"repetitive", bytes.Repeat([]byte("I Am Groot. "), 1000)},
	} {
		t.Run(test.name, func(t *testing.T) {
			c, err := payload.Compress(test.in)
			if err != nil {
				t.Fatal(err)
			}
			if !payload.IsCompressed(c) {
				t.Fatalf("Compress(%q) = % x, which lacks the zstd magic", test.in, c)
			}
			got, err := payload.Decompress(c)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, test.in) {
				t.Errorf("Decompress(Compress(x)) = %q, want %q", got, test.in)
			}
		})
	}
}

func TestCompressShrinks(t *testing.T) {
	in := bytes.Repeat([]byte("I Am Groot. "), 1000)
	c, err := payload.Compress(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(c) >= len(in)/10 {
		t.Errorf("Compress: %d bytes compressed into %d bytes", len(in), len(c))
	}
}

func TestDecompressRejects(t *testing.T) {
	for _, in := range [][]byte{
		nil,
		[]byte("I Am Groot"),
		{0x28, 0xb5, 0x2f, 0xfd, 0x00},
	} {
		if _, err := payload.Decompress(in); err == nil {
			t.Errorf("Decompress(% x) unexpectedly succeeded", in)
		}
	}
}
