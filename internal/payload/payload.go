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

// Package payload optionally compresses payloads with zstd before they are
// embedded. Compressed payloads are plain zstd frames, so they can also be
// unpacked with the zstd command line tool.
package payload

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// maxDecoded bounds the memory a decompressed payload may take. The length
// field limits embedded payloads to 8 MiB, which zstd can expand a lot.
const maxDecoded = 256 << 20

var magic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// IsCompressed reports whether b starts with a zstd frame header.
func IsCompressed(b []byte) bool {
	return bytes.HasPrefix(b, magic)
}

// Compress returns b as a single zstd frame. Checksums are omitted: every
// byte spent on the frame reduces the capacity left for the payload.
func Compress(b []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBestCompression),
		zstd.WithEncoderCRC(false),
		zstd.WithZeroFrames(true))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(b, make([]byte, 0, len(b))), nil
}

// Decompress reverses Compress.
func Decompress(b []byte) ([]byte, error) {
	if !IsCompressed(b) {
		return nil, fmt.Errorf("payload is not zstd compressed (starts with % x)", b[:min(len(b), 4)])
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxDecoded))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %v", err)
	}
	return out, nil
}
