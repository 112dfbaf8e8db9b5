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

// Package stegojob accumulates the inputs of an embedding (a cover image and
// the payload) and runs the embedding once both are present.
package stegojob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/stapelberg/f5stego"
	"github.com/stapelberg/f5stego/internal/payload"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeCover decodes a cover image in any of the supported formats (BMP,
// GIF, JPEG, PNG, TIFF and WebP) and returns it with the format name.
func DecodeCover(r io.Reader) (image.Image, string, error) {
	m, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decoding cover image: %w", err)
	}
	return m, format, nil
}

type Embedder struct {
	// Options are used for jobs which do not bring their own.
	Options f5stego.Options

	// EmbedCallback, if non-nil, is called after every successful
	// embedding.
	EmbedCallback func(*Job, *f5stego.Report)
}

type Job struct {
	embedder *Embedder

	mu          sync.Mutex
	cover       image.Image
	coverFormat string
	payload     []byte
}

func (e *Embedder) NewJob() (*Job, error) {
	return &Job{embedder: e}, nil
}

// SetCover decodes r and replaces the cover image of the job.
func (j *Job) SetCover(r io.Reader) error {
	m, format, err := DecodeCover(r)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cover = m
	j.coverFormat = format
	return nil
}

// AddPayload appends b to the payload of the job.
func (j *Job) AddPayload(b []byte) error {
	// NOTE: The payload is held in memory, which is fine given the 8 MiB
	// limit of the length field.
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.payload)+len(b) > f5stego.MaxPayload {
		return fmt.Errorf("%w: payload would grow to %d bytes, the maximum is %d",
			f5stego.ErrCapacity, len(j.payload)+len(b), f5stego.MaxPayload)
	}
	j.payload = append(j.payload, b...)
	return nil
}

// Cover returns the cover image and its format, if set.
func (j *Job) Cover() (image.Image, string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cover, j.coverFormat
}

// PayloadLen returns the number of payload bytes added so far.
func (j *Job) PayloadLen() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.payload)
}

// Params configure one embedding.
type Params struct {
	Password string

	// Options override the Embedder's options if non-nil.
	Options *f5stego.Options

	// Compress zstd compresses the payload before embedding it.
	Compress bool
}

// Embed writes the cover image with the payload embedded to w. Nothing is
// written to w if embedding fails.
func (j *Job) Embed(ctx context.Context, w io.Writer, p Params) (*f5stego.Report, error) {
	j.mu.Lock()
	cover := j.cover
	data := j.payload
	j.mu.Unlock()
	if cover == nil {
		return nil, errors.New("job has no cover image")
	}
	if p.Compress {
		var err error
		data, err = payload.Compress(data)
		if err != nil {
			return nil, err
		}
	}
	opts := p.Options
	if opts == nil {
		opts = &j.embedder.Options
	}
	var buf bytes.Buffer
	rep, err := f5stego.Embed(ctx, &buf, cover, bytes.NewReader(data), p.Password, opts)
	if err != nil {
		return nil, err
	}
	if _, err := buf.WriteTo(w); err != nil {
		return nil, err
	}
	if cb := j.embedder.EmbedCallback; cb != nil {
		cb(j, rep)
	}
	return rep, nil
}
