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

// Program f5embed compresses images into JPEG files and hides a payload file
// in them.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/google/renameio"
	"github.com/stapelberg/f5stego"
	"github.com/stapelberg/f5stego/internal/password"
	"github.com/stapelberg/f5stego/internal/payload"
	"github.com/stapelberg/f5stego/internal/stegojob"
	"golang.org/x/sync/errgroup"
)

var (
	embedFile = flag.String("e",
		"",
		"File to embed. If empty, the images are compressed without embedding anything.")

	passwordFlag = flag.String("p",
		"",
		"Password which determines where the payload is stored. If empty, it is prompted for on the terminal, or "+password.Default+" is used.")

	quality = flag.Int("q",
		f5stego.DefaultQuality,
		"JPEG quality, 1 (smallest) to 100 (best). 70 to 80 gives good results.")

	comment = flag.String("c",
		f5stego.DefaultComment,
		"Comment to store in the JPEG file.")

	noComment = flag.Bool("nocomment",
		false,
		"Do not store a comment in the JPEG file.")

	restartInterval = flag.Int("restart",
		0,
		"If positive, the number of MCUs between restart markers.")

	compress = flag.Bool("compress",
		false,
		"zstd compress the payload before embedding it. Extract with f5extract -decompress.")

	output = flag.String("o",
		"",
		"Output file name. Only valid with a single input image. If empty, the input file name with extension .jpg is used, with a numeric suffix if that file exists already.")

	capacityOnly = flag.Bool("capacity",
		false,
		"Only print how many bytes each image can carry.")

	jobs = flag.Int("j",
		runtime.NumCPU(),
		"Number of images to process concurrently.")
)

// namer hands out output file names which neither exist nor were handed
// out before.
type namer struct {
	exists func(string) bool

	mu    sync.Mutex
	taken map[string]bool
}

func (n *namer) free(name string) bool {
	return !n.taken[name] && !n.exists(name)
}

// name returns dir/base.jpg for an input file dir/base.ext, or
// dir/baseN.jpg for the smallest N in [1,100] if that is taken.
func (n *namer) name(input string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.taken == nil {
		n.taken = make(map[string]bool)
	}
	stem := strings.TrimSuffix(input, filepath.Ext(input))
	candidate := stem + ".jpg"
	for i := 1; !n.free(candidate); i++ {
		if i > 100 {
			return "", fmt.Errorf("%s: no free output file name (tried up to %s)", input, candidate)
		}
		candidate = fmt.Sprintf("%s%d.jpg", stem, i)
	}
	n.taken[candidate] = true
	return candidate, nil
}

func exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func writeAtomically(out string, write func(*renameio.PendingFile) error) error {
	f, err := renameio.TempFile("", out)
	if err != nil {
		return err
	}
	defer f.Cleanup()
	if err := write(f); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}

// secret is the payload of an embedding. A nil *secret means compression
// only.
type secret struct {
	data     []byte
	password string
}

func embedOne(ctx context.Context, input, out string, s *secret, opts *f5stego.Options) error {
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()
	m, format, err := stegojob.DecodeCover(f)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	if *capacityOnly {
		info, err := f5stego.Capacity(ctx, m, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
		fmt.Printf("%s (%s): %v\n", input, format, info)
		for k := 1; k < len(info.Usable); k++ {
			fmt.Printf("  (1, %d, %d) code: an estimated %d bytes\n", 1<<k-1, k, max(info.Usable[k]-4, 0))
		}
		return nil
	}

	return writeAtomically(out, func(w *renameio.PendingFile) error {
		if s == nil {
			if err := f5stego.Encode(ctx, w, m, opts); err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			log.Printf("%s: compressed into %s", input, out)
			return nil
		}
		rep, err := f5stego.Embed(ctx, w, m, bytes.NewReader(s.data), s.password, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
		log.Printf("%s: embedded %d bytes into %s using the (1, %d, %d) code", input, len(s.data), out, rep.N, rep.K)
		log.Printf("%s: %d coefficients changed (%d shrunk), %.2f bits per change", input, rep.Changed, rep.Shrunk, rep.Efficiency())
		return nil
	})
}

func logic() error {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <image>...\n\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Images may be BMP, GIF, JPEG, PNG, TIFF or WebP files.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) < 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *output != "" && len(inputs) > 1 {
		return fmt.Errorf("-o can only be used with a single input image")
	}

	opts := &f5stego.Options{
		Quality:         *quality,
		Comment:         *comment,
		OmitComment:     *noComment,
		RestartInterval: *restartInterval,
	}

	var s *secret
	if *embedFile != "" && !*capacityOnly {
		data, err := os.ReadFile(*embedFile)
		if err != nil {
			return err
		}
		if *compress {
			c, err := payload.Compress(data)
			if err != nil {
				return err
			}
			log.Printf("payload compressed from %d to %d bytes", len(data), len(c))
			data = c
		}
		pw, err := password.Get(*passwordFlag, true)
		if err != nil {
			return err
		}
		s = &secret{data: data, password: pw}
	}

	n := &namer{exists: exists}
	eg, ctx := errgroup.WithContext(context.Background())
	eg.SetLimit(max(*jobs, 1))
	for _, input := range inputs {
		input := input // copy
		out := *output
		if out == "" && !*capacityOnly {
			var err error
			if out, err = n.name(input); err != nil {
				return err
			}
		}
		eg.Go(func() error {
			return embedOne(ctx, input, out, s, opts)
		})
	}
	return eg.Wait()
}

func main() {
	if err := logic(); err != nil {
		log.Fatal(err)
	}
}
