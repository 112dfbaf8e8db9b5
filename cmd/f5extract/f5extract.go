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

// Program f5extract recovers payloads which f5embed (or another F5
// implementation) hid in JPEG files.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/google/renameio"
	"github.com/stapelberg/f5stego"
	"github.com/stapelberg/f5stego/internal/password"
	"github.com/stapelberg/f5stego/internal/payload"
	"golang.org/x/sync/errgroup"
)

var (
	passwordFlag = flag.String("p",
		"",
		"Password used when embedding. If empty, it is prompted for on the terminal, or "+password.Default+" is used.")

	output = flag.String("e",
		"-",
		"File to write the payload to, - for stdout. Only valid with a single input file; with several, each payload is written next to its input with extension .payload.")

	decompress = flag.Bool("decompress",
		false,
		"zstd decompress the payload (see f5embed -compress).")

	jobs = flag.Int("j",
		runtime.NumCPU(),
		"Number of files to process concurrently.")
)

// extractOne extracts the payload of input and returns it.
func extractOne(ctx context.Context, input, pw string) ([]byte, error) {
	f, err := os.Open(input)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var buf bytes.Buffer
	res, err := f5stego.Extract(ctx, &buf, f, pw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", input, err)
	}
	if res.Incomplete() {
		log.Printf("%s: incomplete payload: only %d of %d bytes extracted (wrong password?)", input, res.Extracted, res.Declared)
	}
	if res.Truncated {
		log.Printf("%s: file is truncated", input)
	}
	b := buf.Bytes()
	if *decompress {
		if b, err = payload.Decompress(b); err != nil {
			return nil, fmt.Errorf("%s: %v", input, err)
		}
	}
	return b, nil
}

func write(out string, b []byte) error {
	if out == "-" {
		_, err := os.Stdout.Write(b)
		return err
	}
	f, err := renameio.TempFile("", out)
	if err != nil {
		return err
	}
	defer f.Cleanup()
	if _, err := f.Write(b); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}

// outputFor returns the payload file name for input when several inputs
// are processed.
func outputFor(input string) string {
	return strings.TrimSuffix(input, ".jpg") + ".payload"
}

func logic() error {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <jpeg>...\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) < 1 {
		flag.Usage()
		os.Exit(2)
	}
	outputSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "e" {
			outputSet = true
		}
	})
	if outputSet && len(inputs) > 1 {
		return fmt.Errorf("-e can only be used with a single input file")
	}

	pw, err := password.Get(*passwordFlag, false)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(context.Background())
	eg.SetLimit(max(*jobs, 1))
	for _, input := range inputs {
		input := input // copy
		out := *output
		if len(inputs) > 1 {
			out = outputFor(input)
		}
		eg.Go(func() error {
			b, err := extractOne(ctx, input, pw)
			if err != nil {
				return err
			}
			return write(out, b)
		})
	}
	return eg.Wait()
}

func main() {
	if err := logic(); err != nil {
		log.Fatal(err)
	}
}
