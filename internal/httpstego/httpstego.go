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

// Package httpstego implements an HTTP API around the stegojob API and
// f5stego.Extract.
//
// # Example Usage
//
// You can use this API with curl on the command line like so:
//
//	jobid=$(curl -s -X CREATE http://localhost:7121/api/embedjob | jq -r .job)
//	curl --data-binary @cover.png http://localhost:7121/api/job/$jobid/cover
//	curl --data-binary @secret.txt http://localhost:7121/api/job/$jobid/payload
//	curl -H 'X-F5-Password: abc123' -X POST -o out.jpg http://localhost:7121/api/job/$jobid/embed
//	curl -H 'X-F5-Password: abc123' --data-binary @out.jpg http://localhost:7121/api/extract
package httpstego

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/stapelberg/f5stego"
	"github.com/stapelberg/f5stego/internal/httperr"
	"github.com/stapelberg/f5stego/internal/payload"
	"github.com/stapelberg/f5stego/internal/stegojob"
	"golang.org/x/net/trace"
)

// maxJobs bounds the number of jobs held in memory. Finished jobs are
// removed; abandoned ones stay until the daemon restarts.
const maxJobs = 64

// maxBody bounds request bodies (cover images and JPEG files).
const maxBody = 64 << 20

// PasswordHeader carries the password of embed and extract requests. The
// query parameter "password" is accepted as well.
const PasswordHeader = "X-F5-Password"

// shiftPath from
// https://blog.merovius.de/2017/06/18/how-not-to-use-an-http-router.html:

// shiftPath splits off the first component of p, which will be cleaned of
// relative components before processing. head will never contain a slash and
// tail will always be a rooted path without trailing slash.
func shiftPath(p string) (head, tail string) {
	p = path.Clean("/" + p)
	i := strings.Index(p[1:], "/") + 1
	if i <= 0 {
		return p[1:], "/"
	}
	return p[1:i], p[i:]
}

func requireMethod(r *http.Request, methods ...string) error {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return httperr.Error(
		http.StatusMethodNotAllowed,
		fmt.Errorf("unexpected HTTP method: got %v, want %s", r.Method, strings.Join(methods, " or ")))
}

// param returns the URL query parameter name. Request bodies carry images
// and payloads, never forms.
func param(r *http.Request, name string) string {
	return r.URL.Query().Get(name)
}

func password(r *http.Request) string {
	if pw := r.Header.Get(PasswordHeader); pw != "" {
		return pw
	}
	return param(r, "password")
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := param(r, name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, httperr.Error(http.StatusBadRequest, fmt.Errorf("parameter %s: %v", name, err))
	}
	return b, nil
}

// options returns the encoder options requested in r, or nil if r does not
// override any.
func options(r *http.Request, defaults f5stego.Options) (*f5stego.Options, error) {
	q, c := param(r, "quality"), param(r, "comment")
	if q == "" && c == "" {
		return nil, nil
	}
	opts := defaults
	if q != "" {
		quality, err := strconv.Atoi(q)
		if err != nil {
			return nil, httperr.Error(http.StatusBadRequest, fmt.Errorf("parameter quality: %v", err))
		}
		opts.Quality = quality
	}
	if c != "" {
		opts.Comment = c
	}
	return &opts, nil
}

type jobHandler struct {
	embedder *stegojob.Embedder
	job      *stegojob.Job
	done     func()
}

func (h *jobHandler) ServeHTTPError(w http.ResponseWriter, r *http.Request) error {
	var verb string
	verb, r.URL.Path = shiftPath(r.URL.Path)
	switch verb {
	case "cover":
		if err := requireMethod(r, "PUT", "POST"); err != nil {
			return err
		}
		return h.job.SetCover(http.MaxBytesReader(w, r.Body, maxBody))

	case "payload":
		if err := requireMethod(r, "PUT", "POST"); err != nil {
			return err
		}
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, f5stego.MaxPayload+1))
		if err != nil {
			return httperr.Error(http.StatusRequestEntityTooLarge, err)
		}
		return h.job.AddPayload(b)

	case "embed":
		if err := requireMethod(r, "POST"); err != nil {
			return err
		}
		compress, err := boolParam(r, "compress")
		if err != nil {
			return err
		}
		opts, err := options(r, h.embedder.Options)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		rep, err := h.job.Embed(r.Context(), &buf, stegojob.Params{
			Password: password(r),
			Options:  opts,
			Compress: compress,
		})
		if err != nil {
			return err
		}
		h.done()
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("X-F5-K", strconv.Itoa(rep.K))
		w.Header().Set("X-F5-Changed", strconv.Itoa(rep.Changed))
		_, err = buf.WriteTo(w)
		return err
	}
	return httperr.Error(
		http.StatusNotFound,
		fmt.Errorf("verb %q not found", verb))
}

func traced(family string, h func(http.ResponseWriter, *http.Request) error) http.Handler {
	return httperr.Handle(func(w http.ResponseWriter, r *http.Request) (err error) {
		tr := trace.New(family, r.URL.Path)
		defer tr.Finish()
		defer func() {
			if err != nil {
				tr.LazyPrintf("-> %v", err)
				tr.SetError()
			}
		}()
		return h(w, r.WithContext(trace.NewContext(r.Context(), tr)))
	})
}

// ServeMux returns the API handlers. Paths are relative to the prefix the
// caller strips (typically /api). onExtract, if non-nil, is called after
// every extraction.
func ServeMux(embedder *stegojob.Embedder, onExtract func(*f5stego.Result)) *http.ServeMux {
	var (
		currentJobsMu sync.Mutex
		currentJobs   = make(map[string]*stegojob.Job)
	)
	getJob := func(jobId string) *stegojob.Job {
		currentJobsMu.Lock()
		defer currentJobsMu.Unlock()
		return currentJobs[jobId]
	}
	removeJob := func(jobId string) {
		currentJobsMu.Lock()
		defer currentJobsMu.Unlock()
		delete(currentJobs, jobId)
	}
	serveMux := http.NewServeMux()

	serveMux.Handle("/embedjob", traced("httpstego.EmbedJob", func(w http.ResponseWriter, r *http.Request) error {
		if err := requireMethod(r, "CREATE"); err != nil {
			return err
		}

		job, err := embedder.NewJob()
		if err != nil {
			return err
		}

		jobId := uuid.NewString()

		currentJobsMu.Lock()
		defer currentJobsMu.Unlock()
		if len(currentJobs) >= maxJobs {
			return httperr.Error(
				http.StatusServiceUnavailable,
				fmt.Errorf("too many pending jobs (%d)", len(currentJobs)))
		}
		currentJobs[jobId] = job
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"job":"%s"}`, jobId)
		return nil
	}))

	serveMux.Handle("/job/", traced("httpstego.Job", func(w http.ResponseWriter, r *http.Request) error {
		var jobId string
		jobId, r.URL.Path = shiftPath(strings.TrimPrefix(r.URL.Path, "/job/"))
		job := getJob(jobId)
		if job == nil {
			return httperr.Error(
				http.StatusNotFound,
				fmt.Errorf("job not found"))
		}
		hdl := jobHandler{
			embedder: embedder,
			job:      job,
			done:     func() { removeJob(jobId) },
		}
		return hdl.ServeHTTPError(w, r)
	}))

	serveMux.Handle("/extract", traced("httpstego.Extract", func(w http.ResponseWriter, r *http.Request) error {
		if err := requireMethod(r, "POST", "PUT"); err != nil {
			return err
		}
		decompress, err := boolParam(r, "decompress")
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		res, err := f5stego.Extract(r.Context(), &buf, http.MaxBytesReader(w, r.Body, maxBody), password(r))
		if err != nil {
			return err
		}
		out := buf.Bytes()
		if decompress {
			if out, err = payload.Decompress(out); err != nil {
				return httperr.Error(http.StatusUnprocessableEntity, err)
			}
		}
		if onExtract != nil {
			onExtract(res)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-F5-Declared", strconv.Itoa(res.Declared))
		w.Header().Set("X-F5-Incomplete", strconv.FormatBool(res.Incomplete()))
		_, err = w.Write(out)
		return err
	}))

	return serveMux
}
