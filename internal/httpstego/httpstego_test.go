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

package httpstego_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stapelberg/f5stego"
	"github.com/stapelberg/f5stego/internal/httpstego"
	"github.com/stapelberg/f5stego/internal/stegojob"
)

func coverPNG(t *testing.T) []byte {
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
	if err := png.Encode(&buf, m); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type client struct {
	t   *testing.T
	url string
}

func (c *client) do(method, path string, body []byte, header http.Header) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.url+path, bytes.NewReader(body))
	if err != nil {
		c.t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	return resp
}

func (c *client) expect(resp *http.Response, code int) []byte {
	c.t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatal(err)
	}
	if resp.StatusCode != code {
		c.t.Fatalf("%s %s: HTTP status %d (%s), want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, bytes.TrimSpace(b), code)
	}
	return b
}

func newServer(t *testing.T) (*client, <-chan *f5stego.Result) {
	extractions := make(chan *f5stego.Result, 10)
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", httpstego.ServeMux(&stegojob.Embedder{}, func(r *f5stego.Result) {
		extractions <- r
	})))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &client{t: t, url: srv.URL}, extractions
}

func createJob(c *client) string {
	c.t.Helper()
	var created struct {
		Job string `json:"job"`
	}
	b := c.expect(c.do("CREATE", "/api/embedjob", nil, nil), http.StatusOK)
	if err := json.Unmarshal(b, &created); err != nil {
		c.t.Fatal(err)
	}
	if created.Job == "" {
		c.t.Fatalf("no job id in %s", b)
	}
	return created.Job
}

func TestEmbedAndExtract(t *testing.T) {
	for _, compress := range []bool{false, true} {
		c, extractions := newServer(t)
		job := createJob(c)
		c.expect(c.do("POST", "/api/job/"+job+"/cover", coverPNG(t), nil), http.StatusOK)
		c.expect(c.do("POST", "/api/job/"+job+"/payload", []byte("I Am "), nil), http.StatusOK)
		c.expect(c.do("PUT", "/api/job/"+job+"/payload", []byte("Groot"), nil), http.StatusOK)

		pw := http.Header{httpstego.PasswordHeader: []string{"abc123"}}
		query := "?quality=90&comment=hello"
		if compress {
			query += "&compress=true"
		}
		resp := c.do("POST", "/api/job/"+job+"/embed"+query, nil, pw)
		if got, want := resp.Header.Get("Content-Type"), "image/jpeg"; got != want {
			t.Errorf("embed: Content-Type = %q, want %q", got, want)
		}
		jpegFile := c.expect(resp, http.StatusOK)

		// The job is gone once it produced its file.
		c.expect(c.do("POST", "/api/job/"+job+"/embed", nil, pw), http.StatusNotFound)

		query = ""
		if compress {
			query = "?decompress=1"
		}
		resp = c.do("POST", "/api/extract"+query, jpegFile, pw)
		if got, want := resp.Header.Get("X-F5-Incomplete"), "false"; got != want {
			t.Errorf("extract: X-F5-Incomplete = %q, want %q", got, want)
		}
		got := c.expect(resp, http.StatusOK)
		if want := []byte("I Am Groot"); !bytes.Equal(got, want) {
			t.Errorf("extract = %q, want %q", got, want)
		}
		select {
		case res := <-extractions:
			if got, want := res.Comment, "hello"; got != want {
				t.Errorf("extracted comment = %q, want %q", got, want)
			}
		default:
			t.Fatalf("onExtract not called")
		}
	}
}

func TestErrors(t *testing.T) {
	c, _ := newServer(t)
	c.expect(c.do("GET", "/api/embedjob", nil, nil), http.StatusMethodNotAllowed)
	c.expect(c.do("POST", "/api/job/nonexistent/cover", nil, nil), http.StatusNotFound)

	job := createJob(c)
	c.expect(c.do("POST", "/api/job/"+job+"/frobnicate", nil, nil), http.StatusNotFound)
	c.expect(c.do("GET", "/api/job/"+job+"/cover", nil, nil), http.StatusMethodNotAllowed)
	c.expect(c.do("POST", "/api/job/"+job+"/embed?compress=maybe", nil, nil), http.StatusBadRequest)
	c.expect(c.do("POST", "/api/job/"+job+"/embed?quality=high", nil, nil), http.StatusBadRequest)

	// The payload exceeds what a 48×48 cover can carry.
	c.expect(c.do("POST", "/api/job/"+job+"/cover", coverPNG(t), nil), http.StatusOK)
	c.expect(c.do("POST", "/api/job/"+job+"/payload", make([]byte, 64<<10), nil), http.StatusOK)
	c.expect(c.do("POST", "/api/job/"+job+"/embed", nil, nil), http.StatusRequestEntityTooLarge)

	c.expect(c.do("POST", "/api/extract", []byte("not a jpeg"), nil), http.StatusBadRequest)
	c.expect(c.do("GET", "/api/extract", nil, nil), http.StatusMethodNotAllowed)
}
