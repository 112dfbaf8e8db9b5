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

package httperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stapelberg/f5stego"
	"github.com/stapelberg/f5stego/internal/httperr"
)

func TestCode(t *testing.T) {
	for _, test := range []struct {
		err  error
		want int
	}{
		{errors.New("boom"), http.StatusInternalServerError},
		{httperr.Error(http.StatusNotFound, errors.New("job not found")), http.StatusNotFound},
		{fmt.Errorf("embedding: %w", f5stego.ErrCapacity), http.StatusRequestEntityTooLarge},
		{f5stego.FormatError("missing SOI marker"), http.StatusBadRequest},
		{fmt.Errorf("decoding: %w", f5stego.UnsupportedError("progressive mode")), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", httperr.Error(http.StatusMethodNotAllowed, errors.New("GET"))), http.StatusMethodNotAllowed},
	} {
		if got := httperr.Code(test.err); got != test.want {
			t.Errorf("Code(%v) = %d, want %d", test.err, got, test.want)
		}
	}
}

func TestHandle(t *testing.T) {
	h := httperr.Handle(func(w http.ResponseWriter, r *http.Request) error {
		if r.URL.Path == "/ok" {
			fmt.Fprintf(w, "ok")
			return nil
		}
		return httperr.Error(http.StatusTeapot, errors.New("short and stout"))
	})
	for _, test := range []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/ok", http.StatusOK, "ok"},
		{"/tea", http.StatusTeapot, "short and stout\n"},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", test.path, nil))
		if got, want := rec.Code, test.wantCode; got != want {
			t.Errorf("%s: HTTP status %d, want %d", test.path, got, want)
		}
		if got, want := rec.Body.String(), test.wantBody; got != want {
			t.Errorf("%s: body %q, want %q", test.path, got, want)
		}
	}
}
