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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stapelberg/f5stego"
	"golang.org/x/net/trace"
)

func TestAuthRequest(t *testing.T) {
	for _, test := range []struct {
		remoteAddr string
		want       bool
	}{
		{"127.0.0.1:1234", true},
		{"[::1]:1234", true},
		{"192.168.1.23:4567", true},
		{"10.0.0.1", true},
		{"8.8.8.8:53", false},
		{"[2001:4860:4860::8888]:443", false},
		{"garbage", false},
	} {
		req := httptest.NewRequest(http.MethodGet, "/debug/requests", nil)
		req.RemoteAddr = test.remoteAddr
		got, sensitive := authRequest(req)
		if got != test.want || sensitive != test.want {
			t.Errorf("authRequest(%q) = %v, %v, want %v, %v", test.remoteAddr, got, sensitive, test.want, test.want)
		}
	}
}

func TestDisplayAddr(t *testing.T) {
	for _, test := range []struct {
		addr, want string
	}{
		{"127.0.0.1:7121", "localhost:7121"},
		{"[::1]:7121", "localhost:7121"},
		{"192.168.1.23:7121", "192.168.1.23:7121"},
	} {
		if got := displayAddr(test.addr); got != test.want {
			t.Errorf("displayAddr(%q) = %q, want %q", test.addr, got, test.want)
		}
	}
}

func TestDebugHandlers(t *testing.T) {
	trace.AuthRequest = authRequest
	h := newHandler(newEmbedder(f5stego.DefaultQuality), onExtract)
	for _, test := range []struct {
		path       string
		remoteAddr string
		want       int
	}{
		{"/debug/pprof/", "8.8.8.8:53", http.StatusForbidden},
		{"/debug/pprof/cmdline", "8.8.8.8:53", http.StatusForbidden},
		{"/debug/pprof/symbol", "[2001:4860:4860::8888]:443", http.StatusForbidden},
		{"/debug/pprof/", "127.0.0.1:1234", http.StatusOK},
		{"/debug/pprof/cmdline", "192.168.1.23:4567", http.StatusOK},
		{"/debug/requests", "8.8.8.8:53", http.StatusUnauthorized},
		{"/debug/requests", "127.0.0.1:1234", http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, test.path, nil)
		req.RemoteAddr = test.remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Code; got != test.want {
			t.Errorf("GET %s from %s: status %d, want %d", test.path, test.remoteAddr, got, test.want)
		}
	}
}
