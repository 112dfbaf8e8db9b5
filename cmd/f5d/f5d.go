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

// Program f5d serves the F5 embedding and extraction operations over HTTP,
// optionally announcing its status via MQTT.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/stapelberg/f5stego"
	"github.com/stapelberg/f5stego/internal/httpstego"
	"github.com/stapelberg/f5stego/internal/mayqtt"
	"github.com/stapelberg/f5stego/internal/stegojob"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/net/trace"
	"golang.org/x/sync/errgroup"
)

// authRequest permits /debug/requests and /debug/events for clients on the
// local network.
func authRequest(req *http.Request) (ok, sensitive bool) {
	// RemoteAddr is commonly in the form "IP" or "IP:port".
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false, false
	}
	if ip.IsLoopback() || ip.IsPrivate() {
		return true, true
	}
	return false, false
}

// displayAddr turns a listener address into something a user can paste
// into a browser.
func displayAddr(addr string) string {
	if host, port, err := net.SplitHostPort(addr); err == nil {
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			return "localhost:" + port
		}
		if host == "::" || host == "" {
			host, _ := os.Hostname()
			if host == "" {
				host = "localhost"
			}
			return host + ":" + port
		}
	}
	return addr
}

// restrict serves h only to requests permitted by authRequest.
func restrict(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, _ := authRequest(r); !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// newHandler returns the handler for all listeners. http.DefaultServeMux is
// not used, so packages registering debug handlers there are not exposed.
func newHandler(embedder *stegojob.Embedder, onExtract func(*f5stego.Result)) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", httpstego.ServeMux(embedder, onExtract)))

	// trace checks trace.AuthRequest itself.
	mux.HandleFunc("/debug/requests", trace.Traces)
	mux.HandleFunc("/debug/events", trace.Events)

	mux.Handle("/debug/pprof/", restrict(http.HandlerFunc(pprof.Index)))
	mux.Handle("/debug/pprof/cmdline", restrict(http.HandlerFunc(pprof.Cmdline)))
	mux.Handle("/debug/pprof/profile", restrict(http.HandlerFunc(pprof.Profile)))
	mux.Handle("/debug/pprof/symbol", restrict(http.HandlerFunc(pprof.Symbol)))
	mux.Handle("/debug/pprof/trace", restrict(http.HandlerFunc(pprof.Trace)))
	return mux
}

func newEmbedder(quality int) *stegojob.Embedder {
	return &stegojob.Embedder{
		Options: f5stego.Options{Quality: quality},
		EmbedCallback: func(j *stegojob.Job, rep *f5stego.Report) {
			log.Printf("embedded %d bits (k=%d, %d changes, %d shrunk)", rep.Bits, rep.K, rep.Changed, rep.Shrunk)
			mayqtt.Publishf("embedded %d bits", rep.Bits)
		},
	}
}

func onExtract(res *f5stego.Result) {
	if res.Incomplete() {
		log.Printf("extracted %d of %d bytes", res.Extracted, res.Declared)
	}
	mayqtt.Publishf("extracted %d bytes", res.Extracted)
}

func logic() error {
	httpListenAddr := flag.String("http_listen_address",
		"localhost:7121",
		"[host]:port to listen on for HTTP requests")

	httpsListenAddr := flag.String("https_listen_address",
		":https",
		"[host]:port to listen on for HTTPS requests. This is a no-op unless -tls_autocert_hosts is non-empty.")

	autocertHostList := flag.String("tls_autocert_hosts",
		"",
		"If non-empty, a comma-separated list of hostnames to obtain TLS certificates for. If non-empty, a TLS listener will be enabled on -https_listen_address")

	autocertCacheDir := flag.String("autocert_cache_dir",
		"/perm/f5d-autocert",
		"Directory in which TLS certificates obtained via -tls_autocert_hosts are cached.")

	mqttBroker := flag.String("mqtt_broker",
		"",
		"If non-empty, an MQTT broker (e.g. tcp://localhost:1883) to publish status messages to.")

	quality := flag.Int("quality",
		f5stego.DefaultQuality,
		"JPEG quality used for embed jobs which do not specify one")

	flag.Parse()

	log.Printf("f5d starting")

	if *mqttBroker != "" {
		// makes mayqtt.Publishf() work as a side effect:
		mayqtt.MQTT(*mqttBroker, "f5d")
	}

	handler := newHandler(newEmbedder(*quality), onExtract)

	type serveFunc struct {
		serve    func() error
		shutdown func() error
	}
	var serveFuncs []serveFunc

	if *autocertHostList != "" {
		var hosts []string
		for _, host := range strings.Split(*autocertHostList, ",") {
			host = strings.TrimSpace(host)
			if host == "" {
				continue
			}
			hosts = append(hosts, host)
		}

		m := &autocert.Manager{
			Cache:      autocert.DirCache(*autocertCacheDir),
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(hosts...),
		}
		s := &http.Server{
			Addr:      *httpsListenAddr,
			Handler:   handler,
			TLSConfig: m.TLSConfig(),
		}
		for _, host := range hosts {
			log.Printf("listening on https://%s", host)
		}

		ln, err := net.Listen("tcp", s.Addr)
		if err != nil {
			return err
		}
		serveFuncs = append(serveFuncs, serveFunc{
			serve: func() error {
				defer ln.Close()
				return s.ServeTLS(ln, "", "")
			},
			shutdown: func() error {
				timeout, canc := context.WithTimeout(context.Background(), 250*time.Millisecond)
				defer canc()
				return s.Shutdown(timeout)
			},
		})
	}

	ln, err := net.Listen("tcp", *httpListenAddr)
	if err != nil {
		return err
	}
	log.Printf("listening on http://%s", displayAddr(ln.Addr().String()))
	srv := &http.Server{Handler: handler}
	serveFuncs = append(serveFuncs, serveFunc{
		serve: func() error {
			return srv.Serve(ln)
		},
		shutdown: func() error {
			timeout, canc := context.WithTimeout(context.Background(), 250*time.Millisecond)
			defer canc()
			return srv.Shutdown(timeout)
		},
	})

	// for /debug/requests:
	trace.AuthRequest = authRequest

	mayqtt.Publishf("ready")

	eg, ctx := errgroup.WithContext(context.Background())
	for _, sf := range serveFuncs {
		sf := sf // copy
		eg.Go(func() error {
			errC := make(chan error)
			go func() {
				errC <- sf.serve()
			}()
			select {
			case err := <-errC:
				return err
			case <-ctx.Done():
				if err := sf.shutdown(); err != nil {
					log.Printf("shutting down listener: %v", err)
				}
				return ctx.Err()
			}
		})
	}

	return eg.Wait()
}

func main() {
	if err := logic(); err != nil {
		log.Fatal(err)
	}
}
