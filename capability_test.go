// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
)

const daemonVersion = "0.15.1"

func versionHandler(jsonOK bool) func(req scgiRequest) (string, []byte) {
	return func(req scgiRequest) (string, []byte) {
		if req.Headers["CONTENT_TYPE"] == "application/json" {
			if !jsonOK {
				return "text/xml", xmlFault(-503, "Could not parse XML-RPC request")
			}
			if req.Method() == versionMethod {
				return "application/json", jsonResult(req.Body, daemonVersion)
			}
			return "application/json", jsonResult(req.Body, req.Method())
		}
		if req.Method() == versionMethod {
			return "text/xml", xmlString(daemonVersion)
		}
		return "text/xml", xmlString(req.Method())
	}
}

func TestDetectCapabilitiesJSON(t *testing.T) {
	ln, settings := listenTCP(t)
	daemon := startFakeDaemon(t, ln, false, versionHandler(true))

	d, err := New(settings)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	caps, err := d.DetectCapabilities(ctx)
	if err != nil {
		t.Fatalf("DetectCapabilities: %v", err)
	}
	if !caps.JSON {
		t.Error("expected JSON capability")
	}
	if caps.RawVersion != daemonVersion {
		t.Errorf("RawVersion = %q, want %q", caps.RawVersion, daemonVersion)
	}
	if caps.Version == nil || !caps.Version.Equal(semver.MustParse(daemonVersion)) {
		t.Errorf("Version = %v, want %s", caps.Version, daemonVersion)
	}
	if !d.JSONCapable() {
		t.Error("dispatcher should switch to JSON")
	}
	if v := d.Version(); v == nil || v.String() != daemonVersion {
		t.Errorf("Version() = %v, want %s", v, daemonVersion)
	}

	if _, err := d.Call(ctx, "system.hostname"); err != nil {
		t.Fatalf("Call: %v", err)
	}
	reqs := daemon.requests()
	if len(reqs) != 2 {
		t.Fatalf("daemon saw %d requests, want 2", len(reqs))
	}
	for i, req := range reqs {
		if ct := req.Headers["CONTENT_TYPE"]; ct != "application/json" {
			t.Errorf("request %d content type = %q, want application/json", i, ct)
		}
	}
}

func TestDetectCapabilitiesXMLFallback(t *testing.T) {
	ln, settings := listenTCP(t)
	daemon := startFakeDaemon(t, ln, false, versionHandler(false))

	d, err := New(settings)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	caps, err := d.DetectCapabilities(ctx)
	if err != nil {
		t.Fatalf("DetectCapabilities: %v", err)
	}
	if caps.JSON || d.JSONCapable() {
		t.Error("daemon without JSON-RPC reported as capable")
	}
	if caps.RawVersion != daemonVersion {
		t.Errorf("RawVersion = %q, want %q", caps.RawVersion, daemonVersion)
	}

	reqs := daemon.requests()
	if len(reqs) != 2 {
		t.Fatalf("daemon saw %d requests, want 2", len(reqs))
	}
	if reqs[0].Headers["CONTENT_TYPE"] != "application/json" || reqs[1].Headers["CONTENT_TYPE"] != "text/xml" {
		t.Errorf("probe order = %q then %q, want JSON then XML",
			reqs[0].Headers["CONTENT_TYPE"], reqs[1].Headers["CONTENT_TYPE"])
	}
}

func TestDetectCapabilitiesClearsAssumedJSON(t *testing.T) {
	ln, settings := listenTCP(t)
	daemon := startFakeDaemon(t, ln, false, versionHandler(false))

	d, err := New(settings, WithJSONCapable())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	caps, err := d.DetectCapabilities(ctx)
	if err != nil {
		t.Fatalf("DetectCapabilities: %v", err)
	}
	if caps.JSON || d.JSONCapable() {
		t.Fatalf("caps.JSON = %v, JSONCapable() = %v, want both false", caps.JSON, d.JSONCapable())
	}

	got, err := d.Call(ctx, "system.hostname")
	if err != nil {
		t.Fatalf("Call after detection: %v", err)
	}
	if got != "system.hostname" {
		t.Errorf("result = %#v, want system.hostname", got)
	}
	reqs := daemon.requests()
	if ct := reqs[len(reqs)-1].Headers["CONTENT_TYPE"]; ct != "text/xml" {
		t.Errorf("call after detection sent %q, want text/xml", ct)
	}
}

func TestDetectCapabilitiesRPCNeverProbesJSON(t *testing.T) {
	var (
		mu    sync.Mutex
		types []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		types = append(types, r.Header.Get("Content-Type"))
		mu.Unlock()
		w.Write(xmlString("0.9.8"))
	}))
	defer srv.Close()

	d, err := New(RPCSettings{URL: srv.URL}, WithJSONCapable())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	caps, err := d.DetectCapabilities(context.Background())
	if err != nil {
		t.Fatalf("DetectCapabilities: %v", err)
	}
	if caps.JSON {
		t.Error("RPC connection reported JSON capable")
	}
	if ok, _ := caps.AtLeast(">= 0.9.8"); !ok {
		t.Errorf("version %v should satisfy >= 0.9.8", caps.Version)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(types) != 1 || types[0] != "text/xml" {
		t.Errorf("content types = %v, want a single text/xml probe", types)
	}
}

func TestCapabilitiesAtLeast(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		constraint string
		want       bool
		wantErr    bool
	}{
		{name: "satisfied", version: "0.15.1", constraint: ">= 0.15.0", want: true},
		{name: "too old", version: "0.9.8", constraint: ">= 0.15.0"},
		{name: "unknown version", constraint: ">= 0.1.0"},
		{name: "bad constraint", version: "0.15.1", constraint: "not a constraint", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := Capabilities{RawVersion: tt.version}
			if tt.version != "" {
				caps.Version = semver.MustParse(tt.version)
			}
			got, err := caps.AtLeast(tt.constraint)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AtLeast error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("AtLeast(%q) = %v, want %v", tt.constraint, got, tt.want)
			}
		})
	}
}
