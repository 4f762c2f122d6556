// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// versionMethod is answered by every daemon version and is used to probe
// which encodings it accepts.
const versionMethod = "system.client_version"

// Capabilities describes what a daemon was found to support.
type Capabilities struct {
	JSON       bool
	RawVersion string
	Version    *semver.Version // nil when RawVersion is not a version
}

// AtLeast reports whether the daemon version satisfies constraint, e.g.
// ">= 0.9.8". An unknown version satisfies nothing.
func (c Capabilities) AtLeast(constraint string) (bool, error) {
	cs, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("parse constraint %q: %w", constraint, err)
	}
	if c.Version == nil {
		return false, nil
	}
	return cs.Check(c.Version), nil
}

// DetectCapabilities asks the daemon for its version, first as JSON-RPC
// when the transport allows it and then as XML-RPC. A successful JSON
// probe switches all later calls to JSON. The probes are queued like any
// other call.
func (d *Dispatcher) DetectCapabilities(ctx context.Context) (Capabilities, error) {
	var caps Capabilities

	if supportsJSON(d.desc.Kind()) {
		probe := &Call{Method: versionMethod, Done: make(chan *Call, 1), codec: JSONCodec{}}
		d.enqueue(probe)
		res, err := wait(ctx, probe)
		switch {
		case err == nil:
			d.jsonCapable.Store(true)
			caps.JSON = true
			caps.RawVersion = fmt.Sprint(res)
		case ctx.Err() != nil:
			return caps, ctx.Err()
		default:
			d.jsonCapable.Store(false)
			d.log.Debug("json probe rejected", "err", err)
		}
	}

	if !caps.JSON {
		probe := &Call{Method: versionMethod, Done: make(chan *Call, 1), codec: XMLCodec{}}
		d.enqueue(probe)
		res, err := wait(ctx, probe)
		if err != nil {
			return caps, err
		}
		caps.RawVersion = fmt.Sprint(res)
	}

	if v, err := semver.NewVersion(caps.RawVersion); err == nil {
		caps.Version = v
		d.version.Store(v)
	} else {
		d.log.Debug("unparsable daemon version", "version", caps.RawVersion, "err", err)
	}

	d.log.Info("daemon capabilities detected", "json", caps.JSON, "version", caps.RawVersion)
	return caps, nil
}

// Version returns the daemon version found by DetectCapabilities, or nil.
func (d *Dispatcher) Version() *semver.Version {
	return d.version.Load()
}
