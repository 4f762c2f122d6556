// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"errors"
	"fmt"
)

var (
	ErrEndpointMissing   = errors.New("endpoint missing for RPC connection")
	ErrInvalidSettings   = errors.New("rtrpc: invalid connection settings")
	ErrClosed            = errors.New("rtrpc: connection closed")
	ErrEmptyMethod       = errors.New("rtrpc: empty method name")
	ErrInvalidParam      = errors.New("rtrpc: unsupported parameter type")
	ErrMalformedResponse = errors.New("rtrpc: malformed response")
)

// Fault is an error reported by the daemon in a well formed response.
type Fault struct {
	Code    int
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("rtrpc: daemon fault %d: %s", f.Code, f.Message)
}

// outcome labels an exchange result for metrics and logs.
func outcome(err error) string {
	var fault *Fault
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &fault):
		return "fault"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "transport"
	}
}
