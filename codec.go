// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"fmt"
)

// Codec encodes method calls into request bodies and decodes response
// bodies. Decode failures wrap ErrMalformedResponse; daemon faults are
// returned as *Fault.
type Codec interface {
	Name() string
	ContentType() string
	EncodeCall(method string, params []any) ([]byte, error)
	DecodeResponse(data []byte) (any, error)
}

// MethodCall is one entry of a MultiCall batch.
type MethodCall struct {
	Method string
	Params []any
}

// MultiCall is a batch the daemon executes in a single exchange. It is
// passed as one parameter, usually to system.multicall or d.multicall2.
type MultiCall []MethodCall

// normalizeParams checks every parameter and converts MultiCall batches
// into the generic form both codecs understand. The result is never nil so
// that encoders emit an empty parameter list rather than null.
func normalizeParams(params []any) ([]any, error) {
	out := make([]any, 0, len(params))
	for i, p := range params {
		v, err := wireValue(p)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func wireValue(p any) (any, error) {
	switch v := p.(type) {
	case string, []byte, bool, int, int32, int64, float64:
		return v, nil
	case MultiCall:
		calls := make([]any, 0, len(v))
		for _, c := range v {
			if c.Method == "" {
				return nil, ErrEmptyMethod
			}
			params, err := normalizeParams(c.Params)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", c.Method, err)
			}
			calls = append(calls, map[string]any{
				"methodName": c.Method,
				"params":     params,
			})
		}
		return calls, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidParam, p)
	}
}
