// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"errors"
	"fmt"

	"github.com/kolo/xmlrpc"
)

// XMLCodec speaks XML-RPC, which every daemon version understands.
type XMLCodec struct{}

func (XMLCodec) Name() string        { return "xml" }
func (XMLCodec) ContentType() string { return "text/xml" }

func (XMLCodec) EncodeCall(method string, params []any) ([]byte, error) {
	body, err := xmlrpc.EncodeMethodCall(method, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode client params: %w", err)
	}
	return body, nil
}

func (XMLCodec) DecodeResponse(data []byte) (any, error) {
	resp := xmlrpc.Response(data)
	if err := resp.Err(); err != nil {
		var fault xmlrpc.FaultError
		if errors.As(err, &fault) {
			return nil, &Fault{Code: fault.Code, Message: fault.String}
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var result any
	if err := resp.Unmarshal(&result); err != nil {
		// An untyped <value> is a string.
		var s string
		if resp.Unmarshal(&s) == nil {
			return s, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return result, nil
}
