// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"bytes"
	"errors"
	"fmt"

	rpc "github.com/gorilla/rpc/v2/json2"
)

// JSONCodec speaks JSON-RPC 2.0. Only daemons that advertise it through a
// successful probe are sent JSON.
type JSONCodec struct{}

func (JSONCodec) Name() string        { return "json" }
func (JSONCodec) ContentType() string { return "application/json" }

func (JSONCodec) EncodeCall(method string, params []any) ([]byte, error) {
	body, err := rpc.EncodeClientRequest(method, params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode client params: %w", err)
	}
	return body, nil
}

func (JSONCodec) DecodeResponse(data []byte) (any, error) {
	var result any
	err := rpc.DecodeClientResponse(bytes.NewReader(data), &result)
	if err == nil {
		return result, nil
	}
	if errors.Is(err, rpc.ErrNullResult) {
		return nil, nil
	}
	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		return nil, &Fault{Code: int(rpcErr.Code), Message: rpcErr.Message}
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
}
