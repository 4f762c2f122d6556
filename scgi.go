// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"
)

// maxResponseSize bounds a single daemon response.
const maxResponseSize = 64 * 1024 * 1024 // 64MB max

// encodeSCGI frames body as an SCGI request:
//
//	<len>:CONTENT_LENGTH\0<n>\0SCGI\01\0REQUEST_METHOD\0POST\0CONTENT_TYPE\0<type>\0,<body>
func encodeSCGI(body []byte, contentType string) []byte {
	var headers bytes.Buffer
	writeHeader := func(k, v string) {
		headers.WriteString(k)
		headers.WriteByte(0)
		headers.WriteString(v)
		headers.WriteByte(0)
	}
	// CONTENT_LENGTH must come first.
	writeHeader("CONTENT_LENGTH", strconv.Itoa(len(body)))
	writeHeader("SCGI", "1")
	writeHeader("REQUEST_METHOD", "POST")
	writeHeader("CONTENT_TYPE", contentType)

	var buf bytes.Buffer
	buf.Grow(headers.Len() + len(body) + 16)
	buf.WriteString(strconv.Itoa(headers.Len()))
	buf.WriteByte(':')
	buf.Write(headers.Bytes())
	buf.WriteByte(',')
	buf.Write(body)
	return buf.Bytes()
}

// readSCGIResponse reads CGI style headers followed by the body. The
// returned keepAlive reports whether the body was delimited by
// Content-Length, leaving the connection positioned at the next response.
func readSCGIResponse(br *bufio.Reader) (body []byte, keepAlive bool, err error) {
	header, err := textproto.NewReader(br).ReadMIMEHeader()
	if err != nil {
		return nil, false, fmt.Errorf("%w: read headers: %v", ErrMalformedResponse, err)
	}

	if status := header.Get("Status"); status != "" {
		code, _, _ := strings.Cut(status, " ")
		n, err := strconv.Atoi(code)
		if err != nil {
			return nil, false, fmt.Errorf("%w: bad status %q", ErrMalformedResponse, status)
		}
		if n < 200 || n > 299 {
			return nil, false, fmt.Errorf("received status code: %d", n)
		}
	}

	if cl := header.Get("Content-Length"); cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n > maxResponseSize {
			return nil, false, fmt.Errorf("%w: bad content length %q", ErrMalformedResponse, cl)
		}
		body = make([]byte, n)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, false, fmt.Errorf("%w: short body: %v", ErrMalformedResponse, err)
		}
		return body, !strings.EqualFold(header.Get("Connection"), "close"), nil
	}

	body, err = io.ReadAll(io.LimitReader(br, maxResponseSize+1))
	if err != nil {
		return nil, false, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxResponseSize {
		return nil, false, fmt.Errorf("%w: response exceeds %d bytes", ErrMalformedResponse, maxResponseSize)
	}
	return body, false, nil
}
