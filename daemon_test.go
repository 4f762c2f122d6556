// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

var methodNameRe = regexp.MustCompile(`<methodName>([^<]*)</methodName>`)

// scgiRequest is one request as seen by fakeDaemon.
type scgiRequest struct {
	Headers map[string]string
	Body    []byte
}

// Method extracts the method name from either encoding.
func (r scgiRequest) Method() string {
	if m := methodNameRe.FindSubmatch(r.Body); m != nil {
		return string(m[1])
	}
	var req struct {
		Method string `json:"method"`
	}
	_ = json.Unmarshal(r.Body, &req)
	return req.Method
}

// fakeDaemon answers SCGI requests on a listener. keepAlive leaves the
// connection open after each response; otherwise it is closed the way
// rTorrent does.
type fakeDaemon struct {
	ln        net.Listener
	keepAlive bool
	handle    func(req scgiRequest) (contentType string, body []byte)

	accepts atomic.Int32
	mu      sync.Mutex
	seen    []scgiRequest
	wg      sync.WaitGroup
}

func startFakeDaemon(t *testing.T, ln net.Listener, keepAlive bool, handle func(req scgiRequest) (string, []byte)) *fakeDaemon {
	t.Helper()
	f := &fakeDaemon{ln: ln, keepAlive: keepAlive, handle: handle}
	f.wg.Add(1)
	go f.serve()
	t.Cleanup(func() {
		ln.Close()
		f.wg.Wait()
	})
	return f
}

func (f *fakeDaemon) serve() {
	defer f.wg.Done()
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.accepts.Add(1)
		f.wg.Add(1)
		go f.handleConn(conn)
	}
}

func (f *fakeDaemon) handleConn(conn net.Conn) {
	defer f.wg.Done()
	defer conn.Close()

	br := bufio.NewReader(conn)
	for {
		req, err := readSCGIRequest(br)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.seen = append(f.seen, req)
		f.mu.Unlock()

		contentType, body := f.handle(req)
		resp := fmt.Sprintf("Status: 200 OK\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n", contentType, len(body))
		if _, err := conn.Write(append([]byte(resp), body...)); err != nil {
			return
		}
		if !f.keepAlive {
			return
		}
	}
}

func (f *fakeDaemon) requests() []scgiRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scgiRequest(nil), f.seen...)
}

func readSCGIRequest(br *bufio.Reader) (scgiRequest, error) {
	lenStr, err := br.ReadString(':')
	if err != nil {
		return scgiRequest{}, err
	}
	n, err := strconv.Atoi(lenStr[:len(lenStr)-1])
	if err != nil {
		return scgiRequest{}, err
	}
	raw := make([]byte, n+1)
	if _, err := io.ReadFull(br, raw); err != nil {
		return scgiRequest{}, err
	}
	if raw[n] != ',' {
		return scgiRequest{}, fmt.Errorf("missing netstring terminator")
	}

	parts := bytes.Split(raw[:n], []byte{0})
	headers := make(map[string]string)
	for i := 0; i+1 < len(parts); i += 2 {
		headers[string(parts[i])] = string(parts[i+1])
	}
	size, err := strconv.Atoi(headers["CONTENT_LENGTH"])
	if err != nil {
		return scgiRequest{}, err
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(br, body); err != nil {
		return scgiRequest{}, err
	}
	return scgiRequest{Headers: headers, Body: body}, nil
}

func xmlString(s string) []byte {
	return []byte(`<?xml version="1.0"?><methodResponse><params><param><value><string>` +
		s + `</string></value></param></params></methodResponse>`)
}

func xmlFault(code int, msg string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0"?><methodResponse><fault><value><struct>`+
		`<member><name>faultCode</name><value><i4>%d</i4></value></member>`+
		`<member><name>faultString</name><value><string>%s</string></value></member>`+
		`</struct></value></fault></methodResponse>`, code, msg))
}

// jsonResult answers a JSON-RPC request body with result, echoing its id.
func jsonResult(reqBody []byte, result any) []byte {
	var req struct {
		ID json.RawMessage `json:"id"`
	}
	_ = json.Unmarshal(reqBody, &req)
	out, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	return out
}

// echoHandler answers every call with its own method name in the encoding
// it was asked in.
func echoHandler(req scgiRequest) (string, []byte) {
	if req.Headers["CONTENT_TYPE"] == "application/json" {
		return "application/json", jsonResult(req.Body, req.Method())
	}
	return "text/xml", xmlString(req.Method())
}
