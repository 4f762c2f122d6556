// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConnectionKind names the transport a ConnectionDescriptor selects.
type ConnectionKind string

// Connection kinds
const (
	KindRPC    ConnectionKind = "rpc"    // XML-RPC tunneled over HTTP
	KindTCP    ConnectionKind = "tcp"    // SCGI over TCP
	KindSocket ConnectionKind = "socket" // SCGI over a unix domain socket
)

// ConnectionDescriptor describes how to reach one daemon. It is a closed
// union: the only implementations are RPCSettings, TCPSettings and
// SocketSettings.
type ConnectionDescriptor interface {
	Kind() ConnectionKind
	Validate() error

	isConnectionDescriptor()
}

// RPCSettings reaches the daemon through an HTTP endpoint that forwards
// XML-RPC requests.
type RPCSettings struct {
	URL      string
	Username string
	Password string
}

// TCPSettings reaches the daemon's SCGI listener on host:port.
type TCPSettings struct {
	Host string
	Port int
}

// SocketSettings reaches the daemon's SCGI listener on a unix socket.
type SocketSettings struct {
	Path string
}

func (RPCSettings) Kind() ConnectionKind    { return KindRPC }
func (TCPSettings) Kind() ConnectionKind    { return KindTCP }
func (SocketSettings) Kind() ConnectionKind { return KindSocket }

func (RPCSettings) isConnectionDescriptor()    {}
func (TCPSettings) isConnectionDescriptor()    {}
func (SocketSettings) isConnectionDescriptor() {}

// Validate reports ErrEndpointMissing when no URL is configured.
func (s RPCSettings) Validate() error {
	if strings.TrimSpace(s.URL) == "" {
		return ErrEndpointMissing
	}
	return nil
}

func (s TCPSettings) Validate() error {
	if strings.TrimSpace(s.Host) == "" {
		return fmt.Errorf("%w: tcp host is empty", ErrInvalidSettings)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("%w: tcp port %d out of range", ErrInvalidSettings, s.Port)
	}
	return nil
}

func (s SocketSettings) Validate() error {
	if s.Path == "" {
		return fmt.Errorf("%w: socket path is empty", ErrInvalidSettings)
	}
	return nil
}

// Addr returns the dialable host:port.
func (s TCPSettings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// String never includes the password.
func (s RPCSettings) String() string {
	if s.Username == "" {
		return fmt.Sprintf("rpc(%s)", s.URL)
	}
	return fmt.Sprintf("rpc(%s as %s)", s.URL, s.Username)
}

func (s TCPSettings) String() string    { return fmt.Sprintf("tcp(%s)", s.Addr()) }
func (s SocketSettings) String() string { return fmt.Sprintf("socket(%s)", s.Path) }

// LogValue keeps credentials out of structured logs.
func (s RPCSettings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", string(KindRPC)),
		slog.String("url", s.URL),
		slog.String("username", s.Username),
	)
}

// canonicalize returns the descriptor a dispatcher actually uses. Socket
// paths are sanitized here, before anything dials them.
func canonicalize(desc ConnectionDescriptor) (ConnectionDescriptor, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: no connection descriptor", ErrInvalidSettings)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	switch d := desc.(type) {
	case RPCSettings:
		return d, nil
	case TCPSettings:
		return d, nil
	case SocketSettings:
		path, err := SanitizePath(d.Path)
		if err != nil {
			return nil, err
		}
		return SocketSettings{Path: path}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported connection %T", ErrInvalidSettings, desc)
	}
}

// clientName is the only daemon family this package speaks to.
const clientName = "rtorrent"

// settingsDocument mirrors the stored client connection settings. JSON
// documents parse as well since yaml.v3 accepts them.
type settingsDocument struct {
	Client   string `yaml:"client"`
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Socket   string `yaml:"socket"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ParseSettings decodes a stored connection settings document.
func ParseSettings(data []byte) (ConnectionDescriptor, error) {
	var doc settingsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if doc.Client != "" && !strings.EqualFold(doc.Client, clientName) {
		return nil, fmt.Errorf("%w: unsupported client %q", ErrInvalidSettings, doc.Client)
	}
	return NewDescriptor(ConnectionKind(doc.Type), doc.Host, doc.Port, doc.Socket, doc.URL, doc.Username, doc.Password)
}

// NewDescriptor builds the variant named by kind from flat fields, ignoring
// the fields that variant does not use.
func NewDescriptor(kind ConnectionKind, host string, port int, socket, url, username, password string) (ConnectionDescriptor, error) {
	var desc ConnectionDescriptor
	switch ConnectionKind(strings.ToLower(string(kind))) {
	case KindRPC:
		desc = RPCSettings{URL: url, Username: username, Password: password}
	case KindTCP:
		desc = TCPSettings{Host: host, Port: port}
	case KindSocket:
		desc = SocketSettings{Path: socket}
	default:
		return nil, fmt.Errorf("%w: unknown connection type %q", ErrInvalidSettings, kind)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}
