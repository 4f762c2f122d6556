// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package main is the entrypoint for rtcall, a one-shot daemon method caller.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	gjson "github.com/goccy/go-json"

	"github.com/luxfi/rtrpc"
	"github.com/luxfi/rtrpc/internal/config"
	"github.com/luxfi/rtrpc/internal/logging"
)

const usage = `Usage: rtcall [command]
       rtcall call <method> [arg...]   Send one method call and print the result as JSON.
       rtcall detect                   Report whether the daemon speaks JSON-RPC and its version.

Arguments are sent as strings; prefix with "i:" to send an integer (i:5).

Environment: RTORRENT_CONNECTION_TYPE (tcp, socket, rpc), RTORRENT_HOST, RTORRENT_PORT,
RTORRENT_SOCKET, RTORRENT_URL, RTORRENT_USERNAME, RTORRENT_PASSWORD, RTORRENT_SETTINGS_FILE,
RTORRENT_REQUEST_TIMEOUT, RTORRENT_DIAL_TIMEOUT, LOG_LEVEL.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "call":
		if len(args) < 2 {
			log.Fatalf("rtcall call: require method name")
		}
		if err := runCall(ctx, os.Stdout, args[1], args[2:]); err != nil {
			log.Fatalf("rtcall call: %v", err)
		}
	case "detect":
		if err := runDetect(ctx, os.Stdout); err != nil {
			log.Fatalf("rtcall detect: %v", err)
		}
	case "help", "-h", "--help", "":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}
}

func dial() (*rtrpc.Dispatcher, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	desc, err := cfg.Descriptor()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel, os.Stderr)
	opts := append(cfg.Options(), rtrpc.WithLogger(logger))
	return rtrpc.New(desc, opts...)
}

func runCall(ctx context.Context, w io.Writer, method string, rawArgs []string) error {
	params, err := parseArgs(rawArgs)
	if err != nil {
		return err
	}

	d, err := dial()
	if err != nil {
		return err
	}
	defer d.Close()

	if d.Kind() != rtrpc.KindRPC {
		if _, err := d.DetectCapabilities(ctx); err != nil {
			return fmt.Errorf("detect capabilities: %w", err)
		}
	}

	result, err := d.Call(ctx, method, params...)
	if err != nil {
		return err
	}
	return writeJSON(w, result)
}

func runDetect(ctx context.Context, w io.Writer) error {
	d, err := dial()
	if err != nil {
		return err
	}
	defer d.Close()

	caps, err := d.DetectCapabilities(ctx)
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]any{
		"connection": d.Kind(),
		"json":       caps.JSON,
		"version":    caps.RawVersion,
	})
}

// parseArgs converts command line arguments to call parameters.
func parseArgs(raw []string) ([]any, error) {
	params := make([]any, 0, len(raw))
	for _, arg := range raw {
		if len(arg) > 2 && arg[:2] == "i:" {
			n, err := strconv.ParseInt(arg[2:], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad integer argument %q: %w", arg, err)
			}
			params = append(params, n)
			continue
		}
		params = append(params, arg)
	}
	return params, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := gjson.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
