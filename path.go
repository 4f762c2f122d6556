// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// SanitizePath canonicalizes a user supplied filesystem path: a leading "~"
// is replaced by the home directory, C0 and C1 control characters are
// removed and the result is made absolute and clean. Only the tilde is
// replaced, so "~user/x" becomes "<home>user/x".
func SanitizePath(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidSettings)
	}

	if strings.HasPrefix(input, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand home directory: %w", err)
		}
		input = home + input[1:]
	}

	input = stripControl(input)

	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	return abs, nil
}

// stripControl drops C0 and C1 control characters, whether encoded as
// runes or present as raw bytes outside valid UTF-8.
func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			if c := s[i]; c < 0x80 || c > 0x9f {
				b.WriteByte(c)
			}
			i++
			continue
		}
		if r > 0x1f && (r < 0x80 || r > 0x9f) {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}
