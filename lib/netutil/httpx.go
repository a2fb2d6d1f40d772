// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small HTTP helpers shared by the Matrix and
// identity-provider clients.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize caps how many bytes of an HTTP response body are
// read. Protects against a misbehaving server streaming an unbounded
// body. 10 MB is far above any response the bot handles (the largest
// are initial /sync snapshots).
const MaxResponseSize = 10 << 20

// ReadResponse reads an HTTP response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a JSON API response body (up to MaxResponseSize
// bytes) and decodes it into v. Replaces the common io.ReadAll +
// json.Unmarshal pattern.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an HTTP error response body and returns it as a
// string for diagnostic error messages. Read errors are silently
// ignored — a partial or empty body is still useful in an error
// message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
