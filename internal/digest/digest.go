// Package digest computes lowercase hex SHA-256 digests over bytes, streams,
// strings and JSON-serializable values.
//
// JSON values are serialized with encoding/json: struct fields keep their
// declaration order and map keys are sorted, so a value hashes the same way on
// every call as long as its type fixes the field order. Callers that hash
// map[string]any built from untrusted input get sorted keys; callers that hash
// structs must not reorder fields once hashes have been persisted.
package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrUnsupportedInput is returned when a value cannot be canonically serialized.
var ErrUnsupportedInput = errors.New("digest: unsupported input")

// Bytes returns the hex digest of b.
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// String returns the hex digest of the UTF-8 bytes of s.
func String(s string) string {
	return Bytes([]byte(s))
}

// Reader drains r into memory and returns the digest together with the bytes
// read, so the caller can still store what was hashed.
func Reader(r io.Reader) (string, []byte, error) {
	if r == nil {
		return "", nil, fmt.Errorf("%w: nil reader", ErrUnsupportedInput)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("read stream: %w", err)
	}
	return Bytes(b), b, nil
}

// Canonical serializes v to the byte form that JSON hashes are computed over.
func Canonical(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %T: %v", ErrUnsupportedInput, v, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// JSON returns the digest of the canonical serialization of v along with the
// serialized bytes.
func JSON(v any) (string, []byte, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", nil, err
	}
	return Bytes(b), b, nil
}

// Sum dispatches on the dynamic type of v.
func Sum(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", fmt.Errorf("%w: nil", ErrUnsupportedInput)
	case []byte:
		return Bytes(val), nil
	case string:
		return String(val), nil
	case json.RawMessage:
		return Bytes(val), nil
	case io.Reader:
		sum, _, err := Reader(val)
		return sum, err
	default:
		sum, _, err := JSON(val)
		return sum, err
	}
}

// Equal reports whether two hex digests are identical. Comparison is strict:
// no case folding or trimming.
func Equal(a, b string) bool {
	return a != "" && a == b
}
