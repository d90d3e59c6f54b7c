package s3wire

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Hex SHA-256 of the empty string, the hash every body-less request
// signs over.
const emptySHA256Hex = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// UnsignedPayload is the sentinel substituted for the payload hash when
// full-body hashing is skipped.
const UnsignedPayload = "UNSIGNED-PAYLOAD"

type payloadKind int

const (
	payloadEmpty payloadKind = iota
	payloadBytes
	payloadStream
)

// Payload is the tagged body variant attached to an outbound request:
// empty, an in-memory byte sequence, or a live stream. Hashing and
// transport submission are defined per variant.
type Payload struct {
	kind   payloadKind
	data   []byte
	stream io.Reader
}

// EmptyPayload returns the body-less payload. The zero Payload is
// equivalent.
func EmptyPayload() Payload {
	return Payload{kind: payloadEmpty}
}

// BytesPayload wraps an in-memory body. The slice is not copied; the
// caller must not mutate it while the request is in flight.
func BytesPayload(data []byte) Payload {
	if len(data) == 0 {
		return EmptyPayload()
	}
	return Payload{kind: payloadBytes, data: data}
}

// StreamPayload wraps a live reader of unknown length. Stream payloads
// are submitted unbuffered unless the signing policy requires a body
// hash, in which case Buffer is applied first.
func StreamPayload(r io.Reader) Payload {
	if r == nil {
		return EmptyPayload()
	}
	return Payload{kind: payloadStream, stream: r}
}

// IsStream reports whether the payload is a live stream variant.
func (p Payload) IsStream() bool {
	return p.kind == payloadStream
}

// Len returns the body length in bytes, or -1 for stream payloads whose
// length is unknown until consumed.
func (p Payload) Len() int64 {
	switch p.kind {
	case payloadBytes:
		return int64(len(p.data))
	case payloadStream:
		return -1
	default:
		return 0
	}
}

// Reader returns a reader over the body. Empty and bytes payloads
// return a fresh reader on every call; stream payloads return the
// underlying stream, which is single-use.
func (p Payload) Reader() io.Reader {
	switch p.kind {
	case payloadBytes:
		return bytes.NewReader(p.data)
	case payloadStream:
		return p.stream
	default:
		return bytes.NewReader(nil)
	}
}

// Buffer drains a stream payload into memory and returns the resulting
// bytes payload. Non-stream payloads are returned unchanged. Buffering
// is required before hashing a stream since the same bytes must be both
// hashed and sent.
func (p Payload) Buffer() (Payload, error) {
	if p.kind != payloadStream {
		return p, nil
	}
	data, err := io.ReadAll(p.stream)
	if err != nil {
		return Payload{}, fmt.Errorf("s3wire: buffer payload: %w", err)
	}
	return BytesPayload(data), nil
}

// SHA256Hex returns the lower-case hex SHA-256 of the body. Stream
// payloads cannot be hashed in place; callers buffer them first.
func (p Payload) SHA256Hex() (string, error) {
	switch p.kind {
	case payloadEmpty:
		return emptySHA256Hex, nil
	case payloadBytes:
		sum := sha256.Sum256(p.data)
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("s3wire: cannot hash a stream payload without buffering")
	}
}
