package s3wire

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestPayloadVariants(t *testing.T) {
	empty := EmptyPayload()
	if empty.Len() != 0 || empty.IsStream() {
		t.Fatalf("empty payload misreported: len=%d stream=%v", empty.Len(), empty.IsStream())
	}
	b := BytesPayload([]byte("hello"))
	if b.Len() != 5 {
		t.Fatalf("bytes payload len = %d, want 5", b.Len())
	}
	s := StreamPayload(strings.NewReader("stream"))
	if s.Len() != -1 || !s.IsStream() {
		t.Fatalf("stream payload misreported: len=%d stream=%v", s.Len(), s.IsStream())
	}
	// Nil and zero-length inputs collapse to the empty variant.
	if BytesPayload(nil).IsStream() || BytesPayload(nil).Len() != 0 {
		t.Fatalf("nil bytes should collapse to empty payload")
	}
	if StreamPayload(nil).Len() != 0 {
		t.Fatalf("nil stream should collapse to empty payload")
	}
}

func TestPayloadHashing(t *testing.T) {
	hash, err := EmptyPayload().SHA256Hex()
	if err != nil {
		t.Fatalf("hash empty: %v", err)
	}
	if hash != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Fatalf("empty payload hash = %s", hash)
	}
	hash, err = BytesPayload([]byte("hello")).SHA256Hex()
	if err != nil {
		t.Fatalf("hash bytes: %v", err)
	}
	if hash != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Fatalf("bytes payload hash = %s", hash)
	}
	if _, err := StreamPayload(strings.NewReader("x")).SHA256Hex(); err == nil {
		t.Fatalf("expected error hashing unbuffered stream")
	}
}

func TestPayloadBuffer(t *testing.T) {
	p := StreamPayload(strings.NewReader("stream body"))
	buffered, err := p.Buffer()
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}
	if buffered.IsStream() || buffered.Len() != int64(len("stream body")) {
		t.Fatalf("buffered payload misreported: len=%d stream=%v", buffered.Len(), buffered.IsStream())
	}
	data, err := io.ReadAll(buffered.Reader())
	if err != nil {
		t.Fatalf("read buffered: %v", err)
	}
	if !bytes.Equal(data, []byte("stream body")) {
		t.Fatalf("buffered bytes = %q", data)
	}
	// Bytes payloads pass through Buffer unchanged and stay replayable.
	again, err := buffered.Buffer()
	if err != nil {
		t.Fatalf("rebuffer: %v", err)
	}
	data, _ = io.ReadAll(again.Reader())
	if string(data) != "stream body" {
		t.Fatalf("rebuffered bytes = %q", data)
	}
}
