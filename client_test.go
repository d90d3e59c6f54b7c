package s3wire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"pkt.systems/pslog"
)

// captureSigner records the signing invocation instead of computing a
// real signature.
type captureSigner struct {
	called bool
	region string
	access string
	token  string
}

func (s *captureSigner) Sign(req *http.Request, accessKey, secretKey, sessionToken, region string, t time.Time) (string, error) {
	s.called = true
	s.region = region
	s.access = accessKey
	s.token = sessionToken
	return "AWS4-HMAC-SHA256 Credential=" + accessKey + "/test, Signature=deadbeef", nil
}

func TestNewValidatesEndpoint(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("expected ErrNoEndpoint, got %v", err)
	}
	if _, err := New(Config{Endpoint: "http://minio.local"}); err == nil {
		t.Fatalf("expected error for endpoint with scheme")
	}
	if _, err := New(Config{Endpoint: "minio.local:9000"}); err != nil {
		t.Fatalf("host:port endpoint should be accepted: %v", err)
	}
}

func TestSignRequestPayloadHashPolicy(t *testing.T) {
	creds := Credentials{AccessKey: "AKIATEST", SecretKey: "secret"}
	body := []byte("hello world")
	// sha256("hello world")
	bodyHash := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

	cases := []struct {
		name     string
		creds    Credentials
		secure   bool
		wantHash string
		wantAuth bool
	}{
		{name: "credentials plaintext hashes body", creds: creds, secure: false, wantHash: bodyHash, wantAuth: true},
		{name: "credentials tls skips hashing", creds: creds, secure: true, wantHash: UnsignedPayload, wantAuth: true},
		{name: "anonymous plaintext unsigned", creds: Credentials{}, secure: false, wantHash: UnsignedPayload, wantAuth: false},
		{name: "anonymous tls unsigned", creds: Credentials{}, secure: true, wantHash: UnsignedPayload, wantAuth: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			signer := &captureSigner{}
			client, err := New(Config{
				Endpoint:    "minio.local:9000",
				Secure:      tc.secure,
				Region:      "us-east-1",
				Credentials: tc.creds,
				Signer:      signer,
			})
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			req, err := client.Build(context.Background(), Operation{
				Method:  http.MethodPut,
				Bucket:  "data",
				Object:  "o",
				Payload: BytesPayload(body),
			})
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if got := req.Header.Get("X-Amz-Content-Sha256"); got != tc.wantHash {
				t.Fatalf("payload hash = %s, want %s", got, tc.wantHash)
			}
			auth := req.Header.Get("Authorization")
			if tc.wantAuth && auth == "" {
				t.Fatalf("expected Authorization header")
			}
			if !tc.wantAuth && auth != "" {
				t.Fatalf("anonymous request must not carry Authorization, got %q", auth)
			}
			if signer.called != tc.wantAuth {
				t.Fatalf("signer called = %v, want %v", signer.called, tc.wantAuth)
			}
			if req.Header.Get("X-Amz-Date") == "" {
				t.Fatalf("expected X-Amz-Date header")
			}
		})
	}
}

func TestSignRequestSessionToken(t *testing.T) {
	signer := &captureSigner{}
	client, err := New(Config{
		Endpoint: "minio.local:9000",
		Region:   "us-east-1",
		Credentials: Credentials{
			AccessKey:    "AKIATEST",
			SecretKey:    "secret",
			SessionToken: "tok",
		},
		Signer: signer,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	req, err := client.Build(context.Background(), Operation{Method: http.MethodGet, Bucket: "data", Object: "o"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := req.Header.Get("X-Amz-Security-Token"); got != "tok" {
		t.Fatalf("security token header = %q", got)
	}
	if signer.token != "tok" {
		t.Fatalf("signer got token %q", signer.token)
	}
}

func TestResolveRegionOrder(t *testing.T) {
	lookups := 0
	resolver := RegionResolverFunc(func(_ context.Context, bucket string) (string, error) {
		lookups++
		if bucket == "known" {
			return "eu-north-1", nil
		}
		return "", nil
	})

	build := func(t *testing.T, cfgRegion string, op Operation) string {
		t.Helper()
		signer := &captureSigner{}
		client, err := New(Config{
			Endpoint:    "minio.local:9000",
			Region:      cfgRegion,
			Regions:     resolver,
			Credentials: Credentials{AccessKey: "ak", SecretKey: "sk"},
			Signer:      signer,
		})
		if err != nil {
			t.Fatalf("new client: %v", err)
		}
		if _, err := client.Build(context.Background(), op); err != nil {
			t.Fatalf("build: %v", err)
		}
		return signer.region
	}

	if got := build(t, "us-west-2", Operation{Method: "GET", Bucket: "known", Region: "ap-south-1"}); got != "ap-south-1" {
		t.Fatalf("operation region should win, got %s", got)
	}
	if got := build(t, "us-west-2", Operation{Method: "GET", Bucket: "known"}); got != "us-west-2" {
		t.Fatalf("client region should win over lookup, got %s", got)
	}
	if lookups != 0 {
		t.Fatalf("resolver must not run when a region is preset, ran %d times", lookups)
	}
	if got := build(t, "", Operation{Method: "GET", Bucket: "known"}); got != "eu-north-1" {
		t.Fatalf("lookup region expected, got %s", got)
	}
	if got := build(t, "", Operation{Method: "GET", Bucket: "unknown"}); got != DefaultRegion {
		t.Fatalf("default region expected for unknown bucket, got %s", got)
	}
}

func TestResolveRegionLookupError(t *testing.T) {
	client, err := New(Config{
		Endpoint: "minio.local:9000",
		Regions: RegionResolverFunc(func(context.Context, string) (string, error) {
			return "", errors.New("lookup exploded")
		}),
		Credentials: Credentials{AccessKey: "ak", SecretKey: "sk"},
		Signer:      &captureSigner{},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Build(context.Background(), Operation{Method: "GET", Bucket: "data"}); err == nil {
		t.Fatalf("expected lookup error to surface")
	}
}

func TestExecuteTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := strings.TrimPrefix(server.URL, "http://")
	server.Close()

	client, err := New(Config{Endpoint: endpoint, Region: "us-east-1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Execute(context.Background(), Operation{Method: http.MethodGet, Bucket: "data", Object: "o"})
	if err != nil {
		t.Fatalf("transport failure must not surface as error: %v", err)
	}
	if resp.StatusCode != StatusTransportFailure {
		t.Fatalf("status = %d, want %d", resp.StatusCode, StatusTransportFailure)
	}
	if resp.Status == "" {
		t.Fatalf("expected fault description in status line")
	}
	if resp.Request == nil || resp.Request.Method != http.MethodGet {
		t.Fatalf("expected request back-reference")
	}
	if len(resp.Bytes()) != 0 {
		t.Fatalf("fault response must have empty body")
	}
}

func TestExecuteContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client, err := New(Config{Endpoint: strings.TrimPrefix(server.URL, "http://"), Region: "us-east-1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	resp, err := client.Execute(ctx, Operation{Method: http.MethodGet, Bucket: "data"})
	if err != nil {
		t.Fatalf("cancellation must not surface as error: %v", err)
	}
	if resp.StatusCode != StatusTransportFailure {
		t.Fatalf("status = %d, want %d", resp.StatusCode, StatusTransportFailure)
	}
}

func TestExecuteKeepsPartialResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Declare ten body bytes, deliver four, then kill the
		// connection mid-body.
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		fmt.Fprint(conn, "HTTP/1.1 200 OK\r\nContent-Length: 10\r\nEtag: \"abc\"\r\n\r\nabcd")
		conn.Close()
	}))
	defer server.Close()

	client, err := New(Config{Endpoint: strings.TrimPrefix(server.URL, "http://"), Region: "us-east-1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Execute(context.Background(), Operation{Method: http.MethodGet, Bucket: "data", Object: "o"})
	if err != nil {
		t.Fatalf("mid-body failure must not surface as error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, captured status must survive", resp.StatusCode)
	}
	if resp.Header["Etag"] != `"abc"` {
		t.Fatalf("captured headers lost: %v", resp.Header)
	}
	if string(resp.Bytes()) != "abcd" {
		t.Fatalf("partial body = %q, want abcd", resp.Bytes())
	}
	if resp.Status == "OK" || resp.Status == "" {
		t.Fatalf("reason phrase should carry the error detail, got %q", resp.Status)
	}
}

func TestExecuteUsesContextLogger(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(Config{Endpoint: strings.TrimPrefix(server.URL, "http://"), Region: "us-east-1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	var buf bytes.Buffer
	logger := pslog.NewWithOptions(&buf, pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.TraceLevel})
	ctx := pslog.ContextWithLogger(context.Background(), logger.With("cid", "ctx-42"))
	if _, err := client.Execute(ctx, Operation{Method: http.MethodGet, Bucket: "data", Object: "o"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "s3wire.execute.response") {
		t.Fatalf("context logger did not receive events: %q", out)
	}
	if !strings.Contains(out, "ctx-42") {
		t.Fatalf("context logger fields missing from events: %q", out)
	}
}

func TestExecuteHeaderJoin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(Config{Endpoint: strings.TrimPrefix(server.URL, "http://"), Region: "us-east-1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Execute(context.Background(), Operation{Method: http.MethodGet, Bucket: "data", Object: "o"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := resp.Header["X-Multi"]; got != "a,b" {
		t.Fatalf("duplicate headers must comma-join, got %q", got)
	}
}

func TestExecuteRedirectSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/elsewhere")
		w.WriteHeader(http.StatusTemporaryRedirect)
	}))
	defer server.Close()

	client, err := New(Config{Endpoint: strings.TrimPrefix(server.URL, "http://"), Region: "us-east-1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Execute(context.Background(), Operation{Method: http.MethodGet, Bucket: "data", Object: "o"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !resp.IsRedirect {
		t.Fatalf("3xx response must set IsRedirect")
	}
	if got := resp.Header["Location"]; got != "/elsewhere" {
		t.Fatalf("location header = %q", got)
	}
}

func setupFakeS3(t *testing.T) (*httptest.Server, *Client, string) {
	t.Helper()
	backend := s3mem.New()
	fs := gofakes3.New(backend)
	server := httptest.NewServer(fs.Server())
	bucket := "s3wire-test"
	if err := backend.CreateBucket(bucket); err != nil {
		t.Fatalf("create bucket: %v", err)
	}
	client, err := New(Config{
		Endpoint:    strings.TrimPrefix(server.URL, "http://"),
		Region:      "us-east-1",
		Credentials: Credentials{AccessKey: "test", SecretKey: "test"},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return server, client, bucket
}

func TestExecuteObjectLifecycle(t *testing.T) {
	server, client, bucket := setupFakeS3(t)
	defer server.Close()
	ctx := context.Background()
	payload := []byte("the quick brown fox")

	put, err := client.Execute(ctx, Operation{
		Method:  http.MethodPut,
		Bucket:  bucket,
		Object:  "dir/fox.txt",
		Payload: BytesPayload(payload),
		Header:  http.Header{"Content-Type": []string{"text/plain"}},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if put.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d: %s", put.StatusCode, put.Status)
	}
	if put.Header["Etag"] == "" && put.Header["ETag"] == "" {
		t.Fatalf("expected etag on put, headers: %v", put.Header)
	}

	get, err := client.Execute(ctx, Operation{Method: http.MethodGet, Bucket: bucket, Object: "dir/fox.txt"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if get.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d: %s", get.StatusCode, get.Status)
	}
	if string(get.Bytes()) != string(payload) {
		t.Fatalf("get body = %q", get.Bytes())
	}
	// The buffered body replays.
	text, err := get.Text()
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	if text != string(payload) {
		t.Fatalf("text = %q", text)
	}

	head, err := client.Execute(ctx, Operation{Method: http.MethodHead, Bucket: bucket, Object: "dir/fox.txt"})
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.StatusCode != http.StatusOK {
		t.Fatalf("head status = %d", head.StatusCode)
	}
	if head.ContentLength() != int64(len(payload)) {
		t.Fatalf("head content length = %d, want %d", head.ContentLength(), len(payload))
	}

	del, err := client.Execute(ctx, Operation{Method: http.MethodDelete, Bucket: bucket, Object: "dir/fox.txt"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if del.StatusCode != http.StatusOK && del.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", del.StatusCode)
	}

	missing, err := client.Execute(ctx, Operation{Method: http.MethodGet, Bucket: bucket, Object: "dir/fox.txt"})
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("status after delete = %d", missing.StatusCode)
	}
	se, err := missing.DecodeError()
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if se.Code != "NoSuchKey" {
		t.Fatalf("error code = %q", se.Code)
	}
}

func TestExecuteProgress(t *testing.T) {
	server, client, bucket := setupFakeS3(t)
	defer server.Close()
	ctx := context.Background()
	payload := []byte("progress payload")

	var last int64
	put, err := client.Execute(ctx, Operation{
		Method:   http.MethodPut,
		Bucket:   bucket,
		Object:   "p",
		Payload:  BytesPayload(payload),
		Progress: func(transferred int64) { last = transferred },
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if put.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d", put.StatusCode)
	}
	if last != int64(len(payload)) {
		t.Fatalf("upload progress ended at %d, want %d", last, len(payload))
	}

	last = 0
	get, err := client.Execute(ctx, Operation{
		Method:   http.MethodGet,
		Bucket:   bucket,
		Object:   "p",
		Progress: func(transferred int64) { last = transferred },
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if get.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", get.StatusCode)
	}
	if last != int64(len(payload)) {
		t.Fatalf("download progress ended at %d, want %d", last, len(payload))
	}
}

func TestCachedRegionsSingleLookup(t *testing.T) {
	calls := 0
	cached := CachedRegions(RegionResolverFunc(func(_ context.Context, bucket string) (string, error) {
		calls++
		return "eu-west-1", nil
	}))
	for i := 0; i < 3; i++ {
		region, err := cached.ResolveBucketRegion(context.Background(), "data")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if region != "eu-west-1" {
			t.Fatalf("region = %s", region)
		}
	}
	if calls != 1 {
		t.Fatalf("inner resolver ran %d times, want 1", calls)
	}
	if CachedRegions(nil) != nil {
		t.Fatalf("nil inner must stay nil")
	}
}
