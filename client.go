package s3wire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/s3wire/internal/endpoint"
	"pkt.systems/s3wire/internal/transport"
	"pkt.systems/s3wire/sigv4"
)

// amzDateFormat is ISO-8601 basic format in UTC, the form SigV4 signs.
const amzDateFormat = "20060102T150405Z"

// Client orchestrates S3 requests: URL resolution, signing invocation,
// dispatch and response normalization. It holds no cross-request
// mutable state and is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	signer Signer
	logger pslog.Logger
	now    func() time.Time
}

// New constructs a Client. Endpoint is required; every other Config
// field has a usable default.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, ErrNoEndpoint
	}
	if strings.Contains(cfg.Endpoint, "/") {
		return nil, fmt.Errorf("s3wire: endpoint must be host or host:port, got %q", cfg.Endpoint)
	}
	if cfg.Transport == nil {
		cfg.Transport = transport.New(transport.Config{})
	}
	if cfg.Signer == nil {
		cfg.Signer = sigv4.Signer{}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = pslog.NoopLogger()
	}
	return &Client{
		cfg:    cfg,
		signer: cfg.Signer,
		logger: cfg.Logger,
		now:    time.Now,
		http: &http.Client{
			Transport: cfg.Transport,
			// Redirects are surfaced to the caller as responses with
			// IsRedirect set, never followed transparently.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Operation describes one logical S3 request.
type Operation struct {
	// Method is the HTTP method. Required.
	Method string
	// Bucket and Object select the target. Either may be empty; the
	// corresponding path segment is omitted.
	Bucket string
	Object string
	// Region overrides the client preset for this operation.
	Region string
	// Resource is a pre-encoded literal query fragment, e.g.
	// "uploads" or "uploadId=abc". Empty omits it.
	Resource string
	// Query holds additional query parameters, percent-encoded and
	// key-sorted at resolution time.
	Query url.Values
	// Header carries caller-supplied headers merged into the request.
	Header http.Header
	// Payload is the request body variant.
	Payload Payload
	// Progress, when non-nil, observes cumulative byte counts during
	// send and receive.
	Progress ProgressFunc
}

// Execute runs one operation through the full pipeline and returns the
// buffered normalized response. Transport-level failures are returned
// as a Response, not as an error: failures that produced no HTTP
// response at all (connection refused, timeout, TLS failure) carry
// StatusTransportFailure, while failures mid-receive keep the captured
// status, headers and partial body with the error detail in the reason
// phrase. Only pre-transport configuration problems produce an error.
// Non-2xx server statuses are ordinary responses.
func (c *Client) Execute(ctx context.Context, op Operation) (*Response, error) {
	logger := c.requestLogger(ctx)
	start := c.now()

	req, hr, err := c.buildRequest(ctx, op)
	if err != nil {
		logger.Debug("s3wire.execute.build_error",
			"method", op.Method, "bucket", op.Bucket, "object", op.Object, "error", err)
		return nil, err
	}
	logger.Trace("s3wire.execute.begin",
		"request_id", req.ID,
		"method", req.Method,
		"url", req.URL.String(),
	)
	c.traceRequest(logger, req, hr)

	resp, err := c.http.Do(hr)
	if err != nil {
		logger.Debug("s3wire.execute.transport_error",
			"request_id", req.ID,
			"method", req.Method,
			"url", req.URL.String(),
			"error", err,
			"elapsed", c.now().Sub(start),
		)
		return failureResponse(req, err), nil
	}
	nr, err := normalizeResponse(req, resp, op.Progress)
	if err != nil {
		// Mid-receive failure. The normalized response keeps the
		// captured status, headers and partial body; only the reason
		// phrase carries the error.
		logger.Debug("s3wire.execute.read_error",
			"request_id", req.ID,
			"url", req.URL.String(),
			"status", nr.StatusCode,
			"partial_bytes", len(nr.Bytes()),
			"error", err,
		)
		return nr, nil
	}
	logger.Debug("s3wire.execute.response",
		"request_id", req.ID,
		"method", req.Method,
		"url", req.URL.String(),
		"status", nr.StatusCode,
		"bytes", len(nr.Bytes()),
		"elapsed", c.now().Sub(start),
	)
	c.traceResponse(logger, nr)
	return nr, nil
}

// ExecuteStream runs the same pipeline as Execute. Both modes funnel
// through the buffering normalizer in this design; the streamed variant
// exists so callers that consume the body incrementally read it through
// Response.Body, which replays the buffered bytes. A true non-buffering
// path would slot in here without changing the contract.
func (c *Client) ExecuteStream(ctx context.Context, op Operation) (*Response, error) {
	return c.Execute(ctx, op)
}

// Build runs the pre-transport half of the pipeline (region and URL
// resolution, header assembly, payload attachment and the signing
// invocation) and returns the signed request without dispatching it.
// Intended for diagnostics and for callers that hand the request to
// their own transport.
func (c *Client) Build(ctx context.Context, op Operation) (*Request, error) {
	req, _, err := c.buildRequest(ctx, op)
	return req, err
}

// buildRequest performs the pre-transport half of the pipeline: region
// resolution, URL resolution, header seeding and merging, payload
// attachment and the signing invocation. Everything that can fail here
// is a configuration error and is returned as such.
func (c *Client) buildRequest(ctx context.Context, op Operation) (*Request, *http.Request, error) {
	if op.Method == "" {
		return nil, nil, fmt.Errorf("s3wire: method is required")
	}
	region, err := c.resolveRegion(ctx, op)
	if err != nil {
		return nil, nil, err
	}
	u, err := endpoint.Resolve(endpoint.Config{
		Host:      c.cfg.Endpoint,
		Secure:    c.cfg.Secure,
		Region:    region,
		PathStyle: !c.cfg.VirtualHost,
	}, op.Bucket, op.Object, op.Resource, op.Query)
	if err != nil {
		return nil, nil, fmt.Errorf("s3wire: resolve url: %w", err)
	}

	req := NewRequest(op.Method, u)
	req.Progress = op.Progress
	req.Body = op.Payload
	for k, vs := range op.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	hr := (&http.Request{
		Method:     req.Method,
		URL:        req.URL,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     req.Header,
		Host:       req.URL.Host,
	}).WithContext(ctx)

	body, err := c.signRequest(hr, req.Body, region)
	if err != nil {
		return nil, nil, err
	}
	req.Body = body
	if body.Len() != 0 {
		hr.Body = io.NopCloser(newProgressReader(body.Reader(), req.Progress))
		if l := body.Len(); l >= 0 {
			hr.ContentLength = l
		}
	}
	return req, hr, nil
}

// signRequest assembles the header set the signer covers and invokes
// the external signer last, since the authorization value is computed
// over everything set before it.
//
// The payload hash policy is deliberate and preserved from the original
// design: the full-body SHA-256 is computed only when credentials are
// present and the transport is unencrypted. Over TLS the hash is
// replaced by the UNSIGNED-PAYLOAD sentinel, trading the redundant
// integrity check for not having to buffer large uploads. Anonymous
// credentials skip the signer entirely and also send the sentinel.
func (c *Client) signRequest(hr *http.Request, body Payload, region string) (Payload, error) {
	creds := c.cfg.Credentials
	hr.Header.Set("User-Agent", c.cfg.UserAgent)
	hr.Header.Set("X-Amz-Date", c.now().UTC().Format(amzDateFormat))

	hashed := UnsignedPayload
	if !creds.IsAnonymous() && !c.cfg.Secure {
		buffered, err := body.Buffer()
		if err != nil {
			return Payload{}, err
		}
		body = buffered
		hashed, err = body.SHA256Hex()
		if err != nil {
			return Payload{}, err
		}
	}
	hr.Header.Set("X-Amz-Content-Sha256", hashed)
	if creds.HasSessionToken() {
		hr.Header.Set("X-Amz-Security-Token", creds.SessionToken)
	}
	if creds.IsAnonymous() {
		return body, nil
	}
	auth, err := c.signer.Sign(hr, creds.AccessKey, creds.SecretKey, creds.SessionToken, region, c.now().UTC())
	if err != nil {
		return Payload{}, fmt.Errorf("s3wire: sign request: %w", err)
	}
	hr.Header.Set("Authorization", auth)
	return body, nil
}

// requestLogger prefers a logger carried by the request context over
// the construction-time one, so callers that thread a correlated
// logger through ctx see their fields on every event.
func (c *Client) requestLogger(ctx context.Context) pslog.Logger {
	if ctxLogger := pslog.LoggerFromContext(ctx); ctxLogger != pslog.NoopLogger() {
		return ctxLogger
	}
	return c.logger
}

// resolveRegion picks the region for one operation: explicit operation
// region, then the client preset, then the lookup collaborator, then
// DefaultRegion.
func (c *Client) resolveRegion(ctx context.Context, op Operation) (string, error) {
	if op.Region != "" {
		return op.Region, nil
	}
	if c.cfg.Region != "" {
		return c.cfg.Region, nil
	}
	if op.Bucket != "" && c.cfg.Regions != nil {
		region, err := c.cfg.Regions.ResolveBucketRegion(ctx, op.Bucket)
		if err != nil {
			return "", fmt.Errorf("s3wire: resolve bucket region: %w", err)
		}
		if region != "" {
			return region, nil
		}
	}
	return DefaultRegion, nil
}
