package s3wire

import (
	"errors"
	"net/http"

	"pkt.systems/pslog"
)

// Version is the library version reported in the User-Agent header.
const Version = "0.1.0"

const (
	// DefaultUserAgent identifies this client on the wire when no
	// custom user agent is configured.
	DefaultUserAgent = "s3wire/" + Version + " (pkt.systems)"
)

// ErrNoEndpoint is returned by New when no endpoint host is configured.
var ErrNoEndpoint = errors.New("s3wire: endpoint is required")

// Config controls the behaviour of a Client. All fields are read-only
// after New; a Client is safe for concurrent use because nothing in it
// mutates after construction.
type Config struct {
	// Endpoint is the object-storage host, as host or host:port.
	// Amazon S3 hosts are rewritten to the canonical regional endpoint
	// per operation.
	Endpoint string
	// Secure selects https. Besides the scheme, it feeds the payload
	// hashing policy: full-body hashes are only computed over
	// unencrypted transports.
	Secure bool
	// Region is the preset region. Empty defers to per-operation
	// regions, then the Regions collaborator, then DefaultRegion.
	Region string
	// VirtualHost prefers virtual-hosted-style addressing for
	// non-Amazon endpoints. The default is path-style, which arbitrary
	// S3-compatible servers always support.
	VirtualHost bool
	// Credentials is the identity requests are signed with. The zero
	// value is anonymous and disables signing.
	Credentials Credentials
	// Signer computes authorization headers. Nil selects the SigV4
	// default (sigv4.Signer).
	Signer Signer
	// Regions resolves bucket regions when neither Region nor the
	// operation supplies one. Nil skips discovery.
	Regions RegionResolver
	// Transport dispatches requests. Nil selects a tuned clone of
	// http.DefaultTransport.
	Transport http.RoundTripper
	// UserAgent overrides DefaultUserAgent.
	UserAgent string
	// Logger receives structured request/response events. Nil logs
	// nothing.
	Logger pslog.Logger
	// Trace additionally dumps full header sets for every request and
	// response through Logger. It has no effect on control flow.
	Trace bool
}
