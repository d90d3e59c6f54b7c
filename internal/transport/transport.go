// Package transport builds the default HTTP round tripper used when a
// client is constructed without one.
package transport

import (
	"crypto/tls"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Pool tuning applied on top of http.DefaultTransport. Object storage
// traffic fans out many concurrent requests to one host, so the
// per-host idle pool is raised well above the stdlib default.
const (
	DefaultMaxIdleConns        = 256
	DefaultMaxIdleConnsPerHost = 64
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second
)

// Config tunes the default transport.
type Config struct {
	// InsecureSkipVerify disables TLS certificate verification, for
	// development endpoints with self-signed certificates.
	InsecureSkipVerify bool
	// EnableOTel wraps the transport with otelhttp client
	// instrumentation.
	EnableOTel bool
}

// New clones http.DefaultTransport with connection-pool and handshake
// limits suited to object-storage traffic, applying cfg on top.
func New(cfg Config) http.RoundTripper {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport
	}
	clone := base.Clone()
	if clone.MaxIdleConns < DefaultMaxIdleConns {
		clone.MaxIdleConns = DefaultMaxIdleConns
	}
	if clone.MaxIdleConnsPerHost < DefaultMaxIdleConnsPerHost {
		clone.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if clone.IdleConnTimeout == 0 {
		clone.IdleConnTimeout = DefaultIdleConnTimeout
	}
	if clone.TLSHandshakeTimeout == 0 {
		clone.TLSHandshakeTimeout = DefaultTLSHandshakeTimeout
	}
	if clone.ExpectContinueTimeout == 0 {
		clone.ExpectContinueTimeout = 1 * time.Second
	}
	if cfg.InsecureSkipVerify {
		if clone.TLSClientConfig == nil {
			clone.TLSClientConfig = &tls.Config{}
		}
		clone.TLSClientConfig.InsecureSkipVerify = true
	}
	var rt http.RoundTripper = clone
	if cfg.EnableOTel {
		rt = otelhttp.NewTransport(rt)
	}
	return rt
}
