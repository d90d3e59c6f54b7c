// Package endpoint resolves logical S3 operations to fully qualified
// URLs: path-style versus virtual-hosted-style bucket addressing,
// Amazon endpoint rewriting, and the RFC 3986 query encoding the SigV4
// canonical query string is computed over.
package endpoint

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// DefaultRegion is assumed when no region is configured or discovered.
const DefaultRegion = "us-east-1"

// Config carries the client-level addressing configuration. It is
// read-only for the resolver; Resolve is a pure function of Config and
// its arguments.
type Config struct {
	// Host is the configured endpoint as host or host:port.
	Host string
	// Secure selects https over http.
	Secure bool
	// Region is the resolved region for this operation.
	Region string
	// PathStyle forces path-style addressing for non-Amazon hosts.
	// Arbitrary S3-compatible servers rarely support virtual-hosted DNS
	// routing, so this is the default for them.
	PathStyle bool
}

// amazonHostPattern matches the S3 endpoint host forms with a region
// label (s3.<region>.amazonaws.com, s3-<region>.amazonaws.com,
// s3.dualstack.<region>.amazonaws.com). The bare s3.amazonaws.com form
// is matched by the equality check in IsAmazonEndpoint; the pattern
// requires a label between the s3 prefix and the amazonaws.com suffix,
// so a host like s3-amazonaws.com stays non-Amazon.
var amazonHostPattern = regexp.MustCompile(`^s3[.-](dualstack\.)?[a-z0-9-]+\.amazonaws\.com$`)

// IsAmazonEndpoint reports whether host (without port) is an Amazon S3
// endpoint that should be rewritten to the canonical regional form.
func IsAmazonEndpoint(host string) bool {
	host = strings.ToLower(host)
	return host == "s3.amazonaws.com" || amazonHostPattern.MatchString(host)
}

// AmazonEndpoint returns the canonical regional S3 endpoint.
func AmazonEndpoint(region string) string {
	if region == "" || region == DefaultRegion {
		return "s3.amazonaws.com"
	}
	return fmt.Sprintf("s3.%s.amazonaws.com", region)
}

// ValidBucketName checks the S3 bucket naming rules this layer must
// enforce before a bucket name ever reaches a URL.
func ValidBucketName(bucket string) error {
	if len(bucket) < 3 || len(bucket) > 63 {
		return fmt.Errorf("endpoint: bucket name must be 3-63 characters: %q", bucket)
	}
	if strings.Contains(bucket, "..") || strings.Contains(bucket, ".-") || strings.Contains(bucket, "-.") {
		return fmt.Errorf("endpoint: bucket name contains invalid adjacent separators: %q", bucket)
	}
	for _, r := range bucket {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
		default:
			return fmt.Errorf("endpoint: bucket name contains invalid character %q: %q", r, bucket)
		}
	}
	if !isAlnum(bucket[0]) || !isAlnum(bucket[len(bucket)-1]) {
		return fmt.Errorf("endpoint: bucket name must start and end with a letter or digit: %q", bucket)
	}
	return nil
}

// DNSCompatibleBucket reports whether bucket can form a DNS subdomain
// of the endpoint. Names with uppercase letters, underscores, dots or
// IP-address shape force path-style addressing; dotted names
// additionally break wildcard TLS certificates, so they are rejected
// here regardless of transport.
func DNSCompatibleBucket(bucket string) bool {
	if len(bucket) < 3 || len(bucket) > 63 {
		return false
	}
	if net.ParseIP(bucket) != nil {
		return false
	}
	if strings.Contains(bucket, ".") {
		return false
	}
	for _, r := range bucket {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return isAlnum(bucket[0]) && isAlnum(bucket[len(bucket)-1])
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// Resolve maps (config, bucket, object, resource, query) to the fully
// qualified URL for one operation. resource is a pre-encoded literal
// query fragment ("uploads", "uploadId=..."); query is encoded per
// RFC 3986 with sorted keys so the sent string matches the canonical
// query string the signer computes. Object keys pass through verbatim
// apart from percent-encoding; no "."/".." normalization happens here.
func Resolve(cfg Config, bucket, object, resource string, query url.Values) (*url.URL, error) {
	host := strings.ToLower(strings.TrimSpace(cfg.Host))
	if host == "" {
		return nil, fmt.Errorf("endpoint: host is required")
	}
	hostname, port := splitHostPort(host)
	if bucket != "" {
		if err := ValidBucketName(bucket); err != nil {
			return nil, err
		}
	}

	virtualHost := false
	if IsAmazonEndpoint(hostname) {
		hostname = AmazonEndpoint(cfg.Region)
		// Amazon endpoints default to virtual-hosted-style; bucket
		// names that cannot form a DNS label fall back to path-style.
		virtualHost = bucket != "" && DNSCompatibleBucket(bucket)
	} else if bucket != "" && !cfg.PathStyle {
		virtualHost = DNSCompatibleBucket(bucket)
	}

	var pathBuf strings.Builder
	if virtualHost {
		hostname = bucket + "." + hostname
		pathBuf.WriteString("/")
		if object != "" {
			pathBuf.WriteString(EncodePath(object))
		}
	} else {
		pathBuf.WriteString("/")
		if bucket != "" {
			pathBuf.WriteString(bucket)
			if object != "" {
				pathBuf.WriteString("/")
				pathBuf.WriteString(EncodePath(object))
			}
		}
	}

	rawQuery := resource
	if encoded := QueryEncode(query); encoded != "" {
		if rawQuery != "" {
			rawQuery += "&"
		}
		rawQuery += encoded
	}

	scheme := "http"
	if cfg.Secure {
		scheme = "https"
	}
	if port != "" {
		hostname = net.JoinHostPort(hostname, port)
	}
	u := &url.URL{
		Scheme:   scheme,
		Host:     hostname,
		RawQuery: rawQuery,
	}
	// Set Path via the encoded form so the exact bytes built above are
	// what the signer and the wire both see.
	raw := pathBuf.String()
	u.RawPath = raw
	if decoded, err := url.PathUnescape(raw); err == nil {
		u.Path = decoded
	} else {
		u.Path = raw
	}
	if u.RawPath == u.Path {
		u.RawPath = ""
	}
	return u, nil
}

func splitHostPort(host string) (string, string) {
	h, p, err := net.SplitHostPort(host)
	if err != nil {
		return host, ""
	}
	return h, p
}

// EncodePath percent-encodes a URL path segment sequence per the
// RFC 3986 unreserved set, keeping '/' as the segment separator. This
// must match the signer's canonical URI encoding exactly; any
// divergence breaks signature verification server-side.
func EncodePath(p string) string {
	return encodeRFC3986(p, false)
}

// QueryEncode serializes query parameters as sorted key=value pairs
// with both halves percent-encoded (including '/').
func QueryEncode(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf strings.Builder
	for _, k := range keys {
		vals := v[k]
		if len(vals) == 0 {
			vals = []string{""}
		}
		for _, val := range vals {
			if buf.Len() > 0 {
				buf.WriteByte('&')
			}
			buf.WriteString(encodeRFC3986(k, true))
			buf.WriteByte('=')
			buf.WriteString(encodeRFC3986(val, true))
		}
	}
	return buf.String()
}

const upperhex = "0123456789ABCDEF"

func encodeRFC3986(s string, encodeSlash bool) string {
	var buf strings.Builder
	buf.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			buf.WriteByte(c)
		case c == '/' && !encodeSlash:
			buf.WriteByte(c)
		default:
			buf.WriteByte('%')
			buf.WriteByte(upperhex[c>>4])
			buf.WriteByte(upperhex[c&0xf])
		}
	}
	return buf.String()
}
