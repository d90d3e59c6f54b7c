package s3wire

import (
	"io"
	"net/http"
	"net/url"

	"github.com/rs/xid"
)

// ProgressFunc observes cumulative bytes moved during send or receive.
// Callbacks may fire zero or more times; the only ordering guarantee is
// that the reported count is monotonically non-decreasing.
type ProgressFunc func(transferred int64)

// Request is the mutable outbound envelope passed between the endpoint
// resolver, the signer and the transport. A Request is owned by exactly
// one in-flight operation and must not be shared across concurrent
// calls.
type Request struct {
	// Method is the HTTP method.
	Method string
	// URL is the fully resolved target.
	URL *url.URL
	// Header holds the outbound headers, including everything the
	// signer covers. Mutable until dispatch.
	Header http.Header
	// Body is the payload variant to submit.
	Body Payload
	// Progress, when non-nil, observes upload byte counts.
	Progress ProgressFunc

	// ID correlates this request in logs. It is never sent on the wire.
	ID string
}

// NewRequest builds a request envelope for the resolved URL, seeding
// the Host header from the URL authority.
func NewRequest(method string, u *url.URL) *Request {
	r := &Request{
		Method: method,
		URL:    u,
		Header: make(http.Header),
		ID:     xid.New().String(),
	}
	if u != nil {
		r.Header.Set("Host", u.Host)
	}
	return r
}

// Override names the fields Replace may substitute. Nil/zero fields
// keep the original's value.
type Override struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   *Payload
}

// Replace derives a new request from r with the overridden fields,
// leaving r untouched. Headers are deep-copied either way, so mutating
// the derived request never leaks into the original. The derived
// request gets its own correlation id.
func (r *Request) Replace(o Override) *Request {
	out := &Request{
		Method:   r.Method,
		URL:      r.URL,
		Body:     r.Body,
		Progress: r.Progress,
		ID:       xid.New().String(),
	}
	if o.Method != "" {
		out.Method = o.Method
	}
	if o.URL != nil {
		out.URL = o.URL
	}
	if o.Body != nil {
		out.Body = *o.Body
	}
	src := r.Header
	if o.Header != nil {
		src = o.Header
	}
	out.Header = make(http.Header, len(src))
	for k, vs := range src {
		out.Header[k] = append([]string(nil), vs...)
	}
	return out
}

// progressReader reports cumulative read counts to a ProgressFunc while
// proxying an underlying reader.
type progressReader struct {
	r  io.Reader
	fn ProgressFunc
	n  int64
}

func newProgressReader(r io.Reader, fn ProgressFunc) io.Reader {
	if fn == nil {
		return r
	}
	return &progressReader{r: r, fn: fn}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.n += int64(n)
		pr.fn(pr.n)
	}
	return n, err
}
