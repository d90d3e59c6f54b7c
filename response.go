package s3wire

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"
)

// StatusTransportFailure is the synthetic status carried by responses
// normalized from transport-level failures that produced no HTTP status
// of their own (DNS failure, connection refused, timeout, TLS failure,
// cancellation). 599 is the de-facto network-connect-error code.
const StatusTransportFailure = 599

// Response is the uniform result of one dispatched operation. It is
// immutable once constructed; the buffered body can be re-read any
// number of times via Body.
type Response struct {
	// StatusCode is the HTTP status, or StatusTransportFailure when the
	// transport produced no status at all.
	StatusCode int
	// Status is the reason phrase, or the transport error detail for
	// normalized failures.
	Status string
	// Header folds the transport headers into single values; repeated
	// keys are comma-joined. Keys are canonical MIME form.
	Header map[string]string
	// IsRedirect reports a 3xx status.
	IsRedirect bool
	// PersistentConnection reports whether the transport intends to
	// reuse the connection.
	PersistentConnection bool
	// Request is a non-owning back-reference to the outbound request
	// that produced this response, kept for diagnostics.
	Request *Request

	body []byte
}

// Bytes returns the buffered body. The slice is shared; callers treat
// it as read-only.
func (r *Response) Bytes() []byte {
	return r.body
}

// Body returns a fresh reader over the buffered body. Unlike the live
// transport stream the buffered body is finite and replayable, so every
// call restarts from the first byte.
func (r *Response) Body() *bytes.Reader {
	return bytes.NewReader(r.body)
}

// Text decodes the body as UTF-8. Invalid UTF-8 fails loudly rather
// than being silently substituted: a malformed text body indicates a
// protocol bug, and binary bodies only pay the validity check when text
// access is actually requested.
func (r *Response) Text() (string, error) {
	if !utf8.Valid(r.body) {
		return "", fmt.Errorf("s3wire: response body is not valid UTF-8")
	}
	return string(r.body), nil
}

// ContentLength parses the content-length header, returning -1 when the
// header is absent or unparseable.
func (r *Response) ContentLength() int64 {
	v, ok := r.Header["Content-Length"]
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// ErrorResponse is the standard S3 XML error document. This core never
// interprets protocol errors itself; DecodeError exists for the callers
// above it.
type ErrorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestID string   `xml:"RequestId"`
	HostID    string   `xml:"HostId"`
}

// DecodeError decodes the body as an S3 XML error document.
func (r *Response) DecodeError() (ErrorResponse, error) {
	var er ErrorResponse
	if err := xml.Unmarshal(r.body, &er); err != nil {
		return ErrorResponse{}, fmt.Errorf("s3wire: decode error document: %w", err)
	}
	return er, nil
}

// normalizeResponse buffers a transport response into an immutable
// Response. The body is read as the ordered chunk stream the transport
// delivers and concatenated into one contiguous byte sequence; repeated
// header keys are comma-joined. progress, when non-nil, observes
// cumulative receive counts during buffering.
//
// A mid-read failure does not discard what the transport already
// captured: the Response keeps the real status, headers and the bytes
// read so far, with the error detail replacing the reason phrase. The
// error is returned alongside so the caller can tell a truncated read
// apart from a clean one.
func normalizeResponse(req *Request, hr *http.Response, progress ProgressFunc) (*Response, error) {
	body, readErr := io.ReadAll(newProgressReader(hr.Body, progress))
	closeErr := hr.Body.Close()
	headers := make(map[string]string, len(hr.Header))
	for k, vs := range hr.Header {
		headers[k] = strings.Join(vs, ",")
	}
	resp := &Response{
		StatusCode:           hr.StatusCode,
		Status:               reasonPhrase(hr),
		Header:               headers,
		IsRedirect:           hr.StatusCode >= 300 && hr.StatusCode < 400,
		PersistentConnection: !hr.Close,
		Request:              req,
		body:                 body,
	}
	var err error
	if readErr != nil {
		err = fmt.Errorf("s3wire: read response body: %w", readErr)
	} else if closeErr != nil {
		err = fmt.Errorf("s3wire: close response body: %w", closeErr)
	}
	if err != nil {
		resp.Status = err.Error()
		// The connection died mid-body; it will not be reused.
		resp.PersistentConnection = false
	}
	return resp, err
}

// failureResponse converts a transport failure that produced no HTTP
// response at all into a Response carrying the error detail, per the
// policy that callers always receive a response object for any outcome
// past URL and header construction. Failures after status and headers
// arrived go through normalizeResponse instead, which keeps them.
func failureResponse(req *Request, err error) *Response {
	return &Response{
		StatusCode: StatusTransportFailure,
		Status:     err.Error(),
		Header:     map[string]string{},
		Request:    req,
	}
}

func reasonPhrase(hr *http.Response) string {
	// http.Response.Status is "200 OK"; strip the leading code when
	// present so Status carries only the phrase.
	status := hr.Status
	if prefix := strconv.Itoa(hr.StatusCode) + " "; strings.HasPrefix(status, prefix) {
		return strings.TrimPrefix(status, prefix)
	}
	if status == "" {
		return http.StatusText(hr.StatusCode)
	}
	return status
}
