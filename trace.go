package s3wire

import (
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"pkt.systems/pslog"
)

// traceRequest dumps the fully built request through the structured
// logger when tracing is enabled. Credential material in the
// authorization header is redacted; the dump is diagnostic output and
// has no effect on control flow.
func (c *Client) traceRequest(logger pslog.Logger, req *Request, hr *http.Request) {
	if !c.cfg.Trace {
		return
	}
	keyvals := []any{
		"request_id", req.ID,
		"method", req.Method,
		"url", req.URL.String(),
		"host", hr.Host,
	}
	if l := req.Body.Len(); l >= 0 {
		keyvals = append(keyvals, "body", humanize.IBytes(uint64(l)))
	} else {
		keyvals = append(keyvals, "body", "stream")
	}
	keyvals = appendHeaderKeyvals(keyvals, hr.Header)
	logger.Trace("s3wire.trace.request", keyvals...)
}

func (c *Client) traceResponse(logger pslog.Logger, resp *Response) {
	if !c.cfg.Trace {
		return
	}
	keyvals := []any{
		"request_id", resp.Request.ID,
		"status", resp.StatusCode,
		"reason", resp.Status,
		"body", humanize.IBytes(uint64(len(resp.Bytes()))),
	}
	for k, v := range resp.Header {
		keyvals = append(keyvals, "hdr_"+strings.ToLower(k), v)
	}
	logger.Trace("s3wire.trace.response", keyvals...)
}

func appendHeaderKeyvals(keyvals []any, header http.Header) []any {
	for k, vs := range header {
		v := strings.Join(vs, ",")
		if strings.EqualFold(k, "Authorization") {
			v = redactAuthorization(v)
		}
		keyvals = append(keyvals, "hdr_"+strings.ToLower(k), v)
	}
	return keyvals
}

// redactAuthorization keeps the algorithm and credential scope but
// masks the signature value.
func redactAuthorization(v string) string {
	const marker = "Signature="
	idx := strings.Index(v, marker)
	if idx < 0 {
		return "**REDACTED**"
	}
	return v[:idx+len(marker)] + "**REDACTED**"
}
