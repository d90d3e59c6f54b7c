// Package s3wire is the request-orchestration core of an S3-compatible
// object-storage client. It turns a logical operation (bucket, object,
// HTTP method, query parameters, payload) into a fully addressed,
// authenticated HTTP request, dispatches it over a pluggable transport,
// and normalizes the result into a uniform Response whether the body is
// consumed eagerly or streamed.
//
// The package deliberately stops at the orchestration boundary: SigV4
// canonicalization (Signer), bucket-region discovery (RegionResolver)
// and the HTTP engine (http.RoundTripper) are external collaborators
// called through fixed contracts. Retry policy, multipart uploads and
// connection pooling belong to the layers above and below this one.
//
// Transport-level failures never surface as Go errors from Execute:
// failures before any HTTP response arrived are folded into a Response
// with a synthetic status code, and failures mid-receive keep whatever
// status, headers and partial body the transport captured, so every
// call settles to exactly one Response or one pre-transport
// configuration error.
package s3wire
