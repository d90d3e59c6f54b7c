package s3wire

import (
	"net/http"
	"time"
)

// Signer computes the authorization header for a fully populated
// request. It is an external collaborator: the canonical-request and
// signature algorithm live behind this contract and this core never
// inspects them. Sign is invoked only after every other header is
// final, because the authorization value covers them. Implementations
// may adjust signing-related headers on req (signers stamp their own
// X-Amz-Date) but must leave everything else alone.
//
// The default implementation is sigv4.Signer.
type Signer interface {
	Sign(req *http.Request, accessKey, secretKey, sessionToken, region string, t time.Time) (string, error)
}
