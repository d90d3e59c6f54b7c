// Package sigv4 adapts the minio-go AWS Signature Version 4
// implementation to the s3wire Signer contract. The canonicalization
// and signing algorithm itself stays inside minio-go; this package only
// bridges the call.
package sigv4

import (
	"fmt"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7/pkg/signer"
)

// Signer signs requests for the S3 service with AWS Signature
// Version 4. The zero value is ready to use.
type Signer struct{}

// Sign computes the authorization header value for req. The underlying
// signer stamps its own X-Amz-Date; the stamped value is copied back
// onto req so the signed date is the date actually sent. The supplied
// timestamp is unused by this implementation for the same reason.
func (Signer) Sign(req *http.Request, accessKey, secretKey, sessionToken, region string, _ time.Time) (string, error) {
	if req == nil {
		return "", fmt.Errorf("sigv4: nil request")
	}
	signed := signer.SignV4(*req, accessKey, secretKey, sessionToken, region)
	auth := signed.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("sigv4: signer produced no authorization header")
	}
	if d := signed.Header.Get("X-Amz-Date"); d != "" {
		req.Header.Set("X-Amz-Date", d)
	}
	return auth, nil
}
