package s3wire

import "time"

// ExpiryMargin is subtracted from credential expiration times so that a
// token is treated as expired slightly before it actually dies. Signing
// with a token that lapses mid-flight fails server-side in ways that
// are hard to distinguish from clock skew, so requests stop using it
// fifteen minutes early.
const ExpiryMargin = 15 * time.Minute

// Credentials holds one S3 identity. The zero value is the anonymous
// credential. Credentials are constructed once and read-only
// thereafter; all methods operate on the value receiver.
type Credentials struct {
	// AccessKey is the access key id.
	AccessKey string
	// SecretKey is the secret access key.
	SecretKey string
	// SessionToken is the optional short-lived secondary secret that
	// accompanies temporary (STS-issued) credentials.
	SessionToken string
	// Expiration is when the credentials stop being valid. Zero means
	// the credentials never expire.
	Expiration time.Time
}

// HasSessionToken reports whether a session token accompanies the key
// pair. When true, signing sends the token as x-amz-security-token.
func (c Credentials) HasSessionToken() bool {
	return c.SessionToken != ""
}

// IsAnonymous reports whether both key halves are empty. Anonymous
// credentials disable signing entirely.
func (c Credentials) IsAnonymous() bool {
	return c.AccessKey == "" && c.SecretKey == ""
}

// IsExpired reports whether the credentials are within ExpiryMargin of
// their expiration. Credentials without an expiration never expire.
func (c Credentials) IsExpired() bool {
	return c.isExpiredAt(time.Now())
}

func (c Credentials) isExpiredAt(now time.Time) bool {
	if c.Expiration.IsZero() {
		return false
	}
	return c.Expiration.Before(now.Add(ExpiryMargin))
}
