package s3wire

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
)

// FromChain sources Credentials from the usual environment chain:
// AWS env vars, MinIO env vars, the shared AWS credentials file, and
// the IAM instance-metadata service, in that order.
func FromChain() (Credentials, error) {
	chain := miniocreds.NewChainCredentials([]miniocreds.Provider{
		&miniocreds.EnvAWS{},
		&miniocreds.EnvMinio{},
		&miniocreds.FileAWSCredentials{},
		&miniocreds.IAM{},
	})
	value, err := chain.Get()
	if err != nil {
		return Credentials{}, fmt.Errorf("s3wire: credential chain: %w", err)
	}
	return Credentials{
		AccessKey:    value.AccessKeyID,
		SecretKey:    value.SecretAccessKey,
		SessionToken: value.SessionToken,
	}, nil
}

// FromAWSDefault sources Credentials from the AWS SDK default chain
// (profiles, SSO, STS assume-role, IMDS), carrying the session token
// and expiration through so IsExpired reflects temporary credentials.
func FromAWSDefault(ctx context.Context) (Credentials, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("s3wire: load aws config: %w", err)
	}
	value, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("s3wire: retrieve aws credentials: %w", err)
	}
	creds := Credentials{
		AccessKey:    value.AccessKeyID,
		SecretKey:    value.SecretAccessKey,
		SessionToken: value.SessionToken,
	}
	if value.CanExpire {
		creds.Expiration = value.Expires
	}
	return creds, nil
}
