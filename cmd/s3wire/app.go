package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"pkt.systems/pslog"

	"pkt.systems/s3wire"
)

func submain(ctx context.Context) int {
	baseLogger := pslog.LoggerFromEnv(
		pslog.WithEnvPrefix("S3WIRE_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", "s3wire")
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	root := newRootCommand(baseLogger)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "%s\n", err)
		}
		return 1
	}
	return 0
}

type appFlags struct {
	endpoint     string
	region       string
	secure       bool
	virtualHost  bool
	accessKey    string
	secretKey    string
	sessionToken string
	awsChain     bool
	trace        bool
	verbose      bool
	insecureTLS  bool
}

func newRootCommand(logger pslog.Logger) *cobra.Command {
	flags := &appFlags{}
	vip := viper.New()
	vip.SetEnvPrefix("S3WIRE")
	vip.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	vip.AutomaticEnv()

	root := &cobra.Command{
		Use:           "s3wire",
		Short:         "Build, sign and dispatch single S3 requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.endpoint, "endpoint", "", "object storage host (host or host:port)")
	pf.StringVar(&flags.region, "region", "", "region preset (default: discover, then us-east-1)")
	pf.BoolVar(&flags.secure, "secure", true, "use https")
	pf.BoolVar(&flags.virtualHost, "virtual-host", false, "prefer virtual-hosted-style addressing for non-Amazon endpoints")
	pf.StringVar(&flags.accessKey, "access-key", "", "access key id (anonymous when empty)")
	pf.StringVar(&flags.secretKey, "secret-key", "", "secret access key")
	pf.StringVar(&flags.sessionToken, "session-token", "", "session token for temporary credentials")
	pf.BoolVar(&flags.awsChain, "aws-chain", false, "load credentials from the AWS default chain")
	pf.BoolVar(&flags.trace, "trace", false, "dump request and response headers through the logger")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log at trace level")
	pf.BoolVar(&flags.insecureTLS, "insecure-tls", false, "skip TLS certificate verification")
	bindEnvFlags(vip, pf, "endpoint", "region", "access-key", "secret-key", "session-token")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Env values apply only where the flag was not given.
		if flags.endpoint == "" {
			flags.endpoint = vip.GetString("endpoint")
		}
		if flags.region == "" {
			flags.region = vip.GetString("region")
		}
		if flags.accessKey == "" {
			flags.accessKey = vip.GetString("access-key")
		}
		if flags.secretKey == "" {
			flags.secretKey = vip.GetString("secret-key")
		}
		if flags.sessionToken == "" {
			flags.sessionToken = vip.GetString("session-token")
		}
		return nil
	}

	root.AddCommand(
		newStatCommand(logger, flags),
		newGetCommand(logger, flags),
		newPutCommand(logger, flags),
		newRemoveCommand(logger, flags),
		newSignCommand(logger, flags),
	)
	return root
}

// bindEnvFlags makes each named flag overridable from the environment
// (S3WIRE_ENDPOINT and friends) without shadowing explicit flag values.
func bindEnvFlags(vip *viper.Viper, pf *pflag.FlagSet, names ...string) {
	for _, name := range names {
		if err := vip.BindPFlag(name, pf.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func buildClient(ctx context.Context, logger pslog.Logger, flags *appFlags) (*s3wire.Client, error) {
	if flags.endpoint == "" {
		return nil, fmt.Errorf("--endpoint (or S3WIRE_ENDPOINT) is required")
	}
	creds := s3wire.Credentials{
		AccessKey:    flags.accessKey,
		SecretKey:    flags.secretKey,
		SessionToken: flags.sessionToken,
	}
	if creds.IsAnonymous() && flags.awsChain {
		loaded, err := s3wire.FromAWSDefault(ctx)
		if err != nil {
			return nil, err
		}
		creds = loaded
	}
	if creds.IsExpired() {
		return nil, fmt.Errorf("credentials are expired (or expire within the safety margin)")
	}
	cfg := s3wire.Config{
		Endpoint:    flags.endpoint,
		Secure:      flags.secure,
		Region:      flags.region,
		VirtualHost: flags.virtualHost,
		Credentials: creds,
		Logger:      logger,
		Trace:       flags.trace,
	}
	if flags.insecureTLS {
		cfg.Transport = insecureTransport()
	}
	return s3wire.New(cfg)
}
