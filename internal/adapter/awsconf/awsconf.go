package awsconf

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const (
	DefaultSessionName = "RoleSessionName"
	DefaultDuration    = 15 * time.Minute
)

// Load resolves the account's default AWS configuration. An empty region
// falls back to the SDK resolution chain.
func Load(ctx context.Context, region string) (aws.Config, error) {
	const op = "awsconf.Load"

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

type AssumeRoleOpts struct {
	RoleARN     string
	SessionName string
	Duration    time.Duration
}

// AssumeRole returns a copy of base whose credentials come from assuming
// the role with base credentials. Credentials are fetched lazily and
// refreshed before expiry.
func AssumeRole(base aws.Config, opts AssumeRoleOpts) aws.Config {
	const op = "awsconf.AssumeRole"
	log := slog.With("op", op)

	if opts.SessionName == "" {
		opts.SessionName = DefaultSessionName
	}
	if opts.Duration == 0 {
		opts.Duration = DefaultDuration
	}

	provider := stscreds.NewAssumeRoleProvider(
		sts.NewFromConfig(base),
		opts.RoleARN,
		func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = opts.SessionName
			o.Duration = opts.Duration
		},
	)

	assumed := base.Copy()
	assumed.Credentials = aws.NewCredentialsCache(provider)
	log.Debug("cross account role configured", "roleARN", opts.RoleARN)
	return assumed
}
