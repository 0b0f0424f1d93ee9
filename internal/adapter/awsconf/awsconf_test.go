package awsconf_test

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/niksmo/pmp-sync/internal/adapter/awsconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegion(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")

	cfg, err := awsconf.Load(t.Context(), "eu-west-1")

	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
}

func TestAssumeRoleKeepsBase(t *testing.T) {
	base := aws.Config{
		Region:      "eu-west-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKID", "secret", ""),
	}

	assumed := awsconf.AssumeRole(base, awsconf.AssumeRoleOpts{
		RoleARN: "arn:aws:iam::111122223333:role/pmp-cross-account",
	})

	assert.Equal(t, "eu-west-1", assumed.Region)
	assert.IsType(t, &aws.CredentialsCache{}, assumed.Credentials)
	assert.IsType(t, credentials.StaticCredentialsProvider{}, base.Credentials)
}
