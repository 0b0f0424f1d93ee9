package organizations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/niksmo/pmp-sync/internal/core/domain"
	"github.com/niksmo/pmp-sync/internal/core/port"
)

var ErrNoOrganization = errors.New("organization is not described")

var _ port.OrganizationDescriber = (*Describer)(nil)

type Client interface {
	DescribeOrganization(
		ctx context.Context,
		in *organizations.DescribeOrganizationInput,
		optFns ...func(*organizations.Options),
	) (*organizations.DescribeOrganizationOutput, error)
}

type Describer struct {
	cl Client
}

func NewDescriber(cl Client) Describer {
	return Describer{cl: cl}
}

// DescribeOrganization returns the management account of the caller's
// organization.
func (d Describer) DescribeOrganization(ctx context.Context) (domain.Organization, error) {
	const op = "Describer.DescribeOrganization"
	log := slog.With("op", op)

	out, err := d.cl.DescribeOrganization(ctx, &organizations.DescribeOrganizationInput{})
	if err != nil {
		return domain.Organization{}, fmt.Errorf("%s: %w", op, err)
	}
	if out.Organization == nil {
		return domain.Organization{}, fmt.Errorf("%s: %w", op, ErrNoOrganization)
	}

	org := domain.Organization{
		ManagementAccountID:    aws.ToString(out.Organization.MasterAccountId),
		ManagementAccountEmail: aws.ToString(out.Organization.MasterAccountEmail),
	}
	log.Info("organization described", "managementAccountID", org.ManagementAccountID)
	return org, nil
}
