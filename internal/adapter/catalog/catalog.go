package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/marketplacecatalog"
	"github.com/aws/aws-sdk-go-v2/service/marketplacecatalog/types"
	"github.com/niksmo/pmp-sync/internal/core/domain"
	"github.com/niksmo/pmp-sync/internal/core/port"
)

const (
	DefaultName   = "AWSMarketplace"
	DefaultRegion = "us-east-1"
)

var _ port.Catalog = (*Catalog)(nil)

type Client interface {
	DescribeEntity(
		ctx context.Context,
		in *marketplacecatalog.DescribeEntityInput,
		optFns ...func(*marketplacecatalog.Options),
	) (*marketplacecatalog.DescribeEntityOutput, error)

	ListEntities(
		ctx context.Context,
		in *marketplacecatalog.ListEntitiesInput,
		optFns ...func(*marketplacecatalog.Options),
	) (*marketplacecatalog.ListEntitiesOutput, error)

	StartChangeSet(
		ctx context.Context,
		in *marketplacecatalog.StartChangeSetInput,
		optFns ...func(*marketplacecatalog.Options),
	) (*marketplacecatalog.StartChangeSetOutput, error)

	DescribeChangeSet(
		ctx context.Context,
		in *marketplacecatalog.DescribeChangeSetInput,
		optFns ...func(*marketplacecatalog.Options),
	) (*marketplacecatalog.DescribeChangeSetOutput, error)
}

// A Catalog talks to one Marketplace catalog.
type Catalog struct {
	cl   Client
	name string
}

type Opt func(*Catalog)

func WithName(name string) Opt {
	return func(c *Catalog) {
		if name != "" {
			c.name = name
		}
	}
}

func New(cl Client, opts ...Opt) Catalog {
	c := Catalog{cl: cl, name: DefaultName}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func (c Catalog) DescribeEntity(ctx context.Context, entityID string) (domain.Entity, error) {
	const op = "Catalog.DescribeEntity"
	log := slog.With("op", op, "entityID", entityID)

	out, err := c.cl.DescribeEntity(ctx, &marketplacecatalog.DescribeEntityInput{
		Catalog:  aws.String(c.name),
		EntityId: aws.String(entityID),
	})
	if err != nil {
		return domain.Entity{}, fmt.Errorf("%s: %q: %w", op, entityID, err)
	}

	e := domain.Entity{
		ID:      entityID,
		Type:    aws.ToString(out.EntityType),
		Details: []byte(aws.ToString(out.Details)),
	}
	log.Debug("entity described", "type", e.Type, "details", string(e.Details))
	return e, nil
}

func (c Catalog) ListEntities(
	ctx context.Context, q domain.EntityQuery,
) (domain.EntityPage, error) {
	const op = "Catalog.ListEntities"

	in := &marketplacecatalog.ListEntitiesInput{
		Catalog:    aws.String(c.name),
		EntityType: aws.String(q.EntityType),
	}
	for _, f := range q.Filters {
		in.FilterList = append(in.FilterList, types.Filter{
			Name:      aws.String(f.Name),
			ValueList: f.Values,
		})
	}
	if q.NextToken != "" {
		in.NextToken = aws.String(q.NextToken)
	}

	out, err := c.cl.ListEntities(ctx, in)
	if err != nil {
		return domain.EntityPage{}, fmt.Errorf("%s: %s: %w", op, q.EntityType, err)
	}

	page := domain.EntityPage{
		EntityIDs: make([]string, 0, len(out.EntitySummaryList)),
		NextToken: aws.ToString(out.NextToken),
	}
	for _, s := range out.EntitySummaryList {
		if id := aws.ToString(s.EntityId); id != "" {
			page.EntityIDs = append(page.EntityIDs, id)
		}
	}
	return page, nil
}

func (c Catalog) StartChangeSet(ctx context.Context, cs domain.ChangeSet) (string, error) {
	const op = "Catalog.StartChangeSet"

	details, err := cs.Details()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	out, err := c.cl.StartChangeSet(ctx, &marketplacecatalog.StartChangeSetInput{
		Catalog: aws.String(c.name),
		ChangeSet: []types.Change{{
			ChangeType: aws.String(cs.ChangeType.String()),
			Entity: &types.Entity{
				Type:       aws.String(domain.ChangeSetEntityType),
				Identifier: aws.String(cs.ExperienceID),
			},
			Details: aws.String(details),
		}},
		ClientRequestToken: aws.String(cs.ClientRequestToken),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return aws.ToString(out.ChangeSetId), nil
}

func (c Catalog) DescribeChangeSet(
	ctx context.Context, changeSetID string,
) (domain.ChangeSetState, error) {
	const op = "Catalog.DescribeChangeSet"

	out, err := c.cl.DescribeChangeSet(ctx, &marketplacecatalog.DescribeChangeSetInput{
		Catalog:     aws.String(c.name),
		ChangeSetId: aws.String(changeSetID),
	})
	if err != nil {
		return domain.ChangeSetState{}, fmt.Errorf("%s: %q: %w", op, changeSetID, err)
	}

	return domain.ChangeSetState{
		ID:                 changeSetID,
		Status:             domain.ChangeSetStatus(out.Status),
		FailureCode:        string(out.FailureCode),
		FailureDescription: aws.ToString(out.FailureDescription),
	}, nil
}
