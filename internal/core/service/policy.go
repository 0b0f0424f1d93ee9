package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jmespath/go-jmespath"
	"github.com/niksmo/pmp-sync/internal/core/domain"
	"github.com/niksmo/pmp-sync/internal/core/port"
)

var (
	allowedIDsQuery = jmespath.MustCompile(
		"Statements[?Effect=='Allow'].Resources[].Ids[]",
	)
	deniedIDsQuery = jmespath.MustCompile(
		"Statements[?Effect=='Deny'].Resources[].Ids[]",
	)
)

// A PolicyReader reads the live approval state of experiences from their
// procurement policies.
type PolicyReader struct {
	entities port.EntityDescriber
}

func NewPolicyReader(entities port.EntityDescriber) PolicyReader {
	return PolicyReader{entities}
}

func (r PolicyReader) Experience(
	ctx context.Context, experienceID string,
) (domain.Experience, error) {
	const op = "PolicyReader.Experience"

	e, err := r.entities.DescribeEntity(ctx, experienceID)
	if err != nil {
		return domain.Experience{}, fmt.Errorf("%s: %w", op, err)
	}

	x, err := domain.ParseExperience(e)
	if err != nil {
		return domain.Experience{}, fmt.Errorf("%s: %w", op, err)
	}
	return x, nil
}

// ProductsInExperience returns the products allowed and denied by the
// first procurement policy of the experience.
func (r PolicyReader) ProductsInExperience(
	ctx context.Context, experienceID string,
) (domain.ApprovalSet, error) {
	const op = "PolicyReader.ProductsInExperience"
	log := slog.With("op", op)

	x, err := r.Experience(ctx, experienceID)
	if err != nil {
		return domain.ApprovalSet{}, fmt.Errorf("%s: %w", op, err)
	}

	policyID, err := x.ProcurementPolicy()
	if err != nil {
		return domain.ApprovalSet{}, fmt.Errorf("%s: %w", op, err)
	}

	policy, err := r.entities.DescribeEntity(ctx, policyID)
	if err != nil {
		return domain.ApprovalSet{}, fmt.Errorf("%s: %w", op, err)
	}

	approved, rejected, err := policyProductIDs(policy.Details)
	if err != nil {
		return domain.ApprovalSet{}, fmt.Errorf(
			"%s: policy %q: %w", op, policyID, err,
		)
	}

	log.Info(
		"products found in experience",
		"experienceID", experienceID,
		"approved", len(approved),
		"rejected", len(rejected),
	)
	return domain.NewApprovalSet(approved, rejected), nil
}

func policyProductIDs(details []byte) (approved, rejected []string, err error) {
	var doc any
	if err := json.Unmarshal(details, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrInvalidDetails, err)
	}

	approved, err = searchIDs(allowedIDsQuery, doc)
	if err != nil {
		return nil, nil, err
	}

	rejected, err = searchIDs(deniedIDsQuery, doc)
	if err != nil {
		return nil, nil, err
	}
	return approved, rejected, nil
}

func searchIDs(q *jmespath.JMESPath, doc any) ([]string, error) {
	res, err := q.Search(doc)
	if err != nil {
		return nil, err
	}

	vs, ok := res.([]any)
	if !ok {
		return nil, nil
	}

	ids := make([]string, 0, len(vs))
	for _, v := range vs {
		id, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf(
				"%w: product id %v is not a string", domain.ErrInvalidDetails, v,
			)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
