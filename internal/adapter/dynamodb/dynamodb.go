package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/niksmo/pmp-sync/internal/core/domain"
	"github.com/niksmo/pmp-sync/internal/core/port"
	"github.com/niksmo/pmp-sync/pkg/retry"
)

// maxBatchWrite is the BatchWriteItem limit of requests per call.
const maxBatchWrite = 25

var errUnprocessed = errors.New("unprocessed items left")

var (
	_ port.ProductIDStore = (*Store)(nil)
	_ port.SyncRecorder   = (*Store)(nil)
)

type Client interface {
	dynamodb.ScanAPIClient
	BatchWriteItem(
		ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options),
	) (*dynamodb.BatchWriteItemOutput, error)
	UpdateItem(
		ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options),
	) (*dynamodb.UpdateItemOutput, error)
}

type (
	productRow struct {
		ID string `dynamodbav:"ID"`
	}

	syncRecordKey struct {
		ID string `dynamodbav:"ID"`
	}
)

// A Store keeps product identifiers as single-attribute items keyed by ID.
type Store struct {
	cl       Client
	retryCfg retry.RetryConfig
}

func NewStore(cl Client) Store {
	return Store{
		cl: cl,
		retryCfg: retry.RetryConfig{
			MaxAttempts: 5,
			Backoff:     retry.ExponentialBackoff(50 * time.Millisecond),
			ShouldRetry: func(err error) bool {
				return errors.Is(err, errUnprocessed)
			},
		},
	}
}

func (s Store) ReadIDs(ctx context.Context, table string) (domain.ProductSet, error) {
	const op = "Store.ReadIDs"
	log := slog.With("op", op, "table", table)

	log.Info("reading product ids")

	ids := make(domain.ProductSet)
	p := dynamodb.NewScanPaginator(s.cl, &dynamodb.ScanInput{
		TableName: aws.String(table),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		var rows []productRow
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &rows); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, r := range rows {
			if r.ID == "" {
				continue
			}
			ids[r.ID] = struct{}{}
		}
	}

	log.Info("product ids fetched", "count", ids.Len())
	return ids, nil
}

func (s Store) PutIDs(ctx context.Context, table string, ids []string) error {
	const op = "Store.PutIDs"
	log := slog.With("op", op, "table", table)

	reqs := make([]types.WriteRequest, 0, len(ids))
	for _, id := range ids {
		item, err := attributevalue.MarshalMap(productRow{ID: id})
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		reqs = append(reqs, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	if err := s.write(ctx, table, reqs); err != nil {
		log.Error("failed to add ids", "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("all ids added", "count", len(ids))
	return nil
}

func (s Store) DeleteIDs(ctx context.Context, table string, ids []string) error {
	const op = "Store.DeleteIDs"
	log := slog.With("op", op, "table", table)

	reqs := make([]types.WriteRequest, 0, len(ids))
	for _, id := range ids {
		key, err := attributevalue.MarshalMap(productRow{ID: id})
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		reqs = append(reqs, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: key},
		})
	}

	if err := s.write(ctx, table, reqs); err != nil {
		log.Error("failed to delete ids", "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("all ids deleted", "count", len(ids))
	return nil
}

func (s Store) write(ctx context.Context, table string, reqs []types.WriteRequest) error {
	for start := 0; start < len(reqs); start += maxBatchWrite {
		end := min(start+maxBatchWrite, len(reqs))
		if err := s.writeBatch(ctx, table, reqs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s Store) writeBatch(ctx context.Context, table string, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{table: reqs}

	return retry.Do(ctx, s.retryCfg, func() error {
		out, err := s.cl.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return err
		}

		if n := len(out.UnprocessedItems[table]); n != 0 {
			pending = out.UnprocessedItems
			return fmt.Errorf("%d requests: %w", n, errUnprocessed)
		}
		return nil
	})
}

// RecordSync overwrites the sync record of the organization.
func (s Store) RecordSync(ctx context.Context, table string, r domain.SyncRecord) error {
	const op = "Store.RecordSync"
	log := slog.With("op", op, "table", table)

	key, err := attributevalue.MarshalMap(syncRecordKey{ID: r.ManagementAccountID})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	update := expression.
		Set(expression.Name("member_org_email"), expression.Value(r.ManagementAccountEmail)).
		Set(expression.Name("stamp"), expression.Value(r.Stamp)).
		Set(expression.Name("update_time_utc"), expression.Value(r.UpdateTimeUTC)).
		Set(expression.Name("experiences_updated"), expression.Value(r.ExperiencesUpdated))

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.cl.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("sync record updated", "managementAccountID", r.ManagementAccountID)
	return nil
}
