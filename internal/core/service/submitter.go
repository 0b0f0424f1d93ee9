package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/niksmo/pmp-sync/internal/core/domain"
	"github.com/niksmo/pmp-sync/internal/core/port"
	"github.com/niksmo/pmp-sync/pkg/retry"
)

var (
	// ErrWait is wrapped by every error observed while waiting for a
	// submitted change set. Wait errors are never resubmitted.
	ErrWait = errors.New("change set wait failed")

	ErrChangeSetFailed = fmt.Errorf("%w: change set did not succeed", ErrWait)
	ErrWaitTimeout     = fmt.Errorf("%w: max attempts exceeded", ErrWait)

	errChangeSetPending = errors.New("change set is in progress")
)

const (
	DefaultBatchSize       = 50
	DefaultPollInterval    = 5 * time.Second
	DefaultPollMaxAttempts = 60
	DefaultRetryDelay      = 30 * time.Second
)

type SubmitterConfig struct {
	BatchSize       int
	PollInterval    time.Duration
	PollMaxAttempts int
	RetryDelay      time.Duration

	// RetryMaxAttempts bounds submissions of one batch, retry.Forever
	// disables the bound.
	RetryMaxAttempts int
}

func (c *SubmitterConfig) normalize() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollMaxAttempts <= 0 {
		c.PollMaxAttempts = DefaultPollMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.RetryMaxAttempts == 0 {
		c.RetryMaxAttempts = retry.Forever
	}
}

// A ChangeSetSubmitter applies product lists to an experience in batches,
// one change set at a time.
type ChangeSetSubmitter struct {
	changeSets port.ChangeSetClient
	cfg        SubmitterConfig
	newToken   func() string
}

func NewChangeSetSubmitter(
	changeSets port.ChangeSetClient, cfg SubmitterConfig,
) ChangeSetSubmitter {
	cfg.normalize()
	return ChangeSetSubmitter{
		changeSets: changeSets,
		cfg:        cfg,
		newToken:   uuid.NewString,
	}
}

// Submit allows or denies productIDs in the experience.
//
// Batches are submitted in order. A batch whose submission fails is
// resubmitted after RetryDelay with a fresh client token. A batch that
// reaches CANCELLED or FAILED, or is still in progress after
// PollMaxAttempts, fails the whole call with an error wrapping [ErrWait].
func (s ChangeSetSubmitter) Submit(
	ctx context.Context,
	experienceID string,
	productIDs []string,
	changeType domain.ChangeType,
) error {
	const op = "ChangeSetSubmitter.Submit"
	log := slog.With("op", op, "experienceID", experienceID, "changeType", changeType)

	if len(productIDs) == 0 {
		log.Info("no products to submit")
		return nil
	}

	batches := Chunk(productIDs, s.cfg.BatchSize)
	log.Info("submitting products", "total", len(productIDs), "batches", len(batches))

	for i, batch := range batches {
		log.Info("batch", "n", i+1, "of", len(batches), "size", len(batch))

		err := s.submitBatch(ctx, domain.ChangeSet{
			ChangeType:   changeType,
			ExperienceID: experienceID,
			ProductIDs:   batch,
		})
		if err != nil {
			return fmt.Errorf("%s: batch %d/%d: %w", op, i+1, len(batches), err)
		}
	}
	return nil
}

func (s ChangeSetSubmitter) submitBatch(ctx context.Context, cs domain.ChangeSet) error {
	const op = "ChangeSetSubmitter.submitBatch"
	log := slog.With("op", op)

	retryCfg := retry.RetryConfig{
		MaxAttempts: s.cfg.RetryMaxAttempts,
		Backoff:     retry.LinearBackoff(s.cfg.RetryDelay),
		ShouldRetry: func(err error) bool {
			return !errors.Is(err, ErrWait)
		},
	}

	return retry.Do(ctx, retryCfg, func() error {
		cs.ClientRequestToken = s.newToken()

		id, err := s.changeSets.StartChangeSet(ctx, cs)
		if err != nil {
			log.Error(
				"failed to start change set",
				"err", err, "retryIn", s.cfg.RetryDelay,
			)
			return fmt.Errorf("%s: %w", op, err)
		}

		log.Info("change set started", "changeSetID", id)

		if err := s.wait(ctx, id); err != nil {
			log.Error("change set wait failed", "changeSetID", id, "err", err)
			return fmt.Errorf("%s: %w", op, err)
		}

		log.Info("change set succeeded", "changeSetID", id)
		return nil
	})
}

func (s ChangeSetSubmitter) wait(ctx context.Context, changeSetID string) error {
	pollCfg := retry.RetryConfig{
		MaxAttempts: s.cfg.PollMaxAttempts,
		Backoff:     retry.LinearBackoff(s.cfg.PollInterval),
		ShouldRetry: func(err error) bool {
			return errors.Is(err, errChangeSetPending)
		},
	}

	err := retry.Do(ctx, pollCfg, func() error {
		return s.poll(ctx, changeSetID)
	})

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrWait, err)
	case errors.Is(err, errChangeSetPending):
		return fmt.Errorf("change set %q: %w", changeSetID, ErrWaitTimeout)
	default:
		return err
	}
}

func (s ChangeSetSubmitter) poll(ctx context.Context, changeSetID string) error {
	state, err := s.changeSets.DescribeChangeSet(ctx, changeSetID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWait, err)
	}

	switch state.Status {
	case domain.ChangeSetSucceeded:
		return nil
	case domain.ChangeSetCancelled, domain.ChangeSetFailed:
		return fmt.Errorf(
			"change set %q %s (%s: %s): %w",
			changeSetID, state.Status,
			state.FailureCode, state.FailureDescription,
			ErrChangeSetFailed,
		)
	default:
		return errChangeSetPending
	}
}

// Chunk splits vs into consecutive slices of at most size elements.
func Chunk[T any](vs []T, size int) [][]T {
	if size <= 0 {
		panic("service.Chunk: size must be positive") // develop mistake
	}

	chunks := make([][]T, 0, (len(vs)+size-1)/size)
	for start := 0; start < len(vs); start += size {
		end := min(start+size, len(vs))
		chunks = append(chunks, vs[start:end:end])
	}
	return chunks
}
