package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/niksmo/pmp-sync/internal/core/domain"
	"github.com/niksmo/pmp-sync/internal/core/port"
	"github.com/niksmo/pmp-sync/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ port.Notifier = (*Notifier)(nil)

// A Notifier produces ProductsUpdated events keyed by experience ID.
type Notifier struct {
	cl      ProducerClient
	encoder Encoder
}

func NewNotifier(opts ...ProducerOpt) (Notifier, error) {
	const op = "NewNotifier"

	if len(opts) != 2 {
		panic(fmt.Errorf("%s: %w", op, ErrTooFewOpts)) // develop mistake
	}

	var options producerOpts
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return Notifier{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	return Notifier{options.cl, options.encoder}, nil
}

func (n Notifier) Close() {
	const op = "Notifier.Close"
	log := slog.With("op", op)
	log.Info("closing producer...")
	n.cl.Close()
	log.Info("producer is closed")
}

func (n Notifier) NotifyProductsUpdated(
	ctx context.Context, evt domain.ProductsUpdated,
) error {
	const op = "Notifier.NotifyProductsUpdated"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r, err := n.createRecord(evt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res := n.cl.ProduceSync(ctx, r)
	if err := res.FirstErr(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info(
		"notification produced",
		"experienceID", evt.ExperienceID, "added", evt.Added, "removed", evt.Removed,
	)
	return nil
}

func (n Notifier) createRecord(evt domain.ProductsUpdated) (*kgo.Record, error) {
	const op = "Notifier.createRecord"

	s := n.toSchema(evt)
	v, err := n.encoder.Encode(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &kgo.Record{Key: []byte(s.ExperienceID), Value: v}, nil
}

func (Notifier) toSchema(evt domain.ProductsUpdated) (s schema.ProductsUpdatedV1) {
	s.Action = domain.ActionProductsUpdated
	s.ExperienceID = evt.ExperienceID
	s.Added = evt.Added
	s.Removed = evt.Removed
	s.OccurredAt = evt.OccurredAt
	return s
}
