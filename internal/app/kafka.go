package app

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/niksmo/pmp-sync/config"
	"github.com/niksmo/pmp-sync/internal/adapter"
	"github.com/niksmo/pmp-sync/internal/adapter/kafka"
	"github.com/niksmo/pmp-sync/pkg/schema"
	"github.com/twmb/franz-go/pkg/sr"
)

func newKafkaNotifier(ctx context.Context, cfg config.Notifier) (kafka.Notifier, error) {
	const op = "app.newKafkaNotifier"

	var tlsCfg *tls.Config
	if cfg.TLS.Enabled() {
		var err error
		tlsCfg, err = adapter.MakeTLSConfig(cfg.TLS.CA, cfg.TLS.Cert, cfg.TLS.Key)
		if err != nil {
			return kafka.Notifier{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	srOpts := []sr.ClientOpt{sr.URLs(cfg.SchemaRegistryURLs...)}
	if tlsCfg != nil {
		srOpts = append(srOpts, sr.DialTLSConfig(tlsCfg))
	}
	srClient, err := sr.NewClient(srOpts...)
	if err != nil {
		return kafka.Notifier{}, fmt.Errorf("%s: %w", op, err)
	}

	serde, err := schema.NewSerdeProductsUpdatedV1(
		ctx,
		schema.SubjectOpt(cfg.Topic+"-value"),
		schema.SchemaIdentifierOpt(schema.NewRegistryIdentifier(srClient)),
	)
	if err != nil {
		return kafka.Notifier{}, fmt.Errorf("%s: %w", op, err)
	}

	n, err := kafka.NewNotifier(
		kafka.ProducerClientOpt(ctx, cfg.SeedBrokers, cfg.Topic, tlsCfg),
		kafka.ProducerEncoderOpt(serde),
	)
	if err != nil {
		return kafka.Notifier{}, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
