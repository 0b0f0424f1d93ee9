package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/niksmo/pmp-sync/config"
	"github.com/niksmo/pmp-sync/internal/adapter"
	"github.com/niksmo/pmp-sync/pkg/sigctx"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	partitions        = 3
	replicationFactor = 3
	cleanupPolicy     = "delete"
	retention         = 7 * 24 * time.Hour
)

func main() {
	sigCtx, closeApp := sigctx.NotifyContext(context.Background())
	defer closeApp()

	cfg := config.Load()

	if len(cfg.Notifier.SeedBrokers) == 0 {
		printFail(errors.New("notifier.seed_brokers is empty"))
		return
	}

	cl, err := createClient(cfg.Notifier)
	if err != nil {
		printFail(err)
		return
	}
	defer cl.Close()

	printStart(cfg)
	defer printComplete(time.Now())

	if err := makeTopics(sigCtx, cl, cfg.Notifier.Topic); err != nil {
		printFail(err)
		return
	}
}

func createClient(cfg config.Notifier) (*kadm.Client, error) {
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.SeedBrokers...)}

	if cfg.TLS.Enabled() {
		tlsCfg, err := adapter.MakeTLSConfig(cfg.TLS.CA, cfg.TLS.Cert, cfg.TLS.Key)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	return kadm.NewOptClient(opts...)
}

func makeTopics(ctx context.Context, cl *kadm.Client, topics ...string) error {
	var (
		policy = cleanupPolicy
		minISR = "2"
		ms     = fmt.Sprint(retention.Milliseconds())
	)

	config := map[string]*string{
		"cleanup.policy":      &policy,
		"min.insync.replicas": &minISR,
		"retention.ms":        &ms,
	}

	responses, err := cl.CreateTopics(
		ctx,
		partitions,
		replicationFactor,
		config,
		topics...,
	)
	if err != nil {
		return err
	}

	var errs []error
	for _, res := range responses.Sorted() {
		if err := res.Err; err != nil {
			if errors.Is(err, kerr.TopicAlreadyExists) {
				fmt.Printf("topic: %q already exists\n", res.Topic)
			} else {
				errs = append(errs, err)
			}
			continue
		}
		fmt.Printf("topic: %q successfully created\n", res.Topic)
	}

	return errors.Join(errs...)
}

func printStart(cfg config.Config) {
	fmt.Printf("initializing topics...\n\t- %q\n\n", cfg.Notifier.Topic)
}

func printComplete(start time.Time) {
	fmt.Printf("\ncomplete in %s\n", time.Since(start))
}

func printFail(err error) {
	fmt.Printf("failed to create topics: \n%s\n", err)
}
