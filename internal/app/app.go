package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/marketplacecatalog"
	awsorgs "github.com/aws/aws-sdk-go-v2/service/organizations"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/niksmo/pmp-sync/config"
	"github.com/niksmo/pmp-sync/internal/adapter/awsconf"
	"github.com/niksmo/pmp-sync/internal/adapter/catalog"
	"github.com/niksmo/pmp-sync/internal/adapter/dynamodb"
	"github.com/niksmo/pmp-sync/internal/adapter/organizations"
	"github.com/niksmo/pmp-sync/internal/adapter/sns"
	"github.com/niksmo/pmp-sync/internal/adapter/ssm"
	"github.com/niksmo/pmp-sync/internal/core/port"
	"github.com/niksmo/pmp-sync/internal/core/service"
)

const paramCrossAccountRoleARN = "CrossAccountAccessRoleARN"

// An App keeps what outlives a single invocation: the configuration and
// the base AWS configuration of the running account. Services are wired
// anew for every invocation.
type App struct {
	cfg config.Config
	aws aws.Config
}

func New(ctx context.Context, cfg config.Config) (App, error) {
	const op = "app.New"

	InitLogger(cfg.LogLevel)
	slog.Info("config loaded", "config", cfg)

	awsCfg, err := awsconf.Load(ctx, cfg.Region)
	if err != nil {
		return App{}, fmt.Errorf("%s: %w", op, err)
	}
	return App{cfg: cfg, aws: awsCfg}, nil
}

func InitLogger(level slog.Level) {
	opts := &slog.HandlerOptions{Level: level}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app App) params() ssm.ParameterStore {
	return ssm.NewParameterStore(awsssm.NewFromConfig(app.aws), app.cfg.SSMPrefix)
}

func (app App) catalog() catalog.Catalog {
	cfg := app.aws.Copy()
	cfg.Region = app.cfg.Catalog.Region
	return catalog.New(
		marketplacecatalog.NewFromConfig(cfg),
		catalog.WithName(app.cfg.Catalog.Name),
	)
}

func (app App) submitterConfig() service.SubmitterConfig {
	c := app.cfg.Catalog
	return service.SubmitterConfig{
		BatchSize:        c.BatchSize,
		PollInterval:     c.PollInterval,
		PollMaxAttempts:  c.PollMaxAttempts,
		RetryDelay:       c.RetryDelay,
		RetryMaxAttempts: c.RetryMaxAttempts,
	}
}

// NewMember wires a member run. Mirror tables and the sync record table
// are reached through the cross-account role.
func (app App) NewMember(ctx context.Context) (*service.Member, error) {
	const op = "App.NewMember"
	log := slog.With("op", op)

	params := app.params()

	roleARN, err := params.Get(ctx, paramCrossAccountRoleARN)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Debug("cross account role resolved", "roleARN", roleARN)

	remote := awsconf.AssumeRole(app.aws, awsconf.AssumeRoleOpts{
		RoleARN:     roleARN,
		SessionName: app.cfg.CrossAccount.SessionName,
		Duration:    app.cfg.CrossAccount.Duration,
	})
	store := dynamodb.NewStore(awsdynamodb.NewFromConfig(remote))

	return service.NewMember(service.MemberDeps{
		Params:        params,
		Catalog:       app.catalog(),
		Mirror:        store,
		SyncRecorder:  store,
		Organizations: organizations.NewDescriber(awsorgs.NewFromConfig(app.aws)),
	}, app.submitterConfig()), nil
}

// NewManagement wires a management run. The returned func releases the
// notifier and must be called once the run is over.
func (app App) NewManagement(ctx context.Context) (*service.Management, func(), error) {
	const op = "App.NewManagement"

	params := app.params()

	notifier, closeFn, err := app.notifier(ctx, params)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return service.NewManagement(service.ManagementDeps{
		Params:   params,
		Catalog:  app.catalog(),
		Store:    dynamodb.NewStore(awsdynamodb.NewFromConfig(app.aws)),
		Notifier: notifier,
	}), closeFn, nil
}

func (app App) notifier(
	ctx context.Context, params port.ParameterStore,
) (port.Notifier, func(), error) {
	if app.cfg.Notifier.Kind == config.NotifierKafka {
		n, err := newKafkaNotifier(ctx, app.cfg.Notifier)
		if err != nil {
			return nil, nil, err
		}
		return n, n.Close, nil
	}
	return sns.NewNotifier(awssns.NewFromConfig(app.aws), params), func() {}, nil
}

// HandleMember is the member Lambda handler. The event payload is ignored.
func (app App) HandleMember(ctx context.Context, _ json.RawMessage) error {
	const op = "App.HandleMember"
	log := slog.With("op", op)

	m, err := app.NewMember(ctx)
	if err != nil {
		log.Error("failed to wire member", "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := m.Sync(ctx)
	if err != nil {
		log.Error("sync failed", "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("sync completed", "experiences", n)
	return nil
}

// HandleManagement is the management Lambda handler. The event payload is
// ignored.
func (app App) HandleManagement(ctx context.Context, _ json.RawMessage) error {
	const op = "App.HandleManagement"
	log := slog.With("op", op)

	m, closeFn, err := app.NewManagement(ctx)
	if err != nil {
		log.Error("failed to wire management", "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeFn()

	updated, err := m.Sync(ctx)
	if err != nil {
		log.Error("sync failed", "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("sync completed", "updated", updated)
	return nil
}
