package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/niksmo/pmp-sync/internal/core/domain"
	"github.com/niksmo/pmp-sync/internal/core/port"
)

const (
	ParamExperience             = "experience"
	ParamAlwaysSendNotification = "AllwaysSendNotification"
)

var _ port.ManagementSyncer = (*Management)(nil)

type ManagementDeps struct {
	Params   port.ParameterStore
	Catalog  port.EntityDescriber
	Store    port.ProductIDStore
	Notifier port.Notifier
}

// A Management mirrors the central experience into the organization
// tables and notifies members about changes.
type Management struct {
	params   port.ParameterStore
	store    port.ProductIDStore
	notifier port.Notifier
	policies PolicyReader
	now      func() time.Time
}

func NewManagement(deps ManagementDeps) *Management {
	return &Management{
		params:   deps.Params,
		store:    deps.Store,
		notifier: deps.Notifier,
		policies: NewPolicyReader(deps.Catalog),
		now:      time.Now,
	}
}

// Sync writes the live approval state of the central experience to the
// mirror tables. It reports whether any table changed.
func (m *Management) Sync(ctx context.Context) (bool, error) {
	const op = "Management.Sync"
	log := slog.With("op", op)

	experienceID, err := m.params.Get(ctx, ParamExperience)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("central experience resolved", "experienceID", experienceID)

	always, err := m.params.Get(ctx, ParamAlwaysSendNotification)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	live, err := m.policies.ProductsInExperience(ctx, experienceID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	evt := domain.ProductsUpdated{ExperienceID: experienceID}
	for _, kind := range []struct {
		name  string
		param string
		live  domain.ProductSet
	}{
		{"approved", ParamApprovedTable, live.Approved},
		{"rejected", ParamRejectedTable, live.Rejected},
	} {
		log.Info("working products", "kind", kind.name)

		table, err := m.params.Get(ctx, kind.param)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}

		d, err := m.mirrorTable(ctx, table, kind.live)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		evt.Added += d.Add.Len()
		evt.Removed += d.Remove.Len()
	}

	updated := evt.Added+evt.Removed != 0
	if !updated && always != "Yes" {
		log.Info("tables are up to date")
		return false, nil
	}

	evt.OccurredAt = m.now().UTC()
	if err := m.notifier.NotifyProductsUpdated(ctx, evt); err != nil {
		return updated, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("update notification sent", "updated", updated)

	return updated, nil
}

func (m *Management) mirrorTable(
	ctx context.Context, table string, live domain.ProductSet,
) (domain.MirrorDelta, error) {
	const op = "Management.mirrorTable"
	log := slog.With("op", op, "table", table)

	stored, err := m.store.ReadIDs(ctx, table)
	if err != nil {
		return domain.MirrorDelta{}, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("products in table", "count", stored.Len())
	log.Info("products in experience", "count", live.Len())

	d := domain.Mirror(live, stored)
	if d.Empty() {
		return d, nil
	}

	log.Info(
		"products in table and experience are different",
		"toAdd", d.Add.Len(), "toDelete", d.Remove.Len(),
	)
	log.Debug("products delta", "toAdd", d.Add.Sorted(), "toDelete", d.Remove.Sorted())

	if d.Add.Len() != 0 {
		if err := m.store.PutIDs(ctx, table, d.Add.Sorted()); err != nil {
			return domain.MirrorDelta{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	if d.Remove.Len() != 0 {
		if err := m.store.DeleteIDs(ctx, table, d.Remove.Sorted()); err != nil {
			return domain.MirrorDelta{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	return d, nil
}
