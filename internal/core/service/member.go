package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/niksmo/pmp-sync/internal/core/domain"
	"github.com/niksmo/pmp-sync/internal/core/port"
)

const (
	ParamApprovedTable       = "ApprovedTable"
	ParamRejectedTable       = "RejectedTable"
	ParamSyncTimestampsTable = "SyncTimestampsTableName"
	ParamMemberExperienceIDs = "MemberExperienceIds"
)

var sharedWithMe = domain.EntityFilter{
	Name:   "Scope",
	Values: []string{"SharedWithMe"},
}

var _ port.MemberSyncer = (*Member)(nil)

type MemberDeps struct {
	Params        port.ParameterStore
	Catalog       port.Catalog
	Mirror        port.ProductIDReader
	SyncRecorder  port.SyncRecorder
	Organizations port.OrganizationDescriber
}

// A Member brings the experiences of a member account in line with the
// organization mirror tables.
//
// A Member is built for one invocation and is not safe for concurrent use.
type Member struct {
	params    port.ParameterStore
	catalog   port.Catalog
	mirror    port.ProductIDReader
	recorder  port.SyncRecorder
	orgs      port.OrganizationDescriber
	policies  PolicyReader
	submitter ChangeSetSubmitter
	now       func() time.Time

	experienceIDs []string
}

func NewMember(deps MemberDeps, cfg SubmitterConfig) *Member {
	return &Member{
		params:    deps.Params,
		catalog:   deps.Catalog,
		mirror:    deps.Mirror,
		recorder:  deps.SyncRecorder,
		orgs:      deps.Organizations,
		policies:  NewPolicyReader(deps.Catalog),
		submitter: NewChangeSetSubmitter(deps.Catalog, cfg),
		now:       time.Now,
	}
}

// Sync reconciles every experience to sync and then records the run.
// The record is written only when all experiences were synced.
func (m *Member) Sync(ctx context.Context) (int, error) {
	const op = "Member.Sync"
	log := slog.With("op", op)

	tables, err := m.tables(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	experienceIDs, err := m.ExperienceIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("syncing experiences", "count", len(experienceIDs))

	if len(experienceIDs) != 0 {
		remote, err := m.RemoteApprovalSet(ctx, tables.approved, tables.rejected)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}

		for i, id := range experienceIDs {
			log.Info(
				"syncing experience",
				"experienceID", id, "n", i+1, "of", len(experienceIDs),
			)
			if err := m.SyncExperience(ctx, id, remote); err != nil {
				return 0, fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	log.Info("updating timestamp", "table", tables.syncTimestamps)
	if err := m.recordSync(ctx, tables.syncTimestamps, len(experienceIDs)); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return len(experienceIDs), nil
}

type memberTables struct {
	approved       string
	rejected       string
	syncTimestamps string
}

func (m *Member) tables(ctx context.Context) (memberTables, error) {
	const op = "Member.tables"
	log := slog.With("op", op)

	var (
		t   memberTables
		err error
	)

	for _, p := range []struct {
		name string
		dst  *string
	}{
		{ParamApprovedTable, &t.approved},
		{ParamRejectedTable, &t.rejected},
		{ParamSyncTimestampsTable, &t.syncTimestamps},
	} {
		*p.dst, err = m.params.Get(ctx, p.name)
		if err != nil {
			return memberTables{}, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("table resolved", "parameter", p.name, "table", *p.dst)
	}
	return t, nil
}

// RemoteApprovalSet reads the organization mirror tables.
func (m *Member) RemoteApprovalSet(
	ctx context.Context, approvedTable, rejectedTable string,
) (domain.ApprovalSet, error) {
	const op = "Member.RemoteApprovalSet"

	approved, err := m.mirror.ReadIDs(ctx, approvedTable)
	if err != nil {
		return domain.ApprovalSet{}, fmt.Errorf("%s: %w", op, err)
	}

	rejected, err := m.mirror.ReadIDs(ctx, rejectedTable)
	if err != nil {
		return domain.ApprovalSet{}, fmt.Errorf("%s: %w", op, err)
	}

	return domain.ApprovalSet{Approved: approved, Rejected: rejected}, nil
}

// SyncExperience submits the changes that make the experience match
// remote. Approvals are submitted before rejections.
func (m *Member) SyncExperience(
	ctx context.Context, experienceID string, remote domain.ApprovalSet,
) error {
	const op = "Member.SyncExperience"
	log := slog.With("op", op, "experienceID", experienceID)

	local, err := m.policies.ProductsInExperience(ctx, experienceID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	delta := domain.Reconcile(local, remote)

	log.Info("adding products to approve list", "count", delta.ToApprove.Len())
	err = m.submitter.Submit(
		ctx, experienceID, delta.ToApprove.Sorted(), domain.ChangeTypeAllow,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("adding products to reject list", "count", delta.ToReject.Len())
	err = m.submitter.Submit(
		ctx, experienceID, delta.ToReject.Sorted(), domain.ChangeTypeDeny,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ExperienceIDs returns the experiences to sync. An explicit
// MemberExperienceIds parameter is used as is, otherwise experiences
// shared with the account are listed and filtered by
// [domain.Experience.Syncable]. The result is memoized.
func (m *Member) ExperienceIDs(ctx context.Context) ([]string, error) {
	const op = "Member.ExperienceIDs"
	log := slog.With("op", op)

	if m.experienceIDs != nil {
		return m.experienceIDs, nil
	}

	v, found, err := m.params.Lookup(ctx, ParamMemberExperienceIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if found {
		m.experienceIDs = splitIDs(v)
		log.Info("using configured experiences", "count", len(m.experienceIDs))
		return m.experienceIDs, nil
	}
	log.Info(ParamMemberExperienceIDs + " wasn't found in parameter store")

	candidates, err := m.listEntities(ctx, domain.EntityTypeExperience, sharedWithMe)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Debug("experiences returned by catalog", "experienceIDs", candidates)

	ids := make([]string, 0, len(candidates))
	for _, id := range candidates {
		x, err := m.policies.Experience(ctx, id)
		if err != nil {
			log.Info(
				"experience is ignored: not readable",
				"experienceID", id, "err", err,
			)
			continue
		}
		if !x.Syncable() {
			log.Info(
				"experience is ignored: no procurement policy, not active or archived",
				"experienceID", id,
			)
			continue
		}
		ids = append(ids, id)
	}

	m.experienceIDs = ids
	return m.experienceIDs, nil
}

// AccountInActiveAudience reports whether accountID is a principal of an
// audience bound to one of the experiences to sync.
func (m *Member) AccountInActiveAudience(
	ctx context.Context, accountID string,
) (bool, error) {
	const op = "Member.AccountInActiveAudience"

	experienceIDs, err := m.ExperienceIDs(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	audienceIDs, err := m.listEntities(ctx, domain.EntityTypeAudience)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	for _, id := range audienceIDs {
		e, err := m.catalog.DescribeEntity(ctx, id)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}

		a, err := domain.ParseAudience(e)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}

		if slices.Contains(a.Principals, accountID) &&
			slices.Contains(experienceIDs, a.ExperienceID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Member) listEntities(
	ctx context.Context, entityType string, filters ...domain.EntityFilter,
) ([]string, error) {
	const op = "Member.listEntities"

	q := domain.EntityQuery{EntityType: entityType, Filters: filters}
	var ids []string
	for {
		page, err := m.catalog.ListEntities(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, page.EntityIDs...)

		if page.NextToken == "" {
			return ids, nil
		}
		q.NextToken = page.NextToken
	}
}

func (m *Member) recordSync(ctx context.Context, table string, experiences int) error {
	const op = "Member.recordSync"

	org, err := m.orgs.DescribeOrganization(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r := domain.NewSyncRecord(org, experiences, m.now())
	if err := m.recorder.RecordSync(ctx, table, r); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func splitIDs(v string) []string {
	ids := []string{}
	for id := range strings.SplitSeq(v, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
