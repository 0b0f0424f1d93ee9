package service_test

import (
	"errors"
	"testing"

	"github.com/niksmo/pmp-sync/internal/core/domain"
	"github.com/niksmo/pmp-sync/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memberFixture struct {
	params   *MockParams
	catalog  *MockCatalog
	mirror   *MockIDStore
	recorder *MockSyncRecorder
	orgs     *MockOrganizations
	member   *service.Member
}

func newMemberFixture() *memberFixture {
	f := &memberFixture{
		params:   new(MockParams),
		catalog:  new(MockCatalog),
		mirror:   new(MockIDStore),
		recorder: new(MockSyncRecorder),
		orgs:     new(MockOrganizations),
	}
	f.member = service.NewMember(service.MemberDeps{
		Params:        f.params,
		Catalog:       f.catalog,
		Mirror:        f.mirror,
		SyncRecorder:  f.recorder,
		Organizations: f.orgs,
	}, fastSubmitterConfig())
	return f
}

func (f *memberFixture) onTables() {
	f.params.On("Get", mock.Anything, service.ParamApprovedTable).Return("approved-tbl", nil)
	f.params.On("Get", mock.Anything, service.ParamRejectedTable).Return("rejected-tbl", nil)
	f.params.On("Get", mock.Anything, service.ParamSyncTimestampsTable).Return("sync-tbl", nil)
}

func (f *memberFixture) onExplicitExperiences(v string) {
	f.params.On("Lookup", mock.Anything, service.ParamMemberExperienceIDs).Return(v, true, nil)
}

func (f *memberFixture) onMirror(approved, rejected []string) {
	f.mirror.On("ReadIDs", mock.Anything, "approved-tbl").
		Return(domain.NewProductSet(approved...), nil).Once()
	f.mirror.On("ReadIDs", mock.Anything, "rejected-tbl").
		Return(domain.NewProductSet(rejected...), nil).Once()
}

func (f *memberFixture) onRecord(experiences int) {
	f.orgs.On("DescribeOrganization", mock.Anything).Return(domain.Organization{
		ManagementAccountID: "111122223333", ManagementAccountEmail: "root@example.com",
	}, nil)
	f.recorder.On("RecordSync", mock.Anything, "sync-tbl", mock.MatchedBy(
		func(r domain.SyncRecord) bool {
			return r.ManagementAccountID == "111122223333" &&
				r.ManagementAccountEmail == "root@example.com" &&
				r.ExperiencesUpdated == experiences &&
				r.Stamp != "" && r.UpdateTimeUTC != ""
		},
	)).Return(nil).Once()
}

func TestMemberSync(t *testing.T) {
	t.Run("ApprovesAndRejectsDelta", func(t *testing.T) {
		f := newMemberFixture()
		f.onTables()
		f.onExplicitExperiences("exp-1")
		f.onMirror([]string{"P1", "P2"}, []string{"P3"})
		f.catalog.onExperience("exp-1", "pp-1", enabledExperience, policyDoc(`"P1"`, ``))
		var submitted []domain.ChangeSet
		f.catalog.recordChangeSets(&submitted)
		f.onRecord(1)

		n, err := f.member.Sync(t.Context())

		require.NoError(t, err)
		assert.Equal(t, 1, n)
		require.Len(t, submitted, 2)
		assert.Equal(t, domain.ChangeTypeAllow, submitted[0].ChangeType)
		assert.Equal(t, []string{"P2"}, submitted[0].ProductIDs)
		assert.Equal(t, domain.ChangeTypeDeny, submitted[1].ChangeType)
		assert.Equal(t, []string{"P3"}, submitted[1].ProductIDs)
		f.recorder.AssertExpectations(t)
	})

	t.Run("MirrorIsReadOncePerRun", func(t *testing.T) {
		f := newMemberFixture()
		f.onTables()
		f.onExplicitExperiences("exp-1, exp-2")
		f.onMirror([]string{"P1"}, nil)
		f.catalog.onExperience("exp-1", "pp-1", enabledExperience, policyDoc(`"P1"`, ``))
		f.catalog.onExperience("exp-2", "pp-2",
			`{"Status":"Enabled","ProcurementPolicies":["pp-2"]}`, policyDoc(`"P1"`, ``))
		f.onRecord(2)

		n, err := f.member.Sync(t.Context())

		require.NoError(t, err)
		assert.Equal(t, 2, n)
		f.mirror.AssertNumberOfCalls(t, "ReadIDs", 2)
		f.catalog.AssertNotCalled(t, "StartChangeSet", mock.Anything, mock.Anything)
	})

	t.Run("PolicyFailureAbortsRunWithoutRecord", func(t *testing.T) {
		f := newMemberFixture()
		f.onTables()
		f.onExplicitExperiences("exp-1")
		f.onMirror([]string{"P1"}, nil)
		errDenied := errors.New("access denied")
		f.catalog.On("DescribeEntity", mock.Anything, "exp-1").
			Return(domain.Entity{}, errDenied)

		_, err := f.member.Sync(t.Context())

		require.ErrorIs(t, err, errDenied)
		f.recorder.AssertNotCalled(t, "RecordSync", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ChangeSetFailureAbortsRun", func(t *testing.T) {
		f := newMemberFixture()
		f.onTables()
		f.onExplicitExperiences("exp-1")
		f.onMirror([]string{"P1"}, nil)
		f.catalog.onExperience("exp-1", "pp-1", enabledExperience, policyDoc(``, ``))
		f.catalog.On("StartChangeSet", mock.Anything, mock.Anything).Return("cs-1", nil)
		f.catalog.On("DescribeChangeSet", mock.Anything, "cs-1").
			Return(domain.ChangeSetState{ID: "cs-1", Status: domain.ChangeSetFailed}, nil)

		_, err := f.member.Sync(t.Context())

		require.ErrorIs(t, err, service.ErrChangeSetFailed)
		f.recorder.AssertNotCalled(t, "RecordSync", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("NoExperiencesStillRecords", func(t *testing.T) {
		f := newMemberFixture()
		f.onTables()
		f.params.On("Lookup", mock.Anything, service.ParamMemberExperienceIDs).Return("", false, nil)
		f.catalog.On("ListEntities", mock.Anything, mock.Anything).
			Return(domain.EntityPage{}, nil)
		f.onRecord(0)

		n, err := f.member.Sync(t.Context())

		require.NoError(t, err)
		assert.Zero(t, n)
		f.mirror.AssertNotCalled(t, "ReadIDs", mock.Anything, mock.Anything)
	})

	t.Run("MissingTableParameter", func(t *testing.T) {
		f := newMemberFixture()
		errNotFound := errors.New("parameter not found")
		f.params.On("Get", mock.Anything, service.ParamApprovedTable).Return("", errNotFound)

		_, err := f.member.Sync(t.Context())

		require.ErrorIs(t, err, errNotFound)
	})
}

func TestMemberSyncExperience(t *testing.T) {
	f := newMemberFixture()
	f.catalog.onExperience("exp-1", "pp-1", enabledExperience, policyDoc(``, ``))
	var submitted []domain.ChangeSet
	f.catalog.recordChangeSets(&submitted)
	remote := domain.NewApprovalSet(productIDs(120), nil)

	err := f.member.SyncExperience(t.Context(), "exp-1", remote)

	require.NoError(t, err)
	require.Len(t, submitted, 3)
	assert.Len(t, submitted[0].ProductIDs, 50)
	assert.Len(t, submitted[1].ProductIDs, 50)
	assert.Len(t, submitted[2].ProductIDs, 20)
	var joined []string
	for _, cs := range submitted {
		joined = append(joined, cs.ProductIDs...)
	}
	assert.Equal(t, productIDs(120), joined)
}

func TestMemberExperienceIDs(t *testing.T) {
	t.Run("ExplicitSkipsEligibility", func(t *testing.T) {
		f := newMemberFixture()
		f.onExplicitExperiences("exp-1,exp-2,,")

		ids, err := f.member.ExperienceIDs(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []string{"exp-1", "exp-2"}, ids)
		f.catalog.AssertNotCalled(t, "ListEntities", mock.Anything, mock.Anything)
		f.catalog.AssertNotCalled(t, "DescribeEntity", mock.Anything, mock.Anything)
	})

	t.Run("DiscoversAndFilters", func(t *testing.T) {
		f := newMemberFixture()
		f.params.On("Lookup", mock.Anything, service.ParamMemberExperienceIDs).Return("", false, nil)
		f.catalog.On("ListEntities", mock.Anything, mock.MatchedBy(func(q domain.EntityQuery) bool {
			return q.NextToken == "" && q.EntityType == domain.EntityTypeExperience &&
				len(q.Filters) == 1 && q.Filters[0].Name == "Scope" &&
				q.Filters[0].Values[0] == "SharedWithMe"
		})).Return(domain.EntityPage{
			EntityIDs: []string{"exp-ok", "exp-blocked", "exp-disabled"},
			NextToken: "page-2",
		}, nil).Once()
		f.catalog.On("ListEntities", mock.Anything, mock.MatchedBy(func(q domain.EntityQuery) bool {
			return q.NextToken == "page-2"
		})).Return(domain.EntityPage{
			EntityIDs: []string{"exp-nopolicy", "exp-broken", "exp-ok2"},
		}, nil).Once()

		f.catalog.onExperience("exp-ok", "", `{"AdminStatus":"","Status":"Enabled","ProcurementPolicies":["pp-1"]}`, "")
		f.catalog.onExperience("exp-blocked", "", `{"AdminStatus":"Blocked","Status":"Enabled","ProcurementPolicies":["pp-1"]}`, "")
		f.catalog.onExperience("exp-disabled", "", `{"Status":"Disabled","ProcurementPolicies":["pp-1"]}`, "")
		f.catalog.onExperience("exp-nopolicy", "", `{"Status":"Enabled","ProcurementPolicies":[]}`, "")
		f.catalog.On("DescribeEntity", mock.Anything, "exp-broken").
			Return(domain.Entity{}, errors.New("resource not found"))
		f.catalog.onExperience("exp-ok2", "", `{"Status":"Enabled","ProcurementPolicies":["pp-2"]}`, "")

		ids, err := f.member.ExperienceIDs(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []string{"exp-ok", "exp-ok2"}, ids)

		again, err := f.member.ExperienceIDs(t.Context())
		require.NoError(t, err)
		assert.Equal(t, ids, again)
		f.catalog.AssertNumberOfCalls(t, "ListEntities", 2)
		f.params.AssertNumberOfCalls(t, "Lookup", 1)
	})

	t.Run("LookupFailure", func(t *testing.T) {
		f := newMemberFixture()
		errThrottled := errors.New("throttled")
		f.params.On("Lookup", mock.Anything, service.ParamMemberExperienceIDs).Return("", false, errThrottled)

		_, err := f.member.ExperienceIDs(t.Context())

		require.ErrorIs(t, err, errThrottled)
	})
}

func TestMemberAccountInActiveAudience(t *testing.T) {
	f := newMemberFixture()
	f.onExplicitExperiences("exp-1")
	f.catalog.On("ListEntities", mock.Anything, mock.MatchedBy(func(q domain.EntityQuery) bool {
		return q.EntityType == domain.EntityTypeAudience
	})).Return(domain.EntityPage{EntityIDs: []string{"aud-1", "aud-2"}}, nil)
	f.catalog.On("DescribeEntity", mock.Anything, "aud-1").Return(domain.Entity{
		ID: "aud-1", Details: []byte(`{"ExperienceId":"exp-other","Principals":["111111111111"]}`),
	}, nil)
	f.catalog.On("DescribeEntity", mock.Anything, "aud-2").Return(domain.Entity{
		ID: "aud-2", Details: []byte(`{"ExperienceId":"exp-1","Principals":["222222222222"]}`),
	}, nil)

	ok, err := f.member.AccountInActiveAudience(t.Context(), "222222222222")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.member.AccountInActiveAudience(t.Context(), "111111111111")
	require.NoError(t, err)
	assert.False(t, ok)
}
