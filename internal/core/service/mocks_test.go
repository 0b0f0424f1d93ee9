package service_test

import (
	"context"

	"github.com/niksmo/pmp-sync/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

type MockParams struct {
	mock.Mock
}

func (m *MockParams) Get(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockParams) Lookup(ctx context.Context, name string) (string, bool, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Bool(1), args.Error(2)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) DescribeEntity(ctx context.Context, id string) (domain.Entity, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Entity), args.Error(1)
}

func (m *MockCatalog) ListEntities(ctx context.Context, q domain.EntityQuery) (domain.EntityPage, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(domain.EntityPage), args.Error(1)
}

func (m *MockCatalog) StartChangeSet(ctx context.Context, cs domain.ChangeSet) (string, error) {
	args := m.Called(ctx, cs)
	return args.String(0), args.Error(1)
}

func (m *MockCatalog) DescribeChangeSet(ctx context.Context, id string) (domain.ChangeSetState, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.ChangeSetState), args.Error(1)
}

// onExperience registers an experience entity and its policy entity.
func (m *MockCatalog) onExperience(experienceID, policyID, experienceDetails, policyDetails string) {
	m.On("DescribeEntity", mock.Anything, experienceID).Return(domain.Entity{
		ID: experienceID, Type: "Experience@1.0", Details: []byte(experienceDetails),
	}, nil)
	if policyID != "" {
		m.On("DescribeEntity", mock.Anything, policyID).Return(domain.Entity{
			ID: policyID, Type: "ProcurementPolicy@1.0", Details: []byte(policyDetails),
		}, nil)
	}
}

// recordChangeSets makes every StartChangeSet succeed and every change set
// succeed on the first poll.
func (m *MockCatalog) recordChangeSets(dst *[]domain.ChangeSet) {
	m.On("StartChangeSet", mock.Anything, mock.AnythingOfType("domain.ChangeSet")).
		Run(func(args mock.Arguments) {
			*dst = append(*dst, args.Get(1).(domain.ChangeSet))
		}).
		Return("cs-id", nil)
	m.On("DescribeChangeSet", mock.Anything, "cs-id").
		Return(domain.ChangeSetState{ID: "cs-id", Status: domain.ChangeSetSucceeded}, nil)
}

type MockIDStore struct {
	mock.Mock
}

func (m *MockIDStore) ReadIDs(ctx context.Context, table string) (domain.ProductSet, error) {
	args := m.Called(ctx, table)
	s, _ := args.Get(0).(domain.ProductSet)
	return s, args.Error(1)
}

func (m *MockIDStore) PutIDs(ctx context.Context, table string, ids []string) error {
	return m.Called(ctx, table, ids).Error(0)
}

func (m *MockIDStore) DeleteIDs(ctx context.Context, table string, ids []string) error {
	return m.Called(ctx, table, ids).Error(0)
}

type MockSyncRecorder struct {
	mock.Mock
}

func (m *MockSyncRecorder) RecordSync(ctx context.Context, table string, r domain.SyncRecord) error {
	return m.Called(ctx, table, r).Error(0)
}

type MockOrganizations struct {
	mock.Mock
}

func (m *MockOrganizations) DescribeOrganization(ctx context.Context) (domain.Organization, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Organization), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyProductsUpdated(ctx context.Context, evt domain.ProductsUpdated) error {
	return m.Called(ctx, evt).Error(0)
}

func policyDoc(allow, deny string) string {
	return `{"Statements":[` +
		`{"Effect":"Allow","Resources":[{"Ids":[` + allow + `]}]},` +
		`{"Effect":"Deny","Resources":[{"Ids":[` + deny + `]}]}` +
		`]}`
}

const enabledExperience = `{"Status":"Enabled","ProcurementPolicies":["pp-1"]}`
