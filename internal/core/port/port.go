package port

import (
	"context"

	"github.com/niksmo/pmp-sync/internal/core/domain"
)

type ParameterStore interface {
	// Get returns the parameter value or an error when it is absent.
	Get(ctx context.Context, name string) (string, error)

	// Lookup reports found=false with a nil error when the parameter is
	// absent.
	Lookup(ctx context.Context, name string) (value string, found bool, err error)
}

type ProductIDReader interface {
	ReadIDs(ctx context.Context, table string) (domain.ProductSet, error)
}

type ProductIDWriter interface {
	PutIDs(ctx context.Context, table string, ids []string) error
	DeleteIDs(ctx context.Context, table string, ids []string) error
}

type ProductIDStore interface {
	ProductIDReader
	ProductIDWriter
}

type SyncRecorder interface {
	RecordSync(ctx context.Context, table string, r domain.SyncRecord) error
}

type OrganizationDescriber interface {
	DescribeOrganization(ctx context.Context) (domain.Organization, error)
}

type EntityDescriber interface {
	DescribeEntity(ctx context.Context, entityID string) (domain.Entity, error)
}

type EntityLister interface {
	ListEntities(ctx context.Context, q domain.EntityQuery) (domain.EntityPage, error)
}

type ChangeSetClient interface {
	StartChangeSet(ctx context.Context, cs domain.ChangeSet) (changeSetID string, err error)
	DescribeChangeSet(ctx context.Context, changeSetID string) (domain.ChangeSetState, error)
}

type Catalog interface {
	EntityDescriber
	EntityLister
	ChangeSetClient
}

type Notifier interface {
	NotifyProductsUpdated(context.Context, domain.ProductsUpdated) error
}

type MemberSyncer interface {
	Sync(context.Context) (experiences int, err error)
}

type ManagementSyncer interface {
	Sync(context.Context) (updated bool, err error)
}
